package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uistudio/internal/app"
	"uistudio/internal/model"
)

type fakeRecorder struct {
	records []model.ExchangeRecord
	err     error
}

func (f *fakeRecorder) RecordExchange(_ context.Context, record model.ExchangeRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func encode(t *testing.T, record model.ExchangeRecord) []byte {
	t.Helper()
	body, err := json.Marshal(record)
	require.NoError(t, err)
	return body
}

func TestHandleAcksRecordedExchange(t *testing.T) {
	recorder := &fakeRecorder{}
	w := NewExchangeRecordWorker(nil, recorder, "q", nil)

	record := model.ExchangeRecord{
		SessionID: 4,
		UserID:    2,
		Prompt:    "a button",
		Message:   model.NewChatMessage(model.RoleAssistant, "done"),
	}

	assert.Equal(t, actionAck, w.handle(context.Background(), encode(t, record)))
	require.Len(t, recorder.records, 1)
	assert.Equal(t, record.Message.ID, recorder.records[0].Message.ID)
	assert.Equal(t, uint(4), recorder.records[0].SessionID)
}

func TestHandleDropsMalformedBody(t *testing.T) {
	w := NewExchangeRecordWorker(nil, &fakeRecorder{}, "q", nil)
	assert.Equal(t, actionDrop, w.handle(context.Background(), []byte("{not json")))
}

func TestHandleDropsMissingSession(t *testing.T) {
	w := NewExchangeRecordWorker(nil, &fakeRecorder{err: app.ErrSessionNotFound}, "q", nil)
	record := model.ExchangeRecord{SessionID: 1, UserID: 1, Message: model.NewChatMessage(model.RoleAssistant, "x")}
	assert.Equal(t, actionDrop, w.handle(context.Background(), encode(t, record)))
}

func TestHandleRequeuesStorageFailure(t *testing.T) {
	w := NewExchangeRecordWorker(nil, &fakeRecorder{err: errors.New("db down")}, "q", nil)
	record := model.ExchangeRecord{SessionID: 1, UserID: 1, Message: model.NewChatMessage(model.RoleAssistant, "x")}
	assert.Equal(t, actionRequeue, w.handle(context.Background(), encode(t, record)))
}
