package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"uistudio/internal/app"
	"uistudio/internal/model"
	"uistudio/internal/platform/rabbitmq"
)

type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, record model.ExchangeRecord) error
}

// ExchangeRecordWorker consumes queued exchange records and appends them to
// the owning session's chat history.
type ExchangeRecordWorker struct {
	conn      *amqp.Connection
	recorder  ExchangeRecorder
	queueName string
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionDrop
	actionRequeue
)

func NewExchangeRecordWorker(conn *amqp.Connection, recorder ExchangeRecorder, queueName string, log *zap.Logger) *ExchangeRecordWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExchangeRecordWorker{
		conn:      conn,
		recorder:  recorder,
		queueName: queueName,
		log:       log,
	}
}

func (w *ExchangeRecordWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("exchange record deliveries closed")
					return
				}
				switch w.handle(workerCtx, d.Body) {
				case actionAck:
					_ = d.Ack(false)
				case actionDrop:
					_ = d.Nack(false, false)
				case actionRequeue:
					_ = d.Nack(false, !d.Redelivered)
				}
			}
		}
	}()

	return nil
}

// handle decides the fate of one delivery. Malformed records and records for
// sessions that no longer exist are dropped; storage failures are requeued
// once.
func (w *ExchangeRecordWorker) handle(ctx context.Context, body []byte) deliveryAction {
	var record model.ExchangeRecord
	if err := json.Unmarshal(body, &record); err != nil {
		w.log.Error("decode exchange record failed", zap.Error(err))
		return actionDrop
	}

	if err := w.recorder.RecordExchange(ctx, record); err != nil {
		fields := []zap.Field{
			zap.Uint("session_id", record.SessionID),
			zap.String("message_id", record.Message.ID),
			zap.Error(err),
		}
		if errors.Is(err, app.ErrInvalidInput) || errors.Is(err, app.ErrSessionNotFound) {
			w.log.Warn("drop exchange record", fields...)
			return actionDrop
		}
		w.log.Error("record exchange failed", fields...)
		return actionRequeue
	}
	return actionAck
}

func (w *ExchangeRecordWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
