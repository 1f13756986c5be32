package studio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uistudio/internal/model"
)

type stubGenerator struct {
	mu       sync.Mutex
	requests []GenerateRequest
	result   *GenerateResult
	err      error
}

func (g *stubGenerator) Generate(_ context.Context, req GenerateRequest) (*GenerateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	out := *g.result
	return &out, nil
}

func artifactResult() *GenerateResult {
	return &GenerateResult{
		GeneratedCode: model.GeneratedCode{
			JSX:           "const X=1;",
			CSS:           "body{color:red}",
			ComponentName: "GeneratedComponent",
			Dependencies:  []string{},
		},
		Message: "Component generated successfully",
	}
}

func assistantMessages(sess *model.Session) []model.ChatMessage {
	var out []model.ChatMessage
	for _, msg := range sess.ChatHistory {
		if msg.Role == model.RoleAssistant {
			out = append(out, msg)
		}
	}
	return out
}

func TestGenerateWithoutSessionCreatesOne(t *testing.T) {
	store := newMemStore()
	s := newTestSync(store)
	gen := &stubGenerator{result: artifactResult()}
	o := NewOrchestrator(s, gen, OrchestratorOptions{})

	require.NoError(t, o.Generate(context.Background(), "a red counter"))

	assert.Equal(t, 1, store.createCount())
	cur := s.Current()
	require.NotNil(t, cur)
	assert.Equal(t, DefaultSessionName, cur.Name)
	assert.Equal(t, "const X=1;", cur.GeneratedCode.JSX)
	assert.Len(t, assistantMessages(cur), 1)

	require.Len(t, gen.requests, 1)
	assert.Equal(t, cur.ID, gen.requests[0].SessionID)
	assert.False(t, gen.requests[0].RecordExchange)

	require.Eventually(t, func() bool {
		stored := store.stored(cur.ID)
		return stored.GeneratedCode.JSX == "const X=1;" && len(stored.ChatHistory) == 1
	}, waitFor, tick)

	codeWrites := 0
	for i := 0; i < store.updateCount(); i++ {
		if store.update(i).GeneratedCode != nil {
			codeWrites++
		}
	}
	assert.GreaterOrEqual(t, codeWrites, 1)
}

func TestGenerateFailureAppendsApology(t *testing.T) {
	store := newMemStore()
	s := newTestSync(store)
	gen := &stubGenerator{err: errors.New("upstream exploded")}
	o := NewOrchestrator(s, gen, OrchestratorOptions{})

	err := o.Generate(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	cur := s.Current()
	require.NotNil(t, cur)
	msgs := assistantMessages(cur)
	require.Len(t, msgs, 1)
	assert.Equal(t, apologyMessage, msgs[0].Content)
	assert.NotContains(t, msgs[0].Content, "upstream exploded")
	assert.True(t, cur.GeneratedCode.IsEmpty())
}

func TestSubmitRecordsUserMessageFirst(t *testing.T) {
	s := newTestSync(newMemStore())
	gen := &stubGenerator{result: artifactResult()}
	o := NewOrchestrator(s, gen, OrchestratorOptions{})

	elem := &model.ChatMetadata{ElementID: "hero"}
	require.NoError(t, o.Submit(context.Background(), "  make it blue  ", elem))

	history := s.Current().ChatHistory
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "make it blue", history[0].Content)
	require.NotNil(t, history[0].Metadata)
	assert.Equal(t, "hero", history[0].Metadata.ElementID)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Contains(t, history[1].Content, "```jsx\nconst X=1;\n```")
}

func TestSubmitRejectsBlankPrompt(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(newTestSync(store), &stubGenerator{result: artifactResult()}, OrchestratorOptions{})

	err := o.Submit(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, store.createCount())
}

func TestServerRecordPolicyReusesRecordID(t *testing.T) {
	s := newTestSync(newMemStore())
	record := model.NewChatMessage(model.RoleAssistant, `I've generated a component based on your request: "x"`)
	result := artifactResult()
	result.Record = &record
	gen := &stubGenerator{result: result}
	o := NewOrchestrator(s, gen, OrchestratorOptions{Policy: RecordServer})

	require.NoError(t, o.Generate(context.Background(), "x"))
	require.True(t, gen.requests[0].RecordExchange)

	msgs := assistantMessages(s.Current())
	require.Len(t, msgs, 1)
	assert.Equal(t, record.ID, msgs[0].ID)

	_, appended := s.AppendChatMessage(record)
	assert.False(t, appended)
}

func TestEnsureSessionSharesConcurrentCreation(t *testing.T) {
	store := newMemStore()
	s := newTestSync(store)
	o := NewOrchestrator(s, &stubGenerator{result: artifactResult()}, OrchestratorOptions{})

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.EnsureSession(context.Background()); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, store.createCount())
}

func TestStartSelectsNewestSession(t *testing.T) {
	store := newMemStore()
	store.seed("old", time.Now().Add(-2*time.Hour))
	newest := store.seed("new", time.Now())
	s := newTestSync(store)
	o := NewOrchestrator(s, &stubGenerator{result: artifactResult()}, OrchestratorOptions{})

	sess, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newest.ID, sess.ID)
	assert.Equal(t, 0, store.createCount())
}

func TestStartCreatesSessionWhenNoneExist(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(newTestSync(store), &stubGenerator{result: artifactResult()}, OrchestratorOptions{})

	sess, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionName, sess.Name)
	assert.Equal(t, 1, store.createCount())
}

func TestParseRecordPolicy(t *testing.T) {
	for raw, want := range map[string]RecordPolicy{"": RecordClient, "client": RecordClient, "Server": RecordServer, "both": RecordBoth} {
		got, err := ParseRecordPolicy(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRecordPolicy("nobody")
	assert.Error(t, err)
}
