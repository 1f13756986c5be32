package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uistudio/internal/model"
	"uistudio/internal/studio"
)

func writeEnvelope(w http.ResponseWriter, status, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"message": message,
		"data":    data,
	})
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "alice", body["username"])
			writeEnvelope(w, http.StatusOK, 0, "ok", map[string]interface{}{
				"token": "tok-123",
				"user":  map[string]interface{}{"id": 7, "username": "alice", "email": "a@example.com"},
			})
		case "/api/v1/auth/me":
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			writeEnvelope(w, http.StatusOK, 0, "ok", map[string]interface{}{"id": 7, "username": "alice"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", res.Token)
	assert.Equal(t, uint(7), res.User.ID)
	assert.Equal(t, "tok-123", c.Token())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
}

func TestSessionRoundTrip(t *testing.T) {
	stored := model.NewSession(7, "Landing")
	stored.ID = 3

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/sessions":
			writeEnvelope(w, http.StatusCreated, 0, "ok", stored)
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/sessions/3":
			var patch model.SessionPatch
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			patch.Apply(stored)
			writeEnvelope(w, http.StatusOK, 0, "ok", stored)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/sessions":
			writeEnvelope(w, http.StatusOK, 0, "ok", []*model.Session{stored})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/sessions/3":
			writeEnvelope(w, http.StatusOK, 0, "ok", nil)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("t"))
	ctx := context.Background()

	created, err := c.CreateSession(ctx, "Landing")
	require.NoError(t, err)
	assert.Equal(t, uint(3), created.ID)
	assert.Equal(t, model.DefaultComponentName, created.GeneratedCode.ComponentName)

	code := model.GeneratedCode{JSX: "const X=1;", CSS: "body{color:red}", ComponentName: "GeneratedComponent"}
	updated, err := c.UpdateSession(ctx, 3, model.SessionPatch{GeneratedCode: &code})
	require.NoError(t, err)
	assert.Equal(t, "const X=1;", updated.GeneratedCode.JSX)

	list, err := c.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, c.DeleteSession(ctx, 3))
}

func TestErrorKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/sessions/1":
			writeEnvelope(w, http.StatusNotFound, 40401, "session not found", nil)
		case "/api/v1/sessions":
			writeEnvelope(w, http.StatusBadRequest, 40000, "session name must be between 1 and 100 characters", nil)
		case "/api/v1/ai/generate":
			writeEnvelope(w, http.StatusInternalServerError, 50000, "generate failed: db password leaked", nil)
		default:
			writeEnvelope(w, http.StatusUnauthorized, 40100, "invalid or expired token", nil)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.GetSession(ctx, 1)
	assert.ErrorIs(t, err, studio.ErrNotFound)
	assert.Equal(t, "Session not found", err.Error())

	_, err = c.CreateSession(ctx, "x")
	assert.ErrorIs(t, err, studio.ErrValidation)
	assert.Equal(t, "session name must be between 1 and 100 characters", err.Error())

	_, err = c.Generate(ctx, studio.GenerateRequest{Prompt: "p", SessionID: 1})
	assert.ErrorIs(t, err, studio.ErrServer)
	assert.NotContains(t, err.Error(), "leaked")

	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, studio.ErrUnauthorized)
}

func TestGenerateSendsCamelCaseRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a card", body["prompt"])
		assert.Equal(t, float64(9), body["sessionId"])
		assert.Equal(t, true, body["recordExchange"])
		writeEnvelope(w, http.StatusOK, 0, "ok", map[string]interface{}{
			"generatedCode": map[string]interface{}{"jsx": "const X=1;", "css": "", "componentName": "GeneratedComponent"},
			"message":       "Component generated successfully",
			"record":        map[string]interface{}{"id": "m-1", "role": "assistant", "content": "done"},
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL).Generate(context.Background(), studio.GenerateRequest{Prompt: "a card", SessionID: 9, RecordExchange: true})
	require.NoError(t, err)
	assert.Equal(t, "const X=1;", res.GeneratedCode.JSX)
	require.NotNil(t, res.Record)
	assert.Equal(t, "m-1", res.Record.ID)
}

func TestTimeoutAndNetworkKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL).ListSessions(ctx)
	assert.ErrorIs(t, err, studio.ErrTimeout)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	_, err = New(url).ListSessions(context.Background())
	assert.ErrorIs(t, err, studio.ErrNetwork)
}
