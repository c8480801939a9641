package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskagent/internal/agent"
	"deskagent/internal/config"
	"deskagent/internal/decider"
	"deskagent/internal/store"
	"deskagent/internal/tools"
	"deskagent/internal/trace"
)

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, store.Repository) {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	orchestrator := agent.New(repo, tools.NewBuiltinRegistry(), decider.NewRules(), trace.Nop{}, cfg.Agent, nil)

	r := chi.NewRouter()
	NewHandler(orchestrator, repo, cfg).RegisterRoutes(r)
	NewHealthHandler(repo).RegisterHealth(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func testConfig() *config.Config {
	return &config.Config{
		Agent: config.AgentConfig{MaxSteps: 5, MemoryRecallLimit: 5},
		RateLimit: config.RateLimitConfig{
			RequestsPerWindow: 100,
			WindowDuration:    time.Minute,
		},
		MaxRequestBodySize: 1 << 20,
	}
}

func postMessage(t *testing.T, srv *httptest.Server, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/messages", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestHandleMessageEndToEnd(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t, testConfig())

	resp := postMessage(t, srv, MessageRequest{
		SessionID: "s1",
		UserID:    "u001",
		UserName:  "Alice",
		UserEmail: "alice@example.com",
		Message:   "hello",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Sure, could you provide your order ID?", out.Reply)
	assert.NotEmpty(t, out.TraceID)

	// The sender was auto-created.
	user, err := repo.GetUser(context.Background(), "u001")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "auto-created", user.Profile["notes"])

	// The conversation was persisted.
	events, err := repo.GetSessionEvents(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestHandleMessageDefaultsNameAndEmail(t *testing.T) {
	t.Parallel()

	srv, repo := newTestServer(t, testConfig())

	resp := postMessage(t, srv, MessageRequest{
		SessionID: "s1",
		UserID:    "u002",
		Message:   "hello",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	user, err := repo.GetUser(context.Background(), "u002")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, "user@example.com", user.Email)
}

func TestHandleMessageValidation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testConfig())

	cases := []struct {
		name string
		req  MessageRequest
	}{
		{"missing session_id", MessageRequest{UserID: "u001", Message: "hi"}},
		{"missing user_id", MessageRequest{SessionID: "s1", Message: "hi"}},
		{"missing message", MessageRequest{SessionID: "s1", UserID: "u001"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postMessage(t, srv, tc.req)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandleMessageInvalidBody(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testConfig())

	resp, err := http.Post(srv.URL+"/api/messages", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleMessageRateLimitsPerUser(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit.RequestsPerWindow = 2
	srv, _ := newTestServer(t, cfg)

	req := MessageRequest{SessionID: "s1", UserID: "u-limited", Message: "hello"}
	for i := 0; i < 2; i++ {
		resp := postMessage(t, srv, req)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := postMessage(t, srv, req)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// A different user is not throttled, even on a shared session.
	other := postMessage(t, srv, MessageRequest{SessionID: "s1", UserID: "u-other", Message: "hello"})
	other.Body.Close()
	assert.Equal(t, http.StatusOK, other.StatusCode)
}

func TestHealthReportsDatabase(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, testConfig())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status["status"])
}
