package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/convo/pkg/adapters/ai"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresURL(t *testing.T) {
	_, err := ai.New(ai.Config{})
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CONVO_AI_URL", " http://ai.local/ ")
	t.Setenv("CONVO_AI_USER", "bot@convo")
	t.Setenv("CONVO_AI_TIMEOUT_SECONDS", "5")

	cfg := ai.ConfigFromEnv()
	assert.Equal(t, "http://ai.local/", cfg.BaseURL)
	assert.Equal(t, "bot@convo", cfg.Username)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestClient_LoginThenQuery(t *testing.T) {
	var logins atomic.Int32
	var payload map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	})
	mux.HandleFunc("/api/v1/query/rag", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"answer":"42"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := ai.New(ai.Config{BaseURL: srv.URL, Username: "u", Password: "p"})
	require.NoError(t, err)

	q := ports.AIQuery{
		SessionID: "ai-1",
		Query:     "meaning of life?",
		QueryType: "rag",
		History: []domain.HistoryEntry{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "hello"},
		},
	}
	for range 2 {
		answer, err := client.Answer(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, "42", answer)
	}

	assert.Equal(t, int32(1), logins.Load(), "token is cached")
	assert.Equal(t, "ai-1", payload["session_id"])
	assert.Len(t, payload["chat_history"], 2)
}

func TestClient_FallbackAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := ai.New(ai.Config{BaseURL: srv.URL, Token: "static"})
	require.NoError(t, err)

	answer, err := client.Answer(context.Background(), ports.AIQuery{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, ai.FallbackAnswer, answer)
}

func TestClient_ErrorKinds(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	tests := []struct {
		name string
		cfg  ai.Config
		kind domain.CollaboratorKind
	}{
		{"Service", ai.Config{BaseURL: failing.URL}, domain.KindService},
		{"Timeout", ai.Config{BaseURL: slow.URL, Timeout: 50 * time.Millisecond}, domain.KindTimeout},
		{"Connectivity", ai.Config{BaseURL: downURL}, domain.KindConnectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := ai.New(tt.cfg)
			require.NoError(t, err)

			_, err = client.Answer(context.Background(), ports.AIQuery{Query: "x"})
			var cerr *domain.CollaboratorError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.kind, cerr.Kind)
		})
	}
}
