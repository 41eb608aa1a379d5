package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/convo"
	convohttp "github.com/aretw0/convo/pkg/adapters/http"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signup(t *testing.T) *domain.Definition {
	t.Helper()
	b := dsl.New("signup")
	b.Add("start").Start("Welcome!").Go("menu")
	b.Add("menu").Menu("Pick one").Option("Sign up", "ask").Option("Leave", "bye")
	b.Add("ask").Ask("Email?", "email").Go("done")
	b.Add("done").End("Thanks {{email}}")
	b.Add("bye").End("Bye")
	return b.MustBuild()
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := convo.New(convo.WithIDGenerator(func() string { return "sess-1" }))
	srv := httptest.NewServer(convohttp.NewHandler(engine, convohttp.WithVersion("test")))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestServer_ChatFlow(t *testing.T) {
	srv := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/convos", signup(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodPost, srv.URL+"/chat/start", domain.StartRequest{ConvoID: "signup"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var turn domain.TurnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, "sess-1", turn.SessionID)
	assert.Equal(t, "menu", turn.NodeID)
	assert.Len(t, turn.Options, 2)

	for _, input := range []string{"1", "ana@example.com"} {
		resp, body = do(t, http.MethodPost, srv.URL+"/chat/sess-1/message", map[string]string{"user_input": input})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.True(t, turn.Completed)
	assert.Equal(t, "Thanks ana@example.com", turn.Message)

	resp, body = do(t, http.MethodGet, srv.URL+"/chat/sess-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(body, &sess))
	assert.True(t, sess.Completed)

	resp, body = do(t, http.MethodGet, srv.URL+"/chat", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"sessions":["sess-1"]}`, string(body))

	resp, _ = do(t, http.MethodPost, srv.URL+"/chat/sess-1/end", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ConvoEndpoints(t *testing.T) {
	srv := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/convos", signup(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/convos/signup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var def domain.Definition
	require.NoError(t, json.Unmarshal(body, &def))
	assert.Equal(t, "1.0.0", def.Version)

	def.Name = "Renamed"
	def.ID = "ignored"
	resp, body = do(t, http.MethodPut, srv.URL+"/convos/signup", def)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"name":"Renamed"`)
	assert.Contains(t, string(body), `"id":"signup"`)

	resp, body = do(t, http.MethodGet, srv.URL+"/convos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var defs []domain.Definition
	require.NoError(t, json.Unmarshal(body, &defs))
	assert.Len(t, defs, 1)

	resp, body = do(t, http.MethodGet, srv.URL+"/convos/signup/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(body), "graph TD"))

	resp, body = do(t, http.MethodPost, srv.URL+"/convos/validate", signup(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"valid":true,"warnings":[]}`, string(body))

	resp, _ = do(t, http.MethodDelete, srv.URL+"/convos/signup", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, string(body))
}

func TestServer_ErrorMapping(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/convos", signup(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	invalid := &domain.Definition{
		ID:          "broken",
		StartNodeID: "start",
		Nodes:       []domain.Node{{ID: "start", Type: domain.NodeStart, DefaultTransition: "nowhere"}},
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		raw    string
		status int
		check  func(t *testing.T, body []byte)
	}{
		{name: "unknown convo", method: http.MethodGet, path: "/convos/ghost", status: http.StatusNotFound},
		{name: "unknown session", method: http.MethodPost, path: "/chat/ghost/message", body: map[string]string{"user_input": "hi"}, status: http.StatusNotFound},
		{name: "duplicate convo", method: http.MethodPost, path: "/convos", body: signup(t), status: http.StatusConflict},
		{
			name: "invalid convo", method: http.MethodPost, path: "/convos", body: invalid, status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), `"issues"`)
				assert.Contains(t, string(body), "nowhere")
			},
		},
		{name: "missing convo id", method: http.MethodPost, path: "/chat/start", body: map[string]string{}, status: http.StatusBadRequest},
		{name: "bad json", method: http.MethodPost, path: "/convos", raw: "{", status: http.StatusBadRequest},
		{name: "oversized input", method: http.MethodPost, path: "/chat/sess-1/message", body: map[string]string{"user_input": strings.Repeat("a", 5000)}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			var body []byte
			if tt.raw != "" {
				r, err := http.Post(srv.URL+tt.path, "application/json", strings.NewReader(tt.raw))
				require.NoError(t, err)
				defer r.Body.Close()
				resp = r
			} else {
				resp, body = do(t, tt.method, srv.URL+tt.path, tt.body)
			}
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestServer_SubscribeEvents(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/convos", signup(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/chat/start", domain.StartRequest{ConvoID: "signup"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/chat/sess-1/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	lines := bufio.NewScanner(stream.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	resp, _ = do(t, http.MethodPost, srv.URL+"/chat/sess-1/message", map[string]string{"user_input": "2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	var turn domain.TurnResponse
	require.NoError(t, json.Unmarshal([]byte(data), &turn))
	assert.Equal(t, "bye", turn.NodeID)
	assert.True(t, turn.Completed)
}

func TestStreamManager(t *testing.T) {
	sm := convohttp.NewStreamManager()
	ch, cancel := sm.Subscribe("s1")
	sm.Broadcast("s1", "hello")
	sm.Broadcast("s2", "ignored")
	assert.Equal(t, "hello", <-ch)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}
