package http_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aretw0/convo/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_OpenAPIDocument(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/yaml", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, api.Spec, body)

	resp, body = do(t, http.MethodGet, srv.URL+"/swagger", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/openapi.yaml")
}

func TestServer_RequestValidation(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/convos", signup(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		raw    string
		status int
	}{
		{name: "convo id of the wrong type", method: http.MethodPost, path: "/chat/start", raw: `{"convo_id": 5}`, status: http.StatusBadRequest},
		{name: "empty convo id", method: http.MethodPost, path: "/chat/start", raw: `{"convo_id": ""}`, status: http.StatusBadRequest},
		{name: "nodes is not a list", method: http.MethodPost, path: "/convos", raw: `{"id": "x", "nodes": "start"}`, status: http.StatusBadRequest},
		{name: "negative timeout", method: http.MethodPut, path: "/convos/signup", raw: `{"timeout_minutes": -1}`, status: http.StatusBadRequest},
		{name: "numeric user input", method: http.MethodPost, path: "/chat/ghost/message", raw: `{"user_input": 12}`, status: http.StatusBadRequest},
		{name: "missing body", method: http.MethodPost, path: "/convos/validate", raw: ``, status: http.StatusBadRequest},
		{name: "valid body reaches the handler", method: http.MethodPost, path: "/chat/ghost/message", raw: `{"user_input": "hi"}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.raw))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.status == http.StatusBadRequest {
				assert.Contains(t, string(body), "invalid request")
			}
		})
	}
}

func TestServer_PathParamsAreUnescaped(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, http.MethodPost, srv.URL+"/convos", signup(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/convos/sign%75p", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"id":"signup"`)
}
