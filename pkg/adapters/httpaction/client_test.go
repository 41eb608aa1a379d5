package httpaction_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/convo/pkg/adapters/httpaction"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PostJSON(t *testing.T) {
	var got map[string]any
	var contentType, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":{"ticket_id":"T-1"}}`))
	}))
	defer srv.Close()

	resp, err := httpaction.New().Do(context.Background(), ports.HTTPRequest{
		Method:  "post",
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer x"},
		Body:    map[string]domain.Value{"email": domain.String("a@b.co"), "age": domain.Int(30)},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "Bearer x", auth)
	assert.Equal(t, map[string]any{"email": "a@b.co", "age": float64(30)}, got)

	ticket, ok := resp.Body.Find("ticket_id")
	require.True(t, ok)
	assert.Equal(t, "T-1", ticket.Text())
}

func TestClient_GetSendsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "42", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte(`plain text`))
	}))
	defer srv.Close()

	resp, err := httpaction.New().Do(context.Background(), ports.HTTPRequest{
		Method: "GET",
		URL:    srv.URL,
		Body:   map[string]domain.Value{"order": domain.Int(42)},
	})
	require.NoError(t, err)
	assert.Equal(t, "plain text", resp.Body.Text())
}

func TestClient_Multipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "s1", r.FormValue("session_id"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "photo.jpg", hdr.Filename)
		assert.Equal(t, "jpeg-bytes", string(data))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	resp, err := httpaction.New().Do(context.Background(), ports.HTTPRequest{
		URL:  srv.URL,
		Body: map[string]domain.Value{"session_id": domain.String("s1")},
		File: &ports.FileUpload{Path: path},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, resp.Body.IsNull())
}

func TestClient_Errors(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer failing.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name   string
		req    ports.HTTPRequest
		kind   domain.CollaboratorKind
		status int
	}{
		{"Status", ports.HTTPRequest{URL: failing.URL}, domain.KindStatus, http.StatusBadGateway},
		{"Timeout", ports.HTTPRequest{URL: slow.URL, Timeout: 50 * time.Millisecond}, domain.KindTimeout, 0},
		{"Transport", ports.HTTPRequest{URL: closedURL}, domain.KindTransport, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := httpaction.New().Do(context.Background(), tt.req)
			var cerr *domain.CollaboratorError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.kind, cerr.Kind)
			assert.Equal(t, tt.status, cerr.StatusCode)
		})
	}
}
