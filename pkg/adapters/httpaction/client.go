// Package httpaction executes api_call actions over net/http.
package httpaction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Client implements ports.HTTPActionClient.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New creates a client. Per-request timeouts come from ports.HTTPRequest.
func New(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{},
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends the request. GET bodies become query parameters; a File turns the
// body into multipart form fields.
func (c *Client) Do(ctx context.Context, req ports.HTTPRequest) (*ports.HTTPResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := c.build(ctx, method, req)
	if err != nil {
		return nil, domain.NewCollaboratorError("api_call", domain.KindTransport, err)
	}

	c.logger.Debug("Making HTTP request", "method", method, "url", req.URL)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, domain.NewCollaboratorError("api_call", classify(err), err)
	}
	defer resp.Body.Close()
	c.logger.Debug("Received HTTP response", "status", resp.Status)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewCollaboratorError("api_call", classify(err), fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.CollaboratorError{
			Op:         "api_call",
			Kind:       domain.KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, truncate(string(data), 200)),
		}
	}

	return &ports.HTTPResponse{StatusCode: resp.StatusCode, Body: decodeBody(data)}, nil
}

func (c *Client) build(ctx context.Context, method string, req ports.HTTPRequest) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	target := req.URL

	switch {
	case req.File != nil:
		buf, ct, err := multipartBody(req.Body, req.File)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case method == http.MethodGet:
		if len(req.Body) > 0 {
			u, err := url.Parse(req.URL)
			if err != nil {
				return nil, fmt.Errorf("invalid url: %w", err)
			}
			q := u.Query()
			for k, v := range req.Body {
				q.Set(k, v.Text())
			}
			u.RawQuery = q.Encode()
			target = u.String()
		}
	default:
		payload := make(map[string]any, len(req.Body))
		for k, v := range req.Body {
			payload[k] = v.Any()
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	// multipart needs its own boundary, whatever the node headers say.
	if req.File != nil || (contentType != "" && httpReq.Header.Get("Content-Type") == "") {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

func multipartBody(fields map[string]domain.Value, file *ports.FileUpload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for k, v := range fields {
		if err := w.WriteField(k, v.Text()); err != nil {
			return nil, "", err
		}
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	field := file.Field
	if field == "" {
		field = "file"
	}
	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to copy upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// decodeBody parses JSON and falls back to the raw text.
func decodeBody(data []byte) domain.Value {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Null()
	}
	var v domain.Value
	if err := json.Unmarshal(data, &v); err != nil {
		return domain.String(string(data))
	}
	return v
}

func classify(err error) domain.CollaboratorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.KindTimeout
	}
	return domain.KindTransport
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
