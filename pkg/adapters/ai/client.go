// Package ai is an HTTP client for the answer service used by ai_chat nodes
// and ai_service media actions.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

// FallbackAnswer is returned when the service answers without an "answer" field.
const FallbackAnswer = "I apologize, but I couldn't generate a response."

// Config configures the answer service client.
type Config struct {
	BaseURL string
	// Token is a static bearer token. When empty, Username and Password are
	// exchanged for one at /api/v1/auth/login.
	Token    string
	Username string
	Password string
	Timeout  time.Duration
}

// ConfigFromEnv reads CONVO_AI_* variables.
func ConfigFromEnv() Config {
	timeout := 60
	if v, err := strconv.Atoi(os.Getenv("CONVO_AI_TIMEOUT_SECONDS")); err == nil && v > 0 {
		timeout = v
	}
	return Config{
		BaseURL:  strings.TrimSpace(os.Getenv("CONVO_AI_URL")),
		Token:    strings.TrimSpace(os.Getenv("CONVO_AI_TOKEN")),
		Username: strings.TrimSpace(os.Getenv("CONVO_AI_USER")),
		Password: os.Getenv("CONVO_AI_PASSWORD"),
		Timeout:  time.Duration(timeout) * time.Second,
	}
}

// Client implements ports.AIAnswerer.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New validates cfg and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing CONVO_AI_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		token:  cfg.Token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryPayload struct {
	SessionID          string           `json:"session_id"`
	Query              string           `json:"query"`
	ChatHistory        []historyMessage `json:"chat_history,omitempty"`
	SystemMessage      string           `json:"system_message,omitempty"`
	LLMModel           string           `json:"llm_model,omitempty"`
	LLMProvider        string           `json:"llm_provider,omitempty"`
	Temperature        *float64         `json:"temperature,omitempty"`
	MaxTokens          *int             `json:"max_tokens,omitempty"`
	ImageBase64        string           `json:"image_base64,omitempty"`
	IncludeChatHistory bool             `json:"include_chat_history"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
}

// Answer posts the query to /api/v1/query/{query_type}.
func (c *Client) Answer(ctx context.Context, q ports.AIQuery) (string, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}

	payload := queryPayload{
		SessionID:          q.SessionID,
		Query:              q.Query,
		SystemMessage:      q.SystemPrompt,
		LLMModel:           q.Model,
		LLMProvider:        q.Provider,
		Temperature:        q.Temperature,
		MaxTokens:          q.MaxTokens,
		ImageBase64:        q.ImageBase64,
		IncludeChatHistory: len(q.History) > 0,
	}
	for _, h := range q.History {
		payload.ChatHistory = append(payload.ChatHistory, historyMessage{Role: string(h.Role), Content: h.Content})
	}
	if len(q.Metadata) > 0 {
		payload.Metadata = domain.Context(q.Metadata).Plain()
	}

	queryType := q.QueryType
	if queryType == "" {
		queryType = "agent"
	}

	var result struct {
		Answer *string `json:"answer"`
	}
	if err := c.post(ctx, "/api/v1/query/"+queryType, token, payload, &result); err != nil {
		return "", err
	}
	if result.Answer == nil {
		return FallbackAnswer, nil
	}
	return *result.Answer, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" || c.cfg.Username == "" {
		return c.token, nil
	}

	var login struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"email": c.cfg.Username, "password": c.cfg.Password}
	if err := c.post(ctx, "/api/v1/auth/login", "", body, &login); err != nil {
		return "", err
	}
	if login.AccessToken == "" {
		return "", domain.NewCollaboratorError("ai login", domain.KindService, errors.New("no access_token in login response"))
	}
	c.token = login.AccessToken
	return c.token, nil
}

func (c *Client) post(ctx context.Context, path, token string, in, out any) error {
	op := "ai " + strings.TrimPrefix(path, "/api/v1/")
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("AI service request failed", "op", op, "error", err)
		return domain.NewCollaboratorError(op, classify(err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewCollaboratorError(op, classify(err), err)
	}
	c.logger.Debug("AI service responded", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized && token != "" && c.cfg.Username != "" {
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
		}
		return &domain.CollaboratorError{
			Op:         op,
			Kind:       domain.KindService,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("AI service returned an error: %s", strings.TrimSpace(string(raw))),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.NewCollaboratorError(op, domain.KindService, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func classify(err error) domain.CollaboratorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.KindTimeout
	}
	return domain.KindConnectivity
}
