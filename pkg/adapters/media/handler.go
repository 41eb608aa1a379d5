package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

// Handler implements ports.MediaHandler by dispatching on the node's action type.
type Handler struct {
	http   ports.HTTPActionClient
	email  ports.EmailSender
	ai     ports.AIAnswerer
	logger *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHTTPClient enables the service action.
func WithHTTPClient(c ports.HTTPActionClient) HandlerOption {
	return func(h *Handler) {
		h.http = c
	}
}

// WithEmailSender enables the email action.
func WithEmailSender(s ports.EmailSender) HandlerOption {
	return func(h *Handler) {
		h.email = s
	}
}

// WithAIAnswerer enables the ai_service action.
func WithAIAnswerer(a ports.AIAnswerer) HandlerOption {
	return func(h *Handler) {
		h.ai = a
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates a Handler.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle forwards the media according to job.Config.
func (h *Handler) Handle(ctx context.Context, job ports.MediaJob) (*ports.MediaResult, error) {
	cfg := job.Config
	switch cfg.ActionType {
	case domain.MediaService:
		return h.service(ctx, job)
	case domain.MediaEmail:
		return h.mail(ctx, job)
	case domain.MediaAIService:
		return h.askAI(ctx, job)
	default:
		// ocr and other only acknowledge the upload.
		return &ports.MediaResult{Summary: fmt.Sprintf("Processed %s via %s", job.Ref, cfg.ActionType)}, nil
	}
}

func (h *Handler) service(ctx context.Context, job ports.MediaJob) (*ports.MediaResult, error) {
	svc := job.Config.Service
	if svc == nil {
		return nil, fmt.Errorf("service config missing for service action")
	}
	if h.http == nil {
		return nil, fmt.Errorf("no HTTP client configured")
	}

	fields := make(map[string]domain.Value, len(svc.Input))
	for _, name := range svc.Input {
		v, ok := job.Context[name]
		if !ok {
			h.logger.Warn("input variable not found in session context", "session_id", job.SessionID, "variable", name)
			continue
		}
		fields[name] = v
	}

	method := svc.HTTPMethod()
	if method != "POST" && method != "PUT" {
		return nil, fmt.Errorf("method %s not supported for media upload", method)
	}

	resp, err := h.http.Do(ctx, ports.HTTPRequest{
		Method:  method,
		URL:     svc.URL,
		Headers: svc.Headers,
		Body:    fields,
		Timeout: svc.TimeoutDuration(),
		File:    &ports.FileUpload{Field: "file", Path: job.Handle.Path, Name: job.Handle.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("service upload failed: %w", err)
	}

	outputs := domain.Context{}
	for _, name := range svc.Output {
		if v, ok := resp.Body.Find(name); ok {
			outputs[name] = v
		} else {
			h.logger.Warn("output variable not found in API response", "session_id", job.SessionID, "variable", name)
		}
	}
	return &ports.MediaResult{
		Summary: fmt.Sprintf("Forwarded to service: Success %d", resp.StatusCode),
		Outputs: outputs,
	}, nil
}

func (h *Handler) mail(ctx context.Context, job ports.MediaJob) (*ports.MediaResult, error) {
	cfg := job.Config.Email
	if cfg == nil {
		return nil, fmt.Errorf("email config missing for email action")
	}
	if h.email == nil {
		return nil, fmt.Errorf("no email sender configured")
	}
	err := h.email.Send(ctx, ports.Email{
		From:        cfg.From,
		To:          cfg.To,
		Subject:     cfg.Subject,
		Body:        cfg.Body,
		Attachments: []ports.Attachment{{Path: job.Handle.Path, Name: job.Handle.Name}},
		SMTP:        cfg,
	})
	if err != nil {
		return nil, err
	}
	return &ports.MediaResult{Summary: "Emailed to " + cfg.To}, nil
}

func (h *Handler) askAI(ctx context.Context, job ports.MediaJob) (*ports.MediaResult, error) {
	cfg := job.Config.AIService
	if cfg == nil {
		return nil, fmt.Errorf("AI service config missing for ai_service action")
	}
	if h.ai == nil {
		return nil, fmt.Errorf("no AI answerer configured")
	}

	data, err := os.ReadFile(job.Handle.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}

	q := ports.AIQuery{
		SessionID:    job.SessionID,
		Query:        cfg.Query,
		SystemPrompt: cfg.SystemMessage,
		Model:        cfg.LLMModel,
		Provider:     cfg.LLMProvider,
		Temperature:  cfg.Temperature,
		ImageBase64:  base64.StdEncoding.EncodeToString(data),
		Metadata:     cfg.Metadata,
	}
	if cfg.IncludeChatHistory {
		limit := cfg.MaxHistoryMessages
		if limit <= 0 {
			limit = domain.DefaultMaxHistoryMessages
		}
		history := job.History
		if len(history) > limit {
			history = history[len(history)-limit:]
		}
		q.History = history
	}

	answer, err := h.ai.Answer(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to process media with AI service: %w", err)
	}
	return &ports.MediaResult{Summary: answer}, nil
}
