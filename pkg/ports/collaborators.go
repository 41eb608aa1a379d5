package ports

import (
	"context"
	"time"

	"github.com/aretw0/convo/pkg/domain"
)

// FileUpload attaches a local file to an HTTP request as a multipart field.
type FileUpload struct {
	Field string
	Path  string
	Name  string
}

// HTTPRequest is a JSON-shaped outbound call. For GET the body is sent as query params.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    map[string]domain.Value
	Timeout time.Duration
	File    *FileUpload
}

// HTTPResponse is a decoded JSON response.
type HTTPResponse struct {
	StatusCode int
	Body       domain.Value
}

// HTTPActionClient executes api_call actions. Non-2xx answers and transport
// failures are returned as *domain.CollaboratorError with kind status or transport.
type HTTPActionClient interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

// AIQuery is one question to the answer service.
type AIQuery struct {
	SessionID    string
	Query        string
	History      []domain.HistoryEntry
	SystemPrompt string
	Model        string
	Provider     string
	QueryType    string
	Temperature  *float64
	MaxTokens    *int
	ImageBase64  string
	Metadata     map[string]domain.Value
}

// AIAnswerer generates answers for ai_chat nodes. Failures are
// *domain.CollaboratorError with kind timeout, connectivity or service.
type AIAnswerer interface {
	Answer(ctx context.Context, q AIQuery) (string, error)
}

// MediaHandle is a locally readable copy of a media object.
type MediaHandle struct {
	Path        string
	Name        string
	ContentType string
}

// MediaFetcher retrieves a media object by reference.
type MediaFetcher interface {
	Fetch(ctx context.Context, ref string) (*MediaHandle, error)
	// Release removes any local copy created by Fetch.
	Release(ctx context.Context, h *MediaHandle) error
}

// MediaJob is a fetched media object plus its destination.
type MediaJob struct {
	SessionID string
	Ref       string
	Handle    *MediaHandle
	Config    domain.MediaConfig
	// Context is the session context, for rendering templates in the destination config.
	Context domain.Context
	History []domain.HistoryEntry
}

// MediaResult describes what a MediaHandler did.
type MediaResult struct {
	Summary string
	// Outputs are merged into the session context.
	Outputs domain.Context
}

// MediaHandler forwards a fetched media object to its destination.
type MediaHandler interface {
	Handle(ctx context.Context, job MediaJob) (*MediaResult, error)
}

// Attachment is a file sent along with an email.
type Attachment struct {
	Path string
	Name string
}

// Email is an outbound message.
type Email struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
	// SMTP overrides the sender's server settings when non-nil.
	SMTP *domain.EmailConfig
}

// EmailSender delivers email.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}
