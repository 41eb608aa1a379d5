package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine is the convo facade exposed to MCP clients.
type Engine interface {
	Validate(def *domain.Definition) ([]string, error)
	GetConvo(ctx context.Context, convoID string) (*domain.Definition, error)
	ListConvos(ctx context.Context, tenantUID string) ([]*domain.Definition, error)
	Graph(ctx context.Context, convoID, sessionID string) (string, error)
	StartSession(ctx context.Context, req domain.StartRequest) (*domain.TurnResponse, error)
	SendMessage(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// StartArgs are the arguments of the start_session tool.
type StartArgs struct {
	ConvoID   string `json:"convo_id"`
	UserID    string `json:"user_id,omitempty"`
	TenantUID string `json:"tenant_uid,omitempty"`
	// Context is a JSON object seeding the session context.
	Context string `json:"context,omitempty"`
}

// MessageArgs are the arguments of the send_message tool.
type MessageArgs struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
	MediaURL  string `json:"media_url,omitempty"`
}

// ValidateArgs are the arguments of the validate_convo tool.
type ValidateArgs struct {
	Definition string `json:"definition"`
}

// ValidateResult reports a validation outcome. Structural problems are
// returned as Issues rather than a tool error so clients can fix them.
type ValidateResult struct {
	Valid    bool           `json:"valid"`
	Warnings []string       `json:"warnings"`
	Issues   []domain.Issue `json:"issues,omitempty"`
}

// Server wraps the convo Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("convo-mcp", version),
		logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a conversation on a convo and return the first turn."),
		mcp.WithString("convo_id", mcp.Required(), mcp.Description("ID of the convo to run")),
		mcp.WithString("user_id", mcp.Description("Caller identity stored on the session")),
		mcp.WithString("tenant_uid", mcp.Description("Tenant scope")),
		mcp.WithString("context", mcp.Description("JSON object with initial context variables")),
		mcp.WithOutputSchema[domain.TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message to a session and return the resulting turn."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session returned by start_session")),
		mcp.WithString("input", mcp.Required(), mcp.Description("User message; 'menu', 'back' and 'restart' navigate")),
		mcp.WithString("media_url", mcp.Description("Reference to an uploaded media object")),
		mcp.WithOutputSchema[domain.TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleMessage))

	s.mcpServer.AddTool(mcp.NewTool("validate_convo",
		mcp.WithDescription("Validate a convo definition (JSON) without storing it."),
		mcp.WithString("definition", mcp.Required(), mcp.Description("The convo definition as JSON")),
		mcp.WithOutputSchema[ValidateResult](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Render a convo as a Mermaid flowchart, optionally highlighting a session's path."),
		mcp.WithString("convo_id", mcp.Required(), mcp.Description("ID of the convo")),
		mcp.WithString("session_id", mcp.Description("Session to overlay")),
	), s.handleGraph)
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (domain.TurnResponse, error) {
	req := domain.StartRequest{ConvoID: args.ConvoID, UserID: args.UserID, TenantUID: args.TenantUID}
	if args.Context != "" {
		if err := json.Unmarshal([]byte(args.Context), &req.Context); err != nil {
			return domain.TurnResponse{}, fmt.Errorf("context must be a JSON object: %w", err)
		}
	}
	resp, err := s.engine.StartSession(ctx, req)
	if err != nil {
		return domain.TurnResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return *resp, nil
}

func (s *Server) handleMessage(ctx context.Context, _ mcp.CallToolRequest, args MessageArgs) (domain.TurnResponse, error) {
	clean, err := runner.SanitizeInput(args.Input)
	if err != nil {
		s.logger.Warn("MCP send_message: input rejected", "err", err, "size", len(args.Input))
		return domain.TurnResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	resp, err := s.engine.SendMessage(ctx, domain.TurnRequest{
		SessionID: args.SessionID,
		Input:     clean,
		MediaURL:  args.MediaURL,
	})
	if err != nil {
		return domain.TurnResponse{}, fmt.Errorf("send failed: %w", err)
	}
	return *resp, nil
}

func (s *Server) handleValidate(_ context.Context, _ mcp.CallToolRequest, args ValidateArgs) (ValidateResult, error) {
	var def domain.Definition
	if err := json.Unmarshal([]byte(args.Definition), &def); err != nil {
		return ValidateResult{}, fmt.Errorf("definition is not valid JSON: %w", err)
	}
	warnings, err := s.engine.Validate(&def)
	var defErr *domain.DefinitionError
	switch {
	case errors.As(err, &defErr):
		return ValidateResult{Valid: false, Warnings: []string{}, Issues: defErr.Issues}, nil
	case err != nil:
		return ValidateResult{}, err
	}
	if warnings == nil {
		warnings = []string{}
	}
	return ValidateResult{Valid: true, Warnings: warnings}, nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.engine.Graph(ctx, request.GetString("convo_id", ""), request.GetString("session_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph failed: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("convo://convos", "Available convos",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		defs, err := s.engine.ListConvos(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list convos: %w", err)
		}
		type summary struct {
			ID          string `json:"id"`
			Name        string `json:"name,omitempty"`
			Description string `json:"description,omitempty"`
			Version     string `json:"version,omitempty"`
		}
		out := make([]summary, 0, len(defs))
		for _, d := range defs {
			out = append(out, summary{ID: d.ID, Name: d.Name, Description: d.Description, Version: d.Version})
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "convo://convos",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
