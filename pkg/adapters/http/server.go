package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/runner"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Engine is the convo facade served over HTTP.
type Engine interface {
	Validate(def *domain.Definition) ([]string, error)
	CreateConvo(ctx context.Context, def *domain.Definition) (*domain.Definition, error)
	UpdateConvo(ctx context.Context, def *domain.Definition) (*domain.Definition, error)
	GetConvo(ctx context.Context, convoID string) (*domain.Definition, error)
	ListConvos(ctx context.Context, tenantUID string) ([]*domain.Definition, error)
	DeleteConvo(ctx context.Context, convoID string) error
	Graph(ctx context.Context, convoID, sessionID string) (string, error)

	StartSession(ctx context.Context, req domain.StartRequest) (*domain.TurnResponse, error)
	SendMessage(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	EndSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]string, error)
}

// Server holds the HTTP handlers.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger  *slog.Logger
	metrics http.Handler
	version string
	router  routers.Router
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates the HTTP handler for the engine. Requests under /convos
// and /chat are validated against the embedded OpenAPI document.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	router, err := loadRouter()
	if err != nil {
		panic(err)
	}
	s.router = router

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Get("/swagger", s.GetDocs)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/convos", func(r chi.Router) {
		r.Use(s.validateRequest)
		r.Get("/", s.ListConvos)
		r.Post("/", s.CreateConvo)
		r.Post("/validate", s.ValidateConvo)
		r.Get("/{convoID}", s.GetConvo)
		r.Put("/{convoID}", s.UpdateConvo)
		r.Delete("/{convoID}", s.DeleteConvo)
		r.Get("/{convoID}/graph", s.GetGraph)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Use(s.validateRequest)
		r.Get("/", s.ListSessions)
		r.Post("/start", s.StartSession)
		r.Get("/{sessionID}", s.GetSession)
		r.Post("/{sessionID}/message", s.SendMessage)
		r.Post("/{sessionID}/end", s.EndSession)
		r.Get("/{sessionID}/events", s.SubscribeEvents)
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// ListConvos handles GET /convos?tenant_uid=.
func (s *Server) ListConvos(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.queryParam(w, r, "tenant_uid")
	if !ok {
		return
	}
	defs, err := s.Engine.ListConvos(r.Context(), tenant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, defs)
}

// CreateConvo handles POST /convos.
func (s *Server) CreateConvo(w http.ResponseWriter, r *http.Request) {
	var def domain.Definition
	if !s.decode(w, r, &def) {
		return
	}
	created, err := s.Engine.CreateConvo(r.Context(), &def)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

// ValidateConvo handles POST /convos/validate. It never stores anything.
func (s *Server) ValidateConvo(w http.ResponseWriter, r *http.Request) {
	var def domain.Definition
	if !s.decode(w, r, &def) {
		return
	}
	warnings, err := s.Engine.Validate(&def)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"valid": true, "warnings": warnings})
}

// GetConvo handles GET /convos/{convoID}.
func (s *Server) GetConvo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "convoID")
	if !ok {
		return
	}
	def, err := s.Engine.GetConvo(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, def)
}

// UpdateConvo handles PUT /convos/{convoID}. The path id wins over the body.
func (s *Server) UpdateConvo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "convoID")
	if !ok {
		return
	}
	var def domain.Definition
	if !s.decode(w, r, &def) {
		return
	}
	def.ID = id
	updated, err := s.Engine.UpdateConvo(r.Context(), &def)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// DeleteConvo handles DELETE /convos/{convoID}.
func (s *Server) DeleteConvo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "convoID")
	if !ok {
		return
	}
	if err := s.Engine.DeleteConvo(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /convos/{convoID}/graph?session_id=, returning Mermaid text.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "convoID")
	if !ok {
		return
	}
	sessionID, ok := s.queryParam(w, r, "session_id")
	if !ok {
		return
	}
	out, err := s.Engine.Graph(r.Context(), id, sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

// ListSessions handles GET /chat.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.ListSessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

// StartSession handles POST /chat/start.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var req domain.StartRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ConvoID == "" {
		s.writeMessage(w, http.StatusBadRequest, "convo_id is required")
		return
	}
	resp, err := s.Engine.StartSession(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(resp)
	s.writeJSON(w, http.StatusCreated, resp)
}

// SendMessage handles POST /chat/{sessionID}/message.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathParam(w, r, "sessionID")
	if !ok {
		return
	}
	var req domain.TurnRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.SessionID = sessionID

	clean, err := runner.SanitizeInput(req.Input)
	if err != nil {
		s.logger.Warn("input rejected", "session_id", req.SessionID, "err", err, "size", len(req.Input))
		s.writeMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid input: %v", err))
		return
	}
	req.Input = clean

	resp, err := s.Engine.SendMessage(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(resp)
	s.writeJSON(w, http.StatusOK, resp)
}

// GetSession handles GET /chat/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathParam(w, r, "sessionID")
	if !ok {
		return
	}
	sess, err := s.Engine.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// EndSession handles POST /chat/{sessionID}/end.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathParam(w, r, "sessionID")
	if !ok {
		return
	}
	sess, err := s.Engine.EndSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// SubscribeEvents handles GET /chat/{sessionID}/events (SSE). Every turn
// response of the session is pushed as a data frame.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeMessage(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	sessionID, ok := s.pathParam(w, r, "sessionID")
	if !ok {
		return
	}
	if _, err := s.Engine.GetSession(r.Context(), sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) publish(resp *domain.TurnResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode turn for streaming", "session_id", resp.SessionID, "err", err)
		return
	}
	s.Streams.Broadcast(resp.SessionID, string(data))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type errorBody struct {
	Error  string         `json:"error"`
	Issues []domain.Issue `json:"issues,omitempty"`
}

// writeError maps the error taxonomy onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		defErr    *domain.DefinitionError
		collabErr *domain.CollaboratorError
	)
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	switch {
	case errors.Is(err, domain.ErrConvoNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConvoExists):
		status = http.StatusConflict
	case errors.As(err, &defErr):
		status = http.StatusUnprocessableEntity
		body.Issues = defErr.Issues
	case errors.As(err, &collabErr):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// StreamManager fans turn responses out to SSE subscribers per session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
	}
}

// Subscribe registers a buffered channel for the session. The returned
// function unregisters and closes it.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Broadcast delivers msg to every subscriber of the session. Slow clients
// whose buffer is full miss the message.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
		}
	}
}
