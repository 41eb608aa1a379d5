package convo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/convo/internal/presentation/graph"
	"github.com/aretw0/convo/internal/runtime"
	"github.com/aretw0/convo/internal/validator"
	"github.com/aretw0/convo/pkg/adapters/memory"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
	"github.com/aretw0/convo/pkg/session"
	"github.com/google/uuid"
)

// Version is the library and CLI version. Overridden at link time for releases.
var Version = "0.1.0-dev"

// Engine is the high-level entry point for the convo library. It owns the
// definition and session stores and runs each turn of the runtime under the
// session lock.
type Engine struct {
	runtime  *runtime.Engine
	defs     ports.DefinitionStore
	sessions *session.Manager

	sessionStore ports.SessionStore
	locker       ports.DistributedLocker
	lockTTL      time.Duration
	runtimeOpts  []runtime.Option
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithDefinitionStore sets where convo definitions live (default: in memory).
func WithDefinitionStore(store ports.DefinitionStore) Option {
	return func(e *Engine) {
		e.defs = store
	}
}

// WithSessionStore sets where sessions are persisted between turns (default: in memory).
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.sessionStore = store
	}
}

// WithLocker adds a distributed lock around every session write, for
// deployments running several engine replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithLifecycleHooks(hooks))
	}
}

// WithHTTPClient sets the collaborator used by api_call actions.
func WithHTTPClient(c ports.HTTPActionClient) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithHTTPClient(c))
	}
}

// WithEmailSender sets the collaborator used by send_email actions.
func WithEmailSender(s ports.EmailSender) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithEmailSender(s))
	}
}

// WithAIAnswerer sets the collaborator used by ai_chat nodes.
func WithAIAnswerer(a ports.AIAnswerer) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithAIAnswerer(a))
	}
}

// WithMedia sets the collaborators used by process_media nodes.
func WithMedia(f ports.MediaFetcher, h ports.MediaHandler) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMediaFetcher(f), runtime.WithMediaHandler(h))
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
	}
}

// WithIDGenerator overrides how session ids are minted (default: UUIDv4).
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// WithMaxChainHops overrides the auto-chain bound.
func WithMaxChainHops(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxChainHops(n))
	}
}

// New initializes a convo Engine. Without store options everything is kept in memory.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defs == nil {
		e.defs = memory.NewDefinitions()
	}
	if e.sessionStore == nil {
		e.sessionStore = memory.NewStore()
	}

	sessOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(e.locker))
		if e.lockTTL > 0 {
			sessOpts = append(sessOpts, session.WithLockTTL(e.lockTTL))
		}
	}
	e.sessions = session.NewManager(e.sessionStore, sessOpts...)

	runtimeOpts := append([]runtime.Option{runtime.WithLogger(e.logger)}, e.runtimeOpts...)
	e.runtime = runtime.New(runtimeOpts...)
	return e
}

// Validate checks a definition's structure without storing it. Unreachable
// nodes are returned as warnings; structural problems as *domain.DefinitionError.
func (e *Engine) Validate(def *domain.Definition) ([]string, error) {
	report, err := validator.ValidateDefinition(def)
	if err != nil {
		return nil, err
	}
	return report.Warnings(), nil
}

// CreateConvo validates and stores a new definition.
// Returns domain.ErrConvoExists if the id is taken.
func (e *Engine) CreateConvo(ctx context.Context, def *domain.Definition) (*domain.Definition, error) {
	def.ApplyDefaults()
	if err := e.check(def); err != nil {
		return nil, err
	}
	if _, err := e.defs.Load(ctx, def.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrConvoExists, def.ID)
	} else if !errors.Is(err, domain.ErrConvoNotFound) {
		return nil, fmt.Errorf("failed to check convo existence: %w", err)
	}

	now := e.now()
	def.CreatedAt = now
	def.UpdatedAt = now
	if err := e.defs.Save(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to save convo: %w", err)
	}
	e.logger.Info("convo created", "convo_id", def.ID, "nodes", len(def.Nodes))
	return def, nil
}

// UpdateConvo validates and replaces an existing definition.
// Running sessions pick the new graph up on their next turn.
func (e *Engine) UpdateConvo(ctx context.Context, def *domain.Definition) (*domain.Definition, error) {
	def.ApplyDefaults()
	if err := e.check(def); err != nil {
		return nil, err
	}
	existing, err := e.defs.Load(ctx, def.ID)
	if err != nil {
		return nil, err
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = e.now()
	if err := e.defs.Save(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to save convo: %w", err)
	}
	e.logger.Info("convo updated", "convo_id", def.ID, "nodes", len(def.Nodes))
	return def, nil
}

// GetConvo loads a definition.
func (e *Engine) GetConvo(ctx context.Context, convoID string) (*domain.Definition, error) {
	return e.defs.Load(ctx, convoID)
}

// ListConvos returns every stored definition, restricted to tenantUID when non-empty.
func (e *Engine) ListConvos(ctx context.Context, tenantUID string) ([]*domain.Definition, error) {
	ids, err := e.defs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list convos: %w", err)
	}
	out := make([]*domain.Definition, 0, len(ids))
	for _, id := range ids {
		def, err := e.defs.Load(ctx, id)
		if errors.Is(err, domain.ErrConvoNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if tenantUID != "" && def.TenantUID != tenantUID {
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

// DeleteConvo removes a definition. Existing sessions on it fail their next turn.
func (e *Engine) DeleteConvo(ctx context.Context, convoID string) error {
	if _, err := e.defs.Load(ctx, convoID); err != nil {
		return err
	}
	return e.defs.Delete(ctx, convoID)
}

// StartSession opens a session on a convo and renders its start node,
// chaining through pass-through nodes.
func (e *Engine) StartSession(ctx context.Context, req domain.StartRequest) (*domain.TurnResponse, error) {
	def, err := e.defs.Load(ctx, req.ConvoID)
	if err != nil {
		return nil, err
	}

	sess := domain.NewSession(e.newID(), def, req.UserID, req.TenantUID, req.Context, e.now())
	resp, err := e.runtime.Start(ctx, def, sess)
	if err != nil {
		return nil, err
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	e.logger.Info("session started", "session_id", sess.ID, "convo_id", def.ID, "user_id", sess.UserID)
	return resp, nil
}

// SendMessage processes one user message. The session is loaded, advanced
// and saved under its lock. A message to a completed session starts it over.
func (e *Engine) SendMessage(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	var resp *domain.TurnResponse
	_, err := e.sessions.Update(ctx, req.SessionID, func(ctx context.Context, sess *domain.Session) error {
		def, err := e.defs.Load(ctx, sess.ConvoID)
		if err != nil {
			return err
		}

		if sess.Completed {
			e.logger.Info("restarting completed session", "session_id", sess.ID, "convo_id", def.ID)
			*sess = *domain.NewSession(sess.ID, def, sess.UserID, sess.TenantUID, nil, e.now())
			if req.MediaURL != "" {
				sess.Context[domain.KeyMediaURL] = domain.String(req.MediaURL)
			}
			resp, err = e.runtime.Start(ctx, def, sess)
			return err
		}

		if req.MediaURL != "" {
			sess.Context[domain.KeyMediaURL] = domain.String(req.MediaURL)
		}
		resp, err = e.runtime.Turn(ctx, def, sess, req.Input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetSession returns the persisted state of a session.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.sessions.Load(ctx, sessionID)
}

// EndSession marks a session completed.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.sessions.Update(ctx, sessionID, func(_ context.Context, sess *domain.Session) error {
		sess.Completed = true
		sess.LastActivity = e.now()
		return nil
	})
}

// DeleteSession removes a session from the store.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}

// ListSessions returns the ids of all stored sessions.
func (e *Engine) ListSessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Graph renders a convo as a Mermaid flowchart. When sessionID is set, the
// nodes that session visited are highlighted.
func (e *Engine) Graph(ctx context.Context, convoID, sessionID string) (string, error) {
	def, err := e.defs.Load(ctx, convoID)
	if err != nil {
		return "", err
	}
	var overlay *graph.GraphOverlay
	if sessionID != "" {
		sess, err := e.sessions.Load(ctx, sessionID)
		if err != nil {
			return "", err
		}
		overlay = graph.OverlayFromSession(sess)
	}
	return graph.GenerateMermaid(def, overlay), nil
}

// check validates def and logs reachability warnings.
func (e *Engine) check(def *domain.Definition) error {
	warnings, err := e.Validate(def)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		e.logger.Warn("convo validation warning", "convo_id", def.ID, "warning", w)
	}
	return nil
}

