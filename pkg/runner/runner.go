package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/convo/pkg/domain"
)

// Conversation is the part of the engine the runner drives.
type Conversation interface {
	StartSession(ctx context.Context, req domain.StartRequest) (*domain.TurnResponse, error)
	SendMessage(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Runner handles the execution loop of a session using the provided IO.
type Runner struct {
	handler   IOHandler
	logger    *slog.Logger
	sessionID string
	signals   bool
	exitWords []string
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithHandler configures the IOHandler (default: TextHandler on stdin/stdout).
func WithHandler(h IOHandler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSessionID resumes an existing session instead of starting a new one.
// If the session cannot be found, a new one is started.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.sessionID = id
	}
}

// WithSignals makes SIGINT/SIGTERM end the loop gracefully.
func WithSignals(enabled bool) Option {
	return func(r *Runner) {
		r.signals = enabled
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		exitWords: []string{"/quit", "/exit"},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run drives a session until it completes, input ends or ctx is cancelled.
// It returns the id of the session it ran.
func (r *Runner) Run(ctx context.Context, engine Conversation, start domain.StartRequest) (string, error) {
	if r.signals {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	resp, err := r.open(ctx, engine, start)
	if err != nil {
		return "", err
	}
	sessionID := resp.SessionID

	for {
		if resp != nil {
			if err := r.handler.Output(ctx, resp); err != nil {
				return sessionID, fmt.Errorf("output error: %w", err)
			}
			if resp.Completed {
				return sessionID, nil
			}
		}

		req, err := r.handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				r.logger.Debug("input closed", "session_id", sessionID)
				return sessionID, nil
			}
			if errors.Is(err, ErrInputTooLarge) || errors.Is(err, ErrInvalidUTF8) {
				_ = r.handler.SystemOutput(ctx, err.Error())
				resp = nil
				continue
			}
			return sessionID, fmt.Errorf("input error: %w", err)
		}
		if r.isExit(req.Input) {
			return sessionID, nil
		}

		req.SessionID = sessionID
		resp, err = engine.SendMessage(ctx, req)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrConvoNotFound) {
				return sessionID, err
			}
			r.logger.Error("turn failed", "session_id", sessionID, "err", err)
			if sysErr := r.handler.SystemOutput(ctx, fmt.Sprintf("turn failed: %v", err)); sysErr != nil {
				return sessionID, sysErr
			}
			resp = nil
		}
	}
}

// open resumes the configured session or starts a new one.
func (r *Runner) open(ctx context.Context, engine Conversation, start domain.StartRequest) (*domain.TurnResponse, error) {
	if r.sessionID != "" {
		sess, err := engine.GetSession(ctx, r.sessionID)
		switch {
		case err == nil && !sess.Completed:
			r.logger.Info("resuming session", "session_id", sess.ID, "node_id", sess.CurrentNodeID)
			if err := r.handler.SystemOutput(ctx, fmt.Sprintf("Resuming session %s at %s", sess.ID, sess.CurrentNodeID)); err != nil {
				return nil, err
			}
			return &domain.TurnResponse{SessionID: sess.ID, ConvoID: sess.ConvoID, NodeID: sess.CurrentNodeID}, nil
		case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	resp, err := engine.StartSession(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return resp, nil
}

func (r *Runner) isExit(input string) bool {
	input = strings.ToLower(strings.TrimSpace(input))
	for _, w := range r.exitWords {
		if input == w {
			return true
		}
	}
	return false
}
