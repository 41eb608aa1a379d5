package runner

import (
	"context"

	"github.com/aretw0/convo/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a turn to the user.
	Output(ctx context.Context, resp *domain.TurnResponse) error

	// Input reads the next message. SessionID is filled in by the runner.
	// Returns io.EOF when the user is done.
	Input(ctx context.Context) (domain.TurnRequest, error)

	// SystemOutput presents a meta-message (status, errors) distinct from
	// conversation content.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms markdown before it is written, e.g. into ANSI.
type ContentRenderer func(string) (string, error)
