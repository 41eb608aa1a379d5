package ports

import (
	"context"

	"github.com/aretw0/convo/pkg/domain"
)

// SessionStore persists sessions between turns. Save is a full replace.
type SessionStore interface {
	// Save persists the session under its ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns all active session IDs.
	List(ctx context.Context) ([]string, error)
}

// DefinitionStore loads and saves convo definitions.
type DefinitionStore interface {
	// Save stores the definition under its ID, replacing any previous version.
	Save(ctx context.Context, def *domain.Definition) error

	// Load retrieves a definition.
	// Returns domain.ErrConvoNotFound if it does not exist.
	Load(ctx context.Context, convoID string) (*domain.Definition, error)

	// Delete removes a definition.
	Delete(ctx context.Context, convoID string) error

	// List returns all stored definition IDs.
	List(ctx context.Context) ([]string, error)
}
