package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrConvoNotFound is returned when a convo ID cannot be found in the store.
var ErrConvoNotFound = errors.New("convo not found")

// ErrConvoExists is returned when creating a convo whose ID is already taken.
var ErrConvoExists = errors.New("convo already exists")

// ErrNodeNotFound is returned when a node referenced at runtime is missing from its graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrChainLimit is recorded when an auto-chain walk exceeds MaxChainHops.
var ErrChainLimit = errors.New("auto-chain hop limit exceeded")

// Issue is a single structural problem found in a definition.
type Issue struct {
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return i.Message
	}
	return fmt.Sprintf("node %q: %s", i.NodeID, i.Message)
}

// DefinitionError reports a structurally invalid graph. It is raised at
// validation time, never during a turn.
type DefinitionError struct {
	ConvoID string
	Issues  []Issue
}

func (e *DefinitionError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("invalid convo %q: %s", e.ConvoID, strings.Join(msgs, "; "))
}

// UserInputError is a rejected input. The engine converts it into the turn's
// message and leaves the session where it was.
type UserInputError struct {
	NodeID  string
	Rule    string
	Message string
}

func (e *UserInputError) Error() string {
	return e.Message
}

// CollaboratorKind classifies a failure of an external collaborator.
type CollaboratorKind string

const (
	KindStatus       CollaboratorKind = "status"
	KindTransport    CollaboratorKind = "transport"
	KindTimeout      CollaboratorKind = "timeout"
	KindConnectivity CollaboratorKind = "connectivity"
	KindService      CollaboratorKind = "service"
)

// CollaboratorError wraps a failure of persistence, HTTP actions, AI or media.
type CollaboratorError struct {
	Op         string
	Kind       CollaboratorKind
	StatusCode int
	Err        error
}

func (e *CollaboratorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// NewCollaboratorError builds a CollaboratorError.
func NewCollaboratorError(op string, kind CollaboratorKind, err error) *CollaboratorError {
	return &CollaboratorError{Op: op, Kind: kind, Err: err}
}

// InternalError marks a condition that a validated graph should never produce.
type InternalError struct {
	NodeID string
	Err    error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error at node %q: %v", e.NodeID, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
