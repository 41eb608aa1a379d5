package domain

import "time"

// Role marks who produced a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryEntry is one message in a session transcript.
type HistoryEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	NodeID    string    `json:"node_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the persisted state of one conversation.
type Session struct {
	ID            string         `json:"session_id"`
	ConvoID       string         `json:"convo_id"`
	UserID        string         `json:"user_id,omitempty"`
	TenantUID     string         `json:"tenant_uid,omitempty"`
	CurrentNodeID string         `json:"current_node_id"`
	Context       Context        `json:"context"`
	History       []HistoryEntry `json:"history"`
	Completed     bool           `json:"completed"`
	StartedAt     time.Time      `json:"started_at"`
	LastActivity  time.Time      `json:"last_activity"`
}

// NewSession creates a session positioned at the definition's start node.
func NewSession(id string, def *Definition, userID, tenantUID string, initial Context, now time.Time) *Session {
	ctx := initial.Clone()
	if ctx == nil {
		ctx = Context{}
	}
	return &Session{
		ID:            id,
		ConvoID:       def.ID,
		UserID:        userID,
		TenantUID:     tenantUID,
		CurrentNodeID: def.StartNodeID,
		Context:       ctx,
		History:       []HistoryEntry{},
		StartedAt:     now,
		LastActivity:  now,
	}
}

// Record appends a history entry.
func (s *Session) Record(role Role, content, nodeID string, at time.Time) {
	s.History = append(s.History, HistoryEntry{
		Role:      role,
		Content:   content,
		NodeID:    nodeID,
		Timestamp: at,
	})
}

// Clone returns a deep copy so stores and callers never share mutable state.
func (s *Session) Clone() *Session {
	out := *s
	out.Context = s.Context.Clone()
	out.History = append([]HistoryEntry(nil), s.History...)
	if out.History == nil {
		out.History = []HistoryEntry{}
	}
	return &out
}
