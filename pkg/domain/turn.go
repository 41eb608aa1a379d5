package domain

// StartRequest opens a new session on a convo.
type StartRequest struct {
	ConvoID   string  `json:"convo_id"`
	UserID    string  `json:"user_id,omitempty"`
	TenantUID string  `json:"tenant_uid,omitempty"`
	Context   Context `json:"context,omitempty"`
}

// TurnRequest carries one user message into a session.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Input     string `json:"user_input"`
	// MediaURL references an uploaded object; it is stored in context as media_url.
	MediaURL string `json:"media_url,omitempty"`
}

// Option is a numbered choice offered by a menu node.
type Option struct {
	Value        string `json:"value"`
	Label        string `json:"label"`
	TargetNodeID string `json:"target_node_id"`
}

// TurnResponse is the transport-agnostic result of a turn.
type TurnResponse struct {
	SessionID    string           `json:"session_id"`
	ConvoID      string           `json:"convo_id,omitempty"`
	Message      string           `json:"message"`
	NodeID       string           `json:"node_id"`
	NodeType     NodeType         `json:"node_type"`
	ExpectsInput bool             `json:"expects_input"`
	InputType    string           `json:"input_type,omitempty"`
	InputField   string           `json:"input_field,omitempty"`
	Options      []Option         `json:"options"`
	Completed    bool             `json:"completed"`
	Context      Context          `json:"context"`
	Metadata     map[string]Value `json:"metadata,omitempty"`
}
