package domain

// NodeType selects how the turn engine treats a node.
type NodeType string

const (
	NodeStart        NodeType = "start"
	NodeMessage      NodeType = "message"
	NodeMenu         NodeType = "menu"
	NodeQuestion     NodeType = "question"
	NodeAction       NodeType = "action"
	NodeCondition    NodeType = "condition"
	NodeAPICall      NodeType = "api_call"
	NodeJump         NodeType = "jump"
	NodeCollectInput NodeType = "collect_input"
	NodeValidation   NodeType = "validation"
	NodeAIChat       NodeType = "ai_chat"
	NodeProcessMedia NodeType = "process_media"
	NodeEnd          NodeType = "end"
)

// NodeTypes lists every known node type.
var NodeTypes = []NodeType{
	NodeStart, NodeMessage, NodeMenu, NodeQuestion, NodeAction, NodeCondition, NodeAPICall,
	NodeJump, NodeCollectInput, NodeValidation, NodeAIChat, NodeProcessMedia, NodeEnd,
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// PassThrough reports whether the engine keeps walking after rendering a node
// of this type without waiting for input.
func (t NodeType) PassThrough() bool {
	return t == NodeMessage || t == NodeStart
}

// Node is a single step in a convo.
type Node struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        NodeType `json:"type" yaml:"type"`

	// Message is a template rendered against the session context.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	CollectInput bool             `json:"collect_input,omitempty" yaml:"collect_input,omitempty"`
	InputField   string           `json:"input_field,omitempty" yaml:"input_field,omitempty"`
	InputType    string           `json:"input_type,omitempty" yaml:"input_type,omitempty"`
	Validations  []ValidationRule `json:"validations,omitempty" yaml:"validations,omitempty"`

	Actions []Action `json:"actions,omitempty" yaml:"actions,omitempty"`

	Transitions       []Transition `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	DefaultTransition string       `json:"default_transition,omitempty" yaml:"default_transition,omitempty"`

	AIConfig    *AIConfig    `json:"ai_config,omitempty" yaml:"ai_config,omitempty"`
	MediaConfig *MediaConfig `json:"process_media_config,omitempty" yaml:"process_media_config,omitempty"`

	// Metadata is passed through to transports (e.g. telegram_options, data_list).
	Metadata map[string]Value `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Transition is a directed edge to another node.
type Transition struct {
	TargetNodeID string     `json:"target_node_id" yaml:"target_node_id"`
	Condition    *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Label        string     `json:"label,omitempty" yaml:"label,omitempty"`
	// Priority orders conditional evaluation; higher first, ties by declaration order.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
}
