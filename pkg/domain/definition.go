package domain

import "time"

// Definition is a named, versioned convo graph.
type Definition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`

	StartNodeID string `json:"start_node_id" yaml:"start_node_id"`
	Nodes       []Node `json:"nodes" yaml:"nodes"`

	TimeoutMinutes int `json:"timeout_minutes,omitempty" yaml:"timeout_minutes,omitempty"`
	MaxRetries     int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	TenantUID string           `json:"tenant_uid,omitempty" yaml:"tenant_uid,omitempty"`
	Tags      []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Metadata  map[string]Value `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// ApplyDefaults fills unset optional fields.
func (d *Definition) ApplyDefaults() {
	if d.Version == "" {
		d.Version = "1.0.0"
	}
	if d.TimeoutMinutes == 0 {
		d.TimeoutMinutes = 30
	}
	if d.MaxRetries == 0 {
		d.MaxRetries = 3
	}
}

// Graph is an id-indexed view over a Definition's node list.
type Graph struct {
	def   *Definition
	index map[string]int
}

// NewGraph indexes def. Duplicate ids resolve to their first occurrence.
func NewGraph(def *Definition) *Graph {
	index := make(map[string]int, len(def.Nodes))
	for i := range def.Nodes {
		if _, dup := index[def.Nodes[i].ID]; !dup {
			index[def.Nodes[i].ID] = i
		}
	}
	return &Graph{def: def, index: index}
}

// Definition returns the indexed definition.
func (g *Graph) Definition() *Definition { return g.def }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return &g.def.Nodes[i], true
}

// Start returns the start node.
func (g *Graph) Start() (*Node, bool) {
	return g.Node(g.def.StartNodeID)
}
