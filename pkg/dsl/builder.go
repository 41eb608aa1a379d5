package dsl

import (
	"github.com/aretw0/convo/internal/validator"
	"github.com/aretw0/convo/pkg/domain"
)

// Builder manages the graph construction. Nodes keep their insertion order.
type Builder struct {
	def   domain.Definition
	order []*NodeBuilder
	nodes map[string]*NodeBuilder
}

// New creates a new convo builder.
func New(id string) *Builder {
	return &Builder{
		def:   domain.Definition{ID: id},
		nodes: make(map[string]*NodeBuilder),
	}
}

// Name sets the display name.
func (b *Builder) Name(name string) *Builder {
	b.def.Name = name
	return b
}

// Describe sets the description.
func (b *Builder) Describe(description string) *Builder {
	b.def.Description = description
	return b
}

// Tenant scopes the convo to a tenant.
func (b *Builder) Tenant(uid string) *Builder {
	b.def.TenantUID = uid
	return b
}

// Tags appends tags.
func (b *Builder) Tags(tags ...string) *Builder {
	b.def.Tags = append(b.def.Tags, tags...)
	return b
}

// StartAt sets the start node. When unset, the first added node is used.
func (b *Builder) StartAt(nodeID string) *Builder {
	b.def.StartNodeID = nodeID
	return b
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id, Type: domain.NodeMessage},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, nb)
	return nb
}

// Definition assembles the definition without validating it.
func (b *Builder) Definition() *domain.Definition {
	def := b.def
	def.Nodes = make([]domain.Node, 0, len(b.order))
	for _, nb := range b.order {
		def.Nodes = append(def.Nodes, nb.node)
	}
	if def.StartNodeID == "" && len(def.Nodes) > 0 {
		def.StartNodeID = def.Nodes[0].ID
	}
	def.ApplyDefaults()
	return &def
}

// Build assembles and validates the definition. Structural problems are
// returned as *domain.DefinitionError.
func (b *Builder) Build() (*domain.Definition, error) {
	def := b.Definition()
	if _, err := validator.ValidateDefinition(def); err != nil {
		return nil, err
	}
	return def, nil
}

// MustBuild is Build for tests and package-level fixtures.
func (b *Builder) MustBuild() *domain.Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
