package dsl

import "github.com/aretw0/convo/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

func (n *NodeBuilder) typed(t domain.NodeType, message string) *NodeBuilder {
	n.node.Type = t
	n.node.Message = message
	return n
}

// Start marks the node as the convo entry point.
func (n *NodeBuilder) Start(message string) *NodeBuilder {
	n.builder.def.StartNodeID = n.node.ID
	return n.typed(domain.NodeStart, message)
}

// Message makes the node a pass-through message.
func (n *NodeBuilder) Message(message string) *NodeBuilder {
	return n.typed(domain.NodeMessage, message)
}

// Menu makes the node a menu; add choices with Option.
func (n *NodeBuilder) Menu(message string) *NodeBuilder {
	return n.typed(domain.NodeMenu, message)
}

// Ask makes the node collect input into field.
func (n *NodeBuilder) Ask(message, field string) *NodeBuilder {
	n.typed(domain.NodeCollectInput, message)
	n.node.CollectInput = true
	n.node.InputField = field
	return n
}

// Question waits for free text without storing it.
func (n *NodeBuilder) Question(message string) *NodeBuilder {
	return n.typed(domain.NodeQuestion, message)
}

// End marks the node as terminal.
func (n *NodeBuilder) End(message string) *NodeBuilder {
	n.typed(domain.NodeEnd, message)
	n.node.Transitions = nil
	n.node.DefaultTransition = ""
	return n
}

// Type overrides the node type.
func (n *NodeBuilder) Type(t domain.NodeType) *NodeBuilder {
	n.node.Type = t
	return n
}

// Named sets the display name used in menus and diagnostics.
func (n *NodeBuilder) Named(name string) *NodeBuilder {
	n.node.Name = name
	return n
}

// InputType hints the client about the expected input ("email", "number", ...).
func (n *NodeBuilder) InputType(t string) *NodeBuilder {
	n.node.InputType = t
	return n
}

// Validate appends an input validation rule.
func (n *NodeBuilder) Validate(rule domain.RuleType, params map[string]any, message string) *NodeBuilder {
	n.node.Validations = append(n.node.Validations, domain.ValidationRule{
		Type:         rule,
		Params:       values(params),
		ErrorMessage: message,
	})
	return n
}

// Save adds a save_to_context action.
func (n *NodeBuilder) Save(params map[string]any) *NodeBuilder {
	n.node.Actions = append(n.node.Actions, domain.Action{
		Type:   domain.ActionSaveToContext,
		Params: values(params),
	})
	return n
}

// Call adds an api_call action with optional success and failure jumps.
func (n *NodeBuilder) Call(api domain.APIAction, onSuccess, onFailure string) *NodeBuilder {
	n.node.Actions = append(n.node.Actions, domain.Action{
		Type:      domain.ActionAPICall,
		API:       &api,
		OnSuccess: onSuccess,
		OnFailure: onFailure,
	})
	return n
}

// Email adds a send_email action.
func (n *NodeBuilder) Email(to, subject, body string) *NodeBuilder {
	n.node.Actions = append(n.node.Actions, domain.Action{
		Type: domain.ActionSendEmail,
		Params: map[string]domain.Value{
			"to":      domain.String(to),
			"subject": domain.String(subject),
			"body":    domain.String(body),
		},
	})
	return n
}

// AI makes the node an ai_chat node.
func (n *NodeBuilder) AI(cfg domain.AIConfig) *NodeBuilder {
	n.node.Type = domain.NodeAIChat
	n.node.AIConfig = &cfg
	return n
}

// Media makes the node a process_media node.
func (n *NodeBuilder) Media(cfg domain.MediaConfig) *NodeBuilder {
	n.node.Type = domain.NodeProcessMedia
	n.node.MediaConfig = &cfg
	return n
}

// Go adds an unconditional transition to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.node.Transitions = append(n.node.Transitions, domain.Transition{TargetNodeID: target})
	return n
}

// Option adds a labelled menu choice.
func (n *NodeBuilder) Option(label, target string) *NodeBuilder {
	n.node.Transitions = append(n.node.Transitions, domain.Transition{TargetNodeID: target, Label: label})
	return n
}

// When adds a conditional transition.
func (n *NodeBuilder) When(cond domain.Condition, target string) *NodeBuilder {
	return n.WhenPriority(cond, 0, target)
}

// WhenPriority adds a conditional transition evaluated before lower priorities.
func (n *NodeBuilder) WhenPriority(cond domain.Condition, priority int, target string) *NodeBuilder {
	n.node.Transitions = append(n.node.Transitions, domain.Transition{
		TargetNodeID: target,
		Condition:    &cond,
		Priority:     priority,
	})
	return n
}

// Equals is When with an equals condition on the raw input.
func (n *NodeBuilder) Equals(value, target string) *NodeBuilder {
	return n.When(domain.Condition{Kind: domain.CondEquals, Value: domain.String(value)}, target)
}

// Expr is When with a custom expression.
func (n *NodeBuilder) Expr(expression, target string) *NodeBuilder {
	return n.When(domain.Condition{Kind: domain.CondCustom, Value: domain.String(expression)}, target)
}

// Default sets the fallback transition.
func (n *NodeBuilder) Default(target string) *NodeBuilder {
	n.node.DefaultTransition = target
	return n
}

// Meta attaches transport metadata.
func (n *NodeBuilder) Meta(key string, value any) *NodeBuilder {
	if n.node.Metadata == nil {
		n.node.Metadata = make(map[string]domain.Value)
	}
	n.node.Metadata[key] = domain.FromAny(value)
	return n
}

// Node returns a copy of the underlying domain.Node.
func (n *NodeBuilder) Node() domain.Node {
	return n.node
}

// Add continues the chain with another node.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}

// Build finishes the chain; see Builder.Build.
func (n *NodeBuilder) Build() (*domain.Definition, error) {
	return n.builder.Build()
}

func values(m map[string]any) map[string]domain.Value {
	if m == nil {
		return nil
	}
	out := make(map[string]domain.Value, len(m))
	for k, v := range m {
		out[k] = domain.FromAny(v)
	}
	return out
}
