package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventActionCall   EventType = "action_call"
	EventActionReturn EventType = "action_return"
	EventTurnComplete EventType = "turn_complete"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	ConvoID   string    `json:"convo_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// ActionEvent represents a node action or a delegated collaborator call.
type ActionEvent struct {
	EventBase
	NodeID     string        `json:"node_id"`
	ActionType string        `json:"action_type"`
	Jump       string        `json:"jump,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// TurnEvent is emitted once per turn after the response is assembled.
type TurnEvent struct {
	EventBase
	NodeID    string `json:"node_id"`
	Hops      int    `json:"hops"`
	Command   string `json:"command,omitempty"`
	Completed bool   `json:"completed"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnActionCall   func(context.Context, *ActionEvent)
	OnActionReturn func(context.Context, *ActionEvent)
	OnTurnComplete func(context.Context, *TurnEvent)
}
