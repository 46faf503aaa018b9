package domain

import (
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter EventType = "node_enter"
	EventMessage   EventType = "message"
	EventReset     EventType = "reset"
	EventTerminal  EventType = "terminal"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// NodeEvent represents the preview entering a node, or stopping at one.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type,omitempty"`
}

// MessageEvent represents a message appended to the transcript.
type MessageEvent struct {
	EventBase
	Message ConversationMessage `json:"message"`
}

// ResetEvent represents the transcript being cleared.
type ResetEvent struct {
	EventBase
	Generation   uint64 `json:"generation"`
	FlowRevision uint64 `json:"flow_revision"`
	StartNodeID  string `json:"start_node_id,omitempty"`
}

// LifecycleHooks defines callbacks for simulator observability.
// Hooks run synchronously once the simulator has released its lock.
type LifecycleHooks struct {
	OnNodeEnter func(*NodeEvent)
	OnMessage   func(*MessageEvent)
	OnReset     func(*ResetEvent)
	OnTerminal  func(*NodeEvent)
}
