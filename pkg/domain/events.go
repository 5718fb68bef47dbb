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
	EventStatusChange EventType = "status_change"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	BotID     string    `json:"bot_id,omitempty"`
}

// NodeEvent represents entry into or exit from a node during a step.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeKind NodeKind `json:"node_kind"`
	// Next is the following node id; only set on leave.
	Next    string `json:"next,omitempty"`
	Effects int    `json:"effects,omitempty"`
}

// StatusEvent represents a debug session status transition.
type StatusEvent struct {
	EventBase
	RunID string          `json:"run_id,omitempty"`
	From  ExecutionStatus `json:"from"`
	To    ExecutionStatus `json:"to"`
	Steps int             `json:"steps"`
	Err   string          `json:"error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the executing goroutine and must not block.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnStatusChange func(context.Context, *StatusEvent)
}

// Merge returns hooks that invoke h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:    chainNode(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:    chainNode(h.OnNodeLeave, other.OnNodeLeave),
		OnStatusChange: chainStatus(h.OnStatusChange, other.OnStatusChange),
	}
}

func chainNode(a, b func(context.Context, *NodeEvent)) func(context.Context, *NodeEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainStatus(a, b func(context.Context, *StatusEvent)) func(context.Context, *StatusEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *StatusEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
