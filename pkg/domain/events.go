package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventRunEnd       EventType = "run_end"
	EventNodeStart    EventType = "node_start"
	EventNodeEnd      EventType = "node_end"
	EventNodeProgress EventType = "node_progress"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id"`
	GraphID     string    `json:"graph_id,omitempty"`
}

// RunEvent marks the start or end of a graph run.
type RunEvent struct {
	EventBase
	TotalNodes int           `json:"total_nodes"`
	Success    bool          `json:"success,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// NodeEvent marks a node entering RUNNING or reaching a terminal state.
type NodeEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	NodeType string        `json:"node_type"`
	Level    int           `json:"level"`
	Status   Status        `json:"status"`
	Cached   bool          `json:"cached,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      *Error        `json:"error,omitempty"`
}

// ProgressEvent carries a progress report from a running node.
type ProgressEvent struct {
	EventBase
	NodeID   string  `json:"node_id"`
	NodeType string  `json:"node_type"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the goroutine executing the node and must not block.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnRunEnd    func(context.Context, *RunEvent)
	OnNodeStart func(context.Context, *NodeEvent)
	OnNodeEnd   func(context.Context, *NodeEvent)

	OnNodeProgress func(context.Context, *ProgressEvent)
}

// Merge combines several hook sets into one that calls each in order.
func Merge(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		out.OnRunStart = chain(out.OnRunStart, h.OnRunStart)
		out.OnRunEnd = chain(out.OnRunEnd, h.OnRunEnd)
		out.OnNodeStart = chain(out.OnNodeStart, h.OnNodeStart)
		out.OnNodeEnd = chain(out.OnNodeEnd, h.OnNodeEnd)
		out.OnNodeProgress = chain(out.OnNodeProgress, h.OnNodeProgress)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
