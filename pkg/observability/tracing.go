package observability

import (
	"context"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/aretw0/lattice"

// Tracer emits one OpenTelemetry span per run and a child span per node.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	runs  map[string]trace.Span
	nodes map[string]trace.Span
}

// NewTracer creates span hooks backed by provider.
func NewTracer(provider trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: provider.Tracer(instrumentationName),
		runs:   make(map[string]trace.Span),
		nodes:  make(map[string]trace.Span),
	}
}

func nodeKey(e *domain.NodeEvent) string { return e.ExecutionID + "/" + e.NodeID }

// Hooks returns lifecycle hooks that open and close spans.
func (t *Tracer) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			_, span := t.tracer.Start(ctx, "lattice.run",
				trace.WithTimestamp(e.Timestamp),
				trace.WithAttributes(
					attribute.String("lattice.execution_id", e.ExecutionID),
					attribute.String("lattice.graph_id", e.GraphID),
					attribute.Int("lattice.total_nodes", e.TotalNodes),
				))
			t.mu.Lock()
			t.runs[e.ExecutionID] = span
			t.mu.Unlock()
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			t.mu.Lock()
			span, ok := t.runs[e.ExecutionID]
			delete(t.runs, e.ExecutionID)
			t.mu.Unlock()
			if !ok {
				return
			}
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End(trace.WithTimestamp(e.Timestamp))
		},
		OnNodeStart: func(ctx context.Context, e *domain.NodeEvent) {
			t.mu.Lock()
			if parent, ok := t.runs[e.ExecutionID]; ok {
				ctx = trace.ContextWithSpan(ctx, parent)
			}
			t.mu.Unlock()

			_, span := t.tracer.Start(ctx, "lattice.node "+e.NodeType,
				trace.WithTimestamp(e.Timestamp),
				trace.WithAttributes(
					attribute.String("lattice.node_id", e.NodeID),
					attribute.String("lattice.node_type", e.NodeType),
					attribute.Int("lattice.level", e.Level),
				))
			t.mu.Lock()
			t.nodes[nodeKey(e)] = span
			t.mu.Unlock()
		},
		OnNodeEnd: func(_ context.Context, e *domain.NodeEvent) {
			key := nodeKey(e)
			t.mu.Lock()
			span, ok := t.nodes[key]
			delete(t.nodes, key)
			t.mu.Unlock()
			if !ok {
				return
			}
			span.SetAttributes(
				attribute.String("lattice.status", string(e.Status)),
				attribute.Bool("lattice.cached", e.Cached),
				attribute.Int("lattice.attempts", e.Attempts),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, string(e.Err.Code))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End(trace.WithTimestamp(e.Timestamp))
		},
	}
}
