// Package testutils provides node definitions and graph helpers shared by tests.
package testutils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/stretchr/testify/require"
)

func numbers(props ...string) domain.SchemaDoc {
	p := map[string]any{}
	for _, name := range props {
		p[name] = map[string]any{"type": "number"}
	}
	return domain.SchemaDoc{"type": "object", "properties": p, "required": props}
}

func manifest(nodeType string, in, out domain.SchemaDoc) domain.Manifest {
	return domain.Manifest{
		Type:          nodeType,
		Version:       "1.0.0",
		Category:      "test",
		Label:         domain.I18nString{Zh: nodeType, En: nodeType},
		InputsSchema:  in,
		OutputsSchema: out,
	}
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

// Add returns an "add" node: {a, b} -> {result: a+b}.
func Add() registry.Definition {
	return registry.Definition{
		Manifest: manifest("add", numbers("a", "b"), numbers("result")),
		Executor: domain.ExecutorFunc(func(_ context.Context, in, _ map[string]any, _ *domain.ExecutionContext) (map[string]any, error) {
			return map[string]any{"result": num(in["a"]) + num(in["b"])}, nil
		}),
	}
}

// Multiply returns a "multiply" node: {x, y} -> {result: x*y}.
func Multiply() registry.Definition {
	return registry.Definition{
		Manifest: manifest("multiply", numbers("x", "y"), numbers("result")),
		Executor: domain.ExecutorFunc(func(_ context.Context, in, _ map[string]any, _ *domain.ExecutionContext) (map[string]any, error) {
			return map[string]any{"result": num(in["x"]) * num(in["y"])}, nil
		}),
	}
}

// Fail returns a node of the given type that always fails with err.
func Fail(nodeType string, err error) registry.Definition {
	return registry.Definition{
		Manifest: manifest(nodeType, domain.SchemaDoc{"type": "object"}, domain.SchemaDoc{"type": "object"}),
		Executor: domain.ExecutorFunc(func(context.Context, map[string]any, map[string]any, *domain.ExecutionContext) (map[string]any, error) {
			return nil, err
		}),
	}
}

// Slow returns a node that sleeps for d, ignoring cancellation, then outputs {done: true}.
func Slow(nodeType string, d time.Duration) registry.Definition {
	return registry.Definition{
		Manifest: manifest(nodeType, domain.SchemaDoc{"type": "object"}, domain.SchemaDoc{"type": "object"}),
		Executor: domain.ExecutorFunc(func(context.Context, map[string]any, map[string]any, *domain.ExecutionContext) (map[string]any, error) {
			time.Sleep(d)
			return map[string]any{"done": true}, nil
		}),
	}
}

// Flaky returns a node that fails its first failures calls, with a retry
// policy allowing retries attempts. calls counts every invocation.
func Flaky(nodeType string, failures int32, retries int, calls *atomic.Int32) registry.Definition {
	def := registry.Definition{
		Manifest: manifest(nodeType, domain.SchemaDoc{"type": "object"}, domain.SchemaDoc{"type": "object"}),
		Executor: domain.ExecutorFunc(func(context.Context, map[string]any, map[string]any, *domain.ExecutionContext) (map[string]any, error) {
			if calls.Add(1) <= failures {
				return nil, errors.New("transient failure")
			}
			return map[string]any{"ok": true}, nil
		}),
	}
	def.Manifest.RetryPolicy = &domain.RetryPolicy{Enabled: true, MaxRetries: retries, Backoff: time.Millisecond}
	return def
}

// Counting wraps def so that every invocation increments calls.
func Counting(def registry.Definition, calls *atomic.Int32) registry.Definition {
	inner := def.Executor
	def.Executor = domain.ExecutorFunc(func(ctx context.Context, in, cfg map[string]any, ec *domain.ExecutionContext) (map[string]any, error) {
		calls.Add(1)
		return inner.Execute(ctx, in, cfg, ec)
	})
	return def
}

// NewRegistry returns a registry holding defs, failing the test on any
// registration error.
func NewRegistry(t *testing.T, defs ...registry.Definition) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, def := range defs {
		require.NoError(t, reg.Register(def), "register %s", def.Manifest.Type)
	}
	return reg
}

// Node is a compact node literal for Graph.
type Node struct {
	ID     string
	Type   string
	Inputs map[string]any
}

// Edge connects FromNode.FromPort to ToNode.ToPort.
type Edge struct {
	FromNode, FromPort string
	ToNode, ToPort     string
}

// Graph builds a domain graph, failing the test on duplicate ids.
func Graph(t *testing.T, id string, nodes []Node, edges []Edge) *domain.Graph {
	t.Helper()
	g := domain.NewGraph(id)
	for _, n := range nodes {
		require.NoError(t, g.AddNode(domain.NodeInstance{ID: n.ID, Type: n.Type, Inputs: n.Inputs}))
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(domain.EdgeBinding{
			From: domain.PortRef{NodeID: e.FromNode, Port: e.FromPort},
			To:   domain.PortRef{NodeID: e.ToNode, Port: e.ToPort},
		}))
	}
	return g
}
