package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_InsertionOrder(t *testing.T) {
	g := domain.NewGraph("g1")
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, g.AddNode(domain.NodeInstance{ID: id, Type: "noop"}))
	}
	require.NoError(t, g.AddEdge(domain.EdgeBinding{ID: "e2", From: domain.PortRef{NodeID: "a", Port: "out"}, To: domain.PortRef{NodeID: "b", Port: "in"}}))
	require.NoError(t, g.AddEdge(domain.EdgeBinding{ID: "e1", From: domain.PortRef{NodeID: "c", Port: "out"}, To: domain.PortRef{NodeID: "b", Port: "other"}}))

	assert.Equal(t, []string{"c", "a", "b"}, g.NodeIDs())

	var edgeIDs []string
	for _, e := range g.Edges() {
		edgeIDs = append(edgeIDs, e.ID)
	}
	assert.Equal(t, []string{"e2", "e1"}, edgeIDs)
	assert.Len(t, g.IncomingEdges("b"), 2)
	assert.Empty(t, g.IncomingEdges("a"))
}

func TestGraph_RejectsDuplicates(t *testing.T) {
	g := domain.NewGraph("g1")
	require.NoError(t, g.AddNode(domain.NodeInstance{ID: "a"}))
	assert.Error(t, g.AddNode(domain.NodeInstance{ID: "a"}))
	assert.Error(t, g.AddNode(domain.NodeInstance{}))

	edge := domain.EdgeBinding{From: domain.PortRef{NodeID: "a", Port: "x"}, To: domain.PortRef{NodeID: "b", Port: "y"}}
	require.NoError(t, g.AddEdge(edge))
	assert.Error(t, g.AddEdge(edge), "generated ids collide for identical bindings")
	assert.Equal(t, "a.x->b.y", g.Edges()[0].ID)
}

func TestError_Matching(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("running node: %w", domain.NewError(domain.CodeExecutionError, "node %s failed", "A").Wrap(base))

	assert.True(t, domain.IsCode(err, domain.CodeExecutionError))
	assert.False(t, domain.IsCode(err, domain.CodeNodeTimeout))
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, &domain.Error{Code: domain.CodeExecutionError})
	assert.Contains(t, err.Error(), "[EXECUTION_ERROR] node A failed: boom")

	converted := domain.AsError(base, domain.CodeExecutionError)
	assert.Equal(t, domain.CodeExecutionError, converted.Code)
	assert.Nil(t, domain.AsError(nil, domain.CodeExecutionError))
}

func TestMergeHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnNodeStart: func(context.Context, *domain.NodeEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnNodeStart: func(context.Context, *domain.NodeEvent) { calls = append(calls, "b") },
		OnRunEnd:    func(context.Context, *domain.RunEvent) { calls = append(calls, "end") },
	}

	merged := domain.Merge(a, b)
	merged.OnNodeStart(context.Background(), &domain.NodeEvent{})
	merged.OnRunEnd(context.Background(), &domain.RunEvent{})
	assert.Nil(t, merged.OnRunStart)
	assert.Equal(t, []string{"a", "b", "end"}, calls)
}
