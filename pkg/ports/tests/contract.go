package tests

import (
	"context"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// GraphLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.GraphLoader.
// expected maps a ref the loader understands to the graph it must produce.
func GraphLoaderContractTest(t *testing.T, loader ports.GraphLoader, expected map[string]*domain.Graph) {
	t.Helper()
	ctx := context.Background()

	// 1. Test LoadGraph (Success)
	t.Run("LoadGraph_Success", func(t *testing.T) {
		for ref, want := range expected {
			got, err := loader.LoadGraph(ctx, ref)
			if err != nil {
				t.Fatalf("unexpected error loading %s: %v", ref, err)
			}
			if got.ID != want.ID {
				t.Errorf("graph id mismatch for %s. got %q, want %q", ref, got.ID, want.ID)
			}
			if !equalIDs(got.NodeIDs(), want.NodeIDs()) {
				t.Errorf("nodes mismatch for %s. got %v, want %v", ref, got.NodeIDs(), want.NodeIDs())
			}
			if got.EdgeCount() != want.EdgeCount() {
				t.Errorf("edge count mismatch for %s. got %d, want %d", ref, got.EdgeCount(), want.EdgeCount())
			}
			for _, e := range want.Edges() {
				if !hasEdge(got, e) {
					t.Errorf("edge %s -> %s missing in %s", e.From, e.To, ref)
				}
			}
		}
	})

	// 2. Test LoadGraph (NotFound)
	t.Run("LoadGraph_NotFound", func(t *testing.T) {
		_, err := loader.LoadGraph(ctx, "non-existent-graph")
		if err == nil {
			t.Error("expected error for non-existent graph, got nil")
		}
	})
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasEdge(g *domain.Graph, want *domain.EdgeBinding) bool {
	for _, e := range g.Edges() {
		if e.From == want.From && e.To == want.To {
			return true
		}
	}
	return false
}
