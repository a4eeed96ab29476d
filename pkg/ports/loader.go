package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// GraphLoader defines how graph definitions are obtained.
// This allows the source (files, memory) to be decoupled from the engine.
type GraphLoader interface {
	// LoadGraph reads and builds the graph identified by ref (a path or a name).
	LoadGraph(ctx context.Context, ref string) (*domain.Graph, error)
}
