package ports

import "context"

// OutputStore persists node outputs beyond the lifetime of the in-process cache.
// Outputs are keyed by graph id and node id.
type OutputStore interface {
	// Save persists the output of nodeID within graphID, replacing any previous value.
	Save(ctx context.Context, graphID, nodeID string, output map[string]any) error

	// Load retrieves a stored output.
	// Returns domain.ErrOutputNotFound if nothing is stored for the pair.
	Load(ctx context.Context, graphID, nodeID string) (map[string]any, error)

	// Delete removes a stored output. Deleting a missing entry is not an error.
	Delete(ctx context.Context, graphID, nodeID string) error

	// List returns the ids of the nodes with a stored output in graphID, sorted.
	List(ctx context.Context, graphID string) ([]string, error)
}
