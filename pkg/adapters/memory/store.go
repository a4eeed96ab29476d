package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/schema"
)

// Store implements ports.OutputStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[string]map[string]any
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]map[string]any),
	}
}

// Save persists a copy of output in memory.
func (s *Store) Save(ctx context.Context, graphID, nodeID string, output map[string]any) error {
	// Copy through JSON so the store behaves like the serializing adapters.
	copied, err := schema.NormalizeMap(output)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.data[graphID]
	if !ok {
		g = make(map[string]map[string]any)
		s.data[graphID] = g
	}
	g[nodeID] = copied
	return nil
}

// Load retrieves a copy of a stored output.
func (s *Store) Load(ctx context.Context, graphID, nodeID string) (map[string]any, error) {
	s.mu.RLock()
	out, ok := s.data[graphID][nodeID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrOutputNotFound
	}
	return schema.NormalizeMap(out)
}

// Delete removes a stored output.
func (s *Store) Delete(ctx context.Context, graphID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[graphID], nodeID)
	if len(s.data[graphID]) == 0 {
		delete(s.data, graphID)
	}
	return nil
}

// List returns the node ids stored for graphID.
func (s *Store) List(ctx context.Context, graphID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data[graphID]))
	for id := range s.data[graphID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
