package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/internal/dto"
	"github.com/aretw0/lattice/pkg/domain"
)

// Loader implements ports.GraphLoader using an in-memory map of documents.
type Loader struct {
	mu     sync.RWMutex
	docs   map[string]*dto.GraphDocument
	parser *compiler.Parser
}

// NewLoader creates a loader from raw YAML or JSON documents keyed by ref.
func NewLoader(data map[string]string) (*Loader, error) {
	l := &Loader{docs: make(map[string]*dto.GraphDocument), parser: compiler.NewParser()}
	for ref, raw := range data {
		g, err := l.parser.Parse([]byte(raw), compiler.FormatYAML)
		if err != nil {
			return nil, fmt.Errorf("graph %s: %w", ref, err)
		}
		l.docs[ref] = dto.FromGraph(g)
	}
	return l, nil
}

// NewFromGraphs creates a loader serving each graph under its id.
// This keeps tests free of serialization boilerplate.
func NewFromGraphs(graphs ...*domain.Graph) (*Loader, error) {
	l := &Loader{docs: make(map[string]*dto.GraphDocument), parser: compiler.NewParser()}
	for _, g := range graphs {
		if err := l.Put(g); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Put stores g under its id, replacing any previous graph.
func (l *Loader) Put(g *domain.Graph) error {
	if g == nil || g.ID == "" {
		return fmt.Errorf("graph missing id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs[g.ID] = dto.FromGraph(g)
	return nil
}

// LoadGraph builds a fresh graph for ref, so callers may mutate the result.
func (l *Loader) LoadGraph(ctx context.Context, ref string) (*domain.Graph, error) {
	l.mu.RLock()
	doc, ok := l.docs[ref]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("graph %s: %w", ref, domain.ErrGraphNotFound)
	}
	return l.parser.Compile(doc)
}

// List returns all available graph refs.
func (l *Loader) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	refs := make([]string, 0, len(l.docs))
	for ref := range l.docs {
		refs = append(refs, ref)
	}
	sort.Strings(refs) // Deterministic order
	return refs
}
