package dsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/internal/dto"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	id    string
	name  string
	order []string
	nodes map[string]*NodeBuilder
	edges []dto.EdgeDocument
	errs  []error
}

// New creates a new graph builder for the graph id.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Name sets the human-readable graph name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder and keeps its type.
func (b *Builder) Add(id, nodeType string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    dto.NodeDocument{ID: id, Type: nodeType},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Connect binds the output port from ("node.port") to the input port to.
func (b *Builder) Connect(from, to string) *Builder {
	src, err := parseRef(from)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	dst, err := parseRef(to)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.edges = append(b.edges, dto.EdgeDocument{From: src, To: dst})
	return b
}

func parseRef(ref string) (dto.PortDocument, error) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return dto.PortDocument{}, fmt.Errorf("invalid port reference %q: want node.port", ref)
	}
	return dto.PortDocument{Node: ref[:i], Port: ref[i+1:]}, nil
}

// Document returns the graph in its serializable form.
func (b *Builder) Document() *dto.GraphDocument {
	doc := &dto.GraphDocument{ID: b.id, Name: b.name, Edges: b.edges}
	for _, id := range b.order {
		doc.Nodes = append(doc.Nodes, b.nodes[id].node)
	}
	return doc
}

// Build compiles the graph. Malformed port references are reported here.
func (b *Builder) Build() (*domain.Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	g, err := compiler.NewParser().Compile(b.Document())
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	return g, nil
}

// BuildLoader compiles the graph into a memory loader serving it under its id.
func (b *Builder) BuildLoader() (*memory.Loader, error) {
	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	loader, err := memory.NewFromGraphs(g)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
