// Package compiler turns graph documents into domain graphs.
package compiler

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/lattice/internal/dto"
	"github.com/aretw0/lattice/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a graph document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf guesses the format from a file extension. Anything that is not
// .json is read as YAML, which also accepts JSON.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parser is responsible for converting raw bytes into a Graph.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes data in the given format and compiles it.
func (p *Parser) Parse(data []byte, format Format) (*domain.Graph, error) {
	var doc dto.GraphDocument
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse graph: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse graph: %w", err)
		}
	}
	return p.Compile(&doc)
}

// Compile builds a graph from doc. Edges without an id get "from->to".
// Dangling edges are kept; the engine reports them when validating.
func (p *Parser) Compile(doc *dto.GraphDocument) (*domain.Graph, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("graph missing id")
	}
	g := domain.NewGraph(doc.ID)
	g.Name = doc.Name

	for i, n := range doc.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("graph %s: node #%d missing id", doc.ID, i)
		}
		if n.Type == "" {
			return nil, fmt.Errorf("graph %s: node %s missing type", doc.ID, n.ID)
		}
		if err := g.AddNode(domain.NodeInstance{ID: n.ID, Type: n.Type, Config: n.Config, Inputs: n.Inputs}); err != nil {
			return nil, fmt.Errorf("graph %s: %w", doc.ID, err)
		}
	}

	for i, e := range doc.Edges {
		if e.From.Node == "" || e.To.Node == "" {
			return nil, fmt.Errorf("graph %s: edge #%d needs both from.node and to.node", doc.ID, i)
		}
		err := g.AddEdge(domain.EdgeBinding{
			ID:   e.ID,
			From: domain.PortRef{NodeID: e.From.Node, Port: e.From.Port},
			To:   domain.PortRef{NodeID: e.To.Node, Port: e.To.Port},
		})
		if err != nil {
			return nil, fmt.Errorf("graph %s: %w", doc.ID, err)
		}
	}
	return g, nil
}

// Marshal encodes g in the given format.
func (p *Parser) Marshal(g *domain.Graph, format Format) ([]byte, error) {
	doc := dto.FromGraph(g)
	if format == FormatJSON {
		return json.MarshalIndent(doc, "", "  ")
	}
	return yaml.Marshal(doc)
}
