// Package dto holds the serialized form of graphs read from files and memory.
package dto

import "github.com/aretw0/lattice/pkg/domain"

// GraphDocument is the on-disk representation of a graph.
// Keys match in YAML, JSON and mapstructure so every loader shares one shape.
type GraphDocument struct {
	ID    string         `json:"id" yaml:"id" mapstructure:"id"`
	Name  string         `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Nodes []NodeDocument `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges []EdgeDocument `json:"edges,omitempty" yaml:"edges,omitempty" mapstructure:"edges"`
}

type NodeDocument struct {
	ID     string         `json:"id" yaml:"id" mapstructure:"id"`
	Type   string         `json:"type" yaml:"type" mapstructure:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty" mapstructure:"inputs"`
}

// PortDocument addresses node.port.
type PortDocument struct {
	Node string `json:"node" yaml:"node" mapstructure:"node"`
	Port string `json:"port" yaml:"port" mapstructure:"port"`
}

type EdgeDocument struct {
	ID   string       `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	From PortDocument `json:"from" yaml:"from" mapstructure:"from"`
	To   PortDocument `json:"to" yaml:"to" mapstructure:"to"`
}

// FromGraph converts g back into its document form, preserving order.
func FromGraph(g *domain.Graph) *GraphDocument {
	doc := &GraphDocument{ID: g.ID, Name: g.Name}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, NodeDocument{ID: n.ID, Type: n.Type, Config: n.Config, Inputs: n.Inputs})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, EdgeDocument{
			ID:   e.ID,
			From: PortDocument{Node: e.From.NodeID, Port: e.From.Port},
			To:   PortDocument{Node: e.To.NodeID, Port: e.To.Port},
		})
	}
	return doc
}
