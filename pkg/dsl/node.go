package dsl

import "github.com/aretw0/lattice/internal/dto"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    dto.NodeDocument
	builder *Builder
}

// Input sets a literal input value. An edge bound to the same port wins.
func (n *NodeBuilder) Input(port string, value any) *NodeBuilder {
	if n.node.Inputs == nil {
		n.node.Inputs = make(map[string]any)
	}
	n.node.Inputs[port] = value
	return n
}

// Config sets a configuration value.
func (n *NodeBuilder) Config(key string, value any) *NodeBuilder {
	if n.node.Config == nil {
		n.node.Config = make(map[string]any)
	}
	n.node.Config[key] = value
	return n
}

// From feeds the input port from an upstream "node.port".
func (n *NodeBuilder) From(port, source string) *NodeBuilder {
	n.builder.Connect(source, n.node.ID+"."+port)
	return n
}

// To feeds the downstream "node.port" from the output port.
func (n *NodeBuilder) To(port, target string) *NodeBuilder {
	n.builder.Connect(n.node.ID+"."+port, target)
	return n
}

// Build returns the underlying node document.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() dto.NodeDocument {
	return n.node
}
