package domain

import "fmt"

// PortRef addresses a named port on a node.
type PortRef struct {
	NodeID string `json:"nodeId" yaml:"node"`
	Port   string `json:"portName" yaml:"port"`
}

func (p PortRef) String() string {
	return p.NodeID + "." + p.Port
}

// NodeInstance is one occurrence of a node type inside a graph.
type NodeInstance struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	// Inputs holds literal input values. An incoming edge bound to the same
	// port takes precedence.
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// EdgeBinding connects an output port of one node to an input port of another.
// Read as "To depends on From".
type EdgeBinding struct {
	ID   string  `json:"id" yaml:"id"`
	From PortRef `json:"from" yaml:"from"`
	To   PortRef `json:"to" yaml:"to"`
}

// Graph is the unit of execution. Nodes and edges are keyed by id and iterate
// in the order they were added.
type Graph struct {
	ID   string
	Name string

	nodes     map[string]*NodeInstance
	nodeOrder []string
	edges     map[string]*EdgeBinding
	edgeOrder []string
}

// NewGraph creates an empty graph.
func NewGraph(id string) *Graph {
	return &Graph{
		ID:    id,
		nodes: make(map[string]*NodeInstance),
		edges: make(map[string]*EdgeBinding),
	}
}

// AddNode appends a node. Node ids must be unique within the graph.
func (g *Graph) AddNode(n NodeInstance) error {
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate node id %q", n.ID)
	}
	node := n
	g.nodes[n.ID] = &node
	g.nodeOrder = append(g.nodeOrder, n.ID)
	return nil
}

// AddEdge appends an edge. Endpoints are not checked here; dangling edges are
// reported when the graph is validated.
func (g *Graph) AddEdge(e EdgeBinding) error {
	if e.ID == "" {
		e.ID = fmt.Sprintf("%s->%s", e.From, e.To)
	}
	if _, exists := g.edges[e.ID]; exists {
		return fmt.Errorf("duplicate edge id %q", e.ID)
	}
	edge := e
	g.edges[e.ID] = &edge
	g.edgeOrder = append(g.edgeOrder, e.ID)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*NodeInstance, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether the graph contains the node id.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeIDs returns node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	out := make([]string, len(g.nodeOrder))
	copy(out, g.nodeOrder)
	return out
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*NodeInstance {
	out := make([]*NodeInstance, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []*EdgeBinding {
	out := make([]*EdgeBinding, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id])
	}
	return out
}

// IncomingEdges returns the edges whose target is nodeID, in insertion order.
func (g *Graph) IncomingEdges(nodeID string) []*EdgeBinding {
	var out []*EdgeBinding
	for _, id := range g.edgeOrder {
		if e := g.edges[id]; e.To.NodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodeOrder) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edgeOrder) }
