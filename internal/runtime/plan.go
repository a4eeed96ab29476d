package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/dag"
	"github.com/aretw0/lattice/pkg/domain"
)

// Plan is the execution order of a graph.
type Plan struct {
	// Order is the full topological order.
	Order []string `json:"executionOrder"`
	// Levels groups node ids by dependency depth.
	Levels map[int][]string `json:"levels"`
	// Groups lists the levels in ascending order.
	Groups     [][]string `json:"-"`
	TotalNodes int        `json:"totalNodes"`

	levelOf map[string]int
	deps    *dag.Graph
}

// Level returns the dependency depth of nodeID.
func (p *Plan) Level(nodeID string) int { return p.levelOf[nodeID] }

// Validation is the outcome of ValidateGraph.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// CreateExecutionPlan orders the nodes of graph. It fails on a cycle.
func (e *Engine) CreateExecutionPlan(graph *domain.Graph) (*Plan, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	deps := dag.FromGraph(graph)
	order, err := deps.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to order graph %s: %w", graph.ID, err)
	}
	levels := deps.ComputeLevels()
	return &Plan{
		Order:      order,
		Levels:     deps.NodesByLevel(),
		Groups:     deps.LevelGroups(),
		TotalNodes: len(order),
		levelOf:    levels,
		deps:       deps,
	}, nil
}

// ValidateGraph checks that graph is acyclic, that every node type is
// registered and that every edge connects existing nodes, in that order.
// It never mutates the engine.
func (e *Engine) ValidateGraph(graph *domain.Graph) Validation {
	v := Validation{Errors: []string{}}
	if graph == nil {
		v.Errors = append(v.Errors, "graph is nil")
		return v
	}

	if cycle := dag.FromGraph(graph).DetectCycle(); cycle != nil {
		v.Errors = append(v.Errors, fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")))
	}

	for _, n := range graph.Nodes() {
		if !e.registry.Has(n.Type) {
			v.Errors = append(v.Errors, fmt.Sprintf("node %s has unregistered type: %s", n.ID, n.Type))
		}
	}

	for _, edge := range graph.Edges() {
		if !graph.HasNode(edge.From.NodeID) {
			v.Errors = append(v.Errors, fmt.Sprintf("edge %s references non-existent source node: %s", edge.ID, edge.From.NodeID))
		}
		if !graph.HasNode(edge.To.NodeID) {
			v.Errors = append(v.Errors, fmt.Sprintf("edge %s references non-existent target node: %s", edge.ID, edge.To.NodeID))
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}
