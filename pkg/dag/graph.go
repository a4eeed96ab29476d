// Package dag maintains the dependency structure of a node graph: ordering,
// cycle detection, levels and reachability queries.
//
// A Graph is not safe for concurrent use; callers that share one must
// serialize access.
package dag

import (
	"github.com/aretw0/lattice/pkg/domain"
)

// Graph is a dependency graph. An edge "node depends on dep" is stored both as
// a forward dependency and a reverse dependent link. Every collection is kept
// in discovery order so that results are deterministic for a fixed input.
type Graph struct {
	order []string
	known map[string]struct{}

	dependencies map[string][]string
	dependents   map[string][]string
	pairs        map[[2]string]struct{}

	inDegree  map[string]int
	outDegree map[string]int

	levels map[string]int
}

// Stats summarizes the shape of a graph.
type Stats struct {
	NodeCount int      `json:"nodeCount"`
	EdgeCount int      `json:"edgeCount"`
	MaxLevel  int      `json:"maxLevel"`
	RootNodes []string `json:"rootNodes"`
	LeafNodes []string `json:"leafNodes"`
}

// New creates an empty graph.
func New() *Graph {
	g := &Graph{}
	g.Clear()
	return g
}

// FromGraph builds a dependency graph from a domain graph.
func FromGraph(graph *domain.Graph) *Graph {
	g := New()
	g.BuildFromGraph(graph)
	return g
}

// Clear drops every node and edge.
func (g *Graph) Clear() {
	g.order = nil
	g.known = make(map[string]struct{})
	g.dependencies = make(map[string][]string)
	g.dependents = make(map[string][]string)
	g.pairs = make(map[[2]string]struct{})
	g.inDegree = make(map[string]int)
	g.outDegree = make(map[string]int)
	g.levels = nil
}

// AddNode registers a node with no edges. It is a no-op for known nodes.
func (g *Graph) AddNode(id string) {
	if _, ok := g.known[id]; ok {
		return
	}
	g.known[id] = struct{}{}
	g.order = append(g.order, id)
	g.inDegree[id] = 0
	g.outDegree[id] = 0
	g.levels = nil
}

// AddDependency records that node depends on dependsOn. Unknown endpoints are
// added. Repeating a pair (for example two port bindings between the same
// nodes) is recorded once, so degrees count distinct dependencies.
func (g *Graph) AddDependency(node, dependsOn string) {
	g.AddNode(node)
	g.AddNode(dependsOn)

	key := [2]string{node, dependsOn}
	if _, dup := g.pairs[key]; dup {
		return
	}
	g.pairs[key] = struct{}{}

	g.dependencies[node] = append(g.dependencies[node], dependsOn)
	g.dependents[dependsOn] = append(g.dependents[dependsOn], node)
	g.inDegree[node]++
	g.outDegree[dependsOn]++
	g.levels = nil
}

// BuildFromGraph resets the graph and loads every node and edge of graph.
// Edge "to" depends on edge "from". Levels are computed eagerly.
func (g *Graph) BuildFromGraph(graph *domain.Graph) {
	g.Clear()
	for _, id := range graph.NodeIDs() {
		g.AddNode(id)
	}
	for _, e := range graph.Edges() {
		g.AddDependency(e.To.NodeID, e.From.NodeID)
	}
	g.ComputeLevels()
}

// Has reports whether id is part of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.known[id]
	return ok
}

// Nodes returns node ids in discovery order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Dependencies returns the direct dependencies of id.
func (g *Graph) Dependencies(id string) []string {
	return append([]string(nil), g.dependencies[id]...)
}

// Dependents returns the nodes that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// InDegree returns the number of distinct dependencies of id.
func (g *Graph) InDegree(id string) int { return g.inDegree[id] }

// OutDegree returns the number of distinct dependents of id.
func (g *Graph) OutDegree(id string) int { return g.outDegree[id] }

// EdgeCount returns the number of distinct dependency pairs.
func (g *Graph) EdgeCount() int { return len(g.pairs) }

// TopologicalSort orders nodes so that every dependency precedes its
// dependents (Kahn). Nodes that become ready together are processed in the
// order they were discovered. A cycle yields a *CycleError naming the nodes
// that could not be ordered.
func (g *Graph) TopologicalSort() ([]string, error) {
	indeg := make(map[string]int, len(g.inDegree))
	for k, v := range g.inDegree {
		indeg[k] = v
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}

	out := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		for _, d := range g.dependents[n] {
			indeg[d]--
			if indeg[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(out) < len(g.order) {
		sorted := make(map[string]struct{}, len(out))
		for _, id := range out {
			sorted[id] = struct{}{}
		}
		var remaining []string
		for _, id := range g.order {
			if _, ok := sorted[id]; !ok {
				remaining = append(remaining, id)
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}
	return out, nil
}

// DetectCycle searches the dependents adjacency depth first and returns one
// cycle as a path that starts and ends at the repeated node, or nil when the
// graph is acyclic.
func (g *Graph) DetectCycle() []string {
	visited := make(map[string]bool, len(g.order))
	onStack := make(map[string]bool)
	var stack []string

	var dfs func(n string) []string
	dfs = func(n string) []string {
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)

		for _, d := range g.dependents[n] {
			if onStack[d] {
				start := 0
				for i, s := range stack {
					if s == d {
						start = i
						break
					}
				}
				path := append([]string(nil), stack[start:]...)
				return append(path, d)
			}
			if !visited[d] {
				if path := dfs(d); path != nil {
					return path
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[n] = false
		return nil
	}

	for _, id := range g.order {
		if visited[id] {
			continue
		}
		if path := dfs(id); path != nil {
			return path
		}
	}
	return nil
}

// ComputeLevels assigns each node the length of its longest dependency chain:
// roots are level 0, every other node is one more than its deepest
// dependency. On a cyclic graph every node is level 0.
func (g *Graph) ComputeLevels() map[string]int {
	levels := make(map[string]int, len(g.order))
	order, err := g.TopologicalSort()
	if err != nil {
		for _, id := range g.order {
			levels[id] = 0
		}
		g.levels = levels
		return copyLevels(levels)
	}

	for _, id := range order {
		lvl := 0
		for _, dep := range g.dependencies[id] {
			if l := levels[dep] + 1; l > lvl {
				lvl = l
			}
		}
		levels[id] = lvl
	}
	g.levels = levels
	return copyLevels(levels)
}

func copyLevels(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (g *Graph) ensureLevels() {
	if g.levels == nil {
		g.ComputeLevels()
	}
}

// Level returns the level of id, computing levels if needed.
func (g *Graph) Level(id string) int {
	g.ensureLevels()
	return g.levels[id]
}

// NodesByLevel groups node ids by level, each group in discovery order.
func (g *Graph) NodesByLevel() map[int][]string {
	g.ensureLevels()
	out := make(map[int][]string)
	for _, id := range g.order {
		l := g.levels[id]
		out[l] = append(out[l], id)
	}
	return out
}

// LevelGroups returns NodesByLevel as a slice indexed by level.
func (g *Graph) LevelGroups() [][]string {
	if len(g.order) == 0 {
		return nil
	}
	out := make([][]string, g.maxLevel()+1)
	for l, ids := range g.NodesByLevel() {
		out[l] = ids
	}
	return out
}

func (g *Graph) maxLevel() int {
	g.ensureLevels()
	highest := 0
	for _, l := range g.levels {
		if l > highest {
			highest = l
		}
	}
	return highest
}

// Ancestors returns every node id transitively depends on, in discovery order.
func (g *Graph) Ancestors(id string) []string {
	return g.reach(id, g.dependencies)
}

// Descendants returns every node that transitively depends on id, in discovery order.
func (g *Graph) Descendants(id string) []string {
	return g.reach(id, g.dependents)
}

func (g *Graph) reach(id string, adj map[string][]string) []string {
	seen := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		for _, next := range adj[n] {
			if seen[next] {
				continue
			}
			seen[next] = true
			walk(next)
		}
	}
	walk(id)
	delete(seen, id)

	out := make([]string, 0, len(seen))
	for _, n := range g.order {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out
}

// Stats returns node and edge counts, the deepest level, roots and leaves.
func (g *Graph) Stats() Stats {
	s := Stats{
		NodeCount: len(g.order),
		EdgeCount: len(g.pairs),
		RootNodes: []string{},
		LeafNodes: []string{},
	}
	if len(g.order) > 0 {
		s.MaxLevel = g.maxLevel()
	}
	for _, id := range g.order {
		if len(g.dependencies[id]) == 0 {
			s.RootNodes = append(s.RootNodes, id)
		}
		if len(g.dependents[id]) == 0 {
			s.LeafNodes = append(s.LeafNodes, id)
		}
	}
	return s
}
