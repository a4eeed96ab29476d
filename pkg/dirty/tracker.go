// Package dirty tracks which nodes hold stale results and must be recomputed.
package dirty

import (
	"sort"
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/dag"
)

// Reason explains why a node became dirty.
type Reason string

const (
	ReasonDataChanged       Reason = "data_changed"
	ReasonConfigChanged     Reason = "config_changed"
	ReasonDependencyChanged Reason = "dependency_changed"
	ReasonManual            Reason = "manual"
)

// Record is the dirty state of one node.
type Record struct {
	NodeID       string    `json:"nodeId"`
	IsDirty      bool      `json:"isDirty"`
	Reason       Reason    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	SourceNodeID string    `json:"sourceNodeId,omitempty"`
}

// Stats summarizes tracked records.
type Stats struct {
	TotalTracked int            `json:"totalTracked"`
	DirtyCount   int            `json:"dirtyCount"`
	CleanCount   int            `json:"cleanCount"`
	ByReason     map[Reason]int `json:"byReason"`
}

// Tracker records dirty state per node and propagates it downstream through
// a dependency graph. Safe for concurrent use; the graph is only read under
// the tracker's lock.
type Tracker struct {
	mu      sync.Mutex
	graph   *dag.Graph
	records map[string]*Record
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a tracker over graph. A nil graph is replaced by an empty one.
func New(graph *dag.Graph, opts ...Option) *Tracker {
	if graph == nil {
		graph = dag.New()
	}
	t := &Tracker{
		graph:   graph,
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetGraph replaces the dependency graph. Records are kept.
func (t *Tracker) SetGraph(graph *dag.Graph) {
	if graph == nil {
		graph = dag.New()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.graph = graph
}

// MarkDirty overwrites the record of nodeID. sourceNodeID may be empty.
func (t *Tracker) MarkDirty(nodeID string, reason Reason, sourceNodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markLocked(nodeID, reason, sourceNodeID)
}

func (t *Tracker) markLocked(nodeID string, reason Reason, source string) {
	t.records[nodeID] = &Record{
		NodeID:       nodeID,
		IsDirty:      true,
		Reason:       reason,
		Timestamp:    t.now(),
		SourceNodeID: source,
	}
}

func (t *Tracker) dirtyLocked(nodeID string) bool {
	r, ok := t.records[nodeID]
	return ok && r.IsDirty
}

// IsDirty reports whether nodeID is currently dirty. Untracked nodes are clean.
func (t *Tracker) IsDirty(nodeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirtyLocked(nodeID)
}

// IsTracked reports whether any record exists for nodeID.
func (t *Tracker) IsTracked(nodeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.records[nodeID]
	return ok
}

// ClearDirty marks nodeID clean, creating a record if none exists.
func (t *Tracker) ClearDirty(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[nodeID]
	if !ok {
		r = &Record{NodeID: nodeID}
		t.records[nodeID] = r
	}
	r.IsDirty = false
	r.Reason = ""
	r.SourceNodeID = ""
	r.Timestamp = t.now()
}

// DirtyNodes returns every dirty node, in graph discovery order followed by
// nodes unknown to the graph.
func (t *Tracker) DirtyNodes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	seen := make(map[string]bool)
	for _, id := range t.graph.Nodes() {
		if t.dirtyLocked(id) {
			out = append(out, id)
			seen[id] = true
		}
	}
	for _, id := range sortedKeys(t.records) {
		if !seen[id] && t.records[id].IsDirty {
			out = append(out, id)
		}
	}
	return out
}

// PropagateDirty marks every descendant of nodeID dirty with
// ReasonDependencyChanged and returns the ones that were not already dirty.
// Descendants that were already dirty keep their existing record.
func (t *Tracker) PropagateDirty(nodeID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.propagateLocked(nodeID)
}

func (t *Tracker) propagateLocked(nodeID string) []string {
	affected := []string{}
	for _, d := range t.graph.Descendants(nodeID) {
		if t.dirtyLocked(d) {
			continue
		}
		t.markLocked(d, ReasonDependencyChanged, nodeID)
		affected = append(affected, d)
	}
	return affected
}

// MarkDirtyBatch marks each id dirty with reason, then propagates from each.
// It returns every node newly dirtied by propagation.
func (t *Tracker) MarkDirtyBatch(nodeIDs []string, reason Reason) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range nodeIDs {
		t.markLocked(id, reason, "")
	}
	var affected []string
	for _, id := range nodeIDs {
		affected = append(affected, t.propagateLocked(id)...)
	}
	return affected
}

// Record returns a copy of the record of nodeID.
func (t *Tracker) Record(nodeID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[nodeID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Records returns copies of every record, keyed by node id.
func (t *Tracker) Records() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Record, len(t.records))
	for id, r := range t.records {
		out[id] = *r
	}
	return out
}

// ClearAll marks every tracked node clean.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for _, r := range t.records {
		r.IsDirty = false
		r.Reason = ""
		r.SourceNodeID = ""
		r.Timestamp = now
	}
}

// Reset forgets every record.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]*Record)
}

// Stats counts tracked, dirty and clean nodes, and dirty nodes per reason.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{TotalTracked: len(t.records), ByReason: make(map[Reason]int)}
	for _, r := range t.records {
		if r.IsDirty {
			s.DirtyCount++
			s.ByReason[r.Reason]++
		} else {
			s.CleanCount++
		}
	}
	return s
}

// ExecutionOrder returns the dirty nodes in topological order, the subset an
// incremental run has to recompute.
func (t *Tracker) ExecutionOrder() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	order, err := t.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, id := range order {
		if t.dirtyLocked(id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func sortedKeys(m map[string]*Record) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
