package domain

import "time"

// Status is the lifecycle position of a node within one run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	// StatusSkipped is reserved for conditional nodes; the engine never assigns it.
	StatusSkipped Status = "skipped"
)

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusSkipped
}

// NodeExecutionState tracks a node through PENDING -> RUNNING -> SUCCESS|ERROR.
type NodeExecutionState struct {
	NodeID    string         `json:"nodeId"`
	Status    Status         `json:"status"`
	StartTime *time.Time     `json:"startTime,omitempty"`
	EndTime   *time.Time     `json:"endTime,omitempty"`
	Error     *Error         `json:"error,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	Cached    bool           `json:"cached,omitempty"`
	Attempts  int            `json:"attempts,omitempty"`
}

// Duration returns the elapsed time between start and end, or zero.
func (s *NodeExecutionState) Duration() time.Duration {
	if s.StartTime == nil || s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(*s.StartTime)
}

// Clone returns a copy that shares neither the timestamps nor the output.
func (s *NodeExecutionState) Clone() *NodeExecutionState {
	c := *s
	c.Output = CloneMap(s.Output)
	if s.StartTime != nil {
		t := *s.StartTime
		c.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return &c
}

// ResultMetadata carries timing for a single node execution.
type ResultMetadata struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Attempts  int       `json:"attempts,omitempty"`
}

// ExecutionResult is what the registry returns for a single node invocation.
type ExecutionResult struct {
	NodeID   string         `json:"nodeId"`
	Success  bool           `json:"success"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Error    *Error         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
	Cached   bool           `json:"cached"`
	Metadata ResultMetadata `json:"metadata"`
}

// RunResult is the outcome of executing a whole graph. NodeStates always
// holds every node of the plan, including those that never started.
type RunResult struct {
	Success     bool                           `json:"success"`
	ExecutionID string                         `json:"executionId"`
	GraphID     string                         `json:"graphId,omitempty"`
	StartTime   time.Time                      `json:"startTime"`
	EndTime     time.Time                      `json:"endTime"`
	Duration    time.Duration                  `json:"duration"`
	Order       []string                       `json:"order,omitempty"`
	NodeStates  map[string]*NodeExecutionState `json:"nodeStates"`
	Error       *Error                         `json:"error,omitempty"`
}

// Output returns the output recorded for a node, if it succeeded.
func (r *RunResult) Output(nodeID string) (map[string]any, bool) {
	st, ok := r.NodeStates[nodeID]
	if !ok || st.Status != StatusSuccess {
		return nil, false
	}
	return st.Output, true
}

// CountByStatus tallies node states.
func (r *RunResult) CountByStatus() map[Status]int {
	out := make(map[Status]int)
	for _, st := range r.NodeStates {
		out[st.Status]++
	}
	return out
}

// CloneMap deep-copies a JSON-shaped map. Nested maps and slices are copied;
// other values are shared.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices within v.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}
