package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Record tracks one node's execution.
type Record struct {
	NodeID    string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Completed bool
	Success   bool
	Err       error
}

// Metrics aggregates the records of a run.
type Metrics struct {
	TotalNodes         int
	CompletedNodes     int
	SuccessNodes       int
	FailedNodes        int
	SkippedNodes       int
	AverageDuration    time.Duration
	TotalDuration      time.Duration
	LongestDuration    time.Duration
	ShortestDuration   time.Duration
	MaxConcurrency     int
	CurrentConcurrency int
	StartTime          time.Time
	EndTime            time.Time
}

// ExecutionStats collects per-node timings and the concurrency peak of a run.
// Safe for concurrent use.
type ExecutionStats struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
	current int
	peak    int
	start   time.Time
	end     time.Time
	now     func() time.Time
}

// NewExecutionStats returns empty statistics. A nil clock means time.Now.
func NewExecutionStats(now func() time.Time) *ExecutionStats {
	if now == nil {
		now = time.Now
	}
	return &ExecutionStats{records: make(map[string]*Record), now: now}
}

// StartExecution marks the beginning of a run.
func (s *ExecutionStats) StartExecution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = s.now()
	s.end = time.Time{}
}

// EndExecution marks the end of a run.
func (s *ExecutionStats) EndExecution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end = s.now()
}

// RecordStart opens a record for nodeID and bumps the concurrency counter.
func (s *ExecutionStats) RecordStart(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[nodeID]; !ok {
		s.order = append(s.order, nodeID)
	}
	s.records[nodeID] = &Record{NodeID: nodeID, StartTime: s.now()}
	s.current++
	if s.current > s.peak {
		s.peak = s.current
	}
}

// RecordComplete closes the record of nodeID. It reports false when no start
// was recorded.
func (s *ExecutionStats) RecordComplete(nodeID string, success bool) bool {
	return s.finish(nodeID, success, nil)
}

// RecordFailure closes the record of nodeID as failed with err.
func (s *ExecutionStats) RecordFailure(nodeID string, err error) bool {
	return s.finish(nodeID, false, err)
}

func (s *ExecutionStats) finish(nodeID string, success bool, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[nodeID]
	if !ok {
		return false
	}
	r.EndTime = s.now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Completed = true
	r.Success = success
	r.Err = err
	if s.current > 0 {
		s.current--
	}
	return true
}

// Record returns a copy of the record of nodeID.
func (s *ExecutionStats) Record(nodeID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[nodeID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Records returns copies of every record in start order.
func (s *ExecutionStats) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

// Reset forgets every record and counter.
func (s *ExecutionStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record)
	s.order = nil
	s.current, s.peak = 0, 0
	s.start, s.end = time.Time{}, time.Time{}
}

// Metrics aggregates the records. Nodes started but not completed count as
// skipped.
func (s *ExecutionStats) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := Metrics{
		TotalNodes:         len(s.records),
		MaxConcurrency:     s.peak,
		CurrentConcurrency: s.current,
		StartTime:          s.start,
		EndTime:            s.end,
	}
	var total time.Duration
	for _, r := range s.records {
		if !r.Completed {
			continue
		}
		m.CompletedNodes++
		if r.Success {
			m.SuccessNodes++
		} else {
			m.FailedNodes++
		}
		total += r.Duration
		if m.CompletedNodes == 1 || r.Duration > m.LongestDuration {
			m.LongestDuration = r.Duration
		}
		if m.CompletedNodes == 1 || r.Duration < m.ShortestDuration {
			m.ShortestDuration = r.Duration
		}
	}
	m.SkippedNodes = m.TotalNodes - m.CompletedNodes
	if m.CompletedNodes > 0 {
		m.AverageDuration = total / time.Duration(m.CompletedNodes)
	}
	if !s.start.IsZero() {
		end := s.end
		if end.IsZero() {
			end = s.now()
		}
		m.TotalDuration = end.Sub(s.start)
	}
	return m
}

// Report renders the metrics and the slowest nodes as Markdown.
func (s *ExecutionStats) Report() string {
	m := s.Metrics()
	records := s.Records()
	sort.SliceStable(records, func(i, j int) bool { return records[i].Duration > records[j].Duration })

	var b strings.Builder
	b.WriteString("# Execution report\n\n")
	b.WriteString("| Nodes | Completed | Success | Failed | Skipped |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n", m.TotalNodes, m.CompletedNodes, m.SuccessNodes, m.FailedNodes, m.SkippedNodes)

	b.WriteString("## Timing\n\n")
	fmt.Fprintf(&b, "- Total: %s\n", m.TotalDuration)
	fmt.Fprintf(&b, "- Average: %s\n", m.AverageDuration)
	fmt.Fprintf(&b, "- Longest: %s\n", m.LongestDuration)
	fmt.Fprintf(&b, "- Shortest: %s\n\n", m.ShortestDuration)

	b.WriteString("## Concurrency\n\n")
	fmt.Fprintf(&b, "- Peak: %d\n", m.MaxConcurrency)
	fmt.Fprintf(&b, "- Current: %d\n", m.CurrentConcurrency)

	if len(records) > 0 {
		b.WriteString("\n## Nodes\n\n| Node | Status | Duration |\n|---|---|---|\n")
		for _, r := range records {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", r.NodeID, recordStatus(r), r.Duration)
		}
	}
	return b.String()
}

func recordStatus(r Record) string {
	switch {
	case !r.Completed:
		return "skipped"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}
