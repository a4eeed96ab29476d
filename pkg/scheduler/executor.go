package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds an executor created without WithMaxConcurrency.
const DefaultMaxConcurrency = 10

// TaskResult is the outcome of one task.
type TaskResult struct {
	TaskID   string
	Success  bool
	Value    any
	Err      error
	Duration time.Duration
}

// ExecutorStats summarizes the last Execute call.
type ExecutorStats struct {
	TotalTasks      int
	CompletedTasks  int
	SuccessTasks    int
	FailedTasks     int
	RunningTasks    int
	AverageDuration time.Duration
}

// ParallelExecutor drains a TaskQueue with at most MaxConcurrency tasks in
// flight. Task failures are recorded as results, never returned as errors.
type ParallelExecutor struct {
	mu          sync.Mutex
	maxConc     int
	stopOnError bool
	queued      int
	running     map[string]struct{}
	results     map[string]TaskResult
	stopped     atomic.Bool
	stats       *ExecutionStats
}

// ExecutorOption configures a ParallelExecutor.
type ExecutorOption func(*ParallelExecutor)

// WithMaxConcurrency bounds the number of tasks in flight. Values below 1 are
// ignored.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(e *ParallelExecutor) {
		if n >= 1 {
			e.maxConc = n
		}
	}
}

// WithStopOnError stops starting new tasks after the first failure.
func WithStopOnError() ExecutorOption {
	return func(e *ParallelExecutor) { e.stopOnError = true }
}

// WithStats records every task start and completion into s.
func WithStats(s *ExecutionStats) ExecutorOption {
	return func(e *ParallelExecutor) { e.stats = s }
}

// NewParallelExecutor creates an executor.
func NewParallelExecutor(opts ...ExecutorOption) *ParallelExecutor {
	e := &ParallelExecutor{
		maxConc: DefaultMaxConcurrency,
		running: make(map[string]struct{}),
		results: make(map[string]TaskResult),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs tasks in priority order and waits for every started task.
// Tasks not started because of Stop, StopOnError or ctx cancellation have no
// result.
func (e *ParallelExecutor) Execute(ctx context.Context, tasks []Task) map[string]TaskResult {
	q := NewTaskQueue()
	for _, t := range tasks {
		q.Enqueue(t)
	}

	e.mu.Lock()
	e.running = make(map[string]struct{})
	e.results = make(map[string]TaskResult)
	e.queued = q.Len()
	limit := e.maxConc
	e.mu.Unlock()
	e.stopped.Store(false)

	g := new(errgroup.Group)
	g.SetLimit(limit)
	for {
		if e.stopped.Load() || ctx.Err() != nil {
			break
		}
		t, ok := q.Dequeue()
		if !ok {
			break
		}
		// Go blocks while the limit is reached, so check again before starting.
		g.Go(func() error {
			if e.stopped.Load() || ctx.Err() != nil {
				e.mu.Lock()
				e.queued--
				e.mu.Unlock()
				return nil
			}
			e.run(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	e.queued = 0
	e.mu.Unlock()
	return e.Results()
}

func (e *ParallelExecutor) run(ctx context.Context, t Task) {
	e.mu.Lock()
	e.queued--
	e.running[t.ID] = struct{}{}
	e.mu.Unlock()
	if e.stats != nil {
		e.stats.RecordStart(t.ID)
	}

	start := time.Now()
	v, err := safeRun(ctx, t)
	res := TaskResult{TaskID: t.ID, Success: err == nil, Value: v, Err: err, Duration: time.Since(start)}

	e.mu.Lock()
	delete(e.running, t.ID)
	e.results[t.ID] = res
	e.mu.Unlock()

	if e.stats != nil {
		if err != nil {
			e.stats.RecordFailure(t.ID, err)
		} else {
			e.stats.RecordComplete(t.ID, true)
		}
	}
	if err != nil && e.stopOnError {
		e.Stop()
	}
}

func safeRun(ctx context.Context, t Task) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.ID, r)
		}
	}()
	if t.Run == nil {
		return nil, fmt.Errorf("task %s has no function", t.ID)
	}
	return t.Run(ctx)
}

// Stop prevents further tasks from starting. Running tasks finish.
func (e *ParallelExecutor) Stop() { e.stopped.Store(true) }

// SetMaxConcurrency changes the bound for the next Execute call.
func (e *ParallelExecutor) SetMaxConcurrency(n int) error {
	if n < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", n)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxConc = n
	return nil
}

// RunningCount returns the number of tasks in flight.
func (e *ParallelExecutor) RunningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// RunningIDs returns the ids of tasks in flight, sorted.
func (e *ParallelExecutor) RunningIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.running))
	for id := range e.running {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CompletedCount returns the number of finished tasks.
func (e *ParallelExecutor) CompletedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.results)
}

// Results returns a copy of every recorded result.
func (e *ParallelExecutor) Results() map[string]TaskResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]TaskResult, len(e.results))
	for k, v := range e.results {
		out[k] = v
	}
	return out
}

// Result returns the result of one task.
func (e *ParallelExecutor) Result(id string) (TaskResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.results[id]
	return r, ok
}

// Stats summarizes the current or last Execute call.
func (e *ParallelExecutor) Stats() ExecutorStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := ExecutorStats{
		TotalTasks:     e.queued + len(e.running) + len(e.results),
		CompletedTasks: len(e.results),
		RunningTasks:   len(e.running),
	}
	var total time.Duration
	for _, r := range e.results {
		if r.Success {
			s.SuccessTasks++
		} else {
			s.FailedTasks++
		}
		total += r.Duration
	}
	if len(e.results) > 0 {
		s.AverageDuration = total / time.Duration(len(e.results))
	}
	return s
}
