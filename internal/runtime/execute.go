package runtime

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/scheduler"
	"github.com/aretw0/lattice/pkg/timeout"
)

// run carries the per-execution values shared by every node.
type run struct {
	id     string
	graph  *domain.Graph
	plan   *Plan
	logger *slog.Logger
}

// ExecuteGraph validates graph, plans it and executes every node in
// dependency order. It never returns an error: failures are reported in the
// result, which always carries every node state observed so far.
//
// Execution is fail-fast: once a node fails, no further node is started.
func (e *Engine) ExecuteGraph(ctx context.Context, graph *domain.Graph) *domain.RunResult {
	start := e.now()
	res := &domain.RunResult{
		StartTime:  start,
		NodeStates: map[string]*domain.NodeExecutionState{},
	}
	if graph != nil {
		res.GraphID = graph.ID
	}

	if !e.running.CompareAndSwap(false, true) {
		res.Error = domain.NewError(domain.CodeEngineBusy, "another graph is being executed").Wrap(domain.ErrEngineBusy)
		res.EndTime = e.now()
		res.Duration = res.EndTime.Sub(start)
		return res
	}
	defer e.running.Store(false)

	r := &run{id: e.newID(), graph: graph}
	r.logger = e.logger.With("execution_id", r.id)
	if graph != nil {
		r.logger = r.logger.With("graph_id", graph.ID)
	}
	res.ExecutionID = r.id

	e.mu.Lock()
	e.executionID = r.id
	e.states = make(map[string]*domain.NodeExecutionState)
	e.mu.Unlock()
	e.stats.Reset()
	e.stats.StartExecution()

	err := e.execute(ctx, r)

	e.stats.EndExecution()
	res.EndTime = e.now()
	res.Duration = res.EndTime.Sub(start)
	res.Success = err == nil
	res.Error = err
	if r.plan != nil {
		res.Order = r.plan.Order
	}
	e.mu.RLock()
	res.NodeStates = e.snapshotLocked()
	e.mu.RUnlock()

	if err != nil {
		r.logger.WarnContext(ctx, "execution failed", "err", err, "duration", res.Duration)
	} else {
		r.logger.InfoContext(ctx, "execution finished", "nodes", len(res.NodeStates), "duration", res.Duration)
	}
	if e.hooks.OnRunEnd != nil {
		ev := &domain.RunEvent{
			EventBase:  e.base(r, domain.EventRunEnd),
			TotalNodes: len(res.NodeStates),
			Success:    res.Success,
			Duration:   res.Duration,
		}
		if err != nil {
			ev.Err = err
		}
		e.hooks.OnRunEnd(ctx, ev)
	}
	return res
}

func (e *Engine) base(r *run, t domain.EventType) domain.EventBase {
	b := domain.EventBase{Timestamp: e.now(), Type: t, ExecutionID: r.id}
	if r.graph != nil {
		b.GraphID = r.graph.ID
	}
	return b
}

func (e *Engine) execute(ctx context.Context, r *run) *domain.Error {
	if e.hooks.OnRunStart != nil {
		total := 0
		if r.graph != nil {
			total = r.graph.NodeCount()
		}
		e.hooks.OnRunStart(ctx, &domain.RunEvent{EventBase: e.base(r, domain.EventRunStart), TotalNodes: total})
	}

	if v := e.ValidateGraph(r.graph); !v.Valid {
		return domain.NewError(domain.CodeGraphValidationFailed, "graph validation failed: %s", strings.Join(v.Errors, ", ")).
			WithDetails(v.Errors).
			Wrap(domain.ErrGraphInvalid)
	}

	plan, err := e.CreateExecutionPlan(r.graph)
	if err != nil {
		return domain.NewError(domain.CodeExecutionPlanFailed, "could not plan graph").Wrap(err)
	}
	r.plan = plan
	r.logger.DebugContext(ctx, "execution plan created", "nodes", plan.TotalNodes, "order", strings.Join(plan.Order, " -> "))

	if e.locker != nil {
		key := r.graph.ID
		if key == "" {
			key = "default"
		}
		unlock, err := e.locker.Lock(ctx, key, e.lockTTL)
		if err != nil {
			return domain.NewError(domain.CodeRunLockFailed, "could not lock graph %s", key).Wrap(err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("failed to release run lock", "err", err)
			}
		}()
	}

	if e.tracker != nil {
		e.tracker.SetGraph(plan.deps)
	}

	e.mu.Lock()
	for _, id := range plan.Order {
		e.states[id] = &domain.NodeExecutionState{NodeID: id, Status: domain.StatusPending}
	}
	e.mu.Unlock()

	if e.parallelism > 1 {
		return e.executeLevels(ctx, r)
	}
	for _, id := range plan.Order {
		if err := ctx.Err(); err != nil {
			return domain.NewError(domain.CodeExecutionCancelled, "execution cancelled before node %s", id).Wrap(err)
		}
		if nerr := e.executeNode(ctx, r, id); nerr != nil {
			if err := ctx.Err(); err != nil {
				return domain.NewError(domain.CodeExecutionCancelled, "execution cancelled at node %s", id).Wrap(err)
			}
			return abort(id, nerr)
		}
	}
	return nil
}

func abort(nodeID string, cause *domain.Error) *domain.Error {
	return domain.NewError(domain.CodeExecutionAborted, "node %s failed", nodeID).
		WithDetails(map[string]any{"nodeId": nodeID, "code": cause.Code}).
		Wrap(cause)
}

// executeLevels runs each level through a bounded parallel executor and
// waits for the whole level before starting the next one.
func (e *Engine) executeLevels(ctx context.Context, r *run) *domain.Error {
	position := make(map[string]int, len(r.plan.Order))
	for i, id := range r.plan.Order {
		position[id] = i
	}

	for _, level := range r.plan.Groups {
		if err := ctx.Err(); err != nil {
			return domain.NewError(domain.CodeExecutionCancelled, "execution cancelled before level %d", r.plan.Level(level[0])).Wrap(err)
		}

		tasks := make([]scheduler.Task, 0, len(level))
		for _, id := range level {
			id := id
			tasks = append(tasks, scheduler.Task{
				ID:       id,
				Priority: position[id],
				Run: func(ctx context.Context) (any, error) {
					if nerr := e.executeNode(ctx, r, id); nerr != nil {
						return nil, nerr
					}
					return nil, nil
				},
			})
		}

		pe := scheduler.NewParallelExecutor(
			scheduler.WithMaxConcurrency(e.parallelism),
			scheduler.WithStopOnError(),
		)
		results := pe.Execute(ctx, tasks)
		// Failures seen after cancellation are reported as the cancellation.
		if err := ctx.Err(); err != nil {
			return cancelled(r, level, results, err)
		}
		for _, id := range level {
			if res, ok := results[id]; ok && !res.Success {
				return abort(id, domain.AsError(res.Err, domain.CodeExecutionError))
			}
		}
		// Without a failure, a task with no result was never started.
		if len(results) < len(level) {
			return cancelled(r, level, results, context.Canceled)
		}
	}
	return nil
}

func cancelled(r *run, level []string, results map[string]scheduler.TaskResult, cause error) *domain.Error {
	var unstarted []string
	for _, id := range level {
		if _, ok := results[id]; !ok {
			unstarted = append(unstarted, id)
		}
	}
	return domain.NewError(domain.CodeExecutionCancelled, "execution cancelled during level %d", r.plan.Level(level[0])).
		WithDetails(map[string]any{"notStarted": unstarted}).
		Wrap(cause)
}

func (e *Engine) update(nodeID string, fn func(*domain.NodeExecutionState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[nodeID]
	if !ok {
		st = &domain.NodeExecutionState{NodeID: nodeID}
		e.states[nodeID] = st
	}
	fn(st)
}

func (e *Engine) executeNode(ctx context.Context, r *run, nodeID string) *domain.Error {
	node, ok := r.graph.Node(nodeID)
	if !ok {
		return domain.NewError(domain.CodeNodeNotFound, "node %s not found in graph", nodeID).Wrap(domain.ErrNodeNotFound)
	}
	logger := r.logger.With("node_id", nodeID, "node_type", node.Type)

	started := e.now()
	e.update(nodeID, func(st *domain.NodeExecutionState) {
		st.Status = domain.StatusRunning
		st.StartTime = &started
	})
	e.stats.RecordStart(nodeID)
	e.emitNode(ctx, r, node, domain.EventNodeStart, domain.StatusRunning, nil)

	inputs := e.resolveInputs(r.graph, node)
	var fp string
	if e.reuse {
		fp = fingerprint(r.graph.ID, node, inputs)
	}
	if out, ok := e.reusable(node, fp); ok {
		ended := e.now()
		e.update(nodeID, func(st *domain.NodeExecutionState) {
			st.Status = domain.StatusSuccess
			st.EndTime = &ended
			st.Output = out
			st.Cached = true
		})
		e.stats.RecordComplete(nodeID, true)
		logger.DebugContext(ctx, "node reused from cache")
		e.emitNode(ctx, r, node, domain.EventNodeEnd, domain.StatusSuccess, nil)
		return nil
	}

	ec := e.nodeContext(ctx, r, node)
	ec.StartedAt = started
	ec.Logger = logger

	logger.DebugContext(ctx, "executing node")
	result := e.invoke(ctx, node, inputs, ec)
	ended := e.now()

	if !result.Success {
		e.update(nodeID, func(st *domain.NodeExecutionState) {
			st.Status = domain.StatusError
			st.EndTime = &ended
			st.Error = result.Error
			st.Attempts = result.Metadata.Attempts
		})
		e.stats.RecordFailure(nodeID, result.Error)
		logger.ErrorContext(ctx, "node failed", "code", result.Error.Code, "err", result.Error)
		e.emitNode(ctx, r, node, domain.EventNodeEnd, domain.StatusError, result.Error)
		return result.Error
	}

	e.remember(ctx, r, node, result.Outputs, fp, logger)
	e.update(nodeID, func(st *domain.NodeExecutionState) {
		st.Status = domain.StatusSuccess
		st.EndTime = &ended
		st.Output = result.Outputs
		st.Attempts = result.Metadata.Attempts
	})
	e.stats.RecordComplete(nodeID, true)
	logger.DebugContext(ctx, "node completed", "duration", ended.Sub(started))
	e.emitNode(ctx, r, node, domain.EventNodeEnd, domain.StatusSuccess, nil)
	return nil
}

func (e *Engine) emitNode(ctx context.Context, r *run, node *domain.NodeInstance, t domain.EventType, status domain.Status, err *domain.Error) {
	hook := e.hooks.OnNodeStart
	if t == domain.EventNodeEnd {
		hook = e.hooks.OnNodeEnd
	}
	if hook == nil {
		return
	}
	ev := &domain.NodeEvent{
		EventBase: e.base(r, t),
		NodeID:    node.ID,
		NodeType:  node.Type,
		Level:     r.plan.Level(node.ID),
		Status:    status,
		Err:       err,
	}
	if st, ok := e.NodeState(node.ID); ok {
		ev.Cached = st.Cached
		ev.Attempts = st.Attempts
		ev.Duration = st.Duration()
	}
	hook(ctx, ev)
}

// resolveInputs starts from the node's static inputs and binds, for every
// incoming edge, the upstream output field to the target port. Upstream nodes
// always precede nodeID in the plan, so their outputs are already recorded.
func (e *Engine) resolveInputs(graph *domain.Graph, node *domain.NodeInstance) map[string]any {
	inputs := make(map[string]any, len(node.Inputs))
	for k, v := range node.Inputs {
		inputs[k] = v
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, edge := range graph.IncomingEdges(node.ID) {
		src, ok := e.states[edge.From.NodeID]
		if !ok || src.Output == nil {
			continue
		}
		if v, ok := src.Output[edge.From.Port]; ok {
			inputs[edge.To.Port] = v
		}
	}
	return inputs
}

// reusable returns the cached output of a node the dirty tracker knows to be
// clean, provided the output was recorded for the same fingerprint.
func (e *Engine) reusable(node *domain.NodeInstance, fp string) (map[string]any, bool) {
	if !e.reuse || e.tracker == nil || e.cache == nil || fp == "" {
		return nil, false
	}
	if !e.tracker.IsTracked(node.ID) || e.tracker.IsDirty(node.ID) {
		return nil, false
	}
	if m, err := e.registry.Manifest(node.Type); err == nil && m.CachePolicy != nil && !m.CachePolicy.Enabled {
		return nil, false
	}
	e.mu.RLock()
	same := e.fingerprints[node.ID] == fp
	e.mu.RUnlock()
	if !same {
		return nil, false
	}
	v, ok := e.cache.Get(node.ID)
	if !ok {
		return nil, false
	}
	out, ok := v.(map[string]any)
	return out, ok
}

// remember records a successful output in the cache, the output store and
// the dirty tracker. Failures here are logged and never fail the node.
func (e *Engine) remember(ctx context.Context, r *run, node *domain.NodeInstance, out map[string]any, fp string, logger *slog.Logger) {
	if e.cache != nil {
		var policy *domain.CachePolicy
		if m, err := e.registry.Manifest(node.Type); err == nil {
			policy = m.CachePolicy
		}
		cached := true
		switch {
		case policy == nil:
			e.cache.Set(node.ID, out)
		case policy.Enabled:
			e.cache.SetWithTTL(node.ID, out, policy.TTL)
		default:
			cached = false
		}
		e.mu.Lock()
		if cached && fp != "" {
			e.fingerprints[node.ID] = fp
		} else {
			delete(e.fingerprints, node.ID)
		}
		e.mu.Unlock()
	}
	if e.store != nil {
		if err := e.store.Save(ctx, r.graph.ID, node.ID, out); err != nil {
			logger.WarnContext(ctx, "failed to store node output", "err", err)
		}
	}
	if e.tracker != nil {
		e.tracker.ClearDirty(node.ID)
	}
}

// invoke calls the registry, applying the node timeout and the manifest retry
// policy when either is configured.
func (e *Engine) invoke(ctx context.Context, node *domain.NodeInstance, inputs map[string]any, ec *domain.ExecutionContext) *domain.ExecutionResult {
	var policy *domain.RetryPolicy
	if m, err := e.registry.Manifest(node.Type); err == nil && m.RetryPolicy != nil && m.RetryPolicy.Enabled && m.RetryPolicy.MaxRetries > 0 {
		policy = m.RetryPolicy
	}

	if e.nodeTimeout <= 0 && policy == nil {
		res := e.registry.Execute(ctx, node.Type, inputs, node.Config, ec)
		res.Metadata.Attempts = 1
		return res
	}

	var attempts atomic.Int32
	call := func(ctx context.Context) (*domain.ExecutionResult, error) {
		attempts.Add(1)
		res := e.registry.Execute(ctx, node.Type, inputs, node.Config, ec)
		if !res.Success {
			return res, res.Error
		}
		return res, nil
	}

	limit := e.timeouts.Resolve(e.nodeTimeout)
	var (
		res *domain.ExecutionResult
		err error
	)
	if policy != nil {
		res, err = timeout.Retry(ctx, call, timeout.RetryOptions{
			MaxAttempts: policy.MaxRetries + 1,
			Timeout:     limit,
			Delay:       policy.Backoff,
			Backoff:     timeout.BackoffLinear,
		})
	} else {
		res, err = timeout.Execute(ctx, call, limit)
	}

	n := int(attempts.Load())
	if err == nil {
		res.Metadata.Attempts = n
		return res
	}

	started := ec.StartedAt
	ended := e.now()
	failed := &domain.ExecutionResult{
		NodeID:   node.ID,
		Duration: ended.Sub(started),
		Metadata: domain.ResultMetadata{StartTime: started, EndTime: ended, Attempts: n},
	}
	var te *timeout.TimeoutError
	switch {
	case errors.As(err, &te):
		failed.Error = domain.NewError(domain.CodeNodeTimeout, "node %s timed out after %s", node.ID, te.Timeout).Wrap(err)
	case ctx.Err() != nil:
		failed.Error = domain.NewError(domain.CodeExecutionCancelled, "node %s cancelled", node.ID).Wrap(err)
	default:
		failed.Error = domain.AsError(err, domain.CodeExecutionError)
	}
	return failed
}
