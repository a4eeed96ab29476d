package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lattice/pkg/cache"
	"github.com/aretw0/lattice/pkg/dirty"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/aretw0/lattice/pkg/scheduler"
	"github.com/aretw0/lattice/pkg/timeout"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a run lock survives a crashed holder.
const DefaultLockTTL = 5 * time.Minute

// Engine runs node graphs against a registry.
// One engine executes one graph at a time; overlapping calls are rejected.
type Engine struct {
	registry *registry.Registry
	cache    *cache.Manager
	tracker  *dirty.Tracker
	timeouts *timeout.Controller
	store    ports.OutputStore
	locker   ports.RunLocker
	hooks    domain.LifecycleHooks
	progress func(context.Context, *domain.ProgressEvent)
	scratch  *cache.Manager
	blocks   domain.DataBlockManager
	ai       domain.AIExecutor
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	nodeTimeout time.Duration
	parallelism int
	reuse       bool
	lockTTL     time.Duration
	userID      string

	running atomic.Bool

	mu           sync.RWMutex
	executionID  string
	states       map[string]*domain.NodeExecutionState
	fingerprints map[string]string
	stats        *scheduler.ExecutionStats
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithCache replaces the default output cache.
func WithCache(c *cache.Manager) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithoutCache disables output caching.
func WithoutCache() EngineOption {
	return func(e *Engine) {
		e.cache = nil
	}
}

// WithNodeCache replaces the cache handed to node executors. It is separate
// from the output cache and every node sees its own key space.
func WithNodeCache(c *cache.Manager) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.scratch = c
		}
	}
}

// WithDataBlocks hands m to node executors for out-of-band payloads.
func WithDataBlocks(m domain.DataBlockManager) EngineOption {
	return func(e *Engine) {
		e.blocks = m
	}
}

// WithAIExecutor hands ai to node executors.
func WithAIExecutor(ai domain.AIExecutor) EngineOption {
	return func(e *Engine) {
		e.ai = ai
	}
}

// WithProgress receives every progress report made by a node. It runs after
// the OnNodeProgress lifecycle hook.
func WithProgress(fn func(context.Context, *domain.ProgressEvent)) EngineOption {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithDirtyTracker attaches a tracker. Successful nodes are marked clean and
// MarkDirty delegates to it.
func WithDirtyTracker(t *dirty.Tracker) EngineOption {
	return func(e *Engine) {
		e.tracker = t
	}
}

// WithCacheReuse skips nodes that the dirty tracker reports clean and whose
// output is still cached. The cached output is only reused when it was
// produced in the same graph with the same type, config and resolved inputs.
// Requires a dirty tracker and a cache.
func WithCacheReuse() EngineOption {
	return func(e *Engine) {
		e.reuse = true
	}
}

// WithParallelism runs up to n nodes of the same level concurrently.
// Values below 2 keep the sequential loop.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		e.parallelism = n
	}
}

// WithNodeTimeout bounds every node invocation.
func WithNodeTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.nodeTimeout = d
	}
}

// WithTimeoutController supplies the controller whose default timeout applies
// to retried nodes when no node timeout is set.
func WithTimeoutController(c *timeout.Controller) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.timeouts = c
		}
	}
}

// WithOutputStore mirrors successful outputs to a second-tier store.
func WithOutputStore(s ports.OutputStore) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithRunLocker makes every run hold a lock keyed by graph id. A zero ttl
// means DefaultLockTTL.
func WithRunLocker(l ports.RunLocker, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.locker = l
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithUserID sets the user id handed to node executors (default: "system").
func WithUserID(id string) EngineOption {
	return func(e *Engine) {
		if id != "" {
			e.userID = id
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how execution ids are produced.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine creates a new engine over reg.
func NewEngine(reg *registry.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		cache:    cache.New(),
		scratch:  cache.New(),
		timeouts: timeout.NewController(),
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		lockTTL:  DefaultLockTTL,
		userID:   "system",
		states:   make(map[string]*domain.NodeExecutionState),

		fingerprints: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stats = scheduler.NewExecutionStats(e.now)
	return e
}

// Registry returns the node registry the engine executes against.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// IsExecuting reports whether a run is in progress.
func (e *Engine) IsExecuting() bool { return e.running.Load() }

// ExecutionID returns the id of the current or last run.
func (e *Engine) ExecutionID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.executionID
}

// NodeState returns a copy of one node's state in the current or last run.
func (e *Engine) NodeState(nodeID string) (*domain.NodeExecutionState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.states[nodeID]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// NodeStates returns copies of every node state in the current or last run.
func (e *Engine) NodeStates() map[string]*domain.NodeExecutionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() map[string]*domain.NodeExecutionState {
	out := make(map[string]*domain.NodeExecutionState, len(e.states))
	for id, st := range e.states {
		out[id] = st.Clone()
	}
	return out
}

// Stats returns the execution statistics of the current or last run.
func (e *Engine) Stats() *scheduler.ExecutionStats { return e.stats }

// MarkDirty marks nodeID dirty and propagates to its descendants. It returns
// the descendants newly marked. Without a tracker it only logs a warning.
func (e *Engine) MarkDirty(nodeID string) []string {
	if e.tracker == nil {
		e.logger.Warn("dirty tracker not attached", "node_id", nodeID)
		return nil
	}
	e.tracker.MarkDirty(nodeID, dirty.ReasonManual, "")
	return e.tracker.PropagateDirty(nodeID)
}

// DirtyTracker returns the attached tracker, or nil.
func (e *Engine) DirtyTracker() *dirty.Tracker { return e.tracker }

// CacheStats returns the output cache counters. A disabled cache reports zeros.
func (e *Engine) CacheStats() cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

// ClearCache empties the output cache.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
	e.mu.Lock()
	e.fingerprints = make(map[string]string)
	e.mu.Unlock()
}
