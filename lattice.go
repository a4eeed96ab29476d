package lattice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/cache"
	"github.com/aretw0/lattice/pkg/dirty"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/nodes"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/aretw0/lattice/pkg/scheduler"
	"github.com/aretw0/lattice/pkg/timeout"
)

// Plan is the execution order of a graph.
type Plan = runtime.Plan

// Validation is the outcome of ValidateGraph.
type Validation = runtime.Validation

// Definition pairs a node manifest with its executor.
type Definition = registry.Definition

// Engine is the high-level entry point for the lattice library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime     *runtime.Engine
	registry    *registry.Registry
	loader      ports.GraphLoader
	runtimeOpts []runtime.EngineOption
	hooks       []domain.LifecycleHooks
	logger      *slog.Logger
	tracker     *dirty.Tracker
	reuse       bool
	stdlib      bool
	defs        []registry.Definition
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. It may be given several
// times; the hook sets run in order.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks)
	}
}

// WithLoader injects the GraphLoader used by Run.
func WithLoader(l ports.GraphLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistry executes against an existing registry instead of a new one.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithStandardNodes registers the built-in node library.
func WithStandardNodes() Option {
	return func(e *Engine) {
		e.stdlib = true
	}
}

// WithNodes registers additional node definitions.
func WithNodes(defs ...registry.Definition) Option {
	return func(e *Engine) {
		e.defs = append(e.defs, defs...)
	}
}

// WithCache replaces the default output cache.
func WithCache(c *cache.Manager) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCache(c))
	}
}

// WithoutCache disables output caching.
func WithoutCache() Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithoutCache())
	}
}

// WithDirtyTracker attaches a dirty tracker.
func WithDirtyTracker(t *dirty.Tracker) Option {
	return func(e *Engine) {
		e.tracker = t
	}
}

// WithCacheReuse serves clean, cached nodes without executing them.
// A dirty tracker is attached if none was given.
func WithCacheReuse() Option {
	return func(e *Engine) {
		e.reuse = true
	}
}

// WithParallelism runs up to n nodes of the same level at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithParallelism(n))
	}
}

// WithNodeTimeout bounds every node invocation.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithNodeTimeout(d))
	}
}

// WithTimeoutController supplies the default timeout for retried nodes.
func WithTimeoutController(c *timeout.Controller) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithTimeoutController(c))
	}
}

// WithOutputStore mirrors successful outputs to s.
func WithOutputStore(s ports.OutputStore) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithOutputStore(s))
	}
}

// WithRunLocker serializes runs of the same graph across processes.
func WithRunLocker(l ports.RunLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithRunLocker(l, ttl))
	}
}

// WithDataBlocks hands m to node executors as ExecutionContext.DataBlocks.
// A *datablock.Manager is the usual choice.
func WithDataBlocks(m domain.DataBlockManager) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithDataBlocks(m))
	}
}

// WithAIExecutor hands ai to node executors as ExecutionContext.AI.
func WithAIExecutor(ai domain.AIExecutor) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithAIExecutor(ai))
	}
}

// WithProgress receives the progress reported by nodes. It is shorthand for
// a lifecycle hook set with only OnNodeProgress.
func WithProgress(fn func(context.Context, *domain.ProgressEvent)) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, domain.LifecycleHooks{OnNodeProgress: fn})
	}
}

// WithNodeCache replaces the cache executors reach through
// ExecutionContext.Cache. Each node sees its own key space.
func WithNodeCache(c *cache.Manager) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithNodeCache(c))
	}
}

// WithUserID sets the user id handed to node executors.
func WithUserID(id string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithUserID(id))
	}
}

// New initializes a new lattice Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.registry == nil {
		eng.registry = registry.New(registry.WithLogger(eng.logger))
	}
	if eng.stdlib {
		if err := nodes.RegisterAll(eng.registry); err != nil {
			return nil, fmt.Errorf("failed to register standard nodes: %w", err)
		}
	}
	if err := eng.registry.RegisterAll(eng.defs...); err != nil {
		return nil, fmt.Errorf("failed to register nodes: %w", err)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(domain.Merge(eng.hooks...)),
		runtime.WithLogger(eng.logger),
	}
	if eng.reuse {
		if eng.tracker == nil {
			eng.tracker = dirty.New(nil)
		}
		runtimeOpts = append(runtimeOpts, runtime.WithCacheReuse())
	}
	if eng.tracker != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithDirtyTracker(eng.tracker))
	}
	// Append user-defined runtime options
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(eng.registry, runtimeOpts...)
	return eng, nil
}

// Registry returns the node registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Register adds node definitions to the registry.
func (e *Engine) Register(defs ...registry.Definition) error {
	return e.registry.RegisterAll(defs...)
}

// Loader returns the GraphLoader used by Run, or nil.
func (e *Engine) Loader() ports.GraphLoader { return e.loader }

// LoadGraph reads ref through the configured loader.
func (e *Engine) LoadGraph(ctx context.Context, ref string) (*domain.Graph, error) {
	if e.loader == nil {
		return nil, fmt.Errorf("no graph loader configured")
	}
	return e.loader.LoadGraph(ctx, ref)
}

// Run loads ref and executes it.
func (e *Engine) Run(ctx context.Context, ref string) (*domain.RunResult, error) {
	g, err := e.LoadGraph(ctx, ref)
	if err != nil {
		return nil, err
	}
	return e.ExecuteGraph(ctx, g), nil
}

// ExecuteGraph validates, plans and executes graph.
func (e *Engine) ExecuteGraph(ctx context.Context, graph *domain.Graph) *domain.RunResult {
	return e.runtime.ExecuteGraph(ctx, graph)
}

// ValidateGraph checks graph without executing it.
func (e *Engine) ValidateGraph(graph *domain.Graph) Validation {
	return e.runtime.ValidateGraph(graph)
}

// CreateExecutionPlan orders graph by dependency.
func (e *Engine) CreateExecutionPlan(graph *domain.Graph) (*Plan, error) {
	return e.runtime.CreateExecutionPlan(graph)
}

// IsExecuting reports whether a run is in progress.
func (e *Engine) IsExecuting() bool { return e.runtime.IsExecuting() }

// ExecutionID returns the id of the current or last run.
func (e *Engine) ExecutionID() string { return e.runtime.ExecutionID() }

// NodeState returns one node's state in the current or last run.
func (e *Engine) NodeState(nodeID string) (*domain.NodeExecutionState, bool) {
	return e.runtime.NodeState(nodeID)
}

// NodeStates returns every node state in the current or last run.
func (e *Engine) NodeStates() map[string]*domain.NodeExecutionState {
	return e.runtime.NodeStates()
}

// Stats returns the statistics of the current or last run.
func (e *Engine) Stats() *scheduler.ExecutionStats { return e.runtime.Stats() }

// MarkDirty marks nodeID and its descendants for recomputation.
func (e *Engine) MarkDirty(nodeID string) []string { return e.runtime.MarkDirty(nodeID) }

// DirtyTracker returns the attached dirty tracker, or nil.
func (e *Engine) DirtyTracker() *dirty.Tracker { return e.runtime.DirtyTracker() }

// CacheStats returns the output cache counters.
func (e *Engine) CacheStats() cache.Stats { return e.runtime.CacheStats() }

// ClearCache empties the output cache.
func (e *Engine) ClearCache() { e.runtime.ClearCache() }
