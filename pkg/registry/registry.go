package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/schema"
)

// Definition pairs a manifest with the executor implementing it.
type Definition struct {
	Manifest domain.Manifest
	Executor domain.NodeExecutor
}

type entry struct {
	def     Definition
	inputs  *schema.Validator
	outputs *schema.Validator
	config  *schema.Validator
}

// Registry manages the available node types.
type Registry struct {
	mu     sync.RWMutex
	nodes  map[string]*entry
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration and execution messages.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used for result timing.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a new empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		nodes:  make(map[string]*entry),
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func checkManifest(m *domain.Manifest) *domain.Error {
	switch {
	case m.Type == "":
		return domain.NewError(domain.CodeMissingType, "node type is required")
	case m.Version == "":
		return domain.NewError(domain.CodeMissingVersion, "version is required for node %s", m.Type)
	case m.Category == "":
		return domain.NewError(domain.CodeMissingCategory, "category is required for node %s", m.Type)
	case !m.Label.IsComplete():
		return domain.NewError(domain.CodeMissingLabel, "label with zh and en is required for node %s", m.Type)
	case m.InputsSchema == nil:
		return domain.NewError(domain.CodeMissingInputsSchema, "inputs schema is required for node %s", m.Type)
	case m.OutputsSchema == nil:
		return domain.NewError(domain.CodeMissingOutputsSchema, "outputs schema is required for node %s", m.Type)
	}
	return nil
}

func compileAll(m *domain.Manifest) (*entry, error) {
	e := &entry{}
	var err error
	if e.inputs, err = schema.Compile(m.InputsSchema); err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	if e.outputs, err = schema.Compile(m.OutputsSchema); err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	if m.ConfigSchema != nil {
		if e.config, err = schema.Compile(m.ConfigSchema); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return e, nil
}

// Register validates and stores a node definition.
// If a node with the same type exists, it is overwritten.
func (r *Registry) Register(def Definition) error {
	m := &def.Manifest
	if err := checkManifest(m); err != nil {
		return err
	}

	e, err := compileAll(m)
	if err != nil {
		return domain.NewError(domain.CodeSchemaCompile, "schema compilation failed for node %s", m.Type).
			WithDetails(map[string]any{"error": err.Error()}).
			Wrap(err)
	}

	if def.Executor == nil {
		return domain.NewError(domain.CodeMissingExecuteFunction, "executor is required for node %s", m.Type)
	}
	e.def = def

	r.mu.Lock()
	_, replaced := r.nodes[m.Type]
	r.nodes[m.Type] = e
	r.mu.Unlock()

	r.logger.Debug("node registered", "node_type", m.Type, "version", m.Version, "replaced", replaced)
	return nil
}

// RegisterAll registers every definition, skipping the ones that fail.
// The returned error joins every individual failure.
func (r *Registry) RegisterAll(defs ...Definition) error {
	var errs []error
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			r.logger.Error("failed to register node", "node_type", def.Manifest.Type, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) lookup(nodeType string) (*entry, *domain.Error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.nodes[nodeType]
	if !ok {
		return nil, domain.NewError(domain.CodeNodeNotFound, "node type not found: %s", nodeType).
			WithDetails(map[string]any{"nodeType": nodeType, "availableNodes": r.listLocked()}).
			Wrap(domain.ErrNodeNotFound)
	}
	return e, nil
}

// Has reports whether a node type is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[nodeType]
	return ok
}

// Get returns the definition of a node type.
func (r *Registry) Get(nodeType string) (Definition, error) {
	e, err := r.lookup(nodeType)
	if err != nil {
		return Definition{}, err
	}
	return e.def, nil
}

// Manifest returns the manifest of a node type.
func (r *Registry) Manifest(nodeType string) (*domain.Manifest, error) {
	e, err := r.lookup(nodeType)
	if err != nil {
		return nil, err
	}
	m := e.def.Manifest
	return &m, nil
}

// List returns the registered types, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []string {
	out := make([]string, 0, len(r.nodes))
	for k := range r.nodes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Manifests returns every registered manifest, sorted by type.
func (r *Registry) Manifests() []domain.Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Manifest, 0, len(r.nodes))
	for _, k := range r.listLocked() {
		out = append(out, r.nodes[k].def.Manifest)
	}
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Unregister removes a node type and reports whether it was present.
func (r *Registry) Unregister(nodeType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.nodes[nodeType]
	delete(r.nodes, nodeType)
	return ok
}

// Clear removes every node type.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = make(map[string]*entry)
}

// Execute validates inputs and config, runs the node and validates its outputs.
// It never returns an error: every failure is reported in the result.
func (r *Registry) Execute(ctx context.Context, nodeType string, inputs, config map[string]any, ec *domain.ExecutionContext) *domain.ExecutionResult {
	if ec == nil {
		ec = &domain.ExecutionContext{}
	}
	logger := ec.Logger
	if logger == nil {
		logger = r.logger
	}

	start := r.now()
	res := &domain.ExecutionResult{NodeID: ec.NodeID}
	finish := func(err *domain.Error) *domain.ExecutionResult {
		end := r.now()
		res.Duration = end.Sub(start)
		res.Metadata = domain.ResultMetadata{StartTime: start, EndTime: end}
		if err != nil {
			res.Success = false
			res.Outputs = nil
			res.Error = err
			logger.Error("node failed", "node_type", nodeType, "code", err.Code, "error", err)
			return res
		}
		res.Success = true
		logger.Debug("node completed", "node_type", nodeType, "duration", res.Duration)
		return res
	}

	e, lerr := r.lookup(nodeType)
	if lerr != nil {
		return finish(lerr)
	}
	if e.inputs == nil || e.outputs == nil {
		return finish(domain.NewError(domain.CodeValidatorNotFound, "no validator compiled for node %s", nodeType))
	}

	in, err := e.inputs.Validate(inputs)
	if err != nil {
		return finish(domain.NewError(domain.CodeInputValidationFailed, "input validation failed for node %s", nodeType).
			WithDetails(schema.Details(err)).Wrap(err))
	}

	cfg := config
	if len(config) > 0 {
		if e.config != nil {
			cfg, err = e.config.Validate(config)
			if err != nil {
				return finish(domain.NewError(domain.CodeConfigValidationFailed, "config validation failed for node %s", nodeType).
					WithDetails(schema.Details(err)).Wrap(err))
			}
		} else if cfg, err = schema.NormalizeMap(config); err != nil {
			return finish(domain.NewError(domain.CodeConfigValidationFailed, "config is not serializable for node %s", nodeType).Wrap(err))
		}
	} else {
		cfg = map[string]any{}
	}

	logger.Debug("executing node", "node_type", nodeType)
	out, xerr := invoke(ctx, e.def.Executor, in, cfg, ec)
	if xerr != nil {
		return finish(xerr)
	}

	out, err = e.outputs.Validate(out)
	if err != nil {
		return finish(domain.NewError(domain.CodeOutputValidationFailed, "output validation failed for node %s", nodeType).
			WithDetails(schema.Details(err)).Wrap(err))
	}
	res.Outputs = out
	return finish(nil)
}

func invoke(ctx context.Context, ex domain.NodeExecutor, in, cfg map[string]any, ec *domain.ExecutionContext) (out map[string]any, xerr *domain.Error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			xerr = domain.NewError(domain.CodeExecutionError, "node panicked: %v", p)
		}
	}()

	out, err := ex.Execute(ctx, in, cfg, ec)
	if err != nil {
		return nil, domain.AsError(err, domain.CodeExecutionError)
	}
	return out, nil
}
