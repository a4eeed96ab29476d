package domain

import (
	"context"
	"time"
)

// SchemaDoc is a JSON Schema document in its decoded form.
type SchemaDoc map[string]any

// I18nString carries a label in the two locales every manifest must provide.
type I18nString struct {
	Zh string `json:"zh" yaml:"zh"`
	En string `json:"en" yaml:"en"`
}

// IsComplete reports whether both locales are present.
func (s I18nString) IsComplete() bool {
	return s.Zh != "" && s.En != ""
}

// Capability tags what a node type is able to do.
type Capability string

const (
	CapabilityStreaming Capability = "streaming"
	CapabilityBatch     Capability = "batch"
	CapabilityCacheable Capability = "cacheable"
	CapabilityAI        Capability = "ai"
	CapabilityIO        Capability = "io"
)

// CachePolicy controls whether and for how long a node's output is cached.
type CachePolicy struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	TTL       time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	KeyFields []string      `json:"keyFields,omitempty" yaml:"keyFields,omitempty"`
}

// RetryPolicy controls how many times a failing node is re-attempted.
type RetryPolicy struct {
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	MaxRetries int           `json:"maxRetries" yaml:"maxRetries"`
	Backoff    time.Duration `json:"backoff" yaml:"backoff"`
}

// EstimatedCost is an informational hint for schedulers.
type EstimatedCost struct {
	Time   string `json:"time,omitempty" yaml:"time,omitempty"`
	Memory string `json:"memory,omitempty" yaml:"memory,omitempty"`
}

// Example is an input/output fixture used for a node type's self-test.
type Example struct {
	Name            string         `json:"name" yaml:"name"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs          map[string]any `json:"inputs" yaml:"inputs"`
	Config          map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	ExpectedOutputs map[string]any `json:"expectedOutputs,omitempty" yaml:"expectedOutputs,omitempty"`
}

// Manifest is the static description of a node type. It must not be mutated
// after registration.
type Manifest struct {
	Type        string     `json:"type" yaml:"type"`
	Version     string     `json:"version" yaml:"version"`
	Category    string     `json:"category" yaml:"category"`
	Label       I18nString `json:"label" yaml:"label"`
	Description I18nString `json:"description" yaml:"description"`
	Icon        string     `json:"icon,omitempty" yaml:"icon,omitempty"`

	InputsSchema  SchemaDoc `json:"inputsSchema" yaml:"inputsSchema"`
	OutputsSchema SchemaDoc `json:"outputsSchema" yaml:"outputsSchema"`
	ConfigSchema  SchemaDoc `json:"configSchema,omitempty" yaml:"configSchema,omitempty"`

	Capabilities  []Capability   `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	CachePolicy   *CachePolicy   `json:"cachePolicy,omitempty" yaml:"cachePolicy,omitempty"`
	RetryPolicy   *RetryPolicy   `json:"retryPolicy,omitempty" yaml:"retryPolicy,omitempty"`
	EstimatedCost *EstimatedCost `json:"estimatedCost,omitempty" yaml:"estimatedCost,omitempty"`
	Examples      []Example      `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// HasCapability reports whether the manifest declares c.
func (m *Manifest) HasCapability(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// NodeExecutor runs the logic of a node type.
// The context carries cancellation; executors that block should honour it.
type NodeExecutor interface {
	Execute(ctx context.Context, inputs, config map[string]any, ec *ExecutionContext) (map[string]any, error)
}

// ExecutorFunc adapts a plain function to NodeExecutor.
type ExecutorFunc func(ctx context.Context, inputs, config map[string]any, ec *ExecutionContext) (map[string]any, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, inputs, config map[string]any, ec *ExecutionContext) (map[string]any, error) {
	return f(ctx, inputs, config, ec)
}
