package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberObject(required []any, names ...string) domain.SchemaDoc {
	props := map[string]any{}
	for _, n := range names {
		props[n] = map[string]any{"type": "number"}
	}
	return domain.SchemaDoc{"type": "object", "required": required, "properties": props}
}

func addDefinition() registry.Definition {
	return registry.Definition{
		Manifest: domain.Manifest{
			Type:          "add",
			Version:       "1.0.0",
			Category:      "math",
			Label:         domain.I18nString{Zh: "加法", En: "Add"},
			InputsSchema:  numberObject([]any{"a", "b"}, "a", "b"),
			OutputsSchema: numberObject([]any{"result"}, "result"),
			ConfigSchema: domain.SchemaDoc{
				"type":       "object",
				"properties": map[string]any{"scale": map[string]any{"type": "number"}},
			},
			Examples: []domain.Example{
				{Name: "small", Inputs: map[string]any{"a": 1, "b": 2}, ExpectedOutputs: map[string]any{"result": 3}},
				{Name: "scaled", Inputs: map[string]any{"a": 1, "b": 2}, Config: map[string]any{"scale": 10}, ExpectedOutputs: map[string]any{"result": 30}},
			},
		},
		Executor: domain.ExecutorFunc(func(_ context.Context, in, cfg map[string]any, _ *domain.ExecutionContext) (map[string]any, error) {
			scale := 1.0
			if s, ok := cfg["scale"].(float64); ok {
				scale = s
			}
			return map[string]any{"result": (in["a"].(float64) + in["b"].(float64)) * scale}, nil
		}),
	}
}

func TestRegister_ManifestChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*registry.Definition)
		code   domain.ErrorCode
	}{
		{"missing type", func(d *registry.Definition) { d.Manifest.Type = "" }, domain.CodeMissingType},
		{"missing version", func(d *registry.Definition) { d.Manifest.Version = "" }, domain.CodeMissingVersion},
		{"missing category", func(d *registry.Definition) { d.Manifest.Category = "" }, domain.CodeMissingCategory},
		{"label without zh", func(d *registry.Definition) { d.Manifest.Label.Zh = "" }, domain.CodeMissingLabel},
		{"missing inputs schema", func(d *registry.Definition) { d.Manifest.InputsSchema = nil }, domain.CodeMissingInputsSchema},
		{"missing outputs schema", func(d *registry.Definition) { d.Manifest.OutputsSchema = nil }, domain.CodeMissingOutputsSchema},
		{"malformed schema", func(d *registry.Definition) { d.Manifest.ConfigSchema = domain.SchemaDoc{"type": "banana"} }, domain.CodeSchemaCompile},
		{"missing executor", func(d *registry.Definition) { d.Executor = nil }, domain.CodeMissingExecuteFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			def := addDefinition()
			tt.mutate(&def)

			err := reg.Register(def)
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, tt.code), "got %v", err)
			assert.False(t, reg.Has("add"))
		})
	}
}

func TestRegister_LastWriteWins(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(addDefinition()))

	second := addDefinition()
	second.Manifest.Version = "2.0.0"
	require.NoError(t, reg.Register(second))

	m, err := reg.Manifest("add")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", m.Version)
	assert.Equal(t, 1, reg.Len())
}

func TestRegisterAll_SkipsFailures(t *testing.T) {
	reg := registry.New()
	bad := addDefinition()
	bad.Manifest.Type = "broken"
	bad.Executor = nil

	err := reg.RegisterAll(addDefinition(), bad)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeMissingExecuteFunction))
	assert.Equal(t, []string{"add"}, reg.List())
}

func TestExecute_Success(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(addDefinition()))

	res := reg.Execute(context.Background(), "add", map[string]any{"a": "1", "b": 2}, nil, &domain.ExecutionContext{NodeID: "A"})
	require.True(t, res.Success, "%v", res.Error)
	assert.Equal(t, "A", res.NodeID)
	assert.Equal(t, map[string]any{"result": float64(3)}, res.Outputs)
	assert.False(t, res.Cached)
	assert.False(t, res.Metadata.EndTime.Before(res.Metadata.StartTime))
}

func TestExecute_Failures(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(addDefinition()))

	failing := addDefinition()
	failing.Manifest.Type = "fails"
	failing.Executor = domain.ExecutorFunc(func(context.Context, map[string]any, map[string]any, *domain.ExecutionContext) (map[string]any, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, reg.Register(failing))

	coded := addDefinition()
	coded.Manifest.Type = "coded"
	coded.Executor = domain.ExecutorFunc(func(context.Context, map[string]any, map[string]any, *domain.ExecutionContext) (map[string]any, error) {
		return nil, domain.NewError("QUOTA_EXCEEDED", "too many calls")
	})
	require.NoError(t, reg.Register(coded))

	badOutput := addDefinition()
	badOutput.Manifest.Type = "bad-output"
	badOutput.Executor = domain.ExecutorFunc(func(context.Context, map[string]any, map[string]any, *domain.ExecutionContext) (map[string]any, error) {
		return map[string]any{"result": "many"}, nil
	})
	require.NoError(t, reg.Register(badOutput))

	panics := addDefinition()
	panics.Manifest.Type = "panics"
	panics.Executor = domain.ExecutorFunc(func(context.Context, map[string]any, map[string]any, *domain.ExecutionContext) (map[string]any, error) {
		panic("unexpected")
	})
	require.NoError(t, reg.Register(panics))

	valid := map[string]any{"a": 1, "b": 2}
	tests := []struct {
		name     string
		nodeType string
		inputs   map[string]any
		config   map[string]any
		code     domain.ErrorCode
	}{
		{"unknown type", "nope", valid, nil, domain.CodeNodeNotFound},
		{"invalid input", "add", map[string]any{"a": "x"}, nil, domain.CodeInputValidationFailed},
		{"invalid config", "add", valid, map[string]any{"scale": "big"}, domain.CodeConfigValidationFailed},
		{"executor error", "fails", valid, nil, domain.CodeExecutionError},
		{"executor coded error", "coded", valid, nil, "QUOTA_EXCEEDED"},
		{"invalid output", "bad-output", valid, nil, domain.CodeOutputValidationFailed},
		{"executor panic", "panics", valid, nil, domain.CodeExecutionError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reg.Execute(context.Background(), tt.nodeType, tt.inputs, tt.config, nil)
			require.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.code, res.Error.Code)
			assert.Nil(t, res.Outputs)
		})
	}
}

func TestExecute_NodeNotFoundListsKnownTypes(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(addDefinition()))

	res := reg.Execute(context.Background(), "nope", nil, nil, nil)
	require.NotNil(t, res.Error)
	details, ok := res.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"add"}, details["availableNodes"])
	assert.ErrorIs(t, res.Error, domain.ErrNodeNotFound)
}

func TestGetAndUnregister(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(addDefinition()))

	def, err := reg.Get("add")
	require.NoError(t, err)
	assert.Equal(t, "math", def.Manifest.Category)

	_, err = reg.Get("missing")
	assert.True(t, domain.IsCode(err, domain.CodeNodeNotFound))

	assert.True(t, reg.Unregister("add"))
	assert.False(t, reg.Unregister("add"))
	assert.False(t, reg.Has("add"))

	require.NoError(t, reg.Register(addDefinition()))
	reg.Clear()
	assert.Empty(t, reg.List())
}

func TestValidateExamples(t *testing.T) {
	reg := registry.New()
	def := addDefinition()
	def.Manifest.Examples = append(def.Manifest.Examples, domain.Example{
		Name:            "wrong",
		Inputs:          map[string]any{"a": 2, "b": 2},
		ExpectedOutputs: map[string]any{"result": 5},
	})
	require.NoError(t, reg.Register(def))

	report, err := reg.ValidateExamples(context.Background(), "add")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "wrong", report.Failures[0].Example)
	assert.Equal(t, map[string]any{"result": float64(4)}, report.Failures[0].Actual)
	assert.False(t, report.OK())

	_, err = reg.ValidateExamples(context.Background(), "missing")
	assert.True(t, domain.IsCode(err, domain.CodeNodeNotFound))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(addDefinition()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res := reg.Execute(context.Background(), "add", map[string]any{"a": 1, "b": 1}, nil, nil)
			assert.True(t, res.Success)
		}()
		go func() {
			defer wg.Done()
			_ = reg.Register(addDefinition())
		}()
	}
	wg.Wait()
}
