package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/registry"
)

const version = "1.0.0"

// Node type names.
const (
	TypeAdd      = "math.add"
	TypeMultiply = "math.multiply"
	TypeConcat   = "text.concat"
	TypeTemplate = "text.template"
	TypeConstant = "data.constant"
	TypeDelay    = "util.delay"
)

func object(props map[string]any, required ...string) domain.SchemaDoc {
	doc := domain.SchemaDoc{"type": "object", "properties": props}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

var (
	number   = map[string]any{"type": "number"}
	str      = map[string]any{"type": "string"}
	anyValue = map[string]any{}
)

// All returns the definition of every built-in node.
func All() []registry.Definition {
	return []registry.Definition{
		Add(),
		Multiply(),
		Concat(),
		Template(),
		Constant(),
		Delay(),
	}
}

// RegisterAll registers every built-in node in reg.
func RegisterAll(reg *registry.Registry) error {
	return reg.RegisterAll(All()...)
}

type operands struct {
	A float64 `mapstructure:"a"`
	B float64 `mapstructure:"b"`
}

// Add sums a and b.
func Add() registry.Definition {
	return registry.Definition{
		Manifest: domain.Manifest{
			Type:          TypeAdd,
			Version:       version,
			Category:      "math",
			Label:         domain.I18nString{Zh: "加法", En: "Add"},
			Description:   domain.I18nString{Zh: "计算 a + b", En: "Computes a + b"},
			InputsSchema:  object(map[string]any{"a": number, "b": number}, "a", "b"),
			OutputsSchema: object(map[string]any{"result": number}, "result"),
			Capabilities:  []domain.Capability{domain.CapabilityCacheable},
			CachePolicy:   &domain.CachePolicy{Enabled: true},
			Examples: []domain.Example{
				{Name: "integers", Inputs: map[string]any{"a": 1, "b": 2}, ExpectedOutputs: map[string]any{"result": 3}},
				{Name: "numeric strings", Inputs: map[string]any{"a": "1.5", "b": "2"}, ExpectedOutputs: map[string]any{"result": 3.5}},
			},
		},
		Executor: domain.ExecutorFunc(func(_ context.Context, in, _ map[string]any, _ *domain.ExecutionContext) (map[string]any, error) {
			var op operands
			if err := decode(in, &op); err != nil {
				return nil, err
			}
			return map[string]any{"result": op.A + op.B}, nil
		}),
	}
}

type factors struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
}

// Multiply multiplies x by y.
func Multiply() registry.Definition {
	return registry.Definition{
		Manifest: domain.Manifest{
			Type:          TypeMultiply,
			Version:       version,
			Category:      "math",
			Label:         domain.I18nString{Zh: "乘法", En: "Multiply"},
			Description:   domain.I18nString{Zh: "计算 x * y", En: "Computes x * y"},
			InputsSchema:  object(map[string]any{"x": number, "y": number}, "x", "y"),
			OutputsSchema: object(map[string]any{"result": number}, "result"),
			Capabilities:  []domain.Capability{domain.CapabilityCacheable},
			CachePolicy:   &domain.CachePolicy{Enabled: true},
			Examples: []domain.Example{
				{Name: "three times four", Inputs: map[string]any{"x": 3, "y": 4}, ExpectedOutputs: map[string]any{"result": 12}},
			},
		},
		Executor: domain.ExecutorFunc(func(_ context.Context, in, _ map[string]any, _ *domain.ExecutionContext) (map[string]any, error) {
			var f factors
			if err := decode(in, &f); err != nil {
				return nil, err
			}
			return map[string]any{"result": f.X * f.Y}, nil
		}),
	}
}

type concatConfig struct {
	Separator string `mapstructure:"separator"`
}

// Concat joins values with the configured separator.
func Concat() registry.Definition {
	return registry.Definition{
		Manifest: domain.Manifest{
			Type:          TypeConcat,
			Version:       version,
			Category:      "text",
			Label:         domain.I18nString{Zh: "文本拼接", En: "Concatenate"},
			Description:   domain.I18nString{Zh: "用分隔符连接多个值", En: "Joins values with a separator"},
			InputsSchema:  object(map[string]any{"values": map[string]any{"type": "array", "items": anyValue}}, "values"),
			OutputsSchema: object(map[string]any{"result": str}, "result"),
			ConfigSchema:  object(map[string]any{"separator": str}),
			Examples: []domain.Example{
				{
					Name:            "dash",
					Inputs:          map[string]any{"values": []any{"a", "b", 1}},
					Config:          map[string]any{"separator": "-"},
					ExpectedOutputs: map[string]any{"result": "a-b-1"},
				},
				{Name: "no separator", Inputs: map[string]any{"values": []any{"x", "y"}}, ExpectedOutputs: map[string]any{"result": "xy"}},
			},
		},
		Executor: domain.ExecutorFunc(func(_ context.Context, in, config map[string]any, _ *domain.ExecutionContext) (map[string]any, error) {
			var cfg concatConfig
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			values, _ := in["values"].([]any)
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = fmt.Sprint(v)
			}
			return map[string]any{"result": strings.Join(parts, cfg.Separator)}, nil
		}),
	}
}

type templateConfig struct {
	Template string `mapstructure:"template"`
}

// Template renders a text/template against the node inputs. Missing keys fail
// the node.
func Template() registry.Definition {
	return registry.Definition{
		Manifest: domain.Manifest{
			Type:          TypeTemplate,
			Version:       version,
			Category:      "text",
			Label:         domain.I18nString{Zh: "文本模板", En: "Template"},
			Description:   domain.I18nString{Zh: "使用输入渲染模板", En: "Renders a template with the inputs"},
			InputsSchema:  domain.SchemaDoc{"type": "object"},
			OutputsSchema: object(map[string]any{"result": str}, "result"),
			ConfigSchema:  object(map[string]any{"template": str}, "template"),
			Examples: []domain.Example{
				{
					Name:            "greeting",
					Inputs:          map[string]any{"name": "lattice"},
					Config:          map[string]any{"template": "Hello, {{.name}}!"},
					ExpectedOutputs: map[string]any{"result": "Hello, lattice!"},
				},
			},
		},
		Executor: domain.ExecutorFunc(func(_ context.Context, in, config map[string]any, ec *domain.ExecutionContext) (map[string]any, error) {
			var cfg templateConfig
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Template == "" {
				return nil, domain.NewError(domain.CodeConfigValidationFailed, "template is required")
			}
			name := "template"
			if ec != nil && ec.NodeID != "" {
				name = ec.NodeID
			}
			tmpl, err := template.New(name).Option("missingkey=error").Parse(cfg.Template)
			if err != nil {
				return nil, fmt.Errorf("failed to parse template: %w", err)
			}
			var b strings.Builder
			if err := tmpl.Execute(&b, in); err != nil {
				return nil, fmt.Errorf("failed to render template: %w", err)
			}
			return map[string]any{"result": b.String()}, nil
		}),
	}
}

type constantConfig struct {
	Value any `mapstructure:"value"`
}

// Constant emits its configured value.
func Constant() registry.Definition {
	return registry.Definition{
		Manifest: domain.Manifest{
			Type:          TypeConstant,
			Version:       version,
			Category:      "data",
			Label:         domain.I18nString{Zh: "常量", En: "Constant"},
			Description:   domain.I18nString{Zh: "输出配置的值", En: "Outputs the configured value"},
			InputsSchema:  domain.SchemaDoc{"type": "object"},
			OutputsSchema: object(map[string]any{"value": anyValue}),
			ConfigSchema:  object(map[string]any{"value": anyValue}),
			Capabilities:  []domain.Capability{domain.CapabilityCacheable},
			Examples: []domain.Example{
				{Name: "number", Inputs: map[string]any{}, Config: map[string]any{"value": 42}, ExpectedOutputs: map[string]any{"value": 42}},
				{Name: "object", Inputs: map[string]any{}, Config: map[string]any{"value": map[string]any{"k": "v"}}, ExpectedOutputs: map[string]any{"value": map[string]any{"k": "v"}}},
			},
		},
		Executor: domain.ExecutorFunc(func(_ context.Context, _, config map[string]any, _ *domain.ExecutionContext) (map[string]any, error) {
			var cfg constantConfig
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Value == nil {
				return map[string]any{}, nil
			}
			return map[string]any{"value": cfg.Value}, nil
		}),
	}
}

type delayConfig struct {
	Duration time.Duration `mapstructure:"duration"`
}

// Delay waits for the configured duration, then passes its value input
// through. It stops early when the context is cancelled.
func Delay() registry.Definition {
	return registry.Definition{
		Manifest: domain.Manifest{
			Type:          TypeDelay,
			Version:       version,
			Category:      "util",
			Label:         domain.I18nString{Zh: "延迟", En: "Delay"},
			Description:   domain.I18nString{Zh: "等待一段时间后透传输入", En: "Waits, then passes the input through"},
			InputsSchema:  object(map[string]any{"value": anyValue}),
			OutputsSchema: object(map[string]any{"value": anyValue}),
			ConfigSchema:  object(map[string]any{"duration": str}),
			Examples: []domain.Example{
				{Name: "short", Inputs: map[string]any{"value": "x"}, Config: map[string]any{"duration": "1ms"}, ExpectedOutputs: map[string]any{"value": "x"}},
			},
		},
		Executor: domain.ExecutorFunc(func(ctx context.Context, in, config map[string]any, ec *domain.ExecutionContext) (map[string]any, error) {
			var cfg delayConfig
			if err := decode(config, &cfg); err != nil {
				return nil, err
			}
			if cfg.Duration < 0 {
				return nil, errors.New("duration must not be negative")
			}
			ec.Progress(0, "waiting")
			timer := time.NewTimer(cfg.Duration)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			ec.Progress(1, "done")
			out := map[string]any{}
			if v, ok := in["value"]; ok {
				out["value"] = v
			}
			return out, nil
		}),
	}
}
