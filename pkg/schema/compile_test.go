package schema_test

import (
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumInputs() domain.SchemaDoc {
	return domain.SchemaDoc{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []any{"a", "b"},
		"properties": map[string]any{
			"a":     map[string]any{"type": "number"},
			"b":     map[string]any{"type": "number"},
			"label": map[string]any{"type": "string"},
			"flags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "boolean"},
			},
		},
	}
}

func TestCompile_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  domain.SchemaDoc
	}{
		{"unknown type", domain.SchemaDoc{"type": "banana"}},
		{"type is not a string", domain.SchemaDoc{"type": 5}},
		{"unresolved reference", domain.SchemaDoc{
			"type":       "object",
			"properties": map[string]any{"a": map[string]any{"$ref": "#/definitions/missing"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Compile(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestCompile_EmptyAcceptsAnything(t *testing.T) {
	v, err := schema.Compile(domain.SchemaDoc{})
	require.NoError(t, err)

	out, err := v.Validate(map[string]any{"anything": []any{1, "two"}})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), "two"}, out["anything"])
}

func TestValidate_Coercion(t *testing.T) {
	v := schema.MustCompile(sumInputs())

	out, err := v.Validate(map[string]any{
		"a":     "1.5",
		"b":     2,
		"label": 7,
		"flags": []any{"true", "false", true},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.5, out["a"])
	assert.Equal(t, float64(2), out["b"])
	assert.Equal(t, "7", out["label"])
	assert.Equal(t, []any{true, false, true}, out["flags"])
}

func TestValidate_ReportsEveryFailure(t *testing.T) {
	v := schema.MustCompile(sumInputs())

	_, err := v.Validate(map[string]any{"a": "not-a-number"})
	require.Error(t, err)

	details := schema.Details(err)
	require.GreaterOrEqual(t, len(details), 2, "type failure and missing property are both reported")

	var paths []string
	for _, d := range details {
		paths = append(paths, d.Key)
		assert.NotEmpty(t, d.Reason)
	}
	assert.Contains(t, paths, "/a")
}

func TestValidate_IntegerRejectsFraction(t *testing.T) {
	v := schema.MustCompile(domain.SchemaDoc{
		"type":       "object",
		"properties": map[string]any{"n": map[string]any{"type": "integer"}},
	})

	out, err := v.Validate(map[string]any{"n": "12"})
	require.NoError(t, err)
	assert.Equal(t, float64(12), out["n"])

	_, err = v.Validate(map[string]any{"n": "1.25"})
	assert.Error(t, err)
}

func TestValidate_NestedObjects(t *testing.T) {
	v := schema.MustCompile(domain.SchemaDoc{
		"type": "object",
		"properties": map[string]any{
			"point": map[string]any{
				"type":     "object",
				"required": []any{"x"},
				"properties": map[string]any{
					"x": map[string]any{"type": "number"},
				},
			},
			"tags": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
	})

	out, err := v.Validate(map[string]any{
		"point": map[string]any{"x": "3"},
		"tags":  map[string]any{"env": 1, "tier": false},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(3)}, out["point"])
	assert.Equal(t, map[string]any{"env": "1", "tier": "false"}, out["tags"])
}

func TestNormalize(t *testing.T) {
	type pair struct {
		A int `json:"a"`
	}
	out, err := schema.NormalizeMap(map[string]any{"p": pair{A: 3}, "n": int64(4)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"p": map[string]any{"a": float64(3)}, "n": float64(4)}, out)

	_, err = schema.Normalize(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestCompile_JSONSchemaKeywords(t *testing.T) {
	tests := []struct {
		name   string
		doc    domain.SchemaDoc
		valid  map[string]any
		reject map[string]any
	}{
		{
			name: "const",
			doc: domain.SchemaDoc{
				"type":       "object",
				"properties": map[string]any{"kind": map[string]any{"const": "sum"}},
			},
			valid:  map[string]any{"kind": "sum"},
			reject: map[string]any{"kind": "product"},
		},
		{
			name: "patternProperties",
			doc: domain.SchemaDoc{
				"type":                 "object",
				"patternProperties":    map[string]any{"^n_": map[string]any{"type": "number"}},
				"additionalProperties": false,
			},
			valid:  map[string]any{"n_a": 1},
			reject: map[string]any{"other": 1},
		},
		{
			name: "defs and ref",
			doc: domain.SchemaDoc{
				"$defs": map[string]any{"point": map[string]any{
					"type":       "object",
					"required":   []any{"x"},
					"properties": map[string]any{"x": map[string]any{"type": "number"}},
				}},
				"type":       "object",
				"properties": map[string]any{"p": map[string]any{"$ref": "#/$defs/point"}},
			},
			valid:  map[string]any{"p": map[string]any{"x": 1}},
			reject: map[string]any{"p": map[string]any{}},
		},
		{
			name: "nullable type list",
			doc: domain.SchemaDoc{
				"type":       "object",
				"properties": map[string]any{"n": map[string]any{"type": []any{"number", "null"}}},
			},
			valid:  map[string]any{"n": nil},
			reject: map[string]any{"n": map[string]any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := schema.Compile(tt.doc)
			require.NoError(t, err)

			_, err = v.Validate(tt.valid)
			assert.NoError(t, err)
			_, err = v.Validate(tt.reject)
			assert.Error(t, err)
		})
	}
}

func TestValidate_CoercesThroughRefsAndTypeLists(t *testing.T) {
	v := schema.MustCompile(domain.SchemaDoc{
		"$defs": map[string]any{"count": map[string]any{"type": "integer"}},
		"type":  "object",
		"properties": map[string]any{
			"c": map[string]any{"$ref": "#/$defs/count"},
			"n": map[string]any{"type": []any{"number", "null"}},
		},
	})

	out, err := v.Validate(map[string]any{"c": "4", "n": "2.5"})
	require.NoError(t, err)
	assert.Equal(t, float64(4), out["c"])
	assert.Equal(t, 2.5, out["n"])

	out, err = v.Validate(map[string]any{"n": nil})
	require.NoError(t, err)
	assert.Nil(t, out["n"], "null stays null when the type list allows it")

	out, err = v.Validate(map[string]any{"n": ""})
	require.NoError(t, err)
	assert.Nil(t, out["n"], "an empty string becomes null when the type list allows it")
}
