package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Draft is the JSON Schema dialect assumed when a document has no $schema.
var Draft = jsonschema.Draft2020

// maxRefDepth bounds $ref inlining for the coercion view of recursive schemas.
const maxRefDepth = 16

// Validator is a compiled schema document. Validation follows JSON Schema; a
// parallel OpenAPI view of the same document drives coercion.
type Validator struct {
	compiled *jsonschema.Schema
	schema   *openapi3.Schema
	doc      domain.SchemaDoc
}

// Compile parses and checks a schema document. Keywords unknown to the dialect
// are ignored; unresolved references and malformed keywords are errors.
func Compile(doc domain.SchemaDoc) (*Validator, error) {
	raw, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = Draft
	if err := compiler.AddResource("manifest.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	compiled, err := compiler.Compile("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &Validator{compiled: compiled, schema: typedView(raw), doc: doc}, nil
}

// typedView decodes the document into an OpenAPI schema with local references
// inlined. It is best effort: a document the OpenAPI model cannot represent
// yields nil and values are validated without coercion.
func typedView(raw []byte) *openapi3.Schema {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil
	}
	inlined, err := json.Marshal(inlineRefs(root, root, 0))
	if err != nil {
		return nil
	}
	var s openapi3.Schema
	if err := json.Unmarshal(inlined, &s); err != nil {
		return nil
	}
	return &s
}

func inlineRefs(node, root any, depth int) any {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok && strings.HasPrefix(ref, "#") {
			if depth >= maxRefDepth {
				return map[string]any{}
			}
			target, ok := resolvePointer(root, strings.TrimPrefix(ref, "#"))
			if !ok {
				return map[string]any{}
			}
			merged := map[string]any{}
			if t, ok := target.(map[string]any); ok {
				for k, val := range t {
					merged[k] = val
				}
			}
			for k, val := range v {
				if k != "$ref" {
					merged[k] = val
				}
			}
			return inlineRefs(merged, root, depth+1)
		}
		out := make(map[string]any, len(v))
		for k, val := range v {
			if k == "$defs" || k == "definitions" {
				continue
			}
			out[k] = inlineRefs(val, root, depth)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = inlineRefs(val, root, depth)
		}
		return out
	}
	return node
}

func resolvePointer(root any, ptr string) (any, bool) {
	if ptr == "" || ptr == "/" {
		return root, true
	}
	cur := root
	for _, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// MustCompile is like Compile but panics on error. Intended for static schemas.
func MustCompile(doc domain.SchemaDoc) *Validator {
	v, err := Compile(doc)
	if err != nil {
		panic(err)
	}
	return v
}

// Document returns the source document.
func (v *Validator) Document() domain.SchemaDoc {
	return v.doc
}

// Validate normalizes, coerces and validates an object payload. The returned
// map is the coerced payload and is what callers should use from then on.
func (v *Validator) Validate(payload map[string]any) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	out, err := v.ValidateValue(payload)
	if err != nil {
		if m, ok := out.(map[string]any); ok {
			return m, err
		}
		return payload, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return payload, &AggregateError{Errors: []error{&ValidationError{Key: "/", Reason: "expected an object", Value: out}}}
	}
	return m, nil
}

// ValidateValue is Validate for arbitrary JSON values.
func (v *Validator) ValidateValue(value any) (any, error) {
	normalized, err := Normalize(value)
	if err != nil {
		return value, &AggregateError{Errors: []error{&ValidationError{Key: "/", Reason: err.Error(), Value: value}}}
	}

	coerced := Coerce(v.schema, normalized)

	if err := v.compiled.Validate(coerced); err != nil {
		var errs []error
		collect(err, coerced, &errs)
		return coerced, &AggregateError{Errors: errs}
	}
	return coerced, nil
}

// collect flattens a validation error tree into its leaves.
func collect(err error, instance any, out *[]error) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		*out = append(*out, &ValidationError{Key: "/", Reason: err.Error()})
		return
	}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		value, _ := resolvePointer(instance, e.InstanceLocation)
		*out = append(*out, &ValidationError{
			Key:    pointer(e.InstanceLocation),
			Reason: e.Message,
			Value:  value,
		})
	}
	walk(ve)
}

func pointer(location string) string {
	if location == "" {
		return "/"
	}
	return location
}

// Normalize converts a value into its plain JSON form: maps become
// map[string]any, slices []any, numbers float64.
func Normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON serializable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeMap is Normalize for object payloads.
func NormalizeMap(value map[string]any) (map[string]any, error) {
	if value == nil {
		return map[string]any{}, nil
	}
	out, err := Normalize(value)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	return m, nil
}
