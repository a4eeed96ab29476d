// Package schema compiles JSON Schema documents into reusable validators.
//
// Node manifests declare their inputs, outputs and configuration as JSON Schema
// documents. Compile turns such a document into a *Validator once, at
// registration time, so every execution reuses the parsed schema.
//
// Documents follow JSON Schema (draft 2020-12 unless $schema names another
// draft), including const, patternProperties, local $defs references and type
// lists such as ["number", "null"].
//
// Validation is coercive: before a value is checked it is rewritten to match the
// declared types where an unambiguous conversion exists.
//
//	v, err := schema.Compile(domain.SchemaDoc{
//	    "type": "object",
//	    "required": []any{"a"},
//	    "properties": map[string]any{"a": map[string]any{"type": "number"}},
//	})
//	if err != nil {
//	    // malformed schema
//	}
//
//	coerced, err := v.Validate(map[string]any{"a": "42"})
//	// coerced["a"] == float64(42)
//
// Errors are reported as an *AggregateError holding one *ValidationError per
// failing location.
package schema
