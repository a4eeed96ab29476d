package schema

import (
	"math"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const (
	typeString  = "string"
	typeNumber  = "number"
	typeInteger = "integer"
	typeBoolean = "boolean"
	typeNull    = "null"
	typeObject  = "object"
	typeArray   = "array"
)

// Coerce rewrites value so that scalars match the types declared by s where
// an unambiguous conversion exists:
//
//   - numeric strings become numbers ("integer" only for whole numbers)
//   - "true" / "false" become booleans
//   - numbers and booleans become strings
//   - booleans become 1 / 0 for numeric types
//   - null becomes the zero value of a non-nullable scalar type
//
// Objects and arrays are walked using properties, additionalProperties and
// items. Values that cannot be converted are returned unchanged so that the
// validator reports them.
func Coerce(s *openapi3.Schema, value any) any {
	if s == nil {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		return coerceObject(s, v)
	case []any:
		if s.Items == nil || s.Items.Value == nil {
			return v
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Coerce(s.Items.Value, item)
		}
		return out
	}

	return coerceScalar(s, value)
}

func coerceObject(s *openapi3.Schema, v map[string]any) map[string]any {
	var extra *openapi3.Schema
	if ap := s.AdditionalProperties.Schema; ap != nil {
		extra = ap.Value
	}
	if len(s.Properties) == 0 && extra == nil {
		return v
	}

	out := make(map[string]any, len(v))
	for k, item := range v {
		if ref, ok := s.Properties[k]; ok && ref != nil && ref.Value != nil {
			out[k] = Coerce(ref.Value, item)
			continue
		}
		if extra != nil {
			out[k] = Coerce(extra, item)
			continue
		}
		out[k] = item
	}
	return out
}

func typesOf(s *openapi3.Schema) []string {
	if s.Type == nil {
		return nil
	}
	return s.Type.Slice()
}

func coerceScalar(s *openapi3.Schema, value any) any {
	types := typesOf(s)
	if len(types) == 0 {
		return value
	}
	for _, t := range types {
		if matches(t, value) {
			return value
		}
	}
	if value == nil && s.Nullable {
		return nil
	}
	for _, t := range types {
		if out, ok := convert(t, value); ok {
			return out
		}
	}
	return value
}

func matches(t string, value any) bool {
	switch t {
	case typeString:
		_, ok := value.(string)
		return ok
	case typeNumber:
		_, ok := value.(float64)
		return ok
	case typeInteger:
		f, ok := value.(float64)
		return ok && f == math.Trunc(f)
	case typeBoolean:
		_, ok := value.(bool)
		return ok
	case typeNull:
		return value == nil
	case typeObject:
		_, ok := value.(map[string]any)
		return ok
	case typeArray:
		_, ok := value.([]any)
		return ok
	}
	return false
}

func convert(t string, value any) (any, bool) {
	switch v := value.(type) {
	case string:
		switch t {
		case typeNumber:
			return parseNumber(v, false)
		case typeInteger:
			return parseNumber(v, true)
		case typeBoolean:
			switch v {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		case typeNull:
			if v == "" {
				return nil, true
			}
		}
	case float64:
		switch t {
		case typeString:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case typeBoolean:
			switch v {
			case 0:
				return false, true
			case 1:
				return true, true
			}
		}
	case bool:
		switch t {
		case typeString:
			return strconv.FormatBool(v), true
		case typeNumber, typeInteger:
			if v {
				return float64(1), true
			}
			return float64(0), true
		}
	case nil:
		switch t {
		case typeString:
			return "", true
		case typeNumber, typeInteger:
			return float64(0), true
		case typeBoolean:
			return false, true
		}
	}
	return nil, false
}

func parseNumber(s string, whole bool) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	if whole && f != math.Trunc(f) {
		return nil, false
	}
	return f, true
}
