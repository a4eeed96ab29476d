package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/lattice/pkg/ports"
)

// Mask replaces the value of every masked key.
const Mask = "***"

type piiMiddleware struct {
	next     ports.OutputStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware returns a middleware that masks the values of keys matching
// any of the patterns, at any depth, before they reach the wrapped store. The
// caller's map is left untouched.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.OutputStore) ports.OutputStore {
		return &piiMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, graphID, nodeID string, output map[string]any) error {
	cloned := deepCopyMap(output)
	maskMap(cloned, m.patterns)
	return m.next.Save(ctx, graphID, nodeID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, graphID, nodeID string) (map[string]any, error) {
	return m.next.Load(ctx, graphID, nodeID)
}

func (m *piiMiddleware) Delete(ctx context.Context, graphID, nodeID string) error {
	return m.next.Delete(ctx, graphID, nodeID)
}

func (m *piiMiddleware) List(ctx context.Context, graphID string) ([]string, error) {
	return m.next.List(ctx, graphID)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = Mask
			continue
		}
		maskValue(v, patterns)
	}
}

func maskValue(v any, patterns []*regexp.Regexp) {
	switch t := v.(type) {
	case map[string]any:
		maskMap(t, patterns)
	case []any:
		for _, e := range t {
			maskValue(e, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
