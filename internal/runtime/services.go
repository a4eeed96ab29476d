package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/aretw0/lattice/pkg/cache"
	"github.com/aretw0/lattice/pkg/domain"
)

// scopedCache is the cache view handed to one node. Keys are prefixed with
// the graph and node id so executors cannot read or overwrite each other's
// entries, nor the engine's output cache.
type scopedCache struct {
	m      *cache.Manager
	prefix string
}

func newScopedCache(m *cache.Manager, graphID, nodeID string) *scopedCache {
	return &scopedCache{m: m, prefix: graphID + "/" + nodeID + "/"}
}

func (c *scopedCache) Get(key string) (any, bool) { return c.m.Get(c.prefix + key) }

func (c *scopedCache) Set(key string, value any) { c.m.Set(c.prefix+key, value) }

// fingerprint identifies one invocation of a node: the graph it belongs to,
// its type, config and resolved inputs. It returns "" when the inputs cannot
// be encoded, which disables reuse for that node.
func fingerprint(graphID string, node *domain.NodeInstance, inputs map[string]any) string {
	raw, err := json.Marshal(struct {
		Graph  string         `json:"g"`
		Type   string         `json:"t"`
		Config map[string]any `json:"c,omitempty"`
		Inputs map[string]any `json:"i,omitempty"`
	}{graphID, node.Type, node.Config, inputs})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// nodeContext builds the per-invocation handles for node.
func (e *Engine) nodeContext(ctx context.Context, r *run, node *domain.NodeInstance) *domain.ExecutionContext {
	ec := &domain.ExecutionContext{
		ExecutionID: r.id,
		NodeID:      node.ID,
		GraphID:     r.graph.ID,
		UserID:      e.userID,
		DataBlocks:  e.blocks,
		AI:          e.ai,
	}
	if e.scratch != nil {
		ec.Cache = newScopedCache(e.scratch, r.graph.ID, node.ID)
	}
	if e.hooks.OnNodeProgress != nil || e.progress != nil {
		ec.ReportProgress = func(p domain.ProgressUpdate) {
			ev := &domain.ProgressEvent{
				EventBase: e.base(r, domain.EventNodeProgress),
				NodeID:    node.ID,
				NodeType:  node.Type,
				Progress:  p.Progress,
				Message:   p.Message,
			}
			if e.hooks.OnNodeProgress != nil {
				e.hooks.OnNodeProgress(ctx, ev)
			}
			if e.progress != nil {
				e.progress(ctx, ev)
			}
		}
	}
	return ec
}
