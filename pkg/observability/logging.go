package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/lattice/pkg/domain"
)

// LoggingHooks logs every lifecycle event to logger.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_start",
				"execution_id", e.ExecutionID,
				"graph_id", e.GraphID,
				"total_nodes", e.TotalNodes,
			)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			attrs := []any{
				"execution_id", e.ExecutionID,
				"success", e.Success,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.ErrorContext(ctx, "run_end", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "run_end", attrs...)
		},
		OnNodeStart: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_start",
				"node_id", e.NodeID,
				"type", e.NodeType,
				"level", e.Level,
			)
		},
		OnNodeEnd: func(ctx context.Context, e *domain.NodeEvent) {
			attrs := []any{
				"node_id", e.NodeID,
				"status", e.Status,
				"cached", e.Cached,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.WarnContext(ctx, "node_end", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "node_end", attrs...)
		},
		OnNodeProgress: func(ctx context.Context, e *domain.ProgressEvent) {
			logger.DebugContext(ctx, "node_progress",
				"node_id", e.NodeID,
				"progress", e.Progress,
				"message", e.Message,
			)
		},
	}
}
