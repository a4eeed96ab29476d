package domain

import (
	"context"
	"log/slog"
	"time"
)

// CacheService is the cache handle exposed to node executors.
type CacheService interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// DataBlockManager gives executors access to large payloads stored out of band.
type DataBlockManager interface {
	Read(ctx context.Context, blockID string) ([]byte, error)
	Write(ctx context.Context, data []byte) (string, error)
}

// AIExecutor is the handle through which AI nodes reach a model provider.
type AIExecutor interface {
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)
}

// ProgressUpdate is reported by long running executors.
type ProgressUpdate struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

// ExecutionContext is created fresh for every node invocation.
// Cancellation is carried by the context.Context passed alongside it.
type ExecutionContext struct {
	ExecutionID string
	NodeID      string
	GraphID     string
	UserID      string
	StartedAt   time.Time

	Logger         *slog.Logger
	Cache          CacheService
	DataBlocks     DataBlockManager
	AI             AIExecutor
	ReportProgress func(ProgressUpdate)
}

// Progress reports progress if a callback is attached.
func (ec *ExecutionContext) Progress(p float64, msg string) {
	if ec == nil || ec.ReportProgress == nil {
		return
	}
	ec.ReportProgress(ProgressUpdate{Progress: p, Message: msg})
}
