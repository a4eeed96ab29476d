package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a lock.
type UnlockFunc func(ctx context.Context) error

// RunLocker defines the interface for run-level concurrency control.
// It allows several engine replicas to agree that a graph is executed by one of them at a time.
type RunLocker interface {
	// Lock attempts to acquire a lock for the given key (e.g., graph ID).
	// It blocks until the lock is acquired or the context is canceled.
	// The lock expires after ttl if it is never released.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
