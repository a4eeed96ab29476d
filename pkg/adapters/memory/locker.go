package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/ports"
)

// Locker implements ports.RunLocker within one process.
type Locker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocker creates a new in-process locker.
func NewLocker() *Locker {
	return &Locker{slots: make(map[string]chan struct{})}
}

func (l *Locker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Lock blocks until key is free or ctx is done. The lock is released
// automatically after ttl when ttl > 0.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() { once.Do(func() { <-ch }) }
	var timer *time.Timer
	if ttl > 0 {
		timer = time.AfterFunc(ttl, release)
	}
	return func(context.Context) error {
		if timer != nil {
			timer.Stop()
		}
		release()
		return nil
	}, nil
}
