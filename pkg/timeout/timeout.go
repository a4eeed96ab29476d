// Package timeout gives asynchronous operations a deadline, a cancellation
// handle and a retry policy.
//
// Operations are plain functions of a context. The context handed to an
// operation is cancelled once its deadline passes, so well behaved operations
// stop early; Execute and Race return at the deadline regardless.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout applies when a zero or negative timeout is passed.
const DefaultTimeout = 30 * time.Second

// ErrCancelled is returned by a Cancellable that was cancelled before its
// operation settled.
var ErrCancelled = errors.New("operation cancelled")

// TimeoutError reports a breached deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.Timeout)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Result is the outcome of an operation.
type Result[T any] struct {
	Value T
	Err   error
}

// Func is an operation producing a T.
type Func[T any] func(ctx context.Context) (T, error)

func resolve(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Start launches fn in its own goroutine and returns a channel that receives
// its single result.
func Start[T any](ctx context.Context, fn Func[T]) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

// Execute runs fn with a deadline. Whichever settles first wins: fn's result,
// or a *TimeoutError once timeout elapses. A cancelled parent context yields
// the parent's error. fn keeps running in the background after a timeout but
// its outcome is discarded.
func Execute[T any](ctx context.Context, fn Func[T], timeout time.Duration) (T, error) {
	timeout = resolve(timeout)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return await(ctx, tctx, Start(tctx, fn), timeout)
}

// Race waits for an already started operation, giving up after timeout.
func Race[T any](ctx context.Context, op <-chan Result[T], timeout time.Duration) (T, error) {
	timeout = resolve(timeout)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return await(ctx, tctx, op, timeout)
}

func await[T any](parent, tctx context.Context, op <-chan Result[T], timeout time.Duration) (T, error) {
	var zero T
	select {
	case r := <-op:
		return r.Value, r.Err
	case <-tctx.Done():
		if err := parent.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Timeout: timeout}
	}
}

// ExecuteWithSignal runs fn with a context that is cancelled at the deadline
// and waits for fn to return. fn is expected to observe ctx. When fn fails
// after the deadline fired, the failure is reported as a *TimeoutError.
func ExecuteWithSignal[T any](ctx context.Context, fn Func[T], timeout time.Duration) (T, error) {
	timeout = resolve(timeout)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		var zero T
		return zero, &TimeoutError{Timeout: timeout}
	}
	return v, err
}

// ExecuteAll runs every fn concurrently, each under its own deadline, and
// returns their results in order. The first failure cancels the others and is
// returned.
func ExecuteAll[T any](ctx context.Context, timeout time.Duration, fns ...Func[T]) ([]T, error) {
	out := make([]T, len(fns))
	g, gctx := errgroup.WithContext(ctx)
	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() error {
			v, err := Execute(gctx, fn, timeout)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delay blocks for d or until ctx is done.
func Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancellable is a running operation that can be abandoned. Once Cancel wins,
// Wait returns ErrCancelled even if the operation completes later.
type Cancellable[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu      sync.Mutex
	settled bool
	result  Result[T]
}

// NewCancellable starts fn and returns a handle on it.
func NewCancellable[T any](ctx context.Context, fn Func[T]) *Cancellable[T] {
	cctx, cancel := context.WithCancel(ctx)
	c := &Cancellable[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		v, err := fn(cctx)
		c.settle(Result[T]{Value: v, Err: err})
		cancel()
	}()
	return c
}

func (c *Cancellable[T]) settle(r Result[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		return false
	}
	c.settled = true
	c.result = r
	close(c.done)
	return true
}

// Cancel abandons the operation and cancels its context. It has no effect once
// the operation settled.
func (c *Cancellable[T]) Cancel() {
	c.settle(Result[T]{Err: ErrCancelled})
	c.cancel()
}

// Done is closed once the operation settled or was cancelled.
func (c *Cancellable[T]) Done() <-chan struct{} { return c.done }

// Wait blocks until the operation settled or was cancelled.
func (c *Cancellable[T]) Wait() (T, error) {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.Value, c.result.Err
}
