package timeout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Backoff selects how the wait between attempts grows.
type Backoff string

const (
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Wait returns the pause after the given failed attempt (1-based).
// Linear waits base*attempt, exponential waits base*2^(attempt-1).
func (b Backoff) Wait(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b == BackoffExponential {
		return base * time.Duration(1<<(attempt-1))
	}
	return base * time.Duration(attempt)
}

// RetryOptions configures Retry. The zero value means DefaultRetryOptions.
// Otherwise a zero Delay retries immediately, and zero MaxAttempts, Timeout or
// Backoff take three attempts, DefaultTimeout and linear backoff.
type RetryOptions struct {
	MaxAttempts int
	Timeout     time.Duration
	Delay       time.Duration
	Backoff     Backoff
}

// DefaultRetryOptions is used when Retry receives no options: three attempts,
// DefaultTimeout per attempt, one second base delay, linear backoff.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 3,
		Timeout:     DefaultTimeout,
		Delay:       time.Second,
		Backoff:     BackoffLinear,
	}
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o == (RetryOptions{}) {
		return DefaultRetryOptions()
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	o.Timeout = resolve(o.Timeout)
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.Backoff == "" {
		o.Backoff = BackoffLinear
	}
	return o
}

// RetryError is returned after every attempt failed.
type RetryError struct {
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error { return e.Last }

// Retry attempts fn under Execute up to MaxAttempts times, pausing between
// failures according to the backoff. A cancelled ctx stops the loop and is
// returned as is.
func Retry[T any](ctx context.Context, fn Func[T], opts RetryOptions) (T, error) {
	opts = opts.withDefaults()
	var zero T
	var last error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		v, err := Execute(ctx, fn, opts.Timeout)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		last = err
		if attempt < opts.MaxAttempts {
			if err := Delay(ctx, opts.Backoff.Wait(opts.Delay, attempt)); err != nil {
				return zero, err
			}
		}
	}
	return zero, &RetryError{Attempts: opts.MaxAttempts, Last: last}
}

// Controller carries a default timeout for callers that do not pick one per
// call. Safe for concurrent use.
type Controller struct {
	mu             sync.RWMutex
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithDefault sets the initial default timeout. Non-positive values are ignored.
func WithDefault(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// WithLogger sets the logger used to report retried attempts.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a controller with DefaultTimeout unless overridden.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		defaultTimeout: DefaultTimeout,
		logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDefaultTimeout changes the default. It fails on non-positive values.
func (c *Controller) SetDefaultTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultTimeout = d
	return nil
}

// DefaultTimeout returns the current default.
func (c *Controller) DefaultTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultTimeout
}

// Resolve returns d, or the default when d is not positive.
func (c *Controller) Resolve(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return c.DefaultTimeout()
}

// Run executes fn under Execute with timeout, or the default.
func (c *Controller) Run(ctx context.Context, fn func(context.Context) error, timeout time.Duration) error {
	_, err := Execute(ctx, errOnly(fn), c.Resolve(timeout))
	return err
}

// RunWithRetry executes fn under Retry. A zero opts.Timeout takes the
// controller default; zero opts take DefaultRetryOptions with that timeout.
func (c *Controller) RunWithRetry(ctx context.Context, fn func(context.Context) error, opts RetryOptions) error {
	if opts == (RetryOptions{}) {
		opts = DefaultRetryOptions()
	}
	opts.Timeout = c.Resolve(opts.Timeout)
	var attempts atomic.Int32
	wrapped := func(ctx context.Context) (struct{}, error) {
		n := attempts.Add(1)
		err := fn(ctx)
		if err != nil {
			c.logger.Debug("attempt failed", "attempt", n, "err", err)
		}
		return struct{}{}, err
	}
	_, err := Retry(ctx, wrapped, opts)
	return err
}

func errOnly(fn func(context.Context) error) Func[struct{}] {
	return func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}
}
