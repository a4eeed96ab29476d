package timeout_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/lattice/pkg/timeout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepy(d time.Duration, v int) timeout.Func[int] {
	return func(ctx context.Context) (int, error) {
		time.Sleep(d)
		return v, nil
	}
}

func TestExecute_TimesOutAtDeadline(t *testing.T) {
	start := time.Now()
	_, err := timeout.Execute(context.Background(), sleepy(200*time.Millisecond, 1), 50*time.Millisecond)
	elapsed := time.Since(start)

	var te *timeout.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 50*time.Millisecond, te.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, timeout.IsTimeout(err))
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestExecute_ResultWins(t *testing.T) {
	v, err := timeout.Execute(context.Background(), sleepy(time.Millisecond, 7), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	boom := errors.New("boom")
	_, err = timeout.Execute(context.Background(), func(context.Context) (int, error) {
		return 0, boom
	}, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.False(t, timeout.IsTimeout(err))
}

func TestExecute_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := timeout.Execute(ctx, sleepy(100*time.Millisecond, 1), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, timeout.IsTimeout(err))
}

func TestRace(t *testing.T) {
	ctx := context.Background()

	op := timeout.Start(ctx, sleepy(time.Millisecond, 3))
	v, err := timeout.Race(ctx, op, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	slow := timeout.Start(ctx, sleepy(200*time.Millisecond, 3))
	_, err = timeout.Race(ctx, slow, 20*time.Millisecond)
	assert.True(t, timeout.IsTimeout(err))
}

func TestCancellable_CancelWinsOverLateCompletion(t *testing.T) {
	release := make(chan struct{})
	c := timeout.NewCancellable(context.Background(), func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	})

	c.Cancel()
	close(release)

	v, err := c.Wait()
	assert.ErrorIs(t, err, timeout.ErrCancelled)
	assert.Empty(t, v)

	time.Sleep(10 * time.Millisecond)
	_, err = c.Wait()
	assert.ErrorIs(t, err, timeout.ErrCancelled)
}

func TestCancellable_CompletesAndCancelIsNoop(t *testing.T) {
	c := timeout.NewCancellable(context.Background(), func(ctx context.Context) (string, error) {
		return "done", nil
	})
	<-c.Done()
	c.Cancel()

	v, err := c.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestCancellable_CancelStopsOperationContext(t *testing.T) {
	stopped := make(chan struct{})
	c := timeout.NewCancellable(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(stopped)
		return 0, ctx.Err()
	})
	c.Cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("operation context was not cancelled")
	}
}

func TestExecuteWithSignal(t *testing.T) {
	honours := func(ctx context.Context) (int, error) {
		select {
		case <-time.After(time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	start := time.Now()
	_, err := timeout.ExecuteWithSignal(context.Background(), honours, 30*time.Millisecond)
	var te *timeout.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 30*time.Millisecond, te.Timeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	boom := errors.New("boom")
	_, err = timeout.ExecuteWithSignal(context.Background(), func(context.Context) (int, error) {
		return 0, boom
	}, time.Second)
	assert.ErrorIs(t, err, boom)
}

func TestExecuteAll(t *testing.T) {
	ctx := context.Background()

	out, err := timeout.ExecuteAll(ctx, time.Second, sleepy(time.Millisecond, 1), sleepy(5*time.Millisecond, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out)

	start := time.Now()
	_, err = timeout.ExecuteAll(ctx, 30*time.Millisecond, sleepy(time.Millisecond, 1), sleepy(300*time.Millisecond, 2))
	assert.True(t, timeout.IsTimeout(err))
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestRetry_LinearBackoffSucceedsOnThirdAttempt(t *testing.T) {
	var calls atomic.Int32
	var stamps []time.Time
	fn := func(context.Context) (string, error) {
		stamps = append(stamps, time.Now())
		if calls.Add(1) < 3 {
			return "", errors.New("not yet")
		}
		return "ok", nil
	}

	v, err := timeout.Retry(context.Background(), fn, timeout.RetryOptions{
		MaxAttempts: 3,
		Delay:       10 * time.Millisecond,
		Backoff:     timeout.BackoffLinear,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 10*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 20*time.Millisecond)
}

func TestRetry_ExhaustedNamesAttemptsAndLastError(t *testing.T) {
	last := errors.New("still broken")
	_, err := timeout.Retry(context.Background(), func(context.Context) (int, error) {
		return 0, last
	}, timeout.RetryOptions{MaxAttempts: 2, Delay: time.Millisecond})

	var re *timeout.RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Attempts)
	assert.ErrorIs(t, err, last)
	assert.Contains(t, err.Error(), "2 attempts")
	assert.Contains(t, err.Error(), "still broken")
}

func TestRetry_ZeroDelayRetriesImmediately(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()
	_, err := timeout.Retry(context.Background(), func(context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("fail")
	}, timeout.RetryOptions{MaxAttempts: 3})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDefaultRetryOptions(t *testing.T) {
	d := timeout.DefaultRetryOptions()
	assert.Equal(t, 3, d.MaxAttempts)
	assert.Equal(t, timeout.DefaultTimeout, d.Timeout)
	assert.Equal(t, time.Second, d.Delay)
	assert.Equal(t, timeout.BackoffLinear, d.Backoff)
}

func TestRetry_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	_, err := timeout.Retry(ctx, func(context.Context) (int, error) {
		calls.Add(1)
		cancel()
		return 0, errors.New("fail")
	}, timeout.RetryOptions{MaxAttempts: 5, Delay: time.Millisecond})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBackoffWait(t *testing.T) {
	base := 10 * time.Millisecond
	assert.Equal(t, 10*time.Millisecond, timeout.BackoffLinear.Wait(base, 1))
	assert.Equal(t, 30*time.Millisecond, timeout.BackoffLinear.Wait(base, 3))
	assert.Equal(t, 10*time.Millisecond, timeout.BackoffExponential.Wait(base, 1))
	assert.Equal(t, 40*time.Millisecond, timeout.BackoffExponential.Wait(base, 3))
}

func TestController(t *testing.T) {
	c := timeout.NewController(timeout.WithDefault(20 * time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, c.DefaultTimeout())

	assert.Error(t, c.SetDefaultTimeout(0))
	assert.Error(t, c.SetDefaultTimeout(-time.Second))
	assert.Equal(t, 20*time.Millisecond, c.DefaultTimeout())

	err := c.Run(context.Background(), func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}, 0)
	var te *timeout.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 20*time.Millisecond, te.Timeout)

	require.NoError(t, c.SetDefaultTimeout(time.Second))
	assert.Equal(t, time.Second, c.Resolve(0))
	assert.Equal(t, time.Millisecond, c.Resolve(time.Millisecond))

	var calls atomic.Int32
	err = c.RunWithRetry(context.Background(), func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("flaky")
		}
		return nil
	}, timeout.RetryOptions{MaxAttempts: 2, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDelay(t *testing.T) {
	require.NoError(t, timeout.Delay(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, timeout.Delay(ctx, time.Second), context.Canceled)
}
