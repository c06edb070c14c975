package throttle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeErr struct {
	temporary  bool
	rateLimit  bool
	retryAfter time.Duration
}

func (e *fakeErr) Error() string {
	return "fake source error"
}

func (e *fakeErr) Temporary() bool {
	return e.temporary
}

func (e *fakeErr) RetryAfterHint() (time.Duration, bool) {
	return e.retryAfter, e.rateLimit
}

var (
	errTransient = &fakeErr{temporary: true}
	errPermanent = &fakeErr{}
)

func fastOptions() Options {
	return Options{
		MaxAttempts:      3,
		BaseDelay:        time.Millisecond,
		MaxDelay:         2 * time.Millisecond,
		FailureThreshold: 2,
		Cooldown:         50 * time.Millisecond,
	}
}

func TestPacer_BurstThenPaced(t *testing.T) {
	p := NewPacer(40*time.Millisecond, 2, time.Millisecond, time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.Less(t, time.Since(start), 20*time.Millisecond, "burst should not block")

	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond, "third request should wait for a refill")
}

func TestPacer_Unlimited(t *testing.T) {
	p := NewPacer(0, 1, time.Millisecond, time.Millisecond)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_WaitHonoursContext(t *testing.T) {
	p := NewPacer(time.Hour, 1, time.Millisecond, time.Millisecond)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacer_PenaltyEscalates(t *testing.T) {
	p := NewPacer(0, 1, 10*time.Millisecond, 40*time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, p.Penalize(0))
	assert.Equal(t, 20*time.Millisecond, p.Penalize(0))
	assert.Equal(t, 40*time.Millisecond, p.Penalize(0))
	assert.Equal(t, 40*time.Millisecond, p.Penalize(0), "penalty is capped")
	assert.Equal(t, 2*time.Second, p.Penalize(2*time.Second), "Retry-After wins when larger")

	p.Reset()
	assert.Equal(t, 10*time.Millisecond, p.Penalize(0), "success resets the escalation")
}

func TestPacer_PenaltyBlocksWaitAndHold(t *testing.T) {
	p := NewPacer(0, 1, 30*time.Millisecond, 30*time.Millisecond)
	p.Penalize(0)
	assert.True(t, p.NotBefore().After(time.Now()))

	start := time.Now()
	require.NoError(t, p.Hold(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	p.Penalize(0)
	start = time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPacer_PenaltyDropsSavedBurst(t *testing.T) {
	p := NewPacer(40*time.Millisecond, 3, 10*time.Millisecond, 10*time.Millisecond)
	p.Penalize(0)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond, "burst saved before the penalty must not be spent after it")
}

func TestPacer_CancelledWaitReturnsToken(t *testing.T) {
	p := NewPacer(100*time.Millisecond, 1, time.Millisecond, time.Millisecond)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 150*time.Millisecond, "an abandoned reservation must not push later sends back")
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errTransient))
	assert.True(t, Retryable(&fakeErr{temporary: true, rateLimit: true}))
	assert.False(t, Retryable(errPermanent))
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestController_RetriesTransientUpToMaxAttempts(t *testing.T) {
	c := NewController("retry-transient", fastOptions(), nil)

	var calls int32
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errTransient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestController_DoesNotRetryPermanent(t *testing.T) {
	c := NewController("retry-permanent", fastOptions(), nil)

	var calls int32
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errPermanent
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestController_RecoversAfterTransient(t *testing.T) {
	c := NewController("retry-recover", fastOptions(), nil)

	var calls int32
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 2 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	st := c.Status()
	assert.Equal(t, "closed", st.State)
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.NotNil(t, st.LastSuccess)
	assert.Empty(t, st.LastError)
}

func TestController_CircuitOpensAndRecovers(t *testing.T) {
	c := NewController("circuit-recover", fastOptions(), nil)
	ctx := context.Background()
	fail := func(ctx context.Context) error { return errPermanent }

	require.Error(t, c.Execute(ctx, fail))
	assert.Equal(t, StateClosed, c.State())
	require.Error(t, c.Execute(ctx, fail))
	assert.Equal(t, StateOpen, c.State())
	assert.False(t, c.Allow())

	var called bool
	err := c.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not reach the source")

	st := c.Status()
	assert.Equal(t, "open", st.State)
	assert.Equal(t, 2, st.ConsecutiveFailures)
	assert.NotNil(t, st.OpenUntil)
	assert.NotEmpty(t, st.LastError)

	time.Sleep(70 * time.Millisecond)
	assert.True(t, c.Allow(), "cooldown elapsed")

	require.NoError(t, c.Execute(ctx, func(ctx context.Context) error { return nil }))
	assert.Equal(t, StateClosed, c.State())
}

func TestController_HalfOpenFailureReopens(t *testing.T) {
	c := NewController("circuit-reopen", fastOptions(), nil)
	ctx := context.Background()
	fail := func(ctx context.Context) error { return errPermanent }

	require.Error(t, c.Execute(ctx, fail))
	require.Error(t, c.Execute(ctx, fail))
	require.Equal(t, StateOpen, c.State())

	time.Sleep(70 * time.Millisecond)
	require.Error(t, c.Execute(ctx, fail))
	assert.Equal(t, StateOpen, c.State())
	assert.False(t, c.Allow())
}

func TestController_RateLimitPenalizesPacer(t *testing.T) {
	opts := fastOptions()
	c := NewController("rate-limited", opts, nil)

	var stamps []time.Time
	err := c.Execute(context.Background(), func(ctx context.Context) error {
		stamps = append(stamps, time.Now())
		if len(stamps) == 1 {
			return &fakeErr{temporary: true, rateLimit: true, retryAfter: 40 * time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, stamps, 2)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 35*time.Millisecond, "Retry-After must be honoured")
}

func TestController_CancellationIsNotAFailure(t *testing.T) {
	c := NewController("cancelled", fastOptions(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		err := c.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
		require.Error(t, err)
	}
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 0, c.Status().ConsecutiveFailures)
}

func TestController_BudgetExpiryIsAFailure(t *testing.T) {
	opts := fastOptions()
	opts.FailureThreshold = 1
	c := NewController("slow", opts, nil)
	budget := errors.New("source exceeded its budget")

	ctx, cancel := context.WithTimeoutCause(context.Background(), 10*time.Millisecond, budget)
	defer cancel()
	err := c.Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, c.State())
	assert.Equal(t, 1, c.Status().ConsecutiveFailures)
}

func TestController_PlainDeadlineIsNotAFailure(t *testing.T) {
	c := NewController("deadline", fastOptions(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := c.Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 0, c.Status().ConsecutiveFailures)
}

func TestOptions_Normalize(t *testing.T) {
	o := Options{MaxAttempts: 0, BaseDelay: 5 * time.Second, MaxDelay: time.Second}.normalize()
	assert.Equal(t, 3, o.MaxAttempts)
	assert.Equal(t, 5*time.Second, o.MaxDelay)
	assert.Equal(t, 3, o.FailureThreshold)
	assert.Equal(t, time.Hour, o.Cooldown)
}
