package throttle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/metrics"
)

// ErrCircuitOpen is returned by Execute while the source is cooling down.
var ErrCircuitOpen = errors.New("circuit open")

// jitterFactor spreads retries of sources that failed together.
const jitterFactor = 0.25

// State is the circuit state of a source.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func convertState(state circuitbreaker.State) State {
	switch state {
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	case circuitbreaker.OpenState:
		return StateOpen
	default:
		return StateClosed
	}
}

// Temporary is implemented by errors worth retrying.
type Temporary interface {
	Temporary() bool
}

// RateLimitHint is implemented by errors that carry a server-requested delay.
type RateLimitHint interface {
	RetryAfterHint() (time.Duration, bool)
}

// Retryable reports whether err should be retried: it must declare itself
// temporary and must not be a cancellation. The outermost Temporary in the
// chain decides, so a classified source error wrapping a request timeout is
// still retried.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var t Temporary
	return errors.As(err, &t) && t.Temporary()
}

// Options configures a Controller.
type Options struct {
	MinInterval      time.Duration
	Burst            int
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// OptionsFrom converts a throttle config section.
func OptionsFrom(cfg config.ThrottleConfig) Options {
	return Options{
		MinInterval:      cfg.MinInterval.Duration,
		Burst:            cfg.Burst,
		MaxAttempts:      cfg.MaxAttempts,
		BaseDelay:        cfg.BaseDelay.Duration,
		MaxDelay:         cfg.MaxDelay.Duration,
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.Cooldown.Duration,
	}
}

func (o Options) normalize() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = config.DefaultMaxAttempts
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = 0
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	if o.FailureThreshold < 1 {
		o.FailureThreshold = config.DefaultFailureThreshold
	}
	if o.Cooldown <= 0 {
		o.Cooldown = config.DefaultCooldown
	}
	return o
}

// Status is a snapshot of a controller for the API.
type Status struct {
	Source              string     `json:"source"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	OpenUntil           *time.Time `json:"open_until,omitempty"`
}

// Controller gates every call to one source: pacing, retries with backoff
// and a circuit breaker over whole scrapes. It is never shared between
// sources.
type Controller struct {
	name    string
	opts    Options
	pacer   *Pacer
	retry   retrypolicy.RetryPolicy[any]
	breaker circuitbreaker.CircuitBreaker[any]
	logger  logging.Logger

	mu          sync.Mutex
	failures    int
	lastErr     error
	lastFailure time.Time
	lastSuccess time.Time
	openedAt    time.Time

	now func() time.Time
}

// NewController builds the controller for the named source.
func NewController(name string, opts Options, logger logging.Logger) *Controller {
	opts = opts.normalize()
	c := &Controller{
		name:   name,
		opts:   opts,
		pacer:  NewPacer(opts.MinInterval, opts.Burst, opts.BaseDelay, opts.MaxDelay),
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}

	builder := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return Retryable(err) }).
		WithMaxRetries(opts.MaxAttempts - 1).
		ReturnLastFailure()
	switch {
	case opts.BaseDelay > 0 && opts.MaxDelay > opts.BaseDelay:
		builder = builder.WithBackoff(opts.BaseDelay, opts.MaxDelay).WithJitterFactor(jitterFactor)
	case opts.BaseDelay > 0:
		builder = builder.WithDelay(opts.BaseDelay).WithJitterFactor(jitterFactor)
	}
	c.retry = builder.Build()

	c.breaker = circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(uint(opts.FailureThreshold)).
		WithDelay(opts.Cooldown).
		WithSuccessThreshold(1).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			from := convertState(event.OldState)
			to := convertState(event.NewState)
			if to == StateOpen {
				c.mu.Lock()
				c.openedAt = c.now()
				c.mu.Unlock()
			}
			c.logger.WithFields(logging.Fields{
				"source":     name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("source circuit state change")
			metrics.RecordCircuitTransition(name, from.String(), to.String(), int(to))
		}).
		Build()
	metrics.RecordCircuitState(name, metrics.CircuitClosed)

	return c
}

// Name returns the source name.
func (c *Controller) Name() string {
	return c.name
}

// Pacer returns the source's pacer; HTTP clients wait on it before each
// request.
func (c *Controller) Pacer() *Pacer {
	return c.pacer
}

// State returns the circuit state.
func (c *Controller) State() State {
	return convertState(c.breaker.State())
}

// Allow reports whether a scrape would be admitted now. It does not consume
// the half-open trial.
func (c *Controller) Allow() bool {
	if c.State() != StateOpen {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.openedAt.Add(c.opts.Cooldown))
}

// Execute runs one scrape through the controller: permit check, then
// attempts with backoff while the error is retryable, then records the
// outcome on the circuit. A rate-limited attempt also penalizes the pacer.
func (c *Controller) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !c.breaker.TryAcquirePermit() {
		return ErrCircuitOpen
	}

	attempts := 0
	_, err := failsafe.With(c.retry).WithContext(ctx).Get(func() (any, error) {
		attempts++
		if attempts > 1 {
			metrics.RecordRetry(c.name)
			c.logger.WithFields(logging.Fields{"source": c.name, "attempt": attempts}).Debug("retrying source")
		}
		if err := c.pacer.Hold(ctx); err != nil {
			return nil, err
		}
		err := fn(ctx)
		var hint RateLimitHint
		if errors.As(err, &hint) {
			if after, ok := hint.RetryAfterHint(); ok {
				delay := c.pacer.Penalize(after)
				c.logger.WithFields(logging.Fields{"source": c.name, "delay": delay.String()}).Warn("source rate limited")
			}
		}
		return nil, err
	})

	c.record(ctx, err)
	return err
}

func (c *Controller) record(ctx context.Context, err error) {
	if err == nil {
		c.pacer.Reset()
		c.breaker.RecordSuccess()
		c.mu.Lock()
		c.failures = 0
		c.lastErr = nil
		c.lastSuccess = c.now()
		c.mu.Unlock()
		return
	}

	// Shutdown is not the source's fault, but a half-open trial must not be
	// left dangling.
	if cancelledByCaller(ctx) {
		if c.State() == StateHalfOpen {
			c.breaker.RecordFailure()
		}
		return
	}

	c.breaker.RecordFailure()
	c.mu.Lock()
	c.failures++
	c.lastErr = err
	c.lastFailure = c.now()
	c.mu.Unlock()
}

// Status returns a snapshot for reporting.
func (c *Controller) Status() Status {
	state := c.State()
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Source:              c.name,
		State:               state.String(),
		ConsecutiveFailures: c.failures,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if !c.lastFailure.IsZero() {
		t := c.lastFailure
		st.LastFailure = &t
	}
	if !c.lastSuccess.IsZero() {
		t := c.lastSuccess
		st.LastSuccess = &t
	}
	if state == StateOpen {
		t := c.openedAt.Add(c.opts.Cooldown)
		st.OpenUntil = &t
	}
	return st
}

// cancelledByCaller reports whether ctx ended through plain cancellation or
// deadline. A context ended with a custom cause is a budget set for the
// source itself, and running out of it counts as the source failing.
func cancelledByCaller(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	cause := context.Cause(ctx)
	return errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded)
}
