// Package throttle paces, retries and circuit-breaks calls to one source.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks callers until a request may be sent. Steady pacing comes
// from a token-bucket limiter; a rate-limit penalty sits beside it, pushing
// the next allowed send into the future and escalating on repeats.
type Pacer struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	notBefore   time.Time     // no sends before this instant
	penalty     time.Duration // current escalated penalty
	basePenalty time.Duration
	maxPenalty  time.Duration

	now func() time.Time
}

// NewPacer allows one request per interval with the given burst. An
// interval of zero means unlimited. Penalties start at basePenalty and
// double up to maxPenalty.
func NewPacer(interval time.Duration, burst int, basePenalty, maxPenalty time.Duration) *Pacer {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if basePenalty <= 0 {
		basePenalty = time.Second
	}
	if maxPenalty < basePenalty {
		maxPenalty = basePenalty
	}
	return &Pacer{
		limiter:     rate.NewLimiter(limit, burst),
		basePenalty: basePenalty,
		maxPenalty:  maxPenalty,
		now:         time.Now,
	}
}

// Wait blocks until the penalty has elapsed and a token is available, or
// ctx is done. It consumes one token.
func (p *Pacer) Wait(ctx context.Context) error {
	for {
		if err := p.Hold(ctx); err != nil {
			return err
		}
		r := p.limiter.ReserveN(p.now(), 1)
		if err := sleep(ctx, r.Delay()); err != nil {
			r.Cancel()
			return err
		}
		// A penalty recorded while we slept still applies to this send.
		if !p.penalized() {
			return nil
		}
	}
}

// Hold blocks only while a rate-limit penalty is in effect.
func (p *Pacer) Hold(ctx context.Context) error {
	p.mu.Lock()
	wait := p.notBefore.Sub(p.now())
	p.mu.Unlock()
	if wait <= 0 {
		return ctx.Err()
	}
	return sleep(ctx, wait)
}

// Penalize records a rate-limit response. The next send is delayed by the
// larger of retryAfter and the escalated penalty, and any saved burst is
// dropped.
func (p *Pacer) Penalize(retryAfter time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.penalty == 0 {
		p.penalty = p.basePenalty
	} else {
		p.penalty = min(p.penalty*2, p.maxPenalty)
	}
	delay := max(retryAfter, p.penalty)
	now := p.now()
	p.notBefore = now.Add(delay)
	if p.limiter.Limit() != rate.Inf {
		if n := int(p.limiter.TokensAt(now)); n > 0 {
			p.limiter.AllowN(now, n)
		}
	}
	return delay
}

// Reset clears the escalation after a successful request.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.penalty = 0
}

// NotBefore returns the instant before which no request will be sent.
func (p *Pacer) NotBefore() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notBefore
}

func (p *Pacer) penalized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now().Before(p.notBefore)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
