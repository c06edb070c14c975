package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/metrics"
)

// Store is the part of the posting store the dispatcher needs.
type Store interface {
	IsAlertSent(ctx context.Context, fingerprint string) (bool, error)
	MarkAlertSent(ctx context.Context, fingerprint string) error
}

// Options configures a Dispatcher.
type Options struct {
	Threshold float64
	Timeout   time.Duration
}

// Dispatcher fans alerts out to its channels. Concurrent calls for the same
// fingerprint collapse into one delivery.
type Dispatcher struct {
	store    Store
	channels []Channel
	opts     Options
	logger   logging.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. A dispatcher without channels never
// sends and never marks postings as alerted.
func NewDispatcher(store Store, channels []Channel, opts Options, logger logging.Logger) *Dispatcher {
	if opts.Threshold <= 0 {
		opts.Threshold = config.DefaultAlertThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultAlertTimeout
	}
	return &Dispatcher{
		store:    store,
		channels: channels,
		opts:     opts,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

// Threshold returns the minimum score that triggers an alert.
func (d *Dispatcher) Threshold() float64 {
	return d.opts.Threshold
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// MaybeNotify alerts on c when its score reaches the threshold and it has not
// been alerted before. sent is true only for the call that delivered the
// alert. When every channel fails the flag stays unset and a *DispatchError
// is returned, so the next discovery tries again.
func (d *Dispatcher) MaybeNotify(ctx context.Context, c Candidate) (bool, error) {
	if c.Score < d.opts.Threshold || c.AlertSent || len(d.channels) == 0 {
		return false, nil
	}

	leader := false
	v, err, _ := d.group.Do(c.Fingerprint, func() (any, error) {
		leader = true
		return d.deliver(ctx, c)
	})
	if err != nil {
		return false, err
	}
	return leader && v.(bool), nil
}

func (d *Dispatcher) deliver(ctx context.Context, c Candidate) (bool, error) {
	// Another cycle or caller may have alerted since the upsert was read.
	sent, err := d.store.IsAlertSent(ctx, c.Fingerprint)
	if err != nil {
		return false, fmt.Errorf("failed to check alert flag: %w", err)
	}
	if sent {
		return false, nil
	}

	a := NewAlert(c, d.now())
	failures, failed := d.broadcast(ctx, a)
	if failed == len(d.channels) {
		return false, &DispatchError{Fingerprint: c.Fingerprint, Failures: failures}
	}

	if err := d.store.MarkAlertSent(ctx, c.Fingerprint); err != nil {
		return false, fmt.Errorf("alert delivered but flag not saved: %w", err)
	}

	fields := logging.Fields{
		"component":   "alert",
		"fingerprint": c.Fingerprint,
		"score":       c.Score,
		"delivered":   len(d.channels) - failed,
	}
	if failed > 0 {
		fields["failed"] = failed
	}
	d.logger.WithFields(fields).Info("alert sent")
	return true, nil
}

// broadcast sends a to every channel concurrently, each under its own
// timeout, and returns the failures keyed by channel name with their count.
func (d *Dispatcher) broadcast(ctx context.Context, a Alert) (map[string]error, int) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failed   int
		failures = make(map[string]error)
	)
	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
			defer cancel()

			err := ch.Send(sendCtx, a)
			metrics.RecordAlert(ch.Name(), err == nil)
			if err == nil {
				return
			}
			d.logger.WithFields(logging.Fields{
				"component":   "alert",
				"channel":     ch.Name(),
				"fingerprint": a.Fingerprint,
			}).WithError(err).Warn("alert channel failed")

			mu.Lock()
			failures[ch.Name()] = err
			failed++
			mu.Unlock()
		}(ch)
	}
	wg.Wait()
	return failures, failed
}
