package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/metrics"
	"github.com/jonathan/job-radar/internal/sources"
	"github.com/jonathan/job-radar/internal/throttle"
	"github.com/jonathan/job-radar/internal/types"
)

// cycle carries the state shared by the source tasks of one run.
type cycle struct {
	id     string
	cfg    *config.Config
	logger *logging.Entry

	mu     sync.Mutex
	result *types.CycleResult
}

func (c *cycle) update(fn func(r *types.CycleResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.result)
}

// runCycle fans out to every enabled source and always returns a result;
// source failures are recorded in it and never abort siblings.
func (o *Orchestrator) runCycle(ctx context.Context, cfg *config.Config) *types.CycleResult {
	id := uuid.NewString()
	c := &cycle{
		id:     id,
		cfg:    cfg,
		logger: o.logger.WithFields(logging.Fields{"component": "pipeline", "cycle_id": id}),
		result: types.NewCycleResult(id, o.now()),
	}

	enabled := cfg.EnabledSources()
	c.logger.WithField("sources", len(enabled)).Info("cycle started")
	o.emit(ProgressEvent{Step: StepCycleStarted, CycleID: id, Message: fmt.Sprintf("Starting cycle over %d sources", len(enabled))})

	limit := cfg.Pipeline.MaxConcurrency
	if limit <= 0 {
		limit = config.DefaultMaxConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for _, src := range enabled {
		if ctx.Err() != nil {
			break
		}
		ctrl := o.controllerFor(cfg, src)
		if !ctrl.Allow() {
			o.skip(c, src.Name, "circuit open")
			continue
		}
		g.Go(func() error {
			o.runSource(ctx, c, src, ctrl)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil && cfg.Pipeline.RetentionDays > 0 {
		o.sweep(ctx, c)
	}

	r := c.result
	r.Aborted = ctx.Err() != nil
	r.FinishedAt = o.now()
	r.SortFailures()

	outcome := "success"
	switch {
	case r.Aborted:
		outcome = "aborted"
	case len(r.Errors) > 0:
		outcome = "partial"
	}
	metrics.RecordCycle(outcome, r.Duration())

	c.logger.WithFields(logging.Fields{
		"found":            r.PostingsFound,
		"new":              r.PostingsNew,
		"updated":          r.PostingsUpdated,
		"failed_sources":   len(r.Errors),
		"skipped_sources":  len(r.Skipped),
		"persist_failures": r.PersistFailures,
		"alerts":           r.AlertsSent,
		"duration":         r.Duration().String(),
	}).Info(r.Summary())
	o.emit(ProgressEvent{Step: StepCycleFinished, CycleID: id, Message: r.Summary(), Content: r})
	return r
}

func (o *Orchestrator) skip(c *cycle, name, reason string) {
	c.update(func(r *types.CycleResult) {
		r.Skipped = append(r.Skipped, name)
		r.Source(name).Skipped = true
	})
	c.logger.WithFields(logging.Fields{"source": name, "reason": reason}).Warn("source skipped")
	o.emit(ProgressEvent{Step: StepSourceSkipped, Source: name, CycleID: c.id, Message: reason})
}

// runSource scrapes one source through its controller and processes the
// output. Each attempt gets the adapter timeout and the whole task, retries
// and backoff included, gets the source timeout; an adapter that overruns
// either is abandoned and its late result discarded.
func (o *Orchestrator) runSource(ctx context.Context, c *cycle, src config.SourceConfig, ctrl *throttle.Controller) {
	start := o.now()
	timeout := c.cfg.Pipeline.AdapterTimeout.Duration
	if timeout <= 0 {
		timeout = config.DefaultAdapterTimeout
	}
	budget := c.cfg.Pipeline.SourceTimeout.Duration
	if budget <= 0 {
		budget = config.SourceTimeoutFactor * timeout
	}
	log := c.logger.WithFields(logging.Fields{"source": src.Name, "type": src.Type})

	adapter, err := o.builder.Build(src, ctrl.Pacer(), o.httpClient, timeout, o.logger)
	if err != nil {
		o.fail(c, src.Name, sources.NewPermanent(src.Name, "invalid source configuration", err))
		return
	}

	srcCtx, cancel := context.WithTimeoutCause(ctx, budget,
		sources.NewTransient(src.Name, fmt.Sprintf("source exceeded its %s budget", budget), context.DeadlineExceeded))
	defer cancel()

	var postings []types.RawPosting
	err = ctrl.Execute(srcCtx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ps, err := scrape(attemptCtx, adapter)
		if err != nil {
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return sources.NewTransient(src.Name, fmt.Sprintf("adapter timed out after %s", timeout), err)
			}
			return err
		}
		postings = ps
		return nil
	})
	elapsed := o.now().Sub(start)
	metrics.ObserveScrape(src.Name, elapsed)
	if err != nil && ctx.Err() == nil && srcCtx.Err() != nil {
		err = context.Cause(srcCtx)
	}

	switch {
	case errors.Is(err, throttle.ErrCircuitOpen):
		o.skip(c, src.Name, "circuit open")
		return
	case err != nil && ctx.Err() != nil:
		log.WithError(err).Info("source abandoned by shutdown")
		return
	case err != nil:
		o.fail(c, src.Name, err)
		c.update(func(r *types.CycleResult) { r.Source(src.Name).Duration = elapsed })
		return
	}

	stats := o.process(ctx, c, src.Name, postings)
	stats.Duration = elapsed
	c.update(func(r *types.CycleResult) {
		s := r.Source(src.Name)
		*s = stats.SourceStats
		r.PostingsFound += stats.Found
		r.PostingsNew += stats.New
		r.PostingsUpdated += stats.Updated
		r.Filtered += stats.Filtered
		r.Invalid += stats.Invalid
		r.PersistFailures += stats.persistFailures
		r.AlertsSent += stats.alerts
	})
	metrics.AddPostings(src.Name, "found", stats.Found)
	metrics.AddPostings(src.Name, "new", stats.New)
	metrics.AddPostings(src.Name, "updated", stats.Updated)
	metrics.AddPostings(src.Name, "filtered", stats.Filtered)
	metrics.AddPostings(src.Name, "invalid", stats.Invalid)

	log.WithFields(logging.Fields{
		"found":    stats.Found,
		"new":      stats.New,
		"updated":  stats.Updated,
		"filtered": stats.Filtered,
		"invalid":  stats.Invalid,
		"duration": elapsed.String(),
	}).Info("source finished")
	o.emit(ProgressEvent{
		Step:    StepSourceDone,
		Source:  src.Name,
		CycleID: c.id,
		Message: fmt.Sprintf("%s: %d found, %d new", src.Name, stats.Found, stats.New),
	})
}

func (o *Orchestrator) fail(c *cycle, name string, err error) {
	kind := sources.KindOf(err)
	c.update(func(r *types.CycleResult) { r.AddFailure(name, string(kind), err) })
	metrics.RecordSourceError(name, string(kind))
	c.logger.WithFields(logging.Fields{"source": name, "kind": kind}).WithError(err).Warn("source failed")
	o.emit(ProgressEvent{Step: StepSourceFailed, Source: name, CycleID: c.id, Message: err.Error()})
}

// scrape runs the adapter but returns as soon as ctx ends, even if the
// adapter ignores cancellation.
func scrape(ctx context.Context, src sources.Source) ([]types.RawPosting, error) {
	type outcome struct {
		postings []types.RawPosting
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		ps, err := src.Scrape(ctx)
		done <- outcome{ps, err}
	}()

	select {
	case out := <-done:
		if out.err == nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return out.postings, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sweep applies the retention policy after a completed cycle.
func (o *Orchestrator) sweep(ctx context.Context, c *cycle) {
	age := time.Duration(c.cfg.Pipeline.RetentionDays) * 24 * time.Hour
	n, err := o.store.DeletePostingsOlderThan(ctx, age)
	if err != nil {
		c.logger.WithError(err).Warn("retention sweep failed")
		return
	}
	if n > 0 {
		c.logger.WithField("deleted", n).Info("retention sweep removed stale postings")
	}
}
