// Package pipeline runs discovery cycles: it fans out to the configured
// sources, turns their output into scored, deduplicated postings in the store,
// and hands strong matches to the alert dispatcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonathan/job-radar/internal/alert"
	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/sources"
	"github.com/jonathan/job-radar/internal/throttle"
	"github.com/jonathan/job-radar/internal/types"
)

var (
	// ErrCycleInProgress is returned by Trigger while a cycle is running.
	ErrCycleInProgress = errors.New("a discovery cycle is already running")
	// ErrStopped is returned once the orchestrator is shutting down or stopped.
	ErrStopped = errors.New("orchestrator is stopped")
)

// State is the lifecycle state of the orchestrator.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Store is the part of the posting store a cycle writes to.
type Store interface {
	UpsertPosting(ctx context.Context, in db.UpsertInput) (*db.UpsertResult, error)
	DeletePostingsOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Notifier receives every upserted posting and decides whether to alert.
type Notifier interface {
	MaybeNotify(ctx context.Context, c alert.Candidate) (bool, error)
}

// Builder constructs source adapters. *sources.Registry implements it.
type Builder interface {
	Build(cfg config.SourceConfig, pacer *throttle.Pacer, httpClient *http.Client, timeout time.Duration, logger logging.Logger) (sources.Source, error)
}

// Deps are the collaborators of an Orchestrator. Notifier, HTTPClient,
// Logger and OnProgress are optional.
type Deps struct {
	Store      Store
	Sources    Builder
	Notifier   Notifier
	HTTPClient *http.Client
	Logger     logging.Logger
	OnProgress ProgressCallback
}

// SourceStatus describes one configured source for status reports.
type SourceStatus struct {
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	Enabled bool             `json:"enabled"`
	Circuit *throttle.Status `json:"circuit,omitempty"`
}

// ScheduleStatus is the orchestrator's externally visible state.
type ScheduleStatus struct {
	State      string             `json:"state"`
	Enabled    bool               `json:"enabled"`
	Interval   string             `json:"interval,omitempty"`
	Cron       string             `json:"cron,omitempty"`
	LastRunAt  *time.Time         `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time         `json:"next_run_at,omitempty"`
	LastResult *types.CycleResult `json:"last_result,omitempty"`
	Sources    []SourceStatus     `json:"sources"`
}

type controllerEntry struct {
	ctrl *throttle.Controller
	opts throttle.Options
}

// Orchestrator owns the schedule and runs at most one cycle at a time.
type Orchestrator struct {
	store      Store
	builder    Builder
	notifier   Notifier
	httpClient *http.Client
	logger     logging.Logger
	onProgress ProgressCallback
	now        func() time.Time

	// base is cancelled by Stop; every cycle and the timer loop derive from it.
	base       context.Context
	baseCancel context.CancelFunc

	mu          sync.Mutex
	state       State
	cfg         *config.Config
	schedule    cron.Schedule
	controllers map[string]*controllerEntry
	lastRun     time.Time
	nextRun     time.Time
	lastResult  *types.CycleResult
	cycleDone   chan struct{}
	loopDone    chan struct{}
	started     bool

	reset chan struct{}
}

// New creates an idle orchestrator for cfg. The config is copied; use Reload
// to change it.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Sources == nil {
		deps.Sources = sources.NewRegistry()
	}
	sched, err := scheduleFor(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	base, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:       deps.Store,
		builder:     deps.Sources,
		notifier:    deps.Notifier,
		httpClient:  deps.HTTPClient,
		logger:      logging.OrDiscard(deps.Logger),
		onProgress:  deps.OnProgress,
		now:         time.Now,
		base:        base,
		baseCancel:  cancel,
		state:       StateIdle,
		cfg:         cfg.Clone(),
		schedule:    sched,
		controllers: make(map[string]*controllerEntry),
		reset:       make(chan struct{}, 1),
	}, nil
}

// Start begins the timer loop when the schedule is enabled. Manual triggers
// work whether or not Start was called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateShuttingDown || o.state == StateStopped {
		return ErrStopped
	}
	if o.started {
		return errors.New("orchestrator already started")
	}
	if !o.cfg.Schedule.Enabled {
		o.logger.WithField("component", "pipeline").Info("schedule disabled, cycles run on demand only")
		return nil
	}

	now := o.now()
	if o.cfg.Schedule.RunOnStart {
		o.nextRun = now
	} else {
		o.nextRun = nextAfter(o.schedule, now)
	}
	o.started = true
	o.loopDone = make(chan struct{})

	o.logger.WithFields(logging.Fields{
		"component": "pipeline",
		"next_run":  o.nextRun.Format(time.RFC3339),
	}).Info("scheduler started")

	go o.loop(ctx)
	return nil
}

// loop fires cycles on the schedule until Stop or ctx ends it.
func (o *Orchestrator) loop(ctx context.Context) {
	defer close(o.loopDone)

	timer := time.NewTimer(o.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-o.base.Done():
			return
		case <-ctx.Done():
			return
		case <-o.reset:
		case <-timer.C:
			_, err := o.Trigger(o.base)
			if err != nil && !errors.Is(err, ErrCycleInProgress) && !errors.Is(err, ErrStopped) {
				o.logger.WithField("component", "pipeline").WithError(err).Error("scheduled cycle failed")
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(o.untilNext())
	}
}

func (o *Orchestrator) untilNext() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.nextRun.IsZero() {
		o.nextRun = nextAfter(o.schedule, o.now())
	}
	d := o.nextRun.Sub(o.now())
	if d < 0 {
		return 0
	}
	return d
}

func (o *Orchestrator) signalReset() {
	select {
	case o.reset <- struct{}{}:
	default:
	}
}

// Trigger runs one cycle now and returns its result. Cancelling ctx aborts
// the cycle. The next scheduled cycle is measured from the end of this one.
func (o *Orchestrator) Trigger(ctx context.Context) (*types.CycleResult, error) {
	o.mu.Lock()
	switch o.state {
	case StateShuttingDown, StateStopped:
		o.mu.Unlock()
		return nil, ErrStopped
	case StateRunning:
		o.mu.Unlock()
		return nil, ErrCycleInProgress
	}
	o.state = StateRunning
	done := make(chan struct{})
	o.cycleDone = done
	snapshot := o.cfg.Clone()
	o.mu.Unlock()

	cycleCtx, cancel := context.WithCancel(o.base)
	stopLink := context.AfterFunc(ctx, cancel)
	result := o.runCycle(cycleCtx, snapshot)
	stopLink()
	cancel()

	o.mu.Lock()
	o.lastResult = result
	o.lastRun = result.FinishedAt
	o.nextRun = nextAfter(o.schedule, result.FinishedAt)
	if o.state == StateRunning {
		o.state = StateIdle
	}
	o.cycleDone = nil
	close(done)
	o.mu.Unlock()

	o.signalReset()
	return result, nil
}

// Stop cancels any running cycle and the timer loop, then waits up to the
// configured shutdown timeout (or until ctx ends). The orchestrator is
// Stopped afterwards either way; the error reports a wait that timed out.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateStopped || o.state == StateShuttingDown {
		o.mu.Unlock()
		return nil
	}
	o.state = StateShuttingDown
	cycleDone := o.cycleDone
	loopDone := o.loopDone
	timeout := o.cfg.Pipeline.ShutdownTimeout.Duration
	o.mu.Unlock()

	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	o.logger.WithField("component", "pipeline").Info("stopping orchestrator")
	o.baseCancel()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	for _, ch := range []chan struct{}{cycleDone, loopDone} {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-waitCtx.Done():
			err = fmt.Errorf("shutdown did not finish within %s: %w", timeout, waitCtx.Err())
		}
		if err != nil {
			break
		}
	}
	if err != nil {
		o.logger.WithField("component", "pipeline").WithError(err).Warn("abandoning in-flight work")
	}

	o.mu.Lock()
	o.state = StateStopped
	o.mu.Unlock()
	return err
}

// Reload swaps in a new configuration. A running cycle keeps the snapshot it
// started with; the change applies from the next cycle.
func (o *Orchestrator) Reload(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	sched, err := scheduleFor(cfg.Schedule)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.state == StateStopped || o.state == StateShuttingDown {
		o.mu.Unlock()
		return ErrStopped
	}
	o.cfg = cfg.Clone()
	o.schedule = sched
	if o.state == StateIdle {
		from := o.lastRun
		if from.IsZero() {
			from = o.now()
		}
		o.nextRun = nextAfter(sched, from)
	}
	o.mu.Unlock()

	o.logger.WithFields(logging.Fields{
		"component": "pipeline",
		"sources":   len(cfg.Sources),
	}).Info("configuration reloaded")
	o.signalReset()
	return nil
}

// ReloadFromFile re-reads the file the current config was loaded from.
func (o *Orchestrator) ReloadFromFile() error {
	o.mu.Lock()
	current := o.cfg
	o.mu.Unlock()

	cfg, err := current.Reload()
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	return o.Reload(cfg)
}

// Config returns a copy of the current configuration.
func (o *Orchestrator) Config() *config.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg.Clone()
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns a snapshot of the schedule, the last result and every
// configured source.
func (o *Orchestrator) Status() ScheduleStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := ScheduleStatus{
		State:      o.state.String(),
		Enabled:    o.cfg.Schedule.Enabled,
		Cron:       o.cfg.Schedule.Cron,
		LastResult: o.lastResult,
		Sources:    make([]SourceStatus, 0, len(o.cfg.Sources)),
	}
	if o.cfg.Schedule.Cron == "" {
		st.Interval = o.cfg.Schedule.Interval().String()
	}
	if !o.lastRun.IsZero() {
		t := o.lastRun
		st.LastRunAt = &t
	}
	if o.cfg.Schedule.Enabled && !o.nextRun.IsZero() && o.state != StateStopped {
		t := o.nextRun
		st.NextRunAt = &t
	}
	for _, src := range o.cfg.Sources {
		ss := SourceStatus{Name: src.Name, Type: src.Type, Enabled: src.IsEnabled()}
		if e, ok := o.controllers[src.Name]; ok {
			cs := e.ctrl.Status()
			ss.Circuit = &cs
		}
		st.Sources = append(st.Sources, ss)
	}
	sort.Slice(st.Sources, func(i, j int) bool { return st.Sources[i].Name < st.Sources[j].Name })
	return st
}

// controllerFor returns the source's controller, keeping circuit state
// across cycles until its throttle settings change.
func (o *Orchestrator) controllerFor(cfg *config.Config, src config.SourceConfig) *throttle.Controller {
	opts := throttle.OptionsFrom(cfg.ThrottleFor(src))

	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.controllers[src.Name]; ok && e.opts == opts {
		return e.ctrl
	}
	ctrl := throttle.NewController(src.Name, opts, o.logger)
	o.controllers[src.Name] = &controllerEntry{ctrl: ctrl, opts: opts}
	return ctrl
}
