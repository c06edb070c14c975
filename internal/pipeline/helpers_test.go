package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/sources"
	"github.com/jonathan/job-radar/internal/types"
)

// memStore is an in-memory posting store keyed by fingerprint.
type memStore struct {
	mu       sync.Mutex
	rows     map[string]*memRow
	failOn   string        // upserts of postings with this title fail
	block    chan struct{} // when set, upserts wait on it and ignore ctx
	sweeps   []time.Duration
	upserted atomic.Int32
}

type memRow struct {
	posting   types.RawPosting
	score     float64
	timesSeen int
	alertSent bool
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*memRow)}
}

func (s *memStore) UpsertPosting(_ context.Context, in db.UpsertInput) (*db.UpsertResult, error) {
	if s.block != nil {
		<-s.block
	}
	if s.failOn != "" && in.Posting.Title == s.failOn {
		return nil, &db.PersistenceError{Fingerprint: in.Fingerprint, Op: "upsert", Cause: errors.New("connection reset")}
	}
	s.upserted.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[in.Fingerprint]
	if !ok {
		row = &memRow{}
		s.rows[in.Fingerprint] = row
	}
	row.posting = in.Posting
	row.score = in.Score
	row.timesSeen++
	return &db.UpsertResult{
		WasNew:    !ok,
		TimesSeen: row.timesSeen,
		AlertSent: row.alertSent,
		Score:     row.score,
	}, nil
}

func (s *memStore) DeletePostingsOlderThan(_ context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps = append(s.sweeps, age)
	return 0, nil
}

func (s *memStore) IsAlertSent(_ context.Context, fp string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[fp]
	return ok && row.alertSent, nil
}

func (s *memStore) MarkAlertSent(_ context.Context, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[fp]
	if !ok {
		return db.ErrNotFound
	}
	row.alertSent = true
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStore) timesSeen() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, r := range s.rows {
		out = append(out, r.timesSeen)
	}
	return out
}

// fakeSource returns fixed postings or a fixed error.
type fakeSource struct {
	name     string
	postings []types.RawPosting
	err      error
	delay    time.Duration
	hang     chan struct{} // when set, Scrape ignores ctx and waits on it
	calls    atomic.Int32

	inflight    *atomic.Int32
	maxInflight *atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	f.calls.Add(1)
	if f.inflight != nil {
		n := f.inflight.Add(1)
		defer f.inflight.Add(-1)
		for {
			m := f.maxInflight.Load()
			if n <= m || f.maxInflight.CompareAndSwap(m, n) {
				break
			}
		}
	}
	if f.hang != nil {
		<-f.hang
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.RawPosting, len(f.postings))
	copy(out, f.postings)
	return out, nil
}

// fakeRegistry builds a sources.Registry whose "fake" type resolves to the
// given adapters by source name.
func fakeRegistry(adapters ...*fakeSource) *sources.Registry {
	byName := make(map[string]*fakeSource, len(adapters))
	for _, a := range adapters {
		byName[a.name] = a
	}
	reg := sources.NewRegistry()
	reg.Register("fake", func(cfg config.SourceConfig, env sources.Env) (sources.Source, error) {
		a, ok := byName[cfg.Name]
		if !ok {
			return nil, errors.New("no fake adapter named " + cfg.Name)
		}
		return a, nil
	})
	return reg
}

func fakeConfig(names ...string) *config.Config {
	cfg := &config.Config{
		Schedule: config.ScheduleConfig{IntervalHours: 1},
		Pipeline: config.PipelineConfig{
			MaxConcurrency:  4,
			AdapterTimeout:  config.Duration{Duration: 2 * time.Second},
			ShutdownTimeout: config.Duration{Duration: time.Second},
		},
		Throttle: config.ThrottleConfig{
			Burst:            10,
			MaxAttempts:      1,
			FailureThreshold: 3,
			Cooldown:         config.Duration{Duration: time.Hour},
		},
	}
	for _, n := range names {
		cfg.Sources = append(cfg.Sources, config.SourceConfig{Name: n, Type: "fake"})
	}
	return cfg
}

func job(title, company string) types.RawPosting {
	now := time.Now()
	slug := strings.ToLower(strings.ReplaceAll(company+"-"+title, " ", "-"))
	return types.RawPosting{
		Title:     title,
		Company:   company,
		Location:  "Remote",
		URL:       "https://jobs.example.com/" + slug,
		Remote:    types.RemoteYes,
		SalaryMin: types.IntPtr(150000),
		Currency:  "USD",
		PostedAt:  &now,
	}
}
