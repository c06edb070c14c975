package types

import (
	"fmt"
	"sort"
	"time"
)

// SourceFailure records one source that failed during a cycle.
type SourceFailure struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// SourceStats are the per-source counters of one cycle.
type SourceStats struct {
	Found    int           `json:"found"`
	New      int           `json:"new"`
	Updated  int           `json:"updated"`
	Filtered int           `json:"filtered"`
	Invalid  int           `json:"invalid"`
	Failed   bool          `json:"failed"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
}

// CycleResult is the ephemeral summary of one discovery cycle.
type CycleResult struct {
	CycleID         string                  `json:"cycle_id"`
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      time.Time               `json:"finished_at"`
	PostingsFound   int                     `json:"postings_found"`
	PostingsNew     int                     `json:"postings_new"`
	PostingsUpdated int                     `json:"postings_updated"`
	Filtered        int                     `json:"filtered"`
	Invalid         int                     `json:"invalid"`
	PersistFailures int                     `json:"persist_failures"`
	AlertsSent      int                     `json:"alerts_sent"`
	Skipped         []string                `json:"skipped,omitempty"`
	Errors          []SourceFailure         `json:"errors,omitempty"`
	PerSource       map[string]*SourceStats `json:"per_source,omitempty"`
	Aborted         bool                    `json:"aborted,omitempty"`
}

// NewCycleResult creates an empty result stamped with its start time.
func NewCycleResult(id string, started time.Time) *CycleResult {
	return &CycleResult{
		CycleID:   id,
		StartedAt: started,
		PerSource: make(map[string]*SourceStats),
	}
}

// Source returns the stats bucket for name, creating it if needed.
func (r *CycleResult) Source(name string) *SourceStats {
	if r.PerSource == nil {
		r.PerSource = make(map[string]*SourceStats)
	}
	s, ok := r.PerSource[name]
	if !ok {
		s = &SourceStats{}
		r.PerSource[name] = s
	}
	return s
}

// AddFailure records a failed source.
func (r *CycleResult) AddFailure(source, kind string, err error) {
	r.Errors = append(r.Errors, SourceFailure{Source: source, Kind: kind, Error: err.Error()})
	r.Source(source).Failed = true
}

// SortFailures orders failures by source name so output is stable.
func (r *CycleResult) SortFailures() {
	sort.Slice(r.Errors, func(i, j int) bool { return r.Errors[i].Source < r.Errors[j].Source })
	sort.Strings(r.Skipped)
}

// Duration returns how long the cycle ran.
func (r *CycleResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders the one-line outcome shown to the user.
func (r *CycleResult) Summary() string {
	s := fmt.Sprintf("%d new %s found", r.PostingsNew, plural(r.PostingsNew, "job", "jobs"))
	if n := len(r.Errors); n > 0 {
		s += fmt.Sprintf(", %d %s failed", n, plural(n, "source", "sources"))
	}
	if n := len(r.Skipped); n > 0 {
		s += fmt.Sprintf(", %d %s skipped", n, plural(n, "source", "sources"))
	}
	if r.Aborted {
		s += " (aborted)"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
