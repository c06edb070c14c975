package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-radar/internal/types"
)

// ErrNotFound is returned when no posting has the requested fingerprint.
var ErrNotFound = errors.New("posting not found")

// ErrEmptyQuery is returned by Search for a blank query.
var ErrEmptyQuery = errors.New("search query must not be empty")

// Posting is a stored job posting: the descriptive fields a source reported
// plus identity, score, lifecycle and user flags.
type Posting struct {
	ID          uuid.UUID `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	types.RawPosting

	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	TimesSeen int       `json:"times_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Hidden      bool       `json:"hidden"`
	Bookmarked  bool       `json:"bookmarked"`
	Notes       string     `json:"notes,omitempty"`
	AlertSent   bool       `json:"alert_sent"`
	AlertSentAt *time.Time `json:"alert_sent_at,omitempty"`
}

// UpsertInput is one scored posting to insert or refresh.
type UpsertInput struct {
	Fingerprint string
	Posting     types.RawPosting
	Score       float64
	Breakdown   map[string]float64
}

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	ID        uuid.UUID `json:"id"`
	WasNew    bool      `json:"was_new"`
	TimesSeen int       `json:"times_seen"`
	AlertSent bool      `json:"alert_sent"`
	Score     float64   `json:"score"`
}

// ListOptions bounds list and search queries.
type ListOptions struct {
	Limit         int
	IncludeHidden bool
}

// Statistics summarizes the stored postings.
type Statistics struct {
	Total      int            `json:"total"`
	NewToday   int            `json:"new_today"`
	AvgScore   float64        `json:"avg_score"`
	MaxScore   float64        `json:"max_score"`
	AlertsSent int            `json:"alerts_sent"`
	Bookmarked int            `json:"bookmarked"`
	Hidden     int            `json:"hidden"`
	BySource   map[string]int `json:"by_source"`
}

// PersistenceError is an upsert failure for one posting. It never affects
// other postings in the cycle.
type PersistenceError struct {
	Fingerprint string
	Op          string
	Cause       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s posting %s: %v", e.Op, e.Fingerprint, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// Limits applied when a caller passes no or an oversized limit.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return o.Limit
	}
}
