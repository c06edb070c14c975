// Package alert notifies the user when a stored posting scores above the
// alert threshold. Each posting is alerted at most once across cycles.
package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/job-radar/internal/types"
)

// Alert is the payload every channel delivers.
type Alert struct {
	Fingerprint string             `json:"fingerprint"`
	Title       string             `json:"title"`
	Company     string             `json:"company"`
	Location    string             `json:"location,omitempty"`
	Remote      string             `json:"remote"`
	Salary      string             `json:"salary,omitempty"`
	URL         string             `json:"url"`
	Source      string             `json:"source"`
	Score       float64            `json:"score"`
	Breakdown   map[string]float64 `json:"breakdown,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Channel delivers alerts to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Candidate is a posting that was just upserted and may deserve an alert.
// AlertSent is the flag as the upsert returned it.
type Candidate struct {
	Fingerprint string
	Posting     types.RawPosting
	Score       float64
	Breakdown   map[string]float64
	AlertSent   bool
}

// NewAlert builds the alert payload for a candidate.
func NewAlert(c Candidate, now time.Time) Alert {
	p := c.Posting
	return Alert{
		Fingerprint: c.Fingerprint,
		Title:       p.Title,
		Company:     p.Company,
		Location:    p.Location,
		Remote:      p.Remote.String(),
		Salary:      p.SalaryRange(),
		URL:         p.URL,
		Source:      p.Source,
		Score:       c.Score,
		Breakdown:   c.Breakdown,
		CreatedAt:   now.UTC(),
	}
}

// Subject is a one-line summary used as an email subject.
func (a Alert) Subject() string {
	return fmt.Sprintf("[%.0f%%] %s at %s", a.Score*100, a.Title, a.Company)
}

// Text renders the alert as a short plain-text message.
func (a Alert) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "New match (%.0f%%): %s at %s\n", a.Score*100, a.Title, a.Company)
	if a.Location != "" {
		fmt.Fprintf(&b, "Location: %s (%s)\n", a.Location, a.Remote)
	} else {
		fmt.Fprintf(&b, "Remote: %s\n", a.Remote)
	}
	if a.Salary != "" {
		fmt.Fprintf(&b, "Salary: %s\n", a.Salary)
	}
	if len(a.Breakdown) > 0 {
		factors := make([]string, 0, len(a.Breakdown))
		for f := range a.Breakdown {
			factors = append(factors, f)
		}
		sort.Strings(factors)
		parts := make([]string, len(factors))
		for i, f := range factors {
			parts[i] = fmt.Sprintf("%s %.2f", f, a.Breakdown[f])
		}
		fmt.Fprintf(&b, "Breakdown: %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(&b, "%s\n", a.URL)
	return b.String()
}

// DispatchError reports that no channel accepted an alert.
type DispatchError struct {
	Fingerprint string
	Failures    map[string]error
}

func (e *DispatchError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Failures[name])
	}
	return fmt.Sprintf("alert %s not delivered: %s", e.Fingerprint, strings.Join(parts, "; "))
}

// Unwrap exposes the per-channel errors to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		out = append(out, err)
	}
	return out
}
