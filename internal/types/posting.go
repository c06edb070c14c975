// Package types provides the data shapes that flow through the discovery pipeline.
package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RemoteStatus is a tri-state remote flag. The zero value means the source
// did not say.
type RemoteStatus string

const (
	// RemoteUnknown means the posting did not state a work mode
	RemoteUnknown RemoteStatus = ""
	// RemoteYes marks a fully remote posting
	RemoteYes RemoteStatus = "remote"
	// RemoteNo marks an onsite or hybrid posting
	RemoteNo RemoteStatus = "onsite"
)

// Known reports whether the source stated a work mode.
func (r RemoteStatus) Known() bool {
	return r == RemoteYes || r == RemoteNo
}

// String returns a display form of the status.
func (r RemoteStatus) String() string {
	if r == RemoteUnknown {
		return "unknown"
	}
	return string(r)
}

// RawPosting is what a source adapter emits: descriptive fields only. Identity
// (fingerprint), score and lifecycle are attached downstream.
type RawPosting struct {
	Title       string       `json:"title" validate:"required"`
	Company     string       `json:"company" validate:"required"`
	Location    string       `json:"location,omitempty"`
	URL         string       `json:"url" validate:"required,url"`
	Description string       `json:"description,omitempty"`
	Source      string       `json:"source" validate:"required"`
	Remote      RemoteStatus `json:"remote,omitempty"`
	SalaryMin   *int         `json:"salary_min,omitempty" validate:"omitempty,gte=0"`
	SalaryMax   *int         `json:"salary_max,omitempty" validate:"omitempty,gte=0"`
	Currency    string       `json:"currency,omitempty"`
	PostedAt    *time.Time   `json:"posted_at,omitempty"`
	ExternalID  string       `json:"external_id,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
}

var postingValidator = validator.New()

// Normalize trims and collapses whitespace in the descriptive fields and
// orders an inverted salary range. It does not touch the description body
// beyond trimming.
func (p *RawPosting) Normalize() {
	p.Title = collapseSpaces(p.Title)
	p.Company = collapseSpaces(p.Company)
	p.Location = collapseSpaces(p.Location)
	p.URL = strings.TrimSpace(p.URL)
	p.Description = strings.TrimSpace(p.Description)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))

	if p.SalaryMin != nil && p.SalaryMax != nil && *p.SalaryMin > *p.SalaryMax {
		p.SalaryMin, p.SalaryMax = p.SalaryMax, p.SalaryMin
	}
	if p.SalaryMin != nil && *p.SalaryMin <= 0 {
		p.SalaryMin = nil
	}
	if p.SalaryMax != nil && *p.SalaryMax <= 0 {
		p.SalaryMax = nil
	}
}

// Validate checks the fields required to fingerprint and store the posting.
func (p *RawPosting) Validate() error {
	if err := postingValidator.Struct(p); err != nil {
		return err
	}
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("posting url must be absolute http(s): %q", p.URL)
	}
	return nil
}

// StatedSalary returns the salary used for comparisons: the minimum when
// present, otherwise the maximum.
func (p *RawPosting) StatedSalary() (int, bool) {
	if p.SalaryMin != nil {
		return *p.SalaryMin, true
	}
	if p.SalaryMax != nil {
		return *p.SalaryMax, true
	}
	return 0, false
}

// SalaryRange formats the salary for display, or "" when unstated.
func (p *RawPosting) SalaryRange() string {
	cur := p.Currency
	if cur == "" {
		cur = "USD"
	}
	switch {
	case p.SalaryMin != nil && p.SalaryMax != nil && *p.SalaryMin != *p.SalaryMax:
		return fmt.Sprintf("%d-%d %s", *p.SalaryMin, *p.SalaryMax, cur)
	case p.SalaryMin != nil:
		return fmt.Sprintf("%d %s", *p.SalaryMin, cur)
	case p.SalaryMax != nil:
		return fmt.Sprintf("up to %d %s", *p.SalaryMax, cur)
	default:
		return ""
	}
}

// IntPtr is a small helper for building optional salary fields.
func IntPtr(v int) *int {
	return &v
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
