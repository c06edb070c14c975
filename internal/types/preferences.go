package types

import (
	"github.com/go-playground/validator/v10"
)

// RemotePreference expresses how the user feels about remote work.
type RemotePreference string

const (
	// RemoteAny accepts remote and onsite postings equally
	RemoteAny RemotePreference = "any"
	// RemotePrefer favours remote postings but accepts onsite ones in allowed locations
	RemotePrefer RemotePreference = "prefer"
	// RemoteOnly rejects postings that are not remote
	RemoteOnly RemotePreference = "only"
)

// DefaultRecencyHorizonDays is the age at which the recency factor reaches zero.
const DefaultRecencyHorizonDays = 30

// Preferences are the user's scoring and filtering inputs.
type Preferences struct {
	TitlesAllow        []string         `json:"titles_allow,omitempty"`
	TitlesBlock        []string         `json:"titles_block,omitempty"`
	Keywords           []string         `json:"keywords,omitempty"`
	BoostKeywords      []string         `json:"boost_keywords,omitempty"`
	ExcludeKeywords    []string         `json:"exclude_keywords,omitempty"`
	SalaryFloor        int              `json:"salary_floor,omitempty" validate:"gte=0"`
	Locations          []string         `json:"locations,omitempty"`
	BlockedLocations   []string         `json:"blocked_locations,omitempty"`
	Remote             RemotePreference `json:"remote,omitempty" validate:"omitempty,oneof=any prefer only"`
	BlockedCompanies   []string         `json:"blocked_companies,omitempty"`
	RecencyHorizonDays int              `json:"recency_horizon_days,omitempty" validate:"gte=0,lte=365"`
}

// Validate validates the Preferences using the validator.
func (p *Preferences) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

// RemoteMode returns the remote preference with the default applied.
func (p *Preferences) RemoteMode() RemotePreference {
	if p.Remote == "" {
		return RemoteAny
	}
	return p.Remote
}

// Horizon returns the recency horizon in days with the default applied.
func (p *Preferences) Horizon() int {
	if p.RecencyHorizonDays <= 0 {
		return DefaultRecencyHorizonDays
	}
	return p.RecencyHorizonDays
}

// Clone returns a deep copy so a snapshot cannot be mutated through shared slices.
func (p Preferences) Clone() Preferences {
	c := p
	c.TitlesAllow = cloneStrings(p.TitlesAllow)
	c.TitlesBlock = cloneStrings(p.TitlesBlock)
	c.Keywords = cloneStrings(p.Keywords)
	c.BoostKeywords = cloneStrings(p.BoostKeywords)
	c.ExcludeKeywords = cloneStrings(p.ExcludeKeywords)
	c.Locations = cloneStrings(p.Locations)
	c.BlockedLocations = cloneStrings(p.BlockedLocations)
	c.BlockedCompanies = cloneStrings(p.BlockedCompanies)
	return c
}

// ScoringWeights are the relative weights of the scoring factors. They are
// normalized to sum to 1.0 before use.
type ScoringWeights struct {
	Skills            float64 `json:"skills" validate:"gte=0"`
	Salary            float64 `json:"salary" validate:"gte=0"`
	Location          float64 `json:"location" validate:"gte=0"`
	CompanyPreference float64 `json:"company_preference" validate:"gte=0"`
	Recency           float64 `json:"recency" validate:"gte=0"`
}

// DefaultWeights returns the default factor weights.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		Skills:            0.35,
		Salary:            0.20,
		Location:          0.20,
		CompanyPreference: 0.10,
		Recency:           0.15,
	}
}

// Sum returns the total of all weights.
func (w ScoringWeights) Sum() float64 {
	return w.Skills + w.Salary + w.Location + w.CompanyPreference + w.Recency
}

// Normalized scales the weights to sum to 1.0. A zero or negative total falls
// back to the defaults.
func (w ScoringWeights) Normalized() ScoringWeights {
	sum := w.Sum()
	if sum <= 0 || w.Skills < 0 || w.Salary < 0 || w.Location < 0 || w.CompanyPreference < 0 || w.Recency < 0 {
		return DefaultWeights()
	}
	return ScoringWeights{
		Skills:            w.Skills / sum,
		Salary:            w.Salary / sum,
		Location:          w.Location / sum,
		CompanyPreference: w.CompanyPreference / sum,
		Recency:           w.Recency / sum,
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
