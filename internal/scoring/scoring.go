// Package scoring rates postings against the user's preferences.
//
// Score is a pure function: the same posting, preferences, weights and clock
// always produce the same result, so it is safe to call from any goroutine.
package scoring

import (
	"time"

	"github.com/jonathan/job-radar/internal/types"
)

// NeutralScore is the sub-score used when a posting does not state the data a
// factor needs (no salary, no location, no date) or when the user configured
// nothing for that factor. Unknown is neither rewarded nor punished.
const NeutralScore = 0.5

// BoostMultiplier is how much a boost keyword counts relative to a plain keyword.
const BoostMultiplier = 2.0

// Factor names a scoring component.
type Factor string

// Scoring factors
const (
	FactorSkills   Factor = "skills"
	FactorSalary   Factor = "salary"
	FactorLocation Factor = "location"
	FactorCompany  Factor = "company_preference"
	FactorRecency  Factor = "recency"
)

// Factors lists every factor in display order.
func Factors() []Factor {
	return []Factor{FactorSkills, FactorSalary, FactorLocation, FactorCompany, FactorRecency}
}

// Contribution is one factor's part of the final score.
type Contribution struct {
	SubScore     float64 `json:"sub_score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Reason       string  `json:"reason,omitempty"`
}

// Result is the final score plus its per-factor breakdown.
type Result struct {
	Score     float64                 `json:"score"`
	Breakdown map[Factor]Contribution `json:"breakdown"`
}

// Input bundles everything Score reads.
type Input struct {
	Posting     *types.RawPosting
	Preferences types.Preferences
	Weights     types.ScoringWeights
	Now         time.Time
}

// Score computes the weighted score of a posting. Weights are normalized, so
// the result is always within [0, 1].
func Score(in Input) Result {
	w := in.Weights.Normalized()
	p := in.Posting
	prefs := &in.Preferences

	skills, skillsReason := computeSkillsScore(p, prefs)
	salary, salaryReason := computeSalaryScore(p, prefs.SalaryFloor)
	location, locationReason := computeLocationScore(p, prefs)
	company, companyReason := computeCompanyScore(p, prefs)
	recency, recencyReason := computeRecencyScore(p, prefs.Horizon(), in.Now)

	breakdown := map[Factor]Contribution{
		FactorSkills:   contribution(skills, w.Skills, skillsReason),
		FactorSalary:   contribution(salary, w.Salary, salaryReason),
		FactorLocation: contribution(location, w.Location, locationReason),
		FactorCompany:  contribution(company, w.CompanyPreference, companyReason),
		FactorRecency:  contribution(recency, w.Recency, recencyReason),
	}

	// Summed in Factors() order: float addition is not associative and map
	// iteration order is random.
	total := 0.0
	for _, f := range Factors() {
		total += breakdown[f].Contribution
	}

	return Result{
		Score:     clamp(total),
		Breakdown: breakdown,
	}
}

// Contributions flattens the breakdown to factor -> contribution, the form
// persisted alongside a posting.
func (r Result) Contributions() map[string]float64 {
	out := make(map[string]float64, len(r.Breakdown))
	for f, c := range r.Breakdown {
		out[string(f)] = c.Contribution
	}
	return out
}

func contribution(sub, weight float64, reason string) Contribution {
	sub = clamp(sub)
	return Contribution{
		SubScore:     sub,
		Weight:       weight,
		Contribution: sub * weight,
		Reason:       reason,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
