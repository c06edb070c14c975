package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/job-radar/internal/types"
)

// computeSkillsScore measures keyword overlap with the posting's title and
// description. Boost keywords count BoostMultiplier times. Any excluded
// keyword zeroes this factor only.
func computeSkillsScore(p *types.RawPosting, prefs *types.Preferences) (float64, string) {
	text := p.Title + "\n" + p.Description

	for _, kw := range prefs.ExcludeKeywords {
		if matchesTerm(text, kw) {
			return 0.0, fmt.Sprintf("excluded keyword %q", kw)
		}
	}

	weights := make(map[string]float64)
	for _, kw := range prefs.Keywords {
		if k := normalizeTerm(kw); k != "" {
			weights[k] = 1.0
		}
	}
	for _, kw := range prefs.BoostKeywords {
		if k := normalizeTerm(kw); k != "" {
			weights[k] = BoostMultiplier
		}
	}
	if len(weights) == 0 {
		return NeutralScore, "no keywords configured"
	}

	totalWeight := 0.0
	matchedWeight := 0.0
	var matched []string
	for kw, weight := range weights {
		totalWeight += weight
		if matchesTerm(text, kw) {
			matchedWeight += weight
			matched = append(matched, kw)
		}
	}

	if len(matched) == 0 {
		return 0.0, "no keyword matches"
	}
	sortStrings(matched)
	return matchedWeight / totalWeight, "matched " + strings.Join(matched, ", ")
}

// computeSalaryScore compares the stated salary (minimum, else maximum) to
// the floor. At or above the floor scores 1.0; below it scales linearly.
func computeSalaryScore(p *types.RawPosting, floor int) (float64, string) {
	stated, ok := p.StatedSalary()
	if !ok {
		return NeutralScore, "salary not stated"
	}
	if floor <= 0 {
		return 1.0, "no salary floor"
	}
	if stated >= floor {
		return 1.0, fmt.Sprintf("%d meets floor %d", stated, floor)
	}
	return float64(stated) / float64(floor), fmt.Sprintf("%d below floor %d", stated, floor)
}

// computeLocationScore checks the posting against blocked and allowed
// locations and the remote preference.
func computeLocationScore(p *types.RawPosting, prefs *types.Preferences) (float64, string) {
	loc := strings.ToLower(p.Location)

	for _, blocked := range prefs.BlockedLocations {
		b := strings.ToLower(strings.TrimSpace(blocked))
		if b != "" && loc != "" && strings.Contains(loc, b) {
			return 0.0, fmt.Sprintf("blocked location %q", blocked)
		}
	}

	remote := isRemote(p)
	mode := prefs.RemoteMode()

	if mode == types.RemoteOnly {
		switch {
		case remote:
			return 1.0, "remote"
		case p.Remote == types.RemoteNo || p.Location != "":
			return 0.0, "not remote"
		default:
			return NeutralScore, "work mode unknown"
		}
	}

	if remote {
		return 1.0, "remote"
	}
	if p.Location == "" {
		return NeutralScore, "location not stated"
	}

	allowed := len(prefs.Locations) == 0
	for _, want := range prefs.Locations {
		w := strings.ToLower(strings.TrimSpace(want))
		if w != "" && strings.Contains(loc, w) {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0.0, fmt.Sprintf("%s not in preferred locations", p.Location)
	}
	if mode == types.RemotePrefer {
		return 0.75, "onsite, remote preferred"
	}
	return 1.0, "preferred location"
}

// computeCompanyScore returns 0 for blocklisted companies. The pipeline drops
// those before scoring; the factor still applies when Score is called directly.
func computeCompanyScore(p *types.RawPosting, prefs *types.Preferences) (float64, string) {
	if companyBlocked(p.Company, prefs.BlockedCompanies) {
		return 0.0, "company blocklisted"
	}
	return 1.0, ""
}

// computeRecencyScore decays linearly from 1.0 for a posting published now to
// 0.0 at the horizon.
func computeRecencyScore(p *types.RawPosting, horizonDays int, now time.Time) (float64, string) {
	if p.PostedAt == nil || p.PostedAt.IsZero() {
		return NeutralScore, "posting date unknown"
	}
	age := now.Sub(*p.PostedAt)
	if age <= 0 {
		return 1.0, "posted today"
	}
	horizon := time.Duration(horizonDays) * 24 * time.Hour
	if age >= horizon {
		return 0.0, fmt.Sprintf("older than %d days", horizonDays)
	}
	days := int(age.Hours() / 24)
	return 1.0 - float64(age)/float64(horizon), fmt.Sprintf("posted %d days ago", days)
}

func isRemote(p *types.RawPosting) bool {
	if p.Remote == types.RemoteYes {
		return true
	}
	if p.Remote == types.RemoteUnknown {
		loc := strings.ToLower(p.Location)
		return strings.Contains(loc, "remote") || strings.Contains(loc, "anywhere")
	}
	return false
}
