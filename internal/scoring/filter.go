package scoring

import (
	"fmt"
	"strings"

	"github.com/jonathan/job-radar/internal/types"
)

// Filter applies the hard exclusions that run before scoring: blocklisted
// companies, blocked titles, and the allowed-title requirement. It returns
// false with a reason when the posting should be dropped. Excluded keywords
// are not hard exclusions; they only zero the skills factor.
func Filter(p *types.RawPosting, prefs *types.Preferences) (bool, string) {
	if companyBlocked(p.Company, prefs.BlockedCompanies) {
		return false, fmt.Sprintf("company %q is blocklisted", p.Company)
	}

	for _, blocked := range prefs.TitlesBlock {
		if matchesTerm(p.Title, blocked) {
			return false, fmt.Sprintf("title matches blocked term %q", blocked)
		}
	}

	if len(prefs.TitlesAllow) > 0 {
		for _, allowed := range prefs.TitlesAllow {
			if matchesTerm(p.Title, allowed) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("title %q matches none of %s", p.Title, strings.Join(prefs.TitlesAllow, ", "))
	}

	return true, ""
}
