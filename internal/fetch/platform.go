package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known applicant tracking system.
type Platform string

const (
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformAshby is the Ashby ATS platform
	PlatformAshby Platform = "ashby"
	// PlatformWorkable is the Workable ATS platform
	PlatformWorkable Platform = "workable"
	// PlatformWorkday is the Workday ATS platform
	PlatformWorkday Platform = "workday"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the ATS from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	return platformForHost(strings.ToLower(parsed.Hostname()))
}

func platformForHost(host string) Platform {
	switch {
	case host == "greenhouse.io" || strings.HasSuffix(host, ".greenhouse.io"):
		return PlatformGreenhouse
	case host == "lever.co" || strings.HasSuffix(host, ".lever.co"):
		return PlatformLever
	case host == "ashbyhq.com" || strings.HasSuffix(host, ".ashbyhq.com"):
		return PlatformAshby
	case host == "workable.com" || strings.HasSuffix(host, ".workable.com"):
		return PlatformWorkable
	case strings.HasSuffix(host, ".workday.com") || strings.HasSuffix(host, ".myworkdayjobs.com"):
		return PlatformWorkday
	default:
		return PlatformUnknown
	}
}

// ATSLink is a posting URL on a known ATS broken into its parts.
type ATSLink struct {
	Platform Platform
	Org      string // board token / company slug
	JobID    string // empty for board index pages
}

// ParseATSLink recognizes posting and board URLs on hosted ATS domains.
// It returns false for anything else.
func ParseATSLink(urlStr string) (ATSLink, bool) {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return ATSLink{}, false
	}
	host := strings.ToLower(parsed.Hostname())
	platform := platformForHost(host)
	segs := pathSegments(parsed.Path)

	link := ATSLink{Platform: platform}
	switch platform {
	case PlatformGreenhouse:
		// boards.greenhouse.io/{org}/jobs/{id}, job-boards.greenhouse.io/{org}/jobs/{id}
		if len(segs) == 0 || segs[0] == "embed" {
			if org := parsed.Query().Get("for"); org != "" {
				link.Org = org
				link.JobID = parsed.Query().Get("token")
				return link, true
			}
			return ATSLink{}, false
		}
		link.Org = segs[0]
		if len(segs) >= 3 && segs[1] == "jobs" {
			link.JobID = segs[2]
		}
	case PlatformLever, PlatformAshby:
		// jobs.lever.co/{org}/{id}, jobs.ashbyhq.com/{org}/{id}
		if len(segs) == 0 {
			return ATSLink{}, false
		}
		link.Org = segs[0]
		if len(segs) >= 2 {
			link.JobID = segs[1]
		}
	case PlatformWorkable:
		// apply.workable.com/{org}/j/{id}
		if len(segs) == 0 {
			return ATSLink{}, false
		}
		link.Org = segs[0]
		if len(segs) >= 3 && segs[1] == "j" {
			link.JobID = segs[2]
		}
	case PlatformWorkday:
		// {org}.wd5.myworkdayjobs.com/{site}/job/{location}/{title_id}
		link.Org = strings.SplitN(host, ".", 2)[0]
		for i, s := range segs {
			if s == "job" && i+1 < len(segs) {
				link.JobID = segs[len(segs)-1]
				break
			}
		}
	default:
		return ATSLink{}, false
	}
	return link, link.Org != ""
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PlatformContentSelectors returns content selectors optimized for a specific platform.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformGreenhouse:
		return []string{
			".job__description.body",    // Primary Greenhouse selector
			".job__description",         // Fallback
			".job-description__content", // Alternative
			"#content",                  // Generic fallback
			".job-post-container",       // Container level
		}
	case PlatformLever:
		return []string{
			".posting-page",
			".section-wrapper.page-full-width",
			".posting-description",
			".content",
		}
	case PlatformAshby:
		return []string{
			"[class*='descriptionText']",
			"main",
		}
	case PlatformWorkable:
		return []string{
			"[data-ui='job-description']",
			"section[data-ui='job-details']",
			"main",
		}
	case PlatformWorkday:
		return []string{
			"[data-automation-id='jobPostingDescription']",
			"[data-automation-id='jobDescription']",
			".job-description",
		}
	default:
		return JobPostingSelectors()
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a specific platform.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		// Application forms
		"form",
		"#application-form",
		".application-form",
		".apply-button-container",
		"[data-testid='application-form']",

		// EEO and legal
		".voluntary-disclosure",
		".eeo-statement",
		".eeo-section",
		".legal-disclosure",
		".self-identification",

		// Social and share buttons
		".social-share",
		".share-buttons",

		// Cookie and GDPR
		".cookie-banner",
		".cookie-consent",
		".gdpr-notice",
	}

	switch platform {
	case PlatformGreenhouse:
		return append(common,
			".application--wrapper",
			".voluntary-self-id",
			"#usa_self_id_section",
		)
	case PlatformLever:
		return append(common,
			".apply-section",
			".posting-apply",
		)
	case PlatformWorkday:
		return append(common,
			"[data-automation-id='applyButton']",
		)
	default:
		return common
	}
}
