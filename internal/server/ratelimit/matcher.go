package ratelimit

import (
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Rule limits one group of endpoints.
type Rule struct {
	Name   string
	Method string        // empty matches any method
	Path   string        // exact path, or a prefix when it ends with "/"
	Limit  int           // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int // defaults to Limit
}

// Unlimited reports whether the rule never rejects.
func (r Rule) Unlimited() bool {
	return r.Limit <= 0 || r.Window <= 0
}

func (r Rule) refill() rate.Limit {
	return rate.Limit(float64(r.Limit) / r.Window.Seconds())
}

func (r Rule) burst() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.Limit
}

func (r Rule) matches(path, method string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	if strings.HasSuffix(r.Path, "/") {
		return strings.HasPrefix(path, r.Path)
	}
	return r.Path == path
}

// Match returns the rule for a request. Exact paths win over prefixes and
// the first matching rule of each kind is used. Health checks and metrics
// scrapes are never limited.
func Match(path, method string, rules []Rule) (Rule, bool) {
	if method == "GET" && (path == "/health" || path == "/metrics") {
		return Rule{Name: "unlimited"}, true
	}
	for _, r := range rules {
		if !strings.HasSuffix(r.Path, "/") && r.matches(path, method) {
			return r, true
		}
	}
	for _, r := range rules {
		if strings.HasSuffix(r.Path, "/") && r.matches(path, method) {
			return r, true
		}
	}
	return Rule{}, false
}
