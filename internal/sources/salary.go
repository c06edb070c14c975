package sources

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/job-radar/internal/types"
)

// Salary is a parsed, annualised salary.
type Salary struct {
	Min      *int
	Max      *int
	Currency string
}

const (
	hoursPerYear  = 2080
	monthsPerYear = 12
	minAnnual     = 1000
	maxAnnual     = 10_000_000
)

var (
	amountRe   = regexp.MustCompile(`(?i)([$€£])?\s*(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k\b)?`)
	codeRe     = regexp.MustCompile(`\b(USD|EUR|GBP|CAD|AUD|CHF|INR|SGD)\b`)
	hourlyRe   = regexp.MustCompile(`(?i)(/\s*h(ou)?r\b|per\s+hour|hourly|an\s+hour)`)
	monthRe    = regexp.MustCompile(`(?i)(/\s*mo(nth)?\b|per\s+month|monthly|a\s+month)`)
	upToRe     = regexp.MustCompile(`(?i)\b(up\s+to|max(imum)?)\b`)
	fromRe     = regexp.MustCompile(`(?i)\b(from|starting\s+at|min(imum)?)\b`)
	rangeSepRe = regexp.MustCompile(`^\s*(-|–|—|to)\s*[$€£]?\s*$`)
	payLineRe  = regexp.MustCompile(`(?i)(salary|compensation|pay range|base pay|[$€£]\s*\d)`)
	currencyRe = regexp.MustCompile(`[$€£]|\b(USD|EUR|GBP|CAD|AUD|CHF|INR|SGD)\b`)
)

var symbolCurrency = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// ParseSalary reads salary text such as "$120k – $150k", "120,000-150,000 USD"
// or "$60/hr" and returns annual amounts. ok is false when no plausible amount
// is found.
func ParseSalary(text string) (Salary, bool) {
	var s Salary
	if strings.TrimSpace(text) == "" {
		return s, false
	}

	multiplier := 1
	switch {
	case hourlyRe.MatchString(text):
		multiplier = hoursPerYear
	case monthRe.MatchString(text):
		multiplier = monthsPerYear
	}

	type amount struct {
		value      int
		hasK       bool
		start, end int
	}
	var amounts []amount
	for _, idx := range amountRe.FindAllStringSubmatchIndex(text, -1) {
		num := strings.ReplaceAll(text[idx[4]:idx[5]], ",", "")
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		hasK := idx[6] >= 0
		if hasK {
			f *= 1000
		}
		if idx[2] >= 0 && s.Currency == "" {
			s.Currency = symbolCurrency[text[idx[2]:idx[3]]]
		}
		amounts = append(amounts, amount{value: int(f), hasK: hasK, start: idx[0], end: idx[1]})
	}

	// "$120-150k": a bare number directly ranged with a k amount inherits it.
	for i := 0; i+1 < len(amounts); i++ {
		a, b := &amounts[i], amounts[i+1]
		if b.hasK && !a.hasK && a.value < minAnnual && rangeSepRe.MatchString(text[a.end:b.start]) {
			a.value *= 1000
		}
	}

	var values []int
	for _, a := range amounts {
		v := a.value * multiplier
		if v < minAnnual || v > maxAnnual {
			continue
		}
		values = append(values, v)
		if len(values) == 2 {
			break
		}
	}
	if len(values) == 0 {
		return Salary{}, false
	}

	if code := codeRe.FindString(strings.ToUpper(text)); code != "" {
		s.Currency = code
	}

	if len(values) == 1 {
		v := values[0]
		switch {
		case upToRe.MatchString(text):
			s.Max = &v
		case fromRe.MatchString(text):
			s.Min = &v
		default:
			lo, hi := v, v
			s.Min, s.Max = &lo, &hi
		}
		return s, true
	}

	lo, hi := min(values[0], values[1]), max(values[0], values[1])
	s.Min, s.Max = &lo, &hi
	return s, true
}

// applySalaryText fills an unset salary from the first line of text that
// looks like pay information and names a currency.
func applySalaryText(p *types.RawPosting, text string) {
	if p.SalaryMin != nil || p.SalaryMax != nil {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if !payLineRe.MatchString(line) || !currencyRe.MatchString(line) {
			continue
		}
		if s, ok := ParseSalary(line); ok {
			p.SalaryMin, p.SalaryMax = s.Min, s.Max
			if p.Currency == "" {
				p.Currency = s.Currency
			}
			return
		}
	}
}

// annualise converts a salary quoted per period to a yearly figure.
func annualise(amount float64, period string) int {
	switch strings.ToLower(period) {
	case "hour", "hourly", "per_hour":
		return int(amount * hoursPerYear)
	case "month", "monthly", "per_month":
		return int(amount * monthsPerYear)
	case "week", "weekly":
		return int(amount * 52)
	case "day", "daily":
		return int(amount * 260)
	default:
		return int(amount)
	}
}

func optionalInt(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
