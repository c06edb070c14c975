package scoring

import (
	"sort"
	"strings"
	"unicode"
)

// termAliases maps a canonical keyword to the spellings postings use for it.
var termAliases = map[string][]string{
	"go":               {"golang"},
	"javascript":       {"js"},
	"typescript":       {"ts"},
	"kubernetes":       {"k8s"},
	"react":            {"react.js", "reactjs"},
	"vue":              {"vue.js", "vuejs"},
	"node.js":          {"nodejs", "node"},
	"postgresql":       {"postgres"},
	"machine learning": {"ml"},
}

// companySuffixes are dropped before comparing company names.
var companySuffixes = []string{"inc", "llc", "ltd", "gmbh", "corp", "corporation", "co", "plc", "sa", "ag", "bv"}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// matchesTerm reports whether term, or one of its aliases, appears in text as
// a whole word. "go" matches "Go developer" but not "Google".
func matchesTerm(text, term string) bool {
	term = normalizeTerm(term)
	if term == "" {
		return false
	}
	lower := strings.ToLower(text)
	if containsWord(lower, term) {
		return true
	}
	for _, alias := range termAliases[term] {
		if containsWord(lower, alias) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for start := 0; start <= len(text)-len(word); {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if boundaryBefore(text, i) && boundaryAfter(text, end) {
			return true
		}
		start = i + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r := rune(text[i-1])
	return !isWordRune(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r := rune(text[end])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || r >= 0x80
}

// normalizeCompany lowercases, strips punctuation and legal suffixes so that
// "Acme, Inc." and "acme" compare equal.
func normalizeCompany(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, name)
	fields := strings.Fields(cleaned)
	for len(fields) > 1 && isCompanySuffix(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func isCompanySuffix(s string) bool {
	for _, suffix := range companySuffixes {
		if s == suffix {
			return true
		}
	}
	return false
}

func companyBlocked(company string, blocklist []string) bool {
	c := normalizeCompany(company)
	if c == "" {
		return false
	}
	for _, blocked := range blocklist {
		if normalizeCompany(blocked) == c {
			return true
		}
	}
	return false
}

func sortStrings(s []string) {
	sort.Strings(s)
}
