package scoring

import (
	"fmt"
	"strings"
)

// Explain summarizes a result in one line for CLI output and alerts.
func Explain(r Result) string {
	var parts []string

	switch {
	case r.Score >= 0.8:
		parts = append(parts, fmt.Sprintf("Strong match (%.2f)", r.Score))
	case r.Score >= 0.5:
		parts = append(parts, fmt.Sprintf("Moderate match (%.2f)", r.Score))
	default:
		parts = append(parts, fmt.Sprintf("Weak match (%.2f)", r.Score))
	}

	for _, f := range Factors() {
		c, ok := r.Breakdown[f]
		if !ok || c.Reason == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f, c.Reason))
	}

	return strings.Join(parts, ". ")
}
