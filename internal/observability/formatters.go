// Package observability renders cycle results, postings and statistics for
// the command line.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/pipeline"
	"github.com/jonathan/job-radar/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow bounds short lists such as failures and top sources
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, inner), inner))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

func pad(s string, n int) string {
	if c := utf8.RuneCountInString(s); c < n {
		return s + strings.Repeat(" ", n-c)
	}
	return s
}

// PrintCycleResult outputs the summary of a discovery cycle with per-source
// counts and failures.
func (p *Printer) PrintCycleResult(r *types.CycleResult) {
	if r == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", r.Summary())
	fmt.Fprintf(&sb, "Cycle:    %s\n", r.CycleID)
	fmt.Fprintf(&sb, "Duration: %s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "Found %d, new %d, updated %d, filtered %d, invalid %d\n",
		r.PostingsFound, r.PostingsNew, r.PostingsUpdated, r.Filtered, r.Invalid)
	if r.AlertsSent > 0 || r.PersistFailures > 0 {
		fmt.Fprintf(&sb, "Alerts sent %d, persist failures %d\n", r.AlertsSent, r.PersistFailures)
	}

	if len(r.PerSource) > 0 {
		sb.WriteString("\nSources:\n")
		names := make([]string, 0, len(r.PerSource))
		for name := range r.PerSource {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := r.PerSource[name]
			status := "ok"
			switch {
			case s.Skipped:
				status = "skipped"
			case s.Failed:
				status = "failed"
			}
			fmt.Fprintf(&sb, "  %-20s %-7s %3d found %3d new\n", truncate(name, 20), status, s.Found, s.New)
		}
	}

	if len(r.Errors) > 0 {
		sb.WriteString("\nFailures:\n")
		count := min(len(r.Errors), maxItemsToShow)
		for _, f := range r.Errors[:count] {
			fmt.Fprintf(&sb, "  ⚠ %s (%s): %s\n", f.Source, f.Kind, f.Error)
		}
		if len(r.Errors) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(r.Errors)-maxItemsToShow)
		}
	}

	p.printBox("DISCOVERY CYCLE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPostings outputs one line per posting, best score first as given.
func (p *Printer) PrintPostings(title string, postings []db.Posting) {
	if len(postings) == 0 {
		p.printBox(title, "No postings found")
		return
	}

	var sb strings.Builder
	for i, post := range postings {
		marks := ""
		if post.Bookmarked {
			marks += "★"
		}
		if post.AlertSent {
			marks += "!"
		}
		fmt.Fprintf(&sb, "%3.0f%% %-2s %s @ %s\n", post.Score*100, marks, post.Title, post.Company)
		loc := post.Location
		if loc == "" {
			loc = "location n/a"
		}
		fmt.Fprintf(&sb, "         %s · %s · seen %dx\n", loc, post.Source, post.TimesSeen)
		fmt.Fprintf(&sb, "         %s\n", post.Fingerprint)
		if i < len(postings)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox(fmt.Sprintf("%s (%d)", title, len(postings)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPosting outputs a single posting with its score breakdown and flags.
func (p *Printer) PrintPosting(post *db.Posting) {
	if post == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Company:  %s\n", post.Company)
	if post.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", post.Location)
	}
	if salary := formatSalary(post.SalaryMin, post.SalaryMax, post.Currency); salary != "" {
		fmt.Fprintf(&sb, "Salary:   %s\n", salary)
	}
	fmt.Fprintf(&sb, "Source:   %s\n", post.Source)
	fmt.Fprintf(&sb, "URL:      %s\n", post.URL)
	fmt.Fprintf(&sb, "Seen:     %dx, first %s, last %s\n", post.TimesSeen,
		post.FirstSeen.Format(time.DateOnly), post.LastSeen.Format(time.DateOnly))
	fmt.Fprintf(&sb, "\nScore:    %.2f\n", post.Score)
	sb.WriteString(FormatBreakdown(post.ScoreBreakdown))

	var flags []string
	if post.Bookmarked {
		flags = append(flags, "bookmarked")
	}
	if post.Hidden {
		flags = append(flags, "hidden")
	}
	if post.AlertSent {
		flags = append(flags, "alerted")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&sb, "\nFlags:    %s\n", strings.Join(flags, ", "))
	}
	if post.Notes != "" {
		fmt.Fprintf(&sb, "Notes:    %s\n", post.Notes)
	}

	p.printBox(post.Title, strings.TrimSuffix(sb.String(), "\n"))
}

// FormatBreakdown renders per-factor contributions as bars, largest first.
func FormatBreakdown(breakdown map[string]float64) string {
	if len(breakdown) == 0 {
		return ""
	}
	factors := make([]string, 0, len(breakdown))
	for f := range breakdown {
		factors = append(factors, f)
	}
	sort.Slice(factors, func(i, j int) bool {
		if breakdown[factors[i]] != breakdown[factors[j]] {
			return breakdown[factors[i]] > breakdown[factors[j]]
		}
		return factors[i] < factors[j]
	})

	var sb strings.Builder
	for _, f := range factors {
		v := breakdown[f]
		bar := strings.Repeat("█", int(v*40+0.5))
		fmt.Fprintf(&sb, "  %-20s %.3f %s\n", f, v, bar)
	}
	return sb.String()
}

func formatSalary(lo, hi *int, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	switch {
	case lo != nil && hi != nil && *lo != *hi:
		return fmt.Sprintf("%d - %d %s", *lo, *hi, currency)
	case lo != nil:
		return fmt.Sprintf("%d %s", *lo, currency)
	case hi != nil:
		return fmt.Sprintf("up to %d %s", *hi, currency)
	default:
		return ""
	}
}

// PrintStatistics outputs store-wide counts and the busiest sources.
func (p *Printer) PrintStatistics(st *db.Statistics) {
	if st == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total postings:  %d\n", st.Total)
	fmt.Fprintf(&sb, "New today:       %d\n", st.NewToday)
	fmt.Fprintf(&sb, "Average score:   %.2f\n", st.AvgScore)
	fmt.Fprintf(&sb, "Best score:      %.2f\n", st.MaxScore)
	fmt.Fprintf(&sb, "Alerts sent:     %d\n", st.AlertsSent)
	fmt.Fprintf(&sb, "Bookmarked:      %d\n", st.Bookmarked)
	fmt.Fprintf(&sb, "Hidden:          %d\n", st.Hidden)

	if len(st.BySource) > 0 {
		sb.WriteString("\nBy source:\n")
		names := make([]string, 0, len(st.BySource))
		for name := range st.BySource {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if st.BySource[names[i]] != st.BySource[names[j]] {
				return st.BySource[names[i]] > st.BySource[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Fprintf(&sb, "  %-24s %d\n", truncate(name, 24), st.BySource[name])
		}
	}

	p.printBox("POSTING STATISTICS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSchedule outputs the orchestrator status and its sources.
func (p *Printer) PrintSchedule(st pipeline.ScheduleStatus) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "State:    %s\n", st.State)
	switch {
	case !st.Enabled:
		sb.WriteString("Schedule: disabled\n")
	case st.Cron != "":
		fmt.Fprintf(&sb, "Schedule: cron %q\n", st.Cron)
	default:
		fmt.Fprintf(&sb, "Schedule: every %s\n", st.Interval)
	}
	if st.LastRunAt != nil {
		fmt.Fprintf(&sb, "Last run: %s\n", st.LastRunAt.Format(time.RFC3339))
	}
	if st.NextRunAt != nil {
		fmt.Fprintf(&sb, "Next run: %s\n", st.NextRunAt.Format(time.RFC3339))
	}
	if st.LastResult != nil {
		fmt.Fprintf(&sb, "Last result: %s\n", st.LastResult.Summary())
	}
	p.printBox("SCHEDULE", strings.TrimSuffix(sb.String(), "\n"))
	p.PrintSources(st.Sources)
}

// PrintSources outputs configured sources with their circuit state.
func (p *Printer) PrintSources(sources []pipeline.SourceStatus) {
	if len(sources) == 0 {
		p.printBox("SOURCES", "No sources configured")
		return
	}
	var sb strings.Builder
	for _, s := range sources {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		circuit := "-"
		if s.Circuit != nil {
			circuit = s.Circuit.State
		}
		fmt.Fprintf(&sb, "%-20s %-14s %-8s %s\n", truncate(s.Name, 20), truncate(s.Type, 14), state, circuit)
	}
	p.printBox("SOURCES", strings.TrimSuffix(sb.String(), "\n"))
}
