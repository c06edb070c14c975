package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/pipeline"
	"github.com/jonathan/job-radar/internal/throttle"
	"github.com/jonathan/job-radar/internal/types"
)

func TestPrintCycleResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := types.NewCycleResult("cycle-42", start)
	r.FinishedAt = start.Add(90 * time.Second)
	r.PostingsFound = 12
	r.PostingsNew = 3
	r.Source("greenhouse").Found = 12
	r.Source("greenhouse").New = 3
	r.AddFailure("lever", "permanent", errors.New("board not found"))
	r.Skipped = []string{"remoteok"}
	r.Source("remoteok").Skipped = true

	p.PrintCycleResult(r)
	out := buf.String()

	assert.Contains(t, out, "DISCOVERY CYCLE")
	assert.Contains(t, out, "3 new jobs found, 1 source failed, 1 source skipped")
	assert.Contains(t, out, "cycle-42")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "greenhouse")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "lever (permanent): board not found")
}

func TestPrintCycleResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCycleResult(nil)
	assert.Empty(t, buf.String())
}

func TestPrintPostings(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintPostings("RECENT POSTINGS", []db.Posting{
		{
			Fingerprint: "abc123",
			RawPosting:  types.RawPosting{Title: "Staff Engineer", Company: "Acme", Location: "Berlin", Source: "greenhouse"},
			Score:       0.87,
			TimesSeen:   2,
			Bookmarked:  true,
		},
		{
			Fingerprint: "def456",
			RawPosting:  types.RawPosting{Title: "SRE", Company: "Globex", Source: "hn"},
			Score:       0.5,
			TimesSeen:   1,
		},
	})
	out := buf.String()

	assert.Contains(t, out, "RECENT POSTINGS (2)")
	assert.Contains(t, out, " 87%")
	assert.Contains(t, out, "Staff Engineer @ Acme")
	assert.Contains(t, out, "★")
	assert.Contains(t, out, "seen 2x")
	assert.Contains(t, out, "location n/a")
	assert.Contains(t, out, "def456")
}

func TestPrintPostings_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintPostings("SEARCH", nil)
	assert.Contains(t, buf.String(), "No postings found")
}

func TestPrintPosting(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p.PrintPosting(&db.Posting{
		Fingerprint: "abc",
		RawPosting: types.RawPosting{
			Title:     "Backend Engineer",
			Company:   "Acme",
			URL:       "https://boards.example.com/acme/1",
			Source:    "greenhouse",
			SalaryMin: types.IntPtr(150000),
			SalaryMax: types.IntPtr(180000),
		},
		Score:          0.82,
		ScoreBreakdown: map[string]float64{"skills": 0.3, "salary": 0.2, "recency": 0.12},
		FirstSeen:      now,
		LastSeen:       now.Add(48 * time.Hour),
		TimesSeen:      3,
		AlertSent:      true,
		Notes:          "referral from Sam",
	})
	out := buf.String()

	assert.Contains(t, out, "Backend Engineer")
	assert.Contains(t, out, "150000 - 180000 USD")
	assert.Contains(t, out, "2026-03-03")
	assert.Contains(t, out, "alerted")
	assert.Contains(t, out, "referral from Sam")
	assert.Less(t, strings.Index(out, "skills"), strings.Index(out, "salary"))
	assert.Less(t, strings.Index(out, "salary"), strings.Index(out, "recency"))
}

func TestFormatBreakdown(t *testing.T) {
	assert.Empty(t, FormatBreakdown(nil))

	out := FormatBreakdown(map[string]float64{"b": 0.1, "a": 0.1, "c": 0.25})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "c")
	assert.Contains(t, lines[0], "0.250")
	assert.Contains(t, lines[0], strings.Repeat("█", 10))
	assert.Contains(t, lines[1], "a")
	assert.Contains(t, lines[2], "b")
}

func TestFormatSalary(t *testing.T) {
	assert.Equal(t, "", formatSalary(nil, nil, ""))
	assert.Equal(t, "90000 EUR", formatSalary(types.IntPtr(90000), nil, "EUR"))
	assert.Equal(t, "up to 120000 USD", formatSalary(nil, types.IntPtr(120000), ""))
	assert.Equal(t, "100000 USD", formatSalary(types.IntPtr(100000), types.IntPtr(100000), "USD"))
}

func TestPrintStatistics(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintStatistics(&db.Statistics{
		Total:    42,
		NewToday: 5,
		AvgScore: 0.61,
		MaxScore: 0.97,
		BySource: map[string]int{"lever": 10, "greenhouse": 30, "hn": 2},
	})
	out := buf.String()

	assert.Contains(t, out, "POSTING STATISTICS")
	assert.Contains(t, out, "Total postings:  42")
	assert.Contains(t, out, "0.97")
	assert.Less(t, strings.Index(out, "greenhouse"), strings.Index(out, "lever"))
	assert.Less(t, strings.Index(out, "lever"), strings.Index(out, "hn "))
}

func TestPrintSchedule(t *testing.T) {
	var buf bytes.Buffer
	next := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	NewPrinter(&buf).PrintSchedule(pipeline.ScheduleStatus{
		State:     "idle",
		Enabled:   true,
		Interval:  "6h0m0s",
		NextRunAt: &next,
		Sources: []pipeline.SourceStatus{
			{Name: "acme", Type: "greenhouse", Enabled: true, Circuit: &throttle.Status{State: "open"}},
			{Name: "hn", Type: "hackernews", Enabled: false},
		},
	})
	out := buf.String()

	assert.Contains(t, out, "every 6h0m0s")
	assert.Contains(t, out, "2026-03-01T15:00:00Z")
	assert.Contains(t, out, "SOURCES")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "disabled")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("T", strings.Repeat("é", 200))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}
