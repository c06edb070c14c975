//go:build integration

package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-radar/internal/dedup"
	"github.com/jonathan/job-radar/internal/types"
)

// =============================================================================
// Posting Integration Tests
// =============================================================================

const testSource = "itest"

func openTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	_, _ = db.pool.Exec(ctx, "DELETE FROM postings WHERE source LIKE 'itest%'")
	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), "DELETE FROM postings WHERE source LIKE 'itest%'")
		db.Close()
	})
	return db
}

func testInput(company, title, location string, score float64) UpsertInput {
	raw := types.RawPosting{
		Title:       title,
		Company:     company,
		Location:    location,
		URL:         "https://jobs.example.com/" + uuid.New().String(),
		Description: "Build distributed systems in Go.",
		Source:      testSource,
		Remote:      types.RemoteYes,
		SalaryMin:   types.IntPtr(120000),
		Currency:    "USD",
	}
	return UpsertInput{
		Fingerprint: dedup.Of(&raw),
		Posting:     raw,
		Score:       score,
		Breakdown:   map[string]float64{"skills": score},
	}
}

func TestIntegration_Upsert_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := testInput("Acme", "Go Engineer", "Remote", 0.8)

	first, err := db.UpsertPosting(ctx, in)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if !first.WasNew || first.TimesSeen != 1 {
		t.Fatalf("first upsert = %+v, want new with times_seen 1", first)
	}
	before, err := db.GetPosting(ctx, in.Fingerprint)
	if err != nil {
		t.Fatalf("GetPosting failed: %v", err)
	}

	in.Posting.Description = "Updated description"
	in.Score = 0.6
	second, err := db.UpsertPosting(ctx, in)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.WasNew {
		t.Error("second upsert should not be new")
	}
	if second.TimesSeen != 2 {
		t.Errorf("TimesSeen = %d, want 2", second.TimesSeen)
	}
	if second.ID != first.ID {
		t.Errorf("ID changed: %s -> %s", first.ID, second.ID)
	}

	after, err := db.GetPosting(ctx, in.Fingerprint)
	if err != nil {
		t.Fatalf("GetPosting failed: %v", err)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", before.CreatedAt, after.CreatedAt)
	}
	if !after.FirstSeen.Equal(before.FirstSeen) {
		t.Errorf("first_seen changed: %v -> %v", before.FirstSeen, after.FirstSeen)
	}
	if after.LastSeen.Before(after.FirstSeen) {
		t.Errorf("last_seen %v before first_seen %v", after.LastSeen, after.FirstSeen)
	}
	if after.Description != "Updated description" || after.Score != 0.6 {
		t.Errorf("descriptive fields not refreshed: %q %v", after.Description, after.Score)
	}
	if after.ScoreBreakdown["skills"] != 0.6 {
		t.Errorf("breakdown not refreshed: %v", after.ScoreBreakdown)
	}
}

func TestIntegration_Upsert_SameJobTwoSources(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := testInput("Acme", "Senior Backend Engineer", "Berlin", 0.7)
	if _, err := db.UpsertPosting(ctx, in); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	in.Posting.Source = testSource + "-other"
	res, err := db.UpsertPosting(ctx, in)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if res.WasNew || res.TimesSeen != 2 {
		t.Errorf("result = %+v, want existing row seen twice", res)
	}

	var count int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM postings WHERE fingerprint = $1", in.Fingerprint).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestIntegration_Upsert_ConcurrentDistinct(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := db.UpsertPosting(ctx, testInput("Concurrent Co", fmt.Sprintf("Engineer %d", i), "Remote", 0.5))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upsert failed: %v", err)
		}
	}

	stats, err := db.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.BySource[testSource] != n {
		t.Errorf("rows for source = %d, want %d", stats.BySource[testSource], n)
	}
}

func TestIntegration_Upsert_ConcurrentSameFingerprint(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := testInput("Race Inc", "SRE", "Remote", 0.5)
	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.UpsertPosting(ctx, in); err != nil {
				t.Errorf("upsert failed: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := db.GetPosting(ctx, in.Fingerprint)
	if err != nil {
		t.Fatalf("GetPosting failed: %v", err)
	}
	if p.TimesSeen != n {
		t.Errorf("TimesSeen = %d, want %d", p.TimesSeen, n)
	}
}

func TestIntegration_ListAndSearch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	high := testInput("Initech", "Staff Kubernetes Engineer", "Remote", 0.9)
	low := testInput("Initech", "Office Coordinator", "Austin", 0.2)
	hidden := testInput("Initech", "Kubernetes Intern", "Remote", 0.95)
	for _, in := range []UpsertInput{high, low, hidden} {
		if _, err := db.UpsertPosting(ctx, in); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	yes := true
	if _, err := db.UpdateFlags(ctx, hidden.Fingerprint, types.FlagsUpdateRequest{Hidden: &yes}); err != nil {
		t.Fatalf("UpdateFlags failed: %v", err)
	}

	t.Run("search full text", func(t *testing.T) {
		got, err := db.Search(ctx, "kubernetes", ListOptions{})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 1 || got[0].Fingerprint != high.Fingerprint {
			t.Errorf("Search returned %d postings, want only the visible kubernetes role", len(got))
		}
	})

	t.Run("search includes hidden on request", func(t *testing.T) {
		got, err := db.Search(ctx, "kubernetes", ListOptions{IncludeHidden: true})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Search returned %d postings, want 2", len(got))
		}
	})

	t.Run("search substring", func(t *testing.T) {
		got, err := db.Search(ctx, "Coordin", ListOptions{})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(got) != 1 || got[0].Fingerprint != low.Fingerprint {
			t.Errorf("substring search returned %d postings", len(got))
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if _, err := db.Search(ctx, "  ", ListOptions{}); !errors.Is(err, ErrEmptyQuery) {
			t.Error("expected error for empty query")
		}
	})

	t.Run("by score threshold", func(t *testing.T) {
		got, err := db.ListByScoreThreshold(ctx, 0.5, ListOptions{})
		if err != nil {
			t.Fatalf("ListByScoreThreshold failed: %v", err)
		}
		for _, p := range got {
			if p.Score < 0.5 || p.Hidden {
				t.Errorf("unexpected posting %s score %v hidden %v", p.Title, p.Score, p.Hidden)
			}
		}
	})

	t.Run("recent", func(t *testing.T) {
		got, err := db.ListRecent(ctx, ListOptions{Limit: 2})
		if err != nil {
			t.Fatalf("ListRecent failed: %v", err)
		}
		if len(got) > 2 {
			t.Errorf("ListRecent returned %d postings, limit was 2", len(got))
		}
	})
}

func TestIntegration_FlagsAndAlerts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := testInput("Globex", "Platform Engineer", "Remote", 0.85)
	if _, err := db.UpsertPosting(ctx, in); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	sent, err := db.IsAlertSent(ctx, in.Fingerprint)
	if err != nil || sent {
		t.Fatalf("IsAlertSent = %v, %v; want false, nil", sent, err)
	}
	if err := db.MarkAlertSent(ctx, in.Fingerprint); err != nil {
		t.Fatalf("MarkAlertSent failed: %v", err)
	}
	sent, err = db.IsAlertSent(ctx, in.Fingerprint)
	if err != nil || !sent {
		t.Fatalf("IsAlertSent = %v, %v; want true, nil", sent, err)
	}

	// A re-discovery keeps the flag.
	res, err := db.UpsertPosting(ctx, in)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if !res.AlertSent {
		t.Error("upsert should report alert_sent from the stored row")
	}

	note := "applied 2024-03-01"
	yes := true
	p, err := db.UpdateFlags(ctx, in.Fingerprint, types.FlagsUpdateRequest{Bookmarked: &yes, Notes: &note})
	if err != nil {
		t.Fatalf("UpdateFlags failed: %v", err)
	}
	if !p.Bookmarked || p.Notes != note || p.Hidden {
		t.Errorf("flags = bookmarked %v notes %q hidden %v", p.Bookmarked, p.Notes, p.Hidden)
	}

	if _, err := db.UpdateFlags(ctx, "missing", types.FlagsUpdateRequest{Hidden: &yes}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateFlags on missing = %v, want ErrNotFound", err)
	}
	if err := db.MarkAlertSent(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkAlertSent on missing = %v, want ErrNotFound", err)
	}
	if _, err := db.GetPosting(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPosting on missing = %v, want ErrNotFound", err)
	}
}

func TestIntegration_StatisticsAndRetention(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	old := testInput("Hooli", "Old Role", "Remote", 0.3)
	kept := testInput("Hooli", "Bookmarked Old Role", "Remote", 0.4)
	fresh := testInput("Hooli", "Fresh Role", "Remote", 0.9)
	for _, in := range []UpsertInput{old, kept, fresh} {
		if _, err := db.UpsertPosting(ctx, in); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	yes := true
	if _, err := db.UpdateFlags(ctx, kept.Fingerprint, types.FlagsUpdateRequest{Bookmarked: &yes}); err != nil {
		t.Fatalf("UpdateFlags failed: %v", err)
	}

	stats, err := db.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.BySource[testSource] != 3 {
		t.Errorf("BySource = %d, want 3", stats.BySource[testSource])
	}
	if stats.MaxScore < 0.9 {
		t.Errorf("MaxScore = %v, want >= 0.9", stats.MaxScore)
	}

	past := time.Now().Add(-90 * 24 * time.Hour)
	_, err = db.pool.Exec(ctx,
		"UPDATE postings SET first_seen = $1, last_seen = $1 WHERE fingerprint = ANY($2)",
		past, []string{old.Fingerprint, kept.Fingerprint})
	if err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	n, err := db.DeletePostingsOlderThan(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("DeletePostingsOlderThan failed: %v", err)
	}
	if n < 1 {
		t.Errorf("deleted %d rows, want at least 1", n)
	}
	if _, err := db.GetPosting(ctx, old.Fingerprint); !errors.Is(err, ErrNotFound) {
		t.Errorf("old posting still present: %v", err)
	}
	if _, err := db.GetPosting(ctx, kept.Fingerprint); err != nil {
		t.Errorf("bookmarked posting deleted: %v", err)
	}
}
