package db

import (
	"errors"
	"strings"
	"testing"
)

func TestLikePattern(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"golang", "%golang%"},
		{"100%", `%100\%%`},
		{"snake_case", `%snake\_case%`},
		{`back\slash`, `%back\\slash%`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := likePattern(tt.input); got != tt.expected {
				t.Errorf("likePattern(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestListOptionsLimit(t *testing.T) {
	tests := []struct {
		limit    int
		expected int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{10, 10},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, MaxListLimit},
	}

	for _, tt := range tests {
		if got := (ListOptions{Limit: tt.limit}).limit(); got != tt.expected {
			t.Errorf("limit(%d) = %d, expected %d", tt.limit, got, tt.expected)
		}
	}
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("unique violation")
	err := &PersistenceError{Fingerprint: "abc123", Op: "upsert", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("PersistenceError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "abc123") || !strings.Contains(err.Error(), "upsert") {
		t.Errorf("unexpected message: %s", err.Error())
	}

	var pe *PersistenceError
	if !errors.As(error(err), &pe) {
		t.Error("errors.As should find *PersistenceError")
	}
}

func TestSchemaEmbedded(t *testing.T) {
	schema := Schema()
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS postings",
		"fingerprint     TEXT NOT NULL UNIQUE",
		"times_seen      INTEGER NOT NULL DEFAULT 1 CHECK (times_seen >= 1)",
		"USING GIN",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

func TestHasPoolParam(t *testing.T) {
	if !hasPoolParam("postgres://u@h/db?pool_max_conns=4", "pool_max_conns") {
		t.Error("expected pool_max_conns to be detected")
	}
	if hasPoolParam("postgres://u@h/db?sslmode=disable", "pool_max_conns") {
		t.Error("did not expect pool_max_conns")
	}
}

func TestDecodeBreakdown(t *testing.T) {
	got, err := decodeBreakdown(nil)
	if err != nil || got != nil {
		t.Errorf("decodeBreakdown(nil) = %v, %v; expected nil, nil", got, err)
	}

	got, err = decodeBreakdown([]byte(`{"skills":0.3,"salary":0.2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["skills"] != 0.3 || got["salary"] != 0.2 {
		t.Errorf("unexpected breakdown: %v", got)
	}

	_, err = decodeBreakdown([]byte(`{"skills":`))
	if err == nil {
		t.Fatal("expected an error for a corrupt breakdown")
	}
	if !strings.Contains(err.Error(), "failed to decode score breakdown") {
		t.Errorf("unexpected error message: %v", err)
	}
}
