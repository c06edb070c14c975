package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-radar/internal/types"
)

// -----------------------------------------------------------------------------
// Posting Methods
// -----------------------------------------------------------------------------

const postingColumns = `id, fingerprint, title, company, location, url, description, source,
	remote, salary_min, salary_max, currency, posted_at, external_id, tags,
	score, score_breakdown, first_seen, last_seen, times_seen, created_at, updated_at,
	hidden, bookmarked, notes, alert_sent, alert_sent_at`

// UpsertPosting inserts a new posting or refreshes an existing one with the
// same fingerprint. On refresh the descriptive fields and score are replaced,
// last_seen advances and times_seen is incremented under the row lock;
// identity, first_seen, created_at and user flags are kept.
func (db *DB) UpsertPosting(ctx context.Context, in UpsertInput) (*UpsertResult, error) {
	if in.Fingerprint == "" {
		return nil, &PersistenceError{Op: "upsert", Cause: fmt.Errorf("empty fingerprint")}
	}
	breakdown := in.Breakdown
	if breakdown == nil {
		breakdown = map[string]float64{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, &PersistenceError{Fingerprint: in.Fingerprint, Op: "marshal", Cause: err}
	}
	p := in.Posting
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Fingerprint: in.Fingerprint, Op: "begin", Cause: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var res UpsertResult
	err = tx.QueryRow(ctx,
		`INSERT INTO postings (id, fingerprint, title, company, location, url, description,
		                       source, remote, salary_min, salary_max, currency, posted_at,
		                       external_id, tags, score, score_breakdown)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (fingerprint) DO UPDATE SET
		     title = EXCLUDED.title,
		     company = EXCLUDED.company,
		     location = EXCLUDED.location,
		     url = EXCLUDED.url,
		     description = EXCLUDED.description,
		     source = EXCLUDED.source,
		     remote = EXCLUDED.remote,
		     salary_min = EXCLUDED.salary_min,
		     salary_max = EXCLUDED.salary_max,
		     currency = EXCLUDED.currency,
		     posted_at = EXCLUDED.posted_at,
		     external_id = EXCLUDED.external_id,
		     tags = EXCLUDED.tags,
		     score = EXCLUDED.score,
		     score_breakdown = EXCLUDED.score_breakdown,
		     last_seen = GREATEST(postings.last_seen, NOW()),
		     times_seen = postings.times_seen + 1,
		     updated_at = NOW()
		 RETURNING id, (xmax = 0) AS inserted, times_seen, alert_sent, score`,
		uuid.New(), in.Fingerprint, p.Title, p.Company, p.Location, p.URL, p.Description,
		p.Source, string(p.Remote), p.SalaryMin, p.SalaryMax, p.Currency, p.PostedAt,
		p.ExternalID, tags, in.Score, breakdownJSON,
	).Scan(&res.ID, &res.WasNew, &res.TimesSeen, &res.AlertSent, &res.Score)
	if err != nil {
		return nil, &PersistenceError{Fingerprint: in.Fingerprint, Op: "upsert", Cause: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &PersistenceError{Fingerprint: in.Fingerprint, Op: "commit", Cause: err}
	}
	return &res, nil
}

// GetPosting retrieves a posting by fingerprint.
func (db *DB) GetPosting(ctx context.Context, fingerprint string) (*Posting, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE fingerprint = $1`,
		fingerprint,
	)
	p, err := scanPosting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get posting: %w", err)
	}
	return p, nil
}

// ListRecent returns the most recently seen postings.
func (db *DB) ListRecent(ctx context.Context, opts ListOptions) ([]Posting, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM postings
		 WHERE ($1 OR NOT hidden)
		 ORDER BY last_seen DESC, score DESC
		 LIMIT $2`,
		opts.IncludeHidden, opts.limit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent postings: %w", err)
	}
	return collectPostings(rows)
}

// ListByScoreThreshold returns postings scoring at least minScore, best first.
func (db *DB) ListByScoreThreshold(ctx context.Context, minScore float64, opts ListOptions) ([]Posting, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM postings
		 WHERE score >= $1 AND ($2 OR NOT hidden)
		 ORDER BY score DESC, last_seen DESC
		 LIMIT $3`,
		minScore, opts.IncludeHidden, opts.limit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list postings by score: %w", err)
	}
	return collectPostings(rows)
}

// Search matches postings by full-text query or by substring on title,
// company and description.
func (db *DB) Search(ctx context.Context, query string, opts ListOptions) ([]Posting, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM postings
		 WHERE ($2 OR NOT hidden)
		   AND (to_tsvector('english', title || ' ' || company || ' ' || description)
		            @@ plainto_tsquery('english', $1)
		        OR title ILIKE $3 OR company ILIKE $3 OR description ILIKE $3)
		 ORDER BY score DESC, last_seen DESC
		 LIMIT $4`,
		query, opts.IncludeHidden, likePattern(query), opts.limit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search postings: %w", err)
	}
	return collectPostings(rows)
}

// Statistics aggregates counts and scores over all postings.
func (db *DB) Statistics(ctx context.Context) (*Statistics, error) {
	stats := Statistics{BySource: make(map[string]int)}
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE first_seen >= date_trunc('day', NOW())),
		        COALESCE(AVG(score), 0),
		        COALESCE(MAX(score), 0),
		        COUNT(*) FILTER (WHERE alert_sent),
		        COUNT(*) FILTER (WHERE bookmarked),
		        COUNT(*) FILTER (WHERE hidden)
		 FROM postings`,
	).Scan(&stats.Total, &stats.NewToday, &stats.AvgScore, &stats.MaxScore,
		&stats.AlertsSent, &stats.Bookmarked, &stats.Hidden)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}

	rows, err := db.pool.Query(ctx, `SELECT source, COUNT(*) FROM postings GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count postings by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		stats.BySource[source] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count postings by source: %w", err)
	}
	return &stats, nil
}

// UpdateFlags changes the user-owned flags of a posting. Nil fields are left
// unchanged.
func (db *DB) UpdateFlags(ctx context.Context, fingerprint string, update types.FlagsUpdateRequest) (*Posting, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE postings SET
		     hidden = COALESCE($2, hidden),
		     bookmarked = COALESCE($3, bookmarked),
		     notes = COALESCE($4, notes),
		     updated_at = NOW()
		 WHERE fingerprint = $1
		 RETURNING `+postingColumns,
		fingerprint, update.Hidden, update.Bookmarked, update.Notes,
	)
	p, err := scanPosting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update flags: %w", err)
	}
	return p, nil
}

// MarkAlertSent records that the alert for a posting went out.
func (db *DB) MarkAlertSent(ctx context.Context, fingerprint string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE postings SET alert_sent = TRUE, alert_sent_at = COALESCE(alert_sent_at, NOW())
		 WHERE fingerprint = $1`,
		fingerprint,
	)
	if err != nil {
		return fmt.Errorf("failed to mark alert sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsAlertSent reports whether an alert already went out for a posting.
func (db *DB) IsAlertSent(ctx context.Context, fingerprint string) (bool, error) {
	var sent bool
	err := db.pool.QueryRow(ctx,
		`SELECT alert_sent FROM postings WHERE fingerprint = $1`,
		fingerprint,
	).Scan(&sent)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to read alert flag: %w", err)
	}
	return sent, nil
}

// DeletePostingsOlderThan removes postings not seen for longer than age.
// Bookmarked postings are kept.
func (db *DB) DeletePostingsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM postings WHERE last_seen < $1 AND NOT bookmarked`,
		time.Now().Add(-age),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old postings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func scanPosting(row pgx.Row) (*Posting, error) {
	var p Posting
	var remote string
	var breakdownJSON []byte
	err := row.Scan(&p.ID, &p.Fingerprint, &p.Title, &p.Company, &p.Location, &p.URL,
		&p.Description, &p.Source, &remote, &p.SalaryMin, &p.SalaryMax, &p.Currency,
		&p.PostedAt, &p.ExternalID, &p.Tags, &p.Score, &breakdownJSON, &p.FirstSeen,
		&p.LastSeen, &p.TimesSeen, &p.CreatedAt, &p.UpdatedAt, &p.Hidden, &p.Bookmarked,
		&p.Notes, &p.AlertSent, &p.AlertSentAt)
	if err != nil {
		return nil, err
	}
	p.Remote = types.RemoteStatus(remote)
	if p.ScoreBreakdown, err = decodeBreakdown(breakdownJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

// decodeBreakdown reads the score_breakdown column. NULL decodes to nil.
func decodeBreakdown(data []byte) (map[string]float64, error) {
	if data == nil {
		return nil, nil
	}
	var out map[string]float64
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode score breakdown: %w", err)
	}
	return out, nil
}

func collectPostings(rows pgx.Rows) ([]Posting, error) {
	defer rows.Close()
	var out []Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate postings: %w", err)
	}
	return out, nil
}

// likePattern wraps a query for ILIKE, escaping its wildcards.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
