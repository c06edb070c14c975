// Package dedup derives the stable identity of a posting across scraping cycles.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jonathan/job-radar/internal/types"
)

// Version identifies the fingerprint algorithm. Changing the inputs or the
// encoding would orphan every stored posting, so bump this only with a
// migration.
const Version = 1

// separator cannot appear in scraped text and keeps ("ab","c") distinct from ("a","bc").
const separator = "\x1f"

// Fingerprint hashes the identity fields of a posting. Company, title and
// location are compared case-insensitively; the URL is kept as-is because
// path case can be significant. Description, score and flags never
// participate.
func Fingerprint(company, title, location, url string) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(strings.TrimSpace(company)))
	sb.WriteString(separator)
	sb.WriteString(strings.ToLower(strings.TrimSpace(title)))
	sb.WriteString(separator)
	sb.WriteString(strings.ToLower(strings.TrimSpace(location)))
	sb.WriteString(separator)
	sb.WriteString(strings.TrimSpace(url))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Of fingerprints a raw posting.
func Of(p *types.RawPosting) string {
	return Fingerprint(p.Company, p.Title, p.Location, p.URL)
}

// Batch suppresses repeats inside a single adapter's output, so one listing
// page that shows the same job twice does not count as a re-discovery.
type Batch struct {
	seen map[string]struct{}
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{seen: make(map[string]struct{})}
}

// Add records fp and reports whether it was new to this batch.
func (b *Batch) Add(fp string) bool {
	if _, ok := b.seen[fp]; ok {
		return false
	}
	b.seen[fp] = struct{}{}
	return true
}

// Len returns the number of distinct fingerprints recorded.
func (b *Batch) Len() int {
	return len(b.seen)
}
