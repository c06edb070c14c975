package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const (
	hackerNewsBaseURL = "https://hn.algolia.com/api/v1"
	hackerNewsItemURL = "https://news.ycombinator.com/item?id="
)

var (
	roleRe       = regexp.MustCompile(`(?i)\b(engineer|developer|programmer|manager|designer|scientist|lead|architect|sre|devops|analyst|researcher|founding|head of|director|intern)\b`)
	workModeOnly = regexp.MustCompile(`(?i)^\s*(full[\s-]?remote|remote|onsite|on-site|hybrid|remote ok|remote \(.*\)|onsite \(.*\))\s*$`)
)

// HackerNews reads the monthly "Ask HN: Who is hiring?" thread through the
// Algolia HN API. Each top-level comment is one posting whose first line
// follows "Company | Title | Location | REMOTE | salary".
type HackerNews struct {
	name     string
	threadID string
	queries  []string
	baseURL  string
	client   *Client
	logger   logging.Logger
}

type hnSearchResponse struct {
	Hits []struct {
		ObjectID string `json:"objectID"`
		Title    string `json:"title"`
	} `json:"hits"`
}

type hnItem struct {
	ID        int64    `json:"id"`
	Author    string   `json:"author"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"created_at"`
	Children  []hnItem `json:"children"`
}

// NewHackerNews builds the adapter. Queries keep only comments mentioning
// one of them. Params: thread_id (skip thread discovery), base_url.
func NewHackerNews(cfg config.SourceConfig, env Env) (Source, error) {
	return &HackerNews{
		name:     cfg.Name,
		threadID: cfg.Param("thread_id", ""),
		queries:  cfg.Queries,
		baseURL:  strings.TrimRight(cfg.Param("base_url", hackerNewsBaseURL), "/"),
		client:   env.Client,
		logger:   env.Logger,
	}, nil
}

// Name returns the configured source name.
func (h *HackerNews) Name() string { return h.name }

// Scrape locates the latest hiring thread and parses its comments.
func (h *HackerNews) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	threadID := h.threadID
	if threadID == "" {
		id, err := h.latestThread(ctx)
		if err != nil {
			return nil, err
		}
		threadID = id
	}

	var thread hnItem
	if err := h.client.GetJSON(ctx, h.baseURL+"/items/"+url.PathEscape(threadID), &thread); err != nil {
		return nil, err
	}

	postings := make([]types.RawPosting, 0, len(thread.Children))
	for _, comment := range thread.Children {
		p, ok := parseHiringComment(comment)
		if !ok || !h.matches(p) {
			continue
		}
		p.Source = h.name
		postings = append(postings, p)
	}
	h.logger.WithFields(logging.Fields{"source": h.name, "thread": threadID, "comments": len(thread.Children), "count": len(postings)}).Debug("hiring thread parsed")
	return postings, nil
}

func (h *HackerNews) latestThread(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("tags", "story,author_whoishiring")
	params.Set("query", "who is hiring")
	var resp hnSearchResponse
	if err := h.client.GetJSON(ctx, h.baseURL+"/search_by_date?"+params.Encode(), &resp); err != nil {
		return "", err
	}
	for _, hit := range resp.Hits {
		if strings.Contains(strings.ToLower(hit.Title), "who is hiring") {
			return hit.ObjectID, nil
		}
	}
	return "", NewPermanent(h.name, "no who is hiring thread found", nil)
}

func (h *HackerNews) matches(p types.RawPosting) bool {
	if len(h.queries) == 0 {
		return true
	}
	haystack := strings.ToLower(p.Title + "\n" + p.Description)
	for _, q := range h.queries {
		if strings.Contains(haystack, strings.ToLower(q)) {
			return true
		}
	}
	return false
}

// parseHiringComment reads the pipe-separated header line of a comment.
// Comments without one are replies or chatter and are skipped.
func parseHiringComment(c hnItem) (types.RawPosting, bool) {
	if c.Text == "" {
		return types.RawPosting{}, false
	}
	text := descriptionText(c.Text)
	header, _, _ := strings.Cut(text, "\n")
	if !strings.Contains(header, "|") {
		return types.RawPosting{}, false
	}

	parts := strings.Split(header, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	p := types.RawPosting{
		Company:     parts[0],
		URL:         hackerNewsItemURL + strconv.FormatInt(c.ID, 10),
		Description: text,
		PostedAt:    parseTime(c.CreatedAt),
		ExternalID:  fmt.Sprintf("hn-%d", c.ID),
	}

	var rest []string
	for _, part := range parts[1:] {
		switch {
		case part == "":
		case p.SalaryMin == nil && p.SalaryMax == nil && currencyRe.MatchString(part):
			if s, ok := ParseSalary(part); ok {
				p.SalaryMin, p.SalaryMax, p.Currency = s.Min, s.Max, s.Currency
			}
		case workModeOnly.MatchString(part):
			if mode := DetectRemote(part); mode.Known() && p.Remote != types.RemoteNo {
				p.Remote = mode
			}
		case p.Title == "" && roleRe.MatchString(part):
			p.Title = part
		default:
			rest = append(rest, part)
		}
	}
	if p.Title == "" && len(rest) > 0 {
		p.Title, rest = rest[0], rest[1:]
	}
	if len(rest) > 0 {
		p.Location = rest[0]
		if !p.Remote.Known() {
			p.Remote = DetectRemote(rest[0])
		}
	}
	if p.Company == "" || p.Title == "" {
		return types.RawPosting{}, false
	}
	return p, true
}
