package sources

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/fetch"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const (
	googleResultsPerPage = 10
	googleMaxPages       = 10
)

var defaultSearchSites = []string{"boards.greenhouse.io", "jobs.lever.co", "jobs.ashbyhq.com", "apply.workable.com"}

// GoogleSearch discovers ATS postings through a Google Programmable Search
// engine.
type GoogleSearch struct {
	name     string
	apiKey   string
	cx       string
	sites    []string
	queries  []string
	maxPages int
	dateRest string
	svc      *customsearch.Service
	client   *Client
	logger   logging.Logger
}

// NewGoogleSearch builds the adapter. Params: api_key, cx, sites (comma
// separated), max_pages (default 1), date_restrict (e.g. d7), base_url.
// Missing credentials surface as a permanent error when scraping.
func NewGoogleSearch(cfg config.SourceConfig, env Env) (Source, error) {
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("source %s: googlesearch needs at least one query", cfg.Name)
	}
	maxPages := 1
	if v := cfg.Param("max_pages", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > googleMaxPages {
			return nil, fmt.Errorf("source %s: max_pages must be 1-%d", cfg.Name, googleMaxPages)
		}
		maxPages = n
	}
	sites := defaultSearchSites
	if v := cfg.Param("sites", ""); v != "" {
		sites = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sites = append(sites, s)
			}
		}
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.Param("api_key", ""))}
	if base := cfg.Param("base_url", ""); base != "" {
		opts = append(opts, option.WithEndpoint(base))
	}
	svc, err := customsearch.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}

	return &GoogleSearch{
		name:     cfg.Name,
		apiKey:   cfg.Param("api_key", ""),
		cx:       cfg.Param("cx", ""),
		sites:    sites,
		queries:  cfg.Queries,
		maxPages: maxPages,
		dateRest: cfg.Param("date_restrict", ""),
		svc:      svc,
		client:   env.Client,
		logger:   env.Logger,
	}, nil
}

// Name returns the configured source name.
func (g *GoogleSearch) Name() string { return g.name }

// Scrape runs every query restricted to the configured sites and keeps
// hits that are individual ATS postings.
func (g *GoogleSearch) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	if g.apiKey == "" || g.cx == "" {
		return nil, NewPermanent(g.name, "google search api_key and cx are required", nil)
	}

	siteFilter := g.siteFilter()
	seen := make(map[string]bool)
	var postings []types.RawPosting
	for _, q := range g.queries {
		query := strings.TrimSpace(q + " " + siteFilter)
		for page := 0; page < g.maxPages; page++ {
			resp, err := g.search(ctx, query, int64(page*googleResultsPerPage+1))
			if err != nil {
				return nil, err
			}
			for _, item := range resp.Items {
				p, ok := g.posting(item)
				if !ok || seen[p.URL] {
					continue
				}
				seen[p.URL] = true
				postings = append(postings, p)
			}
			if len(resp.Items) < googleResultsPerPage {
				break
			}
		}
	}
	g.logger.WithFields(logging.Fields{"source": g.name, "queries": len(g.queries), "count": len(postings)}).Debug("search discovery complete")
	return postings, nil
}

func (g *GoogleSearch) siteFilter() string {
	if len(g.sites) == 0 {
		return ""
	}
	parts := make([]string, len(g.sites))
	for i, s := range g.sites {
		parts[i] = "site:" + s
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (g *GoogleSearch) search(ctx context.Context, query string, start int64) (*customsearch.Search, error) {
	if err := g.client.Wait(ctx); err != nil {
		return nil, err
	}
	call := g.svc.Cse.List().Cx(g.cx).Q(query).Num(googleResultsPerPage).Start(start)
	if g.dateRest != "" {
		call = call.DateRestrict(g.dateRest)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, g.classify(err)
	}
	return resp, nil
}

func (g *GoogleSearch) classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return NewTransient(g.name, "search request failed", err)
	}
	e := &Error{
		Source:     g.name,
		Kind:       ClassifyHTTPStatus(apiErr.Code),
		StatusCode: apiErr.Code,
		Message:    "search returned HTTP " + strconv.Itoa(apiErr.Code),
		Cause:      err,
	}
	if apiErr.Header != nil {
		e.RetryAfter = fetch.ParseRetryAfter(apiErr.Header.Get("Retry-After"), time.Now())
	}
	return e
}

// posting maps a search hit on an ATS posting page. Board index pages and
// hits outside known ATS hosts are dropped.
func (g *GoogleSearch) posting(item *customsearch.Result) (types.RawPosting, bool) {
	link, ok := fetch.ParseATSLink(item.Link)
	if !ok || link.JobID == "" {
		return types.RawPosting{}, false
	}
	title, company := splitSearchTitle(item.Title, link.Org)
	if title == "" {
		return types.RawPosting{}, false
	}
	return types.RawPosting{
		Title:       title,
		Company:     company,
		URL:         item.Link,
		Description: strings.TrimSpace(item.Snippet),
		Source:      g.name,
		Remote:      DetectRemote(item.Title, item.Snippet),
		ExternalID:  string(link.Platform) + ":" + link.Org + ":" + link.JobID,
		Tags:        []string{string(link.Platform)},
	}, true
}

// splitSearchTitle separates role and company in result titles such as
// "Job Application for Backend Engineer at Acme", "Acme - Backend Engineer"
// or "Backend Engineer @ Acme". The ATS org slug is the fallback company.
func splitSearchTitle(title, org string) (role, company string) {
	title = strings.TrimSpace(strings.TrimPrefix(title, "Job Application for "))
	for _, sep := range []string{" at ", " @ "} {
		if i := strings.LastIndex(title, sep); i > 0 {
			return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+len(sep):])
		}
	}
	if left, right, ok := strings.Cut(title, " - "); ok {
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if slugMatches(left, org) {
			return right, left
		}
		if slugMatches(right, org) {
			return left, right
		}
		return left, org
	}
	return title, org
}

func slugMatches(name, org string) bool {
	squash := func(s string) string {
		return strings.NewReplacer(" ", "", "-", "", "_", "", ".", "").Replace(strings.ToLower(s))
	}
	return org != "" && squash(name) == squash(org)
}
