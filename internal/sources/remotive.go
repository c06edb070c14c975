package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const remotiveBaseURL = "https://remotive.com"

// Remotive reads the remotive.com remote jobs API.
type Remotive struct {
	name     string
	queries  []string
	category string
	limit    string
	baseURL  string
	client   *Client
	logger   logging.Logger
}

type remotiveResponse struct {
	Jobs []struct {
		ID                        int64    `json:"id"`
		URL                       string   `json:"url"`
		Title                     string   `json:"title"`
		CompanyName               string   `json:"company_name"`
		Category                  string   `json:"category"`
		Tags                      []string `json:"tags"`
		JobType                   string   `json:"job_type"`
		PublicationDate           string   `json:"publication_date"`
		CandidateRequiredLocation string   `json:"candidate_required_location"`
		Salary                    string   `json:"salary"`
		Description               string   `json:"description"`
	} `json:"jobs"`
}

// NewRemotive builds the adapter. Each query is sent as search=. Params:
// category, limit, base_url.
func NewRemotive(cfg config.SourceConfig, env Env) (Source, error) {
	return &Remotive{
		name:     cfg.Name,
		queries:  cfg.Queries,
		category: cfg.Param("category", ""),
		limit:    cfg.Param("limit", ""),
		baseURL:  strings.TrimRight(cfg.Param("base_url", remotiveBaseURL), "/"),
		client:   env.Client,
		logger:   env.Logger,
	}, nil
}

// Name returns the configured source name.
func (r *Remotive) Name() string { return r.name }

// Scrape runs one search per query, or one unfiltered listing.
func (r *Remotive) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	queries := r.queries
	if len(queries) == 0 {
		queries = []string{""}
	}

	seen := make(map[int64]bool)
	var postings []types.RawPosting
	for _, q := range queries {
		params := url.Values{}
		if q != "" {
			params.Set("search", q)
		}
		if r.category != "" {
			params.Set("category", r.category)
		}
		if r.limit != "" {
			params.Set("limit", r.limit)
		}
		endpoint := r.baseURL + "/api/remote-jobs"
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}

		var resp remotiveResponse
		if err := r.client.GetJSON(ctx, endpoint, &resp); err != nil {
			return nil, err
		}
		for _, job := range resp.Jobs {
			if seen[job.ID] {
				continue
			}
			seen[job.ID] = true

			p := types.RawPosting{
				Title:       job.Title,
				Company:     job.CompanyName,
				Location:    firstNonEmpty(job.CandidateRequiredLocation, "Remote"),
				URL:         job.URL,
				Description: descriptionText(job.Description),
				Source:      r.name,
				Remote:      types.RemoteYes,
				PostedAt:    parseTime(job.PublicationDate),
				ExternalID:  strconv.FormatInt(job.ID, 10),
				Tags:        job.Tags,
			}
			if s, ok := ParseSalary(job.Salary); ok {
				p.SalaryMin, p.SalaryMax, p.Currency = s.Min, s.Max, s.Currency
			}
			postings = append(postings, p)
		}
	}
	r.logger.WithFields(logging.Fields{"source": r.name, "count": len(postings)}).Debug("remotive jobs fetched")
	return postings, nil
}
