package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const remoteOKBaseURL = "https://remoteok.com"

// RemoteOK reads the remoteok.com JSON API. Every posting is remote.
type RemoteOK struct {
	name    string
	tags    []string
	baseURL string
	client  *Client
	logger  logging.Logger
}

type remoteOKJob struct {
	ID          json.RawMessage `json:"id"`
	Legal       string          `json:"legal"`
	Epoch       int64           `json:"epoch"`
	Date        string          `json:"date"`
	Company     string          `json:"company"`
	Position    string          `json:"position"`
	Tags        []string        `json:"tags"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	SalaryMin   int             `json:"salary_min"`
	SalaryMax   int             `json:"salary_max"`
	URL         string          `json:"url"`
}

// NewRemoteOK builds the adapter. Queries are sent as tag filters, one
// request each. Params: base_url.
func NewRemoteOK(cfg config.SourceConfig, env Env) (Source, error) {
	return &RemoteOK{
		name:    cfg.Name,
		tags:    cfg.Queries,
		baseURL: strings.TrimRight(cfg.Param("base_url", remoteOKBaseURL), "/"),
		client:  env.Client,
		logger:  env.Logger,
	}, nil
}

// Name returns the configured source name.
func (r *RemoteOK) Name() string { return r.name }

// Scrape fetches the feed once per tag, or once unfiltered.
func (r *RemoteOK) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	endpoints := []string{r.baseURL + "/api"}
	if len(r.tags) > 0 {
		endpoints = endpoints[:0]
		for _, tag := range r.tags {
			endpoints = append(endpoints, r.baseURL+"/api?tags="+url.QueryEscape(tag))
		}
	}

	seen := make(map[string]bool)
	var postings []types.RawPosting
	for _, endpoint := range endpoints {
		var items []json.RawMessage
		if err := r.client.GetJSON(ctx, endpoint, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			var job remoteOKJob
			if err := json.Unmarshal(item, &job); err != nil {
				return nil, NewPermanent(r.name, "unexpected remoteok item", err)
			}
			// The first element is the legal notice.
			if job.Legal != "" || job.Position == "" {
				continue
			}
			id := strings.Trim(string(job.ID), `"`)
			if seen[id] {
				continue
			}
			seen[id] = true

			p := types.RawPosting{
				Title:       job.Position,
				Company:     job.Company,
				Location:    firstNonEmpty(job.Location, "Remote"),
				URL:         job.URL,
				Description: descriptionText(job.Description),
				Source:      r.name,
				Remote:      types.RemoteYes,
				SalaryMin:   optionalInt(job.SalaryMin),
				SalaryMax:   optionalInt(job.SalaryMax),
				PostedAt:    firstTime(parseTime(job.Date), unixTime(job.Epoch)),
				ExternalID:  id,
				Tags:        job.Tags,
			}
			if p.SalaryMin != nil || p.SalaryMax != nil {
				p.Currency = "USD"
			}
			postings = append(postings, p)
		}
	}
	r.logger.WithFields(logging.Fields{"source": r.name, "count": len(postings)}).Debug("remoteok feed fetched")
	return postings, nil
}
