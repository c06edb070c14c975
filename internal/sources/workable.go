package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const workableBaseURL = "https://apply.workable.com"

// Workable reads an account's Workable widget feed.
type Workable struct {
	name    string
	account string
	company string
	baseURL string
	client  *Client
	logger  logging.Logger
}

type workableResponse struct {
	Name string `json:"name"`
	Jobs []struct {
		Title          string `json:"title"`
		Shortcode      string `json:"shortcode"`
		EmploymentType string `json:"employment_type"`
		Telecommuting  bool   `json:"telecommuting"`
		Department     string `json:"department"`
		URL            string `json:"url"`
		Shortlink      string `json:"shortlink"`
		PublishedOn    string `json:"published_on"`
		CreatedAt      string `json:"created_at"`
		Country        string `json:"country"`
		City           string `json:"city"`
		State          string `json:"state"`
		Description    string `json:"description"`
	} `json:"jobs"`
}

// NewWorkable builds the adapter. Params: account (required), company,
// base_url.
func NewWorkable(cfg config.SourceConfig, env Env) (Source, error) {
	account, err := requireParam(cfg, "account")
	if err != nil {
		return nil, err
	}
	return &Workable{
		name:    cfg.Name,
		account: account,
		company: cfg.Param("company", ""),
		baseURL: strings.TrimRight(cfg.Param("base_url", workableBaseURL), "/"),
		client:  env.Client,
		logger:  env.Logger,
	}, nil
}

// Name returns the configured source name.
func (w *Workable) Name() string { return w.name }

// Scrape fetches the account's published jobs with details.
func (w *Workable) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/api/v1/widget/accounts/%s?details=true", w.baseURL, url.PathEscape(w.account))
	var resp workableResponse
	if err := w.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	company := firstNonEmpty(w.company, resp.Name, w.account)
	postings := make([]types.RawPosting, 0, len(resp.Jobs))
	for _, job := range resp.Jobs {
		location := joinNonEmpty(", ", job.City, job.State, job.Country)
		remote := DetectRemote(location)
		if job.Telecommuting {
			remote = types.RemoteYes
		}
		p := types.RawPosting{
			Title:       job.Title,
			Company:     company,
			Location:    location,
			URL:         firstNonEmpty(job.URL, job.Shortlink),
			Description: descriptionText(job.Description),
			Source:      w.name,
			Remote:      remote,
			PostedAt:    parseTime(firstNonEmpty(job.PublishedOn, job.CreatedAt)),
			ExternalID:  job.Shortcode,
		}
		for _, tag := range []string{job.Department, job.EmploymentType} {
			if tag != "" {
				p.Tags = append(p.Tags, tag)
			}
		}
		applySalaryText(&p, p.Description)
		postings = append(postings, p)
	}
	w.logger.WithFields(logging.Fields{"source": w.name, "account": w.account, "count": len(postings)}).Debug("workable jobs fetched")
	return postings, nil
}
