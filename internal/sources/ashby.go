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

const ashbyBaseURL = "https://api.ashbyhq.com"

// Ashby reads a public Ashby job board.
type Ashby struct {
	name    string
	org     string
	display string
	baseURL string
	client  *Client
	logger  logging.Logger
}

type ashbyResponse struct {
	Jobs []struct {
		ID               string `json:"id"`
		Title            string `json:"title"`
		Location         string `json:"location"`
		Department       string `json:"department"`
		Team             string `json:"team"`
		IsRemote         *bool  `json:"isRemote"`
		WorkplaceType    string `json:"workplaceType"`
		DescriptionHTML  string `json:"descriptionHtml"`
		DescriptionPlain string `json:"descriptionPlain"`
		PublishedAt      string `json:"publishedAt"`
		EmploymentType   string `json:"employmentType"`
		JobURL           string `json:"jobUrl"`
		Compensation     *struct {
			Summary    string `json:"compensationTierSummary"`
			Components []struct {
				CompensationType string   `json:"compensationType"`
				Interval         string   `json:"interval"`
				CurrencyCode     string   `json:"currencyCode"`
				MinValue         *float64 `json:"minValue"`
				MaxValue         *float64 `json:"maxValue"`
			} `json:"summaryComponents"`
		} `json:"compensation"`
	} `json:"jobs"`
}

// NewAshby builds the adapter. Params: org (required), display_name,
// base_url.
func NewAshby(cfg config.SourceConfig, env Env) (Source, error) {
	org, err := requireParam(cfg, "org")
	if err != nil {
		return nil, err
	}
	return &Ashby{
		name:    cfg.Name,
		org:     org,
		display: cfg.Param("display_name", org),
		baseURL: strings.TrimRight(cfg.Param("base_url", ashbyBaseURL), "/"),
		client:  env.Client,
		logger:  env.Logger,
	}, nil
}

// Name returns the configured source name.
func (a *Ashby) Name() string { return a.name }

// Scrape fetches the board including compensation data.
func (a *Ashby) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/posting-api/job-board/%s?includeCompensation=true", a.baseURL, url.PathEscape(a.org))
	var resp ashbyResponse
	if err := a.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	postings := make([]types.RawPosting, 0, len(resp.Jobs))
	for _, job := range resp.Jobs {
		p := types.RawPosting{
			Title:       job.Title,
			Company:     a.display,
			Location:    job.Location,
			URL:         job.JobURL,
			Description: truncateRunes(firstNonEmpty(job.DescriptionPlain, descriptionText(job.DescriptionHTML)), maxDescriptionRunes),
			Source:      a.name,
			PostedAt:    parseTime(job.PublishedAt),
			ExternalID:  job.ID,
		}
		switch {
		case job.IsRemote != nil:
			p.Remote = remoteFromBool(*job.IsRemote)
		default:
			p.Remote = DetectRemote(job.WorkplaceType, job.Location)
		}
		for _, tag := range []string{job.Department, job.Team, job.EmploymentType} {
			if tag != "" {
				p.Tags = append(p.Tags, tag)
			}
		}
		if c := job.Compensation; c != nil {
			for _, comp := range c.Components {
				if !strings.EqualFold(comp.CompensationType, "salary") {
					continue
				}
				period := ashbyInterval(comp.Interval)
				if comp.MinValue != nil {
					p.SalaryMin = optionalInt(annualise(*comp.MinValue, period))
				}
				if comp.MaxValue != nil {
					p.SalaryMax = optionalInt(annualise(*comp.MaxValue, period))
				}
				p.Currency = comp.CurrencyCode
				break
			}
			applySalaryText(&p, c.Summary)
		}
		postings = append(postings, p)
	}
	a.logger.WithFields(logging.Fields{"source": a.name, "org": a.org, "count": len(postings)}).Debug("ashby board fetched")
	return postings, nil
}

// ashbyInterval maps values such as "1 HOUR" to annualise periods.
func ashbyInterval(interval string) string {
	fields := strings.Fields(strings.ToLower(interval))
	if len(fields) == 0 {
		return "year"
	}
	return fields[len(fields)-1]
}
