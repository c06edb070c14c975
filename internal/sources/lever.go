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

const leverBaseURL = "https://api.lever.co"

// Lever reads a company's public Lever postings.
type Lever struct {
	name    string
	company string
	display string
	baseURL string
	client  *Client
	logger  logging.Logger
}

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"`
	DescriptionPlain string `json:"descriptionPlain"`
	Description      string `json:"description"`
	AdditionalPlain  string `json:"additionalPlain"`
	WorkplaceType    string `json:"workplaceType"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	Lists []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	} `json:"lists"`
	SalaryRange *struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
		Interval string  `json:"interval"`
	} `json:"salaryRange"`
}

// NewLever builds the adapter. Params: company (required), display_name,
// base_url.
func NewLever(cfg config.SourceConfig, env Env) (Source, error) {
	company, err := requireParam(cfg, "company")
	if err != nil {
		return nil, err
	}
	return &Lever{
		name:    cfg.Name,
		company: company,
		display: cfg.Param("display_name", company),
		baseURL: strings.TrimRight(cfg.Param("base_url", leverBaseURL), "/"),
		client:  env.Client,
		logger:  env.Logger,
	}, nil
}

// Name returns the configured source name.
func (l *Lever) Name() string { return l.name }

// Scrape fetches the company's postings.
func (l *Lever) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/v0/postings/%s?mode=json", l.baseURL, url.PathEscape(l.company))
	var jobs []leverPosting
	if err := l.client.GetJSON(ctx, endpoint, &jobs); err != nil {
		return nil, err
	}

	postings := make([]types.RawPosting, 0, len(jobs))
	for _, job := range jobs {
		p := types.RawPosting{
			Title:       job.Text,
			Company:     l.display,
			Location:    job.Categories.Location,
			URL:         job.HostedURL,
			Description: leverDescription(job),
			Source:      l.name,
			Remote:      leverRemote(job),
			PostedAt:    unixTime(job.CreatedAt),
			ExternalID:  job.ID,
		}
		for _, tag := range []string{job.Categories.Team, job.Categories.Commitment} {
			if tag != "" {
				p.Tags = append(p.Tags, tag)
			}
		}
		if r := job.SalaryRange; r != nil {
			p.SalaryMin = optionalInt(annualise(r.Min, leverInterval(r.Interval)))
			p.SalaryMax = optionalInt(annualise(r.Max, leverInterval(r.Interval)))
			p.Currency = r.Currency
		}
		applySalaryText(&p, p.Description)
		postings = append(postings, p)
	}
	l.logger.WithFields(logging.Fields{"source": l.name, "company": l.company, "count": len(postings)}).Debug("lever postings fetched")
	return postings, nil
}

func leverDescription(job leverPosting) string {
	parts := []string{firstNonEmpty(job.DescriptionPlain, descriptionText(job.Description))}
	for _, list := range job.Lists {
		parts = append(parts, list.Text, descriptionText("<ul>"+list.Content+"</ul>"))
	}
	parts = append(parts, job.AdditionalPlain)
	return truncateRunes(joinNonEmpty("\n", parts...), maxDescriptionRunes)
}

func leverRemote(job leverPosting) types.RemoteStatus {
	switch strings.ToLower(job.WorkplaceType) {
	case "remote":
		return types.RemoteYes
	case "on-site", "onsite", "hybrid":
		return types.RemoteNo
	default:
		return DetectRemote(job.Categories.Location)
	}
}

// leverInterval maps values such as "per-hour-wage" to annualise periods.
func leverInterval(interval string) string {
	switch {
	case strings.Contains(interval, "hour"):
		return "hour"
	case strings.Contains(interval, "month"):
		return "month"
	case strings.Contains(interval, "week"):
		return "week"
	case strings.Contains(interval, "day"):
		return "day"
	default:
		return "year"
	}
}
