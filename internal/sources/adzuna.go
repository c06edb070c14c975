package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const (
	adzunaBaseURL        = "https://api.adzuna.com/v1/api/jobs"
	adzunaResultsPerPage = 50
	adzunaDefaultPages   = 3
)

// Adzuna queries the Adzuna job search API.
type Adzuna struct {
	name     string
	appID    string
	appKey   string
	country  string
	where    string
	maxDays  string
	maxPages int
	queries  []string
	baseURL  string
	client   *Client
	logger   logging.Logger
}

type adzunaResponse struct {
	Count   int `json:"count"`
	Results []struct {
		ID           string  `json:"id"`
		Title        string  `json:"title"`
		Description  string  `json:"description"`
		RedirectURL  string  `json:"redirect_url"`
		Created      string  `json:"created"`
		SalaryMin    float64 `json:"salary_min"`
		SalaryMax    float64 `json:"salary_max"`
		ContractTime string  `json:"contract_time"`
		Company      struct {
			DisplayName string `json:"display_name"`
		} `json:"company"`
		Location struct {
			DisplayName string `json:"display_name"`
		} `json:"location"`
		Category struct {
			Label string `json:"label"`
		} `json:"category"`
	} `json:"results"`
}

// NewAdzuna builds the adapter. Params: app_id, app_key, country (default
// us), where, max_days_old, max_pages (default 3), base_url. Missing
// credentials surface as a permanent error when scraping.
func NewAdzuna(cfg config.SourceConfig, env Env) (Source, error) {
	maxPages := adzunaDefaultPages
	if v := cfg.Param("max_pages", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("source %s: invalid max_pages %q", cfg.Name, v)
		}
		maxPages = n
	}
	return &Adzuna{
		name:     cfg.Name,
		appID:    cfg.Param("app_id", ""),
		appKey:   cfg.Param("app_key", ""),
		country:  strings.ToLower(cfg.Param("country", "us")),
		where:    cfg.Param("where", ""),
		maxDays:  cfg.Param("max_days_old", ""),
		maxPages: maxPages,
		queries:  cfg.Queries,
		baseURL:  strings.TrimRight(cfg.Param("base_url", adzunaBaseURL), "/"),
		client:   env.Client,
		logger:   env.Logger,
	}, nil
}

// Name returns the configured source name.
func (a *Adzuna) Name() string { return a.name }

// Scrape pages through the results for each query.
func (a *Adzuna) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	if a.appID == "" || a.appKey == "" {
		return nil, NewPermanent(a.name, "adzuna app_id and app_key are required", nil)
	}
	queries := a.queries
	if len(queries) == 0 {
		queries = []string{""}
	}

	seen := make(map[string]bool)
	var postings []types.RawPosting
	for _, q := range queries {
		for page := 1; page <= a.maxPages; page++ {
			var resp adzunaResponse
			if err := a.client.GetJSON(ctx, a.pageURL(q, page), &resp); err != nil {
				return nil, err
			}
			for _, job := range resp.Results {
				if seen[job.ID] {
					continue
				}
				seen[job.ID] = true

				p := types.RawPosting{
					Title:       descriptionText(job.Title),
					Company:     job.Company.DisplayName,
					Location:    job.Location.DisplayName,
					URL:         job.RedirectURL,
					Description: descriptionText(job.Description),
					Source:      a.name,
					Remote:      DetectRemote(job.Title, job.Location.DisplayName),
					SalaryMin:   optionalInt(int(job.SalaryMin)),
					SalaryMax:   optionalInt(int(job.SalaryMax)),
					PostedAt:    parseTime(job.Created),
					ExternalID:  job.ID,
				}
				if p.SalaryMin != nil || p.SalaryMax != nil {
					p.Currency = adzunaCurrency(a.country)
				}
				for _, tag := range []string{job.Category.Label, job.ContractTime} {
					if tag != "" {
						p.Tags = append(p.Tags, tag)
					}
				}
				postings = append(postings, p)
			}
			if len(resp.Results) < adzunaResultsPerPage {
				break
			}
		}
	}
	a.logger.WithFields(logging.Fields{"source": a.name, "count": len(postings)}).Debug("adzuna search complete")
	return postings, nil
}

func (a *Adzuna) pageURL(query string, page int) string {
	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("results_per_page", strconv.Itoa(adzunaResultsPerPage))
	params.Set("sort_by", "date")
	if query != "" {
		params.Set("what", query)
	}
	if a.where != "" {
		params.Set("where", a.where)
	}
	if a.maxDays != "" {
		params.Set("max_days_old", a.maxDays)
	}
	return fmt.Sprintf("%s/%s/search/%d?%s", a.baseURL, url.PathEscape(a.country), page, params.Encode())
}

func adzunaCurrency(country string) string {
	switch country {
	case "gb":
		return "GBP"
	case "de", "fr", "nl", "it", "es", "at", "be", "pl":
		return "EUR"
	case "ca":
		return "CAD"
	case "au":
		return "AUD"
	case "in":
		return "INR"
	case "sg":
		return "SGD"
	case "ch":
		return "CHF"
	default:
		return "USD"
	}
}
