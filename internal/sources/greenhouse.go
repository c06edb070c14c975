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

const greenhouseBaseURL = "https://boards-api.greenhouse.io"

// Greenhouse reads a public Greenhouse job board.
type Greenhouse struct {
	name    string
	board   string
	company string
	baseURL string
	client  *Client
	logger  logging.Logger
}

type greenhouseResponse struct {
	Jobs []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		AbsoluteURL string `json:"absolute_url"`
		UpdatedAt   string `json:"updated_at"`
		FirstPosted string `json:"first_published"`
		Content     string `json:"content"`
		CompanyName string `json:"company_name"`
		Location    struct {
			Name string `json:"name"`
		} `json:"location"`
		Departments []struct {
			Name string `json:"name"`
		} `json:"departments"`
	} `json:"jobs"`
}

// NewGreenhouse builds the adapter. Params: board (required), company,
// base_url.
func NewGreenhouse(cfg config.SourceConfig, env Env) (Source, error) {
	board, err := requireParam(cfg, "board")
	if err != nil {
		return nil, err
	}
	return &Greenhouse{
		name:    cfg.Name,
		board:   board,
		company: cfg.Param("company", ""),
		baseURL: strings.TrimRight(cfg.Param("base_url", greenhouseBaseURL), "/"),
		client:  env.Client,
		logger:  env.Logger,
	}, nil
}

// Name returns the configured source name.
func (g *Greenhouse) Name() string { return g.name }

// Scrape fetches every job on the board with its description.
func (g *Greenhouse) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", g.baseURL, url.PathEscape(g.board))
	var resp greenhouseResponse
	if err := g.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	postings := make([]types.RawPosting, 0, len(resp.Jobs))
	for _, job := range resp.Jobs {
		description := descriptionText(job.Content)
		var tags []string
		for _, d := range job.Departments {
			if d.Name != "" {
				tags = append(tags, d.Name)
			}
		}
		p := types.RawPosting{
			Title:       job.Title,
			Company:     firstNonEmpty(g.company, job.CompanyName, g.board),
			Location:    job.Location.Name,
			URL:         job.AbsoluteURL,
			Description: description,
			Source:      g.name,
			Remote:      DetectRemote(job.Location.Name),
			PostedAt:    parseTime(firstNonEmpty(job.FirstPosted, job.UpdatedAt)),
			ExternalID:  strconv.FormatInt(job.ID, 10),
			Tags:        tags,
		}
		applySalaryText(&p, description)
		postings = append(postings, p)
	}
	g.logger.WithFields(logging.Fields{"source": g.name, "board": g.board, "count": len(postings)}).Debug("greenhouse board fetched")
	return postings, nil
}
