package sources

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const (
	weWorkRemotelyBaseURL  = "https://weworkremotely.com"
	weWorkRemotelyCategory = "remote-programming-jobs"
)

// WeWorkRemotely reads We Work Remotely category RSS feeds.
type WeWorkRemotely struct {
	name       string
	categories []string
	baseURL    string
	client     *Client
	logger     logging.Logger
}

type wwrFeed struct {
	Channel struct {
		Items []wwrItem `xml:"item"`
	} `xml:"channel"`
}

type wwrItem struct {
	Title       string `xml:"title"`
	Region      string `xml:"region"`
	Category    string `xml:"category"`
	Type        string `xml:"type"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
}

// NewWeWorkRemotely builds the adapter. Params: categories (comma
// separated feed slugs, default remote-programming-jobs), base_url.
func NewWeWorkRemotely(cfg config.SourceConfig, env Env) (Source, error) {
	var categories []string
	for _, c := range strings.Split(cfg.Param("categories", weWorkRemotelyCategory), ",") {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	return &WeWorkRemotely{
		name:       cfg.Name,
		categories: categories,
		baseURL:    strings.TrimRight(cfg.Param("base_url", weWorkRemotelyBaseURL), "/"),
		client:     env.Client,
		logger:     env.Logger,
	}, nil
}

// Name returns the configured source name.
func (w *WeWorkRemotely) Name() string { return w.name }

// Scrape reads each configured category feed.
func (w *WeWorkRemotely) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	seen := make(map[string]bool)
	var postings []types.RawPosting
	for _, category := range w.categories {
		endpoint := w.baseURL + "/categories/" + category + ".rss"
		result, err := w.client.Get(ctx, endpoint, map[string]string{"Accept": "application/rss+xml"})
		if err != nil {
			return nil, err
		}
		var feed wwrFeed
		if err := xml.Unmarshal(result.Body, &feed); err != nil {
			return nil, NewPermanent(w.name, "unexpected feed format from "+endpoint, err)
		}
		for _, item := range feed.Channel.Items {
			id := firstNonEmpty(item.GUID, item.Link)
			if seen[id] {
				continue
			}
			seen[id] = true

			company, title := splitCompanyTitle(item.Title)
			p := types.RawPosting{
				Title:       title,
				Company:     company,
				Location:    firstNonEmpty(item.Region, "Remote"),
				URL:         strings.TrimSpace(item.Link),
				Description: descriptionText(item.Description),
				Source:      w.name,
				Remote:      types.RemoteYes,
				PostedAt:    parseTime(item.PubDate),
				ExternalID:  id,
			}
			for _, tag := range []string{item.Category, item.Type} {
				if tag != "" {
					p.Tags = append(p.Tags, tag)
				}
			}
			applySalaryText(&p, p.Description)
			postings = append(postings, p)
		}
	}
	w.logger.WithFields(logging.Fields{"source": w.name, "count": len(postings)}).Debug("weworkremotely feeds fetched")
	return postings, nil
}

// splitCompanyTitle splits "Company: Title". Without a separator the whole
// text is the title.
func splitCompanyTitle(s string) (company, title string) {
	company, title, ok := strings.Cut(s, ":")
	if !ok {
		return "", strings.TrimSpace(s)
	}
	return strings.TrimSpace(company), strings.TrimSpace(title)
}
