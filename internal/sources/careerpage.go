package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/fetch"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const (
	defaultItemSelector = "a[href]"
	defaultMaxDetails   = 25
	browserTimeout      = 45 * time.Second
)

type renderFunc func(ctx context.Context, url, waitSelector string, timeout time.Duration, logger logging.Logger) (string, error)

// CareerPage scrapes a company careers page with configured CSS selectors.
// Pages rendered client-side can be loaded through headless Chrome.
type CareerPage struct {
	name         string
	pageURL      *url.URL
	company      string
	itemSel      string
	titleSel     string
	linkSel      string
	locationSel  string
	useBrowser   string
	waitSel      string
	fetchDetails bool
	maxDetails   int
	client       *Client
	logger       logging.Logger
	render       renderFunc
}

// NewCareerPage builds the adapter. Params: url (required), company,
// item_selector, title_selector, link_selector, location_selector,
// use_browser (true|auto), wait_selector, fetch_details, max_details.
func NewCareerPage(cfg config.SourceConfig, env Env) (Source, error) {
	raw, err := requireParam(cfg, "url")
	if err != nil {
		return nil, err
	}
	pageURL, err := url.Parse(raw)
	if err != nil || pageURL.Host == "" {
		return nil, fmt.Errorf("source %s: invalid url %q", cfg.Name, raw)
	}
	maxDetails := defaultMaxDetails
	if v := cfg.Param("max_details", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("source %s: invalid max_details %q", cfg.Name, v)
		}
		maxDetails = n
	}
	useBrowser := strings.ToLower(cfg.Param("use_browser", ""))
	switch useBrowser {
	case "", "false", "true", "auto":
	default:
		return nil, fmt.Errorf("source %s: use_browser must be true, false or auto", cfg.Name)
	}

	return &CareerPage{
		name:         cfg.Name,
		pageURL:      pageURL,
		company:      cfg.Param("company", strings.TrimPrefix(pageURL.Hostname(), "www.")),
		itemSel:      cfg.Param("item_selector", defaultItemSelector),
		titleSel:     cfg.Param("title_selector", ""),
		linkSel:      cfg.Param("link_selector", ""),
		locationSel:  cfg.Param("location_selector", ""),
		useBrowser:   useBrowser,
		waitSel:      cfg.Param("wait_selector", ""),
		fetchDetails: cfg.Param("fetch_details", "") == "true",
		maxDetails:   maxDetails,
		client:       env.Client,
		logger:       env.Logger,
		render:       fetch.WithBrowser,
	}, nil
}

// Name returns the configured source name.
func (c *CareerPage) Name() string { return c.name }

// Scrape loads the listing page and extracts one posting per item.
func (c *CareerPage) Scrape(ctx context.Context) ([]types.RawPosting, error) {
	var page string
	if c.useBrowser == "true" {
		html, err := c.renderPage(ctx)
		if err != nil {
			return nil, err
		}
		page = html
	} else {
		result, err := c.client.Get(ctx, c.pageURL.String(), map[string]string{"Accept": "text/html"})
		if err != nil {
			return nil, err
		}
		page = string(result.Body)
	}

	postings, err := c.parseListing(page)
	if err != nil {
		return nil, err
	}
	if len(postings) == 0 && c.useBrowser == "auto" {
		text, _ := fetch.ExtractMainText(page, nil)
		if fetch.ShouldUseBrowser(text) {
			c.logger.WithField("source", c.name).Info("listing looks client-rendered, retrying in browser")
			html, err := c.renderPage(ctx)
			if err != nil {
				return nil, err
			}
			if postings, err = c.parseListing(html); err != nil {
				return nil, err
			}
		}
	}

	if c.fetchDetails {
		c.loadDetails(ctx, postings)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	c.logger.WithFields(logging.Fields{"source": c.name, "url": c.pageURL.String(), "count": len(postings)}).Debug("career page scraped")
	return postings, nil
}

func (c *CareerPage) renderPage(ctx context.Context) (string, error) {
	if err := c.client.Wait(ctx); err != nil {
		return "", err
	}
	html, err := c.render(ctx, c.pageURL.String(), c.waitSel, browserTimeout, c.logger)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", NewTransient(c.name, "browser render failed", err)
	}
	return html, nil
}

func (c *CareerPage) parseListing(page string) ([]types.RawPosting, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(page))
	if err != nil {
		return nil, NewPermanent(c.name, "failed to parse careers page", err)
	}

	seen := make(map[string]bool)
	var postings []types.RawPosting
	doc.Find(c.itemSel).Each(func(_ int, item *goquery.Selection) {
		link := c.itemLink(item)
		if link == "" || seen[link] {
			return
		}

		title := strings.TrimSpace(item.Text())
		if c.titleSel != "" {
			title = strings.TrimSpace(item.Find(c.titleSel).First().Text())
		}
		title = strings.Join(strings.Fields(title), " ")
		if title == "" {
			return
		}
		var location string
		if c.locationSel != "" {
			location = strings.TrimSpace(item.Find(c.locationSel).First().Text())
		}
		seen[link] = true

		p := types.RawPosting{
			Title:      title,
			Company:    c.company,
			Location:   location,
			URL:        link,
			Source:     c.name,
			Remote:     DetectRemote(location, title),
			ExternalID: link,
		}
		if platform := fetch.DetectPlatform(link); platform != fetch.PlatformUnknown {
			p.Tags = append(p.Tags, string(platform))
		}
		postings = append(postings, p)
	})
	return postings, nil
}

// itemLink resolves the item's link against the page URL.
func (c *CareerPage) itemLink(item *goquery.Selection) string {
	var href string
	switch {
	case c.linkSel != "":
		href, _ = item.Find(c.linkSel).First().Attr("href")
	case goquery.NodeName(item) == "a":
		href, _ = item.Attr("href")
	default:
		href, _ = item.Find("a[href]").First().Attr("href")
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return c.pageURL.ResolveReference(ref).String()
}

// loadDetails fills descriptions from each posting's page. Failures leave
// the posting without a description.
func (c *CareerPage) loadDetails(ctx context.Context, postings []types.RawPosting) {
	for i := range postings {
		if i >= c.maxDetails || ctx.Err() != nil {
			return
		}
		p := &postings[i]
		result, err := c.client.Get(ctx, p.URL, map[string]string{"Accept": "text/html"})
		if err != nil {
			c.logger.WithError(err).WithField("url", p.URL).Debug("failed to fetch posting details")
			continue
		}
		platform := fetch.DetectPlatform(p.URL)
		text, err := fetch.ExtractMainText(string(result.Body), fetch.PlatformContentSelectors(platform), fetch.PlatformNoiseSelectors(platform)...)
		if err != nil {
			continue
		}
		p.Description = truncateRunes(text, maxDescriptionRunes)
		if !p.Remote.Known() {
			p.Remote = DetectRemote(p.Location, firstLine(text))
		}
		applySalaryText(p, text)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
