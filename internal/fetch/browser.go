package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonathan/job-radar/internal/logging"
)

// MinContentLength is the minimum extracted text length to consider a plain
// HTTP fetch complete. Shorter pages are likely rendered client-side.
const MinContentLength = 500

// ShouldUseBrowser returns true if the extracted text is too short,
// indicating the page is likely a JavaScript-rendered SPA.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// WithBrowser renders a page in headless Chrome and returns the rendered
// HTML. waitSelector, when set, is awaited before the HTML is captured.
// Requires Chrome/Chromium to be installed on the system.
func WithBrowser(ctx context.Context, url, waitSelector string, timeout time.Duration, logger logging.Logger) (string, error) {
	logger = logging.OrDiscard(logger)
	logger.WithField("url", url).Debug("starting headless browser")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	if waitSelector == "" {
		waitSelector = "body"
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector),
		// Listing widgets often hydrate after the ready event.
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	logger.WithFields(logging.Fields{"url": url, "bytes": len(html)}).Debug("rendered page")
	return html, nil
}
