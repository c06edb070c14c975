package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonathan/job-radar/internal/fetch"
	"github.com/jonathan/job-radar/internal/throttle"
)

// Client is the HTTP client handed to adapters. Every request checks the
// context, waits on the source's pacer, and classifies failures.
type Client struct {
	source string
	pacer  *throttle.Pacer
	opts   fetch.Options
}

// NewClient builds a client for one source. pacer may be nil.
func NewClient(source string, pacer *throttle.Pacer, httpClient *http.Client) *Client {
	opts := fetch.DefaultOptions()
	opts.Client = httpClient
	return &Client{source: source, pacer: pacer, opts: *opts}
}

// WithTimeout sets the per-request timeout used when no http.Client was
// supplied.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.opts.Timeout = d
	}
	return c
}

// Source returns the source name errors are attributed to.
func (c *Client) Source() string {
	return c.source
}

// Wait checks the context and waits on the pacer. Adapters call it before
// network work that does not go through Get, such as a browser render.
func (c *Client) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.pacer != nil {
		return c.pacer.Wait(ctx)
	}
	return nil
}

// Get fetches a URL with the given extra headers.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*fetch.Result, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}

	opts := c.opts
	if len(headers) > 0 {
		opts.Headers = headers
	}
	result, err := fetch.Get(ctx, url, &opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return result, FromFetch(c.source, err)
	}
	return result, nil
}

// GetJSON fetches a URL and decodes the JSON body into out. A body that does
// not decode is a permanent failure: the source changed its schema.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.GetJSONWithHeaders(ctx, url, nil, out)
}

// GetJSONWithHeaders is GetJSON with extra request headers.
func (c *Client) GetJSONWithHeaders(ctx context.Context, url string, headers map[string]string, out any) error {
	h := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	result, err := c.Get(ctx, url, h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result.Body, out); err != nil {
		return NewPermanent(c.source, "unexpected response schema from "+url, err)
	}
	return nil
}
