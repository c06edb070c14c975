// Package sources implements the source adapters that turn job boards, ATS
// APIs, feeds and search results into raw postings.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/throttle"
	"github.com/jonathan/job-radar/internal/types"
)

// Source fetches the current postings from one place. Implementations check
// ctx before every network call and return *Error for classified failures.
type Source interface {
	Name() string
	Scrape(ctx context.Context) ([]types.RawPosting, error)
}

// Env is what a factory receives besides the source's own config.
type Env struct {
	Client  *Client
	Logger  logging.Logger
	Timeout time.Duration
}

// Factory builds a Source from its config entry.
type Factory func(cfg config.SourceConfig, env Env) (Source, error)

// Registry maps adapter type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with every built-in adapter registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("greenhouse", NewGreenhouse)
	r.Register("lever", NewLever)
	r.Register("ashby", NewAshby)
	r.Register("workable", NewWorkable)
	r.Register("remoteok", NewRemoteOK)
	r.Register("remotive", NewRemotive)
	r.Register("adzuna", NewAdzuna)
	r.Register("weworkremotely", NewWeWorkRemotely)
	r.Register("hackernews", NewHackerNews)
	r.Register("careerpage", NewCareerPage)
	r.Register("googlesearch", NewGoogleSearch)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Types lists the registered adapter types in order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build constructs the adapter for cfg. The adapter's HTTP client waits on
// pacer before each request.
func (r *Registry) Build(cfg config.SourceConfig, pacer *throttle.Pacer, httpClient *http.Client, timeout time.Duration, logger logging.Logger) (Source, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}

	client := NewClient(cfg.Name, pacer, httpClient).WithTimeout(timeout)
	env := Env{
		Client:  client,
		Logger:  logging.OrDiscard(logger),
		Timeout: timeout,
	}
	src, err := f(cfg, env)
	if err != nil {
		return nil, fmt.Errorf("failed to build source %s: %w", cfg.Name, err)
	}
	return src, nil
}

// requireParam returns a required parameter or a configuration error.
func requireParam(cfg config.SourceConfig, key string) (string, error) {
	v := cfg.Param(key, "")
	if v == "" {
		return "", fmt.Errorf("source %s (%s): missing param %q", cfg.Name, cfg.Type, key)
	}
	return v, nil
}
