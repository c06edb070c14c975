package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/types"
)

const careersListing = `<html><body>
<nav><a href="/about">About</a></nav>
<ul class="openings">
  <li class="job"><a href="/jobs/backend"><h3>Backend Engineer</h3></a><span class="loc">Remote, EU</span></li>
  <li class="job"><a href="/jobs/frontend"><h3>Frontend Engineer</h3></a><span class="loc">Paris (Hybrid)</span></li>
  <li class="job"><a href="https://boards.greenhouse.io/acme/jobs/99"><h3>Data Analyst</h3></a></li>
  <li class="job"><a href="#"><h3>Placeholder</h3></a></li>
  <li class="job"><a href="/jobs/backend"><h3>Backend Engineer (dup)</h3></a></li>
</ul>
</body></html>`

const careersDetail = `<html><body>
<header>Acme</header>
<main><h1>Backend Engineer</h1><p>Design APIs in Go.</p><p>Salary: $130,000 - $150,000</p></main>
<form id="application-form">Apply</form>
</body></html>`

func newCareersServer(t *testing.T, listing string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/careers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listing))
	})
	mux.HandleFunc("/jobs/backend", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(careersDetail))
	})
	mux.HandleFunc("/jobs/frontend", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func careerParams(srv *httptest.Server, extra map[string]string) map[string]string {
	params := map[string]string{
		"url":               srv.URL + "/careers",
		"company":           "Acme",
		"item_selector":     "li.job",
		"title_selector":    "h3",
		"location_selector": ".loc",
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func TestCareerPage_Scrape(t *testing.T) {
	srv := newCareersServer(t, careersListing)

	src, err := NewCareerPage(testConfig("careerpage", careerParams(srv, nil)), testEnv("careers"))
	require.NoError(t, err)

	postings, err := src.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 3)

	backend := postings[0]
	assert.Equal(t, "Backend Engineer", backend.Title)
	assert.Equal(t, "Acme", backend.Company)
	assert.Equal(t, srv.URL+"/jobs/backend", backend.URL)
	assert.Equal(t, "Remote, EU", backend.Location)
	assert.Equal(t, types.RemoteYes, backend.Remote)
	assert.Empty(t, backend.Description)

	assert.Equal(t, types.RemoteNo, postings[1].Remote)

	analyst := postings[2]
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/99", analyst.URL)
	assert.Equal(t, []string{"greenhouse"}, analyst.Tags)
}

func TestCareerPage_FetchDetails(t *testing.T) {
	srv := newCareersServer(t, careersListing)

	params := careerParams(srv, map[string]string{"fetch_details": "true", "max_details": "2"})
	src, err := NewCareerPage(testConfig("careerpage", params), testEnv("careers"))
	require.NoError(t, err)

	postings, err := src.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 3)

	backend := postings[0]
	assert.Contains(t, backend.Description, "Design APIs in Go.")
	assert.NotContains(t, backend.Description, "Apply")
	require.NotNil(t, backend.SalaryMin)
	assert.Equal(t, 130000, *backend.SalaryMin)

	// A failed detail page leaves the posting without a description.
	assert.Empty(t, postings[1].Description)
	// Beyond max_details nothing is fetched.
	assert.Empty(t, postings[2].Description)
}

func TestCareerPage_AutoBrowserFallback(t *testing.T) {
	srv := newCareersServer(t, `<html><body><div id="root"></div></body></html>`)

	src, err := NewCareerPage(testConfig("careerpage", careerParams(srv, map[string]string{"use_browser": "auto"})), testEnv("careers"))
	require.NoError(t, err)

	var rendered string
	src.(*CareerPage).render = func(_ context.Context, url, _ string, _ time.Duration, _ logging.Logger) (string, error) {
		rendered = url
		return careersListing, nil
	}

	postings, err := src.Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, postings, 3)
	assert.Equal(t, srv.URL+"/careers", rendered)
}

func TestCareerPage_BrowserFailureIsTransient(t *testing.T) {
	srv := newCareersServer(t, careersListing)

	src, err := NewCareerPage(testConfig("careerpage", careerParams(srv, map[string]string{"use_browser": "true"})), testEnv("careers"))
	require.NoError(t, err)
	src.(*CareerPage).render = func(context.Context, string, string, time.Duration, logging.Logger) (string, error) {
		return "", errors.New("chrome not found")
	}

	_, err = src.Scrape(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestNewCareerPage_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
	}{
		{"missing url", map[string]string{}},
		{"relative url", map[string]string{"url": "/careers"}},
		{"bad use_browser", map[string]string{"url": "https://acme.test/careers", "use_browser": "sometimes"}},
		{"bad max_details", map[string]string{"url": "https://acme.test/careers", "max_details": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCareerPage(testConfig("careerpage", tt.params), testEnv("careers"))
			assert.Error(t, err)
		})
	}
}

func TestNewCareerPage_CompanyFromHost(t *testing.T) {
	src, err := NewCareerPage(testConfig("careerpage", map[string]string{"url": "https://www.acme.test/careers"}), testEnv("careers"))
	require.NoError(t, err)
	assert.Equal(t, "acme.test", src.(*CareerPage).company)
}
