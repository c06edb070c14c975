package sources

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/logging"
)

func testEnv(name string) Env {
	return Env{
		Client: NewClient(name, nil, nil),
		Logger: logging.Discard(),
	}
}

func testConfig(typ string, params map[string]string, queries ...string) config.SourceConfig {
	return config.SourceConfig{
		Name:    typ + "-test",
		Type:    typ,
		Params:  params,
		Queries: queries,
	}
}

type requestLog struct {
	mu   sync.Mutex
	uris []string
}

func (l *requestLog) add(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uris = append(l.uris, uri)
}

func (l *requestLog) URIs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.uris...)
}

// serve starts a server that answers every request with body and records
// each request URI.
func serve(t *testing.T, contentType, body string) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.RequestURI())
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func newStatusServer(t *testing.T, status int, retryAfter string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}
