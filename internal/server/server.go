// Package server provides the HTTP API for job-radar: trigger and inspect
// discovery cycles, browse stored postings and set user flags.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/metrics"
	"github.com/jonathan/job-radar/internal/pipeline"
	"github.com/jonathan/job-radar/internal/server/middleware"
	"github.com/jonathan/job-radar/internal/server/ratelimit"
	"github.com/jonathan/job-radar/internal/types"
)

// Store is the read and flag-update side of the posting store.
type Store interface {
	GetPosting(ctx context.Context, fingerprint string) (*db.Posting, error)
	ListRecent(ctx context.Context, opts db.ListOptions) ([]db.Posting, error)
	ListByScoreThreshold(ctx context.Context, minScore float64, opts db.ListOptions) ([]db.Posting, error)
	Search(ctx context.Context, query string, opts db.ListOptions) ([]db.Posting, error)
	Statistics(ctx context.Context) (*db.Statistics, error)
	UpdateFlags(ctx context.Context, fingerprint string, update types.FlagsUpdateRequest) (*db.Posting, error)
	Ping(ctx context.Context) error
}

// Pipeline is the orchestrator as seen by the API.
type Pipeline interface {
	Trigger(ctx context.Context) (*types.CycleResult, error)
	Status() pipeline.ScheduleStatus
	ReloadFromFile() error
}

// Config holds server configuration.
type Config struct {
	Addr        string
	CORSOrigins []string
	// Auth enables bearer tokens on mutating endpoints when non-nil.
	Auth      *config.AuthConfig
	RateLimit *ratelimit.Config
	// Hub receives cycle progress; a new one is created when nil.
	Hub *Hub
}

// Server is the HTTP API.
type Server struct {
	httpServer  *http.Server
	store       Store
	pipeline    Pipeline
	hub         *Hub
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	corsOrigins []string
	logger      logging.Logger
	handler     http.Handler
}

// New creates a server. Wire Hub().Publish into the orchestrator's progress
// callback to stream cycle events on /events.
func New(cfg Config, store Store, pipe Pipeline, logger logging.Logger) *Server {
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		store:       store,
		pipeline:    pipe,
		hub:         hub,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		corsOrigins: cfg.CORSOrigins,
		logger:      logging.OrDiscard(logger),
	}

	var validator middleware.TokenValidator
	if cfg.Auth != nil {
		s.jwtService = NewJWTService(cfg.Auth)
		validator = s.jwtService.AsTokenValidator()
	}
	protected := middleware.RequireBearer(validator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /cycles", protected(http.HandlerFunc(s.handleTriggerCycle)))
	mux.HandleFunc("GET /schedule", s.handleSchedule)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.Handle("POST /config/reload", protected(http.HandlerFunc(s.handleReload)))

	mux.HandleFunc("GET /postings", s.handleListByScore)
	mux.HandleFunc("GET /postings/recent", s.handleRecent)
	mux.HandleFunc("GET /postings/search", s.handleSearch)
	mux.HandleFunc("GET /postings/{fingerprint}", s.handleGetPosting)
	mux.Handle("PATCH /postings/{fingerprint}/flags", protected(http.HandlerFunc(s.handleUpdateFlags)))
	mux.HandleFunc("GET /stats", s.handleStats)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))

	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultServerAddr
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: POST /cycles may wait for a whole cycle and
		// /events streams indefinitely.
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the progress event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// withCORS allows the configured origins, or any origin when none are set.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(s.corsOrigins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && (slices.Contains(s.corsOrigins, origin) || slices.Contains(s.corsOrigins, "*")):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their token budget with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging logs one line per request with its status and duration.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		entry := s.logger.WithFields(logging.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   m.Code,
			"bytes":    m.Written,
			"duration": m.Duration.String(),
			"remote":   r.RemoteAddr,
		})
		switch {
		case m.Code >= 500:
			entry.Warn("request failed")
		case r.URL.Path == "/health" || r.URL.Path == "/metrics":
			entry.Debug("request completed")
		default:
			entry.Info("request completed")
		}
	})
}

// extractClientID identifies the client by remote IP.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	resp := map[string]any{
		"error":   "rate_limit_exceeded",
		"message": "Rate limit exceeded. Please try again later.",
		"limit":   info.Limit,
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		resp["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	s.logger.WithFields(logging.Fields{
		"client": s.extractClientID(r),
		"path":   r.URL.Path,
		"limit":  info.Limit,
	}).Warn("rate limit exceeded")
	s.jsonResponse(w, http.StatusTooManyRequests, resp)
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Warn("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status. Internal errors are logged and not echoed.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.WithFields(logging.Fields{"method": r.Method, "path": r.URL.Path}).WithError(err).Error("request failed")
		s.errorResponse(w, status, "internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}
