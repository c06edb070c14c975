package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/job-radar/internal/db"
	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/server/middleware"
	"github.com/jonathan/job-radar/internal/types"
)

// maxBodyBytes bounds request bodies; only flag updates carry one.
const maxBodyBytes = 64 << 10

// keepAliveInterval is how often /events writes a comment to idle clients.
var keepAliveInterval = 25 * time.Second

// CycleResponse is returned by a synchronous POST /cycles.
type CycleResponse struct {
	Summary string             `json:"summary"`
	Result  *types.CycleResult `json:"result"`
}

// handleHealth reports liveness plus database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]string{"status": "ok", "database": "ok"}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("health check: database unreachable")
		resp["status"] = "degraded"
		resp["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if s.pipeline != nil {
		resp["orchestrator"] = s.pipeline.Status().State
	}
	s.jsonResponse(w, status, resp)
}

// handleTriggerCycle runs one discovery cycle. By default it waits for the
// result; with ?async=true it returns 202 once the cycle is started.
func (s *Server) handleTriggerCycle(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithField("trigger", "api")
	if sub, err := middleware.Subject(r); err == nil {
		log = log.WithField("subject", sub)
	}

	async, err := parseBool(r, "async")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if async {
		if st := s.pipeline.Status(); st.State != "idle" {
			s.errorResponse(w, http.StatusConflict, "orchestrator is "+st.State)
			return
		}
		ctx := context.WithoutCancel(r.Context())
		go func() {
			if _, err := s.pipeline.Trigger(ctx); err != nil {
				log.WithError(err).Warn("background cycle did not run")
			}
		}()
		log.Info("cycle triggered")
		s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	log.Info("cycle triggered")
	result, err := s.pipeline.Trigger(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, CycleResponse{Summary: result.Summary(), Result: result})
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.pipeline.Status())
}

// handleReload re-reads the config file. The new config applies from the
// next cycle.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.ReloadFromFile(); err != nil {
		if HTTPStatus(err) == http.StatusInternalServerError {
			// Invalid config files are the caller's problem, not a server fault.
			s.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.fail(w, r, err)
		return
	}
	s.logger.Info("configuration reloaded via API")
	s.jsonResponse(w, http.StatusOK, s.pipeline.Status())
}

// handleEvents streams cycle progress as Server-Sent Events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sse.WriteEvent(ev.Step, ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	postings, err := s.store.ListRecent(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.listResponse(w, postings)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.fail(w, r, &ErrValidation{Field: "q", Message: "query is required"})
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	postings, err := s.store.Search(r.Context(), q, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.listResponse(w, postings)
}

// handleListByScore lists postings with score >= min_score (default 0).
func (s *Server) handleListByScore(w http.ResponseWriter, r *http.Request) {
	minScore := 0.0
	if v := r.URL.Query().Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			s.fail(w, r, &ErrValidation{Field: "min_score", Message: "must be a number between 0 and 1"})
			return
		}
		minScore = f
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	postings, err := s.store.ListByScoreThreshold(r.Context(), minScore, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.listResponse(w, postings)
}

func (s *Server) handleGetPosting(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPosting(r.Context(), r.PathValue("fingerprint"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleUpdateFlags(w http.ResponseWriter, r *http.Request) {
	fp := r.PathValue("fingerprint")

	var req types.FlagsUpdateRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()})
		return
	}
	if req.Empty() {
		s.fail(w, r, &ErrValidation{Field: "body", Message: "at least one of hidden, bookmarked or notes is required"})
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Field: "notes", Message: err.Error()})
		return
	}

	p, err := s.store.UpdateFlags(r.Context(), fp, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.WithFields(logging.Fields{"fingerprint": fp}).Info("posting flags updated")
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Statistics(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) listResponse(w http.ResponseWriter, postings []db.Posting) {
	if postings == nil {
		postings = []db.Posting{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"postings": postings,
		"count":    len(postings),
	})
}

// listOptions reads ?limit= and ?include_hidden=. The store caps the limit.
func listOptions(r *http.Request) (db.ListOptions, error) {
	var opts db.ListOptions
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, &ErrValidation{Field: "limit", Message: "must be a positive integer"}
		}
		opts.Limit = n
	}
	hidden, err := parseBool(r, "include_hidden")
	if err != nil {
		return opts, err
	}
	opts.IncludeHidden = hidden
	return opts, nil
}

func parseBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ErrValidation{Field: name, Message: "must be true or false"}
	}
	return b, nil
}
