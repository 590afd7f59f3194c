package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/otodoki/otodoki/internal/adapter/observability"
	"github.com/otodoki/otodoki/internal/config"
	"github.com/otodoki/otodoki/internal/domain"
	"github.com/otodoki/otodoki/internal/queue"
	"github.com/otodoki/otodoki/internal/service/ratelimiter"
	"github.com/otodoki/otodoki/internal/usecase"
	"github.com/otodoki/otodoki/internal/worker"
)

// Server wires HTTP handlers to the application services.
type Server struct {
	Cfg         config.Config
	Suggestions *usecase.SuggestionsService
	Queue       *queue.Queue
	Worker      *worker.Worker
	Limiter     *ratelimiter.SlidingWindow
}

// NewServer constructs the handler set.
func NewServer(cfg config.Config, suggestions *usecase.SuggestionsService, q *queue.Queue, w *worker.Worker, limiter *ratelimiter.SlidingWindow) *Server {
	return &Server{Cfg: cfg, Suggestions: suggestions, Queue: q, Worker: w, Limiter: limiter}
}

// SuggestionsHandler serves GET /api/v1/tracks/suggestions.
func (s *Server) SuggestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.Limiter.Allow() {
			retryAfter := s.Limiter.RetryAfter()
			secs := int(retryAfter/time.Second) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			observability.SuggestionsRejectedTotal.Inc()
			LoggerFrom(r).Warn("suggestions request rate limited",
				"retry_after_s", secs)
			writeError(w, r, fmt.Errorf("%w: too many requests", domain.ErrRateLimited), nil)
			return
		}

		resp, err := s.Suggestions.Get(r.Context(), parseSuggestionsQuery(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// parseSuggestionsQuery reads limit and exclude_ids from the query
// string. Malformed input is normalized, not rejected: an unparseable
// limit falls back to the default, and exclude_ids is a
// comma-separated list that may repeat.
func parseSuggestionsQuery(r *http.Request) usecase.SuggestionsRequest {
	var req usecase.SuggestionsRequest
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			req.Limit = n
			req.HasLimit = true
		} else {
			LoggerFrom(r).Warn("ignoring malformed limit", "limit", raw)
		}
	}

	for _, raw := range q["exclude_ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.ExcludeIDs = append(req.ExcludeIDs, id)
			}
		}
	}
	return req
}

// QueueStatsHandler serves GET /api/v1/queue/stats.
func (s *Server) QueueStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Queue.Stats())
	}
}

// QueueHealthHandler serves GET /api/v1/queue/health. Status is ok,
// low, or empty; the endpoint always answers 200 so probes can read
// the body.
func (s *Server) QueueHealthHandler() http.HandlerFunc {
	type health struct {
		Status       string `json:"status"`
		CurrentSize  int    `json:"current_size"`
		LowWatermark int    `json:"low_watermark"`
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		size := s.Queue.Size()
		status := "ok"
		switch {
		case size == 0:
			status = "empty"
		case size <= s.Queue.LowWatermark():
			status = "low"
		}
		writeJSON(w, http.StatusOK, health{
			Status:       status,
			CurrentSize:  size,
			LowWatermark: s.Queue.LowWatermark(),
		})
	}
}

// QueueDequeueHandler serves POST /api/v1/queue/dequeue, an
// operational escape hatch that pops tracks directly off the queue.
// The count defaults to the configured dequeue default.
func (s *Server) QueueDequeueHandler() http.HandlerFunc {
	type result struct {
		Data      []domain.Track `json:"data"`
		QueueSize int            `json:"queue_size"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		n := s.Cfg.QueueDequeueDefault
		if raw := r.URL.Query().Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 {
				writeError(w, r, fmt.Errorf("%w: n must be a positive integer", domain.ErrInvalidArgument), nil)
				return
			}
			n = v
		}
		data := s.Queue.Dequeue(n)
		if data == nil {
			data = []domain.Track{}
		}
		writeJSON(w, http.StatusOK, result{Data: data, QueueSize: s.Queue.Size()})
	}
}

// WorkerStatsHandler serves GET /api/v1/worker/stats.
func (s *Server) WorkerStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Worker.Stats())
	}
}

// TriggerRefillHandler serves POST /api/v1/worker/trigger-refill. The
// refill runs synchronously; "skipped" means one was already running.
func (s *Server) TriggerRefillHandler() http.HandlerFunc {
	type result struct {
		Triggered bool `json:"triggered"`
		QueueSize int  `json:"queue_size"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ok := s.Worker.TriggerRefill(r.Context())
		writeJSON(w, http.StatusOK, result{
			Triggered: ok,
			QueueSize: s.Queue.Size(),
		})
	}
}

// HealthzHandler serves GET /healthz for liveness probes.
func (s *Server) HealthzHandler() http.HandlerFunc {
	type health struct {
		Status string `json:"status"`
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, health{Status: "ok"})
	}
}
