// Package usecase contains the application services behind the HTTP
// handlers.
package usecase

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/otodoki/otodoki/internal/adapter/observability"
	"github.com/otodoki/otodoki/internal/domain"
	"github.com/otodoki/otodoki/internal/queue"
)

// dequeueBudgetFactor bounds the total number of tracks pulled from
// the queue while satisfying one request: 3x the requested limit.
const dequeueBudgetFactor = 3

// overFetchMargin is how many extra tracks each supply iteration pulls
// to absorb exclusions.
const overFetchMargin = 5

// SuggestionsRequest is a parsed, pre-validation suggestions query.
type SuggestionsRequest struct {
	Limit      int
	HasLimit   bool
	ExcludeIDs []string
}

// SuggestionsMeta describes how a suggestions response was assembled.
type SuggestionsMeta struct {
	Requested       int    `json:"requested"`
	Delivered       int    `json:"delivered"`
	QueueSizeAfter  int    `json:"queue_size_after"`
	RefillTriggered bool   `json:"refill_triggered"`
	Timestamp       string `json:"ts"`
}

// SuggestionsResponse is the suggestions payload.
type SuggestionsResponse struct {
	Data []domain.Track  `json:"data"`
	Meta SuggestionsMeta `json:"meta"`
}

// SuggestionsService assembles track suggestions from the queue,
// filtering exclusions, returning unused tracks, and scheduling a
// refill when the queue runs low.
type SuggestionsService struct {
	queue        *queue.Queue
	scheduler    domain.RefillScheduler
	defaultLimit int
	maxLimit     int

	now func() time.Time
}

// NewSuggestionsService constructs the service.
func NewSuggestionsService(q *queue.Queue, scheduler domain.RefillScheduler, defaultLimit, maxLimit int) *SuggestionsService {
	if defaultLimit < 1 {
		defaultLimit = 1
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &SuggestionsService{
		queue:        q,
		scheduler:    scheduler,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          time.Now,
	}
}

// Get returns up to the requested number of tracks, excluding the
// given ids. Fewer than requested (including zero) is not an error.
func (s *SuggestionsService) Get(ctx domain.Context, req SuggestionsRequest) (SuggestionsResponse, error) {
	reqID := shortRequestID()
	limit := s.clampLimit(req)
	exclude := normalizeExcludeIDs(req.ExcludeIDs)

	slog.Info("suggestions requested",
		slog.String("request_id", reqID),
		slog.Int("limit", limit),
		slog.Int("exclude_count", len(exclude)))

	delivered, unused := s.supply(limit, exclude)

	if len(unused) > 0 {
		if returned := s.queue.ReEnqueue(unused); returned != len(unused) {
			slog.Warn("failed to return unused tracks to queue",
				slog.String("request_id", reqID),
				slog.Int("unused", len(unused)),
				slog.Int("returned", returned))
		}
	}

	sizeAfter := s.queue.Size()
	refillTriggered := false
	if sizeAfter < s.scheduler.MinThreshold() {
		refillTriggered = s.scheduler.RequestRefill()
		slog.Info("queue low after suggestions, refill requested",
			slog.String("request_id", reqID),
			slog.Int("size", sizeAfter),
			slog.Bool("accepted", refillTriggered))
	}

	observability.SuggestionsDelivered.Observe(float64(len(delivered)))
	slog.Info("suggestions delivered",
		slog.String("request_id", reqID),
		slog.Int("requested", limit),
		slog.Int("delivered", len(delivered)),
		slog.Int("queue_size_after", sizeAfter))

	return SuggestionsResponse{
		Data: delivered,
		Meta: SuggestionsMeta{
			Requested:       limit,
			Delivered:       len(delivered),
			QueueSizeAfter:  sizeAfter,
			RefillTriggered: refillTriggered,
			Timestamp:       s.now().UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

// supply dequeues in over-fetching rounds until limit tracks pass the
// exclusion filter, the queue is drained, or the dequeue budget is
// spent. Excluded and surplus tracks come back in unused, in their
// original order, for re-enqueueing.
func (s *SuggestionsService) supply(limit int, exclude map[string]struct{}) (delivered, unused []domain.Track) {
	delivered = make([]domain.Track, 0, limit)
	budget := limit * dequeueBudgetFactor

	for len(delivered) < limit && budget > 0 {
		need := limit - len(delivered)
		fetch := need + overFetchMargin
		if fetch > budget {
			fetch = budget
		}
		batch := s.queue.Dequeue(fetch)
		if len(batch) == 0 {
			break
		}
		budget -= len(batch)

		for _, t := range batch {
			if len(delivered) >= limit {
				unused = append(unused, t)
				continue
			}
			if _, skip := exclude[t.ID]; skip {
				unused = append(unused, t)
				continue
			}
			delivered = append(delivered, t)
		}
	}
	return delivered, unused
}

func (s *SuggestionsService) clampLimit(req SuggestionsRequest) int {
	if !req.HasLimit {
		return s.defaultLimit
	}
	limit := req.Limit
	if limit < 1 {
		limit = 1
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return limit
}

// normalizeExcludeIDs trims and deduplicates the exclusion list.
func normalizeExcludeIDs(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

// shortRequestID is a compact correlation id for suggestion logs.
func shortRequestID() string {
	return uuid.NewString()[:8]
}
