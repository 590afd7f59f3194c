// Package worker implements the background replenishment worker that
// keeps the track queue above its refill threshold by fetching from
// the catalog through the rotating search strategies.
package worker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/otodoki/otodoki/internal/adapter/observability"
	"github.com/otodoki/otodoki/internal/config"
	"github.com/otodoki/otodoki/internal/domain"
	"github.com/otodoki/otodoki/internal/queue"
	"github.com/otodoki/otodoki/internal/strategy"
)

const (
	// Circuit breaker: refills are suppressed after this many
	// consecutive failures, for 2^min(n-max,5) minutes.
	maxFailures       = 5
	backoffMultiplier = 2.0

	// Per-refill bounds.
	refillMaxAttempts = 3
	catalogFetchLimit = 500

	// Keyword buffer sizing; refilled when at or below 70% of max.
	keywordBufferMax      = 20
	keywordRefillFraction = 0.7
	queueRefillFraction   = 0.7
	interAttemptPause     = 2 * time.Second
	emptyResultPause      = time.Second
)

// Stats is the worker introspection payload.
type Stats struct {
	Running                bool                                `json:"running"`
	ConsecutiveFailures    int                                 `json:"consecutive_failures"`
	MaxFailures            int                                 `json:"max_failures"`
	RefillInProgress       bool                                `json:"refill_in_progress"`
	PollIntervalMS         int                                 `json:"poll_interval_ms"`
	MinThreshold           int                                 `json:"min_threshold"`
	BatchSize              int                                 `json:"batch_size"`
	MaxCap                 int                                 `json:"max_cap"`
	CurrentSearchStrategy  string                              `json:"current_search_strategy"`
	KeywordQueueSize       int                                 `json:"keyword_queue_size"`
	KeywordRefillThreshold int                                 `json:"keyword_refill_threshold"`
	StrategyFailureInfo    map[string]strategy.StrategyFailure `json:"strategy_failure_info"`
}

// strategyIntrospector is satisfied by *strategy.Rotator; fakes in
// tests may omit it.
type strategyIntrospector interface {
	CurrentStrategy() string
	FailureInfo() map[string]strategy.StrategyFailure
}

// Worker owns the refill mutex, the keyword buffer, and the circuit
// breaker. One worker owns one queue per process.
type Worker struct {
	queue      *queue.Queue
	catalog    domain.CatalogClient
	normalizer domain.TrackNormalizer
	params     domain.ParamSource

	minThreshold int
	batchSize    int
	maxCap       int
	pollInterval time.Duration

	keywords *keywordBuffer

	// refillMu serializes refill runs between the periodic loop and
	// one-shot triggers.
	refillMu sync.Mutex

	// triggerCh is the bounded submission channel the request path
	// uses to schedule a one-shot refill.
	triggerCh chan struct{}

	running atomic.Bool

	mu                  sync.Mutex
	consecutiveFailures int
	lastFailureAt       time.Time

	now   func() time.Time
	sleep func(ctx domain.Context, d time.Duration) error
}

// New constructs a worker from configuration and collaborators.
func New(cfg config.Config, q *queue.Queue, catalog domain.CatalogClient, normalizer domain.TrackNormalizer, params domain.ParamSource) *Worker {
	return &Worker{
		queue:        q,
		catalog:      catalog,
		normalizer:   normalizer,
		params:       params,
		minThreshold: cfg.MinThreshold,
		batchSize:    cfg.BatchSize,
		maxCap:       cfg.MaxCap,
		pollInterval: cfg.PollInterval(),
		keywords:     newKeywordBuffer(keywordBufferMax),
		triggerCh:    make(chan struct{}, 1),
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// MinThreshold implements domain.RefillScheduler.
func (w *Worker) MinThreshold() int { return w.minThreshold }

// RequestRefill implements domain.RefillScheduler: a non-blocking
// submission to the worker's trigger channel. Returns whether the
// submission was accepted.
func (w *Worker) RequestRefill() bool {
	select {
	case w.triggerCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// TriggerRefill runs a one-shot refill unless one is already in
// progress. Returns whether a refill ran and added tracks.
func (w *Worker) TriggerRefill(ctx domain.Context) bool {
	if !w.refillMu.TryLock() {
		slog.Info("refill already in progress, skipping one-shot trigger")
		return false
	}
	defer w.refillMu.Unlock()
	slog.Info("one-shot queue refill triggered")
	ok := w.attemptRefill(ctx)
	w.recordOutcome(ok)
	return ok
}

// Run is the worker loop. It returns when ctx is cancelled; an
// in-flight refill is abandoned at its next suspension point.
func (w *Worker) Run(ctx domain.Context) {
	w.running.Store(true)
	defer w.running.Store(false)
	slog.Info("worker loop started",
		slog.Int("min_threshold", w.minThreshold),
		slog.Int("batch_size", w.batchSize),
		slog.Int("max_cap", w.maxCap),
		slog.Duration("poll_interval", w.pollInterval))

	for {
		if ctx.Err() != nil {
			slog.Info("worker loop cancelled")
			return
		}

		if w.shouldSkipDueToFailures() {
			if !w.waitNext(ctx) {
				return
			}
			continue
		}

		size := w.queue.Size()
		threshold := int(float64(w.maxCap) * queueRefillFraction)
		if size < threshold {
			slog.Info("queue below refill threshold",
				slog.Int("size", size),
				slog.Int("threshold", threshold))
			w.refillMu.Lock()
			ok := w.attemptRefill(ctx)
			w.refillMu.Unlock()
			w.recordOutcome(ok)
		} else {
			slog.Debug("queue above refill threshold",
				slog.Int("size", size),
				slog.Int("threshold", threshold))
		}

		if !w.waitNext(ctx) {
			return
		}
	}
}

// waitNext sleeps one poll interval, waking early to service one-shot
// trigger submissions. Returns false when ctx is done.
func (w *Worker) waitNext(ctx domain.Context) bool {
	d := w.pollInterval
	w.mu.Lock()
	if w.consecutiveFailures >= maxFailures {
		d = time.Duration(float64(d) * backoffMultiplier)
	}
	w.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case <-w.triggerCh:
		w.refillMu.Lock()
		ok := w.attemptRefill(ctx)
		w.refillMu.Unlock()
		w.recordOutcome(ok)
		return ctx.Err() == nil
	}
}

// attemptRefill pulls terms from the keyword buffer (refilling it via
// the strategy rotator when low), fetches and normalizes tracks, and
// enqueues up to the batch size. Returns true iff any track was
// added. Caller must hold refillMu.
func (w *Worker) attemptRefill(ctx domain.Context) bool {
	size := w.queue.Size()
	need := w.batchSize
	if room := w.maxCap - size; room < need {
		need = room
	}
	if need <= 0 {
		slog.Debug("queue at capacity, no refill needed",
			slog.Int("size", size), slog.Int("max_cap", w.maxCap))
		return true
	}

	filled := 0
	attempts := 0
	keywordThreshold := int(float64(w.keywords.Cap()) * keywordRefillFraction)

	for filled < need && attempts < refillMaxAttempts && ctx.Err() == nil {
		if w.keywords.Len() <= keywordThreshold {
			params, err := w.params.NextParams(ctx)
			if err != nil {
				slog.Warn("keyword generation failed", slog.Any("error", err))
				attempts++
				continue
			}
			if len(params.Terms) > 0 {
				added := w.keywords.Append(params.Terms...)
				slog.Info("keyword buffer refilled", slog.Int("added", added))
			} else {
				w.keywords.Append(params.Term)
			}
		}

		term, ok := w.keywords.Pop()
		if !ok {
			slog.Warn("keyword buffer still empty")
			attempts++
			continue
		}
		slog.Info("refilling with keyword", slog.String("term", term))

		records, err := w.catalog.Search(ctx, domain.SearchParams{Term: term}, catalogFetchLimit)
		if err != nil {
			slog.Warn("catalog fetch failed",
				slog.String("term", term), slog.Any("error", err))
			attempts++
			w.pauseBetweenAttempts(ctx, filled, need, attempts)
			continue
		}
		if len(records) == 0 {
			slog.Info("no tracks for keyword", slog.String("term", term))
			_ = w.sleep(ctx, emptyResultPause)
			attempts++
			continue
		}

		tracks := w.normalizer.Normalize(records)
		if len(tracks) == 0 {
			slog.Info("no valid tracks for keyword", slog.String("term", term))
			_ = w.sleep(ctx, emptyResultPause)
			attempts++
			continue
		}

		take := need - filled
		if take > len(tracks) {
			take = len(tracks)
		}
		added := w.queue.Enqueue(tracks[:take])
		filled += added
		slog.Info("added tracks to queue",
			slog.Int("added", added),
			slog.Int("filled", filled),
			slog.Int("need", need))

		if filled >= need {
			break
		}
		attempts++
		w.pauseBetweenAttempts(ctx, filled, need, attempts)
	}

	finalSize := w.queue.Size()
	if filled > 0 {
		observability.RefillAttemptsTotal.WithLabelValues("success").Inc()
		slog.Info("refill completed",
			slog.Int("added", filled),
			slog.Int("size_before", size),
			slog.Int("size_after", finalSize))
		return true
	}
	observability.RefillAttemptsTotal.WithLabelValues("failure").Inc()
	slog.Warn("refill failed", slog.Int("attempts", attempts))
	return false
}

// pauseBetweenAttempts paces catalog calls when the refill is not yet
// satisfied.
func (w *Worker) pauseBetweenAttempts(ctx domain.Context, filled, need, attempts int) {
	if filled < need && attempts < refillMaxAttempts {
		_ = w.sleep(ctx, interAttemptPause)
	}
}

// recordOutcome updates the circuit breaker counters.
func (w *Worker) recordOutcome(ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ok {
		w.consecutiveFailures = 0
		return
	}
	w.consecutiveFailures++
	w.lastFailureAt = w.now()
}

// shouldSkipDueToFailures reports whether the circuit is open: after
// maxFailures consecutive failures, refills are skipped for
// 2^min(n-maxFailures,5) minutes since the last failure.
func (w *Worker) shouldSkipDueToFailures() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.consecutiveFailures < maxFailures {
		return false
	}
	exp := w.consecutiveFailures - maxFailures
	if exp > 5 {
		exp = 5
	}
	backoff := time.Duration(1<<exp) * time.Minute
	if w.now().Sub(w.lastFailureAt) < backoff {
		slog.Debug("circuit open, skipping refill", slog.Duration("backoff", backoff))
		return true
	}
	return false
}

// Running reports whether the worker loop is active.
func (w *Worker) Running() bool { return w.running.Load() }

// Stats returns the worker introspection payload.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	failures := w.consecutiveFailures
	w.mu.Unlock()

	inProgress := true
	if w.refillMu.TryLock() {
		inProgress = false
		w.refillMu.Unlock()
	}

	st := Stats{
		Running:                w.running.Load(),
		ConsecutiveFailures:    failures,
		MaxFailures:            maxFailures,
		RefillInProgress:       inProgress,
		PollIntervalMS:         int(w.pollInterval / time.Millisecond),
		MinThreshold:           w.minThreshold,
		BatchSize:              w.batchSize,
		MaxCap:                 w.maxCap,
		KeywordQueueSize:       w.keywords.Len(),
		KeywordRefillThreshold: int(float64(w.keywords.Cap()) * keywordRefillFraction),
		StrategyFailureInfo:    map[string]strategy.StrategyFailure{},
	}
	if si, ok := w.params.(strategyIntrospector); ok {
		st.CurrentSearchStrategy = si.CurrentStrategy()
		st.StrategyFailureInfo = si.FailureInfo()
	}
	return st
}

func sleepCtx(ctx domain.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
