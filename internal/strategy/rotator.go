package strategy

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/otodoki/otodoki/internal/adapter/observability"
	"github.com/otodoki/otodoki/internal/domain"
)

// cooldownUnit is the base cooldown applied after a strategy failure;
// the effective cooldown is 2^min(failures,5) times this.
const cooldownUnit = time.Minute

// quotaFailureLevel is the failure count forced by a quota error,
// yielding a four minute cooldown.
const quotaFailureLevel = 2

// StrategyFailure is the per-strategy failure record exposed in
// worker stats.
type StrategyFailure struct {
	Failures      int       `json:"failures"`
	LastFailureAt time.Time `json:"last_failure_at,omitzero"`
}

// Rotator selects a strategy that is not in cooldown, invokes it, and
// rotates on failure. The rotor index persists across calls; a
// success leaves it in place so the same strategy is tried first next
// time.
type Rotator struct {
	mu         sync.Mutex
	strategies []domain.SearchStrategy
	idx        int
	failures   map[string]*StrategyFailure

	now func() time.Time
}

// NewRotator constructs a rotator over the given strategies.
func NewRotator(strategies []domain.SearchStrategy) *Rotator {
	failures := make(map[string]*StrategyFailure, len(strategies))
	for _, s := range strategies {
		failures[s.Name()] = &StrategyFailure{}
	}
	return &Rotator{
		strategies: strategies,
		failures:   failures,
		now:        time.Now,
	}
}

// NextParams implements domain.ParamSource. It tries each strategy at
// most once per call, skipping those in cooldown, and returns the
// first validated params.
//
// The mutex guards only the bookkeeping: strategy invocation runs
// unlocked so stats snapshots never wait out an upstream call.
// Invocation itself is serialized by the worker's refill mutex.
func (r *Rotator) NextParams(ctx domain.Context) (domain.SearchParams, error) {
	if len(r.strategies) == 0 {
		return domain.SearchParams{}, domain.ErrNoStrategy
	}

	for range r.strategies {
		s := r.eligibleStrategy()
		if s == nil {
			continue
		}

		params, err := s.GenerateParams(ctx)
		if err == nil && !params.Normalize() {
			err = fmt.Errorf("%w: strategy %q produced no usable terms", domain.ErrEmptyResult, s.Name())
		}

		r.mu.Lock()
		if err == nil {
			r.failures[s.Name()].Failures = 0
			r.mu.Unlock()
			return params, nil
		}
		r.recordFailureLocked(s.Name(), err)
		r.advance()
		r.mu.Unlock()
	}

	slog.Error("all strategies failed to generate keywords")
	return domain.SearchParams{}, domain.ErrNoStrategy
}

// eligibleStrategy returns the strategy the rotor points at, or nil
// after advancing past one that is still cooling down.
func (r *Rotator) eligibleStrategy() domain.SearchStrategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.strategies[r.idx]
	info := r.failures[s.Name()]
	if info.Failures > 0 {
		cooldown := failureCooldown(info.Failures)
		if r.now().Sub(info.LastFailureAt) < cooldown {
			slog.Info("strategy in cooldown, skipping",
				slog.String("strategy", s.Name()),
				slog.Duration("cooldown", cooldown))
			r.advance()
			return nil
		}
	}
	return s
}

// recordFailureLocked updates the failure counter; quota errors force
// the level-2 tier so the strategy rests for about four minutes.
// Caller must hold r.mu.
func (r *Rotator) recordFailureLocked(name string, err error) {
	info := r.failures[name]
	kind := "error"
	if errors.Is(err, domain.ErrUpstreamRateLimit) {
		info.Failures = quotaFailureLevel
		kind = "quota"
	} else {
		info.Failures++
	}
	info.LastFailureAt = r.now()
	observability.StrategyFailuresTotal.WithLabelValues(name, kind).Inc()
	slog.Warn("strategy failed",
		slog.String("strategy", name),
		slog.String("kind", kind),
		slog.Int("failures", info.Failures),
		slog.Any("error", err))
}

func (r *Rotator) advance() {
	r.idx = (r.idx + 1) % len(r.strategies)
}

// CurrentStrategy returns the name the rotor currently points at.
func (r *Rotator) CurrentStrategy() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.strategies) == 0 {
		return ""
	}
	return r.strategies[r.idx].Name()
}

// FailureInfo returns a snapshot of per-strategy failure records.
func (r *Rotator) FailureInfo() map[string]StrategyFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]StrategyFailure, len(r.failures))
	for name, info := range r.failures {
		out[name] = *info
	}
	return out
}

// failureCooldown is 2^min(failures,5) minutes.
func failureCooldown(failures int) time.Duration {
	if failures > 5 {
		failures = 5
	}
	return time.Duration(1<<failures) * cooldownUnit
}
