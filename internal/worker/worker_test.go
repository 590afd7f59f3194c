package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otodoki/otodoki/internal/config"
	"github.com/otodoki/otodoki/internal/domain"
	"github.com/otodoki/otodoki/internal/queue"
)

type fakeCatalog struct {
	calls   int
	terms   []string
	records []domain.CatalogRecord
	err     error
}

func (f *fakeCatalog) Search(_ domain.Context, params domain.SearchParams, _ int) ([]domain.CatalogRecord, error) {
	f.calls++
	f.terms = append(f.terms, params.Term)
	return f.records, f.err
}

type passNormalizer struct{}

func (passNormalizer) Normalize(records []domain.CatalogRecord) []domain.Track {
	out := make([]domain.Track, 0, len(records))
	for _, r := range records {
		out = append(out, domain.Track{
			ID:         fmt.Sprintf("%d", r.TrackID),
			Title:      r.TrackName,
			Artist:     r.ArtistName,
			PreviewURL: r.PreviewURL,
		})
	}
	return out
}

type fakeParams struct {
	calls  int
	params domain.SearchParams
	err    error
}

func (f *fakeParams) NextParams(_ domain.Context) (domain.SearchParams, error) {
	f.calls++
	return f.params, f.err
}

func records(n int) []domain.CatalogRecord {
	out := make([]domain.CatalogRecord, n)
	for i := range out {
		out[i] = domain.CatalogRecord{
			TrackID:    int64(i + 1),
			TrackName:  fmt.Sprintf("Song %d", i+1),
			ArtistName: "Artist",
			PreviewURL: "p",
		}
	}
	return out
}

func testWorker(q *queue.Queue, catalog domain.CatalogClient, params domain.ParamSource) *Worker {
	cfg := config.Config{
		MinThreshold:   5,
		BatchSize:      10,
		MaxCap:         30,
		PollIntervalMS: 10,
	}
	w := New(cfg, q, catalog, passNormalizer{}, params)
	w.sleep = func(_ domain.Context, _ time.Duration) error { return nil }
	return w
}

func TestAttemptRefill_FillsBatch(t *testing.T) {
	q := queue.New(100, 0)
	catalog := &fakeCatalog{records: records(50)}
	params := &fakeParams{params: domain.SearchParams{Terms: []string{"春", "夏"}}}
	w := testWorker(q, catalog, params)

	w.refillMu.Lock()
	ok := w.attemptRefill(context.Background())
	w.refillMu.Unlock()

	assert.True(t, ok)
	assert.Equal(t, 10, q.Size(), "fills exactly the batch size")
	assert.Equal(t, 1, catalog.calls)
	assert.Equal(t, []string{"春"}, catalog.terms)
	assert.Equal(t, 1, w.keywords.Len(), "second term stays buffered")
}

func TestAttemptRefill_RespectsMaxCap(t *testing.T) {
	q := queue.New(100, 0)
	// Pre-fill so only 4 slots remain under max cap 30.
	pre := make([]domain.Track, 26)
	for i := range pre {
		pre[i] = domain.Track{ID: fmt.Sprintf("pre%d", i), Title: "t", Artist: "a"}
	}
	require.Equal(t, 26, q.Enqueue(pre))

	catalog := &fakeCatalog{records: records(50)}
	params := &fakeParams{params: domain.SearchParams{Term: "春"}}
	w := testWorker(q, catalog, params)

	w.refillMu.Lock()
	ok := w.attemptRefill(context.Background())
	w.refillMu.Unlock()

	assert.True(t, ok)
	assert.Equal(t, 30, q.Size())
}

func TestAttemptRefill_QueueAlreadyAtCap(t *testing.T) {
	q := queue.New(100, 0)
	pre := make([]domain.Track, 30)
	for i := range pre {
		pre[i] = domain.Track{ID: fmt.Sprintf("pre%d", i), Title: "t", Artist: "a"}
	}
	q.Enqueue(pre)

	catalog := &fakeCatalog{records: records(10)}
	w := testWorker(q, catalog, &fakeParams{params: domain.SearchParams{Term: "x"}})

	w.refillMu.Lock()
	ok := w.attemptRefill(context.Background())
	w.refillMu.Unlock()

	assert.True(t, ok, "nothing to do counts as success")
	assert.Zero(t, catalog.calls)
}

func TestAttemptRefill_GivesUpAfterMaxAttempts(t *testing.T) {
	q := queue.New(100, 0)
	catalog := &fakeCatalog{err: errors.New("down")}
	params := &fakeParams{params: domain.SearchParams{Terms: []string{"a", "b", "c", "d"}}}
	w := testWorker(q, catalog, params)

	w.refillMu.Lock()
	ok := w.attemptRefill(context.Background())
	w.refillMu.Unlock()

	assert.False(t, ok)
	assert.Equal(t, 3, catalog.calls)
	assert.Zero(t, q.Size())
}

func TestAttemptRefill_KeywordFailureCountsAsAttempt(t *testing.T) {
	q := queue.New(100, 0)
	catalog := &fakeCatalog{records: records(10)}
	params := &fakeParams{err: errors.New("no keywords")}
	w := testWorker(q, catalog, params)

	w.refillMu.Lock()
	ok := w.attemptRefill(context.Background())
	w.refillMu.Unlock()

	assert.False(t, ok)
	assert.Equal(t, 3, params.calls)
	assert.Zero(t, catalog.calls)
}

func TestAttemptRefill_KeywordBufferNotRefilledWhileFull(t *testing.T) {
	q := queue.New(100, 0)
	catalog := &fakeCatalog{records: records(50)}
	params := &fakeParams{params: domain.SearchParams{Term: "unused"}}
	w := testWorker(q, catalog, params)

	// Pre-load the buffer above its refill threshold.
	terms := make([]string, 20)
	for i := range terms {
		terms[i] = fmt.Sprintf("term%d", i)
	}
	w.keywords.Append(terms...)

	w.refillMu.Lock()
	w.attemptRefill(context.Background())
	w.refillMu.Unlock()

	assert.Zero(t, params.calls)
	assert.Equal(t, []string{"term0"}, catalog.terms)
}

func TestRecordOutcome_CircuitBreaker(t *testing.T) {
	q := queue.New(100, 0)
	w := testWorker(q, &fakeCatalog{}, &fakeParams{})
	base := time.Now()
	w.now = func() time.Time { return base }

	for i := 0; i < maxFailures; i++ {
		assert.False(t, w.shouldSkipDueToFailures())
		w.recordOutcome(false)
	}
	assert.True(t, w.shouldSkipDueToFailures(), "circuit opens at the failure limit")

	// One minute is the first backoff tier; just before it the circuit
	// stays open, past it a refill is allowed again.
	w.now = func() time.Time { return base.Add(59 * time.Second) }
	assert.True(t, w.shouldSkipDueToFailures())
	w.now = func() time.Time { return base.Add(61 * time.Second) }
	assert.False(t, w.shouldSkipDueToFailures())

	w.recordOutcome(true)
	assert.False(t, w.shouldSkipDueToFailures())
	assert.Zero(t, w.Stats().ConsecutiveFailures)
}

func TestRequestRefill_BoundedSubmission(t *testing.T) {
	w := testWorker(queue.New(10, 0), &fakeCatalog{}, &fakeParams{})

	assert.True(t, w.RequestRefill())
	assert.False(t, w.RequestRefill(), "second submission rejected while one is pending")

	<-w.triggerCh
	assert.True(t, w.RequestRefill())
}

func TestTriggerRefill_SkipsWhenBusy(t *testing.T) {
	q := queue.New(100, 0)
	catalog := &fakeCatalog{records: records(20)}
	w := testWorker(q, catalog, &fakeParams{params: domain.SearchParams{Term: "x"}})

	w.refillMu.Lock()
	assert.False(t, w.TriggerRefill(context.Background()))
	w.refillMu.Unlock()

	assert.True(t, w.TriggerRefill(context.Background()))
	assert.Equal(t, 10, q.Size())
}

func TestRun_CancelStopsLoop(t *testing.T) {
	q := queue.New(100, 0)
	catalog := &fakeCatalog{records: records(50)}
	w := testWorker(q, catalog, &fakeParams{params: domain.SearchParams{Term: "x"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return q.Size() > 0 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, w.Running())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker loop did not stop")
	}
	assert.False(t, w.Running())
}

func TestStats(t *testing.T) {
	q := queue.New(100, 0)
	w := testWorker(q, &fakeCatalog{}, &fakeParams{})
	w.keywords.Append("a", "b")

	st := w.Stats()
	assert.False(t, st.Running)
	assert.Equal(t, maxFailures, st.MaxFailures)
	assert.False(t, st.RefillInProgress)
	assert.Equal(t, 10, st.PollIntervalMS)
	assert.Equal(t, 5, st.MinThreshold)
	assert.Equal(t, 10, st.BatchSize)
	assert.Equal(t, 30, st.MaxCap)
	assert.Equal(t, 2, st.KeywordQueueSize)
	assert.Equal(t, 14, st.KeywordRefillThreshold)
	assert.Empty(t, st.CurrentSearchStrategy, "param source without introspection")

	w.refillMu.Lock()
	st = w.Stats()
	w.refillMu.Unlock()
	assert.True(t, st.RefillInProgress)
}

func TestMinThreshold(t *testing.T) {
	w := testWorker(queue.New(10, 0), &fakeCatalog{}, &fakeParams{})
	assert.Equal(t, 5, w.MinThreshold())
}
