// Package queue implements the bounded, thread-safe FIFO of track
// candidates that the suggestions path drains and the replenishment
// worker keeps full.
package queue

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/otodoki/otodoki/internal/adapter/observability"
	"github.com/otodoki/otodoki/internal/domain"
)

// lowWatermarkWarnInterval rate-limits the low-watermark warning.
const lowWatermarkWarnInterval = time.Minute

// Queue is a bounded FIFO with drop-oldest overflow. All operations
// are safe for concurrent use; a single mutex guards the sequence and
// the counters, and overflow eviction runs inside the same critical
// section so readers never observe size > capacity.
type Queue struct {
	mu           sync.Mutex
	items        []domain.Track
	maxCapacity  int
	lowWatermark int

	enqueueCount int64
	dequeueCount int64
	droppedCount int64
	lastWarnAt   time.Time

	now func() time.Time
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	CurrentSize  int     `json:"current_size"`
	MaxCapacity  int     `json:"max_capacity"`
	LowWatermark int     `json:"low_watermark"`
	EnqueueCount int64   `json:"enqueue_count"`
	DequeueCount int64   `json:"dequeue_count"`
	DroppedCount int64   `json:"dropped_count"`
	IsLow        bool    `json:"is_low"`
	Utilization  float64 `json:"utilization"`
}

// New constructs a queue with the given capacity and low watermark.
func New(maxCapacity, lowWatermark int) *Queue {
	if maxCapacity < 1 {
		maxCapacity = 1
	}
	if lowWatermark < 0 {
		lowWatermark = 0
	}
	q := &Queue{
		maxCapacity:  maxCapacity,
		lowWatermark: lowWatermark,
		now:          time.Now,
	}
	slog.Info("track queue initialized",
		slog.Int("max_capacity", maxCapacity),
		slog.Int("low_watermark", lowWatermark))
	return q
}

// Enqueue appends valid tracks to the tail, evicting from the head
// when capacity would be exceeded. It returns the number of valid
// tracks received, whether or not some were later evicted.
func (q *Queue) Enqueue(items []domain.Track) int {
	if len(items) == 0 {
		return 0
	}

	valid := make([]domain.Track, 0, len(items))
	for _, it := range items {
		if !it.Valid() {
			slog.Warn("skipping invalid track",
				slog.String("id", it.ID),
				slog.String("title", it.Title),
				slog.String("artist", it.Artist))
			continue
		}
		valid = append(valid, it)
	}
	if len(valid) == 0 {
		return 0
	}

	q.mu.Lock()
	overflow := len(q.items) + len(valid) - q.maxCapacity
	if overflow > 0 {
		drop := overflow
		if drop > len(q.items) {
			drop = len(q.items)
		}
		q.items = q.items[drop:]
		q.droppedCount += int64(drop)
		observability.TracksDroppedTotal.Add(float64(drop))
	}
	q.items = append(q.items, valid...)
	if len(q.items) > q.maxCapacity {
		// More new items than capacity: keep the newest.
		extra := len(q.items) - q.maxCapacity
		q.items = q.items[extra:]
		q.droppedCount += int64(extra)
		observability.TracksDroppedTotal.Add(float64(extra))
	}
	q.enqueueCount += int64(len(valid))
	size := len(q.items)
	q.checkLowWatermarkLocked(size)
	q.mu.Unlock()

	observability.TracksEnqueuedTotal.Add(float64(len(valid)))
	observability.QueueDepth.Set(float64(size))
	return len(valid)
}

// ReEnqueue returns tracks to the queue, appending at the tail.
func (q *Queue) ReEnqueue(items []domain.Track) int {
	return q.Enqueue(items)
}

// Dequeue removes up to n tracks from the head in FIFO order.
func (q *Queue) Dequeue(n int) []domain.Track {
	if n <= 0 {
		return nil
	}

	q.mu.Lock()
	count := n
	if count > len(q.items) {
		count = len(q.items)
	}
	out := make([]domain.Track, count)
	copy(out, q.items[:count])
	q.items = q.items[count:]
	q.dequeueCount += int64(count)
	size := len(q.items)
	q.checkLowWatermarkLocked(size)
	q.mu.Unlock()

	observability.TracksDequeuedTotal.Add(float64(count))
	observability.QueueDepth.Set(float64(size))
	return out
}

// Contains reports whether a track with the given id is queued.
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.items {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Size returns the current number of queued tracks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the configured maximum capacity.
func (q *Queue) Capacity() int { return q.maxCapacity }

// LowWatermark returns the configured low watermark.
func (q *Queue) LowWatermark() int { return q.lowWatermark }

// Clear empties the queue and returns the previous size.
func (q *Queue) Clear() int {
	q.mu.Lock()
	prev := len(q.items)
	q.items = nil
	q.mu.Unlock()

	observability.QueueDepth.Set(0)
	slog.Info("queue cleared", slog.Int("removed", prev))
	return prev
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	size := len(q.items)
	util := 0.0
	if q.maxCapacity > 0 {
		util = math.Round(float64(size)/float64(q.maxCapacity)*10000) / 100
	}
	return Stats{
		CurrentSize:  size,
		MaxCapacity:  q.maxCapacity,
		LowWatermark: q.lowWatermark,
		EnqueueCount: q.enqueueCount,
		DequeueCount: q.dequeueCount,
		DroppedCount: q.droppedCount,
		IsLow:        size <= q.lowWatermark,
		Utilization:  util,
	}
}

// checkLowWatermarkLocked warns when the queue is at or below the low
// watermark, at most once per minute. Caller must hold q.mu.
func (q *Queue) checkLowWatermarkLocked(size int) {
	if size > q.lowWatermark {
		return
	}
	now := q.now()
	if now.Sub(q.lastWarnAt) < lowWatermarkWarnInterval {
		return
	}
	q.lastWarnAt = now
	slog.Warn("queue size below low watermark",
		slog.Int("size", size),
		slog.Int("low_watermark", q.lowWatermark))
}

// SelfCheck runs a basic enqueue/dequeue round-trip against the queue
// and reports whether the invariants held. Used at startup.
func SelfCheck(q *Queue) bool {
	test := domain.Track{
		ID:         "test_001",
		Title:      "Test Song",
		Artist:     "Test Artist",
		ArtworkURL: "https://example.com/art.jpg",
		PreviewURL: "https://example.com/preview.mp3",
	}

	initial := q.Size()
	if added := q.Enqueue([]domain.Track{test}); added != 1 {
		slog.Error("queue self-check failed", slog.String("step", "enqueue"), slog.Int("added", added))
		return false
	}
	if q.Size() != initial+1 {
		slog.Error("queue self-check failed", slog.String("step", "size_after_enqueue"))
		return false
	}
	if got := q.Dequeue(1); len(got) != 1 {
		slog.Error("queue self-check failed", slog.String("step", "dequeue"), slog.Int("got", len(got)))
		return false
	}
	if q.Size() != initial {
		slog.Error("queue self-check failed", slog.String("step", "size_after_dequeue"))
		return false
	}
	slog.Info("queue self-check completed")
	return true
}
