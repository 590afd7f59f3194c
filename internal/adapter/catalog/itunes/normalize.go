package itunes

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/otodoki/otodoki/internal/domain"
)

// defaultDedupeWindow is how long previously seen track ids are
// remembered before the set is cleared wholesale.
const defaultDedupeWindow = time.Minute

// Normalizer converts raw catalog records into Tracks. It drops
// records missing required fields, suppresses track ids seen within
// the dedupe window, and rewrites artwork URLs to the 600x600
// variant. Owned exclusively by the replenishment worker; not safe
// for concurrent use.
type Normalizer struct {
	recent      map[string]struct{}
	window      time.Duration
	lastCleanup time.Time

	now func() time.Time
}

// NewNormalizer constructs a normalizer with the given dedupe window.
// A non-positive window selects the default of one minute.
func NewNormalizer(window time.Duration) *Normalizer {
	if window <= 0 {
		window = defaultDedupeWindow
	}
	now := time.Now
	return &Normalizer{
		recent:      make(map[string]struct{}),
		window:      window,
		lastCleanup: now(),
		now:         now,
	}
}

// Normalize converts records to Tracks, in input order. The dedupe
// window check runs after the batch, so ids inserted by the batch
// that crosses the boundary are forgotten with the rest.
func (n *Normalizer) Normalize(records []domain.CatalogRecord) []domain.Track {
	tracks := make([]domain.Track, 0, len(records))
	skipped := 0
	duplicates := 0

	for _, rec := range records {
		if rec.TrackID == 0 || rec.TrackName == "" || rec.ArtistName == "" ||
			rec.PreviewURL == "" || rec.ArtworkURL100 == "" {
			skipped++
			continue
		}

		id := strconv.FormatInt(rec.TrackID, 10)
		if _, seen := n.recent[id]; seen {
			duplicates++
			continue
		}

		tracks = append(tracks, domain.Track{
			ID:         id,
			Title:      rec.TrackName,
			Artist:     rec.ArtistName,
			ArtworkURL: upscaleArtworkURL(rec.ArtworkURL100),
			PreviewURL: rec.PreviewURL,
			Album:      rec.CollectionName,
			DurationMS: rec.TrackTimeMillis,
			Genre:      rec.PrimaryGenreName,
		})
		n.recent[id] = struct{}{}
	}

	if skipped > 0 {
		slog.Warn("skipped records with missing fields", slog.Int("count", skipped))
	}
	if duplicates > 0 {
		slog.Info("suppressed duplicate tracks", slog.Int("count", duplicates))
	}

	n.cleanup()
	return tracks
}

// upscaleArtworkURL swaps the 100x100 artwork variant for 600x600.
func upscaleArtworkURL(u string) string {
	if strings.Contains(u, "100x100") {
		return strings.Replace(u, "100x100", "600x600", 1)
	}
	return u
}

// cleanup clears the recent-id set wholesale once per window.
func (n *Normalizer) cleanup() {
	now := n.now()
	if now.Sub(n.lastCleanup) < n.window {
		return
	}
	if len(n.recent) > 0 {
		slog.Debug("cleared recent track ids", slog.Int("count", len(n.recent)))
	}
	n.recent = make(map[string]struct{})
	n.lastCleanup = now
}
