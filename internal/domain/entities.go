package domain

import (
	"context"
	"errors"
	"strings"
)

// Context aliases the standard context so ports read uniformly.
type Context = context.Context

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrEmptyResult       = errors.New("empty result")
	ErrNoStrategy        = errors.New("no strategy succeeded")
	ErrInternal          = errors.New("internal error")
)

// Track is a single playable candidate delivered to clients for
// swipe-style evaluation. ID is the catalog track identifier
// normalized to a string.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ArtworkURL string `json:"artwork_url,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
	Genre      string `json:"genre,omitempty"`
}

// Valid reports whether the track carries the fields required before
// it may enter the queue.
func (t Track) Valid() bool {
	return t.ID != "" && t.Title != "" && t.Artist != ""
}

// Playable reports whether the track has a preview clip to play.
func (t Track) Playable() bool { return t.PreviewURL != "" }

// SearchParams are catalog search parameters produced by a strategy.
// Exactly one of Term or Terms is set after validation; Entity and
// Attribute are forwarded verbatim to the catalog API when present.
type SearchParams struct {
	Term      string
	Terms     []string
	Entity    string
	Attribute string
}

// Normalize trims Term/Terms in place and reports whether the params
// still carry at least one usable search term.
func (p *SearchParams) Normalize() bool {
	if len(p.Terms) > 0 {
		out := p.Terms[:0]
		for _, t := range p.Terms {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
		p.Terms = out
		return len(out) > 0
	}
	p.Term = strings.TrimSpace(p.Term)
	return p.Term != ""
}

// CatalogRecord is a raw search result from the external catalog
// before normalization. Field names follow the iTunes Search API.
type CatalogRecord struct {
	TrackID          int64  `json:"trackId"`
	TrackName        string `json:"trackName"`
	ArtistName       string `json:"artistName"`
	PreviewURL       string `json:"previewUrl"`
	ArtworkURL100    string `json:"artworkUrl100"`
	CollectionName   string `json:"collectionName"`
	TrackTimeMillis  int    `json:"trackTimeMillis"`
	PrimaryGenreName string `json:"primaryGenreName"`
}

// Ports

// CatalogClient searches the external music catalog.
type CatalogClient interface {
	Search(ctx context.Context, params SearchParams, limit int) ([]CatalogRecord, error)
}

// TrackNormalizer converts raw catalog records into Tracks, dropping
// incomplete records and suppressing recently seen track ids.
type TrackNormalizer interface {
	Normalize(records []CatalogRecord) []Track
}

// ParamSource yields the next set of search parameters, rotating over
// the configured strategies.
type ParamSource interface {
	NextParams(ctx context.Context) (SearchParams, error)
}

// SearchStrategy is a named producer of catalog search parameters.
type SearchStrategy interface {
	Name() string
	GenerateParams(ctx context.Context) (SearchParams, error)
}

// ChartFeed fetches a popularity feed used to mine search keywords.
type ChartFeed interface {
	TopSongs(ctx context.Context, country string, limit int) ([]ChartEntry, error)
}

// ChartEntry is one song from the popularity feed.
type ChartEntry struct {
	Name       string `json:"name"`
	ArtistName string `json:"artistName"`
}

// KeywordGenerator produces free-form search keywords from an
// external text-generation service.
type KeywordGenerator interface {
	GenerateKeywords(ctx context.Context) ([]string, error)
}

// RefillScheduler is the worker surface the request path sees:
// best-effort scheduling of a one-shot refill.
type RefillScheduler interface {
	RequestRefill() bool
	MinThreshold() int
}
