package strategy

import (
	"fmt"
	"strings"

	"github.com/otodoki/otodoki/internal/domain"
)

// chartFeedLimit is how many chart entries to mine for keywords.
const chartFeedLimit = 100

// ChartKeyword mines search terms from the most-played chart feed:
// artist names and song titles, deduplicated preserving first
// occurrence.
type ChartKeyword struct {
	feed    domain.ChartFeed
	country string
}

// NewChartKeyword constructs the chart keyword strategy.
func NewChartKeyword(feed domain.ChartFeed, country string) *ChartKeyword {
	return &ChartKeyword{feed: feed, country: strings.ToLower(country)}
}

// Name implements domain.SearchStrategy.
func (s *ChartKeyword) Name() string { return NameChartKeyword }

// GenerateParams implements domain.SearchStrategy.
func (s *ChartKeyword) GenerateParams(ctx domain.Context) (domain.SearchParams, error) {
	entries, err := s.feed.TopSongs(ctx, s.country, chartFeedLimit)
	if err != nil {
		return domain.SearchParams{}, fmt.Errorf("chart keyword: %w", err)
	}

	seen := make(map[string]struct{})
	terms := make([]string, 0, len(entries)*2)
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		terms = append(terms, v)
	}
	for _, e := range entries {
		add(e.ArtistName)
		add(e.Name)
	}

	if len(terms) == 0 {
		return domain.SearchParams{}, fmt.Errorf("%w: chart feed yielded no keywords", domain.ErrEmptyResult)
	}
	return domain.SearchParams{Terms: terms}, nil
}
