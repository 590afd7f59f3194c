// Package strategy provides the search strategies that feed the
// replenishment worker with catalog search parameters, and the
// rotator that cycles over them with per-strategy cooldown.
package strategy

import (
	"fmt"
	"log/slog"

	"github.com/otodoki/otodoki/internal/config"
	"github.com/otodoki/otodoki/internal/domain"
)

// Deps carries the collaborators strategy constructors may need.
type Deps struct {
	Cfg      config.Config
	Chart    domain.ChartFeed
	Keywords domain.KeywordGenerator
}

// builders is the compile-time registry mapping strategy names to
// constructors. Configuration still selects strategies by name.
var builders = []struct {
	name  string
	build func(Deps) (domain.SearchStrategy, error)
}{
	{NameRandomKeyword, func(d Deps) (domain.SearchStrategy, error) { return NewRandomKeyword(), nil }},
	{NameArtistSearch, func(d Deps) (domain.SearchStrategy, error) { return NewArtistSearch(d.Cfg.ITunesTerms), nil }},
	{NameGenreSearch, func(d Deps) (domain.SearchStrategy, error) { return NewGenreSearch(d.Cfg.SearchGenres), nil }},
	{NameReleaseYearSearch, func(d Deps) (domain.SearchStrategy, error) { return NewReleaseYearSearch(d.Cfg.SearchYears), nil }},
	{NameChartKeyword, func(d Deps) (domain.SearchStrategy, error) {
		if d.Chart == nil {
			return nil, fmt.Errorf("%w: chart feed not configured", domain.ErrInvalidArgument)
		}
		return NewChartKeyword(d.Chart, d.Cfg.Country), nil
	}},
	{NameGeminiKeyword, func(d Deps) (domain.SearchStrategy, error) {
		if d.Keywords == nil {
			return nil, fmt.Errorf("%w: keyword generator not configured", domain.ErrInvalidArgument)
		}
		return NewGeminiKeyword(d.Keywords), nil
	}},
}

// Strategy names accepted in configuration.
const (
	NameRandomKeyword     = "random_keyword"
	NameArtistSearch      = "artist_search"
	NameGenreSearch       = "genre_search"
	NameReleaseYearSearch = "release_year_search"
	NameChartKeyword      = "chart_keyword"
	NameGeminiKeyword     = "gemini_keyword"
)

// Names lists all registered strategy names in registry order.
func Names() []string {
	out := make([]string, len(builders))
	for i, b := range builders {
		out[i] = b.name
	}
	return out
}

// New constructs a single strategy by name.
func New(name string, deps Deps) (domain.SearchStrategy, error) {
	for _, b := range builders {
		if b.name == name {
			return b.build(deps)
		}
	}
	return nil, fmt.Errorf("%w: unknown search strategy %q", domain.ErrNotFound, name)
}

// BuildAll instantiates every registered strategy that can be built
// with the given deps, with the preferred strategy first. Strategies
// whose constructors fail (e.g. a missing API key) are skipped.
func BuildAll(deps Deps, preferred string) []domain.SearchStrategy {
	names := Names()
	ordered := make([]string, 0, len(names))
	for _, n := range names {
		if n == preferred {
			ordered = append([]string{n}, ordered...)
		} else {
			ordered = append(ordered, n)
		}
	}

	out := make([]domain.SearchStrategy, 0, len(ordered))
	for _, n := range ordered {
		s, err := New(n, deps)
		if err != nil {
			slog.Warn("skipping unavailable strategy", slog.String("strategy", n), slog.Any("error", err))
			continue
		}
		out = append(out, s)
	}
	return out
}
