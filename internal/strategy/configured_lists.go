package strategy

import (
	"math/rand"

	"github.com/otodoki/otodoki/internal/domain"
)

// fallbackTerm is used when a configured list is empty so the
// strategy still produces something searchable.
const fallbackTerm = "J-POP"

// ArtistSearch picks one configured artist and searches music tracks.
type ArtistSearch struct {
	artists []string
}

// NewArtistSearch constructs the artist strategy from configuration.
func NewArtistSearch(artists []string) *ArtistSearch {
	return &ArtistSearch{artists: artists}
}

// Name implements domain.SearchStrategy.
func (s *ArtistSearch) Name() string { return NameArtistSearch }

// GenerateParams implements domain.SearchStrategy.
func (s *ArtistSearch) GenerateParams(_ domain.Context) (domain.SearchParams, error) {
	if len(s.artists) == 0 {
		return domain.SearchParams{Term: fallbackTerm}, nil
	}
	artist := s.artists[rand.Intn(len(s.artists))] //nolint:gosec
	return domain.SearchParams{Term: artist, Entity: "musicTrack"}, nil
}

// GenreSearch picks one configured genre and searches songs by genre.
type GenreSearch struct {
	genres []string
}

// NewGenreSearch constructs the genre strategy from configuration.
func NewGenreSearch(genres []string) *GenreSearch {
	return &GenreSearch{genres: genres}
}

// Name implements domain.SearchStrategy.
func (s *GenreSearch) Name() string { return NameGenreSearch }

// GenerateParams implements domain.SearchStrategy.
func (s *GenreSearch) GenerateParams(_ domain.Context) (domain.SearchParams, error) {
	if len(s.genres) == 0 {
		return domain.SearchParams{Term: fallbackTerm}, nil
	}
	genre := s.genres[rand.Intn(len(s.genres))] //nolint:gosec
	return domain.SearchParams{Term: genre, Entity: "song", Attribute: "genreIndex"}, nil
}

// ReleaseYearSearch picks one configured year and searches songs by
// release year.
type ReleaseYearSearch struct {
	years []string
}

// NewReleaseYearSearch constructs the release year strategy.
func NewReleaseYearSearch(years []string) *ReleaseYearSearch {
	return &ReleaseYearSearch{years: years}
}

// Name implements domain.SearchStrategy.
func (s *ReleaseYearSearch) Name() string { return NameReleaseYearSearch }

// GenerateParams implements domain.SearchStrategy.
func (s *ReleaseYearSearch) GenerateParams(_ domain.Context) (domain.SearchParams, error) {
	if len(s.years) == 0 {
		return domain.SearchParams{Term: fallbackTerm}, nil
	}
	year := s.years[rand.Intn(len(s.years))] //nolint:gosec
	return domain.SearchParams{Term: year, Entity: "song", Attribute: "releaseYearTerm"}, nil
}
