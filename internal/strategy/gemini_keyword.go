package strategy

import (
	"github.com/otodoki/otodoki/internal/domain"
)

// GeminiKeyword asks an external text-generation service for search
// keywords. Quota errors propagate typed so the rotator applies the
// longer cooldown.
type GeminiKeyword struct {
	gen domain.KeywordGenerator
}

// NewGeminiKeyword constructs the LLM keyword strategy.
func NewGeminiKeyword(gen domain.KeywordGenerator) *GeminiKeyword {
	return &GeminiKeyword{gen: gen}
}

// Name implements domain.SearchStrategy.
func (s *GeminiKeyword) Name() string { return NameGeminiKeyword }

// GenerateParams implements domain.SearchStrategy.
func (s *GeminiKeyword) GenerateParams(ctx domain.Context) (domain.SearchParams, error) {
	terms, err := s.gen.GenerateKeywords(ctx)
	if err != nil {
		return domain.SearchParams{}, err
	}
	return domain.SearchParams{Terms: terms}, nil
}
