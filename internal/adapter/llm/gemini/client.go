// Package gemini implements the keyword generator backed by the
// Gemini generateContent API.
package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/otodoki/otodoki/internal/config"
	"github.com/otodoki/otodoki/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client implements domain.KeywordGenerator. Calls are paced so that
// at most one request goes out per minInterval; callers inside the
// interval sleep until it elapses. Owned by the worker task.
type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	model   string
	prompt  string

	temperature     float64
	topP            float64
	topK            int
	maxOutputTokens int

	minInterval time.Duration
	lastCall    time.Time

	now   func() time.Time
	sleep func(ctx domain.Context, d time.Duration) error
}

// New constructs a Gemini client from configuration. Returns an error
// when no API key is configured so the strategy loader can skip it.
func New(cfg config.Config) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: OTODOKI_GEMINI_API_KEY missing", domain.ErrInvalidArgument)
	}
	return &Client{
		hc: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:         defaultBaseURL,
		apiKey:          cfg.GeminiAPIKey,
		model:           cfg.GeminiModel,
		prompt:          cfg.GeminiPrompt,
		temperature:     cfg.GeminiTemperature,
		topP:            cfg.GeminiTopP,
		topK:            cfg.GeminiTopK,
		maxOutputTokens: cfg.GeminiMaxOutputTokens,
		minInterval:     cfg.GeminiMinInterval,
		now:             time.Now,
		sleep:           sleepCtx,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateKeywords asks the model for comma-separated search
// keywords and returns them split and trimmed. HTTP 429 is surfaced
// as domain.ErrUpstreamRateLimit so the rotator applies the longer
// quota cooldown.
func (c *Client) GenerateKeywords(ctx domain.Context) ([]string, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: c.prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			TopP:            c.topP,
			TopK:            c.topK,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.lastCall = c.now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: gemini status 429", domain.ErrUpstreamRateLimit)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if strings.Contains(strings.ToLower(string(snippet)), "quota") {
			return nil, fmt.Errorf("%w: gemini status %d", domain.ErrUpstreamRateLimit, resp.StatusCode)
		}
		return nil, fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("gemini decode: %w", err)
	}
	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no candidates", domain.ErrEmptyResult)
	}

	keywords := SplitKeywords(body.Candidates[0].Content.Parts[0].Text)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no keywords", domain.ErrEmptyResult)
	}
	slog.Info("generated keywords", slog.Int("count", len(keywords)))
	return keywords, nil
}

// pace sleeps until minInterval has elapsed since the previous call.
func (c *Client) pace(ctx domain.Context) error {
	if c.minInterval <= 0 || c.lastCall.IsZero() {
		return nil
	}
	elapsed := c.now().Sub(c.lastCall)
	if elapsed >= c.minInterval {
		return nil
	}
	wait := c.minInterval - elapsed
	slog.Debug("pacing gemini call", slog.Duration("wait", wait))
	return c.sleep(ctx, wait)
}

// SplitKeywords splits a comma-separated keyword response, accepting
// ASCII, full-width, and ideographic commas.
func SplitKeywords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '，' || r == '、'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
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
