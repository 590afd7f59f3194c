// Package applerss fetches the Apple Music most-played feed used by
// the chart keyword strategy.
package applerss

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/otodoki/otodoki/internal/domain"
)

const defaultBaseURL = "https://rss.applemarketingtools.com/api/v2"

// feedTimeout bounds the chart feed fetch independently of the
// catalog timeout.
const feedTimeout = 10 * time.Second

// Client implements domain.ChartFeed.
type Client struct {
	hc      *http.Client
	baseURL string
}

// New constructs a chart feed client.
func New() *Client {
	return &Client{
		hc: &http.Client{
			Timeout:   feedTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: defaultBaseURL,
	}
}

type feedResponse struct {
	Feed struct {
		Results []domain.ChartEntry `json:"results"`
	} `json:"feed"`
}

// TopSongs fetches the most-played songs for a country.
func (c *Client) TopSongs(ctx domain.Context, country string, limit int) ([]domain.ChartEntry, error) {
	url := fmt.Sprintf("%s/%s/music/most-played/%d/songs.json", c.baseURL, country, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart feed fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart feed status %d", resp.StatusCode)
	}
	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("chart feed decode: %w", err)
	}
	return body.Feed.Results, nil
}
