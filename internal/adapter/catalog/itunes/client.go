// Package itunes implements the outbound catalog adapter against the
// iTunes Search API, plus the normalizer that turns raw search
// results into queueable tracks.
package itunes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/otodoki/otodoki/internal/adapter/observability"
	"github.com/otodoki/otodoki/internal/config"
	"github.com/otodoki/otodoki/internal/domain"
)

const (
	defaultBaseURL = "https://itunes.apple.com/search"

	// The search API caps result counts at 200 per request.
	maxSearchLimit = 200
)

// Client implements domain.CatalogClient against the iTunes Search API.
// Timeouts and 5xx responses are retried with exponential backoff;
// 4xx responses yield an empty result set without retrying.
type Client struct {
	hc       *http.Client
	baseURL  string
	country  string
	lang     string
	retryMax int

	// retryBase is the first backoff interval; each retry doubles it.
	retryBase time.Duration
}

// New constructs a catalog client from configuration.
func New(cfg config.Config) *Client {
	return &Client{
		hc: &http.Client{
			Timeout:   cfg.HTTPTimeout(),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:   defaultBaseURL,
		country:   strings.ToLower(cfg.Country),
		lang:      cfg.Lang,
		retryMax:  cfg.RetryMax,
		retryBase: time.Second,
	}
}

type searchResponse struct {
	Results []domain.CatalogRecord `json:"results"`
}

// Search queries the catalog with the given params. Defaults
// (media=music, configured country and lang, clipped limit) are
// applied first; params override them where set.
func (c *Client) Search(ctx domain.Context, params domain.SearchParams, limit int) ([]domain.CatalogRecord, error) {
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	q := url.Values{}
	q.Set("term", params.Term)
	q.Set("media", "music")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("lang", c.lang)
	q.Set("country", c.country)
	if params.Entity != "" {
		q.Set("entity", params.Entity)
	}
	if params.Attribute != "" {
		q.Set("attribute", params.Attribute)
	}
	reqURL := c.baseURL + "?" + q.Encode()

	var out []domain.CatalogRecord
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			if isTimeout(err) {
				observability.CatalogRequestsTotal.WithLabelValues("timeout").Inc()
				slog.Warn("catalog request timed out", slog.String("term", params.Term), slog.Any("error", err))
				return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
			}
			return backoff.Permanent(err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			// Non-retryable; surfaced as an empty result set.
			observability.CatalogRequestsTotal.WithLabelValues("4xx").Inc()
			slog.Warn("catalog 4xx response",
				slog.Int("status", resp.StatusCode),
				slog.String("term", params.Term))
			out = nil
			return nil
		case resp.StatusCode >= 500:
			observability.CatalogRequestsTotal.WithLabelValues("5xx").Inc()
			slog.Warn("catalog 5xx response",
				slog.Int("status", resp.StatusCode),
				slog.String("term", params.Term))
			return fmt.Errorf("catalog status %d", resp.StatusCode)
		}

		var body searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return backoff.Permanent(fmt.Errorf("catalog decode: %w", err))
		}
		observability.CatalogRequestsTotal.WithLabelValues("2xx").Inc()
		out = body.Results
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryBase
	expo.Multiplier = 2.0
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.retryMax)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	slog.Debug("catalog search completed",
		slog.String("term", params.Term),
		slog.Int("results", len(out)))
	return out, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, domain.ErrUpstreamTimeout)
}
