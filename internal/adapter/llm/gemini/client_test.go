package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otodoki/otodoki/internal/config"
	"github.com/otodoki/otodoki/internal/domain"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(config.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	c, err := New(config.Config{GeminiAPIKey: "k", GeminiModel: "m"})
	require.NoError(t, err)
	require.NotNil(t, c)
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(config.Config{
		GeminiAPIKey:          "test-key",
		GeminiModel:           "gemini-1.5-flash",
		GeminiPrompt:          "generate keywords",
		GeminiTemperature:     0.9,
		GeminiTopP:            0.95,
		GeminiTopK:            40,
		GeminiMaxOutputTokens: 256,
	})
	require.NoError(t, err)
	c.baseURL = baseURL
	return c
}

func TestGenerateKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"back number, 春、卒業，J-POP"}]}}]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	got, err := c.GenerateKeywords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"back number", "春", "卒業", "J-POP"}, got)
}

func TestGenerateKeywords_429IsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GenerateKeywords(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamRateLimit)
}

func TestGenerateKeywords_QuotaBodyIsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"Quota exceeded for requests"}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GenerateKeywords(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamRateLimit)
}

func TestGenerateKeywords_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GenerateKeywords(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyResult)
}

func TestGenerateKeywords_PacesSecondCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"a,b"}]}}]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.minInterval = 2 * time.Second
	base := time.Now()
	c.now = func() time.Time { return base }

	var slept time.Duration
	c.sleep = func(_ domain.Context, d time.Duration) error {
		slept += d
		return nil
	}

	_, err := c.GenerateKeywords(context.Background())
	require.NoError(t, err)
	assert.Zero(t, slept, "first call is not paced")

	// Second call half a second later sleeps out the remainder.
	c.now = func() time.Time { return base.Add(500 * time.Millisecond) }
	_, err = c.GenerateKeywords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, slept)
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitKeywords("a,b,c"))
	assert.Equal(t, []string{"春", "卒業"}, SplitKeywords("春、卒業"))
	assert.Equal(t, []string{"x", "y"}, SplitKeywords(" x ，  y "))
	assert.Empty(t, SplitKeywords(""))
	assert.Empty(t, SplitKeywords(" , 、 ，"))
}
