package itunes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otodoki/otodoki/internal/domain"
)

func testClient(baseURL string, retryMax int) *Client {
	return &Client{
		hc:        &http.Client{Timeout: 2 * time.Second},
		baseURL:   baseURL,
		country:   "jp",
		lang:      "ja_jp",
		retryMax:  retryMax,
		retryBase: time.Millisecond,
	}
}

func TestSearch_QueryDefaults(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"trackId":1,"trackName":"T","artistName":"A","previewUrl":"p","artworkUrl100":"u"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	recs, err := c.Search(context.Background(), domain.SearchParams{Term: "春"}, 500)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "春", gotQuery["term"][0])
	assert.Equal(t, "music", gotQuery["media"][0])
	assert.Equal(t, "200", gotQuery["limit"][0], "limit clipped to the API maximum")
	assert.Equal(t, "jp", gotQuery["country"][0])
	assert.Equal(t, "ja_jp", gotQuery["lang"][0])
	assert.NotContains(t, gotQuery, "entity")
	assert.NotContains(t, gotQuery, "attribute")
}

func TestSearch_EntityAndAttributeForwarded(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	_, err := c.Search(context.Background(), domain.SearchParams{
		Term:      "2020",
		Entity:    "song",
		Attribute: "releaseYearTerm",
	}, 50)
	require.NoError(t, err)
	assert.Equal(t, "song", gotQuery["entity"][0])
	assert.Equal(t, "releaseYearTerm", gotQuery["attribute"][0])
	assert.Equal(t, "50", gotQuery["limit"][0])
}

func TestSearch_4xxReturnsEmptyWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	recs, err := c.Search(context.Background(), domain.SearchParams{Term: "x"}, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_5xxRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"trackId":7,"trackName":"T","artistName":"A","previewUrl":"p","artworkUrl100":"u"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	recs, err := c.Search(context.Background(), domain.SearchParams{Term: "x"}, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(7), recs[0].TrackID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearch_5xxExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2)
	_, err := c.Search(context.Background(), domain.SearchParams{Term: "x"}, 10)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestSearch_TimeoutTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	c.hc.Timeout = 20 * time.Millisecond
	_, err := c.Search(context.Background(), domain.SearchParams{Term: "x"}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
}

func TestSearch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	_, err := c.Search(context.Background(), domain.SearchParams{Term: "x"}, 10)
	require.Error(t, err)
}
