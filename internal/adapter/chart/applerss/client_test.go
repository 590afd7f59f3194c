package applerss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopSongs(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"feed":{"results":[
			{"name":"Song A","artistName":"Artist A"},
			{"name":"Song B","artistName":"Artist B"}
		]}}`))
	}))
	defer srv.Close()

	c := &Client{hc: &http.Client{Timeout: time.Second}, baseURL: srv.URL}
	entries, err := c.TopSongs(context.Background(), "jp", 100)
	require.NoError(t, err)

	assert.Equal(t, "/jp/music/most-played/100/songs.json", gotPath)
	require.Len(t, entries, 2)
	assert.Equal(t, "Song A", entries[0].Name)
	assert.Equal(t, "Artist B", entries[1].ArtistName)
}

func TestTopSongs_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{hc: &http.Client{Timeout: time.Second}, baseURL: srv.URL}
	_, err := c.TopSongs(context.Background(), "zz", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestTopSongs_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := &Client{hc: &http.Client{Timeout: time.Second}, baseURL: srv.URL}
	_, err := c.TopSongs(context.Background(), "jp", 10)
	require.Error(t, err)
}
