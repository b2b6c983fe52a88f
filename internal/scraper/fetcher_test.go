package scraper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobmate/internship-service/internal/scraper"
)

func TestFetcher_SucceedsAfterRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	f := scraper.NewFetcher(scraper.FetcherOptions{MaxRetries: 5, RetryDelay: time.Millisecond})
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", body)
	require.EqualValues(t, 3, hits.Load())
}

// ── Scenario B: every attempt fails ───────────────────────────────────────

func TestFetcher_GivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := scraper.NewFetcher(scraper.FetcherOptions{MaxRetries: 5, RetryDelay: time.Millisecond})
	body, err := f.Fetch(context.Background(), server.URL)
	require.Empty(t, body)
	require.ErrorIs(t, err, scraper.ErrFetchFailed)
	require.EqualValues(t, 5, hits.Load())

	var fe *scraper.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, 5, fe.Attempts)
	require.Equal(t, server.URL, fe.URL)
	require.ErrorContains(t, fe.Err, "500")
}

func TestFetcher_TimeoutCountsAsFailure(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := scraper.NewFetcher(scraper.FetcherOptions{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Timeout:    20 * time.Millisecond,
	})
	_, err := f.Fetch(context.Background(), server.URL)
	require.ErrorIs(t, err, scraper.ErrFetchFailed)
}

func TestFetcher_ContextCancelStopsRetrying(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := scraper.NewFetcher(scraper.FetcherOptions{MaxRetries: 5, RetryDelay: time.Hour})

	go func() {
		for hits.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := f.Fetch(ctx, server.URL)
	require.ErrorIs(t, err, scraper.ErrFetchFailed)
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 1, hits.Load())
}
