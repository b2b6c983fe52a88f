package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultMaxRetries = 5
	defaultRetryDelay = 5 * time.Second
	defaultTimeout    = 10 * time.Second

	// Browser-like profile; plain Go user agents get served a trimmed page.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrFetchFailed is matched by every error returned from Fetch once the
// retry budget is spent.
var ErrFetchFailed = errors.New("fetch failed")

// FetchError reports a fetch that exhausted its attempts.
type FetchError struct {
	URL      string
	Attempts int
	Err      error // last attempt's error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: giving up after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetchFailed, e.Err} }

// FetcherOptions configures a Fetcher. A zero MaxRetries or Timeout takes
// the default (5 attempts, 10s per request); a negative RetryDelay takes the
// 5s default, zero retries immediately.
type FetcherOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Fetcher retrieves raw HTML with a bounded, fixed-delay retry loop.
type Fetcher struct {
	client     *resty.Client
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewFetcher constructs a fetcher with a shared HTTP client.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &Fetcher{
		client:     client,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		log:        slog.With("component", "fetcher"),
	}
}

// Fetch GETs url, retrying after a fixed delay on transport errors,
// timeouts and non-2xx responses. After MaxRetries failed attempts it
// returns a *FetchError; a cancelled ctx stops the loop early.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error
	attempt := 0

	for attempt < f.maxRetries {
		attempt++

		body, err := f.attempt(ctx, url)
		if err == nil {
			f.log.InfoContext(ctx, "fetched page",
				"url", url, "attempt", attempt, "max_retries", f.maxRetries, "bytes", len(body))
			return body, nil
		}

		lastErr = err
		f.log.ErrorContext(ctx, "fetch attempt failed",
			"url", url, "attempt", attempt, "max_retries", f.maxRetries, "err", err)

		if attempt == f.maxRetries {
			break
		}

		f.log.InfoContext(ctx, "retrying fetch", "url", url, "delay", f.retryDelay)
		if err := sleepCtx(ctx, f.retryDelay); err != nil {
			lastErr = err
			break
		}
	}

	f.log.ErrorContext(ctx, "max retries reached, scraping failed", "url", url, "attempts", attempt)
	return "", &FetchError{URL: url, Attempts: attempt, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (string, error) {
	res, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("http GET: %w", err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("unexpected status %d", res.StatusCode())
	}
	return res.String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
