package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"jobmate/internship-service/internal/model"
)

// PageFetcher retrieves the raw HTML of a page. *Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Worker runs the scrape pipeline for the listings page:
// fetch, extract the table, normalise dates and sort.
type Worker struct {
	url       string
	fetcher   PageFetcher
	extractor *Extractor
	dates     *DateNormalizer
	columns   Columns
	log       *slog.Logger
}

// NewWorker constructs a Worker.
func NewWorker(url string, fetcher PageFetcher, extractor *Extractor, dates *DateNormalizer, columns Columns) *Worker {
	return &Worker{
		url:       url,
		fetcher:   fetcher,
		extractor: extractor,
		dates:     dates,
		columns:   columns,
		log:       slog.With("component", "worker"),
	}
}

// URL returns the listings page the worker scrapes.
func (w *Worker) URL() string { return w.url }

// Run executes one scrape and returns the sorted scrape result.
// Fetch and parse failures are logged and yield an empty result; Run never
// returns an error so a bad tick cannot take the scheduler down.
func (w *Worker) Run(ctx context.Context) []model.Listing {
	start := time.Now()
	w.log.InfoContext(ctx, "starting scrape", "url", w.url)

	html, err := w.fetcher.Fetch(ctx, w.url)
	if err != nil {
		w.log.ErrorContext(ctx, "fetch failed, scrape result is empty", "url", w.url, "err", err)
		return nil
	}

	table, err := w.extractor.Extract(html)
	if err != nil {
		if errors.Is(err, ErrParse) {
			w.log.WarnContext(ctx, "could not extract listings table", "url", w.url, "err", err)
		} else {
			w.log.ErrorContext(ctx, "extract failed", "url", w.url, "err", err)
		}
		return nil
	}

	listings := NormalizeAndSort(table, w.columns, w.dates)

	var undated int
	for _, l := range listings {
		if !l.HasDate() {
			undated++
		}
	}

	w.log.InfoContext(ctx, "scrape done",
		"listings", len(listings), "undated", undated, "elapsed", time.Since(start).Round(time.Millisecond))
	return listings
}
