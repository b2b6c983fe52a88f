// internship-service
//
// Scrapes a public internship listings table on a schedule and posts every
// new listing to the Discord channels that registered with `!set_channel`.
//
//	internship-service serve    run the bot, the scheduler and /health
//	internship-service scrape   scrape once and print the listings
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"jobmate/internship-service/internal/config"
	"jobmate/internship-service/internal/scraper"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:          "internship-service",
	Short:        "Posts new internship listings to Discord channels.",
	Version:      version,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging installs a tint handler on stderr as the default logger.
func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	})))
}

// newWorker assembles the scrape pipeline for url from cfg.
func newWorker(cfg *config.Config, url string) *scraper.Worker {
	fetcher := scraper.NewFetcher(scraper.FetcherOptions{
		MaxRetries: cfg.FetchMaxRetries,
		RetryDelay: cfg.FetchRetryDelay,
		Timeout:    cfg.FetchTimeout,
	})
	extractor := scraper.NewExtractor(cfg.ContainerSelector, cfg.LockMarkers)
	dates := scraper.NewDateNormalizer(time.Now)
	return scraper.NewWorker(url, fetcher, extractor, dates, scraper.DefaultColumns())
}
