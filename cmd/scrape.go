package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"jobmate/internship-service/internal/config"
	"jobmate/internship-service/internal/model"
)

func init() {
	scrapeCmd.Flags().String("url", "", "listings page to scrape (defaults to LISTINGS_URL)")
	scrapeCmd.Flags().Int("limit", 0, "print at most this many listings, newest last (0 prints all)")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes the listings page once and prints the result.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)

		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			url = cfg.ListingsURL
		}
		limit, _ := cmd.Flags().GetInt("limit")

		listings := newWorker(cfg, url).Run(cmd.Context())
		if len(listings) == 0 {
			return fmt.Errorf("no listings scraped from %s", url)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		renderListings(t, listings, limit)
		t.Render()
		return nil
	},
}

// renderListings fills t with the last limit listings (all when limit <= 0).
func renderListings(t table.Writer, listings []model.Listing, limit int) {
	if limit > 0 && limit < len(listings) {
		listings = listings[len(listings)-limit:]
	}

	t.AppendHeader(table.Row{"Company", "Role", "Location", "Date Posted", "Application Link"})
	for _, l := range listings {
		date := l.RawDate
		if l.DatePosted != nil {
			date = l.DatePosted.Format("2006-01-02")
		}
		t.AppendRow(table.Row{l.Company, l.Role, l.Location, date, l.ApplicationLink})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(listings)})
}
