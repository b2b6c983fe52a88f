package scraper

import (
	"time"

	"jobmate/internship-service/internal/model"
)

// DiffSnapshot returns the listings of fresh whose raw row does not appear
// in baseline, in fresh's order.
func DiffSnapshot(fresh, baseline []model.Listing) []model.Listing {
	known := make(map[string]struct{}, len(baseline))
	for _, l := range baseline {
		known[l.Key()] = struct{}{}
	}

	var out []model.Listing
	for _, l := range fresh {
		if _, ok := known[l.Key()]; !ok {
			out = append(out, l)
		}
	}
	return out
}

// DiffWatermark returns the listings a subscriber with the given watermark
// has not been sent yet.
//
// A nil watermark means nothing was ever delivered, so every listing is
// new. Otherwise only dated listings posted strictly after the watermark
// qualify; undated listings cannot be compared and are left out.
func DiffWatermark(fresh []model.Listing, watermark *time.Time) []model.Listing {
	if watermark == nil {
		return append([]model.Listing(nil), fresh...)
	}

	var out []model.Listing
	for _, l := range fresh {
		if l.DatePosted != nil && l.DatePosted.After(*watermark) {
			out = append(out, l)
		}
	}
	return out
}
