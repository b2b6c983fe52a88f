package scraper

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"jobmate/internship-service/internal/model"
)

// dateLayouts are tried in order; the first that parses wins. Day-first
// dates that are also valid month-first dates read as month-first.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"2/1/2006",
	"January 2, 2006",
	"Jan 2",
	"Jan 2, 2006",
}

// DateNormalizer parses the heterogeneous date strings found in the
// listings table.
type DateNormalizer struct {
	now func() time.Time
}

// NewDateNormalizer returns a normalizer. now anchors year-less dates
// such as "Jan 3"; nil means time.Now.
func NewDateNormalizer(now func() time.Time) *DateNormalizer {
	if now == nil {
		now = time.Now
	}
	return &DateNormalizer{now: now}
}

// Parse returns the date represented by s, or nil when no layout matches.
//
// A date without a year takes the reference year, or the year before when
// that would put it more than a day in the future.
func (n *DateNormalizer) Parse(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = n.withYear(t)
		}
		return &t
	}
	return nil
}

func (n *DateNormalizer) withYear(t time.Time) time.Time {
	ref := n.now().UTC()
	dated := time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if dated.After(ref.Add(24 * time.Hour)) {
		dated = dated.AddDate(-1, 0, 0)
	}
	return dated
}

// SortByDate orders listings ascending by posting date in place. Listings
// without a date go last; ties keep their table order.
func SortByDate(listings []model.Listing) {
	slices.SortStableFunc(listings, func(a, b model.Listing) int {
		switch {
		case a.DatePosted == nil && b.DatePosted == nil:
			return 0
		case a.DatePosted == nil:
			return 1
		case b.DatePosted == nil:
			return -1
		}
		return cmp.Compare(a.DatePosted.UnixNano(), b.DatePosted.UnixNano())
	})
}
