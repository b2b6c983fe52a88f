// Package scraper implements listing fetching, table extraction, date
// normalisation and diffing.
package scraper

import "strings"

// ContainsMarker returns true if any marker appears (case-insensitive)
// anywhere in text.
//
// Called on every table cell: a cell carrying a lock marker means the
// listing is closed or opted out, and the whole row is dropped.
func ContainsMarker(text string, markers []string) bool {
	if len(markers) == 0 {
		return false
	}
	lowered := strings.ToLower(text)
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
