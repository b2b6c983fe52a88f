// Package model defines shared data structures for the internship service.
package model

import (
	"strings"
	"time"
)

// Listing is one internship posting scraped from the listings table.
type Listing struct {
	Company         string     `json:"company"`
	Role            string     `json:"role"`
	Location        string     `json:"location"`
	DatePosted      *time.Time `json:"datePosted"` // nil when the date cell could not be parsed
	RawDate         string     `json:"rawDate,omitempty"`
	ApplicationLink string     `json:"applicationLink"`
	RawRow          []string   `json:"rawRow"` // ordered cell values, the listing's identity
}

// rowSeparator never appears in scraped cell text.
const rowSeparator = "\x1f"

// Key returns the identity of the listing within one scrape.
// Two listings with the same raw cells share a key.
func (l Listing) Key() string {
	return RowKey(l.RawRow)
}

// HasDate reports whether the posting date was parsed.
func (l Listing) HasDate() bool { return l.DatePosted != nil }

// Subscription is a chat channel registered for listing updates.
// LastUpdate is the watermark: the time of the last batch delivered to the
// channel, or nil if nothing has been delivered yet.
type Subscription struct {
	ChannelID  string     `json:"-"`
	GuildID    string     `json:"guild_id,omitempty"`
	LastUpdate *time.Time `json:"last_update"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RowKey builds the identity key for a raw table row.
func RowKey(cells []string) string {
	return strings.Join(cells, rowSeparator)
}
