// Package store persists channel subscriptions and their watermarks.
//
// Every backend makes Register and Advance atomic per channel, so a
// registration can run while a scheduled tick is advancing watermarks.
package store

import (
	"context"
	"errors"
	"time"

	"jobmate/internship-service/internal/model"
)

// ErrNotFound is returned when a channel has no subscription.
var ErrNotFound = errors.New("subscription not found")

// Store is the subscription store used by the scheduler and the chat
// adapter.
type Store interface {
	// Register subscribes a channel. It is idempotent: an existing
	// subscription is returned unchanged with created == false.
	Register(ctx context.Context, channelID, guildID string) (sub model.Subscription, created bool, err error)

	// Get returns the subscription of a channel, or ErrNotFound.
	Get(ctx context.Context, channelID string) (model.Subscription, error)

	// List returns every subscription ordered by channel id.
	List(ctx context.Context) ([]model.Subscription, error)

	// Advance moves a channel's watermark forward to at. A watermark never
	// moves backwards: if the stored value is already later, it is kept.
	Advance(ctx context.Context, channelID string, at time.Time) error

	Close() error
}

// timeLayout is fixed-width so that UTC timestamps compare correctly as
// strings in the sqlite and redis backends.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func later(current *time.Time, at time.Time) bool {
	return current == nil || at.After(*current)
}
