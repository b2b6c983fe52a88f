package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jobmate/internship-service/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	channel_id  TEXT PRIMARY KEY,
	guild_id    TEXT NOT NULL DEFAULT '',
	last_update TEXT NULL,
	created_at  TEXT NOT NULL
);`

// SQLiteStore keeps subscriptions in a SQLite table. Timestamps are stored
// as fixed-width UTC text so the monotonic update can compare them in SQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the schema if needed and returns the store. The
// store takes ownership of conn.
func NewSQLiteStore(ctx context.Context, conn *sql.DB) (*SQLiteStore, error) {
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("migrate subscriptions: %w", err)
	}
	return &SQLiteStore{db: conn}, nil
}

func (s *SQLiteStore) Register(ctx context.Context, channelID, guildID string) (model.Subscription, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (channel_id, guild_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (channel_id) DO NOTHING`,
		channelID, guildID, formatTime(time.Now()),
	)
	if err != nil {
		return model.Subscription{}, false, fmt.Errorf("register %s: %w", channelID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Subscription{}, false, fmt.Errorf("register %s: %w", channelID, err)
	}

	sub, err := s.Get(ctx, channelID)
	if err != nil {
		return model.Subscription{}, false, err
	}
	return sub, n == 1, nil
}

func (s *SQLiteStore) Get(ctx context.Context, channelID string) (model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT channel_id, guild_id, last_update, created_at
		 FROM subscriptions WHERE channel_id = ?`,
		channelID,
	)
	sub, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subscription{}, ErrNotFound
	}
	if err != nil {
		return model.Subscription{}, fmt.Errorf("get %s: %w", channelID, err)
	}
	return sub, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, guild_id, last_update, created_at
		 FROM subscriptions ORDER BY channel_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]model.Subscription, 0)
	for rows.Next() {
		sub, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("list subscriptions scan: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) Advance(ctx context.Context, channelID string, at time.Time) error {
	ts := formatTime(at)
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_update = ?
		 WHERE channel_id = ? AND (last_update IS NULL OR last_update < ?)`,
		ts, channelID, ts,
	)
	if err != nil {
		return fmt.Errorf("advance %s: %w", channelID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	// Nothing updated: either the watermark is already later or the
	// channel is unknown.
	if _, err := s.Get(ctx, channelID); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (model.Subscription, error) {
	var (
		sub        model.Subscription
		lastUpdate sql.NullString
		createdAt  string
	)
	if err := row.Scan(&sub.ChannelID, &sub.GuildID, &lastUpdate, &createdAt); err != nil {
		return model.Subscription{}, err
	}

	var err error
	if sub.LastUpdate, err = parseTime(lastUpdate.String); err != nil {
		return model.Subscription{}, fmt.Errorf("last_update: %w", err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return model.Subscription{}, fmt.Errorf("created_at: %w", err)
	}
	if created != nil {
		sub.CreatedAt = *created
	}
	return sub, nil
}
