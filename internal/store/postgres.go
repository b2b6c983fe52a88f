package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/internship-service/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS internship_subscriptions (
	channel_id  TEXT PRIMARY KEY,
	guild_id    TEXT NOT NULL DEFAULT '',
	last_update TIMESTAMPTZ NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps subscriptions in the internship_subscriptions table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the table if needed. The store takes ownership
// of pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("migrate internship_subscriptions: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Register(ctx context.Context, channelID, guildID string) (model.Subscription, bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO internship_subscriptions (channel_id, guild_id)
		 VALUES ($1, $2)
		 ON CONFLICT (channel_id) DO NOTHING`,
		channelID, guildID,
	)
	if err != nil {
		return model.Subscription{}, false, fmt.Errorf("register %s: %w", channelID, err)
	}

	sub, err := s.Get(ctx, channelID)
	if err != nil {
		return model.Subscription{}, false, err
	}
	return sub, tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Get(ctx context.Context, channelID string) (model.Subscription, error) {
	var sub model.Subscription
	err := s.pool.QueryRow(ctx,
		`SELECT channel_id, guild_id, last_update, created_at
		 FROM internship_subscriptions WHERE channel_id = $1`,
		channelID,
	).Scan(&sub.ChannelID, &sub.GuildID, &sub.LastUpdate, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Subscription{}, ErrNotFound
	}
	if err != nil {
		return model.Subscription{}, fmt.Errorf("get %s: %w", channelID, err)
	}
	return sub, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT channel_id, guild_id, last_update, created_at
		 FROM internship_subscriptions ORDER BY channel_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]model.Subscription, 0)
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.ChannelID, &sub.GuildID, &sub.LastUpdate, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("list subscriptions scan: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Advance relies on GREATEST ignoring NULL: an unset watermark takes at.
func (s *PostgresStore) Advance(ctx context.Context, channelID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE internship_subscriptions
		 SET last_update = GREATEST(last_update, $2::timestamptz)
		 WHERE channel_id = $1`,
		channelID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("advance %s: %w", channelID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
