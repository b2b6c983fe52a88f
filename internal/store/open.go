package store

import (
	"context"
	"fmt"
	"log/slog"

	"jobmate/internship-service/internal/config"
	"jobmate/internship-service/internal/db"
)

// Open returns the backend selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		slog.Info("using file subscription store", "path", cfg.ChannelConfigPath)
		return OpenFileStore(cfg.ChannelConfigPath)

	case config.BackendSQLite:
		slog.Info("using sqlite subscription store", "path", cfg.SQLitePath)
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s, err := NewSQLiteStore(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return s, nil

	case config.BackendPostgres:
		slog.Info("using postgres subscription store")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil

	case config.BackendRedis:
		slog.Info("using redis subscription store")
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(rdb), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
