package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/config"
)

// Open builds the store selected by cfg. An empty driver yields a
// MemoryStore.
func Open(ctx context.Context, cfg config.StoreConfig) (SnapshotStore, error) {
	switch cfg.Driver {
	case "":
		return NewMemoryStore(), nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		s, err := NewSQLiteStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		s := NewPostgresStore(db)
		if err := s.Init(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: parse redis url: %w", err)
		}
		return NewRedisStore(redis.NewClient(opts), "helm-sim:snapshot:"), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
