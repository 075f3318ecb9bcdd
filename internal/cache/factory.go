package cache

import (
	"context"
	"fmt"

	"github.com/jonathan/job-matcher/internal/config"
	"github.com/jonathan/job-matcher/internal/db"
)

// New builds the backend named by cfg.Backend. database is required only for
// the postgres backend.
func New(ctx context.Context, cfg config.CacheConfig, database *db.DB) (Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return Noop{}, nil
	case "memory":
		return NewMemory(cfg.MaxEntries), nil
	case "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "sqlite":
		return NewSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		if database == nil {
			return nil, fmt.Errorf("postgres cache requires DATABASE_URL")
		}
		return NewPostgres(database), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
