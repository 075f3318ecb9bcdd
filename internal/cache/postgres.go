package cache

import (
	"context"
	"time"

	"github.com/jonathan/job-matcher/internal/db"
)

// Postgres stores entries in the posting_cache table.
type Postgres struct {
	db *db.DB
}

// NewPostgres wraps an open database. The caller owns the connection.
func NewPostgres(database *db.DB) *Postgres {
	return &Postgres{db: database}
}

// Get implements Cache.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	row, err := p.db.GetFreshPosting(ctx, key)
	if err != nil || row == nil {
		return "", false, err
	}
	return row.Content, true, nil
}

// Put implements Cache.
func (p *Postgres) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return p.db.UpsertPosting(ctx, key, value, ttl)
}

// Evict implements Cache.
func (p *Postgres) Evict(ctx context.Context, key string) error {
	return p.db.DeletePosting(ctx, key)
}

// Close is a no-op; the pool is shared.
func (p *Postgres) Close() error {
	return nil
}
