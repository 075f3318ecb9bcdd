package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetFreshPosting returns the cached posting for url if it has not expired.
func (db *DB) GetFreshPosting(ctx context.Context, url string) (*CachedPosting, error) {
	var p CachedPosting
	err := db.pool.QueryRow(ctx,
		`SELECT url, content, fetched_at, expires_at
		 FROM posting_cache
		 WHERE url = $1 AND (expires_at IS NULL OR expires_at > NOW())`,
		url,
	).Scan(&p.URL, &p.Content, &p.FetchedAt, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached posting: %w", err)
	}
	return &p, nil
}

// UpsertPosting stores content for url. A zero ttl never expires.
func (db *DB) UpsertPosting(ctx context.Context, url, content string, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO posting_cache (url, content, fetched_at, expires_at)
		 VALUES ($1, $2, NOW(), $3)
		 ON CONFLICT (url) DO UPDATE SET content = $2, fetched_at = NOW(), expires_at = $3`,
		url, content, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to cache posting: %w", err)
	}
	return nil
}

// DeletePosting removes url from the cache.
func (db *DB) DeletePosting(ctx context.Context, url string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM posting_cache WHERE url = $1`, url); err != nil {
		return fmt.Errorf("failed to delete cached posting: %w", err)
	}
	return nil
}

// PurgeExpiredPostings deletes expired rows and returns how many were removed.
func (db *DB) PurgeExpiredPostings(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM posting_cache WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cached postings: %w", err)
	}
	return tag.RowsAffected(), nil
}
