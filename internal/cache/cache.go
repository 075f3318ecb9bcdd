// Package cache provides the key/value store used to memoize rendered
// job postings. Every backend honours a per-entry TTL; a TTL of zero means
// the entry never expires.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// Cache is a string key/value store with expiry.
type Cache interface {
	// Get returns the value and true when key is present and fresh.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores value under key. ttl <= 0 stores without expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Evict removes key. Missing keys are not an error.
	Evict(ctx context.Context, key string) error
	Close() error
}

// Noop never stores anything.
type Noop struct{}

// Get implements Cache.
func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Put implements Cache.
func (Noop) Put(context.Context, string, string, time.Duration) error { return nil }

// Evict implements Cache.
func (Noop) Evict(context.Context, string) error { return nil }

// Close implements Cache.
func (Noop) Close() error { return nil }

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
