// Package cache provides a small in-process LRU with per-entry expiry.
package cache

import "time"

// Cache is a bounded key/value cache with optional TTL.
type Cache[V any] interface {
	Set(key string, value V)
	Get(key string) (V, bool)
	Delete(key string) bool
	Purge()
	Len() int
	Stats() Stats
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type options struct {
	ttl time.Duration
	now func() time.Time
}

// Option configures a cache at construction.
type Option func(*options)

// WithTTL expires entries d after they were last written.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		o.ttl = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
