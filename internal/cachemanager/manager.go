// Package cachemanager provides TTL caches for memoising lookups that are expensive to
// recompute and cheap to invalidate wholesale.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a keyed TTL cache.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}

// Stats counts lookups since the cache was created or last flushed.
type Stats struct {
	Hits   uint64
	Misses uint64
	Items  int
}
