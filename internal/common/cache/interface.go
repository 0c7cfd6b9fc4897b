package cache

import (
	"context"
	"time"
)

// Cache is the subset of Redis operations the judging service relies on:
// cache-aside reads, counters for rate limiting and single-holder locks.
type Cache interface {
	Ping(ctx context.Context) error
	Close() error

	// Get returns "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)

	// TryLock acquires key for ttl. It reports false when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
