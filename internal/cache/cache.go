// Package cache is the TTL response cache that fronts every upstream call.
// It is an optimization, never a correctness dependency: callers degrade to
// a direct upstream call when a backend fails.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is missing or its entry has gone stale.
// Stale entries are logically absent; backends evict them lazily on read.
var ErrMiss = errors.New("cache: miss")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error

	// InvalidateAll drops every entry. Backs the user-triggered
	// "refresh now" action.
	InvalidateAll(ctx context.Context) error
}
