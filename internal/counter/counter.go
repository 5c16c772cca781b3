// Package counter provides per-key integer counters and boolean flags with a
// sliding TTL, shared across conversation turns.
package counter

import (
	"context"
	"time"
)

// DefaultTTL is the sliding expiry applied to counters and flags.
const DefaultTTL = 900 * time.Second

// Store is the counter and flag contract. IncrementAndGet must be atomic per
// key: concurrent callers never observe the same new value.
type Store interface {
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error)
	GetCurrent(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
	SetFlag(ctx context.Context, key string, value bool, ttl time.Duration) error
	GetFlag(ctx context.Context, key string) (bool, error)
}
