package counter

import (
	"context"
	"log/slog"
	"time"
)

// Fallback serves from a primary shared store and switches to an in-process
// store for any call the primary fails. Errors are logged, never returned.
type Fallback struct {
	primary  Store
	fallback *MemoryStore
	logger   *slog.Logger
}

// NewFallback wraps primary. A nil primary means every call goes to memory.
func NewFallback(primary Store, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		primary:  primary,
		fallback: NewMemoryStore(),
		logger:   logger,
	}
}

func (f *Fallback) degrade(op, key string, err error) {
	f.logger.Warn("counter store degraded to in-process fallback", "op", op, "key", key, "err", err)
}

func (f *Fallback) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error) {
	if f.primary != nil {
		n, err := f.primary.IncrementAndGet(ctx, key, ttl)
		if err == nil {
			return n, nil
		}
		f.degrade("increment", key, err)
	}
	return f.fallback.IncrementAndGet(ctx, key, ttl)
}

func (f *Fallback) GetCurrent(ctx context.Context, key string) (int, error) {
	if f.primary != nil {
		n, err := f.primary.GetCurrent(ctx, key)
		if err == nil {
			return n, nil
		}
		f.degrade("get", key, err)
	}
	return f.fallback.GetCurrent(ctx, key)
}

// Reset clears the key in both stores so a later fallback read cannot
// resurrect a stale value.
func (f *Fallback) Reset(ctx context.Context, key string) error {
	if f.primary != nil {
		if err := f.primary.Reset(ctx, key); err != nil {
			f.degrade("reset", key, err)
		}
	}
	return f.fallback.Reset(ctx, key)
}

func (f *Fallback) SetFlag(ctx context.Context, key string, value bool, ttl time.Duration) error {
	if f.primary != nil {
		err := f.primary.SetFlag(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		f.degrade("set_flag", key, err)
	}
	return f.fallback.SetFlag(ctx, key, value, ttl)
}

func (f *Fallback) GetFlag(ctx context.Context, key string) (bool, error) {
	if f.primary != nil {
		v, err := f.primary.GetFlag(ctx, key)
		if err == nil {
			return v, nil
		}
		f.degrade("get_flag", key, err)
	}
	return f.fallback.GetFlag(ctx, key)
}
