package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const flagSuffix = ":flag"

// RedisStore implements Store on Redis. Counters use INCR and EXPIRE inside
// one MULTI/EXEC so the increment and the TTL refresh are applied together.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore parses url, connects and pings the server.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("counter: redis url must not be empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("counter: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("counter: redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client without pinging it.
func NewRedisStoreFromClient(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("counter: redis client must not be nil")
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counter: redis incr %q: %w", key, err)
	}
	return int(incr.Val()), nil
}

func (r *RedisStore) GetCurrent(ctx context.Context, key string) (int, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter: redis get %q: %w", key, err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("counter: redis value %q is not an integer: %w", key, err)
	}
	return n, nil
}

// Reset deletes both the counter and the flag stored under key.
func (r *RedisStore) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key, key+flagSuffix).Err(); err != nil {
		return fmt.Errorf("counter: redis del %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) SetFlag(ctx context.Context, key string, value bool, ttl time.Duration) error {
	if !value {
		if err := r.client.Del(ctx, key+flagSuffix).Err(); err != nil {
			return fmt.Errorf("counter: redis clear flag %q: %w", key, err)
		}
		return nil
	}
	if err := r.client.Set(ctx, key+flagSuffix, "1", ttl).Err(); err != nil {
		return fmt.Errorf("counter: redis set flag %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) GetFlag(ctx context.Context, key string) (bool, error) {
	val, err := r.client.Get(ctx, key+flagSuffix).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("counter: redis get flag %q: %w", key, err)
	}
	return val == "1", nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
