package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKV keeps one device's secure keys as fields of a single Redis hash.
type RedisKV struct {
	redis redis.UniversalClient
	key   string
}

// NewRedisKV stores fields under the hash "{prefix}:{deviceID}".
func NewRedisKV(client redis.UniversalClient, prefix, deviceID string) *RedisKV {
	if prefix == "" {
		prefix = "hubauth:secure"
	}
	return &RedisKV{redis: client, key: prefix + ":" + deviceID}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.redis.HGet(ctx, r.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.redis.HSet(ctx, r.key, key, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.redis.HDel(ctx, r.key, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
