package persist

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage stores blobs in Redis with a sliding TTL.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage constructs a Redis-backed Storage. A non-positive ttl keeps keys forever.
func NewRedisStorage(client *redis.Client, prefix string, ttl time.Duration) *RedisStorage {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

// Load reports whether the key existed and returns its payload.
func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if r == nil || r.client == nil || key == "" {
		return nil, false, nil
	}
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save writes data with the configured TTL.
func (r *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	if r == nil || r.client == nil || key == "" {
		return errors.New("persist: redis storage not configured")
	}
	return r.client.Set(ctx, r.prefix+key, data, r.ttl).Err()
}

// Delete removes key.
func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil || key == "" {
		return nil
	}
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Ping checks connectivity.
func (r *RedisStorage) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return errors.New("persist: redis storage not configured")
	}
	return r.client.Ping(ctx).Err()
}
