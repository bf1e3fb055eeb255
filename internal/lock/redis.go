package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned when the mutex has no Redis client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Mutex serialises work on a key across processes sharing one Redis.
type Mutex struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
	Retry  time.Duration
}

func (m Mutex) ttl() time.Duration {
	if m.TTL <= 0 {
		return 10 * time.Second
	}
	return m.TTL
}

func (m Mutex) retry() time.Duration {
	if m.Retry <= 0 {
		return 25 * time.Millisecond
	}
	return m.Retry
}

// WithLock runs fn while holding key. It waits for a competing holder until ctx is done.
func (m Mutex) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if m.Client == nil {
		return ErrNotConfigured
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	full := m.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(m.retry())
	defer ticker.Stop()
	for {
		ok, err := m.Client.SetNX(ctx, full, token, m.ttl()).Result()
		if err != nil {
			return fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	defer m.release(full, token)
	return fn(ctx)
}

// release runs on a fresh context so a cancelled caller still frees the key.
func (m Mutex) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, m.Client, []string{key}, token).Err()
}
