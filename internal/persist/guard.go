package persist

import (
	"context"

	"github.com/noah-isme/servis-booking/internal/resilience"
)

// GuardedStorage routes Storage calls through a circuit breaker so an unreachable
// backend fails fast instead of stalling every mutation for the full timeout.
type GuardedStorage struct {
	Storage Storage
	Breaker *resilience.Breaker
}

// Load implements Storage.
func (g GuardedStorage) Load(ctx context.Context, key string) (data []byte, ok bool, err error) {
	err = g.Breaker.Do(ctx, func(ctx context.Context) error {
		var loadErr error
		data, ok, loadErr = g.Storage.Load(ctx, key)
		return loadErr
	})
	return data, ok, err
}

// Save implements Storage.
func (g GuardedStorage) Save(ctx context.Context, key string, data []byte) error {
	return g.Breaker.Do(ctx, func(ctx context.Context) error {
		return g.Storage.Save(ctx, key, data)
	})
}

// Delete implements Storage.
func (g GuardedStorage) Delete(ctx context.Context, key string) error {
	return g.Breaker.Do(ctx, func(ctx context.Context) error {
		return g.Storage.Delete(ctx, key)
	})
}
