package persist

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/servis-booking/internal/cart"
	"github.com/noah-isme/servis-booking/internal/obs"
	"github.com/noah-isme/servis-booking/internal/selection"
)

const (
	storeSelection = "selection"
	storeCart      = "cart"
)

// Binder hydrates stores from Storage and mirrors their durable fields back after each mutation.
type Binder struct {
	Storage Storage
	Logger  zerolog.Logger
	Timeout time.Duration
}

func (b Binder) timeout() time.Duration {
	if b.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return b.Timeout
}

// HydrateSelection restores the selection stored under key. Anything short of a valid blob leaves the store at its defaults.
func (b Binder) HydrateSelection(ctx context.Context, key string, store *selection.Store) Outcome {
	data, outcome := b.load(ctx, key, storeSelection)
	if outcome != OutcomeRestored {
		return outcome
	}
	st, err := DecodeSelection(data, store.DefaultCity())
	if err != nil {
		b.Logger.Warn().Err(err).Str("key", key).Msg("discard malformed selection state")
		obs.RecordHydrate(storeSelection, string(OutcomeMalformed))
		return OutcomeMalformed
	}
	store.Restore(st)
	obs.RecordHydrate(storeSelection, string(OutcomeRestored))
	return OutcomeRestored
}

// HydrateCart restores cart line items stored under key.
func (b Binder) HydrateCart(ctx context.Context, key string, store *cart.Store) Outcome {
	data, outcome := b.load(ctx, key, storeCart)
	if outcome != OutcomeRestored {
		return outcome
	}
	services, addons, err := DecodeCart(data)
	if err != nil {
		b.Logger.Warn().Err(err).Str("key", key).Msg("discard malformed cart state")
		obs.RecordHydrate(storeCart, string(OutcomeMalformed))
		return OutcomeMalformed
	}
	store.Restore(services, addons)
	obs.RecordHydrate(storeCart, string(OutcomeRestored))
	return OutcomeRestored
}

// BindSelection writes the selection under key after every committed mutation.
func (b Binder) BindSelection(key string, store *selection.Store) func() {
	return store.Subscribe(func(st selection.State) {
		data, err := EncodeSelection(st)
		b.save(key, storeSelection, data, err)
	})
}

// BindCart writes the cart line items under key after every committed mutation.
func (b Binder) BindCart(key string, store *cart.Store) func() {
	return store.Subscribe(func(st cart.State) {
		data, err := EncodeCart(st)
		b.save(key, storeCart, data, err)
	})
}

func (b Binder) load(ctx context.Context, key, store string) ([]byte, Outcome) {
	if b.Storage == nil {
		return nil, OutcomeMissing
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()
	data, ok, err := b.Storage.Load(ctx, key)
	if err != nil {
		b.Logger.Warn().Err(err).Str("key", key).Msg("load persisted state")
		obs.RecordHydrate(store, string(OutcomeError))
		return nil, OutcomeError
	}
	if !ok {
		obs.RecordHydrate(store, string(OutcomeMissing))
		return nil, OutcomeMissing
	}
	return data, OutcomeRestored
}

// save never reports failure to the store; in-memory state stays authoritative.
func (b Binder) save(key, store string, data []byte, encodeErr error) {
	if b.Storage == nil {
		return
	}
	if encodeErr != nil {
		b.Logger.Error().Err(encodeErr).Str("key", key).Msg("encode persisted state")
		obs.RecordPersistWrite(store, "error")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout())
	defer cancel()
	if err := b.Storage.Save(ctx, key, data); err != nil {
		b.Logger.Warn().Err(err).Str("key", key).Msg("persist state")
		obs.RecordPersistWrite(store, "error")
		return
	}
	obs.RecordPersistWrite(store, "ok")
}
