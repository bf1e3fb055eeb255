package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/servis-booking/internal/persist"
	"github.com/noah-isme/servis-booking/internal/pricing"
	"github.com/noah-isme/servis-booking/internal/selection"
)

// flakyStorage fails the first failLoads calls to Load.
type flakyStorage struct {
	persist.Storage

	mu        sync.Mutex
	failLoads int
	loadCtxs  []error
}

func (f *flakyStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	f.loadCtxs = append(f.loadCtxs, ctx.Err())
	fail := f.failLoads > 0
	if fail {
		f.failLoads--
	}
	f.mu.Unlock()
	if fail {
		return nil, false, errors.New("transient")
	}
	return f.Storage.Load(ctx, key)
}

func newFlakyManager(t *testing.T, storage persist.Storage) *Manager {
	t.Helper()
	return NewManager(ManagerConfig{
		Catalog: testCatalog(t),
		Binder:  persist.Binder{Storage: storage, Logger: zerolog.Nop()},
		IdleTTL: time.Hour,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return fixedNow },
	})
}

func seedMumbaiSelection(t *testing.T, storage persist.Storage, session string) {
	t.Helper()
	st := selection.New(testCatalog(t))
	st.SetCity(pricing.CityMumbai)
	st.ToggleService("srv_001")
	st.ToggleService("srv_002")
	data, err := persist.EncodeSelection(st.Snapshot())
	require.NoError(t, err)
	require.NoError(t, storage.Save(context.Background(), persist.Key(session, persist.SelectionKey), data))
}

func storedSelection(t *testing.T, storage persist.Storage, session string) selection.State {
	t.Helper()
	data, ok, err := storage.Load(context.Background(), persist.Key(session, persist.SelectionKey))
	require.NoError(t, err)
	require.True(t, ok)
	st, err := persist.DecodeSelection(data, pricing.DefaultCity)
	require.NoError(t, err)
	return st
}

func TestAcquireKeepsStoredStateWhenLoadFails(t *testing.T) {
	mem := persist.NewMemoryStorage()
	session := NewSessionID()
	seedMumbaiSelection(t, mem, session)
	storage := &flakyStorage{Storage: mem, failLoads: 1}
	mgr := newFlakyManager(t, storage)

	sess, release := mgr.Acquire(context.Background(), session)
	require.Equal(t, pricing.DefaultCity, sess.Selection.Snapshot().City)
	sess.Selection.ToggleAddon("add_001")
	release()

	stored := storedSelection(t, mem, session)
	require.Equal(t, pricing.CityMumbai, stored.City)
	require.Equal(t, []string{"srv_001", "srv_002"}, stored.Services)
	require.Empty(t, stored.Addons)

	sess, release = mgr.Acquire(context.Background(), session)
	st := sess.Selection.Snapshot()
	require.Equal(t, pricing.CityMumbai, st.City)
	require.Equal(t, []string{"srv_001", "srv_002"}, st.Services)
	sess.Selection.ToggleAddon("add_001")
	release()

	stored = storedSelection(t, mem, session)
	require.Equal(t, pricing.CityMumbai, stored.City)
	require.Equal(t, []string{"add_001"}, stored.Addons)
}

func TestAcquireBindsOnlyOnce(t *testing.T) {
	storage := &flakyStorage{Storage: persist.NewMemoryStorage()}
	mgr := newFlakyManager(t, storage)
	session := NewSessionID()

	for range 3 {
		_, release := mgr.Acquire(context.Background(), session)
		release()
	}
	require.Len(t, storage.loadCtxs, 2)

	sess, release := mgr.Acquire(context.Background(), session)
	require.Len(t, sess.unbind, 2)
	release()
}

func TestAcquireHydratesDespiteCancelledRequest(t *testing.T) {
	mem := persist.NewMemoryStorage()
	session := NewSessionID()
	seedMumbaiSelection(t, mem, session)
	storage := &flakyStorage{Storage: mem}
	mgr := newFlakyManager(t, storage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sess, release := mgr.Acquire(ctx, session)
	defer release()

	require.Equal(t, pricing.CityMumbai, sess.Selection.Snapshot().City)
	for _, err := range storage.loadCtxs {
		require.NoError(t, err)
	}
}
