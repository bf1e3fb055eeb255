package booking

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/servis-booking/internal/cart"
	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/events"
	"github.com/noah-isme/servis-booking/internal/obs"
	"github.com/noah-isme/servis-booking/internal/persist"
	"github.com/noah-isme/servis-booking/internal/pricing"
	"github.com/noah-isme/servis-booking/internal/selection"
)

// Session is one visitor's store pair. Callers must hold it through Manager.Acquire.
type Session struct {
	ID        string
	Selection *selection.Store
	Cart      *cart.Store

	mu       sync.Mutex
	lastSeen time.Time
	unbind   []func()

	// Set once the store is hydrated and writing through to storage.
	selectionBound bool
	cartBound      bool
}

// ManagerConfig configures the session registry.
type ManagerConfig struct {
	Catalog     *catalog.Catalog
	Binder      persist.Binder
	DefaultCity pricing.City
	IdleTTL     time.Duration
	Bus         *events.Bus
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Manager owns the in-memory sessions, hydrating them from storage on first use.
type Manager struct {
	cfg ManagerConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	if !cfg.DefaultCity.Valid() {
		cfg.DefaultCity = pricing.DefaultCity
	}
	return &Manager{cfg: cfg, sessions: map[string]*Session{}}
}

func (m *Manager) now() time.Time {
	if m.cfg.Now != nil {
		return m.cfg.Now()
	}
	return time.Now()
}

// NewSessionID returns a fresh visitor session id.
func NewSessionID() string { return uuid.NewString() }

// ValidSessionID reports whether id is a well-formed session id.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil && strings.TrimSpace(id) != ""
}

// Acquire returns the session for id with its lock held, creating and hydrating it when absent.
// A store whose load failed stays unbound and is hydrated again on the next Acquire.
// The returned release func must be called exactly once.
func (m *Manager) Acquire(ctx context.Context, id string) (*Session, func()) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		sess = &Session{
			ID:        id,
			Selection: selection.New(m.cfg.Catalog, selection.WithDefaultCity(m.cfg.DefaultCity)),
			Cart:      cart.New(),
		}
		sess.mu.Lock()
		m.sessions[id] = sess
	}
	sess.lastSeen = m.now()
	count := len(m.sessions)
	m.mu.Unlock()

	if ok {
		sess.mu.Lock()
	} else {
		obs.SetActiveSessions(count)
	}
	if !sess.selectionBound || !sess.cartBound {
		m.hydrate(ctx, sess)
	}
	return sess, sess.mu.Unlock
}

// hydrate loads and binds every store not yet bound. Loads outlive the request ctx but keep the binder timeout.
func (m *Manager) hydrate(ctx context.Context, sess *Session) {
	ctx = context.WithoutCancel(ctx)
	log := m.cfg.Logger.Debug().Str("session_id", sess.ID)

	if !sess.selectionBound {
		key := persist.Key(sess.ID, persist.SelectionKey)
		outcome := m.cfg.Binder.HydrateSelection(ctx, key, sess.Selection)
		if outcome != persist.OutcomeError {
			sess.unbind = append(sess.unbind, m.cfg.Binder.BindSelection(key, sess.Selection))
			sess.selectionBound = true
		}
		log = log.Str("selection", string(outcome))
	}
	if !sess.cartBound {
		key := persist.Key(sess.ID, persist.CartKey)
		outcome := m.cfg.Binder.HydrateCart(ctx, key, sess.Cart)
		if outcome != persist.OutcomeError {
			sess.unbind = append(sess.unbind, m.cfg.Binder.BindCart(key, sess.Cart))
			sess.cartBound = true
		}
		log = log.Str("cart", string(outcome))
	}
	log.Msg("session hydrated")
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle since before now minus the idle TTL. Sessions in use are skipped.
// Evicted state remains in storage and is hydrated again on the next request.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-m.cfg.IdleTTL)
	var expired []*Session

	m.mu.Lock()
	for id, sess := range m.sessions {
		if !sess.lastSeen.Before(cutoff) || !sess.mu.TryLock() {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, sess)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, sess := range expired {
		for _, cancel := range sess.unbind {
			cancel()
		}
		sess.unbind = nil
		sess.selectionBound, sess.cartBound = false, false
		sess.mu.Unlock()
		if m.cfg.Bus != nil {
			payload := map[string]any{"lastSeen": sess.lastSeen.UTC()}
			if _, err := m.cfg.Bus.Emit(ctx, events.TopicSessionExpired, sess.ID, payload); err != nil {
				m.cfg.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("emit session expiry")
			}
		}
	}
	obs.SetActiveSessions(remaining)
	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := m.Sweep(ctx, t); n > 0 {
				m.cfg.Logger.Info().Int("evicted", n).Msg("idle sessions swept")
			}
		}
	}
}
