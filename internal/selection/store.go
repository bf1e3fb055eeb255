package selection

import (
	"slices"

	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/pricing"
)

// State is a read-only snapshot of the selection.
type State struct {
	Vehicle  catalog.Vehicle  `json:"selectedVehicle"`
	City     pricing.City     `json:"selectedCity"`
	Services []string         `json:"selectedServices"`
	Addons   []string         `json:"selectedAddons"`
	Estimate pricing.Estimate `json:"estimate"`
}

// Listener receives a snapshot after every committed mutation.
type Listener func(State)

// Store owns the id-based selection for one visitor. It is not safe for concurrent use;
// callers serialise access.
type Store struct {
	catalog     *catalog.Catalog
	defaultCity pricing.City

	vehicle  catalog.Vehicle
	city     pricing.City
	services []string
	addons   []string
	estimate pricing.Estimate

	listeners map[int]Listener
	nextID    int
}

// Option customises a Store.
type Option func(*Store)

// WithDefaultCity overrides the city used by New and Reset. Invalid cities are ignored.
func WithDefaultCity(c pricing.City) Option {
	return func(s *Store) {
		if c.Valid() {
			s.defaultCity = c
		}
	}
}

// New constructs a Store in its default state.
func New(cat *catalog.Catalog, opts ...Option) *Store {
	s := &Store{
		catalog:     cat,
		defaultCity: pricing.DefaultCity,
		listeners:   map[int]Listener{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.vehicle = catalog.DefaultVehicle
	s.city = s.defaultCity
	s.recompute()
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	return State{
		Vehicle:  s.vehicle,
		City:     s.city,
		Services: slices.Clone(nonNil(s.services)),
		Addons:   slices.Clone(nonNil(s.addons)),
		Estimate: s.estimate,
	}
}

// Estimate returns the derived estimate for the current selection.
func (s *Store) Estimate() pricing.Estimate { return s.estimate }

// DefaultCity returns the city Reset restores.
func (s *Store) DefaultCity() pricing.City { return s.defaultCity }

// SetVehicle switches vehicle and clears both selections.
func (s *Store) SetVehicle(v catalog.Vehicle) {
	s.vehicle = v
	s.services = nil
	s.addons = nil
	s.commit()
}

// SetCity switches city. Selections are kept; only prices change.
func (s *Store) SetCity(c pricing.City) {
	s.city = c
	s.commit()
}

// ToggleService adds id when absent and removes it when present.
func (s *Store) ToggleService(id string) {
	s.services = toggle(s.services, id)
	s.commit()
}

// ToggleAddon adds id when absent and removes it when present.
func (s *Store) ToggleAddon(id string) {
	s.addons = toggle(s.addons, id)
	s.commit()
}

// HasService reports whether id is selected.
func (s *Store) HasService(id string) bool { return slices.Contains(s.services, id) }

// HasAddon reports whether id is selected.
func (s *Store) HasAddon(id string) bool { return slices.Contains(s.addons, id) }

// Reset restores bike, the default city and empty selections.
func (s *Store) Reset() {
	s.vehicle = catalog.DefaultVehicle
	s.city = s.defaultCity
	s.services = nil
	s.addons = nil
	s.commit()
}

// Restore replaces the source-of-truth fields with st, ignoring st.Estimate.
// Listeners are not notified; it is meant for hydration before first use.
func (s *Store) Restore(st State) {
	s.vehicle = st.Vehicle
	s.city = st.City
	s.services = slices.Clone(st.Services)
	s.addons = slices.Clone(st.Addons)
	s.recompute()
}

// Subscribe registers fn for change notifications and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

func (s *Store) commit() {
	s.recompute()
	if len(s.listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := s.listeners[id]; ok {
			fn(snap)
		}
	}
}

func (s *Store) recompute() {
	var cat pricing.Catalog
	if s.catalog != nil {
		cat = s.catalog.ForVehicle(s.vehicle)
	}
	s.estimate = pricing.CalculateEstimate(s.services, s.addons, s.city, cat)
}

func toggle(set []string, id string) []string {
	if idx := slices.Index(set, id); idx >= 0 {
		return slices.Delete(slices.Clone(set), idx, idx+1)
	}
	return append(slices.Clone(set), id)
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
