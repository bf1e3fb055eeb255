package cart

import (
	"slices"

	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/pricing"
)

// LineItem is a priced snapshot captured when the entry was added. It does not follow later catalog changes.
type LineItem struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	PriceMin pricing.Money   `json:"priceMin"`
	PriceMax pricing.Money   `json:"priceMax"`
	Vehicle  catalog.Vehicle `json:"vehicle,omitempty"`
	City     pricing.City    `json:"city"`
}

// Range returns the snapshot price as a range.
func (li LineItem) Range() pricing.Range {
	return pricing.Range{Min: li.PriceMin, Max: li.PriceMax}
}

// NewLineItem snapshots a catalog item priced for city.
func NewLineItem(item catalog.Item, city pricing.City) LineItem {
	adjusted := pricing.ApplyCityMultiplier(item.Price, city)
	return LineItem{
		ID:       item.ID,
		Title:    item.Title,
		PriceMin: adjusted.Min,
		PriceMax: adjusted.Max,
		Vehicle:  item.Vehicle,
		City:     city,
	}
}

// State is a read-only snapshot of the cart.
type State struct {
	Services []LineItem `json:"services"`
	Addons   []LineItem `json:"addons"`
	Open     bool       `json:"isOpen"`
}

// Listener receives a snapshot after every committed mutation.
type Listener func(State)

// Store holds denormalized line items for one visitor. It is not safe for concurrent use.
type Store struct {
	services []LineItem
	addons   []LineItem
	open     bool

	listeners map[int]Listener
	nextID    int
}

// New constructs an empty, closed cart.
func New() *Store {
	return &Store{listeners: map[int]Listener{}}
}

// AddService inserts item unless an entry with the same id exists. The first snapshot wins.
func (s *Store) AddService(item LineItem) {
	next, changed := add(s.services, item)
	if !changed {
		return
	}
	s.services = next
	s.commit()
}

// RemoveService deletes the entry with id, if any.
func (s *Store) RemoveService(id string) {
	next, changed := remove(s.services, id)
	if !changed {
		return
	}
	s.services = next
	s.commit()
}

// ToggleService removes item when its id is present, otherwise adds it.
func (s *Store) ToggleService(item LineItem) {
	if s.HasService(item.ID) {
		s.RemoveService(item.ID)
		return
	}
	s.AddService(item)
}

// AddAddon inserts item unless an addon with the same id exists.
func (s *Store) AddAddon(item LineItem) {
	next, changed := add(s.addons, item)
	if !changed {
		return
	}
	s.addons = next
	s.commit()
}

// RemoveAddon deletes the addon with id, if any.
func (s *Store) RemoveAddon(id string) {
	next, changed := remove(s.addons, id)
	if !changed {
		return
	}
	s.addons = next
	s.commit()
}

// HasService reports whether a service entry with id exists.
func (s *Store) HasService(id string) bool { return indexOf(s.services, id) >= 0 }

// HasAddon reports whether an addon entry with id exists.
func (s *Store) HasAddon(id string) bool { return indexOf(s.addons, id) >= 0 }

// SetOpen toggles the cart drawer flag.
func (s *Store) SetOpen(open bool) {
	if s.open == open {
		return
	}
	s.open = open
	s.commit()
}

// Clear empties both lists and closes the cart.
func (s *Store) Clear() {
	s.services = nil
	s.addons = nil
	s.open = false
	s.commit()
}

// Restore replaces the line items without notifying listeners. The open flag is left closed.
func (s *Store) Restore(services, addons []LineItem) {
	s.services = slices.Clone(services)
	s.addons = slices.Clone(addons)
	s.open = false
}

// Totals sums snapshot prices across services and addons.
func (s *Store) Totals() pricing.Range {
	var total pricing.Range
	for _, list := range [][]LineItem{s.services, s.addons} {
		for _, li := range list {
			total = total.Add(li.Range())
		}
	}
	return total
}

// ItemCount counts service entries only; addons do not contribute to the badge.
func (s *Store) ItemCount() int { return len(s.services) }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	return State{
		Services: cloneItems(s.services),
		Addons:   cloneItems(s.addons),
		Open:     s.open,
	}
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

func add(list []LineItem, item LineItem) ([]LineItem, bool) {
	if indexOf(list, item.ID) >= 0 {
		return list, false
	}
	return append(slices.Clone(list), item), true
}

func remove(list []LineItem, id string) ([]LineItem, bool) {
	idx := indexOf(list, id)
	if idx < 0 {
		return list, false
	}
	return slices.Delete(slices.Clone(list), idx, idx+1), true
}

func indexOf(list []LineItem, id string) int {
	return slices.IndexFunc(list, func(li LineItem) bool { return li.ID == id })
}

func cloneItems(list []LineItem) []LineItem {
	if len(list) == 0 {
		return []LineItem{}
	}
	return slices.Clone(list)
}
