package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/servis-booking/internal/pricing"
)

// ErrInvalidVehicle is returned when a vehicle string is not bike or car.
var ErrInvalidVehicle = errors.New("invalid vehicle")

// ErrNotFound indicates the requested catalog item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Vehicle is the vehicle type a service applies to.
type Vehicle string

// Supported vehicle types.
const (
	VehicleBike Vehicle = "bike"
	VehicleCar  Vehicle = "car"
)

// DefaultVehicle is selected when nothing else is known.
const DefaultVehicle = VehicleBike

// Valid reports whether v is a supported vehicle.
func (v Vehicle) Valid() bool {
	return v == VehicleBike || v == VehicleCar
}

// ParseVehicle normalises and validates a vehicle string.
func ParseVehicle(value string) (Vehicle, error) {
	v := Vehicle(strings.ToLower(strings.TrimSpace(value)))
	if !v.Valid() {
		return "", ErrInvalidVehicle
	}
	return v, nil
}

// CoerceVehicle parses value, falling back to DefaultVehicle.
func CoerceVehicle(value string) Vehicle {
	v, err := ParseVehicle(value)
	if err != nil {
		return DefaultVehicle
	}
	return v
}

// Kind distinguishes primary services from addons.
type Kind string

// Item kinds.
const (
	KindService Kind = "service"
	KindAddon   Kind = "addon"
)

// Item is an immutable catalog record.
type Item struct {
	ID              string        `json:"id" validate:"required,max=64"`
	Title           string        `json:"title" validate:"required,max=120"`
	Kind            Kind          `json:"kind" validate:"required,oneof=service addon"`
	Vehicle         Vehicle       `json:"vehicle,omitempty" validate:"omitempty,oneof=bike car"`
	Price           pricing.Range `json:"price"`
	Description     string        `json:"description,omitempty" validate:"max=500"`
	DurationMinutes int           `json:"durationMinutes" validate:"gte=0"`
}

// AppliesTo reports whether the item can be selected for v. Addons without a vehicle apply to both.
func (it Item) AppliesTo(v Vehicle) bool {
	return it.Vehicle == "" || it.Vehicle == v
}

// Catalog is an ordered, read-only set of items.
type Catalog struct {
	items []Item
	byID  map[string]int
}

// New builds a catalog from items. Later duplicates of an id are ignored for lookup.
func New(items []Item) *Catalog {
	c := &Catalog{
		items: make([]Item, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	copy(c.items, items)
	for i, it := range c.items {
		if _, exists := c.byID[it.ID]; !exists {
			c.byID[it.ID] = i
		}
	}
	return c
}

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[idx], true
}

// Find is Lookup for callers that report a miss as ErrNotFound.
func (c *Catalog) Find(id string) (Item, error) {
	it, ok := c.Lookup(id)
	if !ok {
		return Item{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return it, nil
}

// PriceRange implements pricing.Catalog.
func (c *Catalog) PriceRange(id string) (pricing.Range, bool) {
	it, ok := c.Lookup(id)
	if !ok {
		return pricing.Range{}, false
	}
	return it.Price, true
}

// Items returns a copy of every item in load order.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Services returns the services available for v.
func (c *Catalog) Services(v Vehicle) []Item {
	return c.filter(func(it Item) bool { return it.Kind == KindService && it.Vehicle == v })
}

// Addons returns the addons available for v.
func (c *Catalog) Addons(v Vehicle) []Item {
	return c.filter(func(it Item) bool { return it.Kind == KindAddon && it.AppliesTo(v) })
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

func (c *Catalog) filter(keep func(Item) bool) []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// ForVehicle returns a pricing view that hides items not applicable to v.
func (c *Catalog) ForVehicle(v Vehicle) pricing.Catalog {
	return vehicleView{catalog: c, vehicle: v}
}

type vehicleView struct {
	catalog *Catalog
	vehicle Vehicle
}

func (v vehicleView) PriceRange(id string) (pricing.Range, bool) {
	it, ok := v.catalog.Lookup(id)
	if !ok || !it.AppliesTo(v.vehicle) {
		return pricing.Range{}, false
	}
	return it.Price, true
}
