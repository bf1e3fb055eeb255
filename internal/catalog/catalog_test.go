package catalog_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/pricing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	require.Greater(t, cat.Len(), 0)

	item, ok := cat.Lookup("srv_001")
	require.True(t, ok)
	require.Equal(t, catalog.VehicleBike, item.Vehicle)
	require.Equal(t, pricing.Range{Min: 250, Max: 300}, item.Price)

	for _, it := range cat.Services(catalog.VehicleCar) {
		require.Equal(t, catalog.VehicleCar, it.Vehicle)
		require.Equal(t, catalog.KindService, it.Kind)
	}
	for _, it := range cat.Addons(catalog.VehicleBike) {
		require.NotEqual(t, catalog.VehicleCar, it.Vehicle)
	}
}

func TestLoadRejectsBrokenItems(t *testing.T) {
	doc := `{"items": [
		{"id": "a", "title": "A", "kind": "service", "price": {"min": 10, "max": 5}},
		{"id": "a", "title": "A again", "kind": "addon", "price": {"min": 1, "max": 1}},
		{"id": "b", "title": "", "kind": "gadget", "vehicle": "truck", "price": {"min": 1, "max": 2}}
	]}`
	_, err := catalog.NewLoader().Load(strings.NewReader(doc))
	require.Error(t, err)
	require.True(t, errors.Is(err, catalog.ErrInvalidCatalog))
	msg := err.Error()
	require.Contains(t, msg, "service requires a vehicle")
	require.Contains(t, msg, "duplicate id")
	require.Contains(t, msg, "not ordered")
}

func TestLoadRejectsOversizedPrices(t *testing.T) {
	doc := `{"items": [
		{"id": "srv_x", "title": "X", "kind": "service", "vehicle": "bike", "price": {"min": 1, "max": 1000000000000000}}
	]}`
	_, err := catalog.NewLoader().Load(strings.NewReader(doc))
	require.ErrorIs(t, err, catalog.ErrInvalidCatalog)
	require.Contains(t, err.Error(), "srv_x")
}

func TestFindReportsNotFound(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	item, err := cat.Find("srv_002")
	require.NoError(t, err)
	require.Equal(t, "Engine Oil Change", item.Title)

	_, err = cat.Find("srv_999")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	require.Contains(t, err.Error(), "srv_999")
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := catalog.NewLoader().Load(strings.NewReader(`{"items": [], "extra": true}`))
	require.Error(t, err)
}

func TestForVehicleHidesOtherVehicles(t *testing.T) {
	cat := catalog.New([]catalog.Item{
		{ID: "bike_svc", Kind: catalog.KindService, Vehicle: catalog.VehicleBike, Price: pricing.Range{Min: 100, Max: 200}},
		{ID: "car_svc", Kind: catalog.KindService, Vehicle: catalog.VehicleCar, Price: pricing.Range{Min: 1000, Max: 2000}},
		{ID: "any_addon", Kind: catalog.KindAddon, Price: pricing.Range{Min: 50, Max: 50}},
	})
	view := cat.ForVehicle(catalog.VehicleBike)

	_, ok := view.PriceRange("car_svc")
	require.False(t, ok)
	r, ok := view.PriceRange("bike_svc")
	require.True(t, ok)
	require.Equal(t, int64(100), r.Min)
	_, ok = view.PriceRange("any_addon")
	require.True(t, ok)
}

func TestParseVehicle(t *testing.T) {
	v, err := catalog.ParseVehicle(" CAR ")
	require.NoError(t, err)
	require.Equal(t, catalog.VehicleCar, v)

	_, err = catalog.ParseVehicle("truck")
	require.ErrorIs(t, err, catalog.ErrInvalidVehicle)
	require.Equal(t, catalog.VehicleBike, catalog.CoerceVehicle("truck"))
}
