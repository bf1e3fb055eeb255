package selection_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/pricing"
	"github.com/noah-isme/servis-booking/internal/selection"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Item{
		{ID: "srv_001", Title: "General Service", Kind: catalog.KindService, Vehicle: catalog.VehicleBike, Price: pricing.Range{Min: 250, Max: 300}},
		{ID: "srv_002", Title: "Oil Change", Kind: catalog.KindService, Vehicle: catalog.VehicleBike, Price: pricing.Range{Min: 299, Max: 299}},
		{ID: "srv_101", Title: "Car Service", Kind: catalog.KindService, Vehicle: catalog.VehicleCar, Price: pricing.Range{Min: 1499, Max: 2499}},
		{ID: "add_001", Title: "Pickup", Kind: catalog.KindAddon, Price: pricing.Range{Min: 99, Max: 99}},
	})
}

func TestDefaults(t *testing.T) {
	s := selection.New(testCatalog())
	st := s.Snapshot()
	require.Equal(t, catalog.VehicleBike, st.Vehicle)
	require.Equal(t, pricing.DefaultCity, st.City)
	require.Empty(t, st.Services)
	require.Empty(t, st.Addons)
	require.Equal(t, pricing.Estimate{}, st.Estimate)

	custom := selection.New(testCatalog(), selection.WithDefaultCity(pricing.CityMumbai))
	require.Equal(t, pricing.CityMumbai, custom.Snapshot().City)

	ignored := selection.New(testCatalog(), selection.WithDefaultCity("paris"))
	require.Equal(t, pricing.DefaultCity, ignored.Snapshot().City)
}

func TestToggleIsIdempotentPair(t *testing.T) {
	s := selection.New(testCatalog())
	s.ToggleService("srv_002")
	s.ToggleAddon("add_001")
	before := s.Snapshot()

	for _, id := range []string{"srv_001", "srv_002", "unknown"} {
		s.ToggleService(id)
		s.ToggleService(id)
		require.Equal(t, before, s.Snapshot(), "service %s", id)

		s.ToggleAddon(id)
		s.ToggleAddon(id)
		require.Equal(t, before, s.Snapshot(), "addon %s", id)
	}
}

func TestToggleKeepsInsertionOrder(t *testing.T) {
	s := selection.New(testCatalog())
	s.ToggleService("srv_002")
	s.ToggleService("srv_001")
	s.ToggleService("x")
	s.ToggleService("srv_001")
	require.Equal(t, []string{"srv_002", "x"}, s.Snapshot().Services)
}

func TestVehicleSwitchClearsSelections(t *testing.T) {
	for _, next := range []catalog.Vehicle{catalog.VehicleBike, catalog.VehicleCar} {
		s := selection.New(testCatalog())
		s.ToggleService("srv_001")
		s.ToggleAddon("add_001")
		require.NotEmpty(t, s.Snapshot().Services)

		s.SetVehicle(next)
		st := s.Snapshot()
		require.Equal(t, next, st.Vehicle)
		require.Empty(t, st.Services)
		require.Empty(t, st.Addons)
		require.Equal(t, pricing.Estimate{}, st.Estimate)
	}
}

func TestCitySwitchPreservesSelections(t *testing.T) {
	s := selection.New(testCatalog())
	s.ToggleService("srv_001")
	s.ToggleAddon("add_001")
	before := s.Snapshot()

	s.SetCity(pricing.CityOther)
	after := s.Snapshot()
	require.Equal(t, before.Services, after.Services)
	require.Equal(t, before.Addons, after.Addons)
	require.Equal(t, pricing.Estimate{Min: 349, Max: 399}, after.Estimate)
	require.NotEqual(t, before.Estimate, after.Estimate)
}

func TestEstimateEndToEnd(t *testing.T) {
	s := selection.New(testCatalog())
	s.SetVehicle(catalog.VehicleBike)
	s.SetCity(pricing.CityDelhi)
	s.ToggleService("srv_001")

	est := s.Estimate()
	require.Equal(t, int64(263), est.Min)
	require.Equal(t, int64(315), est.Max)
	require.Equal(t, "₹263 - ₹315", pricing.FormatPriceRange(est))
}

func TestEstimateSkipsOtherVehicleServices(t *testing.T) {
	s := selection.New(testCatalog())
	s.ToggleService("srv_101")
	require.True(t, s.HasService("srv_101"))
	require.Equal(t, pricing.Estimate{}, s.Estimate())

	s.ToggleAddon("add_001")
	require.Equal(t, pricing.Estimate{Min: 104, Max: 104}, s.Estimate())
}

func TestReset(t *testing.T) {
	s := selection.New(testCatalog())
	s.SetVehicle(catalog.VehicleCar)
	s.SetCity(pricing.CityMumbai)
	s.ToggleService("srv_101")
	s.Reset()

	st := s.Snapshot()
	require.Equal(t, catalog.VehicleBike, st.Vehicle)
	require.Equal(t, pricing.DefaultCity, st.City)
	require.Empty(t, st.Services)
	require.Empty(t, st.Addons)
}

func TestSubscribeReceivesCommittedState(t *testing.T) {
	s := selection.New(testCatalog())
	var got []selection.State
	cancel := s.Subscribe(func(st selection.State) { got = append(got, st) })

	s.ToggleService("srv_001")
	s.SetCity(pricing.CityOther)
	require.Len(t, got, 2)
	require.Equal(t, []string{"srv_001"}, got[0].Services)
	require.Equal(t, pricing.Estimate{Min: 250, Max: 300}, got[1].Estimate)

	got[1].Services[0] = "mutated"
	require.True(t, s.HasService("srv_001"))

	cancel()
	s.ToggleService("srv_002")
	require.Len(t, got, 2)
}

func TestRestoreRecomputesWithoutNotifying(t *testing.T) {
	s := selection.New(testCatalog())
	calls := 0
	s.Subscribe(func(selection.State) { calls++ })

	s.Restore(selection.State{
		Vehicle:  catalog.VehicleBike,
		City:     pricing.CityOther,
		Services: []string{"srv_001"},
		Estimate: pricing.Estimate{Min: 1, Max: 1},
	})
	require.Equal(t, 0, calls)
	require.Equal(t, pricing.Estimate{Min: 250, Max: 300}, s.Estimate())
}
