package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type mapCatalog map[string]Range

func (m mapCatalog) PriceRange(id string) (Range, bool) {
	r, ok := m[id]
	return r, ok
}

func TestApplyCityMultiplierRoundsEachBound(t *testing.T) {
	got := ApplyCityMultiplier(Range{Min: 250, Max: 300}, CityDelhi)
	require.Equal(t, Range{Min: 263, Max: 315}, got)

	got = ApplyCityMultiplier(Range{Min: 199, Max: 349}, CityMumbai)
	require.Equal(t, Range{Min: 219, Max: 384}, got)
}

func TestApplyCityMultiplierClampsNegative(t *testing.T) {
	got := ApplyCityMultiplier(Range{Min: -10, Max: 20}, CityOther)
	require.Equal(t, Range{Min: 0, Max: 20}, got)
}

func TestApplyCityMultiplierMonotonic(t *testing.T) {
	ranges := []Range{{0, 0}, {1, 1}, {99, 149}, {250, 300}, {1499, 2499}, {7, 100000}}
	for _, c := range Cities() {
		require.GreaterOrEqual(t, Multiplier(c), bpsScale, "city %s", c)
		for _, r := range ranges {
			got := ApplyCityMultiplier(r, c)
			require.GreaterOrEqual(t, got.Min, r.Min, "city %s range %v", c, r)
			require.GreaterOrEqual(t, got.Max, r.Max, "city %s range %v", c, r)
		}
	}
}

func TestCalculateEstimateEmpty(t *testing.T) {
	est := CalculateEstimate(nil, nil, CityDelhi, mapCatalog{})
	require.Equal(t, Estimate{}, est)
	require.Equal(t, Estimate{}, CalculateEstimate([]string{"a"}, nil, CityDelhi, nil))
}

func TestCalculateEstimateAdditive(t *testing.T) {
	cat := mapCatalog{
		"srv_001": {250, 300},
		"srv_002": {299, 299},
		"add_001": {99, 99},
		"add_002": {199, 299},
	}
	a := CalculateEstimate([]string{"srv_001"}, []string{"add_001"}, CityGurgaon, cat)
	b := CalculateEstimate([]string{"srv_002"}, []string{"add_002"}, CityGurgaon, cat)
	both := CalculateEstimate([]string{"srv_001", "srv_002"}, []string{"add_001", "add_002"}, CityGurgaon, cat)
	require.Equal(t, a.Add(b), both)
}

func TestCalculateEstimateSkipsUnknownIDs(t *testing.T) {
	cat := mapCatalog{"srv_001": {250, 300}, "add_001": {99, 99}}
	with := CalculateEstimate([]string{"srv_001", "ghost"}, []string{"missing", "add_001"}, CityNoida, cat)
	without := CalculateEstimate([]string{"srv_001"}, []string{"add_001"}, CityNoida, cat)
	require.Equal(t, without, with)
}

func TestFormatPriceRange(t *testing.T) {
	require.Equal(t, "₹299 - ₹300", FormatPriceRange(ApplyCityMultiplier(Range{Min: 299, Max: 300}, CityOther)))
	require.Equal(t, "₹299", FormatPriceRange(Range{Min: 299, Max: 299}))
	require.Equal(t, "₹0", FormatPriceRange(Estimate{}))
}

func TestFormatCollapsesEqualBounds(t *testing.T) {
	got := ApplyCityMultiplier(Range{Min: 10, Max: 10}, CityMumbai)
	require.Equal(t, "₹11", FormatPriceRange(got))

	// Multipliers are at least 1x, so distinct bounds never round together.
	for _, c := range Cities() {
		got = ApplyCityMultiplier(Range{Min: 10, Max: 11}, c)
		require.Less(t, got.Min, got.Max, "city %s", c)
		require.Contains(t, FormatPriceRange(got), " - ", "city %s", c)
	}
}

func TestRangeValidBoundsPrices(t *testing.T) {
	require.True(t, Range{Min: 0, Max: MaxPrice}.Valid())
	require.False(t, Range{Min: 0, Max: MaxPrice + 1}.Valid())
	require.False(t, Range{Min: 1 << 60, Max: 1 << 60}.Valid())
	require.False(t, Range{Min: -1, Max: 10}.Valid())
	require.False(t, Range{Min: 11, Max: 10}.Valid())

	got := ApplyCityMultiplier(Range{Min: MaxPrice, Max: MaxPrice}, CityMumbai)
	require.Equal(t, Range{Min: 11_000_000, Max: 11_000_000}, got)
}

func TestEndToEndDelhiEstimate(t *testing.T) {
	cat := mapCatalog{"srv_001": {250, 300}}
	est := CalculateEstimate([]string{"srv_001"}, nil, CityDelhi, cat)
	require.Equal(t, int64(263), est.Min)
	require.Equal(t, int64(315), est.Max)
	require.Equal(t, "₹263 - ₹315", FormatPriceRange(est))
}

func TestParseCity(t *testing.T) {
	c, err := ParseCity("  Mumbai ")
	require.NoError(t, err)
	require.Equal(t, CityMumbai, c)

	_, err = ParseCity("paris")
	require.ErrorIs(t, err, ErrInvalidCity)

	require.Equal(t, DefaultCity, CoerceCity("paris"))
	require.Equal(t, CityOther, CoerceCity("other"))
	require.Equal(t, int64(10500), Multiplier(City("paris")))
}
