package pricing

import "strconv"

// Money represents a rupee amount. Estimates are whole rupees.
type Money = int64

// MaxPrice caps a single price bound; scaled sums must stay far from int64 overflow.
const MaxPrice Money = 10_000_000

// Range is a min/max price band.
type Range struct {
	Min Money `json:"min"`
	Max Money `json:"max"`
}

// Estimate is the derived total for a selection. It is never stored as ground truth.
type Estimate = Range

// Catalog resolves base price ranges by item id.
type Catalog interface {
	PriceRange(id string) (Range, bool)
}

// ApplyCityMultiplier scales both bounds by the city multiplier, rounding each bound on its own.
func ApplyCityMultiplier(r Range, c City) Range {
	bps := Multiplier(c)
	return Range{
		Min: scale(r.Min, bps),
		Max: scale(r.Max, bps),
	}
}

// CalculateEstimate sums city-adjusted ranges across services and addons.
// Ids missing from the catalog are skipped.
func CalculateEstimate(services, addons []string, c City, cat Catalog) Estimate {
	var total Estimate
	if cat == nil {
		return total
	}
	for _, ids := range [][]string{services, addons} {
		for _, id := range ids {
			base, ok := cat.PriceRange(id)
			if !ok {
				continue
			}
			adjusted := ApplyCityMultiplier(base, c)
			total.Min += adjusted.Min
			total.Max += adjusted.Max
		}
	}
	return total
}

// FormatPriceRange renders "₹min - ₹max", collapsing to "₹min" when both bounds match.
func FormatPriceRange(r Range) string {
	if r.Min == r.Max {
		return "₹" + strconv.FormatInt(r.Min, 10)
	}
	return "₹" + strconv.FormatInt(r.Min, 10) + " - ₹" + strconv.FormatInt(r.Max, 10)
}

// Add returns the componentwise sum of two ranges.
func (r Range) Add(o Range) Range {
	return Range{Min: r.Min + o.Min, Max: r.Max + o.Max}
}

// Valid reports whether the range is non-negative, ordered and within MaxPrice.
func (r Range) Valid() bool {
	return r.Min >= 0 && r.Min <= r.Max && r.Max <= MaxPrice
}

// scale multiplies v by bps/10000 rounding half away from zero.
func scale(v Money, bps int64) Money {
	if v <= 0 {
		return 0
	}
	return (v*bps + bpsScale/2) / bpsScale
}
