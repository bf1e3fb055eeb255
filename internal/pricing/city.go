package pricing

import (
	"errors"
	"strings"
)

// ErrInvalidCity is returned when a city string is not part of the served set.
var ErrInvalidCity = errors.New("invalid city")

// City identifies a served city.
type City string

// Served cities.
const (
	CityDelhi     City = "delhi"
	CityGurgaon   City = "gurgaon"
	CityNoida     City = "noida"
	CityMumbai    City = "mumbai"
	CityBangalore City = "bangalore"
	CityOther     City = "other"
)

// DefaultCity is used when no valid city is known.
const DefaultCity = CityDelhi

const bpsScale int64 = 10000

// multipliers are expressed in basis points of the base price (10500 = 1.05).
var multipliers = map[City]int64{
	CityDelhi:     10500,
	CityGurgaon:   10800,
	CityNoida:     10300,
	CityMumbai:    11000,
	CityBangalore: 10600,
	CityOther:     10000,
}

var cityOrder = []City{CityDelhi, CityGurgaon, CityNoida, CityMumbai, CityBangalore, CityOther}

// Cities returns the served cities in display order.
func Cities() []City {
	out := make([]City, len(cityOrder))
	copy(out, cityOrder)
	return out
}

// Valid reports whether c has a multiplier.
func (c City) Valid() bool {
	_, ok := multipliers[c]
	return ok
}

// Multiplier returns the basis-point multiplier for c. Unknown cities fall back to the default city.
func Multiplier(c City) int64 {
	if bps, ok := multipliers[c]; ok {
		return bps
	}
	return multipliers[DefaultCity]
}

// MultiplierFloat returns the multiplier as a decimal factor for display.
func MultiplierFloat(c City) float64 {
	return float64(Multiplier(c)) / float64(bpsScale)
}

// ParseCity normalises and validates a city string.
func ParseCity(value string) (City, error) {
	c := City(strings.ToLower(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", ErrInvalidCity
	}
	return c, nil
}

// CoerceCity parses value, falling back to DefaultCity when it is not a served city.
func CoerceCity(value string) City {
	c, err := ParseCity(value)
	if err != nil {
		return DefaultCity
	}
	return c
}
