package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/servis-booking/internal/common"
	"github.com/noah-isme/servis-booking/internal/pricing"
)

// Handler exposes public catalog endpoints for the service picker.
type Handler struct {
	catalog *Catalog
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Catalog *Catalog
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{catalog: cfg.Catalog}
}

// PricedItem is a catalog item with its city-adjusted price.
type PricedItem struct {
	Item
	CityPrice pricing.Range `json:"cityPrice"`
	Display   string        `json:"display"`
}

// CityInfo describes a served city.
type CityInfo struct {
	City       pricing.City `json:"city"`
	Multiplier float64      `json:"multiplier"`
}

// Cities handles GET /api/v1/cities.
func (h *Handler) Cities(w http.ResponseWriter, _ *http.Request) {
	cities := pricing.Cities()
	rows := make([]CityInfo, 0, len(cities))
	for _, c := range cities {
		rows = append(rows, CityInfo{City: c, Multiplier: pricing.MultiplierFloat(c)})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "default": pricing.DefaultCity})
}

// Services handles GET /api/v1/catalog/services?vehicle=&city=.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.catalog.Services)
}

// Addons handles GET /api/v1/catalog/addons?vehicle=&city=.
func (h *Handler) Addons(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.catalog.Addons)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, source func(Vehicle) []Item) {
	if h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	vehicle, city, err := parseListQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	items := source(vehicle)
	common.JSON(w, http.StatusOK, map[string]any{
		"data":    PriceItems(items, city),
		"vehicle": vehicle,
		"city":    city,
	})
}

// PriceItems attaches city-adjusted prices to items.
func PriceItems(items []Item, city pricing.City) []PricedItem {
	out := make([]PricedItem, 0, len(items))
	for _, it := range items {
		adjusted := pricing.ApplyCityMultiplier(it.Price, city)
		out = append(out, PricedItem{Item: it, CityPrice: adjusted, Display: pricing.FormatPriceRange(adjusted)})
	}
	return out
}

func parseListQuery(r *http.Request) (Vehicle, pricing.City, error) {
	q := r.URL.Query()
	vehicle := DefaultVehicle
	if raw := strings.TrimSpace(q.Get("vehicle")); raw != "" {
		v, err := ParseVehicle(raw)
		if err != nil {
			return "", "", err
		}
		vehicle = v
	}
	city := pricing.DefaultCity
	if raw := strings.TrimSpace(q.Get("city")); raw != "" {
		c, err := pricing.ParseCity(raw)
		if err != nil {
			return "", "", err
		}
		city = c
	}
	return vehicle, city, nil
}

// AppError translates catalog and pricing validation errors into API errors.
func AppError(err error) error {
	switch {
	case common.IsAppError(err):
		return err
	case errors.Is(err, ErrInvalidVehicle):
		return common.BadRequest("INVALID_VEHICLE", "vehicle must be bike or car", err)
	case errors.Is(err, pricing.ErrInvalidCity):
		return common.BadRequest("INVALID_CITY", "city is not served", err).WithDetails(map[string]any{"cities": pricing.Cities()})
	case errors.Is(err, ErrNotFound):
		return common.NotFound("UNKNOWN_ITEM", "catalog item not found", err)
	default:
		return err
	}
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, AppError(err))
}
