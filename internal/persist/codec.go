package persist

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/noah-isme/servis-booking/internal/cart"
	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/pricing"
	"github.com/noah-isme/servis-booking/internal/selection"
)

// Version is the blob schema version written and accepted.
const Version = 0

var errVersionMismatch = errors.New("persist: unsupported blob version")

// Outcome describes how a hydration went.
type Outcome string

// Hydration outcomes.
const (
	OutcomeRestored  Outcome = "restored"
	OutcomeMissing   Outcome = "missing"
	OutcomeMalformed Outcome = "malformed"
	OutcomeError     Outcome = "error"
)

type envelope[T any] struct {
	State   T   `json:"state"`
	Version int `json:"version"`
}

type selectionBlob struct {
	SelectedVehicle  string   `json:"selectedVehicle"`
	SelectedCity     string   `json:"selectedCity"`
	SelectedServices []string `json:"selectedServices"`
	SelectedAddons   []string `json:"selectedAddons"`
}

type cartBlob struct {
	Services []cart.LineItem `json:"services"`
	Addons   []cart.LineItem `json:"addons"`
}

// EncodeSelection serialises only the source-of-truth selection fields.
func EncodeSelection(st selection.State) ([]byte, error) {
	return json.Marshal(envelope[selectionBlob]{
		State: selectionBlob{
			SelectedVehicle:  string(st.Vehicle),
			SelectedCity:     string(st.City),
			SelectedServices: nonNil(st.Services),
			SelectedAddons:   nonNil(st.Addons),
		},
		Version: Version,
	})
}

// DecodeSelection parses a selection blob, coercing invalid enums to defaults and dropping blank or repeated ids.
func DecodeSelection(data []byte, defaultCity pricing.City) (selection.State, error) {
	var env envelope[selectionBlob]
	if err := json.Unmarshal(data, &env); err != nil {
		return selection.State{}, err
	}
	if env.Version != Version {
		return selection.State{}, errVersionMismatch
	}
	city, err := pricing.ParseCity(env.State.SelectedCity)
	if err != nil {
		city = defaultCity
	}
	return selection.State{
		Vehicle:  catalog.CoerceVehicle(env.State.SelectedVehicle),
		City:     city,
		Services: cleanIDs(env.State.SelectedServices),
		Addons:   cleanIDs(env.State.SelectedAddons),
	}, nil
}

// EncodeCart serialises the line items. The open flag is never written.
func EncodeCart(st cart.State) ([]byte, error) {
	return json.Marshal(envelope[cartBlob]{
		State: cartBlob{
			Services: nonNilItems(st.Services),
			Addons:   nonNilItems(st.Addons),
		},
		Version: Version,
	})
}

// DecodeCart parses a cart blob. Entries with blank ids or invalid prices are dropped and repeated ids keep the first entry.
func DecodeCart(data []byte) (services, addons []cart.LineItem, err error) {
	var env envelope[cartBlob]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, err
	}
	if env.Version != Version {
		return nil, nil, errVersionMismatch
	}
	return cleanItems(env.State.Services), cleanItems(env.State.Addons), nil
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func cleanItems(items []cart.LineItem) []cart.LineItem {
	out := make([]cart.LineItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, li := range items {
		li.ID = strings.TrimSpace(li.ID)
		if li.ID == "" || !li.Range().Valid() {
			continue
		}
		if _, dup := seen[li.ID]; dup {
			continue
		}
		seen[li.ID] = struct{}{}
		li.City = pricing.CoerceCity(string(li.City))
		if li.Vehicle != "" && !li.Vehicle.Valid() {
			li.Vehicle = catalog.CoerceVehicle(string(li.Vehicle))
		}
		out = append(out, li)
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilItems(v []cart.LineItem) []cart.LineItem {
	if v == nil {
		return []cart.LineItem{}
	}
	return v
}
