package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/servis-booking/internal/pricing"
)

// ErrInvalidCatalog wraps every integrity problem found while loading catalog data.
var ErrInvalidCatalog = errors.New("invalid catalog")

//go:embed data/catalog.json
var defaultData []byte

type document struct {
	Items []Item `json:"items"`
}

// Loader decodes and validates catalog documents.
type Loader struct {
	validate *validator.Validate
}

// NewLoader constructs a Loader with its own validator instance.
func NewLoader() *Loader {
	return &Loader{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return NewLoader().Load(bytes.NewReader(defaultData))
}

// LoadFile reads a catalog document from path, falling back to the bundled data when path is blank.
func (l *Loader) LoadFile(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return l.Load(bytes.NewReader(defaultData))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return l.Load(f)
}

// Load decodes a {"items": [...]} document and checks its integrity.
func (l *Loader) Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := l.Validate(doc.Items); err != nil {
		return nil, err
	}
	return New(doc.Items), nil
}

// Validate reports every integrity problem in items joined into one error.
func (l *Loader) Validate(items []Item) error {
	var joined error
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		label := fmt.Sprintf("item %d (%s)", i, it.ID)
		if err := l.validate.Struct(it); err != nil {
			joined = errors.Join(joined, fmt.Errorf("%s: %w", label, err))
		}
		if _, dup := seen[it.ID]; dup && it.ID != "" {
			joined = errors.Join(joined, fmt.Errorf("%s: duplicate id", label))
		}
		seen[it.ID] = struct{}{}
		if it.Kind == KindService && it.Vehicle == "" {
			joined = errors.Join(joined, fmt.Errorf("%s: service requires a vehicle", label))
		}
		if !it.Price.Valid() {
			joined = errors.Join(joined, fmt.Errorf("%s: price range %d-%d is not ordered, non-negative and at most %d", label, it.Price.Min, it.Price.Max, pricing.MaxPrice))
		}
	}
	if joined != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, joined)
	}
	return nil
}
