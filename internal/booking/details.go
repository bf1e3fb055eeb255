package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire format of the preferred service date.
const DateLayout = "2006-01-02"

// Slot is a preferred time-of-day window for the visit.
type Slot string

// Available slots.
const (
	SlotMorning   Slot = "morning"
	SlotAfternoon Slot = "afternoon"
	SlotEvening   Slot = "evening"
)

// Details is the booking form filled in by the visitor.
type Details struct {
	Name    string `json:"name" validate:"required,min=2,max=80"`
	Phone   string `json:"phone" validate:"required,numeric,len=10"`
	Address string `json:"address" validate:"required,min=8,max=240"`
	Pincode string `json:"pincode" validate:"required,numeric,len=6"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Slot    Slot   `json:"slot" validate:"required,oneof=morning afternoon evening"`
	Notes   string `json:"notes,omitempty" validate:"max=500"`
}

// FieldError names one rejected form field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// DetailsError lists every rejected field of a booking form.
type DetailsError struct {
	Fields []FieldError
}

func (e *DetailsError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field+":"+f.Rule)
	}
	return fmt.Sprintf("%s (%s)", ErrInvalidDetails.Error(), strings.Join(names, ", "))
}

func (e *DetailsError) Unwrap() error { return ErrInvalidDetails }

func (d Details) normalize() Details {
	d.Name = strings.TrimSpace(d.Name)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
	d.Pincode = strings.TrimSpace(d.Pincode)
	d.Date = strings.TrimSpace(d.Date)
	d.Slot = Slot(strings.ToLower(strings.TrimSpace(string(d.Slot))))
	d.Notes = strings.TrimSpace(d.Notes)
	return d
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateDetails checks the form and rejects dates before today.
func validateDetails(v *validator.Validate, d Details, today time.Time) error {
	var fields []FieldError
	if err := v.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate details: %w", err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
	}
	if date, err := time.ParseInLocation(DateLayout, d.Date, today.Location()); err == nil {
		y, m, day := today.Date()
		if date.Before(time.Date(y, m, day, 0, 0, 0, 0, today.Location())) {
			fields = append(fields, FieldError{Field: "date", Rule: "past"})
		}
	}
	if len(fields) > 0 {
		return &DetailsError{Fields: fields}
	}
	return nil
}
