package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/servis-booking/internal/cart"
	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/events"
	"github.com/noah-isme/servis-booking/internal/obs"
	"github.com/noah-isme/servis-booking/internal/pricing"
	"github.com/noah-isme/servis-booking/internal/selection"
)

var (
	// ErrUnknownItem is returned when an id does not name a catalog item of the expected kind.
	ErrUnknownItem = errors.New("booking: unknown catalog item")
	// ErrEmptySelection is returned when a booking is submitted with nothing chosen.
	ErrEmptySelection = errors.New("booking: nothing selected")
	// ErrInvalidDetails is returned when the booking form fails validation.
	ErrInvalidDetails = errors.New("booking: invalid details")
)

// Source tells which store a booking request was built from.
type Source string

// Booking sources.
const (
	SourceCart      Source = "cart"
	SourceSelection Source = "selection"
)

// Request is a submitted booking.
type Request struct {
	Reference string          `json:"reference"`
	SessionID string          `json:"sessionId"`
	Source    Source          `json:"source"`
	Vehicle   catalog.Vehicle `json:"vehicle"`
	City      pricing.City    `json:"city"`
	Services  []cart.LineItem `json:"services"`
	Addons    []cart.LineItem `json:"addons"`
	Estimate  pricing.Range   `json:"estimate"`
	Display   string          `json:"display"`
	Details   Details         `json:"details"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SelectionView is the selection snapshot with its derived estimate.
type SelectionView struct {
	selection.State
	Display string `json:"display"`
}

// CartView is the cart snapshot with its derived totals.
type CartView struct {
	cart.State
	Totals        pricing.Range `json:"totals"`
	TotalsDisplay string        `json:"totalsDisplay"`
	ItemCount     int           `json:"itemCount"`
}

// Locker serialises booking submission for a session across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// ServiceConfig configures the Service dependencies.
type ServiceConfig struct {
	Catalog  *catalog.Catalog
	Bus      *events.Bus
	Logger   zerolog.Logger
	Location *time.Location
	Lock     Locker
	Now      func() time.Time
}

// Service applies visitor commands to a session's stores.
type Service struct {
	catalog  *catalog.Catalog
	bus      *events.Bus
	logger   zerolog.Logger
	location *time.Location
	lock     Locker
	validate *validator.Validate
	nowFn    func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		catalog:  cfg.Catalog,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		location: loc,
		lock:     cfg.Lock,
		validate: newValidator(),
		nowFn:    cfg.Now,
	}
}

func (s *Service) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now()
}

// SelectionView projects the session selection.
func (s *Service) SelectionView(sess *Session) SelectionView {
	st := sess.Selection.Snapshot()
	return SelectionView{State: st, Display: pricing.FormatPriceRange(st.Estimate)}
}

// CartView projects the session cart.
func (s *Service) CartView(sess *Session) CartView {
	totals := sess.Cart.Totals()
	return CartView{
		State:         sess.Cart.Snapshot(),
		Totals:        totals,
		TotalsDisplay: pricing.FormatPriceRange(totals),
		ItemCount:     sess.Cart.ItemCount(),
	}
}

// SetVehicle switches the selection vehicle, clearing chosen services and addons.
func (s *Service) SetVehicle(sess *Session, raw string) error {
	v, err := catalog.ParseVehicle(raw)
	if err != nil {
		return err
	}
	sess.Selection.SetVehicle(v)
	obs.RecordSelectionMutation("set_vehicle")
	return nil
}

// SetCity switches the selection city, keeping chosen ids.
func (s *Service) SetCity(sess *Session, raw string) error {
	c, err := pricing.ParseCity(raw)
	if err != nil {
		return err
	}
	sess.Selection.SetCity(c)
	obs.RecordSelectionMutation("set_city")
	return nil
}

// ToggleSelectionService flips a service id. Ids already selected may always be removed;
// new ids must be services for the selected vehicle.
func (s *Service) ToggleSelectionService(sess *Session, id string) error {
	id = strings.TrimSpace(id)
	if !sess.Selection.HasService(id) {
		if _, err := s.lookupFor(id, catalog.KindService, sess.Selection.Snapshot().Vehicle); err != nil {
			return err
		}
	}
	sess.Selection.ToggleService(id)
	obs.RecordSelectionMutation("toggle_service")
	return nil
}

// ToggleSelectionAddon flips an addon id.
func (s *Service) ToggleSelectionAddon(sess *Session, id string) error {
	id = strings.TrimSpace(id)
	if !sess.Selection.HasAddon(id) {
		if _, err := s.lookupFor(id, catalog.KindAddon, sess.Selection.Snapshot().Vehicle); err != nil {
			return err
		}
	}
	sess.Selection.ToggleAddon(id)
	obs.RecordSelectionMutation("toggle_addon")
	return nil
}

// ResetSelection restores the selection defaults.
func (s *Service) ResetSelection(sess *Session) {
	sess.Selection.Reset()
	obs.RecordSelectionMutation("reset")
}

// AddCartService snapshots a catalog service into the cart. A blank city prices it for the selection city.
func (s *Service) AddCartService(sess *Session, id, city string) error {
	item, c, err := s.resolve(sess, id, city, catalog.KindService)
	if err != nil {
		return err
	}
	sess.Cart.AddService(cart.NewLineItem(item, c))
	obs.RecordCartMutation("add_service")
	return nil
}

// ToggleCartService removes the service when present, otherwise adds it priced for city.
func (s *Service) ToggleCartService(sess *Session, id, city string) error {
	id = strings.TrimSpace(id)
	if sess.Cart.HasService(id) {
		sess.Cart.RemoveService(id)
		obs.RecordCartMutation("remove_service")
		return nil
	}
	return s.AddCartService(sess, id, city)
}

// RemoveCartService drops a service line item. Missing ids are a no-op.
func (s *Service) RemoveCartService(sess *Session, id string) {
	sess.Cart.RemoveService(strings.TrimSpace(id))
	obs.RecordCartMutation("remove_service")
}

// AddCartAddon snapshots a catalog addon into the cart.
func (s *Service) AddCartAddon(sess *Session, id, city string) error {
	item, c, err := s.resolve(sess, id, city, catalog.KindAddon)
	if err != nil {
		return err
	}
	sess.Cart.AddAddon(cart.NewLineItem(item, c))
	obs.RecordCartMutation("add_addon")
	return nil
}

// RemoveCartAddon drops an addon line item.
func (s *Service) RemoveCartAddon(sess *Session, id string) {
	sess.Cart.RemoveAddon(strings.TrimSpace(id))
	obs.RecordCartMutation("remove_addon")
}

// SetCartOpen toggles the cart drawer flag.
func (s *Service) SetCartOpen(sess *Session, open bool) {
	sess.Cart.SetOpen(open)
	obs.RecordCartMutation("set_open")
}

// ClearCart empties and closes the cart.
func (s *Service) ClearCart(sess *Session) {
	sess.Cart.Clear()
	obs.RecordCartMutation("clear")
}

// Submit validates details and turns the cart, or the selection when the cart is empty, into a booking request.
// On success the cart is cleared and the selection reset.
func (s *Service) Submit(ctx context.Context, sess *Session, details Details) (Request, error) {
	details = details.normalize()
	now := s.now().In(s.location)
	if err := validateDetails(s.validate, details, now); err != nil {
		obs.RecordBooking("invalid")
		return Request{}, err
	}
	if s.lock == nil {
		return s.submit(ctx, sess, details, now)
	}
	var req Request
	err := s.lock.WithLock(ctx, "booking:"+sess.ID, func(ctx context.Context) error {
		var err error
		req, err = s.submit(ctx, sess, details, now)
		return err
	})
	return req, err
}

func (s *Service) submit(ctx context.Context, sess *Session, details Details, now time.Time) (Request, error) {
	sel := sess.Selection.Snapshot()
	req := Request{
		Reference: uuid.NewString(),
		SessionID: sess.ID,
		Vehicle:   sel.Vehicle,
		City:      sel.City,
		Details:   details,
		CreatedAt: now.UTC(),
	}
	if crt := sess.Cart.Snapshot(); len(crt.Services)+len(crt.Addons) > 0 {
		req.Source = SourceCart
		req.Services = crt.Services
		req.Addons = crt.Addons
		req.Estimate = sess.Cart.Totals()
	} else {
		req.Source = SourceSelection
		req.Services = s.lineItems(sel.Services, sel.Vehicle, sel.City)
		req.Addons = s.lineItems(sel.Addons, sel.Vehicle, sel.City)
		req.Estimate = sel.Estimate
	}
	if len(req.Services)+len(req.Addons) == 0 {
		obs.RecordBooking("empty")
		return Request{}, ErrEmptySelection
	}
	req.Display = pricing.FormatPriceRange(req.Estimate)

	if s.bus != nil {
		if _, err := s.bus.Emit(ctx, events.TopicBookingRequested, sess.ID, req); err != nil {
			s.logger.Warn().Err(err).Str("reference", req.Reference).Msg("booking event delivery")
		}
	}
	sess.Cart.Clear()
	sess.Selection.Reset()
	obs.RecordBooking("accepted")
	return req, nil
}

// lineItems prices selected ids the way the selection estimate does, skipping ids outside the vehicle view.
func (s *Service) lineItems(ids []string, v catalog.Vehicle, c pricing.City) []cart.LineItem {
	out := make([]cart.LineItem, 0, len(ids))
	for _, id := range ids {
		item, ok := s.catalog.Lookup(id)
		if !ok || !item.AppliesTo(v) {
			continue
		}
		out = append(out, cart.NewLineItem(item, c))
	}
	return out
}

func (s *Service) lookup(id string, kind catalog.Kind) (catalog.Item, error) {
	item, err := s.catalog.Find(strings.TrimSpace(id))
	if err != nil {
		return catalog.Item{}, fmt.Errorf("%w: %w", ErrUnknownItem, err)
	}
	if item.Kind != kind {
		return catalog.Item{}, fmt.Errorf("%w: %q is not a %s", ErrUnknownItem, item.ID, kind)
	}
	return item, nil
}

func (s *Service) lookupFor(id string, kind catalog.Kind, v catalog.Vehicle) (catalog.Item, error) {
	item, err := s.lookup(id, kind)
	if err != nil {
		return catalog.Item{}, err
	}
	if !item.AppliesTo(v) {
		return catalog.Item{}, fmt.Errorf("%w: %s %q is not offered for %s", ErrUnknownItem, kind, item.ID, v)
	}
	return item, nil
}

func (s *Service) resolve(sess *Session, id, city string, kind catalog.Kind) (catalog.Item, pricing.City, error) {
	item, err := s.lookup(id, kind)
	if err != nil {
		return catalog.Item{}, "", err
	}
	c := sess.Selection.Snapshot().City
	if strings.TrimSpace(city) != "" {
		if c, err = pricing.ParseCity(city); err != nil {
			return catalog.Item{}, "", err
		}
	}
	return item, c, nil
}
