package booking

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/common"
	"github.com/noah-isme/servis-booking/internal/obs"
)

type sessionKey struct{}

// Handler wires session stores to HTTP.
type Handler struct {
	svc          *Service
	sessions     *Manager
	logger       zerolog.Logger
	bookingLimit func(http.Handler) http.Handler
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Sessions *Manager
	Logger   zerolog.Logger
	// BookingLimit wraps the booking submission route, typically a rate limiter.
	BookingLimit func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		svc:          cfg.Service,
		sessions:     cfg.Sessions,
		logger:       cfg.Logger,
		bookingLimit: cfg.BookingLimit,
	}
}

// Routes mounts the selection, cart and booking endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Session)

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", h.GetSelection)
			r.Delete("/", h.ResetSelection)
			r.Put("/vehicle", h.SetVehicle)
			r.Put("/city", h.SetCity)
			r.Post("/services/{id}/toggle", h.ToggleSelectionService)
			r.Post("/addons/{id}/toggle", h.ToggleSelectionAddon)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Put("/open", h.SetCartOpen)
			r.Post("/services", h.AddCartService)
			r.Delete("/services/{id}", h.RemoveCartService)
			r.Post("/services/{id}/toggle", h.ToggleCartService)
			r.Post("/addons", h.AddCartAddon)
			r.Delete("/addons/{id}", h.RemoveCartAddon)
		})

		submit := http.Handler(http.HandlerFunc(h.Submit))
		if h.bookingLimit != nil {
			submit = h.bookingLimit(submit)
		}
		r.Method(http.MethodPost, "/bookings", submit)
	})
}

// Session resolves the visitor session from the X-Session-ID header and holds it for the request.
// A missing or malformed id starts a new session whose id is echoed in the response header.
func (h *Handler) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.sessions == nil || h.svc == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "booking sessions not configured", nil)
			return
		}
		id := strings.ToLower(strings.TrimSpace(r.Header.Get(obs.SessionHeader)))
		if !ValidSessionID(id) {
			id = NewSessionID()
			r.Header.Set(obs.SessionHeader, id)
		}
		w.Header().Set(obs.SessionHeader, id)

		sess, release := h.sessions.Acquire(r.Context(), id)
		defer release()
		ctx := obs.WithSessionID(r.Context(), id)
		ctx = context.WithValue(ctx, sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *Session {
	sess, _ := r.Context().Value(sessionKey{}).(*Session)
	return sess
}

// GetSelection returns the selection with its estimate.
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	h.selection(w, r)
}

// SetVehicle handles PUT /selection/vehicle {"vehicle": "car"}.
func (h *Handler) SetVehicle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Vehicle string `json:"vehicle"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.SetVehicle(sessionFrom(r), payload.Vehicle); err != nil {
		h.writeError(w, err)
		return
	}
	h.selection(w, r)
}

// SetCity handles PUT /selection/city {"city": "mumbai"}.
func (h *Handler) SetCity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		City string `json:"city"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.SetCity(sessionFrom(r), payload.City); err != nil {
		h.writeError(w, err)
		return
	}
	h.selection(w, r)
}

// ToggleSelectionService flips a service in the selection.
func (h *Handler) ToggleSelectionService(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ToggleSelectionService(sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.selection(w, r)
}

// ToggleSelectionAddon flips an addon in the selection.
func (h *Handler) ToggleSelectionAddon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ToggleSelectionAddon(sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.selection(w, r)
}

// ResetSelection restores selection defaults.
func (h *Handler) ResetSelection(w http.ResponseWriter, r *http.Request) {
	h.svc.ResetSelection(sessionFrom(r))
	h.selection(w, r)
}

// GetCart returns the cart with totals and item count.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.cart(w, r, http.StatusOK)
}

type cartItemPayload struct {
	ID   string `json:"id"`
	City string `json:"city,omitempty"`
}

// AddCartService handles POST /cart/services {"id": "srv_001", "city": "delhi"}.
func (h *Handler) AddCartService(w http.ResponseWriter, r *http.Request) {
	var payload cartItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.AddCartService(sessionFrom(r), payload.ID, payload.City); err != nil {
		h.writeError(w, err)
		return
	}
	h.cart(w, r, http.StatusCreated)
}

// RemoveCartService drops a service from the cart.
func (h *Handler) RemoveCartService(w http.ResponseWriter, r *http.Request) {
	h.svc.RemoveCartService(sessionFrom(r), chi.URLParam(r, "id"))
	h.cart(w, r, http.StatusOK)
}

// ToggleCartService flips a service in the cart, priced for ?city= or the selection city.
func (h *Handler) ToggleCartService(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ToggleCartService(sessionFrom(r), chi.URLParam(r, "id"), r.URL.Query().Get("city")); err != nil {
		h.writeError(w, err)
		return
	}
	h.cart(w, r, http.StatusOK)
}

// AddCartAddon handles POST /cart/addons {"id": "add_001"}.
func (h *Handler) AddCartAddon(w http.ResponseWriter, r *http.Request) {
	var payload cartItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.AddCartAddon(sessionFrom(r), payload.ID, payload.City); err != nil {
		h.writeError(w, err)
		return
	}
	h.cart(w, r, http.StatusCreated)
}

// RemoveCartAddon drops an addon from the cart.
func (h *Handler) RemoveCartAddon(w http.ResponseWriter, r *http.Request) {
	h.svc.RemoveCartAddon(sessionFrom(r), chi.URLParam(r, "id"))
	h.cart(w, r, http.StatusOK)
}

// SetCartOpen handles PUT /cart/open {"open": true}.
func (h *Handler) SetCartOpen(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Open *bool `json:"open"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if payload.Open == nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "open is required", nil)
		return
	}
	h.svc.SetCartOpen(sessionFrom(r), *payload.Open)
	h.cart(w, r, http.StatusOK)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCart(sessionFrom(r))
	h.cart(w, r, http.StatusOK)
}

// Submit handles POST /bookings with the booking form.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var details Details
	if err := common.DecodeJSON(r, &details); err != nil {
		h.writeError(w, err)
		return
	}
	req, err := h.svc.Submit(r.Context(), sessionFrom(r), details)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info().
		Str("reference", req.Reference).
		Str("session_id", req.SessionID).
		Str("source", string(req.Source)).
		Str("estimate", req.Display).
		Msg("booking requested")
	common.JSON(w, http.StatusCreated, map[string]any{"data": req})
}

func (h *Handler) selection(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.svc.SelectionView(sessionFrom(r))})
}

func (h *Handler) cart(w http.ResponseWriter, r *http.Request, status int) {
	common.JSON(w, status, map[string]any{"data": h.svc.CartView(sessionFrom(r))})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var detailsErr *DetailsError
	switch {
	case errors.As(err, &detailsErr):
		common.WriteError(w, common.BadRequest("INVALID_DETAILS", "booking details are invalid", err).WithDetails(detailsErr.Fields))
	case errors.Is(err, ErrUnknownItem):
		common.WriteError(w, common.NotFound("UNKNOWN_ITEM", "catalog item not found", err))
	case errors.Is(err, ErrEmptySelection):
		common.WriteError(w, common.NewAppError("EMPTY_SELECTION", "select at least one service or addon", http.StatusUnprocessableEntity, err))
	case common.IsAppError(err):
		common.WriteError(w, err)
	default:
		mapped := catalog.AppError(err)
		if !common.IsAppError(mapped) {
			h.logger.Error().Err(err).Msg("booking request failed")
		}
		common.WriteError(w, mapped)
	}
}
