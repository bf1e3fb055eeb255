package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/servis-booking/internal/app"
	"github.com/noah-isme/servis-booking/internal/config"
	"github.com/noah-isme/servis-booking/internal/obs"
)

func loadConfig(t *testing.T, redisURL string, overrides ...string) *config.Config {
	t.Helper()
	env := map[string]string{
		"REDIS_URL":              redisURL,
		"DEFAULT_CITY":           "",
		"CATALOG_PATH":           "",
		"BOOKING_RATE_LIMIT":     "",
		"BOOKING_RATE_WINDOW":    "",
		"BOOKING_RATE_MODE":      "",
		"STORAGE_TTL":            "",
		"SESSION_IDLE_TTL":       "",
		"CORS_ALLOWED_ORIGINS":   "",
		"BOOKING_WEBHOOK_URL":    "",
		"BOOKING_WEBHOOK_SECRET": "",
	}
	for i := 0; i+1 < len(overrides); i += 2 {
		env[overrides[i]] = overrides[i+1]
	}
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	return cfg
}

func TestAppInMemory(t *testing.T) {
	a, err := app.New(context.Background(), loadConfig(t, ""), zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()
	require.Nil(t, a.Redis)

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"storage":"ok","catalog":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/services?vehicle=bike&city=delhi", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestAppWithRedisPersistsAcrossRestart(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cfg := loadConfig(t, "redis://"+mr.Addr())

	first, err := app.New(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, first.Redis)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/selection/services/srv_001/toggle", nil)
	rr := httptest.NewRecorder()
	first.Router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	session := rr.Header().Get(obs.SessionHeader)
	require.NotEmpty(t, session)
	require.NoError(t, first.Close())

	second, err := app.New(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	req = httptest.NewRequest(http.MethodGet, "/api/v1/selection", nil)
	req.Header.Set(obs.SessionHeader, session)
	rr = httptest.NewRecorder()
	second.Router.ServeHTTP(rr, req)
	var body struct {
		Data struct {
			Services []string `json:"selectedServices"`
			Display  string   `json:"display"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, []string{"srv_001"}, body.Data.Services)
	require.Equal(t, "₹263 - ₹315", body.Data.Display)
}

func TestAppServesMetrics(t *testing.T) {
	a, err := app.New(context.Background(), loadConfig(t, ""), zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)

	a.Router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/v1/cart/open", strings.NewReader(`{"open":true}`)))

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `servis_cart_mutations_total{op="set_open"} 1`)
	require.Contains(t, rr.Body.String(), "servis_http_requests_total")
}

func TestAppRejectsUnreachableRedis(t *testing.T) {
	_, err := app.New(context.Background(), loadConfig(t, "redis://127.0.0.1:1"), zerolog.Nop(), prometheus.NewRegistry())
	require.Error(t, err)
}

func TestAppForwardsBookingsToWebhook(t *testing.T) {
	topics := make(chan string, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		topics <- r.Header.Get("X-Event-Topic")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := loadConfig(t, "", "BOOKING_WEBHOOK_URL", hook.URL, "BOOKING_WEBHOOK_SECRET", "s3cret")
	a, err := app.New(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, a.Webhook)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx, time.Hour)

	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/selection/services/srv_001/toggle", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	session := rr.Header().Get(obs.SessionHeader)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{
		"name": "Asha Verma",
		"phone": "9876543210",
		"address": "12 MG Road, Sector 14",
		"pincode": "122001",
		"date": "2099-01-15",
		"slot": "morning"
	}`))
	req.Header.Set(obs.SessionHeader, session)
	rr = httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	select {
	case topic := <-topics:
		require.Equal(t, "booking.requested", topic)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}
