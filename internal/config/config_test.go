package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/servis-booking/internal/config"
	"github.com/noah-isme/servis-booking/internal/pricing"
)

func blankEnv() map[string]string {
	return map[string]string{
		"APP_ENV":              "",
		"PORT":                 "",
		"REDIS_URL":            "",
		"STORAGE_TTL":          "",
		"SESSION_IDLE_TTL":     "",
		"DEFAULT_CITY":         "",
		"CATALOG_PATH":         "",
		"CORS_ALLOWED_ORIGINS": "",
		"BOOKING_RATE_LIMIT":   "",
		"BOOKING_RATE_WINDOW":  "",
		"BOOKING_RATE_MODE":    "",
		"OBS_TRACING_EXPORTER": "",

		"BOOKING_WEBHOOK_URL":          "",
		"BOOKING_WEBHOOK_SECRET":       "",
		"BOOKING_WEBHOOK_MAX_ATTEMPTS": "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(blankEnv())
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.False(t, cfg.UsesRedis())
	require.Equal(t, 720*time.Hour, cfg.StorageTTL)
	require.Equal(t, 2*time.Hour, cfg.SessionIdleTTL)
	require.Equal(t, pricing.CityDelhi, cfg.DefaultCity)
	require.Equal(t, 5, cfg.BookingRateLimit)
	require.Equal(t, time.Minute, cfg.BookingRateWindow)
	require.Equal(t, "none", cfg.Obs.TracingExporter)
}

func TestLoadOverrides(t *testing.T) {
	env := blankEnv()
	env["PORT"] = ":9090"
	env["REDIS_URL"] = "redis://localhost:6379/1"
	env["DEFAULT_CITY"] = " Mumbai "
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, ,https://b.example"
	env["STORAGE_TTL"] = "not-a-duration"
	env["BOOKING_RATE_LIMIT"] = "12"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.True(t, cfg.UsesRedis())
	require.Equal(t, pricing.CityMumbai, cfg.DefaultCity)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 720*time.Hour, cfg.StorageTTL)
	require.Equal(t, 12, cfg.BookingRateLimit)
}

func TestLoadCoercesUnknownCity(t *testing.T) {
	env := blankEnv()
	env["DEFAULT_CITY"] = "atlantis"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, pricing.DefaultCity, cfg.DefaultCity)
}

func TestLoadRejectsNonPositiveRateLimit(t *testing.T) {
	env := blankEnv()
	env["BOOKING_RATE_LIMIT"] = "0"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRejectsUnknownRateMode(t *testing.T) {
	env := blankEnv()
	env["BOOKING_RATE_MODE"] = "token-bucket"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadWebhookRequiresSecret(t *testing.T) {
	env := blankEnv()
	env["BOOKING_WEBHOOK_URL"] = "https://ops.example/hooks/booking"
	_, err := config.LoadForTests(env)
	require.ErrorContains(t, err, "BOOKING_WEBHOOK_SECRET")

	env["BOOKING_WEBHOOK_SECRET"] = "s3cret"
	env["BOOKING_WEBHOOK_MAX_ATTEMPTS"] = "3"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Webhook.MaxAttempts)
	require.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
}
