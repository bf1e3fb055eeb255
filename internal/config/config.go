package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/servis-booking/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	StorageTTL         time.Duration
	SessionIdleTTL     time.Duration
	DefaultCity        pricing.City
	CatalogPath        string
	CORSAllowedOrigins []string
	BookingRateLimit   int
	BookingRateWindow  time.Duration
	BookingRateMode    string
	Webhook            WebhookConfig
	Obs                ObsConfig
}

// WebhookConfig points booking events at an operations endpoint. An empty URL disables delivery.
type WebhookConfig struct {
	URL         string
	Secret      string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// ObsConfig groups logging, metrics and tracing settings.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string
	TracingExporter  string
	TracingEndpoint  string
	TracingSampling  float64
	EnablePprof      bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		StorageTTL:         parseDuration(k.String("STORAGE_TTL"), "720h"),
		SessionIdleTTL:     parseDuration(k.String("SESSION_IDLE_TTL"), "2h"),
		DefaultCity:        pricing.CoerceCity(k.String("DEFAULT_CITY")),
		CatalogPath:        strings.TrimSpace(k.String("CATALOG_PATH")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BookingRateLimit:   parseInt(k.String("BOOKING_RATE_LIMIT"), 5),
		BookingRateWindow:  parseDuration(k.String("BOOKING_RATE_WINDOW"), "1m"),
		BookingRateMode:    strings.ToLower(valueOrDefault(k.String("BOOKING_RATE_MODE"), "sliding")),
		Webhook: WebhookConfig{
			URL:         strings.TrimSpace(k.String("BOOKING_WEBHOOK_URL")),
			Secret:      k.String("BOOKING_WEBHOOK_SECRET"),
			Timeout:     parseDuration(k.String("BOOKING_WEBHOOK_TIMEOUT"), "5s"),
			MaxAttempts: parseInt(k.String("BOOKING_WEBHOOK_MAX_ATTEMPTS"), 5),
			Backoff:     parseDuration(k.String("BOOKING_WEBHOOK_BACKOFF"), "2s"),
		},
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "servis"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "none"),
			TracingEndpoint:  strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
			TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			EnablePprof:      parseBool(k.String("OBS_ENABLE_PPROF")),
		},
	}

	if cfg.StorageTTL <= 0 {
		return nil, errors.New("STORAGE_TTL must be positive")
	}
	if cfg.SessionIdleTTL <= 0 {
		return nil, errors.New("SESSION_IDLE_TTL must be positive")
	}
	if cfg.BookingRateLimit <= 0 || cfg.BookingRateWindow <= 0 {
		return nil, errors.New("BOOKING_RATE_LIMIT and BOOKING_RATE_WINDOW must be positive")
	}

	if cfg.BookingRateMode != "sliding" && cfg.BookingRateMode != "fixed" {
		return nil, fmt.Errorf("BOOKING_RATE_MODE must be sliding or fixed, got %q", cfg.BookingRateMode)
	}

	if cfg.Webhook.URL != "" && strings.TrimSpace(cfg.Webhook.Secret) == "" {
		return nil, errors.New("BOOKING_WEBHOOK_SECRET is required when BOOKING_WEBHOOK_URL is set")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// UsesRedis reports whether durable state should live in Redis rather than process memory.
func (c *Config) UsesRedis() bool { return c.RedisURL != "" }

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []error
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("restore env: %w", err)
	}
	return nil
}
