package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/servis-booking/internal/booking"
	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/config"
	"github.com/noah-isme/servis-booking/internal/events"
	"github.com/noah-isme/servis-booking/internal/health"
	"github.com/noah-isme/servis-booking/internal/lock"
	"github.com/noah-isme/servis-booking/internal/notify"
	"github.com/noah-isme/servis-booking/internal/obs"
	"github.com/noah-isme/servis-booking/internal/persist"
	"github.com/noah-isme/servis-booking/internal/ratelimit"
	"github.com/noah-isme/servis-booking/internal/resilience"
	"github.com/noah-isme/servis-booking/internal/security"
)

const (
	keyPrefix    = "servis:"
	maxBodyBytes = 16 << 10
)

// Registry is the Prometheus registry the application registers on and serves from.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// App holds the wired dependencies of the API process.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Redis    *redis.Client
	Storage  persist.Storage
	Catalog  *catalog.Catalog
	Bus      *events.Bus
	Sessions *booking.Manager
	Webhook  *notify.Dispatcher
	Router   http.Handler
}

// New wires storage, catalog, sessions and the HTTP router from cfg.
// Without REDIS_URL state lives in process memory.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg Registry) (*App, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	namespace := cfg.Obs.MetricsNamespace
	obs.MustRegisterDomainMetrics(namespace, reg)
	resilience.MustRegisterMetrics(namespace, reg)

	cat, err := catalog.NewLoader().LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Catalog: cat}

	var (
		storage  persist.Storage
		readyDep health.Pinger
		limiter  ratelimit.Limiter
		submit   booking.Locker
	)
	if cfg.UsesRedis() {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		redisStorage := persist.NewRedisStorage(client, keyPrefix+"state:", cfg.StorageTTL)
		storage = persist.GuardedStorage{
			Storage: redisStorage,
			Breaker: resilience.NewBreaker(resilience.BreakerConfig{
				Target:       "redis",
				MinRequests:  5,
				FailureRatio: 0.5,
				OpenFor:      15 * time.Second,
				Logger:       logger,
			}),
		}
		readyDep = redisStorage
		submit = lock.Mutex{Client: client, Prefix: keyPrefix + "lock:", TTL: 10 * time.Second}
		if cfg.BookingRateMode == "fixed" {
			fixed, err := ratelimit.NewRedisStoreLimiter(client, keyPrefix+"ratelimit-fixed")
			if err != nil {
				_ = client.Close()
				return nil, err
			}
			limiter = fixed
		} else {
			limiter = ratelimit.SlidingWindow{Client: client, Prefix: keyPrefix + "ratelimit:"}
		}
	} else {
		memory := persist.NewMemoryStorage()
		storage = memory
		readyDep = memory
		limiter = ratelimit.NewMemoryLimiter(keyPrefix + "ratelimit")
		logger.Warn().Msg("REDIS_URL not set; visitor state is kept in process memory")
	}
	a.Storage = storage

	a.Bus = &events.Bus{Notifiers: []events.Notifier{
		events.LogNotifier{Logger: logger},
		events.MetricsNotifier{},
	}}
	if cfg.Webhook.URL != "" {
		a.Webhook, err = notify.NewDispatcher(notify.DispatcherConfig{
			URL:         cfg.Webhook.URL,
			Secret:      cfg.Webhook.Secret,
			Timeout:     cfg.Webhook.Timeout,
			MaxAttempts: cfg.Webhook.MaxAttempts,
			Backoff:     cfg.Webhook.Backoff,
			Breaker: resilience.NewBreaker(resilience.BreakerConfig{
				Target:       "webhook",
				MinRequests:  3,
				FailureRatio: 0.5,
				OpenFor:      30 * time.Second,
				Logger:       logger,
			}),
			Logger: logger,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Bus.Notifiers = append(a.Bus.Notifiers, a.Webhook)
	}
	a.Sessions = booking.NewManager(booking.ManagerConfig{
		Catalog:     cat,
		Binder:      persist.Binder{Storage: storage, Logger: logger},
		DefaultCity: cfg.DefaultCity,
		IdleTTL:     cfg.SessionIdleTTL,
		Bus:         a.Bus,
		Logger:      logger,
	})

	svc := booking.NewService(booking.ServiceConfig{Catalog: cat, Bus: a.Bus, Logger: logger, Location: indiaTime(), Lock: submit})
	bookingLimit := ratelimit.Handler{
		Limiter: limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.SessionOrIPKey("booking"),
			Window: cfg.BookingRateWindow,
			Max:    cfg.BookingRateLimit,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("booking rate limiter unavailable") },
	}

	a.Router = a.routes(reg, routeDeps{
		catalog: catalog.NewHandler(catalog.HandlerConfig{Catalog: cat}),
		booking: booking.NewHandler(booking.HandlerConfig{
			Service:      svc,
			Sessions:     a.Sessions,
			Logger:       logger,
			BookingLimit: bookingLimit.Middleware,
		}),
		health: health.Handler{Probes: []health.Probe{
			{Name: "storage", Pinger: readyDep},
			{Name: "catalog", Pinger: health.PingerFunc(func(context.Context) error {
				if cat.Len() == 0 {
					return errors.New("catalog is empty")
				}
				return nil
			})},
		}},
	})
	return a, nil
}

type routeDeps struct {
	catalog *catalog.Handler
	booking *booking.Handler
	health  health.Handler
}

func (a *App) routes(reg Registry, deps routeDeps) http.Handler {
	cfg := a.Config
	httpMetrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), reg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: a.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", obs.SessionHeader},
		ExposedHeaders: []string{obs.SessionHeader, "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if cfg.Obs.EnablePprof {
		r.Mount("/debug/pprof", middleware.Profiler())
	}
	r.Get("/health/live", deps.health.Live)
	r.Get("/health/ready", deps.health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: maxBodyBytes}.Middleware)
		v.Get("/cities", deps.catalog.Cities)
		v.Get("/catalog/services", deps.catalog.Services)
		v.Get("/catalog/addons", deps.catalog.Addons)
		deps.booking.Routes(v)
	})
	return r
}

// Run drives background work until ctx is done: idle session eviction and webhook delivery.
func (a *App) Run(ctx context.Context, sweepEvery time.Duration) {
	if a.Webhook != nil {
		go a.Webhook.Run(ctx)
	}
	a.Sessions.Run(ctx, sweepEvery)
}

// Close releases external connections.
func (a *App) Close() error {
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// indiaTime is the zone booking dates are interpreted in.
func indiaTime() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*60*60+30*60)
}
