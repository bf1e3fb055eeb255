package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/servis-booking/internal/events"
	"github.com/noah-isme/servis-booking/internal/obs"
	"github.com/noah-isme/servis-booking/internal/resilience"
)

// ErrQueueFull is returned by Notify when the delivery backlog is saturated.
var ErrQueueFull = errors.New("notify: webhook queue full")

// DispatcherConfig configures NewDispatcher.
type DispatcherConfig struct {
	URL         string
	Secret      string
	Topics      []string
	Client      *http.Client
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	QueueSize   int
	Breaker     *resilience.Breaker
	Logger      zerolog.Logger
}

// Dispatcher forwards domain events to an operations webhook. Notify only queues; Run delivers.
type Dispatcher struct {
	url         string
	secret      string
	topics      []string
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
	breaker     *resilience.Breaker
	logger      zerolog.Logger
	queue       chan events.Event
	now         func() time.Time
}

// NewDispatcher validates the endpoint and builds a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if err := validateURL(cfg.URL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("notify: webhook secret is required")
	}
	client := cfg.Client
	if client == nil {
		client = HTTPClient(cfg.Timeout)
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	topics := cfg.Topics
	if len(topics) == 0 {
		topics = []string{events.TopicBookingRequested}
	}
	return &Dispatcher{
		url:         cfg.URL,
		secret:      cfg.Secret,
		topics:      topics,
		client:      client,
		maxAttempts: attempts,
		backoff:     backoff,
		breaker:     cfg.Breaker,
		logger:      cfg.Logger,
		queue:       make(chan events.Event, size),
		now:         time.Now,
	}, nil
}

// Notify implements events.Notifier. Events outside the subscribed topics are ignored.
func (d *Dispatcher) Notify(_ context.Context, ev events.Event) error {
	if !slices.Contains(d.topics, ev.Topic) {
		return nil
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		obs.RecordWebhookDelivery("dropped")
		return fmt.Errorf("%w: event %s", ErrQueueFull, ev.ID)
	}
}

// Run delivers queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			if err := d.Deliver(ctx, ev); err != nil && ctx.Err() == nil {
				d.logger.Error().Err(err).Str("event_id", ev.ID.String()).Str("topic", ev.Topic).Msg("webhook delivery abandoned")
			}
		}
	}
}

// Deliver posts ev, retrying with exponential backoff up to the attempt limit.
func (d *Dispatcher) Deliver(ctx context.Context, ev events.Event) error {
	ctx, span := otel.Tracer("servis-booking/notify").Start(ctx, "Dispatcher.Deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.event_id", ev.ID.String()),
		attribute.String("webhook.topic", ev.Topic),
	)

	var lastErr error
	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, d.nextDelay(attempt-1)); err != nil {
				return err
			}
		}
		start := time.Now()
		err := d.attempt(ctx, ev, attempt+1)
		if err == nil {
			obs.ObserveWebhookAttempt("delivered", time.Since(start))
			obs.RecordWebhookDelivery("delivered")
			return nil
		}
		obs.ObserveWebhookAttempt("failed", time.Since(start))
		lastErr = err
		var perm permanentError
		if errors.As(err, &perm) {
			break
		}
	}
	span.RecordError(lastErr)
	obs.RecordWebhookDelivery("abandoned")
	return lastErr
}

func (d *Dispatcher) attempt(ctx context.Context, ev events.Event, n int) error {
	call := func(ctx context.Context) error { return d.post(ctx, ev, n) }
	if d.breaker == nil {
		return call(ctx)
	}
	return d.breaker.Do(ctx, call)
}

func (d *Dispatcher) post(ctx context.Context, ev events.Event, n int) error {
	body, err := json.Marshal(struct {
		EventID     string          `json:"eventId"`
		Topic       string          `json:"topic"`
		AggregateID string          `json:"aggregateId"`
		Data        json.RawMessage `json:"data"`
		OccurredAt  time.Time       `json:"occurredAt"`
	}{
		EventID:     ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID,
		Data:        ev.Payload,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return permanentError{err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return permanentError{err}
	}
	ts := d.now().Unix()
	eventID := ev.ID.String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "servis-booking-webhooks/1.0")
	req.Header.Set("X-Event-ID", eventID)
	req.Header.Set("X-Event-Topic", ev.Topic)
	req.Header.Set("X-Delivery-Attempt", strconv.Itoa(n))
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(d.secret, ts, eventID, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return permanentError{fmt.Errorf("webhook rejected event: status %d", resp.StatusCode)}
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}

func (d *Dispatcher) nextDelay(attempt int) time.Duration {
	return d.backoff << min(attempt, 6)
}

// permanentError stops retries; the receiver will not accept the event as sent.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("notify: invalid webhook url: %w", err)
	}
	if parsed.Host == "" {
		return errors.New("notify: webhook url must include host")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" {
			return nil
		}
		return errors.New("notify: http webhook only allowed for localhost")
	default:
		return errors.New("notify: webhook url must be http or https")
	}
}

// ComputeSignature returns the hex HMAC-SHA256 of "<ts>.<eventID>.<body>" keyed by secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns a traced client for webhook delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
