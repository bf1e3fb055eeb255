package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SelectionMutationsTotal counts selection store mutations by operation.
	SelectionMutationsTotal *prometheus.CounterVec
	// CartMutationsTotal counts cart store mutations by operation.
	CartMutationsTotal *prometheus.CounterVec
	// PersistWritesTotal counts persistence writes by store and outcome.
	PersistWritesTotal *prometheus.CounterVec
	// PersistHydrateTotal counts hydration attempts by store and outcome.
	PersistHydrateTotal *prometheus.CounterVec
	// BookingRequestsTotal counts booking submissions by outcome.
	BookingRequestsTotal *prometheus.CounterVec
	// EventsEmittedTotal counts domain events by topic.
	EventsEmittedTotal *prometheus.CounterVec
	// ActiveSessions reports the number of sessions held in memory.
	ActiveSessions prometheus.Gauge
	// WebhookDeliveriesTotal counts webhook deliveries by final outcome.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookAttemptLatency observes each webhook attempt in milliseconds.
	WebhookAttemptLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers the booking collectors on reg.
// Calling it again with the same registerer reuses the collectors already there.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels))
	}
	SelectionMutationsTotal = counter("selection_mutations_total", "Count of selection store mutations by operation.", "op")
	CartMutationsTotal = counter("cart_mutations_total", "Count of cart store mutations by operation.", "op")
	PersistWritesTotal = counter("persist_writes_total", "Count of persisted state writes by store and result.", "store", "result")
	PersistHydrateTotal = counter("persist_hydrate_total", "Count of state hydrations by store and outcome.", "store", "result")
	BookingRequestsTotal = counter("booking_requests_total", "Count of booking submissions by outcome.", "result")
	EventsEmittedTotal = counter("events_emitted_total", "Count of domain events emitted by topic.", "topic")
	ActiveSessions = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Number of visitor sessions held in memory.",
	}))
	WebhookDeliveriesTotal = counter("webhook_deliveries_total", "Count of webhook deliveries by outcome.", "result")
	WebhookAttemptLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "webhook_attempt_ms",
		Help:      "Latency of webhook delivery attempts in milliseconds.",
		Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"result"}))
}

// RecordSelectionMutation increments the selection mutation counter when registered.
func RecordSelectionMutation(op string) {
	if SelectionMutationsTotal != nil {
		SelectionMutationsTotal.WithLabelValues(op).Inc()
	}
}

// RecordCartMutation increments the cart mutation counter when registered.
func RecordCartMutation(op string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op).Inc()
	}
}

// RecordPersistWrite increments the persistence write counter when registered.
func RecordPersistWrite(store, result string) {
	if PersistWritesTotal != nil {
		PersistWritesTotal.WithLabelValues(store, result).Inc()
	}
}

// RecordHydrate increments the hydration counter when registered.
func RecordHydrate(store, result string) {
	if PersistHydrateTotal != nil {
		PersistHydrateTotal.WithLabelValues(store, result).Inc()
	}
}

// RecordBooking increments the booking counter when registered.
func RecordBooking(result string) {
	if BookingRequestsTotal != nil {
		BookingRequestsTotal.WithLabelValues(result).Inc()
	}
}

// RecordEvent increments the event counter when registered.
func RecordEvent(topic string) {
	if EventsEmittedTotal != nil {
		EventsEmittedTotal.WithLabelValues(topic).Inc()
	}
}

// SetActiveSessions updates the session gauge when registered.
func SetActiveSessions(n int) {
	if ActiveSessions != nil {
		ActiveSessions.Set(float64(n))
	}
}

// RecordWebhookDelivery increments the webhook delivery counter when registered.
func RecordWebhookDelivery(result string) {
	if WebhookDeliveriesTotal != nil {
		WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
}

// ObserveWebhookAttempt records one delivery attempt when registered.
func ObserveWebhookAttempt(result string, d time.Duration) {
	if WebhookAttemptLatency != nil {
		WebhookAttemptLatency.WithLabelValues(result).Observe(DurationMillis(d))
	}
}
