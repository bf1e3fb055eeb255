package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/servis-booking/internal/events"
	"github.com/noah-isme/servis-booking/internal/obs"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitFansOut(t *testing.T) {
	fixed := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	first := &captureNotifier{}
	second := &captureNotifier{}
	bus := events.Bus{
		Notifiers: []events.Notifier{first, nil, second},
		Now:       func() time.Time { return fixed },
	}

	ev, err := bus.Emit(context.Background(), events.TopicBookingRequested, "sess-1", map[string]any{"reference": "abc"})
	require.NoError(t, err)
	require.Equal(t, events.TopicBookingRequested, ev.Topic)
	require.Equal(t, fixed, ev.OccurredAt)
	require.JSONEq(t, `{"reference":"abc"}`, string(ev.Payload))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, ev.ID, second.events[0].ID)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	boom := errors.New("boom")
	delivered := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{
		events.NotifierFunc(func(context.Context, events.Event) error { return boom }),
		delivered,
	}}

	_, err := bus.Emit(context.Background(), events.TopicSessionExpired, "sess-2", nil)
	require.ErrorIs(t, err, boom)
	require.Len(t, delivered.events, 1)
	require.Equal(t, "{}", string(delivered.events[0].Payload))
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "sess", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicBookingRequested, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicBookingRequested, "sess", "not json")
	require.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	bus := events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: zerolog.New(&buf)}}}
	_, err := bus.Emit(context.Background(), events.TopicBookingRequested, "sess-3", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "domain_event", line["message"])
	require.Equal(t, "sess-3", line["aggregate_id"])
	require.Equal(t, map[string]any{"n": float64(1)}, line["payload"])
}

func TestMetricsNotifierCountsTopics(t *testing.T) {
	obs.MustRegisterDomainMetrics("events_test", prometheus.NewRegistry())
	bus := events.Bus{Notifiers: []events.Notifier{events.MetricsNotifier{}}}
	_, err := bus.Emit(context.Background(), events.TopicSessionExpired, "sess-4", nil)
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(obs.EventsEmittedTotal.WithLabelValues(events.TopicSessionExpired)))
}
