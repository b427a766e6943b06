// Package metrics exposes relay counters and gauges for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes.
const (
	DeliveryDirect     = "direct"
	DeliveryTranslated = "translated"
	DeliveryFailed     = "failed"
	DeliveryDropped    = "dropped"
)

// Suggestion outcomes.
const (
	SuggestionPushed = "pushed"
	SuggestionEmpty  = "empty"
	SuggestionFailed = "failed"
)

// Metrics holds relay collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	deliveries     *prometheus.CounterVec
	suggestions    *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	rooms          prometheus.Gauge
	participants   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Per-recipient message deliveries by outcome.",
		}, []string{"outcome"}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_suggestions_total",
			Help: "Suggestion fan-outs by outcome.",
		}, []string{"outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_gateway_duration_seconds",
			Help:    "Latency of translation and suggestion gateway calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"gateway", "status"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_rooms_active",
			Help: "Rooms with a live worker.",
		}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_participants",
			Help: "Participants currently joined to a room.",
		}),
	}
	reg.MustRegister(m.deliveries, m.suggestions, m.gatewayLatency, m.rooms, m.participants)
	return m
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) Delivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Suggestion(outcome string) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(outcome).Inc()
}

// Gateway records the duration of one gateway call.
func (m *Metrics) Gateway(name string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.gatewayLatency.WithLabelValues(name, status).Observe(time.Since(started).Seconds())
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) AddParticipants(delta int) {
	if m == nil {
		return
	}
	m.participants.Add(float64(delta))
}
