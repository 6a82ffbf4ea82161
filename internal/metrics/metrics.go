// Package metrics provides Prometheus metrics for the crewmate backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	TurnsTotal       *prometheus.CounterVec
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewmate_requests_total",
				Help: "Total HTTP requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewmate_request_duration_seconds",
				Help:    "Request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewmate_turns_total",
				Help: "AI reply turns by persona and outcome.",
			},
			[]string{"persona", "outcome"},
		),
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewmate_provider_calls_total",
				Help: "Text-completion provider calls by provider and result.",
			},
			[]string{"provider", "result"},
		),
		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewmate_provider_duration_seconds",
				Help:    "Text-completion call duration by provider.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewmate_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.TurnsTotal)
	reg.MustRegister(m.ProviderCalls)
	reg.MustRegister(m.ProviderDuration)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// ObserveRequest records request duration.
func (m *Metrics) ObserveRequest(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordTurn increments the turn counter.
func (m *Metrics) RecordTurn(persona, outcome string) {
	m.TurnsTotal.WithLabelValues(persona, outcome).Inc()
}

// RecordProviderCall increments the provider call counter.
func (m *Metrics) RecordProviderCall(provider, result string) {
	m.ProviderCalls.WithLabelValues(provider, result).Inc()
}

// ObserveProviderCall records provider call duration.
func (m *Metrics) ObserveProviderCall(provider string, seconds float64) {
	m.ProviderDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
