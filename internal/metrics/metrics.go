// Package metrics holds the Prometheus collectors voicepost exports on
// /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
//
// Every recording method is safe on a nil *Metrics, so services and tests
// that do not care about metrics can pass nil.
type Metrics struct {
	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Background jobs
	PublishAttempts *prometheus.CounterVec
	IngestedPosts   *prometheus.CounterVec
	IngestFailures  *prometheus.CounterVec

	// Language model
	Variations *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicepost_http_requests_total",
				Help: "HTTP requests by method, route pattern and status code.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voicepost_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PublishAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicepost_publish_attempts_total",
				Help: "Scheduled post publish attempts by platform and result.",
			},
			[]string{"platform", "result"},
		),
		IngestedPosts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicepost_ingested_posts_total",
				Help: "Remote posts whose metrics were recorded, by platform.",
			},
			[]string{"platform"},
		),
		IngestFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicepost_ingest_failures_total",
				Help: "Metrics ingestion failures by platform and stage (credentials, fetch, store).",
			},
			[]string{"platform", "stage"},
		),
		Variations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicepost_variation_requests_total",
				Help: "Text variation requests by personality and result.",
			},
			[]string{"personality", "result"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.PublishAttempts,
		m.IngestedPosts,
		m.IngestFailures,
		m.Variations,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) PublishResult(platform, result string) {
	if m == nil {
		return
	}
	m.PublishAttempts.WithLabelValues(platform, result).Inc()
}

func (m *Metrics) PostIngested(platform string) {
	if m == nil {
		return
	}
	m.IngestedPosts.WithLabelValues(platform).Inc()
}

func (m *Metrics) IngestFailed(platform, stage string) {
	if m == nil {
		return
	}
	m.IngestFailures.WithLabelValues(platform, stage).Inc()
}

func (m *Metrics) VariationResult(personality, result string) {
	if m == nil {
		return
	}
	m.Variations.WithLabelValues(personality, result).Inc()
}
