// Package metrics exposes Prometheus collectors for relay traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sttrelay"

// Metrics groups the relay collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	fetchTotal       *prometheus.CounterVec
	audioBytes       prometheus.Histogram
}

// New registers relay collectors, plus Go and process collectors, on a
// private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Terminal relay responses by outcome",
			},
			[]string{"outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of STT upstream calls in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audio_fetch_total",
				Help:      "Audio URL fetches by result",
			},
			[]string{"status"},
		),
		audioBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "audio_bytes",
				Help:      "Size of resolved audio payloads in bytes",
				Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 7), // 16KiB .. 64MiB
			},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.upstreamDuration,
		m.fetchTotal,
		m.audioBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records an STT call; status 0 means a transport failure.
func (m *Metrics) ObserveUpstream(status int, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(statusLabel(status)).Observe(d.Seconds())
}

func (m *Metrics) ObserveFetch(result string) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAudioBytes(n int) {
	if m == nil {
		return
	}
	m.audioBytes.Observe(float64(n))
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
