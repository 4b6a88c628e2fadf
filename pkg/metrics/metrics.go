// Package metrics counts what the connection races do, for export as a Prometheus textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "concon"

// Attempt results. Discarded connections are counted as Connected too.
const (
	Connected = "connected"
	Failed    = "failed"
	Discarded = "discarded"
)

// Race outcomes
const (
	Won       = "won"
	AllFailed = "all_failed"
)

type Metrics struct {
	Registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	races           *prometheus.CounterVec
	connectDuration prometheus.Histogram
	responseBytes   prometheus.Histogram
}

// New builds a Metrics on its own registry, so that tests and multiple probers don't collide
// on the global one.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts to candidate addresses, by result.",
		}, []string{"result"}),
		races: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "races_total",
			Help:      "Connection races, by outcome.",
		}, []string{"outcome"}),
		connectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Time taken by successful connection attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		responseBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_bytes",
			Help:      "Size of responses read from winning connections.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		}),
	}

	m.Registry.MustRegister(m.attempts, m.races, m.connectDuration, m.responseBytes)

	return m
}

// The Observe methods do nothing on a nil *Metrics.

func (m *Metrics) ObserveAttempt(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
	if result == Connected {
		m.connectDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) ObserveRace(outcome string) {
	if m == nil {
		return
	}
	m.races.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveResponse(n int) {
	if m == nil {
		return
	}
	m.responseBytes.Observe(float64(n))
}

func (m *Metrics) Attempts(result string) prometheus.Counter {
	return m.attempts.WithLabelValues(result)
}

func (m *Metrics) Races(outcome string) prometheus.Counter {
	return m.races.WithLabelValues(outcome)
}

// WriteTextfile writes the current values in the format node_exporter's textfile collector reads.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
