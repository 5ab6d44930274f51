// Package metrics holds the prometheus collectors for conversation sync and
// turns. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "grove"

// Save kinds.
const (
	SaveCreate = "create"
	SaveUpdate = "update"
)

// Metrics is the set of grove collectors registered on one registry.
type Metrics struct {
	saves        *prometheus.CounterVec
	saveErrors   *prometheus.CounterVec
	saveDuration prometheus.Histogram

	turns        *prometheus.CounterVec
	turnDuration prometheus.Histogram

	nodes prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg uses a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversation_saves_total",
				Help:      "Total number of persisted conversation snapshots",
			},
			[]string{"kind"},
		),
		saveErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_errors_total",
				Help:      "Total number of failed remote store calls",
			},
			[]string{"op"},
		),
		saveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversation_save_duration_seconds",
				Help:      "Remote store save duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of submitted turns",
			},
			[]string{"status"},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "End to end turn duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
		),
		nodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tree_nodes",
				Help:      "Number of nodes in the loaded conversation tree",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.saves, m.saveErrors, m.saveDuration, m.turns, m.turnDuration, m.nodes)

	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveSave records a successful save of the given kind.
func (m *Metrics) ObserveSave(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(kind).Inc()
	m.saveDuration.Observe(d.Seconds())
}

// SyncFailed records a failed remote store call.
func (m *Metrics) SyncFailed(op string) {
	if m == nil {
		return
	}
	m.saveErrors.WithLabelValues(op).Inc()
}

// ObserveTurn records a finished turn.
func (m *Metrics) ObserveTurn(err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.turns.WithLabelValues(status).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// SetNodes records the size of the loaded tree.
func (m *Metrics) SetNodes(n int) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(n))
}
