// Package metrics provides Prometheus metrics for the price oracle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Subscriber states exported by SubscriberState.
var subscriberStates = []string{"connecting", "streaming", "backoff", "stopped"}

// Metrics owns a private registry so that tests can build as many as they
// need. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	retentionRuns        *prometheus.CounterVec
	retentionLastSuccess prometheus.Gauge
	retentionRowsDeleted prometheus.Counter
	pipelineUpdates      *prometheus.CounterVec
	subscriberState      *prometheus.GaugeVec
	subscriberReconnects *prometheus.CounterVec
	subscriberLastUpdate *prometheus.GaugeVec
}

// New registers all oracle collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		retentionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retention_runs_total",
				Help: "Total number of retention runs by result",
			},
			[]string{"result"},
		),
		retentionLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "retention_last_success_timestamp",
				Help: "Unix timestamp of the last successful retention run",
			},
		),
		retentionRowsDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retention_rows_deleted_total",
				Help: "Total number of price rows removed by retention",
			},
		),
		pipelineUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_updates_total",
				Help: "Total number of account updates processed by result",
			},
			[]string{"result"},
		),
		subscriberState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "subscriber_state",
				Help: "Current subscriber state per pool (1 for the active state)",
			},
			[]string{"pool", "state"},
		),
		subscriberReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscriber_reconnects_total",
				Help: "Total number of subscription reconnects per pool",
			},
			[]string{"pool"},
		),
		subscriberLastUpdate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "subscriber_last_update_timestamp",
				Help: "Unix timestamp of the last account update per pool",
			},
			[]string{"pool"},
		),
	}

	m.registry.MustRegister(
		m.retentionRuns,
		m.retentionLastSuccess,
		m.retentionRowsDeleted,
		m.pipelineUpdates,
		m.subscriberState,
		m.subscriberReconnects,
		m.subscriberLastUpdate,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RetentionRun records one retention tick.
func (m *Metrics) RetentionRun(deleted int64, err error, at time.Time) {
	if m == nil {
		return
	}
	if err != nil {
		m.retentionRuns.WithLabelValues("error").Inc()
		return
	}
	m.retentionRuns.WithLabelValues("ok").Inc()
	m.retentionRowsDeleted.Add(float64(deleted))
	m.retentionLastSuccess.Set(float64(at.Unix()))
}

// PipelineUpdates exposes the per-result update counter.
func (m *Metrics) PipelineUpdates() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.pipelineUpdates
}

// PipelineUpdate counts one processed update under result.
func (m *Metrics) PipelineUpdate(result string) {
	if m == nil {
		return
	}
	m.pipelineUpdates.WithLabelValues(result).Inc()
}

// SubscriberState marks state as the active state for pool.
func (m *Metrics) SubscriberState(pool, state string) {
	if m == nil {
		return
	}
	for _, s := range subscriberStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.subscriberState.WithLabelValues(pool, s).Set(value)
	}
}

func (m *Metrics) SubscriberReconnect(pool string) {
	if m == nil {
		return
	}
	m.subscriberReconnects.WithLabelValues(pool).Inc()
}

func (m *Metrics) SubscriberUpdate(pool string, at time.Time) {
	if m == nil {
		return
	}
	m.subscriberLastUpdate.WithLabelValues(pool).Set(float64(at.Unix()))
}
