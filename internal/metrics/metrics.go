// Package metrics exposes the Prometheus instrumentation surface shared by
// every Scouter component: transport queue depth, publish latency, archiver
// throughput, and drift evaluator runs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "scouter"

// Registry wraps a dedicated prometheus.Registerer so Scouter's metrics
// never collide with a host process's default registry.
type Registry struct {
	reg *prometheus.Registry

	QueueDepth       *prometheus.GaugeVec
	PublishLatency   *prometheus.HistogramVec
	PublishErrors    *prometheus.CounterVec
	ArchiverBatches  *prometheus.CounterVec
	ArchiverRows     *prometheus.CounterVec
	EvaluatorRuns    *prometheus.CounterVec
	EvaluatorLatency *prometheus.HistogramVec
	AlertsDispatched *prometheus.CounterVec
}

// New builds and registers every Scouter metric against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "queue_depth",
			Help:      "Number of records buffered in a transport's outbound queue.",
		}, []string{"transport"}),
		PublishLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "publish_latency_seconds",
			Help:      "Time to publish one batch to the transport.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "publish_errors_total",
			Help:      "Count of batches that failed to publish.",
		}, []string{"transport"}),
		ArchiverBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archiver",
			Name:      "batches_total",
			Help:      "Count of parquet batches written to object storage.",
		}, []string{"record_type"}),
		ArchiverRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archiver",
			Name:      "rows_total",
			Help:      "Count of hot-store rows archived.",
		}, []string{"record_type"}),
		EvaluatorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "runs_total",
			Help:      "Count of drift evaluation ticks, by profile kind and outcome.",
		}, []string{"profile_type", "outcome"}),
		EvaluatorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "latency_seconds",
			Help:      "Time to evaluate one claimed profile task.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"profile_type"}),
		AlertsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "dispatched_total",
			Help:      "Count of alerts dispatched, by sink and result.",
		}, []string{"dispatch_type", "result"}),
	}

	reg.MustRegister(
		m.QueueDepth,
		m.PublishLatency,
		m.PublishErrors,
		m.ArchiverBatches,
		m.ArchiverRows,
		m.EvaluatorRuns,
		m.EvaluatorLatency,
		m.AlertsDispatched,
	)

	return m
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.reg
}
