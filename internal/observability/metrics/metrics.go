package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	metricPrefix = "orders_"

	resultCompleted = "completed"
	resultAborted   = "aborted"
	resultError     = "error"
)

// Exported constants for callers.
const (
	ResultCompleted = resultCompleted
	ResultAborted   = resultAborted
	ResultError     = resultError
)

// Metrics bundles the batch collectors on their own registry so a run can push them.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runLatency  *prometheus.HistogramVec
	recordsSeen prometheus.Counter
	customers   prometheus.Gauge
	sinkErrors  *prometheus.CounterVec
	lastSuccess prometheus.Gauge
}

// New constructs and registers the batch metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_runs_total",
				Help: "Total aggregation runs by result",
			},
			[]string{"result"},
		),
		runLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_run_latency_seconds",
				Help:    "Aggregation run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		recordsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "batch_records_total",
			Help: "Total order records folded into customer totals",
		}),
		customers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "batch_customers",
			Help: "Customers in the last aggregation result",
		}),
		sinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_sink_errors_total",
				Help: "Totals sink failures by sink",
			},
			[]string{"sink"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "batch_last_success_timestamp_seconds",
			Help: "Unix time of the last run that did not fail",
		}),
	}
	m.registry.MustRegister(
		m.runsTotal,
		m.runLatency,
		m.recordsSeen,
		m.customers,
		m.sinkErrors,
		m.lastSuccess,
	)
	return m
}

// Registry exposes the underlying registry as a gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records a run result, its latency and its size.
func (m *Metrics) ObserveRun(result string, duration time.Duration, records, customers int) {
	if m == nil {
		return
	}
	if result == "" {
		result = resultCompleted
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.runLatency.WithLabelValues(result).Observe(duration.Seconds())
	if result == resultError {
		return
	}
	if records > 0 {
		m.recordsSeen.Add(float64(records))
	}
	m.customers.Set(float64(customers))
	m.lastSuccess.SetToCurrentTime()
}

// IncSinkError increments the sink failure counter.
func (m *Metrics) IncSinkError(sink string) {
	if m == nil {
		return
	}
	if sink == "" {
		sink = "unknown"
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// Push sends the registry to a Pushgateway under the given job name.
func (m *Metrics) Push(url, job string) error {
	if m == nil {
		return errors.New("metrics: nil metrics")
	}
	if url == "" {
		return errors.New("metrics: empty pushgateway url")
	}
	if job == "" {
		job = "customer_totals"
	}
	return push.New(url, job).Gatherer(m.registry).Push()
}
