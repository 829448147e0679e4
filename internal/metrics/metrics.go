// Package metrics exposes Prometheus counters and histograms for the
// FileOps, AttrOps, and IOOps call surfaces.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelOp     = "op"
	LabelStatus = "status"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics provides Prometheus metrics for filesystem operations.
type Metrics struct {
	opTotal    *prometheus.CounterVec
	opDuration *prometheus.HistogramVec

	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter

	registered bool
}

// NewMetrics creates and registers filesystem operation metrics. If
// registry is nil, metrics are created but not registered, for use in
// tests.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		opTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rfsd",
				Subsystem: "ops",
				Name:      "total",
				Help:      "Total number of filesystem operations by kind and outcome",
			},
			[]string{LabelOp, LabelStatus},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rfsd",
				Subsystem: "ops",
				Name:      "duration_seconds",
				Help:      "Latency of filesystem operations",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{LabelOp},
		),
		bytesRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rfsd",
				Subsystem: "io",
				Name:      "bytes_read_total",
				Help:      "Total number of bytes read",
			},
		),
		bytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rfsd",
				Subsystem: "io",
				Name:      "bytes_written_total",
				Help:      "Total number of bytes written",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(m.opTotal, m.opDuration, m.bytesRead, m.bytesWritten)
		m.registered = true
	}

	return m
}

// ObserveOp records the outcome and latency of a single operation call.
func (m *Metrics) ObserveOp(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.opTotal.WithLabelValues(op, status).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// AddBytesRead records bytes returned by a read operation.
func (m *Metrics) AddBytesRead(n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(float64(n))
}

// AddBytesWritten records bytes accepted by a write operation.
func (m *Metrics) AddBytesWritten(n int) {
	if m == nil {
		return
	}
	m.bytesWritten.Add(float64(n))
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	if m == nil || !m.registered {
		return
	}
	m.opTotal.Describe(ch)
	m.opDuration.Describe(ch)
	ch <- m.bytesRead.Desc()
	ch <- m.bytesWritten.Desc()
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	if m == nil || !m.registered {
		return
	}
	m.opTotal.Collect(ch)
	m.opDuration.Collect(ch)
	ch <- m.bytesRead
	ch <- m.bytesWritten
}
