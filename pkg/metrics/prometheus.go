package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder implements domain.repository.Metrics using Prometheus. The job is
// a batch process, so counters are pushed to a Pushgateway at the end of the
// run instead of being scraped.
type Recorder struct {
	fetchesTotal   *prometheus.CounterVec
	rowsWritten    *prometheus.CounterVec
	rowsDropped    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	symbolDuration *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equityschema_fetches_total",
				Help: "Total number of vendor fetches issued",
			},
			[]string{"kind", "symbol"},
		),
		rowsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equityschema_rows_written_total",
				Help: "Total fact rows written to the store",
			},
			[]string{"table"},
		),
		rowsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equityschema_rows_dropped_total",
				Help: "Total malformed rows dropped during normalization",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equityschema_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		symbolDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "equityschema_symbol_duration_seconds",
				Help:    "End-to-end processing time per symbol",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
	}
}

// RecordFetch records one vendor fetch of the given kind.
func (r *Recorder) RecordFetch(kind, symbol string) {
	r.fetchesTotal.WithLabelValues(kind, symbol).Inc()
}

// RecordRowsWritten records rows written to a fact table.
func (r *Recorder) RecordRowsWritten(table string, n int) {
	r.rowsWritten.WithLabelValues(table).Add(float64(n))
}

// RecordRowsDropped records rows dropped during normalization.
func (r *Recorder) RecordRowsDropped(reason string, n int) {
	r.rowsDropped.WithLabelValues(reason).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSymbolDuration records per-symbol processing time in seconds.
func (r *Recorder) RecordSymbolDuration(symbol string, seconds float64) {
	r.symbolDuration.WithLabelValues(symbol).Observe(seconds)
}

// Push sends the default registry to a Pushgateway under the given job name.
func Push(gateway, job string) error {
	if err := push.New(gateway, job).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Nop discards all observations. Used when metrics are disabled.
type Nop struct{}

func (Nop) RecordFetch(kind, symbol string)                 {}
func (Nop) RecordRowsWritten(table string, n int)           {}
func (Nop) RecordRowsDropped(reason string, n int)          {}
func (Nop) RecordError(kind string)                         {}
func (Nop) RecordSymbolDuration(symbol string, sec float64) {}
