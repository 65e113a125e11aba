// Package metrics exposes the import pipeline's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_import",
		Subsystem: "pipeline",
		Name:      "operations_total",
		Help:      "Pipeline operations broken down by operation and outcome kind.",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attendance_import",
		Subsystem: "pipeline",
		Name:      "operation_duration_seconds",
		Help:      "Wall time of pipeline operations.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"operation"})

	stagedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_import",
		Subsystem: "stage",
		Name:      "rows_total",
		Help:      "Staged rows broken down by result (clean, duplicate, error).",
	}, []string{"result"})

	overridesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance_import",
		Subsystem: "apply",
		Name:      "overrides_total",
		Help:      "Monthly overrides written by apply.",
	})

	oracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_import",
		Subsystem: "oracle",
		Name:      "calls_total",
		Help:      "Suggestion oracle calls broken down by kind and result.",
	}, []string{"kind", "result"})
)

// ObserveOperation records one finished pipeline operation. outcome is "ok"
// or the error kind.
func ObserveOperation(operation, outcome string, started time.Time) {
	if outcome == "" {
		outcome = "ok"
	}
	operations.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func RecordStagedRows(clean, duplicates, errs int) {
	stagedRows.WithLabelValues("clean").Add(float64(clean))
	stagedRows.WithLabelValues("duplicate").Add(float64(duplicates))
	stagedRows.WithLabelValues("error").Add(float64(errs))
}

func RecordOverrides(n int) {
	overridesWritten.Add(float64(n))
}

func RecordOracleCall(kind string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	oracleCalls.WithLabelValues(kind, result).Inc()
}
