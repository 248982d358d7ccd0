// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rostersync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rostersync",
			Name:      "sync_runs_total",
			Help:      "Completed sync runs by operation and final state.",
		},
		[]string{"operation", "state"},
	)

	sheetAPIRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rostersync",
			Name:      "sheet_api_retries_total",
			Help:      "Spreadsheet API attempts that were retried, by status code.",
		},
		[]string{"status"},
	)

	importRowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rostersync",
			Name:      "import_rows_skipped_total",
			Help:      "Import rows skipped, by reason.",
		},
		[]string{"reason"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, syncRuns, sheetAPIRetries, importRowsSkipped)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncSyncRun records a finished run.
func IncSyncRun(operation, state string) {
	syncRuns.WithLabelValues(operation, state).Inc()
}

// IncSheetRetry records one retried spreadsheet API call.
func IncSheetRetry(status string) {
	sheetAPIRetries.WithLabelValues(status).Inc()
}

// IncImportSkip records one skipped import row.
func IncImportSkip(reason string) {
	importRowsSkipped.WithLabelValues(reason).Inc()
}
