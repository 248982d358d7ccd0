package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	Register()
	Register() // idempotent

	IncSyncRun("import", "completed")
	IncSyncRun("import", "completed")
	IncSheetRetry("429")
	IncImportSkip("employee_not_found")
	IncHTTP("/api/v1/sync/import", "200")

	assert.Equal(t, 2.0, testutil.ToFloat64(syncRuns.WithLabelValues("import", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sheetAPIRetries.WithLabelValues("429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(importRowsSkipped.WithLabelValues("employee_not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("/api/v1/sync/import", "200")))
}
