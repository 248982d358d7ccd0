// Package repository stores live sync-run progress so operators can poll
// a run while it is still going. Redis is the primary backend with an
// in-memory fallback; both also serve the per-client mutation rate limit.
package repository

import (
	"context"
	"time"

	"rostersync/internal/models"
)

// RunRepository persists run records keyed by run ID.
type RunRepository interface {
	SaveRun(ctx context.Context, run *models.SyncRun) error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
	// CheckRateLimit counts one event for key and reports whether the
	// count stays within limit for the window.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
