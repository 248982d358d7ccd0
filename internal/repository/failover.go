package repository

import (
	"context"
	"sync/atomic"
	"time"

	"rostersync/internal/models"

	"github.com/rs/zerolog"
)

// FailoverRunRepository fronts a primary (Redis) with an in-memory
// fallback. After a primary failure every call goes to the fallback;
// recovery is probed at most once a minute.
type FailoverRunRepository struct {
	primary   RunRepository
	fallback  RunRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverRunRepository(primary, fallback RunRepository, logger *zerolog.Logger) *FailoverRunRepository {
	return &FailoverRunRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

const recoveryInterval = time.Minute

func (r *FailoverRunRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary run repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverRunRepository) shouldProbe() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverRunRepository) SaveRun(ctx context.Context, run *models.SyncRun) error {
	if !r.isDown.Load() || r.shouldProbe() {
		err := r.primary.SaveRun(ctx, run)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SaveRun(ctx, run)
}

func (r *FailoverRunRepository) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		run, err := r.primary.GetRun(ctx, id)
		if err == nil || err == models.ErrNotFound {
			r.isDown.Store(false)
			return run, err
		}
		r.markDown(err)
	}
	return r.fallback.GetRun(ctx, id)
}

func (r *FailoverRunRepository) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		runs, err := r.primary.ListRuns(ctx, limit)
		if err == nil {
			r.isDown.Store(false)
			return runs, nil
		}
		r.markDown(err)
	}
	return r.fallback.ListRuns(ctx, limit)
}

func (r *FailoverRunRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
