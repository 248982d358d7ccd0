package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"rostersync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyRepo struct {
	inner RunRepository
	fail  bool
}

func (f *flakyRepo) SaveRun(ctx context.Context, run *models.SyncRun) error {
	if f.fail {
		return errors.New("connection refused")
	}
	return f.inner.SaveRun(ctx, run)
}

func (f *flakyRepo) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.inner.GetRun(ctx, id)
}

func (f *flakyRepo) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.inner.ListRuns(ctx, limit)
}

func (f *flakyRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if f.fail {
		return false, errors.New("connection refused")
	}
	return f.inner.CheckRateLimit(ctx, key, limit, window)
}

func failoverUnderTest() (*FailoverRunRepository, *flakyRepo, *MemoryRunRepository) {
	primary := &flakyRepo{inner: NewMemoryRunRepository(time.Hour)}
	fallback := NewMemoryRunRepository(time.Hour)
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	return NewFailoverRunRepository(primary, fallback, &logger), primary, fallback
}

func TestFailoverUsesPrimary(t *testing.T) {
	repo, _, fallback := failoverUnderTest()
	ctx := context.Background()

	require.NoError(t, repo.SaveRun(ctx, &models.SyncRun{ID: "a", StartedAt: time.Now()}))

	got, err := repo.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = fallback.GetRun(ctx, "a")
	assert.ErrorIs(t, err, models.ErrNotFound, "fallback must stay untouched while primary is healthy")
}

func TestFailoverFallsBackOnError(t *testing.T) {
	repo, primary, fallback := failoverUnderTest()
	ctx := context.Background()

	primary.fail = true
	require.NoError(t, repo.SaveRun(ctx, &models.SyncRun{ID: "a", StartedAt: time.Now()}))

	got, err := fallback.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	// Further calls skip the broken primary entirely.
	got, err = repo.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestFailoverNotFoundIsNotAFailure(t *testing.T) {
	repo, primary, _ := failoverUnderTest()

	_, err := repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, repo.isDown.Load(), "a miss on the primary must not trip failover")
	assert.False(t, primary.fail)
}
