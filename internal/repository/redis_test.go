package repository

import (
	"context"
	"testing"
	"time"

	"rostersync/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisRepo(t *testing.T) (*RedisRunRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRunRepository(client, time.Hour), mr
}

func TestRedisSaveAndGetRun(t *testing.T) {
	repo, _ := testRedisRepo(t)
	ctx := context.Background()

	run := &models.SyncRun{
		ID:        "run-1",
		Operation: models.RunOpImport,
		Target:    "ward-a",
		State:     models.RunStateRunning,
		StartedAt: time.Now().Truncate(time.Second),
	}
	require.NoError(t, repo.SaveRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "ward-a", got.Target)
	assert.Equal(t, models.RunStateRunning, got.State)
}

func TestRedisGetRunNotFound(t *testing.T) {
	repo, _ := testRedisRepo(t)
	_, err := repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedisProgressSavesDoNotDuplicateIndex(t *testing.T) {
	repo, _ := testRedisRepo(t)
	ctx := context.Background()

	run := &models.SyncRun{ID: "run-1", Operation: models.RunOpImport, State: models.RunStateRunning, StartedAt: time.Now()}
	require.NoError(t, repo.SaveRun(ctx, run))
	run.Processed = 10
	require.NoError(t, repo.SaveRun(ctx, run))
	run.State = models.RunStateCompleted
	require.NoError(t, repo.SaveRun(ctx, run))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStateCompleted, runs[0].State)
	assert.Equal(t, int64(10), runs[0].Processed)
}

func TestRedisListRunsNewestFirst(t *testing.T) {
	repo, _ := testRedisRepo(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.SaveRun(ctx, &models.SyncRun{
			ID: id, Operation: models.RunOpExport, StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
}

func TestRedisListRunsPrunesExpired(t *testing.T) {
	repo, mr := testRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveRun(ctx, &models.SyncRun{ID: "run-1", StartedAt: time.Now()}))
	mr.FastForward(2 * time.Hour)

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRedisCheckRateLimit(t *testing.T) {
	repo, _ := testRedisRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "client-a", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := repo.CheckRateLimit(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different key has its own window.
	allowed, err = repo.CheckRateLimit(ctx, "client-b", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
