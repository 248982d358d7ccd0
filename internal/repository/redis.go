package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rostersync/internal/config"
	"rostersync/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	runKeyPrefix = "sync_run:"
	runIndexKey  = "sync_runs:index"
)

type RedisRunRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisRunRepository(client *redis.Client, ttl time.Duration) *RedisRunRepository {
	return &RedisRunRepository{client: client, ttl: ttl}
}

// SaveRun stores the record and indexes the run ID by start time. ZADD
// is idempotent per member, so repeated progress saves do not duplicate
// index entries.
func (r *RedisRunRepository) SaveRun(ctx context.Context, run *models.SyncRun) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	key := runKeyPrefix + run.ID
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set run in redis: %w", err)
	}
	if err := r.client.ZAdd(ctx, runIndexKey, redis.Z{
		Score:  float64(run.StartedAt.UnixNano()),
		Member: run.ID,
	}).Err(); err != nil {
		return fmt.Errorf("index run in redis: %w", err)
	}
	return nil
}

func (r *RedisRunRepository) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, runKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run from redis: %w", err)
	}

	var run models.SyncRun
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recently started runs. Records whose TTL
// lapsed are pruned from the index as they are encountered.
func (r *RedisRunRepository) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	ids, err := r.client.ZRevRange(ctx, runIndexKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list run index: %w", err)
	}

	runs := make([]models.SyncRun, 0, len(ids))
	for _, id := range ids {
		run, err := r.GetRun(ctx, id)
		if err == models.ErrNotFound {
			r.client.ZRem(ctx, runIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func (r *RedisRunRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := "rate_limit:" + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
