package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"rostersync/internal/models"
)

// MemoryRunRepository keeps runs in-process. Used standalone in tests
// and single-node setups, and as the failover target behind Redis.
type MemoryRunRepository struct {
	mu         sync.Mutex
	runs       map[string]memoryRunEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
}

type memoryRunEntry struct {
	run       models.SyncRun
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryRunRepository(ttl time.Duration) *MemoryRunRepository {
	return &MemoryRunRepository{
		runs:       make(map[string]memoryRunEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
	}
}

func (r *MemoryRunRepository) SaveRun(ctx context.Context, run *models.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = memoryRunEntry{run: *run, expiresAt: time.Now().Add(r.ttl)}
	r.evictExpired()
	return nil
}

func (r *MemoryRunRepository) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.runs[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, models.ErrNotFound
	}
	run := entry.run
	return &run, nil
}

func (r *MemoryRunRepository) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var runs []models.SyncRun
	for _, entry := range r.runs {
		if now.After(entry.expiresAt) {
			continue
		}
		runs = append(runs, entry.run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *MemoryRunRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	} else {
		entry.count++
	}

	return entry.count <= limit, nil
}

// evictExpired is called under the lock on every save; run volume is low
// enough that a full scan is fine.
func (r *MemoryRunRepository) evictExpired() {
	now := time.Now()
	for id, entry := range r.runs {
		if now.After(entry.expiresAt) {
			delete(r.runs, id)
		}
	}
}
