// Package queue applies large mutation sets against a rate-limited store
// with a small fixed number of cooperative workers.
package queue

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"rostersync/internal/models"

	"github.com/rs/zerolog"
)

// Operation applies one item; the int is the caller's item index. The
// queue classifies the returned error: models.ErrRateLimited requeues the
// item, models.ErrNotFound counts as success when TreatNotFoundAsSuccess
// is set (a delete target that is already gone is done), anything else
// skips the item permanently so the queue keeps making forward progress.
type Operation func(ctx context.Context, item int) error

// Options tunes a queue run. Zero values fall back to the conservative
// defaults in models: 2 workers, 150ms pacing, 2s rate-limit backoff.
type Options struct {
	Concurrency            int
	PerItemDelay           time.Duration
	RateLimitBackoff       time.Duration
	Jitter                 time.Duration
	MaxItemRetries         int
	TreatNotFoundAsSuccess bool

	// OnProgress, when set, observes counters after every finished item.
	OnProgress func(Progress)
}

// Progress is a point-in-time counter snapshot.
type Progress struct {
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Skipped   int64 `json:"skipped"`
	Retried   int64 `json:"retried"`
}

// Counters accumulates results across a run; safe for concurrent readers
// while workers are still going.
type Counters struct {
	processed int64
	succeeded int64
	skipped   int64
	retried   int64
}

// Snapshot reads the counters atomically.
func (c *Counters) Snapshot() Progress {
	return Progress{
		Processed: atomic.LoadInt64(&c.processed),
		Succeeded: atomic.LoadInt64(&c.succeeded),
		Skipped:   atomic.LoadInt64(&c.skipped),
		Retried:   atomic.LoadInt64(&c.retried),
	}
}

type runner struct {
	mu       sync.Mutex
	queue    []int
	next     int64
	inFlight int64
	retries  map[int]int
}

func (r *runner) take() (int, bool) {
	idx := atomic.AddInt64(&r.next, 1) - 1
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx >= int64(len(r.queue)) {
		// Hand the slot back so a later requeue is not skipped over.
		atomic.AddInt64(&r.next, -1)
		return 0, false
	}
	atomic.AddInt64(&r.inFlight, 1)
	return r.queue[idx], true
}

// requeue puts item back at the tail unless its retry budget is spent.
func (r *runner) requeue(item, maxRetries int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[item]++
	if r.retries[item] > maxRetries {
		return false
	}
	r.queue = append(r.queue, item)
	return true
}

func (r *runner) done() {
	atomic.AddInt64(&r.inFlight, -1)
}

func (r *runner) idle() bool {
	return atomic.LoadInt64(&r.inFlight) == 0
}

// Run drains items [0, n) through op with bounded concurrency. It blocks
// until every item has either succeeded, been skipped, or the context is
// cancelled, and never exits early while requeued work is outstanding.
func Run(ctx context.Context, n int, op Operation, opts Options, logger *zerolog.Logger) (*Counters, error) {
	opts = withDefaults(opts)

	r := &runner{
		queue:   make([]int, 0, n),
		retries: make(map[int]int),
	}
	for i := 0; i < n; i++ {
		r.queue = append(r.queue, i)
	}

	counters := &Counters{}

	var wg sync.WaitGroup
	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			workLoop(ctx, workerID, r, op, opts, counters, logger)
		}(w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return counters, err
	}
	return counters, nil
}

func workLoop(ctx context.Context, workerID int, r *runner, op Operation, opts Options, counters *Counters, logger *zerolog.Logger) {
	for {
		// Cooperative cancellation checkpoint between item dispatches.
		if ctx.Err() != nil {
			return
		}

		item, ok := r.take()
		if !ok {
			if r.idle() {
				return
			}
			// Another worker may still requeue; idle briefly.
			sleepCtx(ctx, 10*time.Millisecond)
			continue
		}

		err := op(ctx, item)
		switch {
		case err == nil:
			atomic.AddInt64(&counters.processed, 1)
			atomic.AddInt64(&counters.succeeded, 1)

		case opts.TreatNotFoundAsSuccess && errors.Is(err, models.ErrNotFound):
			atomic.AddInt64(&counters.processed, 1)
			atomic.AddInt64(&counters.succeeded, 1)

		case errors.Is(err, models.ErrRateLimited):
			if r.requeue(item, opts.MaxItemRetries) {
				atomic.AddInt64(&counters.retried, 1)
				logger.Debug().Int("item", item).Int("worker", workerID).Msg("rate limited, requeued")
			} else {
				// Budget spent; count it done so the run can finish.
				atomic.AddInt64(&counters.processed, 1)
				atomic.AddInt64(&counters.skipped, 1)
				logger.Warn().Int("item", item).Msg("rate-limit retry budget spent, skipping item")
			}
			sleepCtx(ctx, opts.RateLimitBackoff+jitter(opts.Jitter))

		default:
			atomic.AddInt64(&counters.processed, 1)
			atomic.AddInt64(&counters.skipped, 1)
			logger.Error().Err(err).Int("item", item).Msg("mutation failed, item skipped")
		}

		if opts.OnProgress != nil {
			opts.OnProgress(counters.Snapshot())
		}
		r.done()

		// Pace every item, success or not, to spread load.
		sleepCtx(ctx, opts.PerItemDelay+jitter(opts.Jitter))
	}
}

func withDefaults(opts Options) Options {
	if opts.Concurrency <= 0 {
		opts.Concurrency = models.DefaultQueueConcurrency
	}
	if opts.PerItemDelay <= 0 {
		opts.PerItemDelay = models.DefaultPerItemDelayMs * time.Millisecond
	}
	if opts.RateLimitBackoff <= 0 {
		opts.RateLimitBackoff = models.DefaultRateLimitDelayMs * time.Millisecond
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	if opts.MaxItemRetries <= 0 {
		opts.MaxItemRetries = 5
	}
	return opts
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
