package queue

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rostersync/internal/models"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	return &logger
}

func fastOptions() Options {
	return Options{
		Concurrency:      2,
		PerItemDelay:     time.Millisecond,
		RateLimitBackoff: time.Millisecond,
		Jitter:           time.Millisecond,
	}
}

func TestRunAllSucceed(t *testing.T) {
	var calls int64
	op := func(ctx context.Context, item int) error {
		atomic.AddInt64(&calls, 1)
		return nil
	}

	counters, err := Run(context.Background(), 20, op, fastOptions(), testLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	p := counters.Snapshot()
	if p.Succeeded != 20 || p.Processed != 20 || p.Skipped != 0 {
		t.Fatalf("unexpected counters: %+v", p)
	}
	if calls != 20 {
		t.Fatalf("expected 20 calls, got %d", calls)
	}
}

func TestRunRequeuesRateLimitedItems(t *testing.T) {
	// First call to each of 5 chosen items reports a rate limit; every
	// retry succeeds.
	limited := map[int]bool{3: true, 11: true, 24: true, 37: true, 49: true}
	var mu sync.Mutex
	seen := make(map[int]int)

	op := func(ctx context.Context, item int) error {
		mu.Lock()
		defer mu.Unlock()
		seen[item]++
		if limited[item] && seen[item] == 1 {
			return models.ErrRateLimited
		}
		return nil
	}

	counters, err := Run(context.Background(), 50, op, fastOptions(), testLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	p := counters.Snapshot()
	if p.Succeeded != 50 {
		t.Fatalf("expected succeeded=50, got %+v", p)
	}
	if p.Retried != 5 {
		t.Fatalf("expected 5 retries, got %d", p.Retried)
	}
	for item := range limited {
		if seen[item] != 2 {
			t.Fatalf("item %d expected 2 attempts, got %d", item, seen[item])
		}
	}
}

func TestRunNotFoundDeleteCountsAsSuccess(t *testing.T) {
	op := func(ctx context.Context, item int) error {
		if item%2 == 0 {
			return models.ErrNotFound
		}
		return nil
	}

	opts := fastOptions()
	opts.TreatNotFoundAsSuccess = true
	counters, err := Run(context.Background(), 10, op, opts, testLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	p := counters.Snapshot()
	if p.Succeeded != 10 || p.Skipped != 0 {
		t.Fatalf("not-found deletes must count as success: %+v", p)
	}
}

func TestRunSkipsPermanentFailures(t *testing.T) {
	op := func(ctx context.Context, item int) error {
		if item == 4 {
			return errors.New("constraint violation")
		}
		return nil
	}

	counters, err := Run(context.Background(), 10, op, fastOptions(), testLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	p := counters.Snapshot()
	if p.Succeeded != 9 || p.Skipped != 1 || p.Processed != 10 {
		t.Fatalf("unexpected counters: %+v", p)
	}
}

func TestRunRetryBudgetBounded(t *testing.T) {
	// Item 0 is rate-limited forever; the run must still finish.
	var calls int64
	op := func(ctx context.Context, item int) error {
		if item == 0 {
			atomic.AddInt64(&calls, 1)
			return models.ErrRateLimited
		}
		return nil
	}

	opts := fastOptions()
	opts.MaxItemRetries = 3
	counters, err := Run(context.Background(), 5, op, opts, testLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	p := counters.Snapshot()
	if p.Skipped != 1 || p.Succeeded != 4 {
		t.Fatalf("unexpected counters: %+v", p)
	}
	if calls != 4 { // initial attempt + 3 retries
		t.Fatalf("expected 4 attempts for stuck item, got %d", calls)
	}
}

func TestRunObservesProgress(t *testing.T) {
	var last Progress
	var mu sync.Mutex
	opts := fastOptions()
	opts.OnProgress = func(p Progress) {
		mu.Lock()
		last = p
		mu.Unlock()
	}

	_, err := Run(context.Background(), 8, func(ctx context.Context, item int) error { return nil }, opts, testLogger())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if last.Processed != 8 {
		t.Fatalf("expected final progress processed=8, got %+v", last)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int64
	op := func(ctx context.Context, item int) error {
		if atomic.AddInt64(&calls, 1) == 3 {
			cancel()
		}
		return nil
	}

	_, err := Run(ctx, 1000, op, fastOptions(), testLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if atomic.LoadInt64(&calls) >= 1000 {
		t.Fatalf("expected early stop, processed all items")
	}
}
