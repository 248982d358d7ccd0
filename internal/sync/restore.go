package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"rostersync/internal/database"
	"rostersync/internal/models"
	"rostersync/internal/queue"
)

// Snapshot captures every shift for the department and date range so a
// bad import can be rolled back.
func (o *Orchestrator) Snapshot(ctx context.Context, departmentID int64, dateStart, dateEnd time.Time) (*models.Snapshot, error) {
	shifts, err := o.store.ListShifts(ctx, database.ShiftFilter{
		DepartmentID: departmentID,
		DateStart:    dateStart,
		DateEnd:      dateEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("list shifts for snapshot: %w", err)
	}
	return &models.Snapshot{
		TakenAt:      time.Now(),
		DepartmentID: departmentID,
		DateStart:    dateStart,
		DateEnd:      dateEnd,
		Shifts:       shifts,
	}, nil
}

// Restore replaces the snapshot's scope with its contents: first every
// current shift in scope is deleted, then the snapshot's shifts are
// recreated in batches. The delete phase runs to completion before any
// create starts, so a crash mid-restore leaves a hole, never duplicates.
func (o *Orchestrator) Restore(ctx context.Context, snap *models.Snapshot) (*RestoreResult, error) {
	run := o.startRun(ctx, models.RunOpRestore, fmt.Sprintf("department=%d", snap.DepartmentID))
	result, err := o.restore(ctx, snap, run)
	o.finishRun(ctx, run, err)
	return result, err
}

func (o *Orchestrator) restore(ctx context.Context, snap *models.Snapshot, run *models.SyncRun) (*RestoreResult, error) {
	current, err := o.store.ListShifts(ctx, database.ShiftFilter{
		DepartmentID: snap.DepartmentID,
		DateStart:    snap.DateStart,
		DateEnd:      snap.DateEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("list current shifts: %w", err)
	}

	result := &RestoreResult{}

	if len(current) > 0 {
		opts := o.queueOpts
		opts.TreatNotFoundAsSuccess = true
		counters, err := queue.Run(ctx, len(current), func(ctx context.Context, i int) error {
			return o.store.DeleteShift(ctx, current[i].ID)
		}, opts, &o.logger)
		if err != nil {
			return result, fmt.Errorf("delete phase: %w", err)
		}
		p := counters.Snapshot()
		result.Deleted = p.Succeeded
		result.Skipped += p.Skipped
		run.Deleted = p.Succeeded
		o.saveRun(ctx, run)
	}

	batches := batchShifts(snap.Shifts, models.DefaultSnapshotBatchSize)
	if len(batches) > 0 {
		// Counted inside the closure because queue counters track batches,
		// not shifts, and any batch can fail, not just the short last one.
		var created atomic.Int64
		_, err := queue.Run(ctx, len(batches), func(ctx context.Context, i int) error {
			if err := o.store.BulkCreateShifts(ctx, batches[i]); err != nil {
				return err
			}
			created.Add(int64(len(batches[i])))
			return nil
		}, o.queueOpts, &o.logger)
		if err != nil {
			return result, fmt.Errorf("create phase: %w", err)
		}
		result.Created = created.Load()
		result.Skipped += int64(len(snap.Shifts)) - result.Created
		run.Created = result.Created
	}

	run.Processed = result.Deleted + result.Created
	o.saveRun(ctx, run)

	o.logger.Info().
		Int64("deleted", result.Deleted).
		Int64("created", result.Created).
		Time("taken_at", snap.TakenAt).
		Msg("snapshot restored")

	result.Success = true
	return result, nil
}

// batchShifts slices the snapshot into insert batches.
func batchShifts(shifts []models.ShiftRecord, size int) [][]models.ShiftRecord {
	if size <= 0 {
		size = models.DefaultSnapshotBatchSize
	}
	var batches [][]models.ShiftRecord
	for start := 0; start < len(shifts); start += size {
		end := start + size
		if end > len(shifts) {
			end = len(shifts)
		}
		batches = append(batches, shifts[start:end])
	}
	return batches
}
