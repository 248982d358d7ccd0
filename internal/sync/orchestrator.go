// Package sync reconciles the roster store with hosted spreadsheet grids:
// rows are staff, columns are calendar days, cells are shift codes.
package sync

import (
	"context"
	"time"

	"rostersync/internal/models"
	"rostersync/internal/queue"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Orchestrator composes the store, the sheet client and the mutation
// queue into the import/export/restore operations.
type Orchestrator struct {
	store     Store
	sheets    SheetClient
	codes     models.ShiftCodeTable
	runs      RunRecorder
	queueOpts queue.Options
	logger    zerolog.Logger
}

func NewOrchestrator(store Store, sheets SheetClient, codes models.ShiftCodeTable, runs RunRecorder, queueOpts queue.Options, logger *zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		sheets:    sheets,
		codes:     codes,
		runs:      runs,
		queueOpts: queueOpts,
		logger:    logger.With().Str("component", "sync").Logger(),
	}
}

// startRun registers a running SyncRun; best effort, failures only log.
func (o *Orchestrator) startRun(ctx context.Context, operation, target string) *models.SyncRun {
	run := &models.SyncRun{
		ID:        uuid.NewString(),
		Operation: operation,
		Target:    target,
		State:     models.RunStateRunning,
		StartedAt: time.Now(),
	}
	o.saveRun(ctx, run)
	return run
}

func (o *Orchestrator) finishRun(ctx context.Context, run *models.SyncRun, err error) {
	now := time.Now()
	run.FinishedAt = &now
	if err != nil {
		run.State = models.RunStateFailed
		run.Error = err.Error()
	} else {
		run.State = models.RunStateCompleted
	}
	o.saveRun(ctx, run)
}

func (o *Orchestrator) saveRun(ctx context.Context, run *models.SyncRun) {
	if o.runs == nil {
		return
	}
	if err := o.runs.SaveRun(ctx, run); err != nil {
		o.logger.Warn().Err(err).Str("run_id", run.ID).Msg("save run progress")
	}
}

// dayRange yields every calendar day in [start, end] inclusive.
func dayRange(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
