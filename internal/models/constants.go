package models

// DateFormat is the canonical calendar-day format used in the store, in
// snapshots and in upsert keys.
const DateFormat = "2006-01-02"

// Shift statuses.
const (
	ShiftStatusPlanned   = "planned"
	ShiftStatusConfirmed = "confirmed"
	ShiftStatusCancelled = "cancelled"
)

// Sync run operations.
const (
	RunOpImport  = "import"
	RunOpExport  = "export"
	RunOpRestore = "restore"
	RunOpPush    = "push"
)

// Sync run states.
const (
	RunStateRunning   = "running"
	RunStateCompleted = "completed"
	RunStateFailed    = "failed"
)

// Mutation queue defaults. Concurrency stays at 2 on purpose: the roster
// store rate-limits upstream and more workers only trade throughput for
// requeues.
const (
	DefaultQueueConcurrency  = 2
	DefaultPerItemDelayMs    = 150
	DefaultRateLimitDelayMs  = 2000
	DefaultSnapshotBatchSize = 50
)

// DefaultRunTTL is how long finished run records stay readable in the
// progress repository, in seconds.
const DefaultRunTTL = 24 * 60 * 60
