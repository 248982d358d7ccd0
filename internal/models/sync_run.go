package models

import "time"

// SyncRun tracks one orchestrated operation (import, export, restore) so
// operators can poll live progress while it runs.
type SyncRun struct {
	ID         string     `json:"id"`
	Operation  string     `json:"operation"`
	Target     string     `json:"target"`
	State      string     `json:"state"`
	Created    int64      `json:"created"`
	Updated    int64      `json:"updated"`
	Skipped    int64      `json:"skipped"`
	Deleted    int64      `json:"deleted"`
	Processed  int64      `json:"processed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
