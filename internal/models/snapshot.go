package models

import "time"

// Snapshot is a serialized roster slice: every shift for a department (0 =
// all) within an inclusive date range, taken at a point in time. Restoring
// one replaces the superseded records wholesale.
type Snapshot struct {
	TakenAt      time.Time     `json:"taken_at"`
	DepartmentID int64         `json:"department_id"`
	DateStart    time.Time     `json:"date_start"`
	DateEnd      time.Time     `json:"date_end"`
	Shifts       []ShiftRecord `json:"shifts"`
}
