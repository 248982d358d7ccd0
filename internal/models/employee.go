package models

import "time"

// Employee is read-only from the sync engine's perspective; the roster
// store owns it.
type Employee struct {
	ID           int64     `json:"id"`
	BusinessID   string    `json:"business_id,omitempty"`
	FullName     string    `json:"full_name"`
	DepartmentID int64     `json:"department_id"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
