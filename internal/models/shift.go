package models

import "time"

// ShiftRecord is one scheduled shift for an employee on a calendar day.
// The upsert identity is (EmployeeID, Date) within an optional department
// scope; the sync engine never holds authoritative copies, only working
// sets read from and written back to the store.
type ShiftRecord struct {
	ID           int64     `json:"id"`
	EmployeeID   int64     `json:"employee_id"`
	DepartmentID int64     `json:"department_id"`
	Date         time.Time `json:"date"`
	ShiftCode    string    `json:"shift_code"`
	StartTime    string    `json:"start_time,omitempty"`
	EndTime      string    `json:"end_time,omitempty"`
	BreakMinutes int       `json:"break_minutes"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ShiftPatch carries the fields an import is allowed to change on an
// existing record. Nil pointers mean "leave as is".
type ShiftPatch struct {
	ShiftCode    *string
	StartTime    *string
	EndTime      *string
	BreakMinutes *int
}

// DateKey returns the canonical YYYY-MM-DD form used for upsert lookups.
func (s *ShiftRecord) DateKey() string {
	return s.Date.Format(DateFormat)
}
