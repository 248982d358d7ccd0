package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rostersync/internal/models"
)

// ShiftFilter narrows ListShifts. Zero values mean "no constraint".
type ShiftFilter struct {
	DepartmentID int64
	EmployeeID   int64
	DateStart    time.Time
	DateEnd      time.Time
	Limit        int
	Offset       int
}

const shiftColumns = `id, employee_id, department_id, date, shift_code, start_time, end_time, break_minutes, status, created_at, updated_at`

// ListShifts returns shift records matching the filter, ordered by date
// then employee for deterministic processing.
func (db *DB) ListShifts(ctx context.Context, f ShiftFilter) ([]models.ShiftRecord, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE 1=1`
	var args []interface{}

	if f.DepartmentID != 0 {
		query += ` AND department_id = ?`
		args = append(args, f.DepartmentID)
	}
	if f.EmployeeID != 0 {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if !f.DateStart.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.DateStart.Format(models.DateFormat))
	}
	if !f.DateEnd.IsZero() {
		query += ` AND date <= ?`
		args = append(args, f.DateEnd.Format(models.DateFormat))
	}
	query += ` ORDER BY date ASC, employee_id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var shifts []models.ShiftRecord
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *s)
	}
	return shifts, rows.Err()
}

// GetShiftByKey looks up the record for the upsert identity
// (employeeID, date) within an optional department scope.
func (db *DB) GetShiftByKey(ctx context.Context, employeeID int64, date time.Time, departmentID int64) (*models.ShiftRecord, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE employee_id = ? AND date = ?`
	args := []interface{}{employeeID, date.Format(models.DateFormat)}
	if departmentID != 0 {
		query += ` AND department_id = ?`
		args = append(args, departmentID)
	}

	row := db.QueryRowContext(ctx, query, args...)
	s, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateShift inserts a record and fills the generated id.
func (db *DB) CreateShift(ctx context.Context, s *models.ShiftRecord) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO shifts (employee_id, department_id, date, shift_code, start_time, end_time, break_minutes, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.EmployeeID, s.DepartmentID, s.Date.Format(models.DateFormat), s.ShiftCode,
		s.StartTime, s.EndTime, s.BreakMinutes, s.Status, now, now)
	if err != nil {
		return fmt.Errorf("create shift: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("shift insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// UpdateShift applies a patch to an existing record. Nil patch fields are
// left untouched.
func (db *DB) UpdateShift(ctx context.Context, id int64, patch models.ShiftPatch) error {
	query := `UPDATE shifts SET updated_at = ?`
	args := []interface{}{time.Now()}

	if patch.ShiftCode != nil {
		query += `, shift_code = ?`
		args = append(args, *patch.ShiftCode)
	}
	if patch.StartTime != nil {
		query += `, start_time = ?`
		args = append(args, *patch.StartTime)
	}
	if patch.EndTime != nil {
		query += `, end_time = ?`
		args = append(args, *patch.EndTime)
	}
	if patch.BreakMinutes != nil {
		query += `, break_minutes = ?`
		args = append(args, *patch.BreakMinutes)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update shift %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update shift %d: %w", id, err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteShift removes a record by id. Missing records report
// models.ErrNotFound so bulk deletes can treat them as already gone.
func (db *DB) DeleteShift(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shift %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete shift %d: %w", id, err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// BulkCreateShifts inserts a batch in one transaction.
func (db *DB) BulkCreateShifts(ctx context.Context, shifts []models.ShiftRecord) error {
	if len(shifts) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO shifts (employee_id, department_id, date, shift_code, start_time, end_time, break_minutes, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare bulk create: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i := range shifts {
		s := &shifts[i]
		if _, err := stmt.ExecContext(ctx,
			s.EmployeeID, s.DepartmentID, s.Date.Format(models.DateFormat), s.ShiftCode,
			s.StartTime, s.EndTime, s.BreakMinutes, s.Status, now, now); err != nil {
			return fmt.Errorf("bulk create shift %d/%d: %w", i+1, len(shifts), err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShift(row rowScanner) (*models.ShiftRecord, error) {
	var s models.ShiftRecord
	var dateStr string
	err := row.Scan(&s.ID, &s.EmployeeID, &s.DepartmentID, &dateStr, &s.ShiftCode,
		&s.StartTime, &s.EndTime, &s.BreakMinutes, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	date, err := time.ParseInLocation(models.DateFormat, dateStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse shift date %q: %w", dateStr, err)
	}
	s.Date = date
	return &s, nil
}
