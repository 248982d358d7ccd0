package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rostersync/internal/models"
)

// ListEmployees returns employees, optionally scoped to a department
// (0 = all). Only active employees participate in sync.
func (db *DB) ListEmployees(ctx context.Context, departmentID int64, activeOnly bool) ([]models.Employee, error) {
	query := `SELECT id, COALESCE(business_id, ''), full_name, department_id, active, created_at
              FROM employees WHERE 1=1`
	var args []interface{}
	if departmentID != 0 {
		query += ` AND department_id = ?`
		args = append(args, departmentID)
	}
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY full_name ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.FullName, &e.DepartmentID, &e.Active, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// GetEmployee fetches one employee by id.
func (db *DB) GetEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, COALESCE(business_id, ''), full_name, department_id, active, created_at
         FROM employees WHERE id = ?`, id)

	var e models.Employee
	err := row.Scan(&e.ID, &e.BusinessID, &e.FullName, &e.DepartmentID, &e.Active, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return &e, nil
}

// CreateEmployee inserts an employee and fills the generated id.
func (db *DB) CreateEmployee(ctx context.Context, e *models.Employee) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO employees (business_id, full_name, department_id, active) VALUES (?, ?, ?, ?)`,
		e.BusinessID, e.FullName, e.DepartmentID, e.Active)
	if err != nil {
		return fmt.Errorf("create employee: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("employee insert id: %w", err)
	}
	e.ID = id
	return nil
}
