package sync

import (
	"context"
	"fmt"
	"time"

	"rostersync/internal/grid"
	"rostersync/internal/match"
	"rostersync/internal/models"
)

// PushShift writes one employee's shift code for one day into the sheet
// without touching the rest of the grid. The target must declare a
// GridRange; a push outside it is rejected, never clamped.
func (o *Orchestrator) PushShift(ctx context.Context, target Target, employeeID int64, date time.Time, code string) error {
	run := o.startRun(ctx, models.RunOpPush, target.describe())
	err := o.pushShift(ctx, target, employeeID, date, code)
	o.finishRun(ctx, run, err)
	return err
}

func (o *Orchestrator) pushShift(ctx context.Context, target Target, employeeID int64, date time.Time, code string) error {
	if target.GridRange == "" {
		return fmt.Errorf("target %q has no grid range; single-cell pushes need explicit bounds", target.describe())
	}
	_, rangePart := grid.SplitSheet(target.GridRange)
	bounds, err := grid.ParseRange(rangePart)
	if err != nil {
		return err
	}

	values, err := o.sheets.ReadRange(ctx, target.SpreadsheetID, target.SheetName)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", target.SheetName, err)
	}

	header, err := resolveHeader(values, target, date.Year())
	if err != nil {
		return err
	}

	dateKey := date.Format(models.DateFormat)
	dateCol := 0
	for _, dc := range header.DateCols {
		if dc.Date == dateKey {
			dateCol = dc.ColIndex
			break
		}
	}
	if dateCol == 0 {
		return fmt.Errorf("sheet %q has no column for %s", target.SheetName, dateKey)
	}

	employees, err := o.store.ListEmployees(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("list employees: %w", err)
	}
	var emp *models.Employee
	for i := range employees {
		if employees[i].ID == employeeID {
			emp = &employees[i]
			break
		}
	}
	if emp == nil {
		return fmt.Errorf("employee %d: %w", employeeID, models.ErrNotFound)
	}

	empRow := 0
	for _, sheetRow := range staffRows(values, target, header.HeaderRowIndex) {
		cell := cellString(values[sheetRow-1], header.NameColIndex)
		if m := match.Employee(cell, employees); m != nil && m.ID == employeeID {
			empRow = sheetRow
			break
		}
	}
	if empRow == 0 {
		return fmt.Errorf("employee %q has no row in sheet %q", emp.FullName, target.SheetName)
	}

	cell, err := bounds.Cell(dateCol-bounds.StartColumn, empRow)
	if err != nil {
		return err
	}

	if err := o.sheets.UpdateCell(ctx, target.SpreadsheetID, target.SheetName, cell, code); err != nil {
		return fmt.Errorf("write cell %s: %w", cell, err)
	}

	o.logger.Info().
		Str("cell", cell).
		Str("code", code).
		Int64("employee_id", employeeID).
		Msg("shift pushed to sheet")
	return nil
}
