package sync

import (
	"context"
	"fmt"
	"time"

	"rostersync/internal/database"
	"rostersync/internal/models"
)

// Export rewrites the target sheet from the store: header row of dates,
// one row per in-scope employee, shift codes in the cells. The sheet is
// cleared first; a failure between clear and write is surfaced fatally
// because a half-written grid is worse than a failed one.
func (o *Orchestrator) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	run := o.startRun(ctx, models.RunOpExport, req.Target.describe())
	result, err := o.export(ctx, req, run)
	o.finishRun(ctx, run, err)
	return result, err
}

func (o *Orchestrator) export(ctx context.Context, req ExportRequest, run *models.SyncRun) (*ExportResult, error) {
	if req.DateEnd.Before(req.DateStart) {
		return nil, fmt.Errorf("invalid date range: %s after %s", req.DateStart.Format(models.DateFormat), req.DateEnd.Format(models.DateFormat))
	}

	employees, err := o.store.ListEmployees(ctx, req.DepartmentID, true)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	shifts, err := o.store.ListShifts(ctx, database.ShiftFilter{
		DepartmentID: req.DepartmentID,
		DateStart:    req.DateStart,
		DateEnd:      req.DateEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}

	byKey := make(map[string]string, len(shifts))
	for i := range shifts {
		byKey[shiftKey(shifts[i].EmployeeID, shifts[i].Date)] = shifts[i].ShiftCode
	}

	days := dayRange(req.DateStart, req.DateEnd)

	values := make([][]interface{}, 0, len(employees)+1)
	header := make([]interface{}, 0, len(days)+1)
	header = append(header, "Name")
	for _, d := range days {
		header = append(header, d.Format(models.DateFormat))
	}
	values = append(values, header)

	// One column per calendar day regardless of gaps in real shifts, so
	// the grid stays aligned with the header.
	for i := range employees {
		e := &employees[i]
		row := make([]interface{}, 0, len(days)+1)
		row = append(row, exportNameCell(e))
		for _, d := range days {
			row = append(row, byKey[shiftKey(e.ID, d)])
		}
		values = append(values, row)
	}

	if err := o.sheets.EnsureSheet(ctx, req.Target.SpreadsheetID, req.Target.SheetName); err != nil {
		return nil, fmt.Errorf("ensure sheet: %w", err)
	}

	if err := o.sheets.ClearRange(ctx, req.Target.SpreadsheetID, req.Target.SheetName); err != nil {
		return nil, fmt.Errorf("clear sheet: %w", err)
	}

	writeRange := fmt.Sprintf("%s!A1", req.Target.SheetName)
	if err := o.sheets.UpdateRange(ctx, req.Target.SpreadsheetID, writeRange, values); err != nil {
		// The clear already happened; report loudly instead of retrying
		// against stale state.
		return nil, fmt.Errorf("write grid after clear (sheet is now blank): %w", err)
	}

	run.Processed = int64(len(values))
	o.saveRun(ctx, run)

	o.logger.Info().
		Str("sheet", req.Target.SheetName).
		Int("rows", len(values)).
		Int("columns", len(header)).
		Msg("roster exported")

	return &ExportResult{Success: true, Rows: len(values), Columns: len(header)}, nil
}

// exportNameCell renders a name cell that the importer can resolve back:
// the business id rides along in brackets when present.
func exportNameCell(e *models.Employee) string {
	if e.BusinessID != "" {
		return fmt.Sprintf("%s [%s]", e.FullName, e.BusinessID)
	}
	return e.FullName
}

func shiftKey(employeeID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", employeeID, date.Format(models.DateFormat))
}

func (t Target) describe() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%s/%s", t.SpreadsheetID, t.SheetName)
}
