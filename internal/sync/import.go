package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rostersync/internal/database"
	"rostersync/internal/grid"
	"rostersync/internal/match"
	"rostersync/internal/models"
	"rostersync/internal/queue"
)

// headerScanRows bounds header autodetection. A roster sheet with its
// date row below row 10 needs an explicit HeaderRowIndex in the target.
const headerScanRows = 10

// minDateColumns is how many resolvable dates a row needs before it is
// accepted as the header; one lone date is usually a stray note cell.
const minDateColumns = 2

// Import reads the target grid and reconciles it into the store. Rows
// that cannot be resolved are reported in SkipDetails and never abort
// the pass.
func (o *Orchestrator) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	run := o.startRun(ctx, models.RunOpImport, req.Target.describe())
	result, err := o.importSheet(ctx, req, run)
	o.finishRun(ctx, run, err)
	return result, err
}

func (o *Orchestrator) importSheet(ctx context.Context, req ImportRequest, run *models.SyncRun) (*ImportResult, error) {
	if req.DateEnd.Before(req.DateStart) {
		return nil, fmt.Errorf("invalid date range: %s after %s", req.DateStart.Format(models.DateFormat), req.DateEnd.Format(models.DateFormat))
	}

	assumedYear := req.AssumedYear
	if assumedYear == 0 {
		assumedYear = req.DateStart.Year()
	}

	values, err := o.sheets.ReadRange(ctx, req.Target.SpreadsheetID, req.Target.SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", req.Target.SheetName, err)
	}

	header, err := resolveHeader(values, req.Target, assumedYear)
	if err != nil {
		return nil, err
	}

	employees, err := o.store.ListEmployees(ctx, req.DepartmentID, false)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	// Date columns outside the requested window are present in the header
	// report but excluded from reconciliation.
	inWindow := make(map[int]time.Time, len(header.DateCols))
	for _, dc := range header.DateCols {
		d, _ := time.Parse(models.DateFormat, dc.Date)
		if d.Before(req.DateStart) || d.After(req.DateEnd) {
			continue
		}
		inWindow[dc.ColIndex] = d
	}

	result := &ImportResult{Header: *header}

	// Replace mode rebuilds the window from the sheet: every stored shift
	// in scope is deleted up front, and the delete pass runs to completion
	// (queued retries included) before the first upsert.
	if req.ReplaceAll {
		deleted, err := o.clearWindow(ctx, req)
		if err != nil {
			return result, err
		}
		result.Deleted = int(deleted)
		run.Deleted = deleted
		o.saveRun(ctx, run)
	}

	for _, sheetRow := range staffRows(values, req.Target, header.HeaderRowIndex) {
		row := values[sheetRow-1]
		nameCell := cellString(row, header.NameColIndex)

		if strings.TrimSpace(nameCell) == "" {
			if rowHasData(row, header.NameColIndex) {
				result.SkipDetails = append(result.SkipDetails, match.Skip{
					Row: sheetRow, RawText: nameCell, Reason: match.ReasonBlankName,
				})
			}
			continue
		}

		emp := match.Employee(nameCell, employees)
		if emp == nil {
			result.SkipDetails = append(result.SkipDetails, match.Skip{
				Row: sheetRow, RawText: nameCell, Reason: match.ReasonEmployeeNotFound,
			})
			continue
		}

		for colIdx, date := range inWindow {
			code := strings.TrimSpace(cellString(row, colIdx))
			if code == "" {
				continue
			}
			created, updated, err := o.upsertShift(ctx, emp.ID, req.DepartmentID, date, code)
			if err != nil {
				return result, fmt.Errorf("upsert shift for %q on %s: %w", nameCell, date.Format(models.DateFormat), err)
			}
			if created {
				result.Created++
			}
			if updated {
				result.Updated++
			}
			run.Processed++
		}
	}

	result.Skipped = len(result.SkipDetails)

	run.Created = int64(result.Created)
	run.Updated = int64(result.Updated)
	run.Skipped = int64(result.Skipped)
	o.saveRun(ctx, run)

	o.logger.Info().
		Str("sheet", req.Target.SheetName).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("deleted", result.Deleted).
		Msg("roster imported")

	result.Success = true
	return result, nil
}

// upsertShift creates or patches one (employee, date) shift. Defaults
// from the shift-code table fill blank fields only; times someone has
// already adjusted in the store survive re-imports.
func (o *Orchestrator) upsertShift(ctx context.Context, employeeID, departmentID int64, date time.Time, code string) (created, updated bool, err error) {
	defaults, hasDefaults := o.codes.Lookup(code)

	existing, err := o.store.GetShiftByKey(ctx, employeeID, date, departmentID)
	if errors.Is(err, models.ErrNotFound) {
		rec := &models.ShiftRecord{
			EmployeeID:   employeeID,
			DepartmentID: departmentID,
			Date:         date,
			ShiftCode:    code,
			Status:       models.ShiftStatusPlanned,
		}
		if hasDefaults {
			rec.StartTime = defaults.StartTime
			rec.EndTime = defaults.EndTime
			rec.BreakMinutes = defaults.BreakMinutes
		}
		if err := o.store.CreateShift(ctx, rec); err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}

	var patch models.ShiftPatch
	if existing.ShiftCode != code {
		patch.ShiftCode = &code
	}
	if hasDefaults {
		if existing.StartTime == "" && defaults.StartTime != "" {
			patch.StartTime = &defaults.StartTime
		}
		if existing.EndTime == "" && defaults.EndTime != "" {
			patch.EndTime = &defaults.EndTime
		}
		if existing.BreakMinutes == 0 && defaults.BreakMinutes != 0 {
			patch.BreakMinutes = &defaults.BreakMinutes
		}
	}

	if patch == (models.ShiftPatch{}) {
		return false, false, nil
	}
	if err := o.store.UpdateShift(ctx, existing.ID, patch); err != nil {
		return false, false, err
	}
	return false, true, nil
}

// clearWindow deletes every stored shift in the import scope. Deletes
// go through the mutation queue so a rate-limited backend does not fail
// the whole replace.
func (o *Orchestrator) clearWindow(ctx context.Context, req ImportRequest) (int64, error) {
	existing, err := o.store.ListShifts(ctx, database.ShiftFilter{
		DepartmentID: req.DepartmentID,
		DateStart:    req.DateStart,
		DateEnd:      req.DateEnd,
	})
	if err != nil {
		return 0, fmt.Errorf("list shifts for replace: %w", err)
	}
	if len(existing) == 0 {
		return 0, nil
	}

	opts := o.queueOpts
	opts.TreatNotFoundAsSuccess = true
	counters, err := queue.Run(ctx, len(existing), func(ctx context.Context, i int) error {
		return o.store.DeleteShift(ctx, existing[i].ID)
	}, opts, &o.logger)
	if err != nil {
		return 0, fmt.Errorf("clear shifts for replace: %w", err)
	}
	return counters.Snapshot().Succeeded, nil
}

// resolveHeader finds the header row and date columns, either from the
// target's explicit layout or by scanning the first rows of the sheet.
func resolveHeader(values [][]interface{}, target Target, assumedYear int) (*HeaderInfo, error) {
	nameCol := target.NameColIndex
	if nameCol == 0 {
		nameCol = 1
	}

	if target.HeaderRowIndex > 0 {
		if target.HeaderRowIndex > len(values) {
			return nil, &NoDateColumnsError{SheetName: target.SheetName, RowsScanned: len(values)}
		}
		cols, err := dateColumns(values[target.HeaderRowIndex-1], nameCol, assumedYear)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, &NoDateColumnsError{SheetName: target.SheetName, RowsScanned: 1}
		}
		return &HeaderInfo{HeaderRowIndex: target.HeaderRowIndex, NameColIndex: nameCol, DateCols: cols}, nil
	}

	scanned := len(values)
	if scanned > headerScanRows {
		scanned = headerScanRows
	}
	for i := 0; i < scanned; i++ {
		cols, err := dateColumns(values[i], nameCol, assumedYear)
		if err != nil {
			return nil, err
		}
		if len(cols) >= minDateColumns {
			return &HeaderInfo{HeaderRowIndex: i + 1, NameColIndex: nameCol, DateCols: cols}, nil
		}
	}
	return nil, &NoDateColumnsError{SheetName: target.SheetName, RowsScanned: scanned}
}

// dateColumns resolves every header cell past the name column. Two
// columns landing on the same day is a layout error worth failing on.
func dateColumns(row []interface{}, nameCol, assumedYear int) ([]DateColumn, error) {
	var cols []DateColumn
	firstCol := make(map[string]int)
	for idx := nameCol; idx < len(row); idx++ {
		colIdx := idx + 1
		text := cellString(row, colIdx)
		d, ok := grid.ResolveHeaderDate(text, assumedYear)
		if !ok {
			continue
		}
		key := d.Format(models.DateFormat)
		if prev, dup := firstCol[key]; dup {
			return nil, &DuplicateDateColumnError{Date: key, FirstCol: prev, SecondCol: colIdx}
		}
		firstCol[key] = colIdx
		cols = append(cols, DateColumn{ColIndex: colIdx, Date: key, Header: text})
	}
	return cols, nil
}

// staffRows yields the 1-based sheet rows holding staff, either from the
// target's explicit row blocks or everything below the header.
func staffRows(values [][]interface{}, target Target, headerRow int) []int {
	var rows []int
	if len(target.RowBlocks) > 0 {
		for _, b := range target.RowBlocks {
			for r := b.Start; r <= b.End && r <= len(values); r++ {
				if r >= 1 {
					rows = append(rows, r)
				}
			}
		}
		return rows
	}
	for r := headerRow + 1; r <= len(values); r++ {
		rows = append(rows, r)
	}
	return rows
}

// cellString reads the 1-based column col from a sparse sheet row.
func cellString(row []interface{}, col int) string {
	idx := col - 1
	if idx < 0 || idx >= len(row) {
		return ""
	}
	if s, ok := row[idx].(string); ok {
		return s
	}
	return fmt.Sprint(row[idx])
}

// rowHasData reports whether any cell other than the name column holds
// text; fully empty rows are layout padding, not skips.
func rowHasData(row []interface{}, nameCol int) bool {
	for idx := range row {
		if idx == nameCol-1 {
			continue
		}
		if strings.TrimSpace(cellString(row, idx+1)) != "" {
			return true
		}
	}
	return false
}
