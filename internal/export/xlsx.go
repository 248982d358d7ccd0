// Package export writes roster workbooks for offline use: the same grid
// the sheet sync produces, but as a styled .xlsx file on disk.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rostersync/internal/database"
	"rostersync/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Roster"

// Store is the read slice of the roster store the writer needs.
type Store interface {
	ListEmployees(ctx context.Context, departmentID int64, activeOnly bool) ([]models.Employee, error)
	ListShifts(ctx context.Context, f database.ShiftFilter) ([]models.ShiftRecord, error)
}

type Writer struct {
	store  Store
	codes  models.ShiftCodeTable
	dir    string
	logger zerolog.Logger
}

func NewWriter(store Store, codes models.ShiftCodeTable, dir string, logger *zerolog.Logger) *Writer {
	return &Writer{
		store:  store,
		codes:  codes,
		dir:    dir,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// WriteRoster builds the workbook for a department and date range and
// returns the saved file path.
func (w *Writer) WriteRoster(ctx context.Context, departmentID int64, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	employees, err := w.store.ListEmployees(ctx, departmentID, true)
	if err != nil {
		return "", fmt.Errorf("list employees: %w", err)
	}
	shifts, err := w.store.ListShifts(ctx, database.ShiftFilter{
		DepartmentID: departmentID,
		DateStart:    startDate,
		DateEnd:      endDate,
	})
	if err != nil {
		return "", fmt.Errorf("list shifts: %w", err)
	}

	byKey := make(map[string]models.ShiftRecord, len(shifts))
	for _, s := range shifts {
		byKey[fmt.Sprintf("%d|%s", s.EmployeeID, s.DateKey())] = s
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Roster %s to %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	dateCols := w.writeDateHeaders(f, startDate, endDate)
	w.writeNameColumn(f, employees)
	w.writeShiftCells(f, employees, dateCols, byKey)

	_ = f.SetColWidth(sheetName, "A", "A", 28)
	if last, err := excelize.ColumnNumberToName(len(dateCols) + 1); err == nil {
		_ = f.SetColWidth(sheetName, "B", last, 9)
		_ = f.MergeCell(sheetName, "A1", last+"1")
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("roster_%s_to_%s.xlsx",
		startDate.Format(models.DateFormat), endDate.Format(models.DateFormat))
	filePath := filepath.Join(w.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	w.logger.Info().Str("file_path", filePath).Int("employees", len(employees)).Msg("roster workbook written")
	return filePath, nil
}

// writeDateHeaders fills row 2 with one column per calendar day and maps
// date keys to column numbers.
func (w *Writer) writeDateHeaders(f *excelize.File, startDate, endDate time.Time) map[string]int {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	col := 2
	dateCols := make(map[string]int)
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, d.Format("02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		dateCols[d.Format(models.DateFormat)] = col
		col++
	}
	return dateCols
}

func (w *Writer) writeNameColumn(f *excelize.File, employees []models.Employee) {
	nameStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	row := 3
	for _, e := range employees {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		name := e.FullName
		if e.BusinessID != "" {
			name = fmt.Sprintf("%s [%s]", e.FullName, e.BusinessID)
		}
		_ = f.SetCellValue(sheetName, cell, name)
		_ = f.SetCellStyle(sheetName, cell, cell, nameStyle)
		row++
	}
}

func (w *Writer) writeShiftCells(f *excelize.File, employees []models.Employee, dateCols map[string]int, byKey map[string]models.ShiftRecord) {
	confirmedStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	plainStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, e := range employees {
		row := i + 3
		for dateKey, col := range dateCols {
			shift, ok := byKey[fmt.Sprintf("%d|%s", e.ID, dateKey)]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)

			text := shift.ShiftCode
			if code, ok := w.codes.Lookup(shift.ShiftCode); ok && code.Label != "" {
				text = fmt.Sprintf("%s\n%s-%s", shift.ShiftCode, code.StartTime, code.EndTime)
			}
			_ = f.SetCellValue(sheetName, cell, text)

			switch shift.Status {
			case models.ShiftStatusConfirmed:
				_ = f.SetCellStyle(sheetName, cell, cell, confirmedStyle)
			case models.ShiftStatusCancelled:
				_ = f.SetCellStyle(sheetName, cell, cell, cancelledStyle)
			default:
				_ = f.SetCellStyle(sheetName, cell, cell, plainStyle)
			}
		}
	}
}
