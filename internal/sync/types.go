package sync

import (
	"context"
	"fmt"
	"time"

	"rostersync/internal/database"
	"rostersync/internal/match"
	"rostersync/internal/models"
)

// Target describes where a roster grid lives inside a spreadsheet. Ward
// presets in config produce these; requests may also carry one inline.
type Target struct {
	Name           string     `json:"name,omitempty" yaml:"name"`
	SpreadsheetID  string     `json:"spreadsheet_id" yaml:"spreadsheet_id"`
	SheetName      string     `json:"sheet_name" yaml:"sheet_name"`
	GridRange      string     `json:"grid_range" yaml:"grid_range"`
	HeaderRowIndex int        `json:"header_row_index,omitempty" yaml:"header_row_index"`
	NameColIndex   int        `json:"name_col_index,omitempty" yaml:"name_col_index"`
	RowBlocks      []RowBlock `json:"row_blocks,omitempty" yaml:"row_blocks"`
}

// RowBlock is an explicit 1-based inclusive row range holding staff rows.
type RowBlock struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// ImportRequest scopes one sheet-to-store reconciliation.
type ImportRequest struct {
	Target       Target
	DepartmentID int64
	DateStart    time.Time
	DateEnd      time.Time
	ReplaceAll   bool
	// AssumedYear fills month-only headers like "1-Dec"; zero defaults
	// to DateStart's year.
	AssumedYear int
}

// ExportRequest scopes one store-to-sheet rewrite.
type ExportRequest struct {
	Target       Target
	DepartmentID int64
	DateStart    time.Time
	DateEnd      time.Time
}

// DateColumn is one resolved date header cell.
type DateColumn struct {
	ColIndex int    `json:"col_index"`
	Date     string `json:"date"`
	Header   string `json:"header"`
}

// HeaderInfo reports how the importer read the sheet layout, so operators
// can verify autodetection picked the right row.
type HeaderInfo struct {
	HeaderRowIndex int          `json:"header_row_index"`
	NameColIndex   int          `json:"name_col_index"`
	DateCols       []DateColumn `json:"date_cols"`
}

// ImportResult is the full outcome of an import: exact mutation counts
// plus every row that could not be resolved. Never just a success flag.
type ImportResult struct {
	Success     bool         `json:"success"`
	Created     int          `json:"created"`
	Updated     int          `json:"updated"`
	Skipped     int          `json:"skipped"`
	Deleted     int          `json:"deleted"`
	Header      HeaderInfo   `json:"header"`
	SkipDetails []match.Skip `json:"skip_details"`
}

// ExportResult reports the written grid dimensions.
type ExportResult struct {
	Success bool `json:"success"`
	Rows    int  `json:"rows"`
	Columns int  `json:"columns"`
}

// RestoreResult reports a snapshot restore.
type RestoreResult struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
	Created int64 `json:"created"`
	Skipped int64 `json:"skipped"`
}

// NoDateColumnsError means no candidate header row produced at least two
// resolvable dates; the sheet layout or target config is wrong, and
// guessing a header would import garbage.
type NoDateColumnsError struct {
	SheetName   string
	RowsScanned int
}

func (e *NoDateColumnsError) Error() string {
	return fmt.Sprintf("no date columns found in sheet %q (scanned %d rows)", e.SheetName, e.RowsScanned)
}

// DuplicateDateColumnError reports two header cells resolving to the same
// calendar day. The original sheets let the later column silently win;
// here it is a configuration error the operator has to see.
type DuplicateDateColumnError struct {
	Date      string
	FirstCol  int
	SecondCol int
}

func (e *DuplicateDateColumnError) Error() string {
	return fmt.Sprintf("duplicate date column: %s appears in columns %d and %d", e.Date, e.FirstCol, e.SecondCol)
}

// Store is the slice of the roster entity store the engine needs. The
// sqlite DB satisfies it; a hosted backend client would too.
type Store interface {
	ListEmployees(ctx context.Context, departmentID int64, activeOnly bool) ([]models.Employee, error)
	ListShifts(ctx context.Context, f database.ShiftFilter) ([]models.ShiftRecord, error)
	GetShiftByKey(ctx context.Context, employeeID int64, date time.Time, departmentID int64) (*models.ShiftRecord, error)
	CreateShift(ctx context.Context, s *models.ShiftRecord) error
	UpdateShift(ctx context.Context, id int64, patch models.ShiftPatch) error
	DeleteShift(ctx context.Context, id int64) error
	BulkCreateShifts(ctx context.Context, shifts []models.ShiftRecord) error
}

// SheetClient is the slice of the spreadsheet service the engine needs.
type SheetClient interface {
	ReadRange(ctx context.Context, spreadsheetID, a1 string) ([][]interface{}, error)
	UpdateRange(ctx context.Context, spreadsheetID, a1 string, values [][]interface{}) error
	ClearRange(ctx context.Context, spreadsheetID, a1 string) error
	UpdateCell(ctx context.Context, spreadsheetID, sheetName, cell string, value interface{}) error
	EnsureSheet(ctx context.Context, spreadsheetID, sheetName string) error
}

// RunRecorder persists live run progress; nil disables tracking.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.SyncRun) error
}
