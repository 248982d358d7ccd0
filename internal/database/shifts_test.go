package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rostersync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.db")
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestShiftCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	shift := &models.ShiftRecord{
		EmployeeID:   1,
		DepartmentID: 2,
		Date:         day(2025, time.December, 1),
		ShiftCode:    "LD",
		StartTime:    "08:00",
		EndTime:      "20:00",
		BreakMinutes: 60,
		Status:       models.ShiftStatusPlanned,
	}
	require.NoError(t, db.CreateShift(ctx, shift))
	require.NotZero(t, shift.ID)

	got, err := db.GetShiftByKey(ctx, 1, day(2025, time.December, 1), 2)
	require.NoError(t, err)
	assert.Equal(t, "LD", got.ShiftCode)
	assert.Equal(t, day(2025, time.December, 1), got.Date)

	code := "N"
	require.NoError(t, db.UpdateShift(ctx, shift.ID, models.ShiftPatch{ShiftCode: &code}))

	got, err = db.GetShiftByKey(ctx, 1, day(2025, time.December, 1), 2)
	require.NoError(t, err)
	assert.Equal(t, "N", got.ShiftCode)
	assert.Equal(t, "08:00", got.StartTime, "unpatched fields stay put")

	require.NoError(t, db.DeleteShift(ctx, shift.ID))
	err = db.DeleteShift(ctx, shift.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetShiftByKeyNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetShiftByKey(context.Background(), 99, day(2025, time.December, 1), 0)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListShiftsFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seed := []models.ShiftRecord{
		{EmployeeID: 1, DepartmentID: 1, Date: day(2025, time.December, 1), ShiftCode: "LD", Status: models.ShiftStatusPlanned},
		{EmployeeID: 2, DepartmentID: 1, Date: day(2025, time.December, 2), ShiftCode: "N", Status: models.ShiftStatusPlanned},
		{EmployeeID: 3, DepartmentID: 2, Date: day(2025, time.December, 2), ShiftCode: "E", Status: models.ShiftStatusPlanned},
		{EmployeeID: 1, DepartmentID: 1, Date: day(2025, time.December, 9), ShiftCode: "LD", Status: models.ShiftStatusPlanned},
	}
	require.NoError(t, db.BulkCreateShifts(ctx, seed))

	shifts, err := db.ListShifts(ctx, ShiftFilter{
		DepartmentID: 1,
		DateStart:    day(2025, time.December, 1),
		DateEnd:      day(2025, time.December, 7),
	})
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	assert.Equal(t, int64(1), shifts[0].EmployeeID)
	assert.Equal(t, int64(2), shifts[1].EmployeeID)

	all, err := db.ListShifts(ctx, ShiftFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListEmployeesSortedByName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, e := range []models.Employee{
		{BusinessID: "E002", FullName: "Bob Jones", DepartmentID: 1, Active: true},
		{BusinessID: "E001", FullName: "Alice Smith", DepartmentID: 1, Active: true},
		{BusinessID: "E003", FullName: "Carol White", DepartmentID: 2, Active: true},
		{BusinessID: "E004", FullName: "Dan Black", DepartmentID: 1, Active: false},
	} {
		emp := e
		require.NoError(t, db.CreateEmployee(ctx, &emp))
	}

	employees, err := db.ListEmployees(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, "Alice Smith", employees[0].FullName)
	assert.Equal(t, "Bob Jones", employees[1].FullName)

	all, err := db.ListEmployees(ctx, 0, false)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
