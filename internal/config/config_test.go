package config

import (
	"os"
	"path/filepath"
	"testing"

	"rostersync/internal/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: rostersync
database:
  path: ./roster.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 2, cfg.Sync.QueueConcurrency)
	assert.Equal(t, 150, cfg.Sync.PerItemDelayMs)
	assert.Equal(t, 2000, cfg.Sync.RateLimitDelayMs)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("ROSTER_DB_PATH", "/data/roster.db")
	path := writeConfig(t, `
database:
  path: ${ROSTER_DB_PATH}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/roster.db", cfg.Database.Path)
}

func TestLoadRequiresDatabasePath(t *testing.T) {
	path := writeConfig(t, `
app:
  name: rostersync
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path")
}

func TestLoadParsesTargetsAndCodes(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ./roster.db
google:
  credentials_file: ./creds.json
targets:
  - name: ward-a
    spreadsheet_id: sheet-1
    sheet_name: "Ward A"
    grid_range: "B4:AC25"
    header_row_index: 3
    row_blocks:
      - start: 4
        end: 25
shift_codes:
  - code: LD
    label: Long day
    start_time: "07:30"
    end_time: "20:00"
    break_minutes: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	target, ok := cfg.Target("ward-a")
	require.True(t, ok)
	assert.Equal(t, "Ward A", target.SheetName)
	assert.Equal(t, "B4:AC25", target.GridRange)
	assert.Equal(t, 3, target.HeaderRowIndex)

	require.Len(t, cfg.ShiftCodes, 1)
	assert.Equal(t, "07:30", cfg.ShiftCodes[0].StartTime)
}

func TestValidateTargets(t *testing.T) {
	err := ValidateTargets([]sync.Target{
		{Name: "a", SpreadsheetID: "s", SheetName: "A"},
		{Name: "a", SpreadsheetID: "s", SheetName: "B"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate target name")

	err = ValidateTargets([]sync.Target{
		{Name: "a", SheetName: "A"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spreadsheet_id")

	err = ValidateTargets([]sync.Target{
		{Name: "a", SpreadsheetID: "s", SheetName: "A", RowBlocks: []sync.RowBlock{{Start: 5, End: 3}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row block")
}
