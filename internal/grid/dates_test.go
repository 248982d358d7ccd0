package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, y int, m time.Month, d int) time.Time {
	t.Helper()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveHeaderDateMonthNames(t *testing.T) {
	cases := map[string]time.Time{
		"1-Dec":       mustDate(t, 2025, time.December, 1),
		"1 Dec":       mustDate(t, 2025, time.December, 1),
		"1/Dec":       mustDate(t, 2025, time.December, 1),
		"15-dec":      mustDate(t, 2025, time.December, 15),
		"3-Jan-26":    mustDate(t, 2026, time.January, 3),
		"3-Jan-2026":  mustDate(t, 2026, time.January, 3),
		"7 September": mustDate(t, 2025, time.September, 7),
	}
	for input, want := range cases {
		got, ok := ResolveHeaderDate(input, 2025)
		require.True(t, ok, "resolve %q", input)
		assert.Equal(t, want, got, input)
	}
}

func TestResolveHeaderDateNumeric(t *testing.T) {
	// Day first, always.
	got, ok := ResolveHeaderDate("01/12/2025", 2024)
	require.True(t, ok)
	assert.Equal(t, mustDate(t, 2025, time.December, 1), got)

	got, ok = ResolveHeaderDate("2/3/26", 2024)
	require.True(t, ok)
	assert.Equal(t, mustDate(t, 2026, time.March, 2), got)
}

func TestResolveHeaderDateGenericLayouts(t *testing.T) {
	got, ok := ResolveHeaderDate("2025-12-01", 2020)
	require.True(t, ok)
	assert.Equal(t, mustDate(t, 2025, time.December, 1), got)

	got, ok = ResolveHeaderDate("01.12.2025", 2020)
	require.True(t, ok)
	assert.Equal(t, mustDate(t, 2025, time.December, 1), got)
}

func TestResolveHeaderDateFailures(t *testing.T) {
	for _, input := range []string{
		"", "  ", "Name", "not a date", "32-Dec", "1-Foo", "13/13/2025", "Total hours",
	} {
		_, ok := ResolveHeaderDate(input, 2025)
		assert.False(t, ok, "expected failure for %q", input)
	}
}

func TestResolveHeaderDateRejectsNormalizedOverflow(t *testing.T) {
	_, ok := ResolveHeaderDate("31-Feb", 2025)
	assert.False(t, ok)

	_, ok = ResolveHeaderDate("30/2/2025", 2025)
	assert.False(t, ok)
}
