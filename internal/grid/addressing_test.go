package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnRoundTrip(t *testing.T) {
	for _, s := range []string{"A", "Z", "AA", "AZ", "BA", "ZZ"} {
		idx, err := ColumnToIndex(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, IndexToColumn(idx), "round trip %s", s)
	}
}

func TestColumnToIndexValues(t *testing.T) {
	cases := map[string]int{"A": 1, "Z": 26, "AA": 27, "b": 2, "ac": 29}
	for letters, want := range cases {
		got, err := ColumnToIndex(letters)
		require.NoError(t, err, letters)
		assert.Equal(t, want, got, letters)
	}

	_, err := ColumnToIndex("")
	assert.Error(t, err)
	_, err = ColumnToIndex("A1")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("B4:AC25")
	require.NoError(t, err)
	assert.Equal(t, GridRange{StartColumn: 2, StartRow: 4, EndColumn: 29, EndRow: 25}, r)
	assert.Equal(t, 28, r.Width())
	assert.Equal(t, 22, r.Height())
	assert.Equal(t, "B4:AC25", r.A1())
}

func TestParseRangeMalformed(t *testing.T) {
	for _, input := range []string{"", "B4", "B4:AC", "4B:AC25", "B4:AC25:Z9", "Z9:A1", "B0:C5"} {
		_, err := ParseRange(input)
		var malformed *MalformedRangeError
		require.Error(t, err, input)
		assert.True(t, errors.As(err, &malformed), "want MalformedRangeError for %q, got %v", input, err)
	}
}

func TestCellAddress(t *testing.T) {
	r, err := ParseRange("B4:AC25")
	require.NoError(t, err)

	// B + 3 columns = E.
	cell, err := r.Cell(3, 10)
	require.NoError(t, err)
	assert.Equal(t, "E10", cell)

	cell, err = r.Cell(0, 4)
	require.NoError(t, err)
	assert.Equal(t, "B4", cell)
}

func TestCellAddressOutOfRange(t *testing.T) {
	r := GridRange{StartColumn: 2, StartRow: 4, EndColumn: 29, EndRow: 25}

	for _, tc := range []struct{ d, row int }{
		{28, 10}, // past AC
		{-1, 10},
		{3, 3},  // above the grid
		{3, 26}, // below the grid
	} {
		_, err := r.Cell(tc.d, tc.row)
		var oor *OutOfRangeError
		require.Error(t, err, "d=%d row=%d", tc.d, tc.row)
		assert.True(t, errors.As(err, &oor))
	}
}

func TestSplitSheet(t *testing.T) {
	sheet, rest := SplitSheet("Ward A!B4:AC25")
	assert.Equal(t, "Ward A", sheet)
	assert.Equal(t, "B4:AC25", rest)

	sheet, rest = SplitSheet("B4:AC25")
	assert.Empty(t, sheet)
	assert.Equal(t, "B4:AC25", rest)
}
