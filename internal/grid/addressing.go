package grid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// GridRange is a rectangular sheet region with 1-based inclusive bounds.
type GridRange struct {
	StartColumn int
	StartRow    int
	EndColumn   int
	EndRow      int
}

// MalformedRangeError reports an A1 range string that does not match
// <col><row>:<col><row>.
type MalformedRangeError struct {
	Input string
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed range %q: expected <col><row>:<col><row>", e.Input)
}

// OutOfRangeError reports an addressing request outside the declared
// bounds. Writes are rejected, never clamped: a clamped write lands on the
// wrong person's row.
type OutOfRangeError struct {
	Range  GridRange
	Column int
	Row    int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("cell %s%d outside range %s", IndexToColumn(e.Column), e.Row, e.Range.A1())
}

var rangeRe = regexp.MustCompile(`^([A-Za-z]{1,2})([0-9]+):([A-Za-z]{1,2})([0-9]+)$`)

// ColumnToIndex converts column letters to a 1-based index (A=1, Z=26,
// AA=27).
func ColumnToIndex(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column letters")
	}
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column letters %q", letters)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n, nil
}

// IndexToColumn is the exact inverse of ColumnToIndex for n >= 1.
func IndexToColumn(n int) string {
	if n < 1 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// ParseRange parses an A1 rectangle like "B4:AC25". The sheet-name prefix,
// if any, must be stripped first (see SplitSheet).
func ParseRange(a1 string) (GridRange, error) {
	m := rangeRe.FindStringSubmatch(strings.TrimSpace(a1))
	if m == nil {
		return GridRange{}, &MalformedRangeError{Input: a1}
	}

	startCol, err := ColumnToIndex(m[1])
	if err != nil {
		return GridRange{}, &MalformedRangeError{Input: a1}
	}
	endCol, err := ColumnToIndex(m[3])
	if err != nil {
		return GridRange{}, &MalformedRangeError{Input: a1}
	}
	startRow, err := strconv.Atoi(m[2])
	if err != nil || startRow < 1 {
		return GridRange{}, &MalformedRangeError{Input: a1}
	}
	endRow, err := strconv.Atoi(m[4])
	if err != nil || endRow < 1 {
		return GridRange{}, &MalformedRangeError{Input: a1}
	}

	if startCol > endCol || startRow > endRow {
		return GridRange{}, &MalformedRangeError{Input: a1}
	}

	return GridRange{StartColumn: startCol, StartRow: startRow, EndColumn: endCol, EndRow: endRow}, nil
}

// SplitSheet splits "Ward A!B4:AC25" into sheet name and range part. The
// sheet prefix is optional.
func SplitSheet(ref string) (sheet, rangePart string) {
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

// Cell returns the absolute A1 address for the date column at zero-based
// offset d and the given 1-based sheet row. Both must fall inside the
// range bounds.
func (r GridRange) Cell(d, row int) (string, error) {
	col := r.StartColumn + d
	if d < 0 || col > r.EndColumn || row < r.StartRow || row > r.EndRow {
		return "", &OutOfRangeError{Range: r, Column: col, Row: row}
	}
	return IndexToColumn(col) + strconv.Itoa(row), nil
}

// A1 renders the range back to A1 notation.
func (r GridRange) A1() string {
	return fmt.Sprintf("%s%d:%s%d", IndexToColumn(r.StartColumn), r.StartRow, IndexToColumn(r.EndColumn), r.EndRow)
}

// Width is the number of columns covered, inclusive.
func (r GridRange) Width() int {
	return r.EndColumn - r.StartColumn + 1
}

// Height is the number of rows covered, inclusive.
func (r GridRange) Height() int {
	return r.EndRow - r.StartRow + 1
}
