package grid

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Header cells come in whatever format the ward clerk last typed:
// "1-Dec", "01/12/2025", "2025-12-01", sometimes a full month name. The
// resolver tries formats from most to least explicit and reports failure
// as "not a date column", never as an error.

var (
	monthDayRe = regexp.MustCompile(`^([0-9]{1,2})[-/ ]([A-Za-z]{3,})(?:[-/ ]([0-9]{2}|[0-9]{4}))?$`)
	numericRe  = regexp.MustCompile(`^([0-9]{1,2})/([0-9]{1,2})/([0-9]{2}|[0-9]{4})$`)
)

// Unambiguous layouts a generic parser would accept. Day-first slash
// forms are deliberately absent here; they are handled by numericRe so
// "01/12/2025" is never read month-first.
var headerLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ResolveHeaderDate parses a header cell into a calendar day. A missing
// year defaults to assumedYear; two-digit years are expanded with a "20"
// prefix. ok=false means the cell is not a date column.
func ResolveHeaderDate(cell string, assumedYear int) (time.Time, bool) {
	text := strings.TrimSpace(cell)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range headerLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return day(t.Year(), t.Month(), t.Day())
		}
	}

	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		dayNum, _ := strconv.Atoi(m[1])
		month, ok := resolveMonth(m[2])
		if !ok {
			return time.Time{}, false
		}
		year := assumedYear
		if m[3] != "" {
			year = expandYear(m[3])
		}
		return day(year, month, dayNum)
	}

	if m := numericRe.FindStringSubmatch(text); m != nil {
		dayNum, _ := strconv.Atoi(m[1])
		monthNum, _ := strconv.Atoi(m[2])
		if monthNum < 1 || monthNum > 12 {
			return time.Time{}, false
		}
		return day(expandYear(m[3]), time.Month(monthNum), dayNum)
	}

	return time.Time{}, false
}

func resolveMonth(name string) (time.Month, bool) {
	key := strings.ToLower(name)
	if len(key) > 3 {
		key = key[:3]
	}
	m, ok := monthAbbrev[key]
	return m, ok
}

func expandYear(s string) int {
	if len(s) == 2 {
		s = "20" + s
	}
	y, _ := strconv.Atoi(s)
	return y
}

// day builds a UTC midnight date and rejects values that normalization
// moved (e.g. 31-Feb).
func day(year int, month time.Month, dayNum int) (time.Time, bool) {
	if dayNum < 1 || dayNum > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, dayNum, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != dayNum {
		return time.Time{}, false
	}
	return t, true
}
