package models

// ShiftCode maps a roster cell code (e.g. "LD", "N") to default working
// times. Imports fall back to these when a sheet cell carries only the
// code; they never override times already set on an existing record.
type ShiftCode struct {
	Code         string `yaml:"code" json:"code"`
	Label        string `yaml:"label" json:"label"`
	StartTime    string `yaml:"start_time" json:"start_time"`
	EndTime      string `yaml:"end_time" json:"end_time"`
	BreakMinutes int    `yaml:"break_minutes" json:"break_minutes"`
}

// ShiftCodeTable indexes codes case-insensitively.
type ShiftCodeTable map[string]ShiftCode

// NewShiftCodeTable builds the lookup table from a config slice.
func NewShiftCodeTable(codes []ShiftCode) ShiftCodeTable {
	t := make(ShiftCodeTable, len(codes))
	for _, c := range codes {
		t[normalizeCode(c.Code)] = c
	}
	return t
}

// Lookup returns the defaults for code, if configured.
func (t ShiftCodeTable) Lookup(code string) (ShiftCode, bool) {
	c, ok := t[normalizeCode(code)]
	return c, ok
}

func normalizeCode(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		ch := code[i]
		if ch == ' ' || ch == '\t' {
			continue
		}
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		out = append(out, ch)
	}
	return string(out)
}
