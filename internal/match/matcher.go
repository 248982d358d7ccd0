// Package match resolves free-text roster name cells to employee records.
//
// A name cell may carry a job title in parentheses ("Jane Doe (RGN)") and
// a business identifier in brackets ("Jane Doe [EMP001]"). Matching is
// exact only: a silent partial match schedules the wrong person, which
// costs far more than a reported miss, so fuzzy fallbacks are off the
// table.
package match

import (
	"regexp"
	"strings"

	"rostersync/internal/models"
)

// Skip reasons collected per row instead of raised as errors; one bad row
// must not abort a 500-row import.
const (
	ReasonBlankName        = "blank_name"
	ReasonEmployeeNotFound = "employee_not_found"
)

// Skip records one unresolvable row of a sync pass.
type Skip struct {
	Row     int    `json:"row"`
	RawText string `json:"name_cell"`
	Reason  string `json:"reason"`
}

var bracketRe = regexp.MustCompile(`\[([^\]]+)\]`)

// CleanName strips a trailing parenthetical job title and any bracketed
// identifier, returning the bare person name.
func CleanName(cell string) string {
	name := cell
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	name = bracketRe.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// BracketedID extracts the first [...] group, or "" when absent.
func BracketedID(cell string) string {
	m := bracketRe.FindStringSubmatch(cell)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Employee resolves a name cell against the employee list: first by
// bracketed business id, then by cleaned full name. Both comparisons are
// case-insensitive and whitespace-normalized. nil means no match.
func Employee(cell string, employees []models.Employee) *models.Employee {
	if id := BracketedID(cell); id != "" {
		for i := range employees {
			if employees[i].BusinessID != "" && strings.EqualFold(employees[i].BusinessID, id) {
				return &employees[i]
			}
		}
	}

	name := normalize(CleanName(cell))
	if name == "" {
		return nil
	}
	for i := range employees {
		if normalize(employees[i].FullName) == name {
			return &employees[i]
		}
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
