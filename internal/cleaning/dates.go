package cleaning

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. Day-first layouts come before month-first
// so an unambiguous day (>12) parses as DMY; true MDY inputs fall through
// when the month field is out of range.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// missingTokens are raw cell values treated as null.
var missingTokens = map[string]struct{}{
	"":     {},
	"null": {},
	"n/a":  {},
	"na":   {},
	"none": {},
	"-":    {},
}

// isMissing reports whether a raw cell should be treated as null.
func isMissing(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseDate normalizes a heterogeneous date representation to a canonical
// calendar date. The second return is false for missing or unparsable input.
func ParseDate(s string) (time.Time, bool) {
	if isMissing(s) {
		return time.Time{}, false
	}
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			// Canonical form: midnight UTC calendar date.
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
