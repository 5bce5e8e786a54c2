package rules

import (
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", "01/02/2006", "02/01/2006"}

// ValidateDate parses a date string and returns its canonical YYYY-MM-DD
// form. It rejects strings that do not parse, calendar-impossible dates,
// and years outside 2000-2100. The empty string and placeholders return "".
func ValidateDate(s string) string {
	s = trimPlaceholder(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < 2000 || t.Year() > 2100 {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return ""
}

// IsFutureDate reports whether s (YYYY-MM-DD) is today or later. Unparseable
// dates return false.
func IsFutureDate(s string, now time.Time) bool {
	canonical := ValidateDate(s)
	if canonical == "" {
		return false
	}
	t, err := time.Parse("2006-01-02", canonical)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !t.Before(today)
}

// DateOrdered reports whether start <= end. Either side empty counts as
// ordered since there is nothing to compare.
func DateOrdered(start, end string) bool {
	if start == "" || end == "" {
		return true
	}
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return true
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return true
	}
	return !e.Before(s)
}

func trimPlaceholder(s string) string {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "", "tbd", "n/a", "unknown", "none", "null":
		return ""
	}
	return trimmed
}

// IsPlaceholder reports whether a field value carries no information.
func IsPlaceholder(s string) bool {
	return trimPlaceholder(s) == ""
}
