package model

import (
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/jacentio/conference/apperr"
)

const (
	dateLayout = strfmt.RFC3339FullDate
	timeLayout = "15:04"
)

// parseDate reads a calendar date from the first ten characters of s, so
// full timestamps are accepted too.
func parseDate(field, s string) (time.Time, error) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	var d strfmt.Date
	if err := d.UnmarshalText([]byte(s)); err != nil {
		return time.Time{}, apperr.Validation(field, "expected a YYYY-MM-DD date, got "+s)
	}
	return time.Time(d), nil
}

// formatDate renders a date for storage and forms; the zero time is "".
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strfmt.Date(t).String()
}

// parseClock reads an HH:MM time of day from the first five characters of s
// and returns it normalized.
func parseClock(field, s string) (string, error) {
	if len(s) > len(timeLayout) {
		s = s[:len(timeLayout)]
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return "", apperr.Validation(field, "expected an HH:MM time, got "+s)
	}
	return t.Format(timeLayout), nil
}
