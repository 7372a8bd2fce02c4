package shared

import "time"

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysApart returns the absolute number of whole days between two dates.
func DaysApart(a, b time.Time) int {
	d := int(DateOnly(a).Sub(DateOnly(b)).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

// WithinPeriod reports whether d falls inside [start, end], inclusive on both ends.
func WithinPeriod(d, start, end time.Time) bool {
	day := DateOnly(d)
	return !day.Before(DateOnly(start)) && !day.After(DateOnly(end))
}
