package models

import (
	"fmt"
	"time"
)

// RecurrencePattern is how often a recurring task repeats
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "DAILY"
	RecurrenceWeekly  RecurrencePattern = "WEEKLY"
	RecurrenceMonthly RecurrencePattern = "MONTHLY"
)

// ParseRecurrencePattern validates a pattern string
func ParseRecurrencePattern(s string) (RecurrencePattern, error) {
	switch p := RecurrencePattern(s); p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return p, nil
	}
	return "", fmt.Errorf("unknown recurrence pattern %q", s)
}

// Next adds one period to prev. Monthly steps clamp to the last day of the
// target month, so Jan 31 is followed by Feb 28 (or 29).
func (p RecurrencePattern) Next(prev time.Time) (time.Time, error) {
	switch p {
	case RecurrenceDaily:
		return prev.AddDate(0, 0, 1), nil
	case RecurrenceWeekly:
		return prev.AddDate(0, 0, 7), nil
	case RecurrenceMonthly:
		y, m, d := prev.Date()
		first := time.Date(y, m+1, 1, prev.Hour(), prev.Minute(), prev.Second(), prev.Nanosecond(), prev.Location())
		if last := daysIn(first); d > last {
			d = last
		}
		return first.AddDate(0, 0, d-1), nil
	}
	return time.Time{}, fmt.Errorf("unknown recurrence pattern %q", p)
}

func daysIn(monthStart time.Time) int {
	return monthStart.AddDate(0, 1, -1).Day()
}

// DateOnly truncates t to midnight UTC of its UTC calendar date
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
