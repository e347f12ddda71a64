package quota

import (
	"fmt"
	"time"

	"github.com/penlight/vitalsum/models"
)

// WindowKind is a fixed-length time bucket used for rate accounting.
type WindowKind string

const (
	WindowHourly  WindowKind = "hourly"
	WindowDaily   WindowKind = "daily"
	WindowWeekly  WindowKind = "weekly"
	WindowMonthly WindowKind = "monthly"
)

// windowOrder lists tiers from finest to coarsest. Checks report the
// finest violated tier first: a blown hourly cap recovers in minutes,
// a blown monthly cap does not.
var windowOrder = []WindowKind{WindowHourly, WindowDaily, WindowWeekly, WindowMonthly}

// WindowStart returns the wall-clock start of the window containing t.
// Hourly windows align to the hour, daily to local midnight, weekly to
// Monday midnight, monthly to the first of the month.
func WindowStart(kind WindowKind, t time.Time) time.Time {
	switch kind {
	case WindowHourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case WindowDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case WindowWeekly:
		daysSinceMonday := (int(t.Weekday()) + 6) % 7
		monday := t.AddDate(0, 0, -daysSinceMonday)
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
	case WindowMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return t
}

// NextReset returns the start of the window after the one containing t.
func NextReset(kind WindowKind, t time.Time) time.Time {
	start := WindowStart(kind, t)
	switch kind {
	case WindowHourly:
		return start.Add(time.Hour)
	case WindowDaily:
		return start.AddDate(0, 0, 1)
	case WindowWeekly:
		return start.AddDate(0, 0, 7)
	case WindowMonthly:
		return start.AddDate(0, 1, 0)
	}
	return start
}

// counterKey builds the store key for a (category, kind, windowStart)
// tuple. Keys for elapsed windows are simply never looked up again, so
// stale counters roll over lazily without explicit resets.
func counterKey(category models.RequestCategory, kind WindowKind, start time.Time) string {
	return fmt.Sprintf("counter:%s:%s:%d", category, kind, start.Unix())
}

// budgetKey builds the store key for the budget period beginning at
// periodStart.
func budgetKey(periodStart time.Time) string {
	return fmt.Sprintf("budget:%d", periodStart.Unix())
}
