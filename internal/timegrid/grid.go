// Package timegrid converts between instants and week-grid cells.
//
// A cell identifies one (weekday, hour) slot of a rendered week. Cells exist
// only inside the engine for the duration of one rendering session; they are
// never persisted or serialized.
package timegrid

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimestamp indicates an instant that cannot be placed on the grid.
var ErrInvalidTimestamp = errors.New("timegrid: invalid timestamp")

// ErrOutOfWindow indicates an instant outside the requested week window.
var ErrOutOfWindow = errors.New("timegrid: instant outside week window")

// CellID identifies one slot in a week grid. Day counts from the window start
// (0..6) and Hour is the timezone-local hour (0..23).
type CellID struct {
	Day  int
	Hour int
}

// Valid reports whether the cell lies inside a seven-day, 24-hour grid.
func (c CellID) Valid() bool {
	return c.Day >= 0 && c.Day <= 6 && c.Hour >= 0 && c.Hour <= 23
}

// String renders the cell for logs and test failure messages.
func (c CellID) String() string {
	return fmt.Sprintf("d%dh%02d", c.Day, c.Hour)
}

// WeekWindow bounds one displayed week. Start is the timezone-local start of
// the week and End is exclusive, exactly seven days later.
type WeekWindow struct {
	Start time.Time
	End   time.Time
}

// NewWeekWindow builds the window beginning at start in the given location.
func NewWeekWindow(start time.Time, loc *time.Location) WeekWindow {
	if loc == nil {
		loc = time.UTC
	}
	local := start.In(loc)
	begin := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return WeekWindow{Start: begin, End: begin.AddDate(0, 0, 7)}
}

// WindowContaining returns the Monday-start week window enclosing reference.
func WindowContaining(reference time.Time, loc *time.Location) WeekWindow {
	if loc == nil {
		loc = time.UTC
	}
	local := reference.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	// Shift back so Monday is day zero. In Go, Monday == 1 and Sunday == 0.
	offset := (int(day.Weekday()) + 6) % 7
	return NewWeekWindow(day.AddDate(0, 0, -offset), loc)
}

// Contains reports whether the instant falls inside the window.
func (w WeekWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ToCell places an instant on the week grid anchored at weekStart. Timezones
// are treated as fixed offsets; the zero instant and instants outside the
// seven-day window are rejected.
func ToCell(t time.Time, loc *time.Location, weekStart time.Time) (CellID, error) {
	if t.IsZero() {
		return CellID{}, ErrInvalidTimestamp
	}
	if loc == nil {
		loc = time.UTC
	}

	local := t.In(loc)
	anchor := weekStart.In(loc)
	anchorDay := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, loc)
	localDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	day := int(localDay.Sub(anchorDay) / (24 * time.Hour))
	cell := CellID{Day: day, Hour: local.Hour()}
	if !cell.Valid() {
		return CellID{}, ErrOutOfWindow
	}
	return cell, nil
}

// ToInstant is the exact inverse of ToCell: it returns the top-of-hour instant
// the cell denotes inside the week anchored at weekStart.
func ToInstant(c CellID, loc *time.Location, weekStart time.Time) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	anchor := weekStart.In(loc)
	return time.Date(anchor.Year(), anchor.Month(), anchor.Day()+c.Day, c.Hour, 0, 0, 0, loc)
}
