// Package recurrence expands a repeating schedule entry into dated instances.
package recurrence

import (
	"errors"
	"time"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily advances one calendar day per occurrence.
	FrequencyDaily
	// FrequencyWeekly advances seven calendar days per occurrence.
	FrequencyWeekly
	// FrequencyMonthly advances one calendar month per occurrence, clamping the
	// day of month to the last valid day of the target month.
	FrequencyMonthly
)

// ParseFrequency maps the wire repeat_frequency value onto a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch value {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	default:
		return FrequencyUnspecified, ErrInvalidFrequency
	}
}

// String renders the wire form of the frequency.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	case FrequencyMonthly:
		return "monthly"
	default:
		return ""
	}
}

// MaxInstances caps a single expansion. Hitting the cap aborts the expansion
// with ErrRangeTooLarge rather than truncating silently.
const MaxInstances = 1000

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidDuration indicates the base entry duration is not positive.
var ErrInvalidDuration = errors.New("recurrence: entry duration must be positive")

// ErrRangeInvalid indicates the repeat end date precedes the first occurrence.
var ErrRangeInvalid = errors.New("recurrence: repeat end date precedes start")

// ErrRangeTooLarge indicates the expansion would exceed MaxInstances.
var ErrRangeTooLarge = errors.New("recurrence: repeat range produces too many instances")

// Instance is one concrete occurrence of a recurring entry. Every instance of
// one expansion shares the same Series id.
type Instance struct {
	Series int64
	Start  time.Time
	End    time.Time
}

// Engine expands recurrence definitions into instances.
type Engine struct {
	location *time.Location
	seriesID func() int64
}

// NewEngine constructs an Engine that evaluates wall-clock dates in loc and
// draws fresh series ids from seriesID. A nil loc means UTC; a nil seriesID
// falls back to a nanosecond clock reading.
func NewEngine(loc *time.Location, seriesID func() int64) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if seriesID == nil {
		seriesID = func() int64 { return time.Now().UnixNano() }
	}
	return &Engine{location: loc, seriesID: seriesID}
}

// Expand generates every instance of the recurrence beginning at baseStart,
// ending at baseEnd, repeating with the given frequency until the local date
// of an occurrence would pass endDate (inclusive).
//
// Occurrence dates are re-derived from wall-clock fields, never by adding a
// fixed epoch duration, so the local start time is stable across occurrences.
// Monthly recurrences keep the original day of month where it exists and
// clamp to the last day of shorter months (Jan 31 -> Feb 28 -> Mar 31).
// Instances are returned in chronological order and share one fresh series id.
func (e *Engine) Expand(baseStart, baseEnd time.Time, freq Frequency, endDate time.Time) ([]Instance, error) {
	loc := e.location

	switch freq {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return nil, ErrInvalidFrequency
	}

	start := baseStart.In(loc)
	end := baseEnd.In(loc)
	duration := end.Sub(start)
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	limitYear, limitMonth, limitDay := endDate.In(loc).Date()
	limit := time.Date(limitYear, limitMonth, limitDay, 0, 0, 0, 0, loc)
	if dateOf(start, loc).After(limit) {
		return nil, ErrRangeInvalid
	}

	series := e.seriesID()
	instances := make([]Instance, 0, 8)

	for n := 0; ; n++ {
		current := occurrenceStart(start, freq, n, loc)
		if dateOf(current, loc).After(limit) {
			break
		}
		if len(instances) >= MaxInstances {
			return nil, ErrRangeTooLarge
		}
		instances = append(instances, Instance{
			Series: series,
			Start:  current,
			End:    current.Add(duration),
		})
	}

	return instances, nil
}

// occurrenceStart derives occurrence n from the anchor's wall-clock fields.
func occurrenceStart(anchor time.Time, freq Frequency, n int, loc *time.Location) time.Time {
	year, month, day := anchor.Date()
	hour, minute, second := anchor.Clock()

	switch freq {
	case FrequencyDaily:
		day += n
	case FrequencyWeekly:
		day += 7 * n
	case FrequencyMonthly:
		// Normalize the month index first, then clamp the anchor day to the
		// target month's length so Jan 31 never overflows into March.
		total := int(month) - 1 + n
		year += total / 12
		month = time.Month(total%12 + 1)
		if last := daysIn(year, month, loc); day > last {
			day = last
		}
	}

	return time.Date(year, month, day, hour, minute, second, anchor.Nanosecond(), loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
