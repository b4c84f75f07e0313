package cycle

import (
	"time"

	"github.com/kreymann/resetwatch/internal/schedule"
)

// Day identifies one game-day cycle: the ordinal of the civil date, in the
// reference timezone, on which the cycle's opening rollover occurred.
type Day int64

// DayOf returns the cycle Day for the rollover instant t in zone.
func DayOf(t time.Time, zone *time.Location) Day {
	local := t.In(zone)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return Day(midnight.Unix() / 86400)
}

// Tracker detects daily cycle rollover. It compares the civil day of the
// previous rollover against the stored day rather than comparing consecutive
// now readings, so small backwards clock corrections cannot fake a rollover.
type Tracker struct {
	lastCycleDay Day
}

// NewTracker returns a Tracker that treats its first Mark as same-cycle.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Mark evaluates the rollover rule for now and records the resulting cycle
// day. It reports the day and whether a new cycle began. Run this before any
// other per-tick computation so downstream components observe one consistent
// cycle identity for the tick.
func (t *Tracker) Mark(now time.Time, reset schedule.TimeOfDay, zone *time.Location) (Day, bool) {
	day := DayOf(schedule.PrevDaily(now, reset, zone), zone)
	rolled := t.lastCycleDay != 0 && day > t.lastCycleDay
	t.lastCycleDay = day
	return day, rolled
}

// Current returns the most recently recorded cycle day.
func (t *Tracker) Current() Day {
	return t.lastCycleDay
}
