package schedule

import "time"

// NextDaily returns the next instant at which tod occurs in zone, at or after
// now. The candidate is built by civil-date arithmetic in the zone, not by raw
// duration addition, so the math stays correct if the zone model ever grows
// DST transitions.
func NextDaily(now time.Time, tod TimeOfDay, zone *time.Location) time.Time {
	local := now.In(zone)
	cand := time.Date(local.Year(), local.Month(), local.Day(), tod.Hour, tod.Minute, 0, 0, zone)
	if cand.Before(now) {
		cand = cand.AddDate(0, 0, 1)
	}
	return cand
}

// NextWeekly returns the next instant at which (day, tod) occurs in zone,
// strictly after now. Landing exactly on the target rolls a full week forward:
// the occurrence at now belongs to the cycle that just ended.
func NextWeekly(now time.Time, day Weekday, tod TimeOfDay, zone *time.Location) time.Time {
	local := now.In(zone)
	delta := int(day) - int(isoWeekday(local.Weekday()))
	cand := time.Date(local.Year(), local.Month(), local.Day()+delta, tod.Hour, tod.Minute, 0, 0, zone)
	if delta < 0 || !cand.After(now) {
		cand = cand.AddDate(0, 0, 7)
	}
	return cand
}

// PrevDaily returns the most recent occurrence of tod in zone at or before
// now: the daily reset's previous rollover.
func PrevDaily(now time.Time, tod TimeOfDay, zone *time.Location) time.Time {
	return NextDaily(now, tod, zone).AddDate(0, 0, -1)
}
