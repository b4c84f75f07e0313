package recharge

import "time"

// Anchor marks an instant at which one resource unit became available. The
// recharge phase is measured from it. A zero Anchor means "derive from the
// last cycle rollover" instead.
type Anchor struct {
	At time.Time
}

// IsZero reports whether the anchor is unset.
func (a Anchor) IsZero() bool {
	return a.At.IsZero()
}

// SyncFromRemaining builds an anchor from a user-reported "next unit in N
// seconds" reading taken at now.
func SyncFromRemaining(now time.Time, remaining time.Duration) Anchor {
	return Anchor{At: now.Add(remaining)}
}

// Next returns the next recharge instant strictly after now. Phase is
// measured from the anchor when set, else from the last cycle rollover: the
// default assumption is that a unit was available exactly at the start of the
// current game day and has been recharging since.
//
// The boundary is found by closed-form division, never by stepping interval
// by interval, because anchors can be days in the past.
func Next(now time.Time, interval time.Duration, anchor Anchor, lastRollover time.Time) time.Time {
	base := lastRollover
	if !anchor.IsZero() {
		base = anchor.At
	}
	if base.After(now) {
		return base
	}
	elapsed := now.Sub(base)
	k := elapsed/interval + 1
	return base.Add(k * interval)
}
