package alert

import (
	"time"

	"github.com/kreymann/resetwatch/internal/cycle"
)

// Key is the composite dedup key for one notification. Cycle-scoped entries
// set Cycle and are wiped on rollover. Occurrence-scoped entries set
// Occurrence (the target instant, unix seconds) instead; the key is already
// distinct per occurrence, so those survive rollover and are pruned by age.
//
// A typed key, rather than a formatted string, keeps alert classes from ever
// colliding in the map.
type Key struct {
	Cycle      cycle.Day
	Entity     string
	Threshold  int   // minutes before target; 0 for boundary alerts
	Occurrence int64 // unix seconds of the target instant; 0 for cycle-scoped keys
}

// Ledger records which notifications have already fired. Writes happen in the
// dispatcher, clears in the engine's rollover step; rollover always runs
// first within a tick, so ownership never overlaps.
type Ledger struct {
	fired map[Key]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{fired: make(map[Key]struct{})}
}

// Fired reports whether k was already marked.
func (l *Ledger) Fired(k Key) bool {
	_, ok := l.fired[k]
	return ok
}

// Mark records k as fired. Marking an already-fired key is a no-op.
func (l *Ledger) Mark(k Key) {
	l.fired[k] = struct{}{}
}

// ClearCycle removes all cycle-scoped entries and prunes occurrence-scoped
// entries whose target is older than keepFor relative to now.
func (l *Ledger) ClearCycle(now time.Time, keepFor time.Duration) {
	cutoff := now.Add(-keepFor).Unix()
	for k := range l.fired {
		if k.Occurrence == 0 || k.Occurrence < cutoff {
			delete(l.fired, k)
		}
	}
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	return len(l.fired)
}
