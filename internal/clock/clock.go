package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface the engine uses for time operations.
// In production, wrap clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Corrected is a Clock whose Now is the underlying wall clock shifted by an
// externally supplied offset, e.g. from a time-sync handshake against the
// game's authoritative server. The offset is the only state.
type Corrected struct {
	mu     sync.RWMutex
	base   clockwork.Clock
	offset time.Duration
}

// NewCorrected returns a Corrected clock over base with a zero offset.
func NewCorrected(base clockwork.Clock) *Corrected {
	return &Corrected{base: base}
}

// Now returns the corrected wall-clock time.
func (c *Corrected) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base.Now().Add(c.offset)
}

// NewTicker returns a ticker driven by the underlying clock. Tick periods are
// unaffected by the offset; only absolute readings are shifted.
func (c *Corrected) NewTicker(d time.Duration) clockwork.Ticker {
	return c.base.NewTicker(d)
}

// SetOffset replaces the correction applied to every subsequent Now reading.
func (c *Corrected) SetOffset(offset time.Duration) {
	c.mu.Lock()
	c.offset = offset
	c.mu.Unlock()
}

// Offset returns the current correction.
func (c *Corrected) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
