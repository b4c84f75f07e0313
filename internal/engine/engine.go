package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kreymann/resetwatch/internal/alert"
	"github.com/kreymann/resetwatch/internal/catalog"
	"github.com/kreymann/resetwatch/internal/clock"
	"github.com/kreymann/resetwatch/internal/cycle"
	"github.com/kreymann/resetwatch/internal/models"
	"github.com/kreymann/resetwatch/internal/recharge"
	"github.com/kreymann/resetwatch/internal/schedule"
)

// ledgerKeepFor bounds occurrence-scoped ledger entries; anything whose
// target is this far in the past can never match a firing band again.
const ledgerKeepFor = 7 * 24 * time.Hour

// AnchorRepository defines what the engine needs from persisted anchor
// storage. Only authenticated sessions have one; guests run memory-only.
type AnchorRepository interface {
	LoadAnchor(ctx context.Context, userID string) (recharge.Anchor, error)
	SaveAnchor(ctx context.Context, userID string, a recharge.Anchor) error
	ClearAnchor(ctx context.Context, userID string) error
}

// Sink receives each tick's finished snapshot, read-only.
type Sink interface {
	BroadcastSnapshot(now time.Time, records []models.TimerRecord)
}

// Config is the engine's timer configuration, already parsed.
type Config struct {
	Zone             *time.Location
	ResetTime        schedule.TimeOfDay
	RechargeInterval time.Duration
	Spawns           []models.SpawnEntity
	Weeklies         []models.WeeklyEntity
	PreAlertMinutes  []int
	ReminderHorizon  time.Duration

	// UserID marks an authenticated session; empty means guest.
	UserID string
}

// Engine composes the countdown core and owns all of its mutable state: the
// cycle tracker, the alert ledger, the recharge anchor, and the spawn alert
// flags. Exactly one goroutine executes ticks; external inputs take the mutex
// and apply between passes.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	clk        clock.Clock
	builder    *catalog.Builder
	tracker    *cycle.Tracker
	ledger     *alert.Ledger
	dispatcher *alert.Dispatcher
	anchors    AnchorRepository
	sink       Sink

	anchor   recharge.Anchor
	snapshot []models.TimerRecord
}

// New wires an engine. notifier receives fired alerts; anchors and sink may
// be nil (guest mode, no fanout).
func New(cfg Config, clk clock.Clock, notifier alert.Notifier, anchors AnchorRepository, sink Sink) *Engine {
	ledger := alert.NewLedger()
	return &Engine{
		cfg: cfg,
		clk: clk,
		builder: &catalog.Builder{
			Zone:             cfg.Zone,
			Reset:            cfg.ResetTime,
			RechargeInterval: cfg.RechargeInterval,
			Spawns:           cfg.Spawns,
			Weeklies:         cfg.Weeklies,
		},
		tracker:    cycle.NewTracker(),
		ledger:     ledger,
		dispatcher: alert.NewDispatcher(notifier, ledger, cfg.PreAlertMinutes, cfg.ReminderHorizon),
		anchors:    anchors,
		sink:       sink,
	}
}

func (e *Engine) authenticated() bool {
	return e.cfg.UserID != "" && e.anchors != nil
}

// Restore loads the persisted recharge anchor for an authenticated session.
// Guests and load failures start unanchored; the cycle-rollover default
// covers them.
func (e *Engine) Restore(ctx context.Context) error {
	if !e.authenticated() {
		return nil
	}
	a, err := e.anchors.LoadAnchor(ctx, e.cfg.UserID)
	if err != nil {
		return fmt.Errorf("load recharge anchor: %w", err)
	}
	e.mu.Lock()
	e.anchor = a
	e.mu.Unlock()
	if !a.IsZero() {
		log.Info().Time("anchor", a.At).Msg("restored persisted recharge anchor")
	}
	return nil
}

// Run drives the tick loop at interval until ctx is cancelled. The previous
// pass always completes before the next fires; passes are sub-millisecond.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := e.clk.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("engine tick loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("engine tick loop stopped")
			return ctx.Err()
		case <-ticker.Chan():
			e.Tick()
		}
	}
}

// Tick executes one full pass: rollover check, catalog build, alert dispatch,
// snapshot broadcast.
func (e *Engine) Tick() []models.TimerRecord {
	e.mu.Lock()
	now := e.clk.Now()

	day, rolled := e.tracker.Mark(now, e.cfg.ResetTime, e.cfg.Zone)
	if rolled {
		e.ledger.ClearCycle(now, ledgerKeepFor)
		if !e.authenticated() {
			e.anchor = recharge.Anchor{}
		}
		log.Info().Int64("cycle_day", int64(day)).Msg("game day rolled over")
	}

	lastRollover := schedule.PrevDaily(now, e.cfg.ResetTime, e.cfg.Zone)
	records := e.builder.Build(now, e.anchor, lastRollover)
	e.dispatcher.Evaluate(now, day, records)
	e.snapshot = records
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink.BroadcastSnapshot(now, records)
	}
	return records
}

// Snapshot returns the records from the most recent tick.
func (e *Engine) Snapshot() []models.TimerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.TimerRecord, len(e.snapshot))
	copy(out, e.snapshot)
	return out
}

// ApplyRechargeSync sets the recharge anchor from a user-reported "next unit
// in remaining seconds" reading. With persist, an authenticated session also
// writes through to storage; a storage failure keeps the in-memory anchor and
// is reported, not rolled back.
func (e *Engine) ApplyRechargeSync(ctx context.Context, remaining time.Duration, persist bool) (recharge.Anchor, error) {
	e.mu.Lock()
	a := recharge.SyncFromRemaining(e.clk.Now(), remaining)
	e.anchor = a
	e.mu.Unlock()

	log.Info().Time("anchor", a.At).Bool("persist", persist).Msg("recharge anchor synced")
	if persist && e.authenticated() {
		if err := e.anchors.SaveAnchor(ctx, e.cfg.UserID, a); err != nil {
			return a, fmt.Errorf("persist recharge anchor: %w", err)
		}
	}
	return a, nil
}

// ClearRechargeSync drops the recharge anchor; the next build falls back to
// the cycle-rollover default. An authenticated session also deletes the
// persisted row; a storage failure keeps the in-memory clear and is reported,
// not rolled back.
func (e *Engine) ClearRechargeSync(ctx context.Context) error {
	e.mu.Lock()
	e.anchor = recharge.Anchor{}
	e.mu.Unlock()

	log.Info().Msg("recharge anchor cleared")
	if e.authenticated() {
		if err := e.anchors.ClearAnchor(ctx, e.cfg.UserID); err != nil {
			return fmt.Errorf("clear persisted recharge anchor: %w", err)
		}
	}
	return nil
}

// SetSpawnAlertEnabled flips the alert flag for one spawn slot. Takes effect
// on the next catalog build.
func (e *Engine) SetSpawnAlertEnabled(entityID, timeOfDay string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.builder.Spawns {
		s := &e.builder.Spawns[i]
		if s.ID == entityID && s.Time == timeOfDay {
			s.Alert = enabled
			return true
		}
	}
	return false
}
