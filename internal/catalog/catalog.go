package catalog

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kreymann/resetwatch/internal/models"
	"github.com/kreymann/resetwatch/internal/recharge"
	"github.com/kreymann/resetwatch/internal/schedule"
)

// spawnGrace keeps a just-missed spawn visible for five minutes instead of
// dropping it precisely at zero.
const spawnGrace = 300 * time.Second

// boundaryGrace keeps a just-passed reset or recharge boundary in the record
// for as long as the dispatcher's firing band. Without it the next-occurrence
// math rolls the target a full day or interval forward the instant the
// boundary passes, and a tick delayed across the boundary would never see a
// non-positive remaining.
const boundaryGrace = 5 * time.Second

// RechargeID and ResetID are the fixed record ids for the two singleton timers.
const (
	ResetID    = "daily-reset"
	RechargeID = "recharge"
)

// Builder assembles the per-tick TimerRecord list from the configured
// entities. It holds no per-tick state; everything time-dependent arrives as
// arguments so a build is a pure function of its inputs.
type Builder struct {
	Zone             *time.Location
	Reset            schedule.TimeOfDay
	RechargeInterval time.Duration
	Spawns           []models.SpawnEntity
	Weeklies         []models.WeeklyEntity
}

// Build computes one TimerRecord per tracked entity as of now. Entities with
// malformed schedule fields are skipped for the tick, not fatal. Spawn
// records more than five minutes past due are dropped; spawn sort order is
// alert-enabled first, then ascending remaining seconds.
func (b *Builder) Build(now time.Time, anchor recharge.Anchor, lastRollover time.Time) []models.TimerRecord {
	records := make([]models.TimerRecord, 0, 2+len(b.Spawns)+len(b.Weeklies))

	resetAt := schedule.NextDaily(now.Add(-boundaryGrace), b.Reset, b.Zone)
	records = append(records, record(models.TimerKindReset, ResetID, resetAt, now, false))

	rechargeAt := recharge.Next(now.Add(-boundaryGrace), b.RechargeInterval, anchor, lastRollover)
	records = append(records, record(models.TimerKindRecharge, RechargeID, rechargeAt, now, false))

	spawns := make([]models.TimerRecord, 0, len(b.Spawns))
	for _, s := range b.Spawns {
		tod, err := schedule.ParseTimeOfDay(s.Time)
		if err != nil {
			log.Warn().Err(err).Str("entity", s.ID).Msg("skipping spawn with bad schedule")
			continue
		}
		target := schedule.NextDaily(now.Add(-spawnGrace), tod, b.Zone)
		rec := record(models.TimerKindSpawn, s.SpawnKey(), target, now, s.Alert)
		if rec.SecondsRemaining < -300 {
			continue
		}
		spawns = append(spawns, rec)
	}
	sort.SliceStable(spawns, func(i, j int) bool {
		if spawns[i].AlertEnabled != spawns[j].AlertEnabled {
			return spawns[i].AlertEnabled
		}
		return spawns[i].SecondsRemaining < spawns[j].SecondsRemaining
	})
	records = append(records, spawns...)

	for _, w := range b.Weeklies {
		day, err := schedule.ParseWeekday(w.Day)
		if err != nil {
			log.Warn().Err(err).Str("entity", w.ID).Msg("skipping weekly with bad schedule")
			continue
		}
		tod, err := schedule.ParseTimeOfDay(w.Time)
		if err != nil {
			log.Warn().Err(err).Str("entity", w.ID).Msg("skipping weekly with bad schedule")
			continue
		}
		target := schedule.NextWeekly(now, day, tod, b.Zone)
		records = append(records, record(models.TimerKindWeekly, w.ID, target, now, w.Alert))
	}

	return records
}

func record(kind models.TimerKind, id string, target, now time.Time, alert bool) models.TimerRecord {
	return models.TimerRecord{
		Kind:             kind,
		ID:               id,
		Target:           target,
		SecondsRemaining: floorSeconds(target.Sub(now)),
		AlertEnabled:     alert,
	}
}

// floorSeconds rounds toward negative infinity, so a timer 0.5s past due
// reads -1, not 0.
func floorSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second < 0 {
		secs--
	}
	return secs
}
