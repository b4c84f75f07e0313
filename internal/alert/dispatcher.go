package alert

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kreymann/resetwatch/internal/cycle"
	"github.com/kreymann/resetwatch/internal/models"
)

// Notification is what the external notifier receives. Title and body are
// i18n keys; the dashboard resolves them in the user's locale.
type Notification struct {
	TitleKey string           `json:"title_key"`
	BodyKey  string           `json:"body_key"`
	Icon     string           `json:"icon"`
	Kind     models.TimerKind `json:"kind"`
	Entity   string           `json:"entity"`
}

// Notifier delivers one notification. Delivery is best-effort: a returned
// error is logged and the notification is still considered fired.
type Notifier interface {
	Notify(n Notification) error
}

// fireBand is the tolerance, in whole seconds, for boundary and horizon
// crossings. The driving poll is nominally 1 Hz but ticks can be delayed; an
// exact == 0 test would skip entirely on a late tick.
const fireBand = 5

// Dispatcher decides, once per tick, which notifications fire. Every decision
// is at-most-once per (entity, occurrence or cycle, threshold) via the ledger.
type Dispatcher struct {
	PreAlertMinutes []int
	Horizon         time.Duration

	notifier Notifier
	ledger   *Ledger
}

func NewDispatcher(notifier Notifier, ledger *Ledger, preAlertMinutes []int, horizon time.Duration) *Dispatcher {
	return &Dispatcher{
		PreAlertMinutes: preAlertMinutes,
		Horizon:         horizon,
		notifier:        notifier,
		ledger:          ledger,
	}
}

// Evaluate walks the tick's records and fires whatever is due. Records must
// come from the same tick as now and day; the engine guarantees the rollover
// step already ran.
func (d *Dispatcher) Evaluate(now time.Time, day cycle.Day, records []models.TimerRecord) {
	for _, rec := range records {
		switch rec.Kind {
		case models.TimerKindSpawn:
			d.evalPreAlerts(now, day, rec)
		case models.TimerKindReset:
			// Keyed by the boundary instant, not the current cycle day: the
			// firing band straddles the rollover, and a cycle-scoped key
			// would be wiped by the rollover clear mid-band and fire twice.
			// Each boundary instant opens exactly one cycle, so the dedup
			// scope is the same.
			d.evalBoundary(rec, Key{Entity: rec.ID, Occurrence: rec.Target.Unix()},
				"notify.reset.title", "notify.reset.body", "icons/reset.png")
		case models.TimerKindRecharge:
			d.evalBoundary(rec, Key{Entity: rec.ID, Occurrence: rec.Target.Unix()},
				"notify.recharge.title", "notify.recharge.body", "icons/ticket.png")
		case models.TimerKindWeekly:
			d.evalHorizon(rec)
		}
	}
}

// evalPreAlerts fires the configured lead-time alerts for an enabled spawn.
// The comparison is minute resolution: the poll is not guaranteed to land on
// an exact second, but it lands in every minute.
func (d *Dispatcher) evalPreAlerts(now time.Time, day cycle.Day, rec models.TimerRecord) {
	if !rec.AlertEnabled {
		return
	}
	nowMinute := now.Truncate(time.Minute)
	for _, minutes := range d.PreAlertMinutes {
		alertAt := rec.Target.Add(-time.Duration(minutes) * time.Minute)
		if !nowMinute.Equal(alertAt.Truncate(time.Minute)) {
			continue
		}
		key := Key{Cycle: day, Entity: rec.ID, Threshold: minutes}
		if d.ledger.Fired(key) {
			continue
		}
		d.fire(key, Notification{
			TitleKey: "notify.spawn.title",
			BodyKey:  "notify.spawn.body",
			Icon:     "icons/spawn.png",
			Kind:     rec.Kind,
			Entity:   rec.ID,
		})
	}
}

// evalBoundary fires once when a countdown crosses zero, within a narrow band
// below it.
func (d *Dispatcher) evalBoundary(rec models.TimerRecord, key Key, titleKey, bodyKey, icon string) {
	if rec.SecondsRemaining > 0 || rec.SecondsRemaining <= -fireBand {
		return
	}
	if d.ledger.Fired(key) {
		return
	}
	d.fire(key, Notification{
		TitleKey: titleKey,
		BodyKey:  bodyKey,
		Icon:     icon,
		Kind:     rec.Kind,
		Entity:   rec.ID,
	})
}

// evalHorizon fires once when a long-lived countdown crosses the reminder
// horizon. The key carries the occurrence instant, so the same weekly entity
// gets a fresh key every week while a revisit later in the same occurrence
// stays deduped. A tick driver suspended across the whole band misses the
// reminder; it is not fired late.
func (d *Dispatcher) evalHorizon(rec models.TimerRecord) {
	if !rec.AlertEnabled || d.Horizon <= 0 {
		return
	}
	horizon := int64(d.Horizon / time.Second)
	if rec.SecondsRemaining > horizon || rec.SecondsRemaining <= horizon-fireBand {
		return
	}
	key := Key{Entity: rec.ID, Occurrence: rec.Target.Unix()}
	if d.ledger.Fired(key) {
		return
	}
	d.fire(key, Notification{
		TitleKey: "notify.weekly.title",
		BodyKey:  "notify.weekly.body",
		Icon:     "icons/weekly.png",
		Kind:     rec.Kind,
		Entity:   rec.ID,
	})
}

// fire delivers and marks. The mark happens regardless of delivery outcome: a
// failed delivery is not retried, so a blocked notifier cannot turn into a
// spam loop on every subsequent tick.
func (d *Dispatcher) fire(key Key, n Notification) {
	if err := d.notifier.Notify(n); err != nil {
		log.Error().Err(err).Str("entity", n.Entity).Str("kind", string(n.Kind)).Msg("notifier failed; not retrying")
	}
	d.ledger.Mark(key)
}
