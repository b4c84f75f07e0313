package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kreymann/resetwatch/internal/alert"
	"github.com/kreymann/resetwatch/internal/catalog"
	"github.com/kreymann/resetwatch/internal/models"
	"github.com/kreymann/resetwatch/internal/recharge"
	"github.com/kreymann/resetwatch/internal/schedule"
)

var jst = time.FixedZone("UTC+09:00", 9*3600)

type nopNotifier struct{ fired []alert.Notification }

func (n *nopNotifier) Notify(a alert.Notification) error {
	n.fired = append(n.fired, a)
	return nil
}

func (n *nopNotifier) countKind(kind models.TimerKind) int {
	count := 0
	for _, a := range n.fired {
		if a.Kind == kind {
			count++
		}
	}
	return count
}

type memAnchors struct {
	anchors map[string]recharge.Anchor
	saves   int
	loadErr error
}

func newMemAnchors() *memAnchors {
	return &memAnchors{anchors: make(map[string]recharge.Anchor)}
}

func (m *memAnchors) LoadAnchor(_ context.Context, userID string) (recharge.Anchor, error) {
	if m.loadErr != nil {
		return recharge.Anchor{}, m.loadErr
	}
	return m.anchors[userID], nil
}

func (m *memAnchors) SaveAnchor(_ context.Context, userID string, a recharge.Anchor) error {
	m.anchors[userID] = a
	m.saves++
	return nil
}

func (m *memAnchors) ClearAnchor(_ context.Context, userID string) error {
	delete(m.anchors, userID)
	return nil
}

type captureSink struct {
	broadcasts int
	last       []models.TimerRecord
}

func (s *captureSink) BroadcastSnapshot(_ time.Time, records []models.TimerRecord) {
	s.broadcasts++
	s.last = records
}

func testConfig(userID string) Config {
	return Config{
		Zone:             jst,
		ResetTime:        schedule.TimeOfDay{Hour: 18, Minute: 30},
		RechargeInterval: 2 * time.Hour,
		Spawns: []models.SpawnEntity{
			{ID: "ice-golem", Time: "22:00", Alert: true},
		},
		Weeklies: []models.WeeklyEntity{
			{ID: "weekly-reset", Day: "mon", Time: "18:30", Alert: true},
		},
		PreAlertMinutes: []int{15},
		ReminderHorizon: 72 * time.Hour,
		UserID:          userID,
	}
}

func find(records []models.TimerRecord, id string) (models.TimerRecord, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return models.TimerRecord{}, false
}

func TestTickBuildsAndBroadcasts(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, jst))
	sink := &captureSink{}
	eng := New(testConfig(""), clk, &nopNotifier{}, nil, sink)

	records := eng.Tick()
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	if sink.broadcasts != 1 {
		t.Fatalf("broadcasts = %d, want 1", sink.broadcasts)
	}

	rec, ok := find(eng.Snapshot(), catalog.ResetID)
	if !ok {
		t.Fatal("snapshot missing reset record")
	}
	if rec.SecondsRemaining != 34200 {
		t.Fatalf("reset remaining = %d, want 34200", rec.SecondsRemaining)
	}
}

func TestRechargeSyncMovesAnchor(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, jst))
	eng := New(testConfig(""), clk, &nopNotifier{}, nil, nil)

	a, err := eng.ApplyRechargeSync(context.Background(), time.Hour, false)
	if err != nil {
		t.Fatalf("ApplyRechargeSync: %v", err)
	}
	if want := clk.Now().Add(time.Hour); !a.At.Equal(want) {
		t.Fatalf("anchor = %v, want %v", a.At, want)
	}

	records := eng.Tick()
	rec, _ := find(records, catalog.RechargeID)
	if !rec.Target.Equal(a.At) {
		t.Fatalf("recharge target = %v, want the pending anchor %v", rec.Target, a.At)
	}
}

func TestGuestRolloverClearsAnchor(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 18, 0, 0, 0, jst))
	eng := New(testConfig(""), clk, &nopNotifier{}, nil, nil)

	eng.Tick() // establish the cycle
	if _, err := eng.ApplyRechargeSync(context.Background(), 30*time.Minute, false); err != nil {
		t.Fatalf("ApplyRechargeSync: %v", err)
	}

	clk.Advance(time.Hour) // 19:00, past the 18:30 reset
	records := eng.Tick()

	rec, _ := find(records, catalog.RechargeID)
	// Anchor gone: recharge derives from the fresh 18:30 rollover.
	rollover := time.Date(2026, 3, 10, 18, 30, 0, 0, jst)
	if want := rollover.Add(2 * time.Hour); !rec.Target.Equal(want) {
		t.Fatalf("recharge target = %v, want rollover-derived %v", rec.Target, want)
	}
}

func TestAuthenticatedRolloverKeepsAnchor(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 18, 0, 0, 0, jst))
	repo := newMemAnchors()
	eng := New(testConfig("user-1"), clk, &nopNotifier{}, repo, nil)

	eng.Tick()
	a, err := eng.ApplyRechargeSync(context.Background(), 30*time.Minute, true)
	if err != nil {
		t.Fatalf("ApplyRechargeSync: %v", err)
	}
	if repo.saves != 1 {
		t.Fatalf("saves = %d, want write-through", repo.saves)
	}

	clk.Advance(time.Hour)
	records := eng.Tick()

	rec, _ := find(records, catalog.RechargeID)
	// 30m past the anchor at 19:00; next boundary is anchor + interval.
	if want := a.At.Add(2 * time.Hour); !rec.Target.Equal(want) {
		t.Fatalf("recharge target = %v, want anchor-derived %v", rec.Target, want)
	}
}

func TestRestoreLoadsPersistedAnchor(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, jst))
	repo := newMemAnchors()
	stored := recharge.Anchor{At: clk.Now().Add(40 * time.Minute)}
	repo.anchors["user-1"] = stored

	eng := New(testConfig("user-1"), clk, &nopNotifier{}, repo, nil)
	if err := eng.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	rec, _ := find(eng.Tick(), catalog.RechargeID)
	if !rec.Target.Equal(stored.At) {
		t.Fatalf("recharge target = %v, want restored anchor %v", rec.Target, stored.At)
	}

	t.Run("load failure surfaces", func(t *testing.T) {
		repo.loadErr = errors.New("connection refused")
		eng := New(testConfig("user-1"), clk, &nopNotifier{}, repo, nil)
		if err := eng.Restore(context.Background()); err == nil {
			t.Fatal("want error from failing repository")
		}
	})
}

func TestSetSpawnAlertEnabled(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, jst))
	eng := New(testConfig(""), clk, &nopNotifier{}, nil, nil)

	if !eng.SetSpawnAlertEnabled("ice-golem", "22:00", false) {
		t.Fatal("known entity reported not found")
	}
	rec, _ := find(eng.Tick(), "ice-golem@22:00")
	if rec.AlertEnabled {
		t.Fatal("toggle did not take effect on the next build")
	}

	if eng.SetSpawnAlertEnabled("ice-golem", "13:37", false) {
		t.Fatal("unknown slot reported found")
	}
}

func TestResetAlertFiresOncePerCycle(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 18, 29, 59, 500000000, jst))
	notifier := &nopNotifier{}
	eng := New(testConfig(""), clk, notifier, nil, nil)

	eng.Tick() // remaining 0, inside the band: fires
	clk.Advance(200 * time.Millisecond)
	eng.Tick() // same cycle, same key: deduped
	if got := notifier.countKind(models.TimerKindReset); got != 1 {
		t.Fatalf("reset fired %d times, want 1", got)
	}
	// The 18:30 recharge boundary lands on the same instant and is its own
	// occurrence-keyed alert, also exactly once.
	if got := notifier.countKind(models.TimerKindRecharge); got != 1 {
		t.Fatalf("recharge fired %d times, want 1", got)
	}
}

func TestDelayedTickStillFiresBoundaryAlerts(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 18, 29, 58, 800000000, jst))
	notifier := &nopNotifier{}
	eng := New(testConfig(""), clk, notifier, nil, nil)

	eng.Tick() // remaining 1: nothing due yet
	if len(notifier.fired) != 0 {
		t.Fatalf("fired %d alerts before the boundary", len(notifier.fired))
	}

	// The next tick arrives late and lands 2s past 18:30, after the rollover.
	clk.Advance(3200 * time.Millisecond)
	eng.Tick()
	if got := notifier.countKind(models.TimerKindReset); got != 1 {
		t.Fatalf("reset fired %d times after the late tick, want 1", got)
	}
	if got := notifier.countKind(models.TimerKindRecharge); got != 1 {
		t.Fatalf("recharge fired %d times after the late tick, want 1", got)
	}

	// Another tick inside the band stays deduped.
	clk.Advance(time.Second)
	eng.Tick()
	if got := notifier.countKind(models.TimerKindReset); got != 1 {
		t.Fatalf("reset re-fired inside the band: %d", got)
	}
	if got := notifier.countKind(models.TimerKindRecharge); got != 1 {
		t.Fatalf("recharge re-fired inside the band: %d", got)
	}
}

func TestClearRechargeSync(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, jst))
	repo := newMemAnchors()
	eng := New(testConfig("user-1"), clk, &nopNotifier{}, repo, nil)

	if _, err := eng.ApplyRechargeSync(context.Background(), 30*time.Minute, true); err != nil {
		t.Fatalf("ApplyRechargeSync: %v", err)
	}
	if err := eng.ClearRechargeSync(context.Background()); err != nil {
		t.Fatalf("ClearRechargeSync: %v", err)
	}
	if len(repo.anchors) != 0 {
		t.Fatal("persisted anchor survived the clear")
	}

	// Back on the rollover-derived schedule: 14h30m past Monday's 18:30
	// reset, next 2h boundary at 10:30.
	rec, _ := find(eng.Tick(), catalog.RechargeID)
	if want := time.Date(2026, 3, 10, 10, 30, 0, 0, jst); !rec.Target.Equal(want) {
		t.Fatalf("recharge target = %v, want rollover-derived %v", rec.Target, want)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, jst))
	eng := New(testConfig(""), clk, &nopNotifier{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx, time.Second) }()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
