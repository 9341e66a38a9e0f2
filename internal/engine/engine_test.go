package engine

import (
	"path/filepath"
	"testing"
	"time"

	"aura/wellness-agent/internal/breaks"
	"aura/wellness-agent/internal/config"
	"aura/wellness-agent/internal/database"
	"aura/wellness-agent/internal/platform"
	"aura/wellness-agent/internal/session"
	"aura/wellness-agent/internal/store"

	"go.uber.org/zap"
)

type testHarness struct {
	eng    *Engine
	db     *database.DB
	events []Event
	clock  time.Time
}

// 2026-08-24 is a Monday.
func testClock() time.Time {
	return time.Date(2026, 8, 24, 9, 0, 0, 0, time.Local)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Engine.TickInterval = 1
	cfg.Engine.MetricsWindow = 60
	cfg.Engine.IdleZeroThreshold = 1
	cfg.Engine.CheckpointInterval = 30
	return cfg
}

func newHarness(t *testing.T, prep func(*store.SettingsRepository)) *testHarness {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if prep != nil {
		prep(store.NewSettingsRepository(db.DB))
	}

	h := &testHarness{db: db, clock: testClock()}
	eng, err := New(testConfig(), db, platform.NewNoop(), func(ev Event) {
		h.events = append(h.events, ev)
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.now = func() time.Time { return h.clock }
	eng.currentDay = h.clock.Format("2006-01-02")
	eng.lastBreakAt = h.clock
	eng.lastSampleAt = h.clock
	eng.lastCheckpoint = h.clock
	h.eng = eng
	return h
}

// ticks advances the fake clock one second at a time through the scheduler.
func (h *testHarness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.clock = h.clock.Add(time.Second)
		h.eng.tick(h.clock, 1)
	}
}

func (h *testHarness) eventsOfType(eventType EventType) []Event {
	var out []Event
	for _, ev := range h.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (h *testHarness) lastEvent(t *testing.T, eventType EventType) map[string]any {
	t.Helper()
	evs := h.eventsOfType(eventType)
	if len(evs) == 0 {
		t.Fatalf("no %s event emitted", eventType)
	}
	data, ok := evs[len(evs)-1].Data.(map[string]any)
	if !ok {
		t.Fatalf("%s event has unexpected payload %T", eventType, evs[len(evs)-1].Data)
	}
	return data
}

func shortMicroInterval(settings *store.SettingsRepository) {
	settings.Set("micro_break_interval", "10")
}

func TestBreakFireAndComplete(t *testing.T) {
	t.Parallel()
	h := newHarness(t, shortMicroInterval)

	h.eng.Submit(Command{Cmd: CmdStartSession})
	h.ticks(10)

	due := h.lastEvent(t, EventBreakDue)
	if due["break_type"] != "micro" {
		t.Fatalf("expected micro break, got %v", due["break_type"])
	}
	recordID, ok := due["record_id"].(int64)
	if !ok || recordID == 0 {
		t.Fatalf("expected a persisted record id, got %v", due["record_id"])
	}

	logs := store.NewBreakLogRepository(h.db.DB)
	row, err := logs.GetByID(recordID)
	if err != nil {
		t.Fatalf("get break log: %v", err)
	}
	if row.Completed || row.Skipped || row.Snoozed {
		t.Fatalf("pending break already resolved: %+v", row)
	}

	h.eng.Submit(Command{Cmd: CmdCompleteBreak})
	h.ticks(1)

	completed := h.lastEvent(t, EventBreakCompleted)
	if completed["record_id"].(int64) != recordID {
		t.Fatalf("completed wrong record: %v", completed["record_id"])
	}
	row, err = logs.GetByID(recordID)
	if err != nil {
		t.Fatalf("get break log: %v", err)
	}
	if !row.Completed || row.Skipped || row.Snoozed {
		t.Fatalf("expected completed flag only, got %+v", row)
	}
	if _, pending := h.eng.set.Pending(); pending {
		t.Fatal("break still pending after completion")
	}
}

func TestNoFireWithoutSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, shortMicroInterval)

	h.ticks(30)
	if evs := h.eventsOfType(EventBreakDue); len(evs) != 0 {
		t.Fatalf("break fired without an active session: %+v", evs)
	}
}

func TestSnoozeReusesLogRow(t *testing.T) {
	t.Parallel()
	h := newHarness(t, shortMicroInterval)

	h.eng.Submit(Command{Cmd: CmdStartSession})
	h.ticks(10)
	first := h.lastEvent(t, EventBreakDue)
	recordID := first["record_id"].(int64)

	minutes := 1
	h.eng.Submit(Command{Cmd: CmdSnoozeBreak, Minutes: &minutes})
	h.ticks(1)

	logs := store.NewBreakLogRepository(h.db.DB)
	row, err := logs.GetByID(recordID)
	if err != nil {
		t.Fatalf("get break log: %v", err)
	}
	if !row.Snoozed {
		t.Fatalf("expected interim snoozed flag, got %+v", row)
	}

	// Snooze beyond the interval clamps to a full countdown.
	h.ticks(10)
	dues := h.eventsOfType(EventBreakDue)
	if len(dues) != 2 {
		t.Fatalf("expected a re-fire, got %d break_due events", len(dues))
	}
	refire := dues[1].Data.(map[string]any)
	if refire["record_id"].(int64) != recordID {
		t.Fatalf("re-fire created a new log row: %v", refire["record_id"])
	}

	h.eng.Submit(Command{Cmd: CmdCompleteBreak})
	h.ticks(1)
	row, err = logs.GetByID(recordID)
	if err != nil {
		t.Fatalf("get break log: %v", err)
	}
	if !row.Completed || row.Snoozed {
		t.Fatalf("final resolution should overwrite the snoozed flag: %+v", row)
	}
}

func TestResolutionWithoutPendingIsNoOp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.eng.Submit(Command{Cmd: CmdCompleteBreak})
	h.eng.Submit(Command{Cmd: CmdSkipBreak})
	h.ticks(1)

	if evs := h.eventsOfType(EventBreakCompleted); len(evs) != 0 {
		t.Fatalf("spurious completion: %+v", evs)
	}
	if evs := h.eventsOfType(EventError); len(evs) != 0 {
		t.Fatalf("no-op resolution should not error: %+v", evs)
	}
}

func TestHydrationGoalSilencesAndDayRollover(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(settings *store.SettingsRepository) {
		settings.Set("water_goal", "500")
	})

	amount := 600
	h.eng.Submit(Command{Cmd: CmdLogHydration, AmountML: &amount})
	h.ticks(1)

	logged := h.lastEvent(t, EventHydrationLogged)
	if logged["total_today_ml"].(int) != 600 {
		t.Fatalf("unexpected total: %v", logged["total_today_ml"])
	}
	if !h.eng.set.HydrationSilenced() {
		t.Fatal("expected hydration silenced after meeting the goal")
	}

	h.clock = h.clock.Add(24 * time.Hour)
	h.ticks(1)
	if h.eng.set.HydrationSilenced() {
		t.Fatal("silence should lift on day rollover")
	}
}

func TestScheduleRuleAutomation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.eng.Submit(Command{Cmd: CmdAddScheduleRule, Title: "Lunch", Time: "12:00", Action: "pause", Days: []string{"mon"}})
	h.eng.Submit(Command{Cmd: CmdStartSession})
	h.ticks(1)
	if len(h.eventsOfType(EventScheduleRuleAdded)) != 1 {
		t.Fatal("rule not added")
	}

	h.clock = time.Date(2026, 8, 24, 11, 59, 0, 0, time.Local).Add(-time.Second)
	h.ticks(1)
	warning := h.lastEvent(t, EventScheduleWarning)
	if warning["seconds_remaining"].(int) != 60 {
		t.Fatalf("unexpected warning: %v", warning)
	}

	h.clock = time.Date(2026, 8, 24, 12, 0, 0, 0, time.Local).Add(-time.Second)
	h.ticks(1)
	executed := h.lastEvent(t, EventScheduleActionExecuted)
	if executed["action"] != "pause" {
		t.Fatalf("unexpected action: %v", executed["action"])
	}
	if h.eng.session.State() != session.StatePaused {
		t.Fatalf("expected paused session, got %s", h.eng.session.State())
	}
}

func TestUpdateSettingReloadsTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.eng.Submit(Command{Cmd: CmdStartSession})
	h.ticks(5)
	if got := h.eng.set.Elapsed(breaks.KindMicro); got != 5 {
		t.Fatalf("expected 5s elapsed, got %d", got)
	}

	value := "600"
	h.eng.Submit(Command{Cmd: CmdUpdateSetting, Key: "micro_break_interval", Value: &value})
	h.ticks(1)

	updated := h.lastEvent(t, EventSettingUpdated)
	if updated["key"] != "micro_break_interval" {
		t.Fatalf("unexpected update event: %v", updated)
	}
	status := h.eng.set.Status()["micro"]
	if status.IntervalSeconds != 600 {
		t.Fatalf("interval not reloaded: %+v", status)
	}
	// Elapsed was zeroed by the reload; only the post-drain advance remains.
	if status.ElapsedSeconds > 1 {
		t.Fatalf("elapsed not reset on reload: %+v", status)
	}
}

func TestUpdateSettingRejectsInvalid(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	for _, cmd := range []Command{
		{Cmd: CmdUpdateSetting, Key: "no_such_setting", Value: strPtr("1")},
		{Cmd: CmdUpdateSetting, Key: "session_state", Value: strPtr("active")},
		{Cmd: CmdUpdateSetting, Key: "micro_break_interval", Value: strPtr("-5")},
		{Cmd: CmdUpdateSetting, Key: "timer_mode", Value: strPtr("sideways")},
		{Cmd: CmdUpdateSetting, Key: "blocklist_processes", Value: strPtr("not json")},
	} {
		h.eng.Submit(cmd)
	}
	h.ticks(1)

	if got := len(h.eventsOfType(EventError)); got != 5 {
		t.Fatalf("expected 5 rejections, got %d", got)
	}
	if got := len(h.eventsOfType(EventSettingUpdated)); got != 0 {
		t.Fatalf("invalid setting was applied: %d", got)
	}
}

func TestCheckpointRestoresElapsed(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.eng.Submit(Command{Cmd: CmdStartSession})
	h.ticks(7)
	h.eng.checkpoint(h.clock)

	restored, err := New(testConfig(), h.db, platform.NewNoop(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("restore engine: %v", err)
	}
	if got := restored.set.Elapsed(breaks.KindMicro); got != 7 {
		t.Fatalf("expected restored elapsed 7, got %d", got)
	}
	if restored.session.State() != session.StateActive {
		t.Fatalf("expected restored active session, got %s", restored.session.State())
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.eng.Submit(Command{Cmd: "dance"})
	h.ticks(1)
	if len(h.eventsOfType(EventError)) != 1 {
		t.Fatal("expected an error event for an unknown command")
	}
}

func TestPauseRemindersFreezesTimers(t *testing.T) {
	t.Parallel()
	h := newHarness(t, shortMicroInterval)

	h.eng.Submit(Command{Cmd: CmdStartSession})
	h.eng.Submit(Command{Cmd: CmdPauseReminders})
	h.ticks(30)
	if evs := h.eventsOfType(EventBreakDue); len(evs) != 0 {
		t.Fatalf("break fired while reminders paused: %+v", evs)
	}
	if got := h.eng.set.Elapsed(breaks.KindMicro); got != 0 {
		t.Fatalf("timers advanced while reminders paused: %d", got)
	}

	h.eng.Submit(Command{Cmd: CmdResumeReminders})
	h.ticks(10)
	if evs := h.eventsOfType(EventBreakDue); len(evs) != 1 {
		t.Fatalf("expected one break after resume, got %d", len(evs))
	}
}

func strPtr(s string) *string { return &s }
