package breaks

import (
	"testing"

	"go.uber.org/zap"
)

func activeGate() Gate {
	return Gate{SessionActive: true}
}

func newTestSet() *Set {
	s := NewSet(zap.NewNop())
	s.ReloadAndReset(KindMicro, 10, 5)
	s.ReloadAndReset(KindMacro, 1000, 60)
	s.ReloadAndReset(KindHydration, 1000, 0)
	return s
}

func TestAdvanceAccumulatesAndFires(t *testing.T) {
	t.Parallel()
	s := newTestSet()

	if firing := s.Advance(9, activeGate()); firing != nil {
		t.Fatalf("fired at 9s of a 10s interval: %+v", firing)
	}
	firing := s.Advance(1, activeGate())
	if firing == nil {
		t.Fatal("expected micro break to fire at 10s")
	}
	if firing.Kind != KindMicro {
		t.Fatalf("expected micro, got %s", firing.Kind)
	}
	if firing.Duration != 5 {
		t.Fatalf("expected duration 5, got %d", firing.Duration)
	}
}

func TestNoAdvanceOutsideActiveSession(t *testing.T) {
	t.Parallel()
	s := newTestSet()

	s.Advance(100, Gate{SessionActive: false})
	if got := s.Elapsed(KindMicro); got != 0 {
		t.Fatalf("timer advanced outside session: %d", got)
	}
	s.Advance(100, Gate{SessionActive: true, RemindersPaused: true})
	if got := s.Elapsed(KindMicro); got != 0 {
		t.Fatalf("timer advanced while reminders paused: %d", got)
	}
}

func TestActiveModeSkipsIdleAndImmersive(t *testing.T) {
	t.Parallel()
	s := newTestSet()
	s.SetMode(ModeActive)

	s.Advance(5, Gate{SessionActive: true, UserIdle: true})
	s.Advance(5, Gate{SessionActive: true, Immersive: true})
	if got := s.Elapsed(KindMicro); got != 0 {
		t.Fatalf("active-time timer advanced during idle/immersive: %d", got)
	}
	s.Advance(5, activeGate())
	if got := s.Elapsed(KindMicro); got != 5 {
		t.Fatalf("expected 5s elapsed, got %d", got)
	}
}

func TestWallClockAdvancesDuringIdle(t *testing.T) {
	t.Parallel()
	s := newTestSet()

	if firing := s.Advance(10, Gate{SessionActive: true, UserIdle: true}); firing == nil {
		t.Fatal("wall-clock timer should fire even while idle")
	}
}

func TestMacroOutranksMicro(t *testing.T) {
	t.Parallel()
	s := newTestSet()
	s.ReloadAndReset(KindMacro, 10, 60)

	firing := s.Advance(10, activeGate())
	if firing == nil || firing.Kind != KindMacro {
		t.Fatalf("expected macro to outrank micro, got %+v", firing)
	}
}

func TestAtMostOnePendingBreak(t *testing.T) {
	t.Parallel()
	s := newTestSet()

	if firing := s.Advance(10, activeGate()); firing == nil {
		t.Fatal("expected micro to fire")
	}
	// Other timers keep accumulating but nothing fires while one is pending.
	if firing := s.Advance(2000, activeGate()); firing != nil {
		t.Fatalf("second break fired while pending: %+v", firing)
	}
	if _, ok := s.Complete(); !ok {
		t.Fatal("expected a pending break to complete")
	}
	firing := s.Advance(1, activeGate())
	if firing == nil || firing.Kind != KindMacro {
		t.Fatalf("expected accumulated macro to fire after resolution, got %+v", firing)
	}
}

func TestCompleteMacroResetsMicro(t *testing.T) {
	t.Parallel()
	s := newTestSet()
	s.ReloadAndReset(KindMacro, 10, 60)

	if firing := s.Advance(10, activeGate()); firing == nil || firing.Kind != KindMacro {
		t.Fatalf("expected macro firing, got %+v", firing)
	}
	if got := s.Elapsed(KindMicro); got != 10 {
		t.Fatalf("expected micro at 10s before completion, got %d", got)
	}
	s.Complete()
	if got := s.Elapsed(KindMicro); got != 0 {
		t.Fatalf("macro completion should reset micro, got %d", got)
	}
}

func TestSnoozeRearmsAndReusesLog(t *testing.T) {
	t.Parallel()
	s := newTestSet()
	s.ReloadAndReset(KindMicro, 600, 20)

	if firing := s.Advance(600, activeGate()); firing == nil {
		t.Fatal("expected micro to fire")
	}
	s.AttachLog(42)

	res, ok := s.Snooze(5)
	if !ok || res.LogID != 42 {
		t.Fatalf("expected snooze resolution for log 42, got %+v ok=%v", res, ok)
	}
	if got := s.Elapsed(KindMicro); got != 300 {
		t.Fatalf("expected 300s elapsed after 5m snooze of 600s interval, got %d", got)
	}

	firing := s.Advance(300, activeGate())
	if firing == nil {
		t.Fatal("expected snoozed break to re-fire")
	}
	if firing.ExistingLogID != 42 {
		t.Fatalf("re-fire should reuse log row 42, got %d", firing.ExistingLogID)
	}
}

func TestSnoozeLongerThanIntervalClampsToZero(t *testing.T) {
	t.Parallel()
	s := newTestSet()

	s.Advance(10, activeGate())
	if _, ok := s.Snooze(60); !ok {
		t.Fatal("expected snooze to resolve")
	}
	if got := s.Elapsed(KindMicro); got != 0 {
		t.Fatalf("expected elapsed clamped to 0, got %d", got)
	}
}

func TestReloadAndResetClearsPending(t *testing.T) {
	t.Parallel()
	s := newTestSet()

	if firing := s.Advance(10, activeGate()); firing == nil {
		t.Fatal("expected micro to fire")
	}
	s.ReloadAndReset(KindMicro, 20, 5)
	if _, pending := s.Pending(); pending {
		t.Fatal("reload should clear the pending break")
	}
	if firing := s.Advance(10, activeGate()); firing != nil {
		t.Fatalf("reloaded timer fired early: %+v", firing)
	}
	if firing := s.Advance(10, activeGate()); firing == nil {
		t.Fatal("expected fire at the new interval")
	}
}

func TestImmersiveHoldsActiveModeFire(t *testing.T) {
	t.Parallel()
	s := newTestSet()
	s.SetMode(ModeActive)
	s.RestoreElapsed(KindMicro, 15)

	if firing := s.Advance(1, Gate{SessionActive: true, Immersive: true}); firing != nil {
		t.Fatalf("due break fired during immersive mode: %+v", firing)
	}
	if firing := s.Advance(1, activeGate()); firing == nil {
		t.Fatal("expected break to fire once immersive mode ended")
	}
}

func TestHydrationSilence(t *testing.T) {
	t.Parallel()
	s := NewSet(zap.NewNop())
	s.ReloadAndReset(KindMicro, 1000, 5)
	s.ReloadAndReset(KindMacro, 1000, 60)
	s.ReloadAndReset(KindHydration, 10, 0)

	s.SilenceHydration(true)
	if firing := s.Advance(20, activeGate()); firing != nil {
		t.Fatalf("silenced hydration fired: %+v", firing)
	}
	if got := s.Elapsed(KindHydration); got != 0 {
		t.Fatalf("silenced hydration should hold at zero, got %d", got)
	}
	if next := s.Next(); next.Type == KindHydration.String() {
		t.Fatal("silenced hydration should not be the next break")
	}

	s.SilenceHydration(false)
	if firing := s.Advance(10, activeGate()); firing == nil || firing.Kind != KindHydration {
		t.Fatalf("expected hydration to fire after silence lifted, got %+v", firing)
	}
}

func TestStatusAndNext(t *testing.T) {
	t.Parallel()
	s := newTestSet()
	s.Advance(4, activeGate())

	status := s.Status()
	micro, ok := status["micro"]
	if !ok {
		t.Fatal("status missing micro timer")
	}
	if micro.ElapsedSeconds != 4 || micro.RemainingSeconds != 6 {
		t.Fatalf("unexpected micro status: %+v", micro)
	}

	next := s.Next()
	if next.Type != "micro" || next.RemainingSeconds != 6 {
		t.Fatalf("unexpected next break: %+v", next)
	}
}
