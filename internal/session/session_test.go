package session

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStore struct {
	values   map[string]string
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (f *fakeStore) Set(key, value string) error {
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	f.values[key] = value
	return nil
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	m := NewMachine(store, zap.NewNop())

	fresh, err := m.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !fresh {
		t.Fatal("starting from idle should be a fresh session")
	}
	if store.values["session_state"] != "active" {
		t.Fatalf("state not persisted: %v", store.values)
	}

	if err := m.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if m.State() != StatePaused {
		t.Fatalf("expected paused, got %s", m.State())
	}

	fresh, err = m.Start()
	if err != nil {
		t.Fatalf("start from paused: %v", err)
	}
	if fresh {
		t.Fatal("resuming a paused session must not be fresh")
	}

	if err := m.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if m.State() != StateIdle || store.values["session_state"] != "idle" {
		t.Fatalf("expected idle, got %s / %v", m.State(), store.values)
	}
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	t.Parallel()
	m := NewMachine(newFakeStore(), zap.NewNop())

	if err := m.Pause(); err != nil {
		t.Fatalf("pause from idle: %v", err)
	}
	if m.State() != StateIdle {
		t.Fatalf("pause from idle changed state to %s", m.State())
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("resume from idle: %v", err)
	}
	if m.State() != StateIdle {
		t.Fatalf("resume from idle changed state to %s", m.State())
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	m := NewMachine(store, zap.NewNop())

	store.failNext = true
	if _, err := m.Start(); err == nil {
		t.Fatal("expected start to fail when persistence fails")
	}
	if m.State() != StateIdle {
		t.Fatalf("failed transition left state %s", m.State())
	}

	if _, err := m.Start(); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if m.State() != StateActive {
		t.Fatalf("expected active after retry, got %s", m.State())
	}
}

func TestReminderPause(t *testing.T) {
	t.Parallel()
	m := NewMachine(newFakeStore(), zap.NewNop())
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	minutes := 10
	m.PauseReminders(&minutes, now)
	if !m.RemindersPaused(now) {
		t.Fatal("expected reminders paused")
	}
	if !m.RemindersPaused(now.Add(9 * time.Minute)) {
		t.Fatal("pause expired early")
	}
	if m.RemindersPaused(now.Add(11 * time.Minute)) {
		t.Fatal("timed pause did not expire")
	}
	// The expired pause clears itself.
	if m.PauseUntil() != nil {
		t.Fatal("expired pause deadline not cleared")
	}
}

func TestIndefiniteReminderPause(t *testing.T) {
	t.Parallel()
	m := NewMachine(newFakeStore(), zap.NewNop())
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	m.PauseReminders(nil, now)
	if !m.RemindersPaused(now.Add(24 * time.Hour)) {
		t.Fatal("indefinite pause expired")
	}
	if m.PauseUntil() != nil {
		t.Fatal("indefinite pause should have no deadline")
	}
	m.ResumeReminders()
	if m.RemindersPaused(now) {
		t.Fatal("resume did not lift the pause")
	}
}
