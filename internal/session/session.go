package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the work-session state.
type State string

const (
	StateIdle   State = "idle"   // not tracking, waiting to start
	StateActive State = "active" // timers counting
	StatePaused State = "paused" // timers frozen, can resume
)

// ParseState converts a persisted value to a State.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateIdle, StateActive, StatePaused:
		return State(s), nil
	}
	return "", fmt.Errorf("unknown session state %q", s)
}

// Store is the persistence hook for session transitions. Every transition is
// written through it before the triggering command is acknowledged.
type Store interface {
	Set(key, value string) error
}

const stateKey = "session_state"

// Machine is the session state machine. All transitions are serialized by
// the mutex; a failed persist rolls the in-memory state back so disk and
// memory never disagree on an acknowledged transition.
type Machine struct {
	mu     sync.Mutex
	state  State
	store  Store
	logger *zap.Logger

	// pauseUntil suppresses reminder advancement without leaving the
	// active state. Nil means reminders are not paused; a zero time means
	// paused indefinitely.
	pauseUntil *time.Time
}

func NewMachine(store Store, logger *zap.Logger) *Machine {
	return &Machine{
		state:  StateIdle,
		store:  store,
		logger: logger,
	}
}

// Restore seeds the machine from a persisted state without writing back.
func (m *Machine) Restore(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// State returns the current session state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start transitions idle or paused to active. Starting from idle is a fresh
// session; the caller resets timers in that case.
func (m *Machine) Start() (freshStart bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateActive {
		return false, nil
	}
	fresh := m.state == StateIdle
	if err := m.transitionLocked(StateActive); err != nil {
		return false, err
	}
	return fresh, nil
}

// Pause transitions active to paused. A no-op in any other state.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		m.logger.Warn("Ignoring pause outside active session", zap.String("state", string(m.state)))
		return nil
	}
	return m.transitionLocked(StatePaused)
}

// Resume transitions paused to active. A no-op in any other state.
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaused {
		m.logger.Warn("Ignoring resume outside paused session", zap.String("state", string(m.state)))
		return nil
	}
	return m.transitionLocked(StateActive)
}

// End transitions active or paused to idle. The caller resets all break
// timers afterwards; a new day's session starts fresh.
func (m *Machine) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		return nil
	}
	return m.transitionLocked(StateIdle)
}

func (m *Machine) transitionLocked(next State) error {
	prev := m.state
	m.state = next
	if err := m.store.Set(stateKey, string(next)); err != nil {
		m.state = prev
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	m.logger.Info("Session state changed",
		zap.String("old_state", string(prev)),
		zap.String("new_state", string(next)),
	)
	return nil
}

// PauseReminders suppresses all break timer advancement without leaving the
// active state. minutes nil pauses indefinitely.
func (m *Machine) PauseReminders(minutes *int, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if minutes == nil {
		var forever time.Time
		m.pauseUntil = &forever
		m.logger.Info("Reminders paused indefinitely")
		return
	}
	until := now.Add(time.Duration(*minutes) * time.Minute)
	m.pauseUntil = &until
	m.logger.Info("Reminders paused", zap.Int("minutes", *minutes))
}

// ResumeReminders lifts a reminder pause.
func (m *Machine) ResumeReminders() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseUntil = nil
}

// RemindersPaused reports whether reminder advancement is currently
// suppressed. An expired timed pause clears itself.
func (m *Machine) RemindersPaused(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pauseUntil == nil {
		return false
	}
	if m.pauseUntil.IsZero() {
		return true
	}
	if now.Before(*m.pauseUntil) {
		return true
	}
	m.pauseUntil = nil
	return false
}

// PauseUntil returns the reminder pause deadline, if a timed pause is set.
func (m *Machine) PauseUntil() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pauseUntil == nil || m.pauseUntil.IsZero() {
		return nil
	}
	until := *m.pauseUntil
	return &until
}
