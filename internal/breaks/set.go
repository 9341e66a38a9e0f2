package breaks

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

// Timer is one countdown. All fields are guarded by the owning Set's mutex;
// only the scheduler tick and explicit reset/reload commands mutate it.
type Timer struct {
	Kind       Kind
	Interval   int // seconds between fires
	Duration   int // seconds the break lasts
	ThemeColor string
	Mode       Mode

	elapsed float64
	// logID is the break log row of a fired-but-unresolved or snoozed break.
	// A snoozed break keeps its row so the re-fire does not create a
	// duplicate entry.
	logID int64
}

// Remaining returns whole seconds until the timer is due. Floored so the
// countdown decrements monotonically instead of oscillating.
func (t *Timer) Remaining() int {
	r := float64(t.Interval) - t.elapsed
	if r < 0 {
		return 0
	}
	return int(math.Floor(r))
}

// Progress returns elapsed/interval clamped to [0, 1].
func (t *Timer) Progress() float64 {
	if t.Interval <= 0 {
		return 0
	}
	return math.Min(1.0, t.elapsed/float64(t.Interval))
}

// Gate is the per-tick input that decides whether timers advance.
type Gate struct {
	SessionActive   bool
	RemindersPaused bool
	UserIdle        bool
	Immersive       bool
}

// Firing describes a break that just became due. ExistingLogID is nonzero
// when a snoozed break re-fires and its original log row should be reused.
type Firing struct {
	Kind          Kind
	Duration      int
	ThemeColor    string
	ExistingLogID int64
}

// Resolution identifies the break log row affected by complete/snooze/skip.
type Resolution struct {
	Kind  Kind
	LogID int64
}

// Set owns the three break timers and the at-most-one-pending lock: once a
// break fires, no timer fires again until the pending break is resolved via
// Complete, Snooze or Skip. Non-pending timers keep accumulating meanwhile.
type Set struct {
	mu     sync.Mutex
	logger *zap.Logger

	timers            [3]*Timer
	pending           *Timer
	hydrationSilenced bool
}

// Default configurations, overridden from settings at startup.
const (
	DefaultMicroInterval     = 1200
	DefaultMicroDuration     = 20
	DefaultMacroInterval     = 2700
	DefaultMacroDuration     = 180
	DefaultHydrationInterval = 1800
	DefaultHydrationDuration = 0

	MicroThemeColor     = "#10B981"
	MacroThemeColor     = "#F59E0B"
	HydrationThemeColor = "#3B82F6"
)

func NewSet(logger *zap.Logger) *Set {
	s := &Set{logger: logger}
	s.timers[KindMicro] = &Timer{Kind: KindMicro, Interval: DefaultMicroInterval,
		Duration: DefaultMicroDuration, ThemeColor: MicroThemeColor, Mode: ModeWallClock}
	s.timers[KindMacro] = &Timer{Kind: KindMacro, Interval: DefaultMacroInterval,
		Duration: DefaultMacroDuration, ThemeColor: MacroThemeColor, Mode: ModeWallClock}
	s.timers[KindHydration] = &Timer{Kind: KindHydration, Interval: DefaultHydrationInterval,
		Duration: DefaultHydrationDuration, ThemeColor: HydrationThemeColor, Mode: ModeWallClock}
	return s
}

// Advance accumulates delta seconds into each timer according to its mode and
// returns at most one firing. Returns nil while a break is pending.
func (s *Set) Advance(delta float64, gate Gate) *Firing {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !gate.SessionActive || gate.RemindersPaused {
		return nil
	}

	for _, t := range s.timers {
		if t.Kind == KindHydration && s.hydrationSilenced {
			t.elapsed = 0
			continue
		}
		switch t.Mode {
		case ModeWallClock:
			t.elapsed += delta
		case ModeActive:
			if !gate.UserIdle && !gate.Immersive {
				t.elapsed += delta
			}
		}
	}

	if s.pending != nil {
		return nil
	}

	for _, kind := range Kinds {
		t := s.timers[kind]
		if t.elapsed < float64(t.Interval) {
			continue
		}
		if kind == KindHydration && s.hydrationSilenced {
			continue
		}
		// Active-time timers hold their fire during immersive mode; the
		// break pops as soon as the user leaves the fullscreen app.
		if t.Mode == ModeActive && gate.Immersive {
			continue
		}

		s.pending = t
		s.logger.Info("Break due",
			zap.String("break_type", kind.String()),
			zap.Int("interval_seconds", t.Interval),
		)
		return &Firing{
			Kind:          kind,
			Duration:      t.Duration,
			ThemeColor:    t.ThemeColor,
			ExistingLogID: t.logID,
		}
	}
	return nil
}

// AttachLog records the break log row created for the pending break.
func (s *Set) AttachLog(logID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.logID = logID
	}
}

// Pending returns the kind of the fired-but-unresolved break, if any.
func (s *Set) Pending() (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return 0, false
	}
	return s.pending.Kind, true
}

// Complete resolves the pending break and resets its timer. Completing a
// macro break also resets the micro timer, since a long stretch covers the
// eye rest too.
func (s *Set) Complete() (Resolution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return Resolution{}, false
	}
	res := Resolution{Kind: s.pending.Kind, LogID: s.pending.logID}

	s.pending.elapsed = 0
	s.pending.logID = 0
	if s.pending.Kind == KindMacro {
		s.timers[KindMicro].elapsed = 0
	}
	s.pending = nil
	return res, true
}

// Snooze re-arms the pending break to fire again in the given number of
// minutes. The log row stays attached to the timer so the re-fire reuses it.
func (s *Set) Snooze(minutes int) (Resolution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return Resolution{}, false
	}
	res := Resolution{Kind: s.pending.Kind, LogID: s.pending.logID}

	elapsed := float64(s.pending.Interval - minutes*60)
	if elapsed < 0 {
		elapsed = 0
	}
	s.pending.elapsed = elapsed
	s.pending = nil
	return res, true
}

// Skip resolves the pending break without credit and resets its timer.
func (s *Set) Skip() (Resolution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return Resolution{}, false
	}
	res := Resolution{Kind: s.pending.Kind, LogID: s.pending.logID}

	s.pending.elapsed = 0
	s.pending.logID = 0
	s.pending = nil
	return res, true
}

// Reset zeroes one timer's elapsed counter.
func (s *Set) Reset(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(s.timers[kind])
}

// ResetAll zeroes every timer and clears any pending break.
func (s *Set) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.elapsed = 0
		t.logID = 0
	}
	s.pending = nil
}

func (s *Set) resetLocked(t *Timer) {
	t.elapsed = 0
	t.logID = 0
	if s.pending == t {
		s.pending = nil
	}
}

// ReloadAndReset applies a new interval and duration and zeroes the elapsed
// counter in one critical section, so no tick can observe the new interval
// with stale elapsed time.
func (s *Set) ReloadAndReset(kind Kind, interval, duration int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.timers[kind]
	t.Interval = interval
	t.Duration = duration
	s.resetLocked(t)

	s.logger.Info("Break timer reloaded",
		zap.String("break_type", kind.String()),
		zap.Int("interval_seconds", interval),
		zap.Int("duration_seconds", duration),
	)
}

// SetMode switches the clock basis for every timer.
func (s *Set) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Mode = mode
	}
}

// Mode returns the clock basis of the given timer.
func (s *Set) Mode(kind Kind) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[kind].Mode
}

// SilenceHydration suppresses the hydration timer for the rest of the day
// once the intake goal is met; the timer is held at zero while silenced.
func (s *Set) SilenceHydration(silenced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if silenced && !s.hydrationSilenced {
		s.resetLocked(s.timers[KindHydration])
	}
	s.hydrationSilenced = silenced
}

// HydrationSilenced reports the auto-silence state.
func (s *Set) HydrationSilenced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrationSilenced
}

// Elapsed returns a timer's accumulated seconds, floored.
func (s *Set) Elapsed(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(math.Floor(s.timers[kind].elapsed))
}

// RestoreElapsed seeds a timer's counter, used when resuming from a
// checkpoint after restart.
func (s *Set) RestoreElapsed(kind Kind, seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[kind].elapsed = float64(seconds)
}

// TimerStatus is the externally visible state of one timer.
type TimerStatus struct {
	IntervalSeconds  int     `json:"interval_seconds"`
	DurationSeconds  int     `json:"duration_seconds"`
	ElapsedSeconds   int     `json:"elapsed_seconds"`
	RemainingSeconds int     `json:"remaining_seconds"`
	Progress         float64 `json:"progress"`
	ThemeColor       string  `json:"theme_color"`
}

// Status returns the state of every timer keyed by kind name.
func (s *Set) Status() map[string]TimerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[string]TimerStatus, len(s.timers))
	for _, t := range s.timers {
		status[t.Kind.String()] = TimerStatus{
			IntervalSeconds:  t.Interval,
			DurationSeconds:  t.Duration,
			ElapsedSeconds:   int(math.Floor(t.elapsed)),
			RemainingSeconds: t.Remaining(),
			Progress:         t.Progress(),
			ThemeColor:       t.ThemeColor,
		}
	}
	return status
}

// NextBreak describes the soonest upcoming break.
type NextBreak struct {
	Type             string `json:"type"`
	RemainingSeconds int    `json:"remaining_seconds"`
	DurationSeconds  int    `json:"duration_seconds"`
	ThemeColor       string `json:"theme_color"`
	TimerMode        string `json:"timer_mode"`
}

// Next returns the timer with the least remaining time. The silenced
// hydration timer is excluded.
func (s *Set) Next() NextBreak {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *Timer
	minRemaining := math.MaxFloat64
	for _, t := range s.timers {
		if t.Kind == KindHydration && s.hydrationSilenced {
			continue
		}
		remaining := float64(t.Interval) - t.elapsed
		if remaining < minRemaining {
			minRemaining = remaining
			next = t
		}
	}
	if next == nil {
		return NextBreak{}
	}
	if minRemaining < 0 {
		minRemaining = 0
	}
	return NextBreak{
		Type:             next.Kind.String(),
		RemainingSeconds: int(math.Floor(minRemaining)),
		DurationSeconds:  next.Duration,
		ThemeColor:       next.ThemeColor,
		TimerMode:        string(next.Mode),
	}
}
