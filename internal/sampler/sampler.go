package sampler

import (
	"math"
	"strings"
	"sync"
	"time"

	"aura/wellness-agent/internal/platform"

	"go.uber.org/zap"
)

// State represents the derived user activity state.
type State string

const (
	StateActive    State = "active"
	StateIdle      State = "idle"
	StateImmersive State = "immersive"
)

// Snapshot is a point-in-time view of user activity. It is recomputed on
// every tick and never persisted as-is.
type Snapshot struct {
	MouseVelocity float64 `json:"mouse_velocity"`
	KeysPerMinute int     `json:"keys_per_min"`
	ActiveSeconds int     `json:"active_time_seconds"`
	IdleSeconds   int     `json:"idle_time_seconds"`
	State         State   `json:"state"`
	ForegroundApp string  `json:"active_process"`
	IsFullscreen  bool    `json:"is_fullscreen"`
}

// Config holds the sampler thresholds. Window and IdleZeroThreshold come from
// process config; IdleThreshold, AutoDetectFullscreen and Blocklist track
// settings and can change at runtime.
type Config struct {
	Window               time.Duration
	IdleZeroThreshold    time.Duration
	IdleThreshold        time.Duration
	AutoDetectFullscreen bool
	Blocklist            []string
}

type distanceSample struct {
	at time.Time
	px float64
}

// Sampler converts raw input events into rolling-window activity metrics.
// Input events arrive from the platform callback thread; Sample is called
// from the engine tick loop. The mutex is the only shared-state handoff.
type Sampler struct {
	platform platform.Platform
	logger   *zap.Logger
	now      func() time.Time

	mu                   sync.Mutex
	window               time.Duration
	idleZeroThreshold    time.Duration
	idleThreshold        time.Duration
	autoDetectFullscreen bool
	blocklist            map[string]struct{}

	mouseDistances []distanceSample
	keyTimes       []time.Time
	lastInput      time.Time
	lastX, lastY   int
	havePos        bool

	activeSeconds int
	lastSample    time.Time
	state         State
}

// Significant mouse movements must exceed this distance in pixels; smaller
// deltas are micro-jitter and must not keep the activity timer alive.
const significantMoveDistance = 5.0

func New(p platform.Platform, cfg Config, logger *zap.Logger) *Sampler {
	s := &Sampler{
		platform:             p,
		logger:               logger,
		now:                  time.Now,
		window:               cfg.Window,
		idleZeroThreshold:    cfg.IdleZeroThreshold,
		idleThreshold:        cfg.IdleThreshold,
		autoDetectFullscreen: cfg.AutoDetectFullscreen,
		blocklist:            make(map[string]struct{}),
		state:                StateIdle,
	}
	s.setBlocklistLocked(cfg.Blocklist)
	now := s.now()
	s.lastInput = now
	s.lastSample = now
	return s
}

// Start begins receiving input events from the platform.
func (s *Sampler) Start() error {
	if err := s.platform.StartInputMonitoring(s.HandleInput); err != nil {
		return err
	}
	s.logger.Info("Activity sampler started",
		zap.Duration("window", s.window),
		zap.Duration("idle_threshold", s.idleThreshold),
	)
	return nil
}

// Stop stops receiving input events.
func (s *Sampler) Stop() {
	if err := s.platform.StopInputMonitoring(); err != nil {
		s.logger.Warn("Failed to stop input monitoring", zap.Error(err))
	}
	s.logger.Info("Activity sampler stopped")
}

// HandleInput records a raw input event. Safe to call from any goroutine.
func (s *Sampler) HandleInput(ev platform.InputEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := ev.Timestamp
	if now.IsZero() {
		now = s.now()
	}

	switch ev.Type {
	case platform.InputMouseMove:
		if s.havePos {
			dx := float64(ev.X - s.lastX)
			dy := float64(ev.Y - s.lastY)
			distance := dx*dx + dy*dy
			if distance > significantMoveDistance*significantMoveDistance {
				s.mouseDistances = append(s.mouseDistances, distanceSample{at: now, px: math.Sqrt(distance)})
				s.lastInput = now
			}
		}
		s.lastX, s.lastY = ev.X, ev.Y
		s.havePos = true
	case platform.InputMouseClick, platform.InputMouseScroll:
		s.lastInput = now
	case platform.InputKeyPress:
		s.keyTimes = append(s.keyTimes, now)
		s.lastInput = now
	}
	s.pruneLocked(now.Add(-s.window))
}

// Sample computes a fresh activity snapshot. Called once per tick.
func (s *Sampler) Sample() Snapshot {
	window := s.foregroundWindow()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now.Add(-s.window))

	sinceInput := now.Sub(s.lastInput)

	var velocity float64
	var keysPerMinute int
	if sinceInput > s.idleZeroThreshold {
		// Force zero: a user who is not interacting must never show a
		// decaying rolling average. Stale buffer entries are dropped too.
		s.pruneLocked(now.Add(-s.idleZeroThreshold))
	} else {
		windowSeconds := s.window.Seconds()
		var total float64
		for _, d := range s.mouseDistances {
			total += d.px
		}
		velocity = total / windowSeconds
		keysPerMinute = int(float64(len(s.keyTimes)) * 60.0 / windowSeconds)
	}

	idleSeconds := int(sinceInput.Seconds())

	state := StateActive
	switch {
	case s.isImmersiveLocked(window):
		state = StateImmersive
	case sinceInput >= s.idleThreshold:
		state = StateIdle
	}

	if s.state == StateActive {
		s.activeSeconds += int(now.Sub(s.lastSample).Seconds())
	}
	s.lastSample = now

	if state != s.state {
		s.logger.Info("Activity state changed",
			zap.String("old_state", string(s.state)),
			zap.String("new_state", string(state)),
		)
		s.state = state
	}

	snapshot := Snapshot{
		MouseVelocity: velocity,
		KeysPerMinute: keysPerMinute,
		ActiveSeconds: s.activeSeconds,
		IdleSeconds:   idleSeconds,
		State:         state,
	}
	if window != nil {
		snapshot.ForegroundApp = window.Application
		snapshot.IsFullscreen = window.IsFullscreen
	}
	return snapshot
}

// foregroundWindow polls the OS; failures degrade to an empty window rather
// than aborting the tick.
func (s *Sampler) foregroundWindow() *platform.WindowInfo {
	window, err := s.platform.GetForegroundWindow()
	if err != nil {
		s.logger.Debug("Failed to get foreground window", zap.Error(err))
		return &platform.WindowInfo{}
	}
	return window
}

func (s *Sampler) isImmersiveLocked(window *platform.WindowInfo) bool {
	if window == nil {
		return false
	}
	if s.autoDetectFullscreen && window.IsFullscreen {
		return true
	}
	if window.Application == "" {
		return false
	}
	_, blocked := s.blocklist[normalizeProcess(window.Application)]
	return blocked
}

// normalizeProcess lowercases and strips the .exe suffix so blocklist entries
// match whether or not they carry the extension.
func normalizeProcess(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".exe")
}

func (s *Sampler) pruneLocked(cutoff time.Time) {
	keep := s.mouseDistances[:0]
	for _, d := range s.mouseDistances {
		if !d.at.Before(cutoff) {
			keep = append(keep, d)
		}
	}
	s.mouseDistances = keep

	keepKeys := s.keyTimes[:0]
	for _, t := range s.keyTimes {
		if !t.Before(cutoff) {
			keepKeys = append(keepKeys, t)
		}
	}
	s.keyTimes = keepKeys
}

// ResetActiveSeconds clears the cumulative active time counter.
func (s *Sampler) ResetActiveSeconds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSeconds = 0
}

// SetIdleThreshold updates the idle threshold at runtime.
func (s *Sampler) SetIdleThreshold(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idleThreshold = d
}

// SetAutoDetectFullscreen toggles fullscreen-based immersive detection.
func (s *Sampler) SetAutoDetectFullscreen(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoDetectFullscreen = enabled
}

// SetBlocklist replaces the immersive-mode process blocklist.
func (s *Sampler) SetBlocklist(processes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setBlocklistLocked(processes)
}

func (s *Sampler) setBlocklistLocked(processes []string) {
	s.blocklist = make(map[string]struct{}, len(processes))
	for _, p := range processes {
		s.blocklist[normalizeProcess(p)] = struct{}{}
	}
}
