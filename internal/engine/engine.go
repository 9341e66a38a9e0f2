package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"aura/wellness-agent/internal/breaks"
	"aura/wellness-agent/internal/config"
	"aura/wellness-agent/internal/database"
	"aura/wellness-agent/internal/device"
	"aura/wellness-agent/internal/platform"
	"aura/wellness-agent/internal/sampler"
	"aura/wellness-agent/internal/schedule"
	"aura/wellness-agent/internal/session"
	"aura/wellness-agent/internal/store"

	"go.uber.org/zap"
)

// Version is reported in the ready event.
const Version = "0.2.0"

const (
	defaultSnoozeMinutes     = 5
	defaultHydrationAmountML = 250
	defaultStatsDays         = 7
	defaultExportPath        = "aura_export.csv"
	sampleRetentionDays      = 30
	periodicSampleInterval   = 60 * time.Second
	commandQueueSize         = 64
)

// Engine is the agent core: it owns the tick loop that drains commands,
// samples activity, advances break timers and evaluates schedule rules. All
// state mutation happens on the loop goroutine; Submit is the only inbound
// door.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	settings  *store.SettingsRepository
	breakLogs *store.BreakLogRepository
	hydration *store.HydrationRepository
	rules     *store.ScheduleRuleRepository
	samples   *store.ActivitySampleRepository
	exporter  *store.Exporter

	sampler  *sampler.Sampler
	session  *session.Machine
	set      *breaks.Set
	schedule *schedule.Engine

	agentID string
	sink    Sink
	now     func() time.Time

	commands chan Command
	stopChan chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup

	lastTick        time.Time
	lastCheckpoint  time.Time
	lastSampleAt    time.Time
	lastBreakAt     time.Time
	currentDay      string
	lastSnapshot    sampler.Snapshot
	pendingSampleID int64
}

// New wires the engine from persisted settings. The returned engine is fully
// restored (session state, timer intervals, checkpointed elapsed counters)
// but not yet running.
func New(cfg *config.Config, db *database.DB, plat platform.Platform, sink Sink, logger *zap.Logger) (*Engine, error) {
	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		settings:  store.NewSettingsRepository(db.DB),
		breakLogs: store.NewBreakLogRepository(db.DB),
		hydration: store.NewHydrationRepository(db.DB),
		rules:     store.NewScheduleRuleRepository(db.DB),
		samples:   store.NewActivitySampleRepository(db.DB),
		sink:      sink,
		now:       time.Now,
		commands:  make(chan Command, commandQueueSize),
		stopChan:  make(chan struct{}),
		quit:      make(chan struct{}),
	}
	e.exporter = store.NewExporter(e.breakLogs, e.hydration, e.samples)

	idleThreshold, err := e.settings.GetInt("idle_threshold", 180)
	if err != nil {
		return nil, err
	}
	autoDetect, err := e.settings.GetBool("auto_detect_fullscreen", true)
	if err != nil {
		return nil, err
	}
	blocklist, err := e.loadBlocklist()
	if err != nil {
		return nil, err
	}

	e.sampler = sampler.New(plat, sampler.Config{
		Window:               time.Duration(cfg.Engine.MetricsWindow) * time.Second,
		IdleZeroThreshold:    time.Duration(cfg.Engine.IdleZeroThreshold) * time.Second,
		IdleThreshold:        time.Duration(idleThreshold) * time.Second,
		AutoDetectFullscreen: autoDetect,
		Blocklist:            blocklist,
	}, logger)

	e.session = session.NewMachine(e.settings, logger)
	if err := e.restoreSession(); err != nil {
		return nil, err
	}

	e.set = breaks.NewSet(logger)
	if err := e.restoreTimers(); err != nil {
		return nil, err
	}

	e.schedule = schedule.NewEngine(e.rules, logger)

	agentID, err := device.NewManager(e.settings, logger).GetOrCreateAgentID()
	if err != nil {
		return nil, err
	}
	e.agentID = agentID

	now := e.now()
	e.currentDay = now.Format("2006-01-02")
	e.lastBreakAt = now
	if err := e.refreshHydrationSilence(now); err != nil {
		logger.Warn("Failed to compute hydration silence", zap.Error(err))
	}

	return e, nil
}

func (e *Engine) restoreSession() error {
	raw, err := e.settings.Get("session_state", string(session.StateIdle))
	if err != nil {
		return err
	}
	state, err := session.ParseState(raw)
	if err != nil {
		e.logger.Warn("Ignoring invalid persisted session state", zap.String("value", raw))
		state = session.StateIdle
	}
	e.session.Restore(state)
	return nil
}

func (e *Engine) restoreTimers() error {
	for _, kind := range breaks.Kinds {
		interval, duration, err := e.timerSettings(kind)
		if err != nil {
			return err
		}
		e.set.ReloadAndReset(kind, interval, duration)

		elapsed, err := e.settings.GetInt("break_elapsed_"+kind.String(), 0)
		if err != nil {
			return err
		}
		if elapsed > 0 {
			e.set.RestoreElapsed(kind, elapsed)
		}
	}

	raw, err := e.settings.Get("timer_mode", string(breaks.ModeWallClock))
	if err != nil {
		return err
	}
	mode, err := breaks.ParseMode(raw)
	if err != nil {
		e.logger.Warn("Ignoring invalid timer mode", zap.String("value", raw))
		mode = breaks.ModeWallClock
	}
	e.set.SetMode(mode)
	return nil
}

// timerSettings returns the configured interval and duration for a break
// timer, falling back to the built-in defaults.
func (e *Engine) timerSettings(kind breaks.Kind) (int, int, error) {
	var intervalKey, durationKey string
	var defInterval, defDuration int
	switch kind {
	case breaks.KindMicro:
		intervalKey, durationKey = "micro_break_interval", "micro_break_duration"
		defInterval, defDuration = breaks.DefaultMicroInterval, breaks.DefaultMicroDuration
	case breaks.KindMacro:
		intervalKey, durationKey = "macro_break_interval", "macro_break_duration"
		defInterval, defDuration = breaks.DefaultMacroInterval, breaks.DefaultMacroDuration
	case breaks.KindHydration:
		intervalKey, durationKey = "hydration_interval", "hydration_duration"
		defInterval, defDuration = breaks.DefaultHydrationInterval, breaks.DefaultHydrationDuration
	}

	interval, err := e.settings.GetInt(intervalKey, defInterval)
	if err != nil {
		return 0, 0, err
	}
	duration, err := e.settings.GetInt(durationKey, defDuration)
	if err != nil {
		return 0, 0, err
	}
	return interval, duration, nil
}

func (e *Engine) loadBlocklist() ([]string, error) {
	raw, err := e.settings.Get("blocklist_processes", "[]")
	if err != nil {
		return nil, err
	}
	var processes []string
	if err := json.Unmarshal([]byte(raw), &processes); err != nil {
		e.logger.Warn("Ignoring malformed blocklist setting", zap.Error(err))
		return nil, nil
	}
	return processes, nil
}

// Start begins input monitoring and the tick loop.
func (e *Engine) Start() error {
	if err := e.sampler.Start(); err != nil {
		return fmt.Errorf("failed to start activity sampler: %w", err)
	}

	now := e.now()
	if deleted, err := e.samples.CleanupUnlabeled(sampleRetentionDays, now); err != nil {
		e.logger.Warn("Failed to clean up old activity samples", zap.Error(err))
	} else if deleted > 0 {
		e.logger.Info("Cleaned up old activity samples", zap.Int64("deleted", deleted))
	}

	e.lastTick = now
	e.lastCheckpoint = now
	e.lastSampleAt = now

	e.emit(EventReady, map[string]any{
		"version":  Version,
		"agent_id": e.agentID,
	})
	e.broadcastStatus(now)

	e.wg.Add(1)
	go e.run()

	e.logger.Info("Engine started",
		zap.String("agent_id", e.agentID),
		zap.Int("tick_interval_seconds", e.cfg.Engine.TickInterval),
	)
	return nil
}

// Stop halts the tick loop, checkpoints timer counters and stops input
// monitoring.
func (e *Engine) Stop() {
	close(e.stopChan)
	e.wg.Wait()

	e.checkpoint(e.now())
	e.sampler.Stop()
	e.logger.Info("Engine stopped")
}

// Done is closed when a shutdown command has been acknowledged.
func (e *Engine) Done() <-chan struct{} {
	return e.quit
}

// Submit queues a command for the next tick. Safe to call from any goroutine.
func (e *Engine) Submit(cmd Command) {
	select {
	case e.commands <- cmd:
	case <-e.stopChan:
	}
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Duration(e.cfg.Engine.TickInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			now := e.now()
			delta := now.Sub(e.lastTick).Seconds()
			e.lastTick = now
			e.tick(now, delta)
		}
	}
}

// tick is one scheduler pass: drain commands, sample activity, advance break
// timers, evaluate schedule rules, emit metrics, checkpoint.
func (e *Engine) tick(now time.Time, delta float64) {
drain:
	for {
		select {
		case cmd := <-e.commands:
			e.handleCommand(cmd, now)
		default:
			break drain
		}
	}

	day := now.Format("2006-01-02")
	if day != e.currentDay {
		e.currentDay = day
		if err := e.refreshHydrationSilence(now); err != nil {
			e.logger.Warn("Failed to recompute hydration silence", zap.Error(err))
		}
	}

	snap := e.sampler.Sample()
	e.lastSnapshot = snap

	gate := breaks.Gate{
		SessionActive:   e.session.State() == session.StateActive,
		RemindersPaused: e.session.RemindersPaused(now),
		UserIdle:        snap.State == sampler.StateIdle,
		Immersive:       snap.State == sampler.StateImmersive,
	}
	if firing := e.set.Advance(delta, gate); firing != nil {
		e.handleFiring(firing, snap, now)
	}

	firings, warnings, err := e.schedule.Evaluate(now)
	if err != nil {
		e.logger.Error("Schedule evaluation failed", zap.Error(err))
	}
	for _, w := range warnings {
		e.emit(EventScheduleWarning, map[string]any{
			"title":             w.Title,
			"time":              w.Time,
			"action":            string(w.Action),
			"seconds_remaining": w.SecondsRemaining,
		})
	}
	for _, f := range firings {
		e.applyScheduleAction(f, now)
	}

	if gate.SessionActive && snap.State == sampler.StateActive &&
		now.Sub(e.lastSampleAt) >= periodicSampleInterval {
		e.lastSampleAt = now
		if _, err := e.samples.Record(e.sampleFrom(snap, now), now); err != nil {
			e.logger.Warn("Failed to record activity sample", zap.Error(err))
		}
	}

	e.emit(EventMetrics, metricsPayload{
		Snapshot:           snap,
		TimeSinceLastBreak: int(now.Sub(e.lastBreakAt).Seconds()),
		NextBreak:          e.set.Next(),
	})

	if now.Sub(e.lastCheckpoint) >= time.Duration(e.cfg.Engine.CheckpointInterval)*time.Second {
		e.lastCheckpoint = now
		e.checkpoint(now)
	}
}

func (e *Engine) handleFiring(firing *breaks.Firing, snap sampler.Snapshot, now time.Time) {
	logID := firing.ExistingLogID
	if logID == 0 {
		id, err := e.breakLogs.Create(firing.Kind.String(), firing.Duration, now)
		if err != nil {
			e.logger.Error("Failed to create break log", zap.Error(err))
		} else {
			logID = id
			e.set.AttachLog(id)
		}

		sampleID, err := e.samples.Record(e.sampleFrom(snap, now), now)
		if err != nil {
			e.logger.Warn("Failed to record break-fire sample", zap.Error(err))
		} else {
			e.pendingSampleID = sampleID
		}
	}

	e.emit(EventBreakDue, map[string]any{
		"break_type":       firing.Kind.String(),
		"duration_seconds": firing.Duration,
		"theme_color":      firing.ThemeColor,
		"record_id":        logID,
	})
}

func (e *Engine) sampleFrom(snap sampler.Snapshot, now time.Time) store.ActivitySample {
	return store.ActivitySample{
		MouseVelocity:      snap.MouseVelocity,
		KeysPerMinute:      snap.KeysPerMinute,
		ActiveProcess:      snap.ForegroundApp,
		TimeSinceLastBreak: int(now.Sub(e.lastBreakAt).Seconds()),
		IsFullscreen:       snap.IsFullscreen,
	}
}

func (e *Engine) applyScheduleAction(f schedule.Firing, now time.Time) {
	switch f.Action {
	case schedule.ActionPause:
		e.pauseSession()
	case schedule.ActionResume:
		e.resumeSession()
	case schedule.ActionReset:
		e.resetAllTimers(now)
	case schedule.ActionStartSession:
		e.startSession(now)
	case schedule.ActionEndSession:
		e.endSession(now)
	default:
		e.logger.Warn("Ignoring unknown schedule action", zap.String("action", string(f.Action)))
		return
	}

	e.emit(EventScheduleActionExecuted, map[string]any{
		"rule_id": f.RuleID,
		"title":   f.Title,
		"time":    f.Time,
		"action":  string(f.Action),
	})
}

func (e *Engine) handleCommand(cmd Command, now time.Time) {
	switch cmd.Cmd {
	case CmdStartSession:
		e.startSession(now)
	case CmdPauseSession:
		e.pauseSession()
	case CmdResumeSession:
		e.resumeSession()
	case CmdEndSession:
		e.endSession(now)
	case CmdPauseReminders:
		e.session.PauseReminders(cmd.Minutes, now)
		data := map[string]any{}
		if cmd.Minutes != nil {
			data["minutes"] = *cmd.Minutes
		}
		e.emit(EventRemindersPaused, data)
		e.broadcastStatus(now)
	case CmdResumeReminders:
		e.session.ResumeReminders()
		e.emit(EventRemindersResumed, nil)
		e.broadcastStatus(now)
	case CmdCompleteBreak:
		e.completeBreak(now)
	case CmdSnoozeBreak:
		e.snoozeBreak(cmd, now)
	case CmdSkipBreak:
		e.skipBreak(now)
	case CmdLogHydration:
		e.logHydration(cmd, now)
	case CmdGetStatus:
		e.broadcastStatus(now)
	case CmdGetMetrics:
		e.emit(EventMetrics, metricsPayload{
			Snapshot:           e.lastSnapshot,
			TimeSinceLastBreak: int(now.Sub(e.lastBreakAt).Seconds()),
			NextBreak:          e.set.Next(),
		})
	case CmdUpdateSetting:
		e.updateSetting(cmd, now)
	case CmdGetSettings:
		settings, err := e.settings.All()
		if err != nil {
			e.emitError("failed to load settings: %v", err)
			return
		}
		e.emit(EventSettings, settings)
	case CmdAddScheduleRule:
		e.addScheduleRule(cmd)
	case CmdUpdateScheduleRule:
		e.updateScheduleRule(cmd)
	case CmdDeleteScheduleRule:
		e.deleteScheduleRule(cmd)
	case CmdGetScheduleRules:
		rules, err := e.rules.All()
		if err != nil {
			e.emitError("failed to load schedule rules: %v", err)
			return
		}
		e.emit(EventScheduleRules, map[string]any{"rules": rules})
	case CmdResetAllTimers:
		e.resetAllTimers(now)
	case CmdGetBreakStats:
		days := defaultStatsDays
		if cmd.DaysBack != nil && *cmd.DaysBack > 0 {
			days = *cmd.DaysBack
		}
		stats, err := e.breakLogs.Stats(days, now)
		if err != nil {
			e.emitError("failed to load break stats: %v", err)
			return
		}
		e.emit(EventBreakStats, map[string]any{"days": days, "stats": stats})
	case CmdExportData:
		path := cmd.Path
		if path == "" {
			path = defaultExportPath
		}
		records, err := e.exporter.Export(path)
		if err != nil {
			e.emitError("export failed: %v", err)
			return
		}
		e.emit(EventDataExported, map[string]any{"path": path, "records": records})
	case CmdShutdown:
		e.checkpoint(now)
		e.emit(EventShutdownAck, nil)
		e.quitOnce.Do(func() { close(e.quit) })
	default:
		e.emitError("unknown command: %s", cmd.Cmd)
	}
}

func (e *Engine) startSession(now time.Time) {
	fresh, err := e.session.Start()
	if err != nil {
		e.emitError("failed to start session: %v", err)
		return
	}
	if fresh {
		e.set.ResetAll()
		e.sampler.ResetActiveSeconds()
		e.lastBreakAt = now
		e.pendingSampleID = 0
		e.checkpoint(now)
	}
	e.emit(EventSessionStarted, map[string]any{"fresh": fresh})
	e.broadcastStatus(now)
}

func (e *Engine) pauseSession() {
	prev := e.session.State()
	if err := e.session.Pause(); err != nil {
		e.emitError("failed to pause session: %v", err)
		return
	}
	if prev == session.StateActive {
		e.emit(EventSessionPaused, nil)
		e.broadcastStatus(e.now())
	}
}

func (e *Engine) resumeSession() {
	prev := e.session.State()
	if err := e.session.Resume(); err != nil {
		e.emitError("failed to resume session: %v", err)
		return
	}
	if prev == session.StatePaused {
		e.emit(EventSessionResumed, nil)
		e.broadcastStatus(e.now())
	}
}

func (e *Engine) endSession(now time.Time) {
	prev := e.session.State()
	if err := e.session.End(); err != nil {
		e.emitError("failed to end session: %v", err)
		return
	}
	if prev == session.StateIdle {
		return
	}
	e.set.ResetAll()
	e.sampler.ResetActiveSeconds()
	e.session.ResumeReminders()
	e.pendingSampleID = 0
	e.checkpoint(now)
	e.emit(EventSessionEnded, nil)
	e.broadcastStatus(now)
}

func (e *Engine) resetAllTimers(now time.Time) {
	e.set.ResetAll()
	e.pendingSampleID = 0
	e.checkpoint(now)
	e.emit(EventTimersReset, nil)
	e.broadcastStatus(now)
}

func (e *Engine) completeBreak(now time.Time) {
	res, ok := e.set.Complete()
	if !ok {
		e.logger.Warn("Ignoring complete_break with no pending break")
		return
	}
	if res.LogID != 0 {
		if err := e.breakLogs.Resolve(res.LogID, true, false, false); err != nil {
			e.emitError("failed to record break completion: %v", err)
			return
		}
	}
	if e.pendingSampleID != 0 {
		if err := e.samples.Label(e.pendingSampleID, true); err != nil {
			e.logger.Warn("Failed to label activity sample", zap.Error(err))
		}
		e.pendingSampleID = 0
	}
	e.lastBreakAt = now
	e.checkpoint(now)
	e.emit(EventBreakCompleted, map[string]any{
		"break_type": res.Kind.String(),
		"record_id":  res.LogID,
	})
	e.broadcastStatus(now)
}

func (e *Engine) snoozeBreak(cmd Command, now time.Time) {
	minutes := defaultSnoozeMinutes
	if cmd.Minutes != nil && *cmd.Minutes > 0 {
		minutes = *cmd.Minutes
	}
	res, ok := e.set.Snooze(minutes)
	if !ok {
		e.logger.Warn("Ignoring snooze_break with no pending break")
		return
	}
	// Interim flag; the final resolution after the re-fire overwrites it.
	if res.LogID != 0 {
		if err := e.breakLogs.Resolve(res.LogID, false, false, true); err != nil {
			e.emitError("failed to record break snooze: %v", err)
			return
		}
	}
	e.emit(EventBreakSnoozed, map[string]any{
		"break_type": res.Kind.String(),
		"minutes":    minutes,
		"record_id":  res.LogID,
	})
	e.broadcastStatus(now)
}

func (e *Engine) skipBreak(now time.Time) {
	res, ok := e.set.Skip()
	if !ok {
		e.logger.Warn("Ignoring skip_break with no pending break")
		return
	}
	if res.LogID != 0 {
		if err := e.breakLogs.Resolve(res.LogID, false, true, false); err != nil {
			e.emitError("failed to record break skip: %v", err)
			return
		}
	}
	if e.pendingSampleID != 0 {
		if err := e.samples.Label(e.pendingSampleID, false); err != nil {
			e.logger.Warn("Failed to label activity sample", zap.Error(err))
		}
		e.pendingSampleID = 0
	}
	e.lastBreakAt = now
	e.checkpoint(now)
	e.emit(EventBreakSkipped, map[string]any{
		"break_type": res.Kind.String(),
		"record_id":  res.LogID,
	})
	e.broadcastStatus(now)
}

func (e *Engine) logHydration(cmd Command, now time.Time) {
	amount := defaultHydrationAmountML
	if cmd.AmountML != nil && *cmd.AmountML > 0 {
		amount = *cmd.AmountML
	}
	if _, err := e.hydration.Log(amount, now); err != nil {
		e.emitError("failed to log hydration: %v", err)
		return
	}

	total, err := e.hydration.TotalForDay(now)
	if err != nil {
		e.emitError("failed to total hydration: %v", err)
		return
	}
	goal, err := e.settings.GetInt("water_goal", 2000)
	if err != nil {
		e.logger.Warn("Failed to read water goal", zap.Error(err))
		goal = 2000
	}

	if goal > 0 && total >= goal && !e.set.HydrationSilenced() {
		e.set.SilenceHydration(true)
		e.logger.Info("Hydration goal met, silencing reminders for today",
			zap.Int("total_ml", total), zap.Int("goal_ml", goal))
	}

	progress := 0.0
	if goal > 0 {
		progress = float64(total) / float64(goal)
		if progress > 1 {
			progress = 1
		}
	}
	e.emit(EventHydrationLogged, map[string]any{
		"amount_ml":      amount,
		"total_today_ml": total,
		"goal_ml":        goal,
		"progress":       progress,
	})
}

// refreshHydrationSilence recomputes the auto-silence state from today's
// intake, lifting it on day rollover.
func (e *Engine) refreshHydrationSilence(now time.Time) error {
	total, err := e.hydration.TotalForDay(now)
	if err != nil {
		return err
	}
	goal, err := e.settings.GetInt("water_goal", 2000)
	if err != nil {
		return err
	}
	e.set.SilenceHydration(goal > 0 && total >= goal)
	return nil
}

func (e *Engine) updateSetting(cmd Command, now time.Time) {
	if cmd.Key == "" || cmd.Value == nil {
		e.emitError("update_setting requires key and value")
		return
	}
	key, value := cmd.Key, *cmd.Value

	if err := validateSetting(key, value); err != nil {
		e.emitError("invalid setting: %v", err)
		return
	}
	if err := e.settings.Set(key, value); err != nil {
		e.emitError("failed to persist setting %s: %v", key, err)
		return
	}
	e.applySetting(key, value, now)
	e.emit(EventSettingUpdated, map[string]any{"key": key, "value": value})
}

// applySetting pushes a persisted settings change into the live components.
func (e *Engine) applySetting(key, value string, now time.Time) {
	switch key {
	case "micro_break_interval", "micro_break_duration":
		e.reloadTimer(breaks.KindMicro, now)
	case "macro_break_interval", "macro_break_duration":
		e.reloadTimer(breaks.KindMacro, now)
	case "hydration_interval", "hydration_duration":
		e.reloadTimer(breaks.KindHydration, now)
	case "timer_mode":
		mode, err := breaks.ParseMode(value)
		if err != nil {
			e.logger.Warn("Ignoring invalid timer mode", zap.Error(err))
			return
		}
		e.set.SetMode(mode)
	case "idle_threshold":
		seconds, err := strconv.Atoi(value)
		if err == nil {
			e.sampler.SetIdleThreshold(time.Duration(seconds) * time.Second)
		}
	case "auto_detect_fullscreen":
		e.sampler.SetAutoDetectFullscreen(value == "true")
	case "blocklist_processes":
		var processes []string
		if err := json.Unmarshal([]byte(value), &processes); err != nil {
			e.logger.Warn("Ignoring malformed blocklist", zap.Error(err))
			return
		}
		e.sampler.SetBlocklist(processes)
	case "water_goal":
		if err := e.refreshHydrationSilence(now); err != nil {
			e.logger.Warn("Failed to recompute hydration silence", zap.Error(err))
		}
	}
}

// reloadTimer re-reads a timer's interval and duration from settings and
// applies them atomically, zeroing the elapsed counter.
func (e *Engine) reloadTimer(kind breaks.Kind, now time.Time) {
	interval, duration, err := e.timerSettings(kind)
	if err != nil {
		e.logger.Error("Failed to read timer settings", zap.Error(err))
		return
	}
	e.set.ReloadAndReset(kind, interval, duration)
	e.checkpoint(now)
}

// internallyManagedSettings cannot be written through update_setting.
var internallyManagedSettings = map[string]struct{}{
	"session_state":           {},
	"break_elapsed_micro":     {},
	"break_elapsed_macro":     {},
	"break_elapsed_hydration": {},
	"agent_id":                {},
}

func validateSetting(key, value string) error {
	if _, known := database.DefaultSettings[key]; !known {
		return fmt.Errorf("unknown setting %q", key)
	}
	if _, managed := internallyManagedSettings[key]; managed {
		return fmt.Errorf("setting %q is managed internally", key)
	}

	switch key {
	case "micro_break_interval", "macro_break_interval", "hydration_interval",
		"idle_threshold", "water_goal":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
	case "micro_break_duration", "macro_break_duration", "hydration_duration":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
		}
	case "timer_mode":
		if _, err := breaks.ParseMode(value); err != nil {
			return err
		}
	case "auto_detect_fullscreen", "sound_enabled", "auto_start", "close_to_tray":
		if value != "true" && value != "false" {
			return fmt.Errorf("%s must be true or false, got %q", key, value)
		}
	case "blocklist_processes":
		var processes []string
		if err := json.Unmarshal([]byte(value), &processes); err != nil {
			return fmt.Errorf("%s must be a JSON string array: %w", key, err)
		}
	}
	return nil
}

func (e *Engine) addScheduleRule(cmd Command) {
	if err := validateRule(cmd.Time, cmd.Action, cmd.Days); err != nil {
		e.emitError("invalid schedule rule: %v", err)
		return
	}
	id, err := e.rules.Create(cmd.Title, cmd.Time, cmd.Action, cmd.Days)
	if err != nil {
		e.emitError("failed to create schedule rule: %v", err)
		return
	}
	e.schedule.MarkDirty()
	e.emitRules(EventScheduleRuleAdded, id)
}

func (e *Engine) updateScheduleRule(cmd Command) {
	if cmd.ID == nil {
		e.emitError("update_schedule_rule requires id")
		return
	}
	if err := validateRule(cmd.Time, cmd.Action, cmd.Days); err != nil {
		e.emitError("invalid schedule rule: %v", err)
		return
	}
	enabled := true
	if cmd.Enabled != nil {
		enabled = *cmd.Enabled
	}
	if err := e.rules.Update(*cmd.ID, cmd.Title, cmd.Time, cmd.Action, cmd.Days, enabled); err != nil {
		e.emitError("failed to update schedule rule: %v", err)
		return
	}
	e.schedule.MarkDirty()
	e.emitRules(EventScheduleRuleUpdated, *cmd.ID)
}

func (e *Engine) deleteScheduleRule(cmd Command) {
	if cmd.ID == nil {
		e.emitError("delete_schedule_rule requires id")
		return
	}
	if err := e.rules.Delete(*cmd.ID); err != nil {
		e.emitError("failed to delete schedule rule: %v", err)
		return
	}
	e.schedule.MarkDirty()
	e.schedule.Forget(*cmd.ID)
	e.emitRules(EventScheduleRuleDeleted, *cmd.ID)
}

func validateRule(timeOfDay, action string, days []string) error {
	if err := schedule.ValidateTime(timeOfDay); err != nil {
		return err
	}
	if _, err := schedule.ParseAction(action); err != nil {
		return err
	}
	return schedule.ValidateDays(days)
}

func (e *Engine) emitRules(eventType EventType, id int64) {
	rules, err := e.rules.All()
	if err != nil {
		e.logger.Error("Failed to reload schedule rules", zap.Error(err))
		rules = nil
	}
	e.emit(eventType, map[string]any{"id": id, "rules": rules})
}

// checkpoint persists the elapsed counters so a restart resumes mid-interval
// instead of restarting every countdown.
func (e *Engine) checkpoint(now time.Time) {
	for _, kind := range breaks.Kinds {
		key := "break_elapsed_" + kind.String()
		if err := e.settings.Set(key, strconv.Itoa(e.set.Elapsed(kind))); err != nil {
			e.logger.Warn("Failed to checkpoint timer", zap.String("key", key), zap.Error(err))
		}
	}
	e.lastCheckpoint = now
}

type metricsPayload struct {
	sampler.Snapshot
	TimeSinceLastBreak int              `json:"time_since_last_break"`
	NextBreak          breaks.NextBreak `json:"next_break"`
}

type hydrationStatus struct {
	TotalTodayML int     `json:"total_today_ml"`
	GoalML       int     `json:"goal_ml"`
	Progress     float64 `json:"progress"`
	Silenced     bool    `json:"silenced"`
}

type statusPayload struct {
	Metrics         sampler.Snapshot              `json:"metrics"`
	SessionState    string                        `json:"session_state"`
	RemindersPaused bool                          `json:"reminders_paused"`
	PauseUntil      *int64                        `json:"pause_until,omitempty"`
	PendingBreak    string                        `json:"pending_break,omitempty"`
	ActiveSeconds   int                           `json:"active_time_seconds"`
	TimerMode       string                        `json:"timer_mode"`
	Breaks          map[string]breaks.TimerStatus `json:"breaks"`
	NextBreak       breaks.NextBreak              `json:"next_break"`
	Hydration       hydrationStatus               `json:"hydration"`
}

func (e *Engine) broadcastStatus(now time.Time) {
	status := statusPayload{
		Metrics:         e.lastSnapshot,
		SessionState:    string(e.session.State()),
		RemindersPaused: e.session.RemindersPaused(now),
		ActiveSeconds:   e.lastSnapshot.ActiveSeconds,
		TimerMode:       string(e.set.Mode(breaks.KindMicro)),
		Breaks:          e.set.Status(),
		NextBreak:       e.set.Next(),
	}
	if until := e.session.PauseUntil(); until != nil {
		unix := until.Unix()
		status.PauseUntil = &unix
	}
	if kind, pending := e.set.Pending(); pending {
		status.PendingBreak = kind.String()
	}

	total, err := e.hydration.TotalForDay(now)
	if err != nil {
		e.logger.Warn("Failed to total hydration", zap.Error(err))
	}
	goal, err := e.settings.GetInt("water_goal", 2000)
	if err != nil {
		goal = 2000
	}
	status.Hydration = hydrationStatus{
		TotalTodayML: total,
		GoalML:       goal,
		Silenced:     e.set.HydrationSilenced(),
	}
	if goal > 0 {
		p := float64(total) / float64(goal)
		if p > 1 {
			p = 1
		}
		status.Hydration.Progress = p
	}

	e.emit(EventStatus, status)
}

func (e *Engine) emit(eventType EventType, data any) {
	if e.sink == nil {
		return
	}
	e.sink(Event{Type: eventType, Data: data})
}

func (e *Engine) emitError(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	e.logger.Warn("Command failed", zap.String("message", message))
	e.emit(EventError, map[string]any{"message": message})
}
