package schedule

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"aura/wellness-agent/internal/store"

	"go.uber.org/zap"
)

// Action is a session/timer operation a rule can invoke.
type Action string

const (
	ActionPause        Action = "pause"
	ActionResume       Action = "resume"
	ActionReset        Action = "reset"
	ActionStartSession Action = "start_session"
	ActionEndSession   Action = "end_session"
)

// ParseAction validates a wire string as an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionPause, ActionResume, ActionReset, ActionStartSession, ActionEndSession:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown schedule action %q", s)
}

var dayAbbrevs = [...]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// DayAbbrev returns the three-letter day name used in rule day sets, with
// Monday first to match the persisted format.
func DayAbbrev(w time.Weekday) string {
	// time.Weekday has Sunday == 0
	return dayAbbrevs[(int(w)+6)%7]
}

// ValidateTime checks an "HH:MM" 24-hour time string.
func ValidateTime(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("invalid rule time %q, want HH:MM: %w", s, err)
	}
	return nil
}

// ValidateDays checks that the day set is non-empty and uses known names.
func ValidateDays(days []string) error {
	if len(days) == 0 {
		return fmt.Errorf("rule days must not be empty")
	}
	for _, d := range days {
		valid := false
		for _, abbrev := range dayAbbrevs {
			if d == abbrev {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("unknown day %q", d)
		}
	}
	return nil
}

// Firing is a rule whose time has arrived this minute.
type Firing struct {
	RuleID int64
	Title  string
	Time   string
	Action Action
}

// Warning announces a rule due in the next minute.
type Warning struct {
	Title            string
	Time             string
	Action           Action
	SecondsRemaining int
}

// Engine evaluates schedule rules against the wall clock. Rules are cached
// and reloaded lazily after CRUD marks the cache dirty. Evaluation happens at
// most once per calendar minute, and each rule fires at most once per minute
// even if the tick loop runs faster than 60s.
type Engine struct {
	mu     sync.Mutex
	repo   *store.ScheduleRuleRepository
	logger *zap.Logger

	rules      []store.ScheduleRule
	dirty      bool
	lastMinute string
	lastFired  map[int64]string
	lastWarned map[int64]string
}

func NewEngine(repo *store.ScheduleRuleRepository, logger *zap.Logger) *Engine {
	return &Engine{
		repo:       repo,
		logger:     logger,
		dirty:      true,
		lastFired:  make(map[int64]string),
		lastWarned: make(map[int64]string),
	}
}

// MarkDirty forces a rule reload on the next evaluation. Called after rule
// CRUD.
func (e *Engine) MarkDirty() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
}

// Forget drops the dedupe memory of a deleted rule.
func (e *Engine) Forget(ruleID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.lastFired, ruleID)
	delete(e.lastWarned, ruleID)
}

// Evaluate checks every enabled rule against the given time. Returns the
// rules firing this minute in ascending rule id order, plus one-minute
// advance warnings. Re-evaluating within the same minute returns nothing.
func (e *Engine) Evaluate(now time.Time) ([]Firing, []Warning, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stamp := now.Format("2006-01-02 15:04")
	if stamp == e.lastMinute {
		return nil, nil, nil
	}
	e.lastMinute = stamp
	minute := now.Format("15:04")

	if e.dirty {
		rules, err := e.repo.Enabled()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load schedule rules: %w", err)
		}
		e.rules = rules
		e.dirty = false
	}

	day := DayAbbrev(now.Weekday())
	next := now.Add(time.Minute)
	nextMinute := next.Format("15:04")

	var firings []Firing
	var warnings []Warning

	for _, rule := range e.rules {
		if !containsDay(rule.Days, day) {
			continue
		}

		if rule.Time == nextMinute {
			// Dedupe keys carry the date so a daily rule fires again tomorrow.
			warnKey := fmt.Sprintf("%d:%s", rule.ID, next.Format("2006-01-02 15:04"))
			if e.lastWarned[rule.ID] != warnKey {
				e.lastWarned[rule.ID] = warnKey
				warnings = append(warnings, Warning{
					Title:            displayTitle(rule),
					Time:             rule.Time,
					Action:           Action(rule.Action),
					SecondsRemaining: 60,
				})
			}
		}

		if rule.Time != minute {
			continue
		}
		fireKey := fmt.Sprintf("%d:%s", rule.ID, stamp)
		if e.lastFired[rule.ID] == fireKey {
			continue
		}
		e.lastFired[rule.ID] = fireKey
		firings = append(firings, Firing{
			RuleID: rule.ID,
			Title:  displayTitle(rule),
			Time:   rule.Time,
			Action: Action(rule.Action),
		})
	}

	// Same-minute rules execute in a defined order so action sequencing is
	// reproducible.
	sort.Slice(firings, func(i, j int) bool { return firings[i].RuleID < firings[j].RuleID })

	for _, f := range firings {
		e.logger.Info("Schedule rule fired",
			zap.Int64("rule_id", f.RuleID),
			zap.String("action", string(f.Action)),
			zap.String("time", f.Time),
		)
	}
	return firings, warnings, nil
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func displayTitle(rule store.ScheduleRule) string {
	if rule.Title != "" {
		return rule.Title
	}
	action := strings.ReplaceAll(rule.Action, "_", " ")
	if action != "" {
		action = strings.ToUpper(action[:1]) + action[1:]
	}
	return fmt.Sprintf("%s at %s", action, rule.Time)
}
