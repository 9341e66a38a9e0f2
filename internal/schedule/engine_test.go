package schedule

import (
	"path/filepath"
	"testing"
	"time"

	"aura/wellness-agent/internal/database"
	"aura/wellness-agent/internal/store"

	"go.uber.org/zap"
)

func testRepo(t *testing.T) *store.ScheduleRuleRepository {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewScheduleRuleRepository(db.DB)
}

// 2026-08-24 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2026, 8, 24, hour, minute, 0, 0, time.UTC)
}

func TestEvaluateFiresOncePerMinute(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	if _, err := repo.Create("Lunch", "12:00", "pause", []string{"mon"}); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	e := NewEngine(repo, zap.NewNop())

	firings, _, err := e.Evaluate(monday(12, 0))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 1 || firings[0].Action != ActionPause {
		t.Fatalf("expected one pause firing, got %+v", firings)
	}

	// Same minute, later tick: nothing.
	firings, _, err = e.Evaluate(monday(12, 0).Add(30 * time.Second))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 0 {
		t.Fatalf("rule fired twice in the same minute: %+v", firings)
	}

	firings, _, err = e.Evaluate(monday(12, 1))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 0 {
		t.Fatalf("rule fired outside its minute: %+v", firings)
	}
}

func TestWarningOneMinuteAhead(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	if _, err := repo.Create("Standup", "09:30", "start_session", []string{"mon"}); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	e := NewEngine(repo, zap.NewNop())

	firings, warnings, err := e.Evaluate(monday(9, 29))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 0 {
		t.Fatalf("rule fired a minute early: %+v", firings)
	}
	if len(warnings) != 1 || warnings[0].SecondsRemaining != 60 {
		t.Fatalf("expected one 60s warning, got %+v", warnings)
	}

	firings, warnings, err = e.Evaluate(monday(9, 30))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 1 {
		t.Fatalf("expected firing at 09:30, got %+v", firings)
	}
	if len(warnings) != 0 {
		t.Fatalf("duplicate warning: %+v", warnings)
	}
}

func TestDayFilter(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	if _, err := repo.Create("", "12:00", "pause", []string{"tue"}); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	e := NewEngine(repo, zap.NewNop())

	firings, warnings, err := e.Evaluate(monday(12, 0))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 0 || len(warnings) != 0 {
		t.Fatalf("rule matched the wrong day: %+v %+v", firings, warnings)
	}
}

func TestSameMinuteFiringsSortedByRuleID(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	first, err := repo.Create("A", "12:00", "reset", []string{"mon"})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	second, err := repo.Create("B", "12:00", "pause", []string{"mon"})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	e := NewEngine(repo, zap.NewNop())

	firings, _, err := e.Evaluate(monday(12, 0))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 2 || firings[0].RuleID != first || firings[1].RuleID != second {
		t.Fatalf("expected firings in rule id order, got %+v", firings)
	}
}

func TestMarkDirtyReloadsRules(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	e := NewEngine(repo, zap.NewNop())

	if _, _, err := e.Evaluate(monday(11, 58)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if _, err := repo.Create("Lunch", "12:00", "pause", []string{"mon"}); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	// Cache still holds the empty rule set.
	firings, _, err := e.Evaluate(monday(12, 0))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 0 {
		t.Fatalf("stale cache fired: %+v", firings)
	}

	e.MarkDirty()
	firings, _, err = e.Evaluate(monday(12, 0).Add(7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(firings) != 1 {
		t.Fatalf("expected reloaded rule to fire, got %+v", firings)
	}
}

func TestDisplayTitleFallback(t *testing.T) {
	t.Parallel()
	rule := store.ScheduleRule{Action: "start_session", Time: "09:00"}
	if got := displayTitle(rule); got != "Start session at 09:00" {
		t.Fatalf("unexpected display title %q", got)
	}
	rule.Title = "Morning"
	if got := displayTitle(rule); got != "Morning" {
		t.Fatalf("unexpected display title %q", got)
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()
	if err := ValidateTime("12:00"); err != nil {
		t.Fatalf("valid time rejected: %v", err)
	}
	if err := ValidateTime("25:00"); err == nil {
		t.Fatal("invalid hour accepted")
	}
	if err := ValidateDays([]string{"mon", "fri"}); err != nil {
		t.Fatalf("valid days rejected: %v", err)
	}
	if err := ValidateDays(nil); err == nil {
		t.Fatal("empty day set accepted")
	}
	if err := ValidateDays([]string{"monday"}); err == nil {
		t.Fatal("unknown day name accepted")
	}
	if _, err := ParseAction("pause"); err != nil {
		t.Fatalf("valid action rejected: %v", err)
	}
	if _, err := ParseAction("explode"); err == nil {
		t.Fatal("unknown action accepted")
	}
}

func TestDayAbbrev(t *testing.T) {
	t.Parallel()
	if got := DayAbbrev(time.Monday); got != "mon" {
		t.Fatalf("expected mon, got %q", got)
	}
	if got := DayAbbrev(time.Sunday); got != "sun" {
		t.Fatalf("expected sun, got %q", got)
	}
}
