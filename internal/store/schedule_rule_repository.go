package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// ScheduleRule is a user-authored time-of-day automation entry.
type ScheduleRule struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Time      string   `json:"time"`
	Action    string   `json:"action"`
	Days      []string `json:"days"`
	Enabled   bool     `json:"enabled"`
	CreatedAt int64    `json:"created_at"`
}

type ScheduleRuleRepository struct {
	db *sql.DB
}

func NewScheduleRuleRepository(db *sql.DB) *ScheduleRuleRepository {
	return &ScheduleRuleRepository{db: db}
}

// Create inserts a rule and returns its id.
func (r *ScheduleRuleRepository) Create(title, timeOfDay, action string, days []string) (int64, error) {
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal days: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO schedule_rules (title, time, action, days) VALUES (?, ?, ?, ?)
	`, title, timeOfDay, action, string(daysJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to create schedule rule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get schedule rule id: %w", err)
	}
	return id, nil
}

// Update replaces every user-editable field of a rule.
func (r *ScheduleRuleRepository) Update(id int64, title, timeOfDay, action string, days []string, enabled bool) error {
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("failed to marshal days: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE schedule_rules SET title = ?, time = ?, action = ?, days = ?, enabled = ?
		WHERE id = ?
	`, title, timeOfDay, action, string(daysJSON), enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update schedule rule %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("schedule rule %d not found", id)
	}
	return nil
}

// Delete removes a rule.
func (r *ScheduleRuleRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM schedule_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule rule %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("schedule rule %d not found", id)
	}
	return nil
}

// All returns every rule ordered by time of day.
func (r *ScheduleRuleRepository) All() ([]ScheduleRule, error) {
	return r.query(`SELECT id, title, time, action, days, enabled, created_at FROM schedule_rules ORDER BY time, id`)
}

// Enabled returns only enabled rules ordered by time of day.
func (r *ScheduleRuleRepository) Enabled() ([]ScheduleRule, error) {
	return r.query(`SELECT id, title, time, action, days, enabled, created_at FROM schedule_rules WHERE enabled = 1 ORDER BY time, id`)
}

func (r *ScheduleRuleRepository) query(q string) ([]ScheduleRule, error) {
	rows, err := r.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule rules: %w", err)
	}
	defer rows.Close()

	var rules []ScheduleRule
	for rows.Next() {
		var rule ScheduleRule
		var daysJSON string
		if err := rows.Scan(&rule.ID, &rule.Title, &rule.Time, &rule.Action, &daysJSON,
			&rule.Enabled, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule rule: %w", err)
		}
		if err := json.Unmarshal([]byte(daysJSON), &rule.Days); err != nil {
			return nil, fmt.Errorf("failed to unmarshal days for rule %d: %w", rule.ID, err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rules: %w", err)
	}
	return rules, nil
}
