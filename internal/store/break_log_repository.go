package store

import (
	"database/sql"
	"fmt"
	"time"
)

// BreakLog is one row of break history. Exactly one of Completed, Skipped and
// Snoozed is true once the break is finally resolved; all are false while the
// break is pending.
type BreakLog struct {
	ID              int64  `json:"id"`
	Timestamp       int64  `json:"timestamp"`
	BreakType       string `json:"break_type"`
	DurationSeconds int    `json:"duration_seconds"`
	Completed       bool   `json:"completed"`
	Skipped         bool   `json:"skipped"`
	Snoozed         bool   `json:"snoozed"`
}

type BreakLogRepository struct {
	db *sql.DB
}

func NewBreakLogRepository(db *sql.DB) *BreakLogRepository {
	return &BreakLogRepository{db: db}
}

// Create appends a pending break log row and returns its id.
func (r *BreakLogRepository) Create(breakType string, durationSeconds int, at time.Time) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO break_logs (timestamp, break_type, duration_seconds, completed, skipped, snoozed)
		VALUES (?, ?, ?, 0, 0, 0)
	`, at.Unix(), breakType, durationSeconds)
	if err != nil {
		return 0, fmt.Errorf("failed to create break log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get break log id: %w", err)
	}
	return id, nil
}

// Resolve sets the resolution flags on an existing row. Later resolutions
// overwrite earlier ones, so a snoozed break that is eventually completed ends
// up with exactly one flag set.
func (r *BreakLogRepository) Resolve(id int64, completed, skipped, snoozed bool) error {
	result, err := r.db.Exec(`
		UPDATE break_logs SET completed = ?, skipped = ?, snoozed = ? WHERE id = ?
	`, completed, skipped, snoozed, id)
	if err != nil {
		return fmt.Errorf("failed to resolve break log %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("break log %d not found", id)
	}
	return nil
}

// GetByID returns a single break log row.
func (r *BreakLogRepository) GetByID(id int64) (*BreakLog, error) {
	var log BreakLog
	err := r.db.QueryRow(`
		SELECT id, timestamp, break_type, duration_seconds, completed, skipped, snoozed
		FROM break_logs WHERE id = ?
	`, id).Scan(&log.ID, &log.Timestamp, &log.BreakType, &log.DurationSeconds,
		&log.Completed, &log.Skipped, &log.Snoozed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("break log %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get break log: %w", err)
	}
	return &log, nil
}

// Since returns break logs at or after the given time, newest first.
func (r *BreakLogRepository) Since(cutoff time.Time) ([]BreakLog, error) {
	rows, err := r.db.Query(`
		SELECT id, timestamp, break_type, duration_seconds, completed, skipped, snoozed
		FROM break_logs
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query break logs: %w", err)
	}
	defer rows.Close()

	var logs []BreakLog
	for rows.Next() {
		var log BreakLog
		if err := rows.Scan(&log.ID, &log.Timestamp, &log.BreakType, &log.DurationSeconds,
			&log.Completed, &log.Skipped, &log.Snoozed); err != nil {
			return nil, fmt.Errorf("failed to scan break log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating break logs: %w", err)
	}
	return logs, nil
}

// BreakStats aggregates resolution counts per break type.
type BreakStats struct {
	BreakType string `json:"break_type"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Skipped   int    `json:"skipped"`
	Snoozed   int    `json:"snoozed"`
}

// Stats returns per-type resolution counts for the last N days.
func (r *BreakLogRepository) Stats(days int, now time.Time) ([]BreakStats, error) {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour).Unix()
	rows, err := r.db.Query(`
		SELECT break_type,
			COUNT(*),
			SUM(CASE WHEN completed = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN skipped = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN snoozed = 1 THEN 1 ELSE 0 END)
		FROM break_logs
		WHERE timestamp >= ?
		GROUP BY break_type
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query break stats: %w", err)
	}
	defer rows.Close()

	var stats []BreakStats
	for rows.Next() {
		var s BreakStats
		if err := rows.Scan(&s.BreakType, &s.Total, &s.Completed, &s.Skipped, &s.Snoozed); err != nil {
			return nil, fmt.Errorf("failed to scan break stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating break stats: %w", err)
	}
	return stats, nil
}
