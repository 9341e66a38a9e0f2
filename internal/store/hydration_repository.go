package store

import (
	"database/sql"
	"fmt"
	"time"
)

// HydrationLog is one recorded water intake.
type HydrationLog struct {
	ID        int64 `json:"id"`
	Timestamp int64 `json:"timestamp"`
	AmountML  int   `json:"amount_ml"`
}

type HydrationRepository struct {
	db *sql.DB
}

func NewHydrationRepository(db *sql.DB) *HydrationRepository {
	return &HydrationRepository{db: db}
}

// Log appends a hydration entry and returns its id.
func (r *HydrationRepository) Log(amountML int, at time.Time) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO hydration_logs (timestamp, amount_ml) VALUES (?, ?)
	`, at.Unix(), amountML)
	if err != nil {
		return 0, fmt.Errorf("failed to log hydration: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get hydration log id: %w", err)
	}
	return id, nil
}

// TotalForDay returns the summed intake for the calendar day containing the
// given time, in local time. The daily total is always derived from the log
// rows, never stored separately.
func (r *HydrationRepository) TotalForDay(day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var total sql.NullInt64
	err := r.db.QueryRow(`
		SELECT SUM(amount_ml) FROM hydration_logs WHERE timestamp >= ? AND timestamp < ?
	`, start.Unix(), end.Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum hydration: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// Since returns hydration entries at or after the cutoff, newest first.
func (r *HydrationRepository) Since(cutoff time.Time) ([]HydrationLog, error) {
	rows, err := r.db.Query(`
		SELECT id, timestamp, amount_ml FROM hydration_logs
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query hydration logs: %w", err)
	}
	defer rows.Close()

	var logs []HydrationLog
	for rows.Next() {
		var log HydrationLog
		if err := rows.Scan(&log.ID, &log.Timestamp, &log.AmountML); err != nil {
			return nil, fmt.Errorf("failed to scan hydration log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hydration logs: %w", err)
	}
	return logs, nil
}
