package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ActivitySample is a persisted activity snapshot. Samples recorded at break
// fires are later labeled with the user's response; periodic samples keep
// UserResponse NULL and are subject to retention cleanup.
type ActivitySample struct {
	ID                 int64
	Timestamp          int64
	MouseVelocity      float64
	KeysPerMinute      int
	ActiveProcess      string
	TimeSinceLastBreak int
	IsFullscreen       bool
	UserResponse       *int
}

type ActivitySampleRepository struct {
	db *sql.DB
}

func NewActivitySampleRepository(db *sql.DB) *ActivitySampleRepository {
	return &ActivitySampleRepository{db: db}
}

// Record inserts a snapshot row and returns its id.
func (r *ActivitySampleRepository) Record(s ActivitySample, at time.Time) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO activity_samples
			(timestamp, mouse_velocity, keys_per_min, active_process, time_since_last_break, is_fullscreen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, at.Unix(), s.MouseVelocity, s.KeysPerMinute, s.ActiveProcess, s.TimeSinceLastBreak, s.IsFullscreen)
	if err != nil {
		return 0, fmt.Errorf("failed to record activity sample: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get activity sample id: %w", err)
	}
	return id, nil
}

// Label marks a break-fire sample with the user's response: 1 for a completed
// break, 0 for a dismissed one.
func (r *ActivitySampleRepository) Label(id int64, completed bool) error {
	response := 0
	if completed {
		response = 1
	}
	if _, err := r.db.Exec(`UPDATE activity_samples SET user_response = ? WHERE id = ?`, response, id); err != nil {
		return fmt.Errorf("failed to label activity sample %d: %w", id, err)
	}
	return nil
}

// CleanupUnlabeled removes periodic samples older than the given number of
// days. Labeled samples are kept.
func (r *ActivitySampleRepository) CleanupUnlabeled(days int, now time.Time) (int64, error) {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour).Unix()
	result, err := r.db.Exec(`
		DELETE FROM activity_samples WHERE timestamp < ? AND user_response IS NULL
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup activity samples: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Since returns samples at or after the cutoff, oldest first.
func (r *ActivitySampleRepository) Since(cutoff time.Time) ([]ActivitySample, error) {
	rows, err := r.db.Query(`
		SELECT id, timestamp, mouse_velocity, keys_per_min, active_process,
			time_since_last_break, is_fullscreen, user_response
		FROM activity_samples
		WHERE timestamp >= ?
		ORDER BY timestamp ASC
	`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query activity samples: %w", err)
	}
	defer rows.Close()

	var samples []ActivitySample
	for rows.Next() {
		var s ActivitySample
		var response sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.MouseVelocity, &s.KeysPerMinute,
			&s.ActiveProcess, &s.TimeSinceLastBreak, &s.IsFullscreen, &response); err != nil {
			return nil, fmt.Errorf("failed to scan activity sample: %w", err)
		}
		if response.Valid {
			v := int(response.Int64)
			s.UserResponse = &v
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity samples: %w", err)
	}
	return samples, nil
}
