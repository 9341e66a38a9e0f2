package store

import (
	"database/sql"
	"fmt"
)

// SettingsRepository is the key-value settings store. Values are strings;
// callers parse them where needed so components always re-read fresh values.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value for key, or fallback when the key is absent.
func (r *SettingsRepository) Get(key, fallback string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// GetInt returns the value for key parsed as an integer.
func (r *SettingsRepository) GetInt(key string, fallback int) (int, error) {
	value, err := r.Get(key, "")
	if err != nil {
		return 0, err
	}
	if value == "" {
		return fallback, nil
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return n, nil
}

// GetBool returns true when the stored value is the string "true".
func (r *SettingsRepository) GetBool(key string, fallback bool) (bool, error) {
	value, err := r.Get(key, "")
	if err != nil {
		return false, err
	}
	if value == "" {
		return fallback, nil
	}
	return value == "true", nil
}

// Set upserts a setting value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%s', 'now')
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// All returns every setting as a map.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return settings, nil
}
