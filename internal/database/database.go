package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	logger *zap.Logger
}

func New(storagePath string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", storagePath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Repository writes are short transactions from a single writer; one
	// connection avoids SQLITE_BUSY between the command path and checkpoints.
	db.SetMaxOpenConns(1)

	database := &DB{
		DB:     db,
		logger: logger,
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established", zap.String("path", storagePath))
	return database, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		// Key-value settings store
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT UNIQUE NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER DEFAULT (strftime('%s', 'now'))
		)`,
		// Break history, append-only
		`CREATE TABLE IF NOT EXISTS break_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			break_type TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT 0,
			skipped BOOLEAN NOT NULL DEFAULT 0,
			snoozed BOOLEAN NOT NULL DEFAULT 0,
			created_at INTEGER DEFAULT (strftime('%s', 'now'))
		)`,
		// Water intake, append-only
		`CREATE TABLE IF NOT EXISTS hydration_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			amount_ml INTEGER NOT NULL,
			created_at INTEGER DEFAULT (strftime('%s', 'now'))
		)`,
		// Activity snapshots recorded at break fires and periodically
		`CREATE TABLE IF NOT EXISTS activity_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			mouse_velocity REAL NOT NULL,
			keys_per_min INTEGER NOT NULL,
			active_process TEXT NOT NULL,
			time_since_last_break INTEGER NOT NULL,
			is_fullscreen BOOLEAN NOT NULL DEFAULT 0,
			user_response INTEGER DEFAULT NULL,
			created_at INTEGER DEFAULT (strftime('%s', 'now'))
		)`,
		// Time-of-day automation rules
		`CREATE TABLE IF NOT EXISTS schedule_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT DEFAULT '',
			time TEXT NOT NULL,
			action TEXT NOT NULL,
			days TEXT NOT NULL,
			enabled BOOLEAN DEFAULT 1,
			created_at INTEGER DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_break_logs_timestamp ON break_logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_hydration_timestamp ON hydration_logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON activity_samples(timestamp)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	if err := db.seedDefaults(); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}

	db.logger.Info("Database migrations completed")
	return nil
}

// DefaultSettings is the set of recognized settings keys and their initial
// values. update_setting rejects keys outside this map.
var DefaultSettings = map[string]string{
	"water_goal":              "2000",
	"micro_break_interval":    "1200",
	"micro_break_duration":    "20",
	"macro_break_interval":    "2700",
	"macro_break_duration":    "180",
	"hydration_interval":      "1800",
	"hydration_duration":      "0",
	"idle_threshold":          "180",
	"timer_mode":              "wall-clock",
	"auto_detect_fullscreen":  "true",
	"blocklist_processes":     `["league_of_legends.exe","vlc.exe","obs64.exe","zoom.exe","discord.exe"]`,
	"sound_enabled":           "true",
	"auto_start":              "false",
	"close_to_tray":           "true",
	"theme":                   "dark",
	"schedule_mode":           "same_every_day",
	"session_state":           "idle",
	"break_elapsed_micro":     "0",
	"break_elapsed_macro":     "0",
	"break_elapsed_hydration": "0",
	"agent_id":                "",
}

func (db *DB) seedDefaults() error {
	stmt, err := db.Prepare(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare seed statement: %w", err)
	}
	defer stmt.Close()

	for key, value := range DefaultSettings {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to seed %s: %w", key, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.logger.Info("Database connection closed")
	return nil
}
