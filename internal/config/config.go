package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds process-level configuration loaded at startup. Values the user
// can change at runtime (break intervals, blocklist, water goal, ...) live in
// the settings table instead.
type Config struct {
	Env         string `yaml:"env" env:"AURA_ENV" env-default:"production"`
	StoragePath string `yaml:"storage_path" env:"AURA_STORAGE_PATH"`

	Log struct {
		Level  string `yaml:"level" env:"AURA_LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"AURA_LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`

	Engine struct {
		// Tick period of the main loop, in seconds.
		TickInterval int `yaml:"tick_interval" env:"AURA_TICK_INTERVAL" env-default:"1"`
		// Sliding window for velocity / keys-per-minute, in seconds.
		MetricsWindow int `yaml:"metrics_window" env:"AURA_METRICS_WINDOW" env-default:"60"`
		// Seconds without input before metrics are forced to zero.
		// Independent of the idle_threshold setting.
		IdleZeroThreshold int `yaml:"idle_zero_threshold" env:"AURA_IDLE_ZERO_THRESHOLD" env-default:"1"`
		// How often timer counters are checkpointed to the store, in seconds.
		CheckpointInterval int `yaml:"checkpoint_interval" env:"AURA_CHECKPOINT_INTERVAL" env-default:"30"`
	} `yaml:"engine"`

	Tray struct {
		Enabled bool `yaml:"enabled" env:"AURA_TRAY_ENABLED" env-default:"false"`
	} `yaml:"tray"`
}

// Load reads configuration from the given YAML file, falling back to
// environment variables and defaults when the file does not exist.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	}

	if cfg.StoragePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir := filepath.Join(home, ".aura")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		cfg.StoragePath = filepath.Join(dir, "aura.db")
	}

	if cfg.Engine.TickInterval <= 0 {
		return nil, fmt.Errorf("tick_interval must be positive, got %d", cfg.Engine.TickInterval)
	}
	if cfg.Engine.MetricsWindow <= 0 {
		return nil, fmt.Errorf("metrics_window must be positive, got %d", cfg.Engine.MetricsWindow)
	}

	return &cfg, nil
}
