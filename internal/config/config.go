package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure
type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	Database DatabaseConfig `mapstructure:"database"`
	Builder  BuilderConfig  `mapstructure:"builder"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Watch    WatchConfig    `mapstructure:"watch"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects the page store
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Name   string `mapstructure:"name"` // mongodb only
}

// BuilderConfig tunes the editing sessions
type BuilderConfig struct {
	BackfillDelay time.Duration `mapstructure:"backfill_delay"`
	DragGrace     time.Duration `mapstructure:"drag_grace"`
	HistoryLimit  int           `mapstructure:"history_limit"`
}

type SweepConfig struct {
	Schedule    string `mapstructure:"schedule"`
	Concurrency int    `mapstructure:"concurrency"`
}

type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig enables event publishing when Addr is set
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var drivers = []string{"sqlite", "postgres", "mysql", "mongodb"}

// Load reads configuration from file (or the default search path when file
// is empty) and STOREFRONT_ environment variables. A missing config file
// is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.config/storefront")
		v.AddConfigPath(".")
	}

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = filepath.Join(cfg.DataDir, "storefront.db")
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig validates the configuration values
func ValidateConfig(cfg *Config) error {
	validDriver := false
	for _, d := range drivers {
		if cfg.Database.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("database.driver must be one of: %v, got %s", drivers, cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn cannot be empty for driver %s", cfg.Database.Driver)
	}

	if cfg.Builder.BackfillDelay <= 0 {
		return fmt.Errorf("builder.backfill_delay must be positive, got %v", cfg.Builder.BackfillDelay)
	}
	if cfg.Builder.DragGrace <= 0 {
		return fmt.Errorf("builder.drag_grace must be positive, got %v", cfg.Builder.DragGrace)
	}
	if cfg.Builder.HistoryLimit < 1 {
		return fmt.Errorf("builder.history_limit must be >= 1, got %d", cfg.Builder.HistoryLimit)
	}
	if cfg.Sweep.Concurrency < 1 {
		return fmt.Errorf("sweep.concurrency must be >= 1, got %d", cfg.Sweep.Concurrency)
	}
	if cfg.Watch.Interval < 100*time.Millisecond {
		return fmt.Errorf("watch.interval must be at least 100ms, got %v", cfg.Watch.Interval)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: [debug info warn error], got %s", cfg.Log.Level)
	}
	return nil
}

// applyDefaults sets default configuration values
func applyDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "~/.local/share/storefront")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.name", "storefront")

	v.SetDefault("builder.backfill_delay", "500ms")
	v.SetDefault("builder.drag_grace", "100ms")
	v.SetDefault("builder.history_limit", 40)

	v.SetDefault("sweep.schedule", "@every 1h")
	v.SetDefault("sweep.concurrency", 4)

	v.SetDefault("watch.interval", "2s")

	v.SetDefault("http.addr", "127.0.0.1:8420")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "storefront:events")

	v.SetDefault("log.level", "info")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
