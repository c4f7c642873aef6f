package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Config holds all runtime configuration for a buildgraph session.
// Values are populated from .buildgraph.yaml, BUILDGRAPH_* env vars, and CLI flags.
type Config struct {
	Database      string    `mapstructure:"database"`
	Journal       string    `mapstructure:"journal"`
	Catalog       string    `mapstructure:"catalog"`
	NameCacheSize int       `mapstructure:"name_cache_size"`
	Verbose       bool      `mapstructure:"verbose"`
	Log           LogConfig `mapstructure:"log"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("database", "build.bgdb")
	viper.SetDefault("journal", ".buildgraph/journal.jsonl")
	viper.SetDefault("catalog", "packages.toml")
	viper.SetDefault("name_cache_size", 4096)
	viper.SetDefault("verbose", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stderr")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.NameCacheSize <= 0 {
		return Config{}, fmt.Errorf("config: name_cache_size must be positive, got %d", cfg.NameCacheSize)
	}
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
