package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	EndpointsFile string `mapstructure:"endpoints_file"`

	DefaultTimeoutMS int64         `mapstructure:"default_timeout_ms"`
	DefaultTimeout   time.Duration `mapstructure:"-"`

	HistoryType           string        `mapstructure:"history_type"`
	HistoryPath           string        `mapstructure:"history_path"`
	HistoryTTLSeconds     int64         `mapstructure:"history_ttl_seconds"`
	HistoryCleanupSeconds int64         `mapstructure:"history_cleanup_interval_seconds"`
	HistoryTTL            time.Duration `mapstructure:"-"`
	HistoryCleanup        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-rpc")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "warn")
	v.SetDefault("endpoints_file", "")
	v.SetDefault("default_timeout_ms", 5000)
	v.SetDefault("history_type", "none")
	v.SetDefault("history_path", "./data/history.db")
	v.SetDefault("history_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("history_cleanup_interval_seconds", int64((24*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DefaultTimeoutMS <= 0 {
		return nil, fmt.Errorf("invalid default_timeout_ms (must be positive milliseconds)")
	}
	cfg.DefaultTimeout = time.Duration(cfg.DefaultTimeoutMS) * time.Millisecond

	if cfg.HistoryTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid history_ttl_seconds (must be positive seconds)")
	}
	if cfg.HistoryCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid history_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.HistoryTTL = time.Duration(cfg.HistoryTTLSeconds) * time.Second
	cfg.HistoryCleanup = time.Duration(cfg.HistoryCleanupSeconds) * time.Second

	return &cfg, nil
}
