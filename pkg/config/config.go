// Package config loads typed configuration with viper, the same
// SetDefault-then-Unmarshal idiom the teacher uses in pkg/config.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for cmd/taskcore.
type Config struct {
	Task   TaskManagerConfig `mapstructure:"task_manager"`
	Server ServerConfig      `mapstructure:"server"`
	Log    LogConfig         `mapstructure:"log"`
}

// TaskManagerConfig mirrors the constructor contract of spec.md §6.
type TaskManagerConfig struct {
	DBConnection       string        `mapstructure:"db_connection"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryInterval      time.Duration `mapstructure:"retry_interval"`
	DefaultTimeout     time.Duration `mapstructure:"default_timeout"`
	InstanceID         string        `mapstructure:"instance_id"`
}

// ServerConfig configures the optional inspection HTTP surface
// (SPEC_FULL.md §4.K). Enabled defaults to false: the core has no network
// surface unless a caller opts in.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configPath (YAML) into a Config, applying the same defaults
// spec.md §6 names for the task manager's constructor.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("task_manager.db_connection", "sqlite://taskcore.db")
	viper.SetDefault("task_manager.poll_interval", "1s")
	viper.SetDefault("task_manager.max_concurrent_tasks", 5)
	viper.SetDefault("task_manager.max_retries", 3)
	viper.SetDefault("task_manager.retry_interval", "0s")
	viper.SetDefault("task_manager.default_timeout", "60s")

	viper.SetDefault("server.enabled", false)
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
