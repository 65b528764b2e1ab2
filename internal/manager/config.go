package manager

import "time"

// Config is the constructor contract from spec.md §6. Per-task options
// passed to Async/Cron override these defaults.
type Config struct {
	DBConnection       string
	PollInterval       time.Duration
	MaxConcurrentTasks int
	MaxRetries         int
	RetryInterval      time.Duration
	DefaultTimeout     time.Duration
	InstanceID         string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = 5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 60 * time.Second
	}
	if c.InstanceID == "" {
		c.InstanceID = "taskcore-default"
	}
	return c
}
