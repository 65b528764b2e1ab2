package manager

import "time"

// Option configures a single call to Async or Cron, overriding the
// manager's configured defaults (spec.md §4.H).
type Option func(*submitOptions)

type submitOptions struct {
	priority      int
	delay         time.Duration
	timeout       time.Duration
	maxRetries    int
	retryInterval time.Duration
}

// Priority sets the task's priority; larger is more urgent.
func Priority(p int) Option {
	return func(o *submitOptions) { o.priority = p }
}

// Delay sets how long to wait before the task first becomes ready.
func Delay(d time.Duration) Option {
	return func(o *submitOptions) { o.delay = d }
}

// Timeout overrides the per-task execution budget.
func Timeout(d time.Duration) Option {
	return func(o *submitOptions) { o.timeout = d }
}

// MaxRetries overrides the upper bound on retries for an async task.
// Ignored for cron tasks (spec.md invariant 1).
func MaxRetries(n int) Option {
	return func(o *submitOptions) { o.maxRetries = n }
}

// RetryInterval overrides the base backoff between retries.
func RetryInterval(d time.Duration) Option {
	return func(o *submitOptions) { o.retryInterval = d }
}
