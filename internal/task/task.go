package task

import "time"

// Task is the canonical, storage-agnostic representation of a row in the
// tasks table (spec.md §3). Adapters translate between this and their own
// persistence objects; the scheduler, worker pool, and retry policy only
// ever see this type.
type Task struct {
	ID          uint64
	Name        string
	Type        Type
	Status      Status
	Priority    int
	Payload     []byte // opaque, JSON-encoded by convention
	CronExpr    string
	NextRunTime int64 // unix seconds
	LastActive  int64 // unix seconds
	Timeout     int   // seconds
	RetryCount  int
	MaxRetries  int
	RetryInterval int // seconds
	CreatedAt   int64
	Result      []byte
	Error       string
	LockedBy    string // diagnostic only, see SPEC_FULL.md §3
}

// Options lists the per-task submission settings. The manager's Async and
// Cron take manager.Option values instead; nothing in this module reads an
// Options value or applies defaults to it.
type Options struct {
	Priority      int
	Delay         time.Duration
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// AttemptsAllowed is the total number of attempts a task may make,
// including the first: max_retries + 1 (spec.md §3, field max_retries).
func (t *Task) AttemptsAllowed() int {
	return t.MaxRetries + 1
}

// Attempts is how many times the task has actually run so far, including
// the current in-flight attempt once claimed.
func (t *Task) Attempts() int {
	return t.RetryCount
}

// Ready reports whether the task is eligible for claim at the given time.
func (t *Task) Ready(now int64) bool {
	return t.Status == StatusPending && t.NextRunTime <= now
}
