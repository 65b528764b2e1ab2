// Package storage implements the relational persistence contract described
// in spec.md §4.A on top of gorm.io/gorm, selecting a driver from the
// connection string's scheme (see SPEC_FULL.md §6).
package storage

import (
	"context"

	"github.com/jobs/taskcore/internal/task"
)

// Adapter is the narrow contract every engine-specific backend satisfies.
// The scheduler, worker pool, and public API depend only on this
// interface, never on gorm directly.
type Adapter interface {
	// Setup performs idempotent schema creation.
	Setup(ctx context.Context) error

	// Insert assigns an id, persists t with status=pending, and returns
	// the assigned id.
	Insert(ctx context.Context, t *task.Task) (uint64, error)

	// ClaimReady atomically selects up to limit ready rows (status=pending,
	// next_run_time<=now), ordered next_run_time ASC, priority DESC, id ASC,
	// marks them running in the same transaction, and stamps locked_by with
	// instanceID for diagnostic visibility into which process holds a row.
	ClaimReady(ctx context.Context, now int64, limit int, instanceID string) ([]*task.Task, error)

	// Complete marks an async task completed with result, or (for a cron
	// task) reschedules it to pending with the given nextRunTime.
	Complete(ctx context.Context, id uint64, result []byte, cronReschedule bool, nextRunTime int64) error

	// Fail transitions a failed/timed-out task to nextStatus (pending for
	// retry, permanently_failed once retries are exhausted), persisting
	// errMsg and, for a retry, nextRunTime. A cron task sent back to
	// pending also has its retry_count reset to 0.
	Fail(ctx context.Context, id uint64, errMsg string, nextStatus task.Status, nextRunTime int64) error

	// ResetAbandoned resets every row left running from a prior process to
	// pending with next_run_time=now, for abandoned-task recovery on
	// start() (spec.md §4.D). It returns the number of rows reset.
	ResetAbandoned(ctx context.Context, now int64) (int, error)

	GetByID(ctx context.Context, id uint64) (*task.Task, error)
	GetByName(ctx context.Context, name string) ([]*task.Task, error)
	GetByStatus(ctx context.Context, status task.Status) ([]*task.Task, error)

	// ClearTasks truncates the tasks table. Test helper only.
	ClearTasks(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
