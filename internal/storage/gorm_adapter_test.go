package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobs/taskcore/internal/task"
)

func newTestAdapter(t *testing.T) Adapter {
	t.Helper()
	dsn := fmt.Sprintf("sqlite://%s", filepath.Join(t.TempDir(), "test.db"))
	a, err := Open(Config{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Setup(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestGormAdapter_InsertAndGetByID(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	id, err := a.Insert(ctx, &task.Task{
		Name:        "t1",
		Type:        task.TypeAsync,
		Status:      task.StatusPending,
		NextRunTime: 100,
		MaxRetries:  3,
		CreatedAt:   1,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := a.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "t1", got.Name)
	require.Equal(t, task.StatusPending, got.Status)
}

func TestGormAdapter_GetByID_NotFound(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.GetByID(context.Background(), 999999)
	require.ErrorIs(t, err, task.ErrNotFound)
}

func TestGormAdapter_ClaimReady_RespectsOrdering(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	// Same next_run_time: higher priority claimed first.
	lowID, err := a.Insert(ctx, &task.Task{Name: "low", Type: task.TypeAsync, NextRunTime: 100, Priority: 0, CreatedAt: 1})
	require.NoError(t, err)
	highID, err := a.Insert(ctx, &task.Task{Name: "high", Type: task.TypeAsync, NextRunTime: 100, Priority: 10, CreatedAt: 1})
	require.NoError(t, err)
	// Later-ready task, even at high priority, is claimed after the two above.
	laterID, err := a.Insert(ctx, &task.Task{Name: "later", Type: task.TypeAsync, NextRunTime: 200, Priority: 100, CreatedAt: 1})
	require.NoError(t, err)

	claimed, err := a.ClaimReady(ctx, 100, 10, "instance-1")
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.Equal(t, highID, claimed[0].ID)
	require.Equal(t, lowID, claimed[1].ID)
	for _, c := range claimed {
		require.Equal(t, task.StatusRunning, c.Status)
		require.Equal(t, "instance-1", c.LockedBy)
		require.Equal(t, 1, c.RetryCount)
	}

	notYet, err := a.ClaimReady(ctx, 150, 10, "instance-1")
	require.NoError(t, err)
	require.Empty(t, notYet)

	ready, err := a.ClaimReady(ctx, 200, 10, "instance-1")
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.Equal(t, laterID, ready[0].ID)
}

func TestGormAdapter_ClaimReady_LimitRespected(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := a.Insert(ctx, &task.Task{Name: "n", Type: task.TypeAsync, NextRunTime: 1, CreatedAt: 1})
		require.NoError(t, err)
	}
	claimed, err := a.ClaimReady(ctx, 1, 2, "instance-1")
	require.NoError(t, err)
	require.Len(t, claimed, 2)
}

func TestGormAdapter_Complete_Async(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	id, err := a.Insert(ctx, &task.Task{Name: "t", Type: task.TypeAsync, NextRunTime: 1, CreatedAt: 1})
	require.NoError(t, err)
	_, err = a.ClaimReady(ctx, 1, 10, "instance-1")
	require.NoError(t, err)

	require.NoError(t, a.Complete(ctx, id, []byte(`"ok"`), false, 0))

	got, err := a.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, got.Status)
	require.Equal(t, []byte(`"ok"`), got.Result)
	require.Empty(t, got.LockedBy)
}

func TestGormAdapter_Complete_CronReschedules(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	id, err := a.Insert(ctx, &task.Task{Name: "t", Type: task.TypeCron, CronExpr: "@every 1m", NextRunTime: 1, CreatedAt: 1})
	require.NoError(t, err)
	_, err = a.ClaimReady(ctx, 1, 10, "instance-1")
	require.NoError(t, err)

	require.NoError(t, a.Complete(ctx, id, nil, true, 500))

	got, err := a.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, task.StatusPending, got.Status)
	require.EqualValues(t, 500, got.NextRunTime)
	require.Zero(t, got.RetryCount)
}

func TestGormAdapter_Fail_RetryThenPermanent(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	id, err := a.Insert(ctx, &task.Task{Name: "t", Type: task.TypeAsync, NextRunTime: 1, MaxRetries: 1, CreatedAt: 1})
	require.NoError(t, err)

	_, err = a.ClaimReady(ctx, 1, 10, "instance-1")
	require.NoError(t, err)
	require.NoError(t, a.Fail(ctx, id, "boom", task.StatusPending, 50))

	got, err := a.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, task.StatusPending, got.Status)
	require.Equal(t, "boom", got.Error)
	require.EqualValues(t, 50, got.NextRunTime)

	_, err = a.ClaimReady(ctx, 50, 10, "instance-1")
	require.NoError(t, err)
	require.NoError(t, a.Fail(ctx, id, "boom again", task.StatusPermanentlyFailed, 0))

	got, err = a.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, task.StatusPermanentlyFailed, got.Status)
}

func TestGormAdapter_ResetAbandoned(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	id, err := a.Insert(ctx, &task.Task{Name: "t", Type: task.TypeAsync, NextRunTime: 1, CreatedAt: 1})
	require.NoError(t, err)
	_, err = a.ClaimReady(ctx, 1, 10, "instance-1")
	require.NoError(t, err)

	n, err := a.ResetAbandoned(ctx, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := a.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, task.StatusPending, got.Status)
	require.EqualValues(t, 1000, got.NextRunTime)
	require.Empty(t, got.LockedBy)
}

func TestGormAdapter_GetByNameAndStatus(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	_, err := a.Insert(ctx, &task.Task{Name: "alpha", Type: task.TypeAsync, NextRunTime: 1, CreatedAt: 1})
	require.NoError(t, err)
	_, err = a.Insert(ctx, &task.Task{Name: "alpha", Type: task.TypeAsync, NextRunTime: 1, CreatedAt: 1})
	require.NoError(t, err)
	_, err = a.Insert(ctx, &task.Task{Name: "beta", Type: task.TypeAsync, NextRunTime: 1, CreatedAt: 1})
	require.NoError(t, err)

	byName, err := a.GetByName(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, byName, 2)

	byStatus, err := a.GetByStatus(ctx, task.StatusPending)
	require.NoError(t, err)
	require.Len(t, byStatus, 3)
}

func TestGormAdapter_ClearTasks(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	_, err := a.Insert(ctx, &task.Task{Name: "t", Type: task.TypeAsync, NextRunTime: 1, CreatedAt: 1})
	require.NoError(t, err)

	require.NoError(t, a.ClearTasks(ctx))

	all, err := a.GetByStatus(ctx, task.StatusPending)
	require.NoError(t, err)
	require.Empty(t, all)
}
