// Package manager implements the Public API of spec.md §4.H: async,
// cron, use, start, stop, and the read-only query methods. It is the one
// package external callers are expected to import; everything else under
// internal/ is an implementation detail reached only through here.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"github.com/yitter/idgenerator-go/idgen"

	taskcron "github.com/jobs/taskcore/internal/cron"
	"github.com/jobs/taskcore/internal/registry"
	"github.com/jobs/taskcore/internal/scheduler"
	"github.com/jobs/taskcore/internal/storage"
	"github.com/jobs/taskcore/internal/task"
)

var idgenOnce sync.Once

func ensureIDGen() {
	idgenOnce.Do(func() {
		opts := idgen.NewIdGeneratorOptions(1)
		idgen.SetIdGenerator(opts)
	})
}

// Manager is a task-manager instance: one adapter, one registry, one
// scheduler. Multiple Managers may coexist in a process as long as they
// point at distinct databases (spec.md §9 "Global state").
type Manager struct {
	cfg      Config
	adapter  storage.Adapter
	registry *registry.Registry
	sched    *scheduler.Scheduler
	logger   *zap.Logger
}

// New opens the configured database, runs schema setup, and returns a
// Manager ready for Use calls and Start. It does not start the poller.
func New(cfg Config, logger *zap.Logger) (*Manager, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InstanceID == "taskcore-default" {
		ensureIDGen()
		cfg.InstanceID = fmt.Sprintf("taskcore-%s", strconv.FormatInt(idgen.NextId(), 36))
	}

	adapter, err := storage.Open(storage.Config{
		DSN:             cfg.DBConnection,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := adapter.Setup(ctx); err != nil {
		_ = adapter.Close()
		return nil, fmt.Errorf("manager: schema setup: %w", err)
	}

	reg := registry.New()
	sched := scheduler.New(scheduler.Config{
		PollInterval:  cfg.PollInterval,
		MaxConcurrent: cfg.MaxConcurrentTasks,
		InstanceID:    cfg.InstanceID,
	}, adapter, reg, logger)

	return &Manager{
		cfg:      cfg,
		adapter:  adapter,
		registry: reg,
		sched:    sched,
		logger:   logger,
	}, nil
}

// Use registers handler for name (spec.md §4.C). Call before Start.
func (m *Manager) Use(name string, handler registry.Handler) {
	m.registry.Use(name, handler)
}

// Async inserts a one-shot task and returns its assigned id.
func (m *Manager) Async(name string, payload any, opts ...Option) (uint64, error) {
	so := m.resolveOptions(opts)
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("manager: encode payload: %w", err)
	}

	now := time.Now().Unix()
	t := &task.Task{
		Name:          name,
		Type:          task.TypeAsync,
		Status:        task.StatusPending,
		Priority:      so.priority,
		Payload:       body,
		NextRunTime:   now + int64(so.delay.Seconds()),
		Timeout:       int(so.timeout.Seconds()),
		MaxRetries:    so.maxRetries,
		RetryInterval: int(so.retryInterval.Seconds()),
		CreatedAt:     now,
	}
	return m.adapter.Insert(context.Background(), t)
}

// Cron inserts a recurring task, failing synchronously if cronExpr does
// not parse (spec.md §4.G). max_retries is not meaningful for cron tasks
// (invariant 1) and is always stored as 0.
func (m *Manager) Cron(name string, payload any, cronExpr string, opts ...Option) (uint64, error) {
	if err := taskcron.Validate(cronExpr); err != nil {
		return 0, err
	}

	so := m.resolveOptions(opts)
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("manager: encode payload: %w", err)
	}

	now := time.Now().Unix()
	next, err := taskcron.Next(cronExpr, now)
	if err != nil {
		return 0, err
	}

	t := &task.Task{
		Name:        name,
		Type:        task.TypeCron,
		Status:      task.StatusPending,
		Priority:    so.priority,
		Payload:     body,
		CronExpr:    cronExpr,
		NextRunTime: next,
		Timeout:     int(so.timeout.Seconds()),
		MaxRetries:  0,
		CreatedAt:   now,
	}
	return m.adapter.Insert(context.Background(), t)
}

// Start runs abandoned-task recovery and starts the poller and pool
// (spec.md §4.H). Idempotent.
func (m *Manager) Start() error {
	return m.sched.Start(context.Background())
}

// Stop stops the poller, waits for in-flight tasks up to the shutdown
// grace window, then releases the storage connection.
func (m *Manager) Stop() error {
	m.sched.Stop()
	return m.adapter.Close()
}

// GetTask returns the task with the given id.
func (m *Manager) GetTask(id uint64) (*task.Task, error) {
	return m.adapter.GetByID(context.Background(), id)
}

// GetTasksByName returns every task registered under name.
func (m *Manager) GetTasksByName(name string) ([]*task.Task, error) {
	return m.adapter.GetByName(context.Background(), name)
}

// GetTasksByStatus returns every task currently in status.
func (m *Manager) GetTasksByStatus(status task.Status) ([]*task.Task, error) {
	return m.adapter.GetByStatus(context.Background(), status)
}

// ClearTasks truncates the tasks table. Test helper only (spec.md §4.A).
func (m *Manager) ClearTasks() error {
	return m.adapter.ClearTasks(context.Background())
}

func (m *Manager) resolveOptions(opts []Option) submitOptions {
	so := submitOptions{
		priority:      0,
		timeout:       m.cfg.DefaultTimeout,
		maxRetries:    m.cfg.MaxRetries,
		retryInterval: m.cfg.RetryInterval,
	}
	for _, opt := range opts {
		opt(&so)
	}
	if so.timeout <= 0 {
		so.timeout = m.cfg.DefaultTimeout
	}
	return so
}

// DecodePayload JSON-decodes a task's opaque payload blob into out.
// Handlers receive the raw bytes via registry.Context.Payload; callers
// that submitted a structured payload use this (or DecodeResult, for a
// completed task's result) to get it back.
func DecodePayload(payload []byte, out any) error {
	return json.Unmarshal(payload, out)
}

// DecodeResult JSON-decodes a completed task's result blob into out.
func DecodeResult(result []byte, out any) error {
	return json.Unmarshal(result, out)
}
