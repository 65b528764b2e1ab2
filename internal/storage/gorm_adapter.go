package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jobs/taskcore/internal/task"
)

// Config configures the GORM-backed adapter. DSN determines the engine
// via EngineFromDSN (SPEC_FULL.md §6).
type Config struct {
	DSN                   string
	MaxOpenConns          int
	MaxIdleConns          int
	ConnMaxLifetime       time.Duration
}

// gormAdapter is the single Adapter implementation, satisfying Adapter
// against sqlite, mysql, or postgres depending on which driver Open
// selected. It mirrors the teacher's storage.Storage wrapping *gorm.DB,
// generalized to three engines instead of one.
type gormAdapter struct {
	db     *gorm.DB
	engine Engine
	logger *zap.Logger

	// claimMu serializes claims on engines without SKIP LOCKED support
	// (sqlite). Unused, and left nil, for mysql/postgres.
	claimMu *sync.Mutex
}

// Open connects to the database identified by cfg.DSN, selecting the
// driver by scheme, and configures the pool the way the teacher's
// storage.New does for MySQL.
func Open(cfg Config, logger *zap.Logger) (Adapter, error) {
	engine, err := EngineFromDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch engine {
	case EngineSQLite:
		dialector = sqlite.Open(StripScheme(cfg.DSN))
	case EngineMySQL:
		dialector = mysql.Open(StripScheme(cfg.DSN))
	case EnginePostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("storage: unsupported engine %q", engine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open %s: %w", engine, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("storage: failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	a := &gormAdapter{db: db, engine: engine, logger: logger}
	if engine == EngineSQLite {
		a.claimMu = &sync.Mutex{}
	}
	return a, nil
}

func (a *gormAdapter) Setup(ctx context.Context) error {
	return a.db.WithContext(ctx).AutoMigrate(&taskPO{})
}

func (a *gormAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (a *gormAdapter) Insert(ctx context.Context, t *task.Task) (uint64, error) {
	po := fromDomain(t)
	po.ID = 0
	po.Status = string(task.StatusPending)
	if err := a.db.WithContext(ctx).Create(po).Error; err != nil {
		return 0, fmt.Errorf("storage: insert: %w", err)
	}
	return po.ID, nil
}

// ClaimReady is the one operation whose concurrency strategy differs by
// engine (spec.md §4.A, §9). MySQL/Postgres lean on row-level locking;
// sqlite, which has no such clause, serializes through claimMu so that two
// workers in one process never observe (and claim) the same row twice.
func (a *gormAdapter) ClaimReady(ctx context.Context, now int64, limit int, instanceID string) ([]*task.Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	if a.claimMu != nil {
		a.claimMu.Lock()
		defer a.claimMu.Unlock()
	}

	var claimed []*task.Task
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pos []taskPO
		q := tx.Model(&taskPO{}).
			Where("status = ? AND next_run_time <= ?", string(task.StatusPending), now).
			Order("next_run_time ASC, priority DESC, id ASC").
			Limit(limit)

		if a.engine != EngineSQLite {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		if err := q.Find(&pos).Error; err != nil {
			return fmt.Errorf("select ready: %w", err)
		}
		if len(pos) == 0 {
			return nil
		}

		ids := make([]uint64, len(pos))
		for i := range pos {
			ids[i] = pos[i].ID
			pos[i].Status = string(task.StatusRunning)
			pos[i].LastActive = now
			pos[i].RetryCount++
			pos[i].LockedBy = instanceID
		}

		if err := tx.Model(&taskPO{}).Where("id IN ?", ids).Updates(map[string]any{
			"status":      string(task.StatusRunning),
			"last_active": now,
			"retry_count": gorm.Expr("retry_count + 1"),
			"locked_by":   instanceID,
		}).Error; err != nil {
			return fmt.Errorf("mark running: %w", err)
		}

		claimed = make([]*task.Task, len(pos))
		for i := range pos {
			claimed[i] = pos[i].toDomain()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: claim ready: %w", err)
	}
	return claimed, nil
}

func (a *gormAdapter) Complete(ctx context.Context, id uint64, result []byte, cronReschedule bool, nextRunTime int64) error {
	updates := map[string]any{
		"result":   result,
		"error":    "",
		"locked_by": "",
	}
	if cronReschedule {
		updates["status"] = string(task.StatusPending)
		updates["next_run_time"] = nextRunTime
		updates["retry_count"] = 0
	} else {
		updates["status"] = string(task.StatusCompleted)
	}
	res := a.db.WithContext(ctx).Model(&taskPO{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("storage: complete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (a *gormAdapter) Fail(ctx context.Context, id uint64, errMsg string, nextStatus task.Status, nextRunTime int64) error {
	updates := map[string]any{
		"status":    string(nextStatus),
		"error":     errMsg,
		"locked_by": "",
	}
	if nextStatus == task.StatusPending {
		updates["next_run_time"] = nextRunTime
		// A cron row going back to pending starts its next occurrence with
		// a fresh attempt count, exactly as a successful reschedule does.
		updates["retry_count"] = gorm.Expr("CASE WHEN type = ? THEN 0 ELSE retry_count END", string(task.TypeCron))
	}
	res := a.db.WithContext(ctx).Model(&taskPO{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("storage: fail: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (a *gormAdapter) ResetAbandoned(ctx context.Context, now int64) (int, error) {
	res := a.db.WithContext(ctx).Model(&taskPO{}).
		Where("status = ?", string(task.StatusRunning)).
		Updates(map[string]any{
			"status":        string(task.StatusPending),
			"next_run_time": now,
			"locked_by":     "",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("storage: reset abandoned: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (a *gormAdapter) GetByID(ctx context.Context, id uint64) (*task.Task, error) {
	var po taskPO
	if err := a.db.WithContext(ctx).First(&po, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("storage: get by id: %w", err)
	}
	return po.toDomain(), nil
}

func (a *gormAdapter) GetByName(ctx context.Context, name string) ([]*task.Task, error) {
	var pos []taskPO
	if err := a.db.WithContext(ctx).Where("name = ?", name).Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("storage: get by name: %w", err)
	}
	return toDomainSlice(pos), nil
}

func (a *gormAdapter) GetByStatus(ctx context.Context, status task.Status) ([]*task.Task, error) {
	var pos []taskPO
	if err := a.db.WithContext(ctx).Where("status = ?", string(status)).Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("storage: get by status: %w", err)
	}
	return toDomainSlice(pos), nil
}

func (a *gormAdapter) ClearTasks(ctx context.Context) error {
	return a.db.WithContext(ctx).Exec("DELETE FROM tasks").Error
}

func toDomainSlice(pos []taskPO) []*task.Task {
	out := make([]*task.Task, len(pos))
	for i := range pos {
		out[i] = pos[i].toDomain()
	}
	return out
}
