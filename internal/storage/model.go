package storage

import (
	"github.com/jobs/taskcore/internal/task"
)

// taskPO is the GORM persistence object for the tasks table (spec.md §6).
// The core FSM/scheduler/worker code never sees this type; only the
// adapter translates between it and task.Task.
type taskPO struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"size:255;not null;index:idx_name"`
	Type          string `gorm:"size:16;not null"`
	Status        string `gorm:"size:32;not null;index:idx_status_priority_next"`
	Priority      int    `gorm:"not null;default:0;index:idx_status_priority_next"`
	Payload       []byte `gorm:"type:text"`
	CronExpr      string `gorm:"size:100"`
	NextRunTime   int64  `gorm:"not null;index:idx_status_priority_next"`
	LastActive    int64  `gorm:"not null;default:0"`
	Timeout       int    `gorm:"not null;default:60"`
	RetryCount    int    `gorm:"not null;default:0"`
	MaxRetries    int    `gorm:"not null"`
	RetryInterval int    `gorm:"not null;default:0"`
	CreatedAt     int64  `gorm:"not null"`
	Result        []byte `gorm:"type:text"`
	Error         string `gorm:"type:text"`
	LockedBy      string `gorm:"size:128"`
}

func (taskPO) TableName() string {
	return "tasks"
}

func fromDomain(t *task.Task) *taskPO {
	return &taskPO{
		ID:            t.ID,
		Name:          t.Name,
		Type:          string(t.Type),
		Status:        string(t.Status),
		Priority:      t.Priority,
		Payload:       t.Payload,
		CronExpr:      t.CronExpr,
		NextRunTime:   t.NextRunTime,
		LastActive:    t.LastActive,
		Timeout:       t.Timeout,
		RetryCount:    t.RetryCount,
		MaxRetries:    t.MaxRetries,
		RetryInterval: t.RetryInterval,
		CreatedAt:     t.CreatedAt,
		Result:        t.Result,
		Error:         t.Error,
		LockedBy:      t.LockedBy,
	}
}

func (p *taskPO) toDomain() *task.Task {
	return &task.Task{
		ID:            p.ID,
		Name:          p.Name,
		Type:          task.Type(p.Type),
		Status:        task.Status(p.Status),
		Priority:      p.Priority,
		Payload:       p.Payload,
		CronExpr:      p.CronExpr,
		NextRunTime:   p.NextRunTime,
		LastActive:    p.LastActive,
		Timeout:       p.Timeout,
		RetryCount:    p.RetryCount,
		MaxRetries:    p.MaxRetries,
		RetryInterval: p.RetryInterval,
		CreatedAt:     p.CreatedAt,
		Result:        p.Result,
		Error:         p.Error,
		LockedBy:      p.LockedBy,
	}
}
