// Package cron wraps robfig/cron's standard parser to give the scheduler a
// pure cronNext function, rather than the teacher's model of registering a
// long-running ticking job. The core recomputes the next occurrence
// synchronously whenever a cron task completes (spec.md §4.G) rather than
// letting an independent cron goroutine drive dispatch.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobs/taskcore/internal/task"
)

// Validate parses expr and returns task.ErrInvalidCron wrapped with the
// underlying parser error if it is malformed. Used by the public API to
// fail cron() synchronously (spec.md §4.G).
func Validate(expr string) error {
	_, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", task.ErrInvalidCron, expr, err)
	}
	return nil
}

// Next returns the smallest epoch second strictly greater than fromEpoch
// that matches expr.
func Next(expr string, fromEpoch int64) (int64, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", task.ErrInvalidCron, expr, err)
	}
	from := time.Unix(fromEpoch, 0).UTC()
	next := schedule.Next(from)
	return next.Unix(), nil
}
