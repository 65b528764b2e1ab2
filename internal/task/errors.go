package task

import "errors"

// ErrNoHandler indicates a task's name has no registered handler. Per
// spec.md §4.E this is a permanent failure, never retried.
var ErrNoHandler = errors.New("task: no handler registered for name")

// ErrInvalidTransition indicates code attempted to move a task between
// two states the FSM does not allow.
var ErrInvalidTransition = errors.New("task: invalid state transition")

// ErrInvalidCron indicates a cron expression failed to parse.
var ErrInvalidCron = errors.New("task: invalid cron expression")

// ErrTimeout is the synthesized error stored on a task whose handler did
// not return before its deadline elapsed.
var ErrTimeout = errors.New("task: execution timed out")

// ErrNotFound indicates a query by id found no matching row.
var ErrNotFound = errors.New("task: not found")
