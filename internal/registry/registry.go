// Package registry holds the mapping from task name to handler function
// (spec.md §4.C) and the Context handlers receive when invoked.
package registry

import (
	"context"
	"sync"
)

// Handler is user code registered against a task name. It receives a
// Context carrying the task's identity, payload, and cancellation signal,
// and returns either a JSON-serializable success value or an error.
type Handler func(ctx *Context) (any, error)

// Context is passed to a handler on every invocation. checkTimeout gives
// handlers a way to cooperatively observe the worker pool's deadline
// without needing to select on a channel themselves; Context() is offered
// alongside it for handlers written in the more common ctx.Done() idiom.
type Context struct {
	ID       uint64
	Name     string
	Payload  []byte
	Priority int

	ctx        context.Context
	deadline   func() bool
}

// NewContext builds a handler Context. deadlineFn reports true once the
// task's execution budget has elapsed; it is supplied by the worker pool.
func NewContext(ctx context.Context, id uint64, name string, payload []byte, priority int, deadlineFn func() bool) *Context {
	return &Context{
		ID:       id,
		Name:     name,
		Payload:  payload,
		Priority: priority,
		ctx:      ctx,
		deadline: deadlineFn,
	}
}

// Context returns the underlying context.Context, cancelled when the
// worker pool's timeout fires. Stopping the manager does not cancel it.
func (c *Context) Context() context.Context {
	return c.ctx
}

// CheckTimeout aborts the handler with context.DeadlineExceeded if the
// task's deadline has already passed. Handlers that do long synchronous
// work without suspending on ctx.Done() should call this periodically;
// it is the cooperative half of the pool's cancellation contract
// described in spec.md §4.E and §5.
func (c *Context) CheckTimeout() error {
	if c.deadline != nil && c.deadline() {
		return context.DeadlineExceeded
	}
	return c.ctx.Err()
}

// Registry is a read-mostly name -> Handler map. Registrations should
// happen before Start(); concurrent Use/Lookup calls are still safe.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Use registers handler for name. The last registration for a given name
// wins, matching spec.md §4.C.
func (r *Registry) Use(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Lookup returns the handler registered for name, or nil if none exists.
func (r *Registry) Lookup(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[name]
}
