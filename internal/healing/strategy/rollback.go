package strategy

import (
	"context"
	"fmt"
	"sync"
)

// RollbackFunc undoes the in-flight transactional work of one source.
type RollbackFunc func(ctx context.Context) error

// RollbackRegistry dispatches ROLLBACK_TRANSACTION to handlers that call
// sites register for their sources. The engine cannot reach into a
// caller's transaction, so owners opt in.
type RollbackRegistry struct {
	mu       sync.RWMutex
	handlers map[string]RollbackFunc
}

func NewRollbackRegistry() *RollbackRegistry {
	return &RollbackRegistry{handlers: make(map[string]RollbackFunc)}
}

// Register installs the rollback handler for a source, replacing any
// previous one.
func (r *RollbackRegistry) Register(source string, fn RollbackFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[source] = fn
}

// Unregister removes the handler for a source.
func (r *RollbackRegistry) Unregister(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, source)
}

// Rollback invokes the handler registered for the source.
func (r *RollbackRegistry) Rollback(ctx context.Context, source string) error {
	r.mu.RLock()
	fn, ok := r.handlers[source]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no rollback handler registered for %s", source)
	}
	return fn(ctx)
}
