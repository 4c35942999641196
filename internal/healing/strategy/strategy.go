// Package strategy applies one of the fixed recovery strategies against a
// failed operation and records every step it took.
package strategy

import (
	"context"

	"github.com/remedyops/healer/internal/core/domain"
)

// Operation is a caller-supplied callable being healed. Args travel as an
// opaque slice; the operation owns their meaning.
type Operation func(ctx context.Context, args ...any) (any, error)

// Result is the outcome of applying one strategy. ActionsTaken is the
// ordered audit trail persisted on the healing event, appended to whether
// the strategy succeeded or not.
type Result struct {
	Success      bool
	Data         any
	ActionsTaken []string
	Err          error
}

// ResultCache serves previously cached successful results.
type ResultCache interface {
	// Get returns the cached result for a source, (nil, false) on a miss
	Get(ctx context.Context, source string) (any, bool, error)

	// InvalidateNamespace drops every cached result under a source prefix
	InvalidateNamespace(ctx context.Context, namespace string) (int, error)
}

// EndpointSwitcher derives a context carrying the secondary endpoint
// configuration for a source, when one exists.
type EndpointSwitcher interface {
	Secondary(ctx context.Context, source string) (context.Context, bool)
}

// ConnectionResetter force-recycles the connection pool behind a category.
type ConnectionResetter interface {
	Reset(ctx context.Context, category domain.ErrorCategory) error
}

// TxRollbacker signals rollback of the current transactional context.
type TxRollbacker interface {
	Rollback(ctx context.Context, source string) error
}

// RetryQueue accepts fire-and-forget background re-invocations.
type RetryQueue interface {
	Enqueue(source string, op Operation, args []any) error
}
