package storage

import (
	"context"

	"github.com/remedyops/healer/internal/core/domain"
)

// PatternRepository handles learned healing-pattern storage. Upserts are
// last-write-wins under concurrency; success rates are statistical signals,
// not correctness-critical state.
type PatternRepository interface {
	// Get retrieves a pattern by signature, (nil, nil) when unknown
	Get(ctx context.Context, signature string) (*domain.HealingPattern, error)

	// Upsert records one attempt outcome and returns the updated pattern
	Upsert(
		ctx context.Context,
		signature string,
		sampleMessage string,
		strategy domain.Strategy,
		success bool,
	) (*domain.HealingPattern, error)
}

// EventRepository handles the append-only healing-event log
type EventRepository interface {
	// Create appends one healing event
	Create(ctx context.Context, event *domain.HealingEvent) error

	// GetRecent returns events from the trailing window, newest first
	GetRecent(ctx context.Context, minutes int) ([]*domain.HealingEvent, error)
}

// HealthCheckRepository persists health probe snapshots
type HealthCheckRepository interface {
	// Create persists one probe result
	Create(ctx context.Context, result *domain.HealthCheckResult) error
}
