package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/remedyops/healer/internal/core/domain"
)

// Store is an in-memory implementation of the storage repositories, used
// when no database is configured and throughout the test suite.
type Store struct {
	patterns map[string]*domain.HealingPattern
	events   []*domain.HealingEvent
	checks   []*domain.HealthCheckResult
	mu       sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		patterns: make(map[string]*domain.HealingPattern),
	}
}

// -----------------------------------------------------------------------------
// Pattern Repository
// -----------------------------------------------------------------------------

type PatternRepo struct {
	store *Store
}

func NewPatternRepo(store *Store) *PatternRepo {
	return &PatternRepo{store: store}
}

func (r *PatternRepo) Get(ctx context.Context, sig string) (*domain.HealingPattern, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.patterns[sig]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *PatternRepo) Upsert(
	ctx context.Context,
	sig string,
	sampleMessage string,
	strategy domain.Strategy,
	success bool,
) (*domain.HealingPattern, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.patterns[sig]
	if !ok {
		p = &domain.HealingPattern{
			Signature:     sig,
			SampleMessage: sampleMessage,
		}
		r.store.patterns[sig] = p
	}
	p.RecommendedStrategy = strategy
	p.Reinforce(success)

	cp := *p
	return &cp, nil
}

// -----------------------------------------------------------------------------
// Event Repository
// -----------------------------------------------------------------------------

type EventRepo struct {
	store *Store
}

func NewEventRepo(store *Store) *EventRepo {
	return &EventRepo{store: store}
}

func (r *EventRepo) Create(ctx context.Context, event *domain.HealingEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	cp := *event
	r.store.events = append(r.store.events, &cp)
	return nil
}

func (r *EventRepo) GetRecent(ctx context.Context, minutes int) ([]*domain.HealingEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)
	var out []*domain.HealingEvent
	for i := len(r.store.events) - 1; i >= 0; i-- {
		e := r.store.events[i]
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Health Check Repository
// -----------------------------------------------------------------------------

type HealthCheckRepo struct {
	store *Store
}

func NewHealthCheckRepo(store *Store) *HealthCheckRepo {
	return &HealthCheckRepo{store: store}
}

func (r *HealthCheckRepo) Create(ctx context.Context, result *domain.HealthCheckResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CheckedAt.IsZero() {
		result.CheckedAt = time.Now()
	}
	cp := *result
	r.store.checks = append(r.store.checks, &cp)
	return nil
}

// Checks returns all persisted probe snapshots (test helper).
func (s *Store) Checks() []*domain.HealthCheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.HealthCheckResult, len(s.checks))
	copy(out, s.checks)
	return out
}

// Events returns all persisted healing events (test helper).
func (s *Store) Events() []*domain.HealingEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.HealingEvent, len(s.events))
	copy(out, s.events)
	return out
}
