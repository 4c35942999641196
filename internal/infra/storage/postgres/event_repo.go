package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remedyops/healer/internal/core/domain"
)

// EventRepo implements storage.EventRepository using PostgreSQL.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new PostgreSQL healing event repository.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Create appends one healing event. The analysis and action list are stored
// as JSONB since they are read back whole, never queried by field.
func (r *EventRepo) Create(ctx context.Context, event *domain.HealingEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var analysisJSON []byte
	if event.Analysis != nil {
		data, err := json.Marshal(event.Analysis)
		if err != nil {
			return fmt.Errorf("failed to marshal analysis: %w", err)
		}
		analysisJSON = data
	}

	actionsJSON, err := json.Marshal(event.ActionsTaken)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO healing_events
			(id, event_type, category, source, message, analysis,
			 healing_strategy, actions_taken, healing_result,
			 healing_duration_ms, severity, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		string(event.Category),
		event.Source,
		event.Message,
		analysisJSON,
		string(event.HealingStrategy),
		actionsJSON,
		event.HealingResult,
		event.HealingDurationMs,
		string(event.Severity),
		event.ResolvedAt,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create healing event: %w", err)
	}
	return nil
}

// GetRecent returns events from the trailing window, newest first.
func (r *EventRepo) GetRecent(ctx context.Context, minutes int) ([]*domain.HealingEvent, error) {
	query := `
		SELECT id, event_type, category, source, message, analysis,
		       healing_strategy, actions_taken, healing_result,
		       healing_duration_ms, severity, resolved_at, created_at
		FROM healing_events
		WHERE created_at > NOW() - ($1 * INTERVAL '1 minute')
		ORDER BY created_at DESC
	`

	var rows []struct {
		ID                string     `db:"id"`
		EventType         string     `db:"event_type"`
		Category          string     `db:"category"`
		Source            string     `db:"source"`
		Message           string     `db:"message"`
		Analysis          []byte     `db:"analysis"`
		HealingStrategy   string     `db:"healing_strategy"`
		ActionsTaken      []byte     `db:"actions_taken"`
		HealingResult     string     `db:"healing_result"`
		HealingDurationMs int64      `db:"healing_duration_ms"`
		Severity          string     `db:"severity"`
		ResolvedAt        *time.Time `db:"resolved_at"`
		CreatedAt         time.Time  `db:"created_at"`
	}

	if err := r.db.SelectContext(ctx, &rows, query, minutes); err != nil {
		return nil, fmt.Errorf("failed to get recent healing events: %w", err)
	}

	var events []*domain.HealingEvent
	for _, row := range rows {
		e := &domain.HealingEvent{
			ID:                row.ID,
			EventType:         domain.HealingEventType(row.EventType),
			Category:          domain.ErrorCategory(row.Category),
			Source:            row.Source,
			Message:           row.Message,
			HealingStrategy:   domain.Strategy(row.HealingStrategy),
			HealingResult:     row.HealingResult,
			HealingDurationMs: row.HealingDurationMs,
			Severity:          domain.Severity(row.Severity),
			ResolvedAt:        row.ResolvedAt,
			CreatedAt:         row.CreatedAt,
		}
		if len(row.Analysis) > 0 {
			var analysis domain.AIAnalysis
			if err := json.Unmarshal(row.Analysis, &analysis); err == nil {
				e.Analysis = &analysis
			}
		}
		if len(row.ActionsTaken) > 0 {
			_ = json.Unmarshal(row.ActionsTaken, &e.ActionsTaken)
		}
		events = append(events, e)
	}
	return events, nil
}
