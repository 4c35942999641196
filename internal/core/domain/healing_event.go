package domain

import "time"

// HealingEventType marks the outcome of an orchestration run
type HealingEventType string

const (
	EventHealingSuccess HealingEventType = "healing_success"
	EventHealingFailed  HealingEventType = "healing_failed"
)

// HealingEvent is the append-only audit record of one orchestration run.
// Exactly one is written per run, immutable once written.
type HealingEvent struct {
	ID                string           `json:"id"                  db:"id"`
	EventType         HealingEventType `json:"event_type"          db:"event_type"`
	Category          ErrorCategory    `json:"category"            db:"category"`
	Source            string           `json:"source"              db:"source"`
	Message           string           `json:"message"             db:"message"`
	Analysis          *AIAnalysis      `json:"analysis,omitempty"  db:"analysis"`
	HealingStrategy   Strategy         `json:"healing_strategy"    db:"healing_strategy"`
	ActionsTaken      []string         `json:"actions_taken"       db:"actions_taken"`
	HealingResult     string           `json:"healing_result"      db:"healing_result"`
	HealingDurationMs int64            `json:"healing_duration_ms" db:"healing_duration_ms"`
	Severity          Severity         `json:"severity"            db:"severity"`
	ResolvedAt        *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt         time.Time        `json:"created_at"          db:"created_at"`
}
