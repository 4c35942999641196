package domain

import "time"

// HealthStatus is the state of a single probe
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// SystemStatus is the aggregated state across all probes
type SystemStatus string

const (
	SystemHealthy   SystemStatus = "healthy"
	SystemDegraded  SystemStatus = "degraded"
	SystemUnhealthy SystemStatus = "unhealthy"
)

// HealthCheckResult is a persisted snapshot of one probe run.
type HealthCheckResult struct {
	ID                string         `json:"id"                 db:"id"`
	CheckName         string         `json:"check_name"         db:"check_name"`
	CheckType         string         `json:"check_type"         db:"check_type"`
	Status            HealthStatus   `json:"status"             db:"status"`
	Metrics           map[string]any `json:"metrics,omitempty"  db:"metrics"`
	ThresholdBreached bool           `json:"threshold_breached" db:"threshold_breached"`
	CheckedAt         time.Time      `json:"checked_at"         db:"checked_at"`
}
