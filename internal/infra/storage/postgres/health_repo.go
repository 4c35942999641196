package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remedyops/healer/internal/core/domain"
)

// HealthCheckRepo implements storage.HealthCheckRepository using PostgreSQL.
type HealthCheckRepo struct {
	db *DB
}

// NewHealthCheckRepo creates a new PostgreSQL health check repository.
func NewHealthCheckRepo(db *DB) *HealthCheckRepo {
	return &HealthCheckRepo{db: db}
}

// Create persists one probe snapshot.
func (r *HealthCheckRepo) Create(ctx context.Context, result *domain.HealthCheckResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CheckedAt.IsZero() {
		result.CheckedAt = time.Now()
	}

	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal probe metrics: %w", err)
	}

	query := `
		INSERT INTO health_checks
			(id, check_name, check_type, status, metrics, threshold_breached, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		result.ID,
		result.CheckName,
		result.CheckType,
		string(result.Status),
		metricsJSON,
		result.ThresholdBreached,
		result.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create health check: %w", err)
	}
	return nil
}
