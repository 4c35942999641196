package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/remedyops/healer/internal/core/domain"
)

// PatternRepo implements storage.PatternRepository using PostgreSQL.
type PatternRepo struct {
	db *DB
}

// NewPatternRepo creates a new PostgreSQL pattern repository.
func NewPatternRepo(db *DB) *PatternRepo {
	return &PatternRepo{db: db}
}

type patternRow struct {
	Signature           string  `db:"signature"`
	SampleMessage       string  `db:"sample_message"`
	RecommendedStrategy string  `db:"recommended_strategy"`
	SuccessRate         float64 `db:"success_rate"`
	TimesAttempted      int     `db:"times_attempted"`
	TimesSucceeded      int     `db:"times_succeeded"`
}

func (row patternRow) toDomain() *domain.HealingPattern {
	return &domain.HealingPattern{
		Signature:           row.Signature,
		SampleMessage:       row.SampleMessage,
		RecommendedStrategy: domain.Strategy(row.RecommendedStrategy),
		SuccessRate:         row.SuccessRate,
		TimesAttempted:      row.TimesAttempted,
		TimesSucceeded:      row.TimesSucceeded,
	}
}

// Get returns the pattern for a signature, (nil, nil) when unknown.
func (r *PatternRepo) Get(ctx context.Context, sig string) (*domain.HealingPattern, error) {
	query := `
		SELECT signature, sample_message, recommended_strategy,
		       success_rate, times_attempted, times_succeeded
		FROM healing_patterns
		WHERE signature = $1
	`

	var row patternRow
	err := r.db.GetContext(ctx, &row, query, sig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get healing pattern: %w", err)
	}
	return row.toDomain(), nil
}

// Upsert records one attempt outcome. The success rate is recomputed from
// the cumulative counters inside the statement so concurrent attempts for
// the same signature stay last-write-wins without application locks.
func (r *PatternRepo) Upsert(
	ctx context.Context,
	sig string,
	sampleMessage string,
	strategy domain.Strategy,
	success bool,
) (*domain.HealingPattern, error) {
	succ := 0
	if success {
		succ = 1
	}

	query := `
		INSERT INTO healing_patterns
			(signature, sample_message, recommended_strategy,
			 times_attempted, times_succeeded, success_rate, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4 * 100, NOW())
		ON CONFLICT (signature) DO UPDATE SET
			recommended_strategy = EXCLUDED.recommended_strategy,
			times_attempted = healing_patterns.times_attempted + 1,
			times_succeeded = healing_patterns.times_succeeded + $4,
			success_rate = LEAST(100, GREATEST(0,
				(healing_patterns.times_succeeded + $4) * 100.0 /
				(healing_patterns.times_attempted + 1))),
			updated_at = NOW()
		RETURNING signature, sample_message, recommended_strategy,
		          success_rate, times_attempted, times_succeeded
	`

	var row patternRow
	if err := r.db.GetContext(ctx, &row, query, sig, sampleMessage, string(strategy), succ); err != nil {
		return nil, fmt.Errorf("failed to upsert healing pattern: %w", err)
	}
	return row.toDomain(), nil
}
