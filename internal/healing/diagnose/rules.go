package diagnose

import (
	"strings"

	"github.com/remedyops/healer/internal/core/domain"
)

// RuleBased is the deterministic fallback analyzer. It must never fail and
// must stay predictable so the engine remains testable without network
// access: category first, then substring matches on the lower-cased message.
func RuleBased(event domain.ErrorEvent) domain.AIAnalysis {
	msg := strings.ToLower(event.Message)

	switch event.Category {
	case domain.CategoryDatabase:
		if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") {
			return domain.AIAnalysis{
				Diagnosis:           "Database connection failure",
				RecommendedStrategy: domain.StrategyResetConnection,
				Confidence:          0.8,
				Severity:            domain.SeverityHigh,
				Reasoning:           "Connection or timeout errors usually clear after recycling the pool",
				EstimatedFixTimeMs:  5000,
			}
		}
		if strings.Contains(msg, "deadlock") || strings.Contains(msg, "transaction") {
			return domain.AIAnalysis{
				Diagnosis:           "Transaction conflict",
				RecommendedStrategy: domain.StrategyRollbackTransaction,
				Confidence:          0.75,
				Severity:            domain.SeverityMedium,
				Reasoning:           "Deadlocks resolve after rolling back and retrying once",
				EstimatedFixTimeMs:  2000,
			}
		}

	case domain.CategoryAPIFailure:
		if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
			return domain.AIAnalysis{
				Diagnosis:           "Upstream rate limiting",
				RecommendedStrategy: domain.StrategyRateLimitBackoff,
				Confidence:          0.9,
				Severity:            domain.SeverityLow,
				Reasoning:           "Rate limits clear after a cooldown",
				EstimatedFixTimeMs:  10000,
			}
		}
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "econnrefused") {
			return domain.AIAnalysis{
				Diagnosis:           "Primary endpoint unreachable",
				RecommendedStrategy: domain.StrategySwitchAPIEndpoint,
				Confidence:          0.7,
				Severity:            domain.SeverityMedium,
				Reasoning:           "The secondary endpoint is likely still reachable",
				EstimatedFixTimeMs:  3000,
			}
		}

	case domain.CategoryRuntime:
		if strings.Contains(msg, "null") || strings.Contains(msg, "undefined") {
			return domain.AIAnalysis{
				Diagnosis:           "Missing value dereference",
				RecommendedStrategy: domain.StrategyUseDefaultValue,
				Confidence:          0.85,
				Severity:            domain.SeverityLow,
				Reasoning:           "A safe default keeps the caller working",
				EstimatedFixTimeMs:  500,
			}
		}

	case domain.CategoryPerformance:
		return domain.AIAnalysis{
			Diagnosis:           "Degraded performance",
			RecommendedStrategy: domain.StrategyClearCacheAndRetry,
			Confidence:          0.7,
			Severity:            domain.SeverityMedium,
			Reasoning:           "Stale cache entries are the usual culprit",
			EstimatedFixTimeMs:  4000,
		}
	}

	return domain.AIAnalysis{
		Diagnosis:           "Unclassified failure",
		RecommendedStrategy: domain.StrategyRetryWithBackoff,
		Confidence:          0.6,
		Severity:            domain.SeverityMedium,
		Reasoning:           "Backoff retry is the safest general recovery",
		EstimatedFixTimeMs:  7000,
	}
}
