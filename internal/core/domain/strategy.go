package domain

import "fmt"

// Strategy is one of the fixed recovery actions the executor knows how to
// apply. The set is closed: unknown names fail at parse time.
type Strategy string

const (
	StrategyRetryWithBackoff    Strategy = "RETRY_WITH_BACKOFF"
	StrategyFallbackToCache     Strategy = "FALLBACK_TO_CACHE"
	StrategySwitchAPIEndpoint   Strategy = "SWITCH_API_ENDPOINT"
	StrategyClearCacheAndRetry  Strategy = "CLEAR_CACHE_AND_RETRY"
	StrategyResetConnection     Strategy = "RESET_CONNECTION"
	StrategyUseDefaultValue     Strategy = "USE_DEFAULT_VALUE"
	StrategySkipOperation       Strategy = "SKIP_OPERATION"
	StrategyQueueForLater       Strategy = "QUEUE_FOR_LATER"
	StrategyRollbackTransaction Strategy = "ROLLBACK_TRANSACTION"
	StrategyRateLimitBackoff    Strategy = "RATE_LIMIT_BACKOFF"
)

// Strategies lists every known strategy in menu order.
var Strategies = []Strategy{
	StrategyRetryWithBackoff,
	StrategyFallbackToCache,
	StrategySwitchAPIEndpoint,
	StrategyClearCacheAndRetry,
	StrategyResetConnection,
	StrategyUseDefaultValue,
	StrategySkipOperation,
	StrategyQueueForLater,
	StrategyRollbackTransaction,
	StrategyRateLimitBackoff,
}

// StrategyDescriptions maps each strategy to the one-line description used
// in the diagnostic prompt menu.
var StrategyDescriptions = map[Strategy]string{
	StrategyRetryWithBackoff:    "re-invoke the operation with exponential backoff",
	StrategyFallbackToCache:     "serve a previously cached successful result",
	StrategySwitchAPIEndpoint:   "re-invoke once against the secondary endpoint",
	StrategyClearCacheAndRetry:  "invalidate the cache namespace, then retry",
	StrategyResetConnection:     "recycle the connection pool, then retry",
	StrategyUseDefaultValue:     "return a safe source-specific default",
	StrategySkipOperation:       "skip a non-critical side effect",
	StrategyQueueForLater:       "hand the operation to the background retry queue",
	StrategyRollbackTransaction: "roll back the transactional context, then retry once",
	StrategyRateLimitBackoff:    "sleep a fixed cooldown, then retry",
}

// ParseStrategy validates a strategy name coming from persistence or from
// the diagnostic collaborator.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if _, ok := StrategyDescriptions[s]; !ok {
		return "", fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}
