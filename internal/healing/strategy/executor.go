package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/remedyops/healer/internal/core/domain"
)

// Default attempt counts and delays. Config overrides exist for
// deployments that need gentler retries.
const (
	defaultMaxRetries        = 3
	defaultReducedRetries    = 2
	defaultRateLimitCooldown = 5 * time.Second
)

// Config tunes the executor.
type Config struct {
	MaxRetries        int           `yaml:"max_retries"`
	ReducedRetries    int           `yaml:"reduced_retries"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
}

// Executor applies recovery strategies. Optional dependencies may be nil;
// strategies that need a missing one fail with an explanatory action rather
// than panicking.
type Executor struct {
	cfg      Config
	cache    ResultCache
	switcher EndpointSwitcher
	resetter ConnectionResetter
	rollback TxRollbacker
	queue    RetryQueue
	defaults map[string]any
	log      *slog.Logger

	// sleep is swapped out in tests so backoff sequences can be asserted
	// without waiting for them.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a strategy executor.
func NewExecutor(
	cfg Config,
	cache ResultCache,
	switcher EndpointSwitcher,
	resetter ConnectionResetter,
	rollback TxRollbacker,
	queue RetryQueue,
	defaults map[string]any,
) *Executor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.ReducedRetries <= 0 {
		cfg.ReducedRetries = defaultReducedRetries
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = defaultRateLimitCooldown
	}
	return &Executor{
		cfg:      cfg,
		cache:    cache,
		switcher: switcher,
		resetter: resetter,
		rollback: rollback,
		queue:    queue,
		defaults: defaults,
		log:      slog.With("component", "strategy"),
		sleep:    sleepCtx,
	}
}

// Apply runs one strategy against the failed operation.
func (e *Executor) Apply(
	ctx context.Context,
	strat domain.Strategy,
	event domain.ErrorEvent,
	op Operation,
	args []any,
) Result {
	// Manual captures carry no operation; strategies that re-invoke one
	// fail cleanly before running any side effects.
	if op == nil && strategyReinvokes(strat) {
		return Result{
			Success:      false,
			ActionsTaken: []string{fmt.Sprintf("%s needs an operation to re-invoke, none available", strat)},
			Err:          fmt.Errorf("%s: no operation to re-invoke", strat),
		}
	}

	switch strat {
	case domain.StrategyRetryWithBackoff:
		return e.retryWithBackoff(ctx, event, op, args, e.cfg.MaxRetries, nil)
	case domain.StrategyFallbackToCache:
		return e.fallbackToCache(ctx, event)
	case domain.StrategySwitchAPIEndpoint:
		return e.switchAPIEndpoint(ctx, event, op, args)
	case domain.StrategyClearCacheAndRetry:
		return e.clearCacheAndRetry(ctx, event, op, args)
	case domain.StrategyResetConnection:
		return e.resetConnection(ctx, event, op, args)
	case domain.StrategyUseDefaultValue:
		return e.useDefaultValue(event)
	case domain.StrategySkipOperation:
		return e.skipOperation(event)
	case domain.StrategyQueueForLater:
		return e.queueForLater(event, op, args)
	case domain.StrategyRollbackTransaction:
		return e.rollbackTransaction(ctx, event, op, args)
	case domain.StrategyRateLimitBackoff:
		return e.rateLimitBackoff(ctx, event, op, args)
	default:
		return Result{
			Success:      false,
			ActionsTaken: []string{fmt.Sprintf("unknown strategy %q, nothing executed", strat)},
			Err:          fmt.Errorf("unknown strategy %q", strat),
		}
	}
}

// strategyReinvokes reports whether a strategy calls the failed operation
// again at some point.
func strategyReinvokes(strat domain.Strategy) bool {
	switch strat {
	case domain.StrategyRetryWithBackoff,
		domain.StrategySwitchAPIEndpoint,
		domain.StrategyClearCacheAndRetry,
		domain.StrategyResetConnection,
		domain.StrategyQueueForLater,
		domain.StrategyRollbackTransaction,
		domain.StrategyRateLimitBackoff:
		return true
	}
	return false
}

// retryWithBackoff re-invokes the operation up to maxAttempts times with
// 2^i second delays between attempts. preamble carries actions from steps
// that ran before the retry loop (cache clear, pool reset).
func (e *Executor) retryWithBackoff(
	ctx context.Context,
	event domain.ErrorEvent,
	op Operation,
	args []any,
	maxAttempts int,
	preamble []string,
) Result {
	res := Result{ActionsTaken: preamble}
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		data, err := op(ctx, args...)
		if err == nil {
			res.ActionsTaken = append(res.ActionsTaken,
				fmt.Sprintf("attempt %d/%d succeeded", attempt+1, maxAttempts))
			res.Success = true
			res.Data = data
			return res
		}
		lastErr = err
		res.ActionsTaken = append(res.ActionsTaken,
			fmt.Sprintf("attempt %d/%d failed: %s", attempt+1, maxAttempts, err))

		if attempt == maxAttempts-1 {
			break
		}

		delay := time.Duration(1<<uint(attempt)) * time.Second
		res.ActionsTaken = append(res.ActionsTaken,
			fmt.Sprintf("waiting %s before next attempt", delay))
		if err := e.sleep(ctx, delay); err != nil {
			res.ActionsTaken = append(res.ActionsTaken, "backoff cancelled")
			res.Err = err
			return res
		}
	}

	res.Err = fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
	return res
}

func (e *Executor) fallbackToCache(ctx context.Context, event domain.ErrorEvent) Result {
	res := Result{}
	if e.cache == nil {
		res.ActionsTaken = append(res.ActionsTaken, "no result cache configured")
		res.Err = fmt.Errorf("fallback to cache: no cache configured")
		return res
	}

	data, ok, err := e.cache.Get(ctx, event.Source)
	if err != nil {
		res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("cache lookup for %s failed: %s", event.Source, err))
		res.Err = err
		return res
	}
	if !ok {
		res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("no cached result for %s", event.Source))
		res.Err = fmt.Errorf("fallback to cache: no cached result for %s", event.Source)
		return res
	}

	res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("served cached result for %s", event.Source))
	res.Success = true
	res.Data = data
	return res
}

func (e *Executor) switchAPIEndpoint(
	ctx context.Context,
	event domain.ErrorEvent,
	op Operation,
	args []any,
) Result {
	res := Result{}
	if e.switcher == nil {
		res.ActionsTaken = append(res.ActionsTaken, "no secondary endpoint configured")
		res.Err = fmt.Errorf("switch endpoint: no switcher configured")
		return res
	}

	secondaryCtx, ok := e.switcher.Secondary(ctx, event.Source)
	if !ok {
		res.ActionsTaken = append(res.ActionsTaken,
			fmt.Sprintf("no secondary endpoint for %s", event.Source))
		res.Err = fmt.Errorf("switch endpoint: none configured for %s", event.Source)
		return res
	}

	res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("switched %s to secondary endpoint", event.Source))
	data, err := op(secondaryCtx, args...)
	if err != nil {
		res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("secondary endpoint call failed: %s", err))
		res.Err = err
		return res
	}

	res.ActionsTaken = append(res.ActionsTaken, "secondary endpoint call succeeded")
	res.Success = true
	res.Data = data
	return res
}

func (e *Executor) clearCacheAndRetry(
	ctx context.Context,
	event domain.ErrorEvent,
	op Operation,
	args []any,
) Result {
	var pre []string
	if e.cache == nil {
		pre = append(pre, "no result cache configured, skipping invalidation")
	} else {
		n, err := e.cache.InvalidateNamespace(ctx, event.Source)
		if err != nil {
			pre = append(pre, fmt.Sprintf("cache invalidation failed: %s", err))
		} else {
			pre = append(pre, fmt.Sprintf("invalidated %d cache entries under %s", n, event.Source))
		}
	}
	return e.retryWithBackoff(ctx, event, op, args, e.cfg.ReducedRetries, pre)
}

func (e *Executor) resetConnection(
	ctx context.Context,
	event domain.ErrorEvent,
	op Operation,
	args []any,
) Result {
	var pre []string
	if e.resetter == nil {
		pre = append(pre, "no connection resetter configured, retrying without reset")
	} else if err := e.resetter.Reset(ctx, event.Category); err != nil {
		pre = append(pre, fmt.Sprintf("connection pool reset failed: %s", err))
	} else {
		pre = append(pre, fmt.Sprintf("recycled connection pool for %s", event.Category))
	}
	return e.retryWithBackoff(ctx, event, op, args, e.cfg.ReducedRetries, pre)
}

func (e *Executor) useDefaultValue(event domain.ErrorEvent) Result {
	data, ok := e.defaults[event.Source]
	action := fmt.Sprintf("returned default value for %s", event.Source)
	if !ok {
		action = fmt.Sprintf("no default registered for %s, returned nil", event.Source)
	}
	// Always succeeds: a safe default is the whole point.
	return Result{
		Success:      true,
		Data:         data,
		ActionsTaken: []string{action},
	}
}

func (e *Executor) skipOperation(event domain.ErrorEvent) Result {
	return Result{
		Success:      true,
		ActionsTaken: []string{fmt.Sprintf("skipped non-critical operation %s", event.Source)},
	}
}

func (e *Executor) queueForLater(event domain.ErrorEvent, op Operation, args []any) Result {
	res := Result{}
	if e.queue == nil {
		res.ActionsTaken = append(res.ActionsTaken, "no retry queue configured")
		res.Err = fmt.Errorf("queue for later: no queue configured")
		return res
	}

	if err := e.queue.Enqueue(event.Source, op, args); err != nil {
		res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("enqueue failed: %s", err))
		res.Err = err
		return res
	}

	// Fire-and-forget: healing completes now, independent of the queued
	// retry's eventual outcome.
	res.ActionsTaken = append(res.ActionsTaken,
		fmt.Sprintf("queued %s for background retry", event.Source))
	res.Success = true
	return res
}

func (e *Executor) rollbackTransaction(
	ctx context.Context,
	event domain.ErrorEvent,
	op Operation,
	args []any,
) Result {
	res := Result{}
	if e.rollback == nil {
		res.ActionsTaken = append(res.ActionsTaken, "no transaction rollbacker configured")
	} else if err := e.rollback.Rollback(ctx, event.Source); err != nil {
		res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("rollback signal failed: %s", err))
	} else {
		res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("rolled back transaction for %s", event.Source))
	}

	data, err := op(ctx, args...)
	if err != nil {
		res.ActionsTaken = append(res.ActionsTaken, fmt.Sprintf("retry after rollback failed: %s", err))
		res.Err = err
		return res
	}

	res.ActionsTaken = append(res.ActionsTaken, "retry after rollback succeeded")
	res.Success = true
	res.Data = data
	return res
}

func (e *Executor) rateLimitBackoff(
	ctx context.Context,
	event domain.ErrorEvent,
	op Operation,
	args []any,
) Result {
	res := Result{}
	res.ActionsTaken = append(res.ActionsTaken,
		fmt.Sprintf("cooling down %s for rate limit", e.cfg.RateLimitCooldown))
	if err := e.sleep(ctx, e.cfg.RateLimitCooldown); err != nil {
		res.ActionsTaken = append(res.ActionsTaken, "cooldown cancelled")
		res.Err = err
		return res
	}

	retried := e.retryWithBackoff(ctx, event, op, args, e.cfg.ReducedRetries, nil)
	retried.ActionsTaken = append(res.ActionsTaken, retried.ActionsTaken...)
	return retried
}

// sleepCtx waits without busy-waiting and yields early on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
