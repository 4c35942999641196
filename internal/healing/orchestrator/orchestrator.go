// Package orchestrator ties signature lookup, diagnosis, strategy
// execution, logging, learning and escalation into one healing run.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/healing/metrics"
	"github.com/remedyops/healer/internal/healing/signature"
	"github.com/remedyops/healer/internal/healing/strategy"
	"github.com/remedyops/healer/internal/infra/storage"
)

// Analyzer produces the diagnostic verdict for an event.
type Analyzer interface {
	Analyze(ctx context.Context, event domain.ErrorEvent) domain.AIAnalysis
}

// Executor applies a recovery strategy.
type Executor interface {
	Apply(
		ctx context.Context,
		strat domain.Strategy,
		event domain.ErrorEvent,
		op strategy.Operation,
		args []any,
	) strategy.Result
}

// Notifier escalates failed or high-severity runs. May be nil.
type Notifier interface {
	NotifyHealingOutcome(
		ctx context.Context,
		event domain.ErrorEvent,
		analysis *domain.AIAnalysis,
		result strategy.Result,
	)
}

// Outcome is what a healing run hands back to the interceptor.
type Outcome struct {
	Success  bool
	Data     any
	Strategy domain.Strategy
	Severity domain.Severity
}

// Orchestrator runs the healing state machine:
// pattern_check -> {trusted_reuse | diagnose} -> execute -> log -> learn ->
// {notify | done}.
type Orchestrator struct {
	patterns storage.PatternRepository
	events   storage.EventRepository
	analyzer Analyzer
	executor Executor
	notifier Notifier
	log      *slog.Logger
}

// New creates an orchestrator. notifier may be nil.
func New(
	patterns storage.PatternRepository,
	events storage.EventRepository,
	analyzer Analyzer,
	executor Executor,
	notifier Notifier,
) *Orchestrator {
	return &Orchestrator{
		patterns: patterns,
		events:   events,
		analyzer: analyzer,
		executor: executor,
		notifier: notifier,
		log:      slog.With("component", "orchestrator"),
	}
}

// Heal runs one orchestration pass. It never panics and never returns an
// error: when healing cannot succeed the caller's original error is the one
// that must surface, so failures here collapse into Success=false. Exactly
// one HealingEvent is persisted per call, whatever path the run takes.
func (o *Orchestrator) Heal(
	ctx context.Context,
	event domain.ErrorEvent,
	op strategy.Operation,
	args []any,
) (outcome Outcome) {
	start := time.Now()
	sig := signature.Generate(event)
	eventWritten := false

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("healing machinery panicked", "signature", sig, "panic", r)
			if !eventWritten {
				o.writeEvent(ctx, event, nil, "", strategy.Result{
					ActionsTaken: []string{fmt.Sprintf("healing aborted by internal panic: %v", r)},
				}, domain.SeverityHigh, start)
			}
			outcome = Outcome{Success: false, Severity: domain.SeverityHigh}
		}
		metrics.HealingDuration.WithLabelValues(string(event.Category)).
			Observe(time.Since(start).Seconds())
	}()

	// 1. Pattern check.
	pattern, err := o.patterns.Get(ctx, sig)
	if err != nil {
		o.log.Warn("pattern lookup failed", "signature", sig, "error", err)
		pattern = nil
	}

	var trustedActions []string
	if pattern != nil && pattern.Trusted() {
		metrics.PatternLookups.WithLabelValues("trusted").Inc()
		o.log.Debug("reusing trusted pattern",
			"signature", sig, "strategy", pattern.RecommendedStrategy,
			"success_rate", pattern.SuccessRate)

		res := o.executor.Apply(ctx, pattern.RecommendedStrategy, event, op, args)
		if res.Success {
			// Trusted patterns are presumed low-risk: log low, stay silent.
			o.writeEvent(ctx, event, nil, pattern.RecommendedStrategy, res, domain.SeverityLow, start)
			eventWritten = true
			o.learn(ctx, sig, event, pattern.RecommendedStrategy, true)
			metrics.HealingAttempts.WithLabelValues(
				string(event.Category), string(pattern.RecommendedStrategy), "success").Inc()
			return Outcome{
				Success:  true,
				Data:     res.Data,
				Strategy: pattern.RecommendedStrategy,
				Severity: domain.SeverityLow,
			}
		}

		// A failed trusted path falls through to full diagnosis rather
		// than giving up; its actions stay on the audit trail.
		o.learn(ctx, sig, event, pattern.RecommendedStrategy, false)
		trustedActions = append(res.ActionsTaken,
			fmt.Sprintf("trusted pattern %s failed, running full diagnosis", pattern.RecommendedStrategy))
	} else if pattern != nil {
		metrics.PatternLookups.WithLabelValues("known").Inc()
	} else {
		metrics.PatternLookups.WithLabelValues("miss").Inc()
	}

	// 2. Full diagnosis.
	analysis := o.analyzer.Analyze(ctx, event)

	// 3. Execute the recommended strategy.
	res := o.executor.Apply(ctx, analysis.RecommendedStrategy, event, op, args)
	res.ActionsTaken = append(trustedActions, res.ActionsTaken...)

	// 4. Log exactly one event for this run.
	o.writeEvent(ctx, event, &analysis, analysis.RecommendedStrategy, res, analysis.Severity, start)
	eventWritten = true

	// 5. Learn.
	o.learn(ctx, sig, event, analysis.RecommendedStrategy, res.Success)

	outcomeLabel := "failed"
	if res.Success {
		outcomeLabel = "success"
	}
	metrics.HealingAttempts.WithLabelValues(
		string(event.Category), string(analysis.RecommendedStrategy), outcomeLabel).Inc()

	// 6. Escalate failed or high/critical runs; stay silent otherwise.
	if o.notifier != nil && (!res.Success ||
		analysis.Severity == domain.SeverityHigh || analysis.Severity == domain.SeverityCritical) {
		o.notifier.NotifyHealingOutcome(ctx, event, &analysis, res)
	}

	return Outcome{
		Success:  res.Success,
		Data:     res.Data,
		Strategy: analysis.RecommendedStrategy,
		Severity: analysis.Severity,
	}
}

// writeEvent persists the run's audit record. Persistence failures are
// logged and swallowed: they must never mask the caller's original error.
func (o *Orchestrator) writeEvent(
	ctx context.Context,
	event domain.ErrorEvent,
	analysis *domain.AIAnalysis,
	strat domain.Strategy,
	res strategy.Result,
	severity domain.Severity,
	start time.Time,
) {
	eventType := domain.EventHealingFailed
	result := "healing failed"
	var resolvedAt *time.Time
	if res.Success {
		eventType = domain.EventHealingSuccess
		result = fmt.Sprintf("recovered via %s", strat)
		now := time.Now()
		resolvedAt = &now
	} else if res.Err != nil {
		result = res.Err.Error()
	}

	he := &domain.HealingEvent{
		EventType:         eventType,
		Category:          event.Category,
		Source:            event.Source,
		Message:           event.Message,
		Analysis:          analysis,
		HealingStrategy:   strat,
		ActionsTaken:      res.ActionsTaken,
		HealingResult:     result,
		HealingDurationMs: time.Since(start).Milliseconds(),
		Severity:          severity,
		ResolvedAt:        resolvedAt,
	}

	if err := o.events.Create(ctx, he); err != nil {
		o.log.Error("failed to persist healing event",
			"source", event.Source, "type", eventType, "error", err)
	}
}

// learn updates the pattern for this signature; lookup failures upstream do
// not stop learning, and learning failures do not affect the outcome.
func (o *Orchestrator) learn(
	ctx context.Context,
	sig string,
	event domain.ErrorEvent,
	strat domain.Strategy,
	success bool,
) {
	if _, err := o.patterns.Upsert(ctx, sig, event.Message, strat, success); err != nil {
		o.log.Warn("failed to update healing pattern", "signature", sig, "error", err)
	}
}
