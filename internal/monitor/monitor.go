// Package monitor runs scheduled probes of the engine's dependent
// subsystems, persists their snapshots and feeds failures back into
// healing proactively.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/healing/metrics"
	"github.com/remedyops/healer/internal/healing/orchestrator"
	"github.com/remedyops/healer/internal/healing/strategy"
	"github.com/remedyops/healer/internal/infra/storage"
)

const defaultInterval = 2 * time.Minute

// Healer receives proactive healing runs for failed probes.
type Healer interface {
	Heal(
		ctx context.Context,
		event domain.ErrorEvent,
		op strategy.Operation,
		args []any,
	) orchestrator.Outcome
}

// Notifier alerts operators about failed probes. May be nil.
type Notifier interface {
	NotifyHealthCheckFailure(ctx context.Context, checkName, checkType string, probeMetrics map[string]any)
}

// Monitor owns the probe registry and the periodic check loop.
type Monitor struct {
	probes   []Probe
	checks   storage.HealthCheckRepository
	healer   Healer
	notifier Notifier
	interval time.Duration
	log      *slog.Logger

	// running guards against overlapping sweeps when probes outlast the
	// tick interval.
	running atomic.Bool

	mu         sync.RWMutex
	lastReport []domain.HealthCheckResult
}

// New creates a monitor over the given probes. healer and notifier may be
// nil; checks may be nil when persistence is not wired.
func New(
	probes []Probe,
	checks storage.HealthCheckRepository,
	healer Healer,
	notifier Notifier,
	interval time.Duration,
) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{
		probes:   probes,
		checks:   checks,
		healer:   healer,
		notifier: notifier,
		interval: interval,
		log:      slog.With("component", "monitor"),
	}
}

// Start runs the check loop until ctx is cancelled. One sweep fires
// immediately so health is known at startup.
func (m *Monitor) Start(ctx context.Context) {
	m.RunAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.RunAll(ctx)
		}
	}
}

// RunAll executes every probe once. Calls overlapping an in-flight sweep
// return the previous report instead of doubling up.
func (m *Monitor) RunAll(ctx context.Context) []domain.HealthCheckResult {
	if !m.running.CompareAndSwap(false, true) {
		return m.Report()
	}
	defer m.running.Store(false)

	results := make([]domain.HealthCheckResult, 0, len(m.probes))
	for _, probe := range m.probes {
		result := m.runProbe(ctx, probe)
		results = append(results, result)

		if result.Status == domain.HealthStatusUnhealthy {
			m.escalate(ctx, probe, result)
		}
	}

	m.mu.Lock()
	m.lastReport = results
	m.mu.Unlock()
	return results
}

// runProbe executes one probe with a recover guard: a panicking probe is
// an unhealthy probe, never a dead monitor.
func (m *Monitor) runProbe(ctx context.Context, probe Probe) (result domain.HealthCheckResult) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("probe panicked", "check", probe.Name, "panic", r)
			result = m.record(ctx, probe, map[string]any{"panic": r}, false)
		}
	}()

	probeMetrics, healthy := probe.Run(ctx)
	return m.record(ctx, probe, probeMetrics, healthy)
}

func (m *Monitor) record(
	ctx context.Context,
	probe Probe,
	probeMetrics map[string]any,
	healthy bool,
) domain.HealthCheckResult {
	status := domain.HealthStatusHealthy
	gauge := 1.0
	if !healthy {
		status = domain.HealthStatusUnhealthy
		gauge = 0
	}
	metrics.ProbeStatus.WithLabelValues(probe.Name).Set(gauge)

	result := domain.HealthCheckResult{
		CheckName:         probe.Name,
		CheckType:         probe.Type,
		Status:            status,
		Metrics:           probeMetrics,
		ThresholdBreached: !healthy,
		CheckedAt:         time.Now(),
	}

	if m.checks != nil {
		if err := m.checks.Create(ctx, &result); err != nil {
			m.log.Warn("failed to persist health check", "check", probe.Name, "error", err)
		}
	}
	return result
}

// escalate notifies operators and hands the failed subsystem to the
// healing engine, with a probe re-run as the operation being healed.
func (m *Monitor) escalate(ctx context.Context, probe Probe, result domain.HealthCheckResult) {
	m.log.Warn("health check failed", "check", probe.Name, "metrics", result.Metrics)

	if m.notifier != nil {
		m.notifier.NotifyHealthCheckFailure(ctx, probe.Name, probe.Type, result.Metrics)
	}

	if m.healer == nil {
		return
	}

	event := domain.ErrorEvent{
		Category: probe.Category,
		Source:   "monitor." + probe.Name,
		Message:  probe.Name + " health check failed",
		Context:  result.Metrics,
	}
	recheck := func(opCtx context.Context, args ...any) (any, error) {
		probeMetrics, healthy := probe.Run(opCtx)
		if !healthy {
			return nil, errors.New(probe.Name + " still unhealthy")
		}
		return probeMetrics, nil
	}
	outcome := m.healer.Heal(ctx, event, recheck, nil)
	m.log.Info("proactive healing finished",
		"check", probe.Name, "success", outcome.Success, "strategy", outcome.Strategy)
}

// Report returns the latest sweep's snapshots.
func (m *Monitor) Report() []domain.HealthCheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.HealthCheckResult, len(m.lastReport))
	copy(out, m.lastReport)
	return out
}

// Overall aggregates the latest report: more than two failed probes means
// unhealthy, one or two degraded, none healthy.
func (m *Monitor) Overall() domain.SystemStatus {
	failed := 0
	for _, r := range m.Report() {
		if r.Status == domain.HealthStatusUnhealthy {
			failed++
		}
	}
	switch {
	case failed > 2:
		return domain.SystemUnhealthy
	case failed > 0:
		return domain.SystemDegraded
	default:
		return domain.SystemHealthy
	}
}
