package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/healing/orchestrator"
	"github.com/remedyops/healer/internal/healing/strategy"
	"github.com/remedyops/healer/internal/infra/storage/memory"
)

// =============================================================================
// Stubs
// =============================================================================

type stubHealer struct {
	outcome orchestrator.Outcome
	events  []domain.ErrorEvent
	ops     []strategy.Operation
}

func (s *stubHealer) Heal(
	ctx context.Context,
	event domain.ErrorEvent,
	op strategy.Operation,
	args []any,
) orchestrator.Outcome {
	s.events = append(s.events, event)
	s.ops = append(s.ops, op)
	return s.outcome
}

type stubNotifier struct {
	checks []string
}

func (s *stubNotifier) NotifyHealthCheckFailure(
	ctx context.Context,
	checkName, checkType string,
	probeMetrics map[string]any,
) {
	s.checks = append(s.checks, checkName)
}

func staticProbe(name string, healthy bool) Probe {
	return Probe{
		Name:     name,
		Type:     "system",
		Category: domain.CategoryRuntime,
		Run: func(ctx context.Context) (map[string]any, bool) {
			return map[string]any{"probe": name}, healthy
		},
	}
}

// =============================================================================
// RunAll
// =============================================================================

func TestRunAll_PersistsEveryProbe(t *testing.T) {
	store := memory.NewStore()
	m := New(
		[]Probe{staticProbe("a", true), staticProbe("b", false), staticProbe("c", true)},
		memory.NewHealthCheckRepo(store),
		nil, nil, time.Minute,
	)

	results := m.RunAll(context.Background())

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if got := len(store.Checks()); got != 3 {
		t.Fatalf("expected 3 persisted snapshots, got %d", got)
	}
	if results[1].Status != domain.HealthStatusUnhealthy || !results[1].ThresholdBreached {
		t.Errorf("probe b should be unhealthy: %+v", results[1])
	}
}

func TestRunAll_EscalatesUnhealthyProbes(t *testing.T) {
	healer := &stubHealer{}
	notifier := &stubNotifier{}

	recovered := false
	flaky := Probe{
		Name:     "database",
		Type:     "database",
		Category: domain.CategoryDatabase,
		Run: func(ctx context.Context) (map[string]any, bool) {
			healthy := recovered
			recovered = true
			return map[string]any{}, healthy
		},
	}

	m := New([]Probe{flaky}, nil, healer, notifier, time.Minute)
	m.RunAll(context.Background())

	if len(notifier.checks) != 1 || notifier.checks[0] != "database" {
		t.Errorf("expected one notification for database, got %v", notifier.checks)
	}
	if len(healer.events) != 1 {
		t.Fatalf("expected one proactive healing run, got %d", len(healer.events))
	}
	e := healer.events[0]
	if e.Category != domain.CategoryDatabase || e.Source != "monitor.database" {
		t.Errorf("unexpected event: %+v", e)
	}

	// The operation handed to the healer re-runs the probe.
	got, err := healer.ops[0](context.Background())
	if err != nil {
		t.Fatalf("recheck op should succeed once the probe recovers: %v", err)
	}
	if _, ok := got.(map[string]any); !ok {
		t.Errorf("recheck op returns probe metrics, got %T", got)
	}
}

func TestRunAll_SurvivesPanickingProbe(t *testing.T) {
	store := memory.NewStore()
	bad := Probe{
		Name: "explosive", Type: "system", Category: domain.CategoryRuntime,
		Run: func(ctx context.Context) (map[string]any, bool) {
			panic("probe bug")
		},
	}
	m := New([]Probe{bad, staticProbe("after", true)}, memory.NewHealthCheckRepo(store), nil, nil, time.Minute)

	results := m.RunAll(context.Background())

	if len(results) != 2 {
		t.Fatalf("remaining probes must still run, got %d results", len(results))
	}
	if results[0].Status != domain.HealthStatusUnhealthy {
		t.Errorf("panicking probe must report unhealthy, got %s", results[0].Status)
	}
	if results[1].Status != domain.HealthStatusHealthy {
		t.Errorf("healthy probe after the panic should be unaffected")
	}
}

func TestRunAll_SingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slow := Probe{
		Name: "slow", Type: "system", Category: domain.CategoryRuntime,
		Run: func(ctx context.Context) (map[string]any, bool) {
			close(started)
			<-release
			return nil, true
		},
	}
	m := New([]Probe{slow}, nil, nil, nil, time.Minute)

	done := make(chan struct{})
	go func() {
		m.RunAll(context.Background())
		close(done)
	}()

	<-started
	// Overlapping sweep must not run the probe a second time; it returns
	// immediately with the previous (empty) report.
	if got := m.RunAll(context.Background()); len(got) != 0 {
		t.Errorf("overlapping sweep should return prior report, got %v", got)
	}
	close(release)
	<-done

	if got := len(m.Report()); got != 1 {
		t.Errorf("expected one result after the sweep finished, got %d", got)
	}
}

// =============================================================================
// Aggregation
// =============================================================================

func TestOverallThresholds(t *testing.T) {
	cases := []struct {
		failed int
		want   domain.SystemStatus
	}{
		{0, domain.SystemHealthy},
		{1, domain.SystemDegraded},
		{2, domain.SystemDegraded},
		{3, domain.SystemUnhealthy},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d failed", tc.failed), func(t *testing.T) {
			var probes []Probe
			for i := 0; i < 5; i++ {
				probes = append(probes, staticProbe(fmt.Sprintf("p%d", i), i >= tc.failed))
			}
			m := New(probes, nil, nil, nil, time.Minute)
			m.RunAll(context.Background())

			if got := m.Overall(); got != tc.want {
				t.Errorf("overall = %s, want %s", got, tc.want)
			}
		})
	}
}

// =============================================================================
// Probes
// =============================================================================

func TestErrorRateProbe(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewEventRepo(store)

	probe := ErrorRateProbe(repo)
	if _, healthy := probe.Run(context.Background()); !healthy {
		t.Error("empty log must be healthy")
	}

	// 51 events in the 5-minute window -> 10.2/min, over the threshold.
	for i := 0; i < 51; i++ {
		err := repo.Create(context.Background(), &domain.HealingEvent{
			EventType: domain.EventHealingFailed,
			Category:  domain.CategoryRuntime,
			Source:    "x",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	m, healthy := probe.Run(context.Background())
	if healthy {
		t.Errorf("51 events in 5 minutes must breach the threshold: %v", m)
	}
}

func TestSMSConfigProbe(t *testing.T) {
	if _, healthy := SMSConfigProbe("", "").Run(context.Background()); !healthy {
		t.Error("absent config means the channel is off, which is healthy")
	}
	if _, healthy := SMSConfigProbe("AC123", "").Run(context.Background()); healthy {
		t.Error("partial config is a misconfiguration")
	}
	if _, healthy := SMSConfigProbe("AC123", "tok").Run(context.Background()); !healthy {
		t.Error("complete config is healthy")
	}
}

func TestFileStorageProbe(t *testing.T) {
	if _, healthy := FileStorageProbe("").Run(context.Background()); !healthy {
		t.Error("unconfigured storage is healthy")
	}
	if _, healthy := FileStorageProbe(t.TempDir()).Run(context.Background()); !healthy {
		t.Error("existing directory is healthy")
	}
	if _, healthy := FileStorageProbe("/nonexistent/healer-store").Run(context.Background()); healthy {
		t.Error("missing directory is unhealthy")
	}
}

func TestMemoryProbe(t *testing.T) {
	m, healthy := MemoryProbe().Run(context.Background())
	if m["heap_alloc_bytes"] == nil || m["heap_percent"] == nil {
		t.Errorf("missing heap metrics: %v", m)
	}
	// A test binary should be nowhere near 85% of its heap ceiling.
	if !healthy {
		t.Errorf("unexpected heap pressure: %v", m)
	}
}

type errPinger struct{ err error }

func (p errPinger) Health(ctx context.Context) error { return p.err }

func TestDatabaseProbe(t *testing.T) {
	if _, healthy := DatabaseProbe(nil).Run(context.Background()); !healthy {
		t.Error("no database configured is healthy (memory fallback)")
	}
	if _, healthy := DatabaseProbe(errPinger{}).Run(context.Background()); !healthy {
		t.Error("ping ok must be healthy")
	}
	m, healthy := DatabaseProbe(errPinger{err: errors.New("pool exhausted")}).Run(context.Background())
	if healthy {
		t.Error("ping failure must be unhealthy")
	}
	if m["error"] != "pool exhausted" {
		t.Errorf("probe metrics should carry the error: %v", m)
	}
}
