package intercept

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/healing/diagnose"
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
}

func (s *stubHealer) Heal(
	ctx context.Context,
	event domain.ErrorEvent,
	op strategy.Operation,
	args []any,
) orchestrator.Outcome {
	s.events = append(s.events, event)
	return s.outcome
}

type recordingCache struct {
	entries map[string]any
}

func (c *recordingCache) Set(ctx context.Context, source string, value any) error {
	if c.entries == nil {
		c.entries = make(map[string]any)
	}
	c.entries[source] = value
	return nil
}

// =============================================================================
// Wrap
// =============================================================================

func TestWrap_SuccessPassesThroughAndCaches(t *testing.T) {
	healer := &stubHealer{}
	cache := &recordingCache{}
	i := New(healer, cache)

	wrapped := i.Wrap(func(ctx context.Context, args ...any) (any, error) {
		return "fine", nil
	}, Options{Source: "payments.charge", Category: domain.CategoryAPIFailure})

	got, err := wrapped(context.Background())
	if err != nil || got != "fine" {
		t.Fatalf("got (%v, %v), want (fine, nil)", got, err)
	}
	if len(healer.events) != 0 {
		t.Error("healing must not run on success")
	}
	if cache.entries["payments.charge"] != "fine" {
		t.Errorf("successful result not cached: %v", cache.entries)
	}
}

func TestWrap_HealedFailureReturnsHealedResult(t *testing.T) {
	healer := &stubHealer{outcome: orchestrator.Outcome{Success: true, Data: "healed"}}
	cache := &recordingCache{}
	i := New(healer, cache)

	wrapped := i.Wrap(func(ctx context.Context, args ...any) (any, error) {
		return nil, errors.New("ECONNREFUSED")
	}, Options{Source: "payments.charge", Category: domain.CategoryAPIFailure})

	got, err := wrapped(context.Background())
	if err != nil {
		t.Fatalf("healed call must look like a normal success, got error %v", err)
	}
	if got != "healed" {
		t.Errorf("result = %v, want healed", got)
	}
	if cache.entries["payments.charge"] != "healed" {
		t.Error("healed result must be cached for future fallbacks")
	}

	if len(healer.events) != 1 {
		t.Fatalf("expected one healing run, got %d", len(healer.events))
	}
	e := healer.events[0]
	if e.Category != domain.CategoryAPIFailure || e.Source != "payments.charge" || e.Message != "ECONNREFUSED" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestWrap_UnhealedFailureReturnsOriginalError(t *testing.T) {
	original := errors.New("connection timeout")
	healer := &stubHealer{outcome: orchestrator.Outcome{Success: false}}
	i := New(healer, nil)

	wrapped := i.Wrap(func(ctx context.Context, args ...any) (any, error) {
		return nil, original
	}, Options{Source: "orders.save", Category: domain.CategoryDatabase})

	_, err := wrapped(context.Background())
	if !errors.Is(err, original) {
		t.Fatalf("caller must see the original error unchanged, got %v", err)
	}
}

func TestWrap_PanicBecomesRuntimeError(t *testing.T) {
	healer := &stubHealer{outcome: orchestrator.Outcome{Success: false}}
	i := New(healer, nil)

	wrapped := i.Wrap(func(ctx context.Context, args ...any) (any, error) {
		panic("index out of range")
	}, Options{Source: "report.render", Category: domain.CategoryAPIFailure})

	_, err := wrapped(context.Background())
	if err == nil || !strings.Contains(err.Error(), "index out of range") {
		t.Fatalf("panic must surface as an error, got %v", err)
	}

	if len(healer.events) != 1 {
		t.Fatalf("expected one healing run, got %d", len(healer.events))
	}
	e := healer.events[0]
	if e.Category != domain.CategoryRuntime {
		t.Errorf("panics are runtime errors, got category %s", e.Category)
	}
	if e.Stack == "" {
		t.Error("panic event must carry a stack trace")
	}
}

func TestWrap_HealedPanicReturnsResult(t *testing.T) {
	healer := &stubHealer{outcome: orchestrator.Outcome{Success: true, Data: 42}}
	i := New(healer, nil)

	wrapped := i.Wrap(func(ctx context.Context, args ...any) (any, error) {
		panic(errors.New("nil dereference"))
	}, Options{Source: "report.render"})

	got, err := wrapped(context.Background())
	if err != nil || got != 42 {
		t.Fatalf("got (%v, %v), want (42, nil)", got, err)
	}
}

func TestWrap_SanitizesEventContext(t *testing.T) {
	healer := &stubHealer{outcome: orchestrator.Outcome{Success: false}}
	i := New(healer, nil)

	wrapped := i.Wrap(func(ctx context.Context, args ...any) (any, error) {
		return nil, errors.New("boom")
	}, Options{
		Source:  "users.update",
		Context: map[string]any{"password": "hunter2", "note": "keep"},
	})

	_, _ = wrapped(context.Background(), "sk_abcdefghijklmnopqrstuvwxyz")

	e := healer.events[0]
	if e.Context["password"] != "[REDACTED]" {
		t.Errorf("password leaked into event context: %v", e.Context)
	}
	if e.Context["note"] != "keep" {
		t.Errorf("benign context mangled: %v", e.Context)
	}
	args, ok := e.Context["args"].([]any)
	if !ok || len(args) != 1 || args[0] != "[REDACTED]" {
		t.Errorf("credential-shaped arg leaked: %v", e.Context["args"])
	}
}

// =============================================================================
// CaptureError
// =============================================================================

func TestCaptureError(t *testing.T) {
	healer := &stubHealer{}
	i := New(healer, nil)

	i.CaptureError(context.Background(), errors.New("smtp unreachable"),
		Options{Source: "mail.send", Category: domain.CategoryAPIFailure})

	if len(healer.events) != 1 {
		t.Fatalf("expected one healing run, got %d", len(healer.events))
	}
	if healer.events[0].Message != "smtp unreachable" {
		t.Errorf("unexpected event: %+v", healer.events[0])
	}

	i.CaptureError(context.Background(), nil, Options{Source: "mail.send"})
	if len(healer.events) != 1 {
		t.Error("nil error must be ignored")
	}
}

// A manual capture has no operation to retry. When diagnosis picks a
// retry-class strategy anyway, the run must end as a clean strategy
// failure, not a panic inside the healing machinery.
func TestCaptureError_RetryClassStrategyFailsCleanly(t *testing.T) {
	store := memory.NewStore()
	orch := orchestrator.New(
		memory.NewPatternRepo(store),
		memory.NewEventRepo(store),
		diagnose.NewAnalyzer(nil),
		strategy.NewExecutor(strategy.Config{}, nil, nil, nil, nil, nil, nil),
		nil,
	)
	i := New(orch, nil)

	// database + "connection timeout" diagnoses to RESET_CONNECTION,
	// which re-invokes the operation.
	i.CaptureError(context.Background(), errors.New("connection timeout"),
		Options{Source: "orders.save", Category: domain.CategoryDatabase})

	events := store.Events()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	e := events[0]
	if e.EventType != domain.EventHealingFailed {
		t.Errorf("event type = %s, want healing_failed", e.EventType)
	}
	for _, action := range e.ActionsTaken {
		if strings.Contains(action, "panic") {
			t.Errorf("run must not abort via panic, actions: %v", e.ActionsTaken)
		}
	}
	if len(e.ActionsTaken) == 0 || !strings.Contains(e.ActionsTaken[0], "none available") {
		t.Errorf("expected explanatory missing-operation action, got %v", e.ActionsTaken)
	}
}
