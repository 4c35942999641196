package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/remedyops/healer/internal/core/domain"
)

// =============================================================================
// Mocks
// =============================================================================

type mockCache struct {
	data        map[string]any
	invalidated []string
	getErr      error
}

func (m *mockCache) Get(ctx context.Context, source string) (any, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[source]
	return v, ok, nil
}

func (m *mockCache) InvalidateNamespace(ctx context.Context, ns string) (int, error) {
	m.invalidated = append(m.invalidated, ns)
	return 3, nil
}

type mockResetter struct {
	categories []domain.ErrorCategory
	err        error
}

func (m *mockResetter) Reset(ctx context.Context, c domain.ErrorCategory) error {
	m.categories = append(m.categories, c)
	return m.err
}

type mockRollbacker struct {
	sources []string
}

func (m *mockRollbacker) Rollback(ctx context.Context, source string) error {
	m.sources = append(m.sources, source)
	return nil
}

type mockQueue struct {
	enqueued []string
	err      error
}

func (m *mockQueue) Enqueue(source string, op Operation, args []any) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, source)
	return nil
}

// failNTimes returns an operation that fails n times, then succeeds.
func failNTimes(n int, result any) (Operation, *int) {
	calls := new(int)
	return func(ctx context.Context, args ...any) (any, error) {
		*calls++
		if *calls <= n {
			return nil, fmt.Errorf("boom %d", *calls)
		}
		return result, nil
	}, calls
}

// newTestExecutor builds an executor with recorded, instant sleeps.
func newTestExecutor(t *testing.T, cfg Config, deps ...any) (*Executor, *[]time.Duration) {
	t.Helper()

	var cache ResultCache
	var switcher EndpointSwitcher
	var resetter ConnectionResetter
	var rollback TxRollbacker
	var queue RetryQueue
	defaults := map[string]any{}

	for _, d := range deps {
		switch v := d.(type) {
		case ResultCache:
			cache = v
		case EndpointSwitcher:
			switcher = v
		case ConnectionResetter:
			resetter = v
		case TxRollbacker:
			rollback = v
		case RetryQueue:
			queue = v
		case map[string]any:
			defaults = v
		}
	}

	e := NewExecutor(cfg, cache, switcher, resetter, rollback, queue, defaults)
	slept := &[]time.Duration{}
	e.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return e, slept
}

func apiEvent(msg string) domain.ErrorEvent {
	return domain.ErrorEvent{Category: domain.CategoryAPIFailure, Source: "billing.charge", Message: msg}
}

// =============================================================================
// RETRY_WITH_BACKOFF
// =============================================================================

func TestRetryWithBackoff_SucceedsFirstCleanAttempt(t *testing.T) {
	e, slept := newTestExecutor(t, Config{})
	op, calls := failNTimes(1, "ok")

	res := e.Apply(context.Background(), domain.StrategyRetryWithBackoff, apiEvent("x"), op, nil)

	if !res.Success || res.Data != "ok" {
		t.Fatalf("expected success with data, got %+v", res)
	}
	if *calls != 2 {
		t.Errorf("expected 2 invocations, got %d", *calls)
	}
	if len(*slept) != 1 || (*slept)[0] != 1*time.Second {
		t.Errorf("expected one 1s backoff, got %v", *slept)
	}
}

func TestRetryWithBackoff_Sequence1sThen2s(t *testing.T) {
	e, slept := newTestExecutor(t, Config{MaxRetries: 3})
	op, calls := failNTimes(99, nil)

	res := e.Apply(context.Background(), domain.StrategyRetryWithBackoff, apiEvent("x"), op, nil)

	if res.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	if *calls != 3 {
		t.Errorf("expected 3 attempts, got %d", *calls)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, *slept)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, (*slept)[i], want[i])
		}
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "boom 3") {
		t.Errorf("expected final error wrapped, got %v", res.Err)
	}
	if len(res.ActionsTaken) == 0 {
		t.Error("expected an action per step")
	}
}

func TestRetryWithBackoff_CancelledContext(t *testing.T) {
	e, _ := newTestExecutor(t, Config{})
	e.sleep = sleepCtx // real sleep, cancelled immediately

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op, _ := failNTimes(99, nil)

	res := e.Apply(ctx, domain.StrategyRetryWithBackoff, apiEvent("x"), op, nil)
	if res.Success {
		t.Fatal("expected failure on cancelled context")
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Err)
	}
}

// =============================================================================
// Cache strategies
// =============================================================================

func TestFallbackToCache(t *testing.T) {
	cache := &mockCache{data: map[string]any{"billing.charge": map[string]any{"id": "ch_1"}}}
	e, _ := newTestExecutor(t, Config{}, ResultCache(cache))

	res := e.Apply(context.Background(), domain.StrategyFallbackToCache, apiEvent("x"), nil, nil)
	if !res.Success {
		t.Fatalf("expected cache hit, got %+v", res)
	}

	missEvent := apiEvent("x")
	missEvent.Source = "other.op"
	res = e.Apply(context.Background(), domain.StrategyFallbackToCache, missEvent, nil, nil)
	if res.Success {
		t.Fatal("expected miss to fail")
	}
	if len(res.ActionsTaken) != 1 || !strings.Contains(res.ActionsTaken[0], "no cached result") {
		t.Errorf("expected miss action, got %v", res.ActionsTaken)
	}
}

func TestClearCacheAndRetry_ReducedAttempts(t *testing.T) {
	cache := &mockCache{}
	e, slept := newTestExecutor(t, Config{}, ResultCache(cache))
	op, calls := failNTimes(99, nil)

	res := e.Apply(context.Background(), domain.StrategyClearCacheAndRetry, apiEvent("x"), op, nil)

	if res.Success {
		t.Fatal("expected failure")
	}
	if *calls != 2 {
		t.Errorf("expected reduced retry count 2, got %d attempts", *calls)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "billing.charge" {
		t.Errorf("expected namespace invalidation, got %v", cache.invalidated)
	}
	if len(*slept) != 1 {
		t.Errorf("expected single backoff between 2 attempts, got %v", *slept)
	}
	if !strings.Contains(res.ActionsTaken[0], "invalidated 3 cache entries") {
		t.Errorf("expected invalidation action first, got %v", res.ActionsTaken)
	}
}

// =============================================================================
// Connection / transaction strategies
// =============================================================================

func TestResetConnection_RecyclesThenRetries(t *testing.T) {
	resetter := &mockResetter{}
	e, _ := newTestExecutor(t, Config{}, ConnectionResetter(resetter))
	op, calls := failNTimes(1, "row")

	event := domain.ErrorEvent{Category: domain.CategoryDatabase, Source: "orders.save", Message: "connection timeout"}
	res := e.Apply(context.Background(), domain.StrategyResetConnection, event, op, nil)

	if !res.Success || res.Data != "row" {
		t.Fatalf("expected healed result, got %+v", res)
	}
	if len(resetter.categories) != 1 || resetter.categories[0] != domain.CategoryDatabase {
		t.Errorf("expected pool reset for database_error, got %v", resetter.categories)
	}
	if *calls != 2 {
		t.Errorf("expected 2 attempts, got %d", *calls)
	}
}

func TestRollbackTransaction_SingleRetry(t *testing.T) {
	rb := &mockRollbacker{}
	e, _ := newTestExecutor(t, Config{}, TxRollbacker(rb))
	op, calls := failNTimes(0, "committed")

	event := domain.ErrorEvent{Category: domain.CategoryDatabase, Source: "orders.save", Message: "deadlock"}
	res := e.Apply(context.Background(), domain.StrategyRollbackTransaction, event, op, nil)

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(rb.sources) != 1 {
		t.Errorf("expected one rollback signal, got %d", len(rb.sources))
	}
	if *calls != 1 {
		t.Errorf("rollback retries exactly once, got %d calls", *calls)
	}
}

// =============================================================================
// Always-succeed strategies
// =============================================================================

func TestUseDefaultValue(t *testing.T) {
	e, _ := newTestExecutor(t, Config{}, map[string]any{"billing.charge": map[string]any{"status": "pending"}})

	res := e.Apply(context.Background(), domain.StrategyUseDefaultValue, apiEvent("x"), nil, nil)
	if !res.Success {
		t.Fatal("USE_DEFAULT_VALUE must always succeed")
	}
	if res.Data == nil {
		t.Error("expected registered default payload")
	}

	unknown := apiEvent("x")
	unknown.Source = "unregistered.op"
	res = e.Apply(context.Background(), domain.StrategyUseDefaultValue, unknown, nil, nil)
	if !res.Success {
		t.Fatal("must succeed even without a registered default")
	}
	if res.Data != nil {
		t.Error("expected nil payload for unregistered source")
	}
}

func TestSkipOperation(t *testing.T) {
	e, _ := newTestExecutor(t, Config{})
	res := e.Apply(context.Background(), domain.StrategySkipOperation, apiEvent("x"), nil, nil)
	if !res.Success {
		t.Fatal("SKIP_OPERATION must always succeed")
	}
	if len(res.ActionsTaken) != 1 || !strings.Contains(res.ActionsTaken[0], "skipped") {
		t.Errorf("expected skip action, got %v", res.ActionsTaken)
	}
}

func TestQueueForLater_FireAndForget(t *testing.T) {
	q := &mockQueue{}
	e, _ := newTestExecutor(t, Config{}, RetryQueue(q))

	// The operation itself is never invoked during healing.
	op := func(ctx context.Context, args ...any) (any, error) {
		t.Error("operation must not run inline")
		return nil, nil
	}

	res := e.Apply(context.Background(), domain.StrategyQueueForLater, apiEvent("x"), op, nil)
	if !res.Success {
		t.Fatalf("expected immediate success, got %+v", res)
	}
	if len(q.enqueued) != 1 || q.enqueued[0] != "billing.charge" {
		t.Errorf("expected enqueue, got %v", q.enqueued)
	}
}

// =============================================================================
// Endpoint / rate limit strategies
// =============================================================================

func TestSwitchAPIEndpoint(t *testing.T) {
	switcher := NewStaticEndpoints(map[string]string{"billing.charge": "https://backup.example.com"})
	e, _ := newTestExecutor(t, Config{}, EndpointSwitcher(switcher))

	var sawEndpoint string
	op := func(ctx context.Context, args ...any) (any, error) {
		sawEndpoint, _ = SecondaryEndpoint(ctx)
		return "ok", nil
	}

	res := e.Apply(context.Background(), domain.StrategySwitchAPIEndpoint, apiEvent("ECONNREFUSED"), op, nil)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if sawEndpoint != "https://backup.example.com" {
		t.Errorf("operation did not see the secondary endpoint, saw %q", sawEndpoint)
	}

	noAlt := apiEvent("x")
	noAlt.Source = "no.secondary"
	res = e.Apply(context.Background(), domain.StrategySwitchAPIEndpoint, noAlt, op, nil)
	if res.Success {
		t.Fatal("expected failure when no secondary endpoint exists")
	}
}

func TestRateLimitBackoff_CooldownThenRetry(t *testing.T) {
	e, slept := newTestExecutor(t, Config{})
	op, calls := failNTimes(0, "ok")

	res := e.Apply(context.Background(), domain.StrategyRateLimitBackoff, apiEvent("429"), op, nil)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(*slept) == 0 || (*slept)[0] != 5*time.Second {
		t.Errorf("expected 5s cooldown first, got %v", *slept)
	}
	if *calls != 1 {
		t.Errorf("expected 1 attempt after cooldown, got %d", *calls)
	}
	if !strings.Contains(res.ActionsTaken[0], "cooling down") {
		t.Errorf("expected cooldown action first, got %v", res.ActionsTaken)
	}
}

// =============================================================================
// Dispatch
// =============================================================================

func TestApply_UnknownStrategy(t *testing.T) {
	e, _ := newTestExecutor(t, Config{})
	res := e.Apply(context.Background(), domain.Strategy("MAGIC"), apiEvent("x"), nil, nil)
	if res.Success {
		t.Fatal("unknown strategy must fail")
	}
	if res.Err == nil {
		t.Fatal("unknown strategy must carry an error")
	}
}

func TestApply_NilOperationFailsCleanly(t *testing.T) {
	reinvoking := []domain.Strategy{
		domain.StrategyRetryWithBackoff,
		domain.StrategySwitchAPIEndpoint,
		domain.StrategyClearCacheAndRetry,
		domain.StrategyResetConnection,
		domain.StrategyQueueForLater,
		domain.StrategyRollbackTransaction,
		domain.StrategyRateLimitBackoff,
	}

	cache := &mockCache{}
	resetter := &mockResetter{}
	queue := &mockQueue{}
	e, slept := newTestExecutor(t, Config{}, cache, resetter, queue)
	event := domain.ErrorEvent{
		Category: domain.CategoryDatabase,
		Source:   "orders.save",
		Message:  "connection timeout",
	}

	for _, strat := range reinvoking {
		res := e.Apply(context.Background(), strat, event, nil, nil)
		if res.Success {
			t.Errorf("%s: must fail without an operation", strat)
		}
		if res.Err == nil {
			t.Errorf("%s: must carry an error", strat)
		}
		if len(res.ActionsTaken) != 1 ||
			!strings.Contains(res.ActionsTaken[0], "none available") {
			t.Errorf("%s: expected explanatory action, got %v", strat, res.ActionsTaken)
		}
	}

	// The guard fires before any side effect runs.
	if len(resetter.categories) != 0 {
		t.Errorf("pool reset must not run without an operation: %v", resetter.categories)
	}
	if len(cache.invalidated) != 0 {
		t.Errorf("cache invalidation must not run without an operation: %v", cache.invalidated)
	}
	if len(queue.enqueued) != 0 {
		t.Errorf("nothing must be enqueued without an operation: %v", queue.enqueued)
	}
	if len(*slept) != 0 {
		t.Errorf("no backoff must run without an operation: %v", *slept)
	}

	// Strategies that never re-invoke still work without one.
	if res := e.Apply(context.Background(), domain.StrategySkipOperation, event, nil, nil); !res.Success {
		t.Errorf("SKIP_OPERATION should succeed without an operation: %+v", res)
	}
	if res := e.Apply(context.Background(), domain.StrategyUseDefaultValue, event, nil, nil); !res.Success {
		t.Errorf("USE_DEFAULT_VALUE should succeed without an operation: %+v", res)
	}
}
