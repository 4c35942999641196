package monitor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/infra/storage"
)

// Thresholds for the derived probes.
const (
	// errorRateWindowMinutes is the trailing window for the error-rate probe.
	errorRateWindowMinutes = 5

	// maxErrorsPerMinute above this the error-rate probe reports unhealthy.
	maxErrorsPerMinute = 10.0

	// maxHeapPercent above this the memory probe reports unhealthy.
	maxHeapPercent = 85.0

	probeHTTPTimeout = 5 * time.Second
)

// Probe is one independent health check. Run returns the probe's metrics
// and whether the subsystem is healthy.
type Probe struct {
	Name     string
	Type     string
	Category domain.ErrorCategory
	Run      func(ctx context.Context) (map[string]any, bool)
}

// Pinger is anything that can answer a liveness round-trip.
type Pinger interface {
	Health(ctx context.Context) error
}

// LLMPinger additionally knows whether credentials are present at all.
type LLMPinger interface {
	Pinger
	Configured() bool
}

// LLMProbe checks diagnostic-API reachability. An unconfigured client is
// healthy: the rule tree covers diagnosis without it.
func LLMProbe(client LLMPinger) Probe {
	return Probe{
		Name:     "llm_api",
		Type:     "external_api",
		Category: domain.CategoryAPIFailure,
		Run: func(ctx context.Context) (map[string]any, bool) {
			if client == nil || !client.Configured() {
				return map[string]any{"configured": false}, true
			}
			start := time.Now()
			err := client.Health(ctx)
			m := map[string]any{
				"configured": true,
				"latency_ms": time.Since(start).Milliseconds(),
			}
			if err != nil {
				m["error"] = err.Error()
				return m, false
			}
			return m, true
		},
	}
}

// DatabaseProbe checks a storage round-trip.
func DatabaseProbe(db Pinger) Probe {
	return Probe{
		Name:     "database",
		Type:     "database",
		Category: domain.CategoryDatabase,
		Run: func(ctx context.Context) (map[string]any, bool) {
			if db == nil {
				return map[string]any{"configured": false}, true
			}
			start := time.Now()
			err := db.Health(ctx)
			m := map[string]any{"latency_ms": time.Since(start).Milliseconds()}
			if err != nil {
				m["error"] = err.Error()
				return m, false
			}
			return m, true
		},
	}
}

// EmailProviderProbe checks reachability of the mail provider endpoint.
func EmailProviderProbe(client *http.Client, url string) Probe {
	if client == nil {
		client = &http.Client{Timeout: probeHTTPTimeout}
	}
	return Probe{
		Name:     "email_provider",
		Type:     "external_api",
		Category: domain.CategoryAPIFailure,
		Run: func(ctx context.Context) (map[string]any, bool) {
			if url == "" {
				return map[string]any{"configured": false}, true
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if err != nil {
				return map[string]any{"error": err.Error()}, false
			}
			start := time.Now()
			resp, err := client.Do(req)
			m := map[string]any{"latency_ms": time.Since(start).Milliseconds()}
			if err != nil {
				m["error"] = err.Error()
				return m, false
			}
			resp.Body.Close()
			m["status_code"] = resp.StatusCode
			return m, resp.StatusCode < http.StatusInternalServerError
		},
	}
}

// SMSConfigProbe validates SMS provider configuration. Absent config means
// the channel is disabled, which is healthy; partial config is a
// misconfiguration.
func SMSConfigProbe(accountID, authToken string) Probe {
	return Probe{
		Name:     "sms_provider",
		Type:     "configuration",
		Category: domain.CategoryAPIFailure,
		Run: func(ctx context.Context) (map[string]any, bool) {
			if accountID == "" && authToken == "" {
				return map[string]any{"configured": false}, true
			}
			complete := accountID != "" && authToken != ""
			return map[string]any{"configured": true, "complete": complete}, complete
		},
	}
}

// ErrorRateProbe watches the healing-event log for error storms.
func ErrorRateProbe(events storage.EventRepository) Probe {
	return Probe{
		Name:     "error_rate",
		Type:     "system",
		Category: domain.CategoryRuntime,
		Run: func(ctx context.Context) (map[string]any, bool) {
			recent, err := events.GetRecent(ctx, errorRateWindowMinutes)
			if err != nil {
				return map[string]any{"error": err.Error()}, false
			}
			perMinute := float64(len(recent)) / float64(errorRateWindowMinutes)
			m := map[string]any{
				"window_minutes":    errorRateWindowMinutes,
				"events":            len(recent),
				"errors_per_minute": perMinute,
			}
			return m, perMinute <= maxErrorsPerMinute
		},
	}
}

// MemoryProbe watches heap pressure.
func MemoryProbe() Probe {
	return Probe{
		Name:     "memory",
		Type:     "system",
		Category: domain.CategoryPerformance,
		Run: func(ctx context.Context) (map[string]any, bool) {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			percent := 0.0
			if ms.HeapSys > 0 {
				percent = float64(ms.HeapAlloc) / float64(ms.HeapSys) * 100
			}
			m := map[string]any{
				"heap_alloc_bytes": ms.HeapAlloc,
				"heap_sys_bytes":   ms.HeapSys,
				"heap_percent":     percent,
			}
			return m, percent <= maxHeapPercent
		},
	}
}

// FileStorageProbe verifies the configured storage directory is usable.
func FileStorageProbe(dir string) Probe {
	return Probe{
		Name:     "file_storage",
		Type:     "configuration",
		Category: domain.CategoryRuntime,
		Run: func(ctx context.Context) (map[string]any, bool) {
			if dir == "" {
				return map[string]any{"configured": false}, true
			}
			m := map[string]any{"configured": true, "dir": dir}
			info, err := os.Stat(dir)
			if err != nil {
				m["error"] = err.Error()
				return m, false
			}
			if !info.IsDir() {
				m["error"] = fmt.Sprintf("%s is not a directory", dir)
				return m, false
			}
			return m, true
		},
	}
}
