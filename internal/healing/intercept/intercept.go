// Package intercept is the public entry point of the healing engine: it
// wraps caller operations so failures flow through the orchestrator and
// healed results come back as if nothing went wrong.
package intercept

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/healing/orchestrator"
	"github.com/remedyops/healer/internal/healing/sanitize"
	"github.com/remedyops/healer/internal/healing/strategy"
)

// Healer runs one healing pass for a captured failure.
type Healer interface {
	Heal(
		ctx context.Context,
		event domain.ErrorEvent,
		op strategy.Operation,
		args []any,
	) orchestrator.Outcome
}

// ResultWriter records successful results so FALLBACK_TO_CACHE has
// material to serve later. May be nil.
type ResultWriter interface {
	Set(ctx context.Context, source string, value any) error
}

// Options describe the call site being wrapped.
type Options struct {
	// Source is the logical operation name, e.g. "payments.charge".
	Source string

	// Category classifies failures raised by this operation. Defaults to
	// runtime_error.
	Category domain.ErrorCategory

	// Context carries extra diagnostic key/values; sanitized before use.
	Context map[string]any
}

// Interceptor wraps operations with transparent healing.
type Interceptor struct {
	healer  Healer
	results ResultWriter
	log     *slog.Logger
}

// New creates an interceptor. results may be nil when no cache is wired.
func New(healer Healer, results ResultWriter) *Interceptor {
	return &Interceptor{
		healer:  healer,
		results: results,
		log:     slog.With("component", "intercept"),
	}
}

// Wrap returns an operation with the same shape that transparently heals
// failures. Callers see either a (possibly healed) result or the original
// error unchanged; panics inside the operation are captured and healed the
// same way, surfacing as errors rather than re-panicking.
func (i *Interceptor) Wrap(op strategy.Operation, opts Options) strategy.Operation {
	return func(ctx context.Context, args ...any) (result any, err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			event := i.buildEvent(opts, formatRecovered(r), string(debug.Stack()), args)
			event.Category = domain.CategoryRuntime
			outcome := i.healer.Heal(ctx, event, op, args)
			if outcome.Success {
				i.cacheResult(ctx, opts.Source, outcome.Data)
				result, err = outcome.Data, nil
				return
			}
			result, err = nil, fmt.Errorf("panic in %s: %v", opts.Source, r)
		}()

		result, err = op(ctx, args...)
		if err == nil {
			i.cacheResult(ctx, opts.Source, result)
			return result, nil
		}

		event := i.buildEvent(opts, err.Error(), "", args)
		outcome := i.healer.Heal(ctx, event, op, args)
		if outcome.Success {
			i.cacheResult(ctx, opts.Source, outcome.Data)
			return outcome.Data, nil
		}

		// Healing is attempted recovery, not error suppression: the
		// caller gets the original error back.
		return nil, err
	}
}

// CaptureError feeds a failure through healing for call sites that cannot
// use Wrap. There is no operation to retry, so only side-effect strategies
// can succeed.
func (i *Interceptor) CaptureError(ctx context.Context, opErr error, opts Options) {
	if opErr == nil {
		return
	}
	event := i.buildEvent(opts, opErr.Error(), "", nil)
	i.healer.Heal(ctx, event, nil, nil)
}

func (i *Interceptor) buildEvent(opts Options, message, stack string, args []any) domain.ErrorEvent {
	category := opts.Category
	if category == "" {
		category = domain.CategoryRuntime
	}

	evctx := sanitize.Map(opts.Context)
	if len(args) > 0 {
		if evctx == nil {
			evctx = make(map[string]any, 1)
		}
		evctx["args"] = sanitize.Args(args)
	}

	return domain.ErrorEvent{
		Category: category,
		Source:   opts.Source,
		Message:  message,
		Stack:    stack,
		Context:  evctx,
	}
}

func (i *Interceptor) cacheResult(ctx context.Context, source string, value any) {
	if i.results == nil || value == nil {
		return
	}
	if err := i.results.Set(ctx, source, value); err != nil {
		i.log.Debug("failed to cache result", "source", source, "error", err)
	}
}

func formatRecovered(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", r)
}
