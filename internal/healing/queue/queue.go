// Package queue runs the background retry worker behind QUEUE_FOR_LATER.
// Submissions are fire-and-forget: the orchestrator never waits on them,
// and the queue is in-process only (operations are closures and cannot be
// serialised), so crash durability is explicitly not promised.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/remedyops/healer/internal/healing/metrics"
	"github.com/remedyops/healer/internal/healing/strategy"
)

// DepthMirror pushes the current queue depth to an external store for
// dashboards. May be nil.
type DepthMirror interface {
	SetQueueDepth(ctx context.Context, depth int)
}

// Config tunes the retry worker.
type Config struct {
	Capacity    int           `yaml:"capacity"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

type item struct {
	source   string
	op       strategy.Operation
	args     []any
	attempts int
}

// Worker consumes queued operations and re-invokes them with a fixed delay
// between attempts, up to a cap.
type Worker struct {
	cfg    Config
	ch     chan item
	mirror DepthMirror
	log    *slog.Logger
}

// NewWorker creates the retry worker. mirror may be nil.
func NewWorker(cfg Config, mirror DepthMirror) *Worker {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	return &Worker{
		cfg:    cfg,
		ch:     make(chan item, cfg.Capacity),
		mirror: mirror,
		log:    slog.With("component", "retry_queue"),
	}
}

// Enqueue hands an operation to the worker. It never blocks: a full queue
// is an error the strategy reports instead of stalling the healing path.
func (w *Worker) Enqueue(source string, op strategy.Operation, args []any) error {
	select {
	case w.ch <- item{source: source, op: op, args: args}:
		w.publishDepth()
		return nil
	default:
		return fmt.Errorf("retry queue full (%d items)", w.cfg.Capacity)
	}
}

// Depth returns the number of waiting operations.
func (w *Worker) Depth() int {
	return len(w.ch)
}

// Start runs the consume loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-w.ch:
			w.publishDepth()
			w.process(ctx, it)
		}
	}
}

func (w *Worker) process(ctx context.Context, it item) {
	if err := sleepCtx(ctx, w.cfg.RetryDelay); err != nil {
		return
	}

	_, err := it.op(ctx, it.args...)
	if err == nil {
		w.log.Info("queued retry succeeded", "source", it.source, "attempt", it.attempts+1)
		return
	}

	it.attempts++
	if it.attempts >= w.cfg.MaxAttempts {
		w.log.Warn("queued retry exhausted",
			"source", it.source, "attempts", it.attempts, "error", err)
		return
	}

	select {
	case w.ch <- it:
		w.publishDepth()
	default:
		w.log.Warn("retry queue full, dropping operation", "source", it.source)
	}
}

func (w *Worker) publishDepth() {
	depth := len(w.ch)
	metrics.RetryQueueDepth.Set(float64(depth))
	if w.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		w.mirror.SetQueueDepth(ctx, depth)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
