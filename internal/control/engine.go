// Package control wires the healing engine together and manages its
// lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"

	"github.com/remedyops/healer/internal/core/config"
	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/healing/diagnose"
	"github.com/remedyops/healer/internal/healing/intercept"
	"github.com/remedyops/healer/internal/healing/orchestrator"
	"github.com/remedyops/healer/internal/healing/queue"
	"github.com/remedyops/healer/internal/healing/strategy"
	"github.com/remedyops/healer/internal/infra/llm"
	redisclient "github.com/remedyops/healer/internal/infra/redis"
	"github.com/remedyops/healer/internal/infra/storage"
	"github.com/remedyops/healer/internal/infra/storage/memory"
	"github.com/remedyops/healer/internal/infra/storage/postgres"
	"github.com/remedyops/healer/internal/monitor"
	"github.com/remedyops/healer/internal/notify"
)

// Engine owns every component of the healing system.
type Engine struct {
	cfg *config.AppConfig

	orchestrator *orchestrator.Orchestrator
	interceptor  *intercept.Interceptor
	rollbacks    *strategy.RollbackRegistry
	retryQueue   *queue.Worker
	healthMon    *monitor.Monitor
	healthServer *monitor.Server

	db          *postgres.DB
	redisClient *redisclient.Client
	log         *slog.Logger
}

// dbResetter adapts the connection pool recycle to the executor.
type dbResetter struct {
	db *postgres.DB
}

func (r dbResetter) Reset(ctx context.Context, category domain.ErrorCategory) error {
	if r.db == nil {
		return errors.New("no database pool to reset")
	}
	r.db.ResetPool()
	return nil
}

// NewEngine creates an engine with all dependencies initialized.
func NewEngine(cfg *config.AppConfig) (*Engine, error) {
	log := slog.With("component", "engine")

	// 1. Storage
	var patternRepo storage.PatternRepository
	var eventRepo storage.EventRepository
	var checkRepo storage.HealthCheckRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Goose needs the raw *sql.DB that sqlx wraps; migrations live
		// in the "migrations" folder relative to CWD.
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		patternRepo = postgres.NewPatternRepo(db)
		eventRepo = postgres.NewEventRepo(db)
		checkRepo = postgres.NewHealthCheckRepo(db)
		log.Info("using PostgreSQL storage")
	} else {
		store := memory.NewStore()
		patternRepo = memory.NewPatternRepo(store)
		eventRepo = memory.NewEventRepo(store)
		checkRepo = memory.NewHealthCheckRepo(store)
		log.Info("using memory storage")
	}

	// 2. Redis (optional): result cache for FALLBACK_TO_CACHE and the
	// queue-depth mirror.
	var redisClient *redisclient.Client
	var resultCache *redisclient.ResultCache
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, cache fallback disabled", "error", err)
		} else {
			resultCache = redisclient.NewResultCache(redisClient)
		}
	}

	// 3. Notifier
	var notifier *notify.Notifier
	if cfg.Notify.WebhookURL != "" && len(cfg.Notify.Operators) > 0 {
		sender := notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout)
		notifier = notify.NewNotifier(sender, notify.StaticOperators{Operators: cfg.Notify.Operators})
	}

	// 4. Diagnosis
	var llmClient *llm.Client
	var completer diagnose.ChatCompleter
	if cfg.LLM.BaseURL != "" || cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(cfg.LLM)
		completer = llmClient
	}
	analyzer := diagnose.NewAnalyzer(completer)

	// 5. Strategy execution
	rollbacks := strategy.NewRollbackRegistry()
	var mirror queue.DepthMirror
	if resultCache != nil {
		mirror = resultCache
	}
	retryQueue := queue.NewWorker(cfg.Queue, mirror)

	var cache strategy.ResultCache
	if resultCache != nil {
		cache = resultCache
	}
	executor := strategy.NewExecutor(
		cfg.Healing.Executor,
		cache,
		strategy.NewStaticEndpoints(cfg.Healing.SecondaryEndpoints),
		dbResetter{db: db},
		rollbacks,
		retryQueue,
		cfg.Healing.Defaults,
	)

	// 6. Orchestrator + interceptor
	var orchNotifier orchestrator.Notifier
	if notifier != nil {
		orchNotifier = notifier
	}
	orch := orchestrator.New(patternRepo, eventRepo, analyzer, executor, orchNotifier)

	var writer intercept.ResultWriter
	if resultCache != nil {
		writer = resultCache
	}
	interceptor := intercept.New(orch, writer)

	// 7. Health monitor
	var llmForProbe monitor.LLMPinger
	if llmClient != nil {
		llmForProbe = llmClient
	}
	var dbForProbe monitor.Pinger
	if db != nil {
		dbForProbe = db
	}
	probes := []monitor.Probe{
		monitor.LLMProbe(llmForProbe),
		monitor.DatabaseProbe(dbForProbe),
		monitor.EmailProviderProbe(nil, cfg.Monitor.EmailProviderURL),
		monitor.SMSConfigProbe(cfg.Monitor.SMSAccountID, cfg.Monitor.SMSAuthToken),
		monitor.ErrorRateProbe(eventRepo),
		monitor.MemoryProbe(),
		monitor.FileStorageProbe(cfg.Monitor.FileStorageDir),
	}
	var monNotifier monitor.Notifier
	if notifier != nil {
		monNotifier = notifier
	}
	healthMon := monitor.New(probes, checkRepo, orch, monNotifier, cfg.Monitor.Interval)
	healthServer := monitor.NewServer(healthMon, cfg.Server.Port)

	return &Engine{
		cfg:          cfg,
		orchestrator: orch,
		interceptor:  interceptor,
		rollbacks:    rollbacks,
		retryQueue:   retryQueue,
		healthMon:    healthMon,
		healthServer: healthServer,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Start launches the background loops: health monitor, retry worker and
// the health HTTP server.
func (e *Engine) Start(ctx context.Context) error {
	go func() {
		if err := e.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("health server failed", "error", err)
		}
	}()

	go e.healthMon.Start(ctx)
	go e.retryQueue.Start(ctx)

	e.log.Info("healing engine started", "port", e.cfg.Server.Port)
	return nil
}

// Stop shuts the engine down.
func (e *Engine) Stop(ctx context.Context) error {
	e.log.Info("stopping healing engine")

	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.log.Warn("failed to close redis", "error", err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("failed to close database", "error", err)
		}
	}

	return e.healthServer.Stop(ctx)
}

// Interceptor returns the wrap/capture surface application code uses.
func (e *Engine) Interceptor() *intercept.Interceptor {
	return e.interceptor
}

// Rollbacks returns the registry call sites use to install transaction
// rollback handlers for their sources.
func (e *Engine) Rollbacks() *strategy.RollbackRegistry {
	return e.rollbacks
}

// Monitor returns the health monitor, mainly for ad-hoc sweeps.
func (e *Engine) Monitor() *monitor.Monitor {
	return e.healthMon
}
