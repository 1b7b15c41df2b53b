package bootstrap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	llmorchestrator "basehub/contexts/ai-core/llm-orchestrator"
	genaiadapter "basehub/contexts/ai-core/llm-orchestrator/adapters/genai"
	llmmemory "basehub/contexts/ai-core/llm-orchestrator/adapters/memory"
	llmpostgres "basehub/contexts/ai-core/llm-orchestrator/adapters/postgres"
	mcpserver "basehub/contexts/ai-core/mcp-server"
	basegateway "basehub/contexts/data-plane/base-gateway"
	"basehub/contexts/data-plane/base-gateway/adapters/airtable"
	basegatewaymemory "basehub/contexts/data-plane/base-gateway/adapters/memory"
	basegatewaypostgres "basehub/contexts/data-plane/base-gateway/adapters/postgres"
	deploymentservice "basehub/contexts/platform-ops/deployment-service"
	healthmonitor "basehub/contexts/platform-ops/health-monitor"
	healthapp "basehub/contexts/platform-ops/health-monitor/application"
	sagaorchestrator "basehub/contexts/platform-ops/saga-orchestrator"
	sagamemory "basehub/contexts/platform-ops/saga-orchestrator/adapters/memory"
	sagapostgres "basehub/contexts/platform-ops/saga-orchestrator/adapters/postgres"
	sagaapp "basehub/contexts/platform-ops/saga-orchestrator/application"
	"basehub/internal/platform/config"
	"basehub/internal/platform/db"
	"basehub/internal/platform/httpserver"
	"basehub/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	idempotencyTTL = 7 * 24 * time.Hour
	schemaTTL      = 5 * time.Minute
	sagaSweepEvery = 2 * time.Second
	relaySweep     = 2 * time.Second
)

type Modules struct {
	Gateway    basegateway.Module
	MCP        mcpserver.Module
	LLM        llmorchestrator.Module
	Deployment deploymentservice.Module
	Monitor    healthmonitor.Module
	Sagas      sagaorchestrator.Module
}

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	healthWorker healthapp.Worker
	sagaWorker   sagaorchestrator.Worker
	auditRelay   *AuditRelay
	watcher      runner

	enableHealth bool
	enableSagas  bool
	enableRelay  bool

	logger *slog.Logger
}

type runner interface {
	Run(ctx context.Context) error
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	modules, pg, err := BuildModules(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	server := httpserver.New(httpserver.Options{
		Addr:            normalizeAddr(cfg.HTTPPort),
		ServiceName:     cfg.ServiceName,
		AirtableBaseSet: cfg.AirtableBase != "",
		Gateway:         modules.Gateway,
		MCP:             modules.MCP,
		LLM:             modules.LLM,
		Deployment:      modules.Deployment,
		Monitor:         modules.Monitor,
		Sagas:           modules.Sagas,
	}, logger)

	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	modules, pg, err := BuildModules(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	app := &WorkerApp{
		postgres:     pg,
		healthWorker: modules.Monitor.NewWorker(cfg.ProbeInterval),
		sagaWorker:   modules.Sagas.NewWorker(sagaSweepEvery, logger),
		auditRelay: &AuditRelay{
			Gateway:   modules.Gateway.Service,
			Publisher: kafka,
			BaseID:    cfg.AirtableBase,
			Logger:    logger,
		},
		enableHealth: cfg.EnableHealthProbes,
		enableSagas:  cfg.EnableSagaWorker,
		enableRelay:  cfg.EnableOutboxRelay && cfg.AirtableBase != "",
		logger:       logger,
	}

	if cfg.EnablePortmapWatch && cfg.PortmapFile != "" {
		app.watcher = modules.Deployment.NewWatcher(cfg.PortmapFile, logger)
	}
	return app, nil
}

// BuildModules wires the six service modules against a shared infrastructure
// profile: postgres-backed stores when POSTGRES_DSN is set, in-memory stores
// otherwise, and the live Airtable client whenever a token is configured.
func BuildModules(ctx context.Context, cfg config.Config, logger *slog.Logger) (Modules, *db.Postgres, error) {
	var pg *db.Postgres
	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		connected, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return Modules{}, nil, err
		}
		models := basegatewaypostgres.Models()
		models = append(models, llmpostgres.Models()...)
		models = append(models, sagapostgres.Models()...)
		if err := connected.Migrate(models...); err != nil {
			_ = connected.Close()
			return Modules{}, nil, err
		}
		pg = connected
	}

	gateway := buildGateway(cfg, pg, logger)

	mcp := mcpserver.NewModule(mcpserver.Dependencies{
		Gateway:   mcpGatewayBridge{gateway: gateway.Service},
		EnvBaseID: cfg.AirtableBase,
		Logger:    logger,
	})

	llm, err := buildLLM(ctx, cfg, pg, gateway, logger)
	if err != nil {
		if pg != nil {
			_ = pg.Close()
		}
		return Modules{}, nil, err
	}

	deployment := deploymentservice.NewInMemoryModule(ctx, cfg.PortmapFile, logger)
	monitor := healthmonitor.NewInMemoryModule(logger)
	registerHealthTargets(ctx, deployment, monitor, logger)

	sagas := buildSagas(pg, gateway, logger)

	return Modules{
		Gateway:    gateway,
		MCP:        mcp,
		LLM:        llm,
		Deployment: deployment,
		Monitor:    monitor,
		Sagas:      sagas,
	}, pg, nil
}

func buildGateway(cfg config.Config, pg *db.Postgres, logger *slog.Logger) basegateway.Module {
	store := basegatewaymemory.NewStore()
	deps := basegateway.Dependencies{
		API:            store,
		Cache:          store,
		Audit:          store,
		Idempotency:    store,
		Clock:          store,
		IDGenerator:    store,
		EnvBaseID:      cfg.AirtableBase,
		SchemaTTL:      schemaTTL,
		IdempotencyTTL: idempotencyTTL,
		Logger:         logger,
	}
	if cfg.AirtableToken != "" {
		deps.API = airtable.NewClient(cfg.AirtableAPIURL, cfg.AirtableToken, logger)
	}
	if pg != nil {
		repo := basegatewaypostgres.NewRepository(pg.DB, logger)
		deps.Audit = repo
		deps.Idempotency = repo
		deps.Clock = basegatewaypostgres.SystemClock{}
		deps.IDGenerator = basegatewaypostgres.UUIDGenerator{}
	}

	module := basegateway.NewModule(deps)
	if deps.API == store {
		// Fake upstream stays reachable for seeding in demos and tests.
		module.Store = store
	}
	return module
}

func buildLLM(
	ctx context.Context,
	cfg config.Config,
	pg *db.Postgres,
	gateway basegateway.Module,
	logger *slog.Logger,
) (llmorchestrator.Module, error) {
	store := llmmemory.NewStore()
	deps := llmorchestrator.Dependencies{
		Sessions:       store,
		Completer:      llmmemory.EchoCompleter{},
		Gateway:        llmGatewayBridge{gateway: gateway.Service},
		Idempotency:    store,
		Clock:          store,
		IDGenerator:    store,
		DefaultModel:   cfg.DefaultModel,
		EnvBaseID:      cfg.AirtableBase,
		IdempotencyTTL: idempotencyTTL,
		Logger:         logger,
	}
	if cfg.GeminiAPIKey != "" {
		completer, err := genaiadapter.NewCompleter(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return llmorchestrator.Module{}, err
		}
		deps.Completer = completer
	}
	if pg != nil {
		repo := llmpostgres.NewRepository(pg.DB, logger)
		deps.Sessions = repo
		deps.Idempotency = repo
		deps.Clock = llmpostgres.SystemClock{}
		deps.IDGenerator = llmpostgres.UUIDGenerator{}
	}

	module := llmorchestrator.NewModule(deps)
	if pg == nil {
		module.Store = store
	}
	return module, nil
}

func buildSagas(pg *db.Postgres, gateway basegateway.Module, logger *slog.Logger) sagaorchestrator.Module {
	store := sagamemory.NewStore()
	deps := sagaorchestrator.Dependencies{
		Store:          store,
		Idempotency:    store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: idempotencyTTL,
		Logger:         logger,
	}
	if pg != nil {
		repo := sagapostgres.NewRepository(pg.DB, logger)
		deps.Store = repo
		deps.Idempotency = repo
		deps.Clock = sagapostgres.SystemClock{}
		deps.IDGenerator = sagapostgres.UUIDGenerator{}
	}

	module := sagaorchestrator.NewModule(deps)
	if pg == nil {
		module.Store = store
	}
	module.Service.Register(sagaapp.ProvisionBaseSaga(provisionGatewayBridge{gateway: gateway.Service}))
	return module
}

// registerHealthTargets seeds the monitor from the active remap table so the
// probe loop covers every service on its post-remap port.
func registerHealthTargets(
	ctx context.Context,
	deployment deploymentservice.Module,
	monitor healthmonitor.Module,
	logger *slog.Logger,
) {
	table, err := deployment.Service.CurrentTable(ctx)
	if err != nil {
		if logger != nil {
			logger.Warn("no remap table active, health targets not registered",
				"event", "health_targets_skipped",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		return
	}

	services := make(map[string]int, len(table.Mappings))
	for _, mapping := range table.Mappings {
		services[mapping.Service] = mapping.NewPort
	}
	if err := monitor.Service.RegisterRemappedServices("localhost", services); err != nil && logger != nil {
		logger.Warn("health target registration failed",
			"event", "health_targets_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
	}
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"health_probes", w.enableHealth,
		"saga_worker", w.enableSagas,
		"audit_relay", w.enableRelay,
		"portmap_watch", w.watcher != nil,
	)

	if w.enableHealth {
		go w.runBackground(ctx, "health_worker", w.healthWorker)
	}
	if w.enableSagas {
		go w.runBackground(ctx, "saga_worker", w.sagaWorker)
	}
	if w.watcher != nil {
		go w.runBackground(ctx, "portmap_watcher", w.watcher)
	}

	ticker := time.NewTicker(relaySweep)
	defer ticker.Stop()

	for {
		if w.enableRelay {
			if err := w.auditRelay.RunOnce(ctx); err != nil {
				w.logger.Error("audit relay sweep failed",
					"event", "audit_relay_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) runBackground(ctx context.Context, name string, loop runner) {
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("background loop stopped",
			"event", "worker_loop_stopped",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"loop", name,
			"error", err.Error(),
		)
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8100"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
