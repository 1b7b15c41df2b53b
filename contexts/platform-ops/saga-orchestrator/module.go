// Package sagaorchestrator wires multi-step workflows with compensation:
// definitions, persisted instances and the advancing worker.
package sagaorchestrator

import (
	"context"
	"log/slog"
	"time"

	httpadapter "basehub/contexts/platform-ops/saga-orchestrator/adapters/http"
	"basehub/contexts/platform-ops/saga-orchestrator/adapters/memory"
	"basehub/contexts/platform-ops/saga-orchestrator/application"
	"basehub/contexts/platform-ops/saga-orchestrator/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service *application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Store          ports.SagaStore
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := &application.Service{
		Store:          deps.Store,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Store:          store,
		Idempotency:    store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}

// Worker advances sagas on a ticker until the context is cancelled.
type Worker struct {
	Service  *application.Service
	Interval time.Duration
	Logger   *slog.Logger
}

func (w Worker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Service.RunOnce(ctx); err != nil {
			logger := w.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("saga sweep failed",
				"event", "saga_sweep_failed",
				"module", "platform-ops/saga-orchestrator",
				"layer", "application",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// NewWorker builds the advancing loop for this module.
func (m Module) NewWorker(interval time.Duration, logger *slog.Logger) Worker {
	return Worker{Service: m.Service, Interval: interval, Logger: logger}
}
