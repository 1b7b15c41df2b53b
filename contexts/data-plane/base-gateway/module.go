package basegateway

import (
	"log/slog"
	"time"

	httpadapter "basehub/contexts/data-plane/base-gateway/adapters/http"
	"basehub/contexts/data-plane/base-gateway/adapters/memory"
	"basehub/contexts/data-plane/base-gateway/application"
	"basehub/contexts/data-plane/base-gateway/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	API            ports.AirtableAPI
	Cache          ports.SchemaCache
	Audit          ports.WriteAuditLog
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	DefaultBaseID  string
	EnvBaseID      string
	SchemaTTL      time.Duration
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		API:            deps.API,
		Cache:          deps.Cache,
		Audit:          deps.Audit,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		DefaultBaseID:  deps.DefaultBaseID,
		EnvBaseID:      deps.EnvBaseID,
		SchemaTTL:      deps.SchemaTTL,
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

func NewInMemoryModule(envBaseID string, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		API:            store,
		Cache:          store,
		Audit:          store,
		Idempotency:    store,
		Clock:          store,
		IDGenerator:    store,
		EnvBaseID:      envBaseID,
		SchemaTTL:      5 * time.Minute,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
