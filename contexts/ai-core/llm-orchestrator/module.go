// Package llmorchestrator wires the chat orchestration service: sessions,
// budgeted completions and schema-grounded prompts over a chat completer.
package llmorchestrator

import (
	"log/slog"
	"time"

	httpadapter "basehub/contexts/ai-core/llm-orchestrator/adapters/http"
	"basehub/contexts/ai-core/llm-orchestrator/adapters/memory"
	"basehub/contexts/ai-core/llm-orchestrator/application"
	"basehub/contexts/ai-core/llm-orchestrator/ports"
)

const defaultModel = "gemini-2.0-flash"

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Sessions       ports.SessionRepository
	Completer      ports.ChatCompleter
	Gateway        ports.Gateway
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	DefaultModel   string
	DefaultBaseID  string
	EnvBaseID      string
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	model := deps.DefaultModel
	if model == "" {
		model = defaultModel
	}
	service := application.Service{
		Sessions:       deps.Sessions,
		Completer:      deps.Completer,
		Gateway:        deps.Gateway,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		DefaultModel:   model,
		DefaultBaseID:  deps.DefaultBaseID,
		EnvBaseID:      deps.EnvBaseID,
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

func NewInMemoryModule(envBaseID string, gateway ports.Gateway, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Sessions:       store,
		Completer:      memory.EchoCompleter{},
		Gateway:        gateway,
		Idempotency:    store,
		Clock:          store,
		IDGenerator:    store,
		EnvBaseID:      envBaseID,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
