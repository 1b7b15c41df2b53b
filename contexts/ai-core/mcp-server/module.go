package mcpserver

import (
	"log/slog"

	httpadapter "basehub/contexts/ai-core/mcp-server/adapters/http"
	"basehub/contexts/ai-core/mcp-server/adapters/memory"
	"basehub/contexts/ai-core/mcp-server/application"
	"basehub/contexts/ai-core/mcp-server/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Gateway *memory.Gateway
}

type Dependencies struct {
	Gateway       ports.Gateway
	Clock         ports.Clock
	ServerName    string
	ServerVersion string
	DefaultBaseID string
	EnvBaseID     string
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	name := deps.ServerName
	if name == "" {
		name = "basehub-mcp"
	}
	version := deps.ServerVersion
	if version == "" {
		version = "0.1.0"
	}

	service := application.Service{
		Gateway:       deps.Gateway,
		Clock:         deps.Clock,
		ServerName:    name,
		ServerVersion: version,
		DefaultBaseID: deps.DefaultBaseID,
		EnvBaseID:     deps.EnvBaseID,
		Logger:        deps.Logger,
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
	gateway := memory.NewGateway()
	module := NewModule(Dependencies{
		Gateway:   gateway,
		EnvBaseID: envBaseID,
		Logger:    logger,
	})
	module.Gateway = gateway
	return module
}
