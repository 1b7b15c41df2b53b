// Package deploymentservice wires the port-remap tooling: the remap table,
// compose rewriting and the deployment audit.
package deploymentservice

import (
	"context"
	"log/slog"
	"time"

	"basehub/contexts/platform-ops/deployment-service/adapters/fswatch"
	httpadapter "basehub/contexts/platform-ops/deployment-service/adapters/http"
	"basehub/contexts/platform-ops/deployment-service/adapters/httpprobe"
	"basehub/contexts/platform-ops/deployment-service/adapters/memory"
	"basehub/contexts/platform-ops/deployment-service/application"
	"basehub/contexts/platform-ops/deployment-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Store  ports.TableStore
	Prober ports.Prober
	Clock  ports.Clock
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Store:  deps.Store,
		Prober: deps.Prober,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule wires the module with the built-in table preloaded. An
// optional tablePath overrides it when the file loads cleanly.
func NewInMemoryModule(ctx context.Context, tablePath string, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Store:  store,
		Prober: httpprobe.NewProber(5 * time.Second),
		Clock:  store,
		Logger: logger,
	})
	module.Store = store

	if _, err := module.Service.ActivateDefault(ctx); err != nil && logger != nil {
		logger.Warn("failed to activate built-in remap table",
			"event", "remap_table_activate_failed",
			"module", "platform-ops/deployment-service",
			"error", err.Error(),
		)
	}
	if tablePath != "" {
		if _, err := module.Service.LoadAndActivate(ctx, tablePath); err != nil && logger != nil {
			logger.Warn("remap table file rejected, using built-in table",
				"event", "remap_table_load_failed",
				"module", "platform-ops/deployment-service",
				"path", tablePath,
				"error", err.Error(),
			)
		}
	}
	return module
}

// NewWatcher builds the fsnotify reload loop for a module's table file.
func (m Module) NewWatcher(path string, logger *slog.Logger) *fswatch.Watcher {
	return fswatch.NewWatcher(m.Service, path, logger)
}
