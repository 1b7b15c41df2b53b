// Package healthmonitor wires constellation health probing: per-service
// probe history, failure-count state and the aggregate report.
package healthmonitor

import (
	"log/slog"
	"time"

	httpadapter "basehub/contexts/platform-ops/health-monitor/adapters/http"
	"basehub/contexts/platform-ops/health-monitor/adapters/httpprobe"
	"basehub/contexts/platform-ops/health-monitor/adapters/memory"
	"basehub/contexts/platform-ops/health-monitor/application"
	"basehub/contexts/platform-ops/health-monitor/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service *application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Prober ports.Prober
	Store  ports.ResultStore
	Clock  ports.Clock
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := &application.Service{
		Prober: deps.Prober,
		Store:  deps.Store,
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

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Prober: httpprobe.NewProber(5*time.Second, store),
		Store:  store,
		Clock:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}

// NewWorker builds the ticker loop that probes every interval.
func (m Module) NewWorker(interval time.Duration) application.Worker {
	return application.Worker{Service: m.Service, Interval: interval}
}
