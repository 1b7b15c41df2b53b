package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	llmorchestrator "basehub/contexts/ai-core/llm-orchestrator"
	mcpserver "basehub/contexts/ai-core/mcp-server"
	basegateway "basehub/contexts/data-plane/base-gateway"
	deploymentservice "basehub/contexts/platform-ops/deployment-service"
	healthmonitor "basehub/contexts/platform-ops/health-monitor"
	sagaorchestrator "basehub/contexts/platform-ops/saga-orchestrator"
	_ "basehub/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string

	serviceName     string
	version         string
	airtableBaseSet bool

	gateway    basegateway.Module
	mcp        mcpserver.Module
	llm        llmorchestrator.Module
	deployment deploymentservice.Module
	monitor    healthmonitor.Module
	sagas      sagaorchestrator.Module
}

type Options struct {
	Addr            string
	ServiceName     string
	Version         string
	AirtableBaseSet bool

	Gateway    basegateway.Module
	MCP        mcpserver.Module
	LLM        llmorchestrator.Module
	Deployment deploymentservice.Module
	Monitor    healthmonitor.Module
	Sagas      sagaorchestrator.Module
}

func New(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8100"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "basehub"
	}
	if opts.Version == "" {
		opts.Version = "0.1.0"
	}

	s := &Server{
		mux:             http.NewServeMux(),
		logger:          logger,
		addr:            opts.Addr,
		serviceName:     opts.ServiceName,
		version:         opts.Version,
		airtableBaseSet: opts.AirtableBaseSet,
		gateway:         opts.Gateway,
		mcp:             opts.MCP,
		llm:             opts.LLM,
		deployment:      opts.Deployment,
		monitor:         opts.Monitor,
		sagas:           opts.Sagas,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/config", s.handleConfig)

	s.registerBaseGatewayRoutes()
	s.registerMCPRoutes()
	s.registerLLMRoutes()
	s.registerDeploymentRoutes()
	s.registerMonitorRoutes()
	s.registerSagaRoutes()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   s.serviceName,
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleConfig is consumed by the deployment audit: it reports whether this
// process can fall back to AIRTABLE_BASE for requests without a base id.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":           s.serviceName,
		"airtable_base_set": s.airtableBaseSet,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
