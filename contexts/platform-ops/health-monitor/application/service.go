package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	domainerrors "basehub/contexts/platform-ops/health-monitor/domain/errors"
	"basehub/contexts/platform-ops/health-monitor/ports"
)

// downThreshold is the consecutive-failure count at which a degraded service
// is declared down.
const downThreshold = 3

// Target is one monitored service endpoint.
type Target struct {
	Service string
	URL     string
}

type Service struct {
	Prober ports.Prober
	Store  ports.ResultStore
	Clock  ports.Clock
	Logger *slog.Logger

	mu      sync.RWMutex
	targets []Target
}

// RegisterTargets replaces the monitored set. Registering the same service
// twice keeps the last URL.
func (s *Service) RegisterTargets(targets []Target) error {
	byService := make(map[string]Target)
	order := make([]string, 0, len(targets))
	for _, target := range targets {
		if strings.TrimSpace(target.Service) == "" || strings.TrimSpace(target.URL) == "" {
			return domainerrors.ErrInvalidRequest
		}
		if _, seen := byService[target.Service]; !seen {
			order = append(order, target.Service)
		}
		byService[target.Service] = target
	}

	deduped := make([]Target, 0, len(order))
	for _, name := range order {
		deduped = append(deduped, byService[name])
	}

	s.mu.Lock()
	s.targets = deduped
	s.mu.Unlock()
	return nil
}

// RegisterRemappedServices registers one health target per remapped port,
// addressed on the given host.
func (s *Service) RegisterRemappedServices(host string, services map[string]int) error {
	if host == "" {
		host = "localhost"
	}
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	targets := make([]Target, 0, len(names))
	for _, name := range names {
		targets = append(targets, Target{
			Service: name,
			URL:     fmt.Sprintf("http://%s:%d/api/health", host, services[name]),
		})
	}
	return s.RegisterTargets(targets)
}

func (s *Service) Targets() []Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Target(nil), s.targets...)
}

// ProbeAll checks every registered target once and records the results.
func (s *Service) ProbeAll(ctx context.Context) ([]ports.ProbeResult, error) {
	targets := s.Targets()
	if len(targets) == 0 {
		return nil, domainerrors.ErrNoTargets
	}

	results := make([]ports.ProbeResult, 0, len(targets))
	for _, target := range targets {
		result := s.Prober.Probe(ctx, target.Service, target.URL)
		if err := s.Store.Record(ctx, result); err != nil {
			return nil, err
		}
		if !result.Healthy {
			resolveLogger(s.Logger).Warn("health probe failed",
				"event", "health_probe_failed",
				"module", "platform-ops/health-monitor",
				"layer", "application",
				"service", target.Service,
				"url", target.URL,
				"detail", result.Detail,
			)
		}
		results = append(results, result)
	}
	return results, nil
}

// GetReport summarizes the constellation. The overall state is the worst
// service state; unknown only before any probe has run.
func (s *Service) GetReport(ctx context.Context) (ports.ConstellationReport, error) {
	statuses, err := s.Store.Statuses(ctx)
	if err != nil {
		return ports.ConstellationReport{}, err
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Service < statuses[j].Service })

	report := ports.ConstellationReport{
		State:       ports.StateUnknown,
		Services:    statuses,
		GeneratedAt: s.Clock.Now(),
	}
	for _, status := range statuses {
		if stateRank(status.State) > stateRank(report.State) {
			report.State = status.State
		}
	}
	return report, nil
}

func (s *Service) GetServiceHistory(ctx context.Context, service string, limit int) ([]ports.ProbeResult, error) {
	if strings.TrimSpace(service) == "" {
		return nil, domainerrors.ErrInvalidRequest
	}
	if _, ok, err := s.Store.Status(ctx, service); err != nil {
		return nil, err
	} else if !ok {
		return nil, domainerrors.ErrUnknownService
	}
	if limit <= 0 {
		limit = 20
	}
	return s.Store.History(ctx, service, limit)
}

// NextStatus folds one probe result into a service's running status.
func NextStatus(previous ports.ServiceStatus, result ports.ProbeResult) ports.ServiceStatus {
	status := previous
	status.Service = result.Service
	if result.Healthy {
		status.State = ports.StateHealthy
		status.LastHealthyAt = result.CheckedAt
		status.ConsecutiveFailures = 0
		return status
	}
	status.ConsecutiveFailures++
	if status.ConsecutiveFailures >= downThreshold {
		status.State = ports.StateDown
	} else {
		status.State = ports.StateDegraded
	}
	return status
}

func stateRank(state ports.ServiceState) int {
	switch state {
	case ports.StateHealthy:
		return 1
	case ports.StateDegraded:
		return 2
	case ports.StateDown:
		return 3
	default:
		return 0
	}
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
