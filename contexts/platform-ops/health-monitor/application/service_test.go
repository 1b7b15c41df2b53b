package application

import (
	"context"
	"errors"
	"testing"
	"time"

	domainerrors "basehub/contexts/platform-ops/health-monitor/domain/errors"
	"basehub/contexts/platform-ops/health-monitor/ports"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type scriptedProber struct {
	healthy map[string]bool
	calls   []string
}

func (p *scriptedProber) Probe(_ context.Context, service string, url string) ports.ProbeResult {
	p.calls = append(p.calls, service)
	return ports.ProbeResult{
		Service:   service,
		URL:       url,
		Healthy:   p.healthy[service],
		CheckedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fakeStore struct {
	statuses map[string]ports.ServiceStatus
	history  map[string][]ports.ProbeResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses: make(map[string]ports.ServiceStatus),
		history:  make(map[string][]ports.ProbeResult),
	}
}

func (s *fakeStore) Record(_ context.Context, result ports.ProbeResult) error {
	s.statuses[result.Service] = NextStatus(s.statuses[result.Service], result)
	s.history[result.Service] = append(s.history[result.Service], result)
	return nil
}

func (s *fakeStore) Status(_ context.Context, service string) (ports.ServiceStatus, bool, error) {
	status, ok := s.statuses[service]
	return status, ok, nil
}

func (s *fakeStore) Statuses(_ context.Context) ([]ports.ServiceStatus, error) {
	statuses := make([]ports.ServiceStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *fakeStore) History(_ context.Context, service string, limit int) ([]ports.ProbeResult, error) {
	history := s.history[service]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

func newTestService(prober ports.Prober, store ports.ResultStore) *Service {
	return &Service{
		Prober: prober,
		Store:  store,
		Clock:  fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func TestNextStatusStateRule(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pass := ports.ProbeResult{Service: "api-gateway", Healthy: true, CheckedAt: at}
	fail := ports.ProbeResult{Service: "api-gateway", Healthy: false, CheckedAt: at}

	var status ports.ServiceStatus
	status = NextStatus(status, pass)
	if status.State != ports.StateHealthy || status.ConsecutiveFailures != 0 {
		t.Fatalf("after pass: %+v", status)
	}
	if !status.LastHealthyAt.Equal(at) {
		t.Fatalf("LastHealthyAt = %v", status.LastHealthyAt)
	}

	status = NextStatus(status, fail)
	if status.State != ports.StateDegraded || status.ConsecutiveFailures != 1 {
		t.Fatalf("after 1 failure: %+v", status)
	}
	status = NextStatus(status, fail)
	if status.State != ports.StateDegraded || status.ConsecutiveFailures != 2 {
		t.Fatalf("after 2 failures: %+v", status)
	}
	status = NextStatus(status, fail)
	if status.State != ports.StateDown || status.ConsecutiveFailures != 3 {
		t.Fatalf("after 3 failures: %+v", status)
	}

	status = NextStatus(status, pass)
	if status.State != ports.StateHealthy || status.ConsecutiveFailures != 0 {
		t.Fatalf("recovery did not reset: %+v", status)
	}
}

func TestProbeAllRecordsEveryTarget(t *testing.T) {
	prober := &scriptedProber{healthy: map[string]bool{"api-gateway": true, "mcp-server": false}}
	store := newFakeStore()
	service := newTestService(prober, store)
	if err := service.RegisterTargets([]Target{
		{Service: "api-gateway", URL: "http://localhost:8100/api/health"},
		{Service: "mcp-server", URL: "http://localhost:8101/api/health"},
	}); err != nil {
		t.Fatalf("RegisterTargets: %v", err)
	}

	results, err := service.ProbeAll(context.Background())
	if err != nil {
		t.Fatalf("ProbeAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if len(store.history["api-gateway"]) != 1 || len(store.history["mcp-server"]) != 1 {
		t.Fatalf("history not recorded: %+v", store.history)
	}
}

func TestProbeAllWithoutTargets(t *testing.T) {
	service := newTestService(&scriptedProber{}, newFakeStore())
	_, err := service.ProbeAll(context.Background())
	if !errors.Is(err, domainerrors.ErrNoTargets) {
		t.Fatalf("err = %v, want ErrNoTargets", err)
	}
}

func TestGetReportTakesWorstState(t *testing.T) {
	prober := &scriptedProber{healthy: map[string]bool{"api-gateway": true, "mcp-server": false}}
	store := newFakeStore()
	service := newTestService(prober, store)
	if err := service.RegisterTargets([]Target{
		{Service: "api-gateway", URL: "http://localhost:8100/api/health"},
		{Service: "mcp-server", URL: "http://localhost:8101/api/health"},
	}); err != nil {
		t.Fatalf("RegisterTargets: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := service.ProbeAll(context.Background()); err != nil {
			t.Fatalf("ProbeAll: %v", err)
		}
	}

	report, err := service.GetReport(context.Background())
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if report.State != ports.StateDown {
		t.Fatalf("constellation state = %q, want down", report.State)
	}
	if len(report.Services) != 2 {
		t.Fatalf("services = %d, want 2", len(report.Services))
	}
	if report.Services[0].Service != "api-gateway" {
		t.Fatalf("services not sorted: %+v", report.Services)
	}
}

func TestGetReportUnknownBeforeAnyProbe(t *testing.T) {
	service := newTestService(&scriptedProber{}, newFakeStore())
	report, err := service.GetReport(context.Background())
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if report.State != ports.StateUnknown {
		t.Fatalf("state = %q, want unknown", report.State)
	}
}

func TestGetServiceHistoryUnknownService(t *testing.T) {
	service := newTestService(&scriptedProber{}, newFakeStore())
	_, err := service.GetServiceHistory(context.Background(), "ghost", 10)
	if !errors.Is(err, domainerrors.ErrUnknownService) {
		t.Fatalf("err = %v, want ErrUnknownService", err)
	}
}

func TestRegisterTargetsDeduplicates(t *testing.T) {
	service := newTestService(&scriptedProber{}, newFakeStore())
	if err := service.RegisterTargets([]Target{
		{Service: "api-gateway", URL: "http://old:8000/api/health"},
		{Service: "api-gateway", URL: "http://new:8100/api/health"},
	}); err != nil {
		t.Fatalf("RegisterTargets: %v", err)
	}
	targets := service.Targets()
	if len(targets) != 1 || targets[0].URL != "http://new:8100/api/health" {
		t.Fatalf("targets = %+v, want last URL to win", targets)
	}
}

func TestRegisterRemappedServicesBuildsURLs(t *testing.T) {
	service := newTestService(&scriptedProber{}, newFakeStore())
	if err := service.RegisterRemappedServices("", map[string]int{
		"mcp-server":  8101,
		"api-gateway": 8100,
	}); err != nil {
		t.Fatalf("RegisterRemappedServices: %v", err)
	}
	targets := service.Targets()
	if len(targets) != 2 {
		t.Fatalf("targets = %+v", targets)
	}
	if targets[0].Service != "api-gateway" || targets[0].URL != "http://localhost:8100/api/health" {
		t.Fatalf("first target = %+v", targets[0])
	}
}
