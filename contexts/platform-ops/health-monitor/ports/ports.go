package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ProbeResult struct {
	Service    string
	URL        string
	Healthy    bool
	StatusCode int
	LatencyMs  int64
	CheckedAt  time.Time
	Detail     string
}

type ServiceState string

const (
	StateUnknown  ServiceState = "unknown"
	StateHealthy  ServiceState = "healthy"
	StateDegraded ServiceState = "degraded"
	StateDown     ServiceState = "down"
)

type ServiceStatus struct {
	Service             string
	State               ServiceState
	LastHealthyAt       time.Time
	ConsecutiveFailures int
}

type ConstellationReport struct {
	State       ServiceState
	Services    []ServiceStatus
	GeneratedAt time.Time
}

// Prober performs one health check against a service URL.
type Prober interface {
	Probe(ctx context.Context, service string, url string) ProbeResult
}

// ResultStore keeps probe history and per-service status.
type ResultStore interface {
	Record(ctx context.Context, result ProbeResult) error
	Status(ctx context.Context, service string) (ServiceStatus, bool, error)
	Statuses(ctx context.Context) ([]ServiceStatus, error)
	History(ctx context.Context, service string, limit int) ([]ProbeResult, error)
}
