package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

// PortMapping remaps one service's published port to avoid host collisions.
type PortMapping struct {
	Service      string
	OriginalPort int
	NewPort      int
	Protocol     string
}

type RemapTable struct {
	Mappings []PortMapping
	Source   string
	LoadedAt time.Time
}

// Mapping returns the entry for a service, if present.
func (t RemapTable) Mapping(service string) (PortMapping, bool) {
	for _, mapping := range t.Mappings {
		if mapping.Service == service {
			return mapping, true
		}
	}
	return PortMapping{}, false
}

type RemapDiff struct {
	Service  string
	WantPort int
	GotPort  int
}

type AuditFinding struct {
	Service string
	Check   string
	Pass    bool
	Detail  string
}

// ProbeResponse is what an audit probe observed from a service endpoint.
type ProbeResponse struct {
	StatusCode int
	Body       []byte
}

// Prober fetches a service endpoint during an audit run.
type Prober interface {
	Get(ctx context.Context, url string) (ProbeResponse, error)
}

// TableStore keeps the currently active remap table.
type TableStore interface {
	Current(ctx context.Context) (RemapTable, bool, error)
	Replace(ctx context.Context, table RemapTable) error
}
