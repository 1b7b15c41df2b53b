package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	domainerrors "basehub/contexts/platform-ops/deployment-service/domain/errors"
	"basehub/contexts/platform-ops/deployment-service/ports"
)

type Service struct {
	Store  ports.TableStore
	Prober ports.Prober
	Clock  ports.Clock
	Logger *slog.Logger
}

// AuditTarget is one service to audit, reachable at BaseURL on its remapped
// port.
type AuditTarget struct {
	Service string
	BaseURL string
}

// LoadAndActivate loads a remap table from disk and makes it the active one.
// The previous table survives a failed load.
func (s Service) LoadAndActivate(ctx context.Context, path string) (ports.RemapTable, error) {
	table, err := LoadTable(path, s.Clock.Now())
	if err != nil {
		return ports.RemapTable{}, err
	}
	if err := s.Store.Replace(ctx, table); err != nil {
		return ports.RemapTable{}, err
	}
	resolveLogger(s.Logger).Info("remap table activated",
		"event", "remap_table_activated",
		"module", "platform-ops/deployment-service",
		"layer", "application",
		"source", path,
		"mappings", len(table.Mappings),
	)
	return table, nil
}

// ActivateDefault makes the built-in reference table the active one.
func (s Service) ActivateDefault(ctx context.Context) (ports.RemapTable, error) {
	table := DefaultTable()
	table.LoadedAt = s.Clock.Now()
	if err := s.Store.Replace(ctx, table); err != nil {
		return ports.RemapTable{}, err
	}
	return table, nil
}

func (s Service) CurrentTable(ctx context.Context) (ports.RemapTable, error) {
	table, ok, err := s.Store.Current(ctx)
	if err != nil {
		return ports.RemapTable{}, err
	}
	if !ok {
		return ports.RemapTable{}, domainerrors.ErrTableNotLoaded
	}
	return table, nil
}

// ApplyCompose remaps a compose document using the active table.
func (s Service) ApplyCompose(ctx context.Context, composeIn []byte) ([]byte, []string, error) {
	table, err := s.CurrentTable(ctx)
	if err != nil {
		return nil, nil, err
	}
	out, warnings, err := ApplyToCompose(composeIn, table)
	if err != nil {
		return nil, nil, err
	}
	for _, warning := range warnings {
		resolveLogger(s.Logger).Warn("compose remap skipped an entry",
			"event", "compose_remap_warning",
			"module", "platform-ops/deployment-service",
			"layer", "application",
			"detail", warning,
		)
	}
	return out, warnings, nil
}

// DiffCompose reports where a compose document disagrees with the active
// table.
func (s Service) DiffCompose(ctx context.Context, composeIn []byte) ([]ports.RemapDiff, error) {
	table, err := s.CurrentTable(ctx)
	if err != nil {
		return nil, err
	}
	return Diff(composeIn, table)
}

// RunAudit probes each target's health endpoint and asks its config endpoint
// whether the AIRTABLE_BASE fallback is active. With no explicit targets the
// active table supplies them, addressed on localhost.
func (s Service) RunAudit(ctx context.Context, targets []AuditTarget) ([]ports.AuditFinding, error) {
	if len(targets) == 0 {
		table, err := s.CurrentTable(ctx)
		if err != nil {
			return nil, err
		}
		for _, mapping := range table.Mappings {
			targets = append(targets, AuditTarget{
				Service: mapping.Service,
				BaseURL: fmt.Sprintf("http://localhost:%d", mapping.NewPort),
			})
		}
	}

	findings := make([]ports.AuditFinding, 0, len(targets)*2)
	for _, target := range targets {
		findings = append(findings, s.auditHealth(ctx, target))
		findings = append(findings, s.auditBaseFallback(ctx, target))
	}
	return findings, nil
}

func (s Service) auditHealth(ctx context.Context, target AuditTarget) ports.AuditFinding {
	finding := ports.AuditFinding{Service: target.Service, Check: "health"}
	resp, err := s.Prober.Get(ctx, target.BaseURL+"/api/health")
	if err != nil {
		finding.Detail = err.Error()
		return finding
	}
	if resp.StatusCode != http.StatusOK {
		finding.Detail = fmt.Sprintf("health endpoint returned %d", resp.StatusCode)
		return finding
	}
	finding.Pass = true
	return finding
}

func (s Service) auditBaseFallback(ctx context.Context, target AuditTarget) ports.AuditFinding {
	finding := ports.AuditFinding{Service: target.Service, Check: "base-fallback"}
	resp, err := s.Prober.Get(ctx, target.BaseURL+"/api/config")
	if err != nil {
		finding.Detail = err.Error()
		return finding
	}
	if resp.StatusCode != http.StatusOK {
		finding.Detail = fmt.Sprintf("config endpoint returned %d", resp.StatusCode)
		return finding
	}

	var config struct {
		AirtableBaseSet bool `json:"airtable_base_set"`
	}
	if err := json.Unmarshal(resp.Body, &config); err != nil {
		finding.Detail = "config endpoint returned an unparseable body"
		return finding
	}
	if !config.AirtableBaseSet {
		finding.Detail = "AIRTABLE_BASE fallback is not configured"
		return finding
	}
	finding.Pass = true
	return finding
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
