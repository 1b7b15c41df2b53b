package application

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainerrors "basehub/contexts/platform-ops/deployment-service/domain/errors"
	"basehub/contexts/platform-ops/deployment-service/ports"
)

type remapFile struct {
	Mappings []remapEntry `yaml:"mappings"`
}

type remapEntry struct {
	Service  string `yaml:"service"`
	Original int    `yaml:"original"`
	New      int    `yaml:"new"`
	Protocol string `yaml:"protocol"`
}

// LoadTable reads a remap table from a YAML file. Unknown keys are rejected
// so a typo like "serivce" fails loudly instead of silently dropping a row.
func LoadTable(path string, now time.Time) (ports.RemapTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ports.RemapTable{}, fmt.Errorf("read remap table: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	var file remapFile
	if err := decoder.Decode(&file); err != nil {
		return ports.RemapTable{}, fmt.Errorf("parse remap table %s: %w", path, err)
	}

	table := ports.RemapTable{Source: path, LoadedAt: now}
	for _, entry := range file.Mappings {
		protocol := entry.Protocol
		if protocol == "" {
			protocol = "tcp"
		}
		table.Mappings = append(table.Mappings, ports.PortMapping{
			Service:      entry.Service,
			OriginalPort: entry.Original,
			NewPort:      entry.New,
			Protocol:     protocol,
		})
	}
	if err := Validate(table); err != nil {
		return ports.RemapTable{}, err
	}
	return table, nil
}

// DefaultTable is the reference remapping shipped with the constellation.
// Every application port moves up by 100, grafana dodges 3000 and 3001.
func DefaultTable() ports.RemapTable {
	entries := []ports.PortMapping{
		{Service: "api-gateway", OriginalPort: 8000, NewPort: 8100, Protocol: "tcp"},
		{Service: "mcp-server", OriginalPort: 8001, NewPort: 8101, Protocol: "tcp"},
		{Service: "airtable-gateway", OriginalPort: 8002, NewPort: 8102, Protocol: "tcp"},
		{Service: "llm-orchestrator", OriginalPort: 8003, NewPort: 8103, Protocol: "tcp"},
		{Service: "automation-services", OriginalPort: 8006, NewPort: 8106, Protocol: "tcp"},
		{Service: "platform-services", OriginalPort: 8007, NewPort: 8107, Protocol: "tcp"},
		{Service: "saga-orchestrator", OriginalPort: 8008, NewPort: 8108, Protocol: "tcp"},
		{Service: "postgres", OriginalPort: 5432, NewPort: 5433, Protocol: "tcp"},
		{Service: "redis", OriginalPort: 6379, NewPort: 6380, Protocol: "tcp"},
		{Service: "prometheus", OriginalPort: 9090, NewPort: 9091, Protocol: "tcp"},
		{Service: "grafana", OriginalPort: 3000, NewPort: 3002, Protocol: "tcp"},
	}
	return ports.RemapTable{Mappings: entries, Source: "builtin"}
}

// Validate rejects tables that would not deploy cleanly.
func Validate(table ports.RemapTable) error {
	if len(table.Mappings) == 0 {
		return fmt.Errorf("%w: no mappings", domainerrors.ErrInvalidTable)
	}

	seenService := make(map[string]bool)
	seenNewPort := make(map[int]string)
	for _, mapping := range table.Mappings {
		if strings.TrimSpace(mapping.Service) == "" {
			return fmt.Errorf("%w: mapping with empty service name", domainerrors.ErrInvalidTable)
		}
		if mapping.OriginalPort < 1 || mapping.OriginalPort > 65535 {
			return fmt.Errorf("%w: %s original port %d out of range", domainerrors.ErrInvalidTable, mapping.Service, mapping.OriginalPort)
		}
		if mapping.NewPort < 1 || mapping.NewPort > 65535 {
			return fmt.Errorf("%w: %s new port %d out of range", domainerrors.ErrInvalidTable, mapping.Service, mapping.NewPort)
		}
		if mapping.OriginalPort == mapping.NewPort {
			return fmt.Errorf("%w: %s maps port %d to itself", domainerrors.ErrInvalidTable, mapping.Service, mapping.NewPort)
		}
		if seenService[mapping.Service] {
			return fmt.Errorf("%w: duplicate service %s", domainerrors.ErrInvalidTable, mapping.Service)
		}
		seenService[mapping.Service] = true
		if other, taken := seenNewPort[mapping.NewPort]; taken {
			return fmt.Errorf("%w: %s and %s both claim port %d", domainerrors.ErrInvalidTable, other, mapping.Service, mapping.NewPort)
		}
		seenNewPort[mapping.NewPort] = mapping.Service
	}
	return nil
}

// RenderTable renders the remap table as an aligned markdown table, sorted
// by service name, so the output is stable across runs.
func RenderTable(table ports.RemapTable) string {
	mappings := append([]ports.PortMapping(nil), table.Mappings...)
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Service < mappings[j].Service })

	serviceWidth := len("Service")
	for _, mapping := range mappings {
		if len(mapping.Service) > serviceWidth {
			serviceWidth = len(mapping.Service)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "| %-*s | %8s | %8s |\n", serviceWidth, "Service", "Original", "Remapped")
	fmt.Fprintf(&b, "|%s|%s|%s|\n", strings.Repeat("-", serviceWidth+2), strings.Repeat("-", 10), strings.Repeat("-", 10))
	for _, mapping := range mappings {
		fmt.Fprintf(&b, "| %-*s | %8d | %8d |\n", serviceWidth, mapping.Service, mapping.OriginalPort, mapping.NewPort)
	}
	return b.String()
}
