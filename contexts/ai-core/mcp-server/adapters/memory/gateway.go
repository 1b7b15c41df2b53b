package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"basehub/contexts/ai-core/mcp-server/ports"
)

// Gateway is an in-memory ports.Gateway used by NewInMemoryModule and tests.
type Gateway struct {
	mu      sync.RWMutex
	tables  map[string][]ports.TableInfo
	records map[string]map[string][]ports.Record
}

func NewGateway() *Gateway {
	return &Gateway{
		tables:  make(map[string][]ports.TableInfo),
		records: make(map[string]map[string][]ports.Record),
	}
}

func (g *Gateway) SeedTable(baseID string, table ports.TableInfo, records ...ports.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tables[baseID] = append(g.tables[baseID], table)
	if g.records[baseID] == nil {
		g.records[baseID] = make(map[string][]ports.Record)
	}
	g.records[baseID][table.Name] = append(g.records[baseID][table.Name], records...)
}

func (g *Gateway) ListTables(_ context.Context, baseID string) ([]ports.TableInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tables := append([]ports.TableInfo(nil), g.tables[baseID]...)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

func (g *Gateway) ListRecords(_ context.Context, baseID string, table string, maxRecords int) (ports.RecordPage, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	items, err := g.tableRecords(baseID, table)
	if err != nil {
		return ports.RecordPage{}, err
	}
	if maxRecords > 0 && len(items) > maxRecords {
		items = items[:maxRecords]
	}
	return ports.RecordPage{Records: append([]ports.Record(nil), items...)}, nil
}

func (g *Gateway) GetRecord(_ context.Context, baseID string, table string, recordID string) (ports.Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	items, err := g.tableRecords(baseID, table)
	if err != nil {
		return ports.Record{}, err
	}
	for _, item := range items {
		if item.ID == recordID {
			return item, nil
		}
	}
	return ports.Record{}, fmt.Errorf("record %s not found", recordID)
}

func (g *Gateway) CreateRecord(_ context.Context, baseID string, table string, fields map[string]any) (ports.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.tableRecords(baseID, table); err != nil {
		return ports.Record{}, err
	}
	record := ports.Record{
		ID:        "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Fields:    fields,
		CreatedAt: time.Now().UTC(),
	}
	g.records[baseID][table] = append(g.records[baseID][table], record)
	return record, nil
}

func (g *Gateway) UpdateRecord(_ context.Context, baseID string, table string, recordID string, fields map[string]any) (ports.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	items, err := g.tableRecords(baseID, table)
	if err != nil {
		return ports.Record{}, err
	}
	for i, item := range items {
		if item.ID != recordID {
			continue
		}
		merged := make(map[string]any, len(item.Fields)+len(fields))
		for k, v := range item.Fields {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		items[i].Fields = merged
		return items[i], nil
	}
	return ports.Record{}, fmt.Errorf("record %s not found", recordID)
}

func (g *Gateway) DeleteRecord(_ context.Context, baseID string, table string, recordID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	items, err := g.tableRecords(baseID, table)
	if err != nil {
		return err
	}
	for i, item := range items {
		if item.ID == recordID {
			g.records[baseID][table] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("record %s not found", recordID)
}

func (g *Gateway) SearchRecords(_ context.Context, baseID string, table string, field string, value string) (ports.RecordPage, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	items, err := g.tableRecords(baseID, table)
	if err != nil {
		return ports.RecordPage{}, err
	}

	var matched []ports.Record
	for _, item := range items {
		raw, ok := item.Fields[field]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(raw)), strings.ToLower(value)) {
			matched = append(matched, item)
		}
	}
	return ports.RecordPage{Records: matched}, nil
}

func (g *Gateway) tableRecords(baseID string, table string) ([]ports.Record, error) {
	byTable, ok := g.records[baseID]
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	items, ok := byTable[table]
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return items, nil
}
