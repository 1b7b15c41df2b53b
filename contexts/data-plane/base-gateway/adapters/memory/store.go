package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainerrors "basehub/contexts/data-plane/base-gateway/domain/errors"
	"basehub/contexts/data-plane/base-gateway/ports"
)

// Store is an in-memory stand-in for the Airtable upstream plus the gateway's
// cache, audit log and idempotency store. Used by NewInMemoryModule and tests.
type Store struct {
	mu sync.RWMutex

	tables      map[string][]ports.TableSchema          // baseID -> schema
	records     map[string]map[string][]ports.RecordItem // baseID -> table -> records
	schemaCache map[string]ports.CachedSchema
	audit       map[string][]ports.WriteAuditEntry
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		tables:      make(map[string][]ports.TableSchema),
		records:     make(map[string]map[string][]ports.RecordItem),
		schemaCache: make(map[string]ports.CachedSchema),
		audit:       make(map[string][]ports.WriteAuditEntry),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

// SeedTable registers a table schema (and optional records) for a base.
func (s *Store) SeedTable(baseID string, schema ports.TableSchema, records ...ports.RecordItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[baseID] = append(s.tables[baseID], schema)
	if s.records[baseID] == nil {
		s.records[baseID] = make(map[string][]ports.RecordItem)
	}
	s.records[baseID][schema.Name] = append(s.records[baseID][schema.Name], records...)
}

func (s *Store) ListTables(_ context.Context, baseID string) ([]ports.TableSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := append([]ports.TableSchema(nil), s.tables[baseID]...)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

func (s *Store) ListRecords(_ context.Context, baseID string, query ports.ListRecordsQuery) (ports.RecordPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTable, ok := s.records[baseID]
	if !ok {
		return ports.RecordPage{}, domainerrors.ErrTableNotFound
	}
	items, ok := byTable[query.Table]
	if !ok {
		return ports.RecordPage{}, domainerrors.ErrTableNotFound
	}

	filtered := items
	if formula := strings.TrimSpace(query.FilterFormula); formula != "" {
		filtered = filterByFormula(items, formula)
	}

	start := 0
	if query.Offset != "" {
		parsed, err := strconv.Atoi(query.Offset)
		if err != nil || parsed < 0 {
			return ports.RecordPage{}, domainerrors.ErrInvalidRequest
		}
		start = parsed
	}
	if start >= len(filtered) {
		return ports.RecordPage{}, nil
	}

	end := start + query.PageSize
	if query.PageSize <= 0 {
		end = len(filtered)
	}
	if query.MaxRecords > 0 && start+query.MaxRecords < end {
		end = start + query.MaxRecords
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	page := ports.RecordPage{Records: append([]ports.RecordItem(nil), filtered[start:end]...)}
	if end < len(filtered) {
		page.Offset = strconv.Itoa(end)
	}
	return page, nil
}

func (s *Store) GetRecord(_ context.Context, baseID string, table string, recordID string) (ports.RecordItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.records[baseID][table]
	if !ok {
		return ports.RecordItem{}, domainerrors.ErrTableNotFound
	}
	for _, item := range items {
		if item.ID == recordID {
			return item, nil
		}
	}
	return ports.RecordItem{}, domainerrors.ErrRecordNotFound
}

func (s *Store) CreateRecord(ctx context.Context, baseID string, table string, fields map[string]any) (ports.RecordItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[baseID][table]; !ok {
		return ports.RecordItem{}, domainerrors.ErrTableNotFound
	}
	item := ports.RecordItem{
		ID:        "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Fields:    fields,
		CreatedAt: time.Now().UTC(),
	}
	s.records[baseID][table] = append(s.records[baseID][table], item)
	return item, nil
}

func (s *Store) UpdateRecord(_ context.Context, baseID string, table string, recordID string, fields map[string]any) (ports.RecordItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.records[baseID][table]
	if !ok {
		return ports.RecordItem{}, domainerrors.ErrTableNotFound
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
	return ports.RecordItem{}, domainerrors.ErrRecordNotFound
}

func (s *Store) DeleteRecord(_ context.Context, baseID string, table string, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.records[baseID][table]
	if !ok {
		return domainerrors.ErrTableNotFound
	}
	for i, item := range items {
		if item.ID == recordID {
			s.records[baseID][table] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return domainerrors.ErrRecordNotFound
}

func (s *Store) GetSchema(_ context.Context, baseID string, now time.Time) (ports.CachedSchema, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached, ok := s.schemaCache[baseID]
	if !ok || now.After(cached.ExpiresAt) {
		return ports.CachedSchema{}, false, nil
	}
	return cached, true, nil
}

func (s *Store) PutSchema(_ context.Context, baseID string, schema ports.CachedSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schemaCache[baseID] = schema
	return nil
}

func (s *Store) InvalidateBase(_ context.Context, baseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.schemaCache, baseID)
	return nil
}

func (s *Store) Append(_ context.Context, entry ports.WriteAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit[entry.BaseID] = append(s.audit[entry.BaseID], entry)
	return nil
}

func (s *Store) ListByBase(_ context.Context, baseID string, limit int) ([]ports.WriteAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.audit[baseID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]ports.WriteAuditEntry(nil), entries...), nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.idempotency[key]
	if !ok || now.After(record.ExpiresAt) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// filterByFormula supports the single formula shape the gateway generates:
// SEARCH(LOWER("value"), LOWER({Field})). Anything else matches nothing.
func filterByFormula(items []ports.RecordItem, formula string) []ports.RecordItem {
	var value, field string
	if _, err := fmt.Sscanf(formula, "SEARCH(LOWER(%q), LOWER({%s", &value, &field); err != nil {
		return nil
	}
	field = strings.TrimSuffix(strings.TrimSuffix(field, "))"), "}")

	var matched []ports.RecordItem
	for _, item := range items {
		raw, ok := item.Fields[field]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(raw)), strings.ToLower(value)) {
			matched = append(matched, item)
		}
	}
	return matched
}
