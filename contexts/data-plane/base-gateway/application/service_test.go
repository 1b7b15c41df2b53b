package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domainerrors "basehub/contexts/data-plane/base-gateway/domain/errors"
	"basehub/contexts/data-plane/base-gateway/ports"
)

const (
	testBase      = "appXXXXXXXXXXXXXX"
	testOtherBase = "appYYYYYYYYYYYYYY"
)

type fakeUpstream struct {
	listTablesCalls int
	lastBaseID      string
	tables          []ports.TableSchema
	createErr       error
	createdCount    int
}

func (f *fakeUpstream) ListTables(_ context.Context, baseID string) ([]ports.TableSchema, error) {
	f.listTablesCalls++
	f.lastBaseID = baseID
	return f.tables, nil
}

func (f *fakeUpstream) ListRecords(_ context.Context, baseID string, query ports.ListRecordsQuery) (ports.RecordPage, error) {
	f.lastBaseID = baseID
	return ports.RecordPage{}, nil
}

func (f *fakeUpstream) GetRecord(_ context.Context, baseID string, _ string, _ string) (ports.RecordItem, error) {
	f.lastBaseID = baseID
	return ports.RecordItem{ID: "rec1"}, nil
}

func (f *fakeUpstream) CreateRecord(_ context.Context, baseID string, _ string, fields map[string]any) (ports.RecordItem, error) {
	if f.createErr != nil {
		return ports.RecordItem{}, f.createErr
	}
	f.lastBaseID = baseID
	f.createdCount++
	return ports.RecordItem{ID: "rec-created", Fields: fields}, nil
}

func (f *fakeUpstream) UpdateRecord(_ context.Context, baseID string, _ string, recordID string, fields map[string]any) (ports.RecordItem, error) {
	f.lastBaseID = baseID
	return ports.RecordItem{ID: recordID, Fields: fields}, nil
}

func (f *fakeUpstream) DeleteRecord(_ context.Context, baseID string, _ string, _ string) error {
	f.lastBaseID = baseID
	return nil
}

type fakeCache struct {
	schemas     map[string]ports.CachedSchema
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{schemas: make(map[string]ports.CachedSchema)}
}

func (c *fakeCache) GetSchema(_ context.Context, baseID string, now time.Time) (ports.CachedSchema, bool, error) {
	cached, ok := c.schemas[baseID]
	if !ok || now.After(cached.ExpiresAt) {
		return ports.CachedSchema{}, false, nil
	}
	return cached, true, nil
}

func (c *fakeCache) PutSchema(_ context.Context, baseID string, schema ports.CachedSchema) error {
	c.schemas[baseID] = schema
	return nil
}

func (c *fakeCache) InvalidateBase(_ context.Context, baseID string) error {
	delete(c.schemas, baseID)
	c.invalidated = append(c.invalidated, baseID)
	return nil
}

type fakeAudit struct {
	entries []ports.WriteAuditEntry
}

func (a *fakeAudit) Append(_ context.Context, entry ports.WriteAuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudit) ListByBase(_ context.Context, baseID string, _ int) ([]ports.WriteAuditEntry, error) {
	var out []ports.WriteAuditEntry
	for _, entry := range a.entries {
		if entry.BaseID == baseID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeIdempotency struct {
	store map[string]ports.IdempotencyRecord
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{store: make(map[string]ports.IdempotencyRecord)}
}

func (f *fakeIdempotency) Get(_ context.Context, key string, _ time.Time) (ports.IdempotencyRecord, bool, error) {
	record, ok := f.store[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (f *fakeIdempotency) Put(_ context.Context, record ports.IdempotencyRecord) error {
	f.store[record.Key] = record
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type seqIDGen struct {
	n int
}

func (g *seqIDGen) NewID(_ context.Context) (string, error) {
	g.n++
	return fmt.Sprintf("id-%03d", g.n), nil
}

func newService(upstream *fakeUpstream) (Service, *fakeCache, *fakeAudit) {
	cache := newFakeCache()
	audit := &fakeAudit{}
	return Service{
		API:         upstream,
		Cache:       cache,
		Audit:       audit,
		Idempotency: newFakeIdempotency(),
		Clock:       fixedClock{now: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)},
		IDGen:       &seqIDGen{},
	}, cache, audit
}

func TestResolveBaseIDPrefersExplicitParameter(t *testing.T) {
	upstream := &fakeUpstream{}
	service, _, _ := newService(upstream)
	service.DefaultBaseID = testOtherBase
	service.EnvBaseID = testOtherBase

	if _, err := service.ListTables(context.Background(), testBase); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upstream.lastBaseID != testBase {
		t.Fatalf("expected explicit base %q to win, upstream saw %q", testBase, upstream.lastBaseID)
	}
}

func TestResolveBaseIDFallsBackToServiceConfigThenEnv(t *testing.T) {
	upstream := &fakeUpstream{}
	service, _, _ := newService(upstream)
	service.DefaultBaseID = testBase
	service.EnvBaseID = testOtherBase

	if _, err := service.ListTables(context.Background(), "   "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upstream.lastBaseID != testBase {
		t.Fatalf("expected service config base, upstream saw %q", upstream.lastBaseID)
	}

	service.DefaultBaseID = ""
	if _, err := service.ListTables(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upstream.lastBaseID != testOtherBase {
		t.Fatalf("expected env base, upstream saw %q", upstream.lastBaseID)
	}
}

func TestResolveBaseIDErrorNamesEnvironmentVariable(t *testing.T) {
	service, _, _ := newService(&fakeUpstream{})

	_, err := service.ListTables(context.Background(), "")
	if !errors.Is(err, domainerrors.ErrBaseIDRequired) {
		t.Fatalf("expected ErrBaseIDRequired, got %v", err)
	}
	if !strings.Contains(err.Error(), "AIRTABLE_BASE") {
		t.Fatalf("error message must name AIRTABLE_BASE, got %q", err.Error())
	}
}

func TestResolveBaseIDRejectsMalformedEnvValue(t *testing.T) {
	service, _, _ := newService(&fakeUpstream{})
	service.EnvBaseID = "not-a-base-id"

	_, err := service.ListTables(context.Background(), "")
	if !errors.Is(err, domainerrors.ErrInvalidBaseID) {
		t.Fatalf("expected ErrInvalidBaseID for malformed env value, got %v", err)
	}
	if !strings.Contains(err.Error(), "AIRTABLE_BASE") {
		t.Fatalf("error should name the offending source, got %q", err.Error())
	}
}

func TestListTablesServesSecondCallFromCache(t *testing.T) {
	upstream := &fakeUpstream{tables: []ports.TableSchema{{ID: "tbl1", Name: "Projects"}}}
	service, _, _ := newService(upstream)

	for i := 0; i < 2; i++ {
		tables, err := service.ListTables(context.Background(), testBase)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if len(tables) != 1 || tables[0].Name != "Projects" {
			t.Fatalf("call %d: unexpected tables %+v", i, tables)
		}
	}
	if upstream.listTablesCalls != 1 {
		t.Fatalf("expected one upstream fetch, got %d", upstream.listTablesCalls)
	}
}

func TestCreateRecordReplaysIdempotently(t *testing.T) {
	upstream := &fakeUpstream{}
	service, _, audit := newService(upstream)

	fields := map[string]any{"Name": "first"}
	first, err := service.CreateRecord(context.Background(), "idem-1", testBase, "Projects", fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.CreateRecord(context.Background(), "idem-1", testBase, "Projects", fields)
	if err != nil {
		t.Fatalf("unexpected replay error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay returned different record: %q vs %q", first.ID, second.ID)
	}
	if upstream.createdCount != 1 {
		t.Fatalf("expected a single upstream create, got %d", upstream.createdCount)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected a single audit entry, got %d", len(audit.entries))
	}
}

func TestCreateRecordConflictsOnReusedKeyWithDifferentBody(t *testing.T) {
	service, _, _ := newService(&fakeUpstream{})

	if _, err := service.CreateRecord(context.Background(), "idem-1", testBase, "Projects", map[string]any{"Name": "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := service.CreateRecord(context.Background(), "idem-1", testBase, "Projects", map[string]any{"Name": "b"})
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestUpdateRecordRejectsEmptyPayload(t *testing.T) {
	service, _, _ := newService(&fakeUpstream{})

	_, err := service.UpdateRecord(context.Background(), "idem-1", testBase, "Projects", "rec1", nil)
	if !errors.Is(err, domainerrors.ErrEmptyUpdate) {
		t.Fatalf("expected ErrEmptyUpdate, got %v", err)
	}
}

func TestWriteInvalidatesSchemaCache(t *testing.T) {
	upstream := &fakeUpstream{tables: []ports.TableSchema{{ID: "tbl1", Name: "Projects"}}}
	service, cache, _ := newService(upstream)

	if _, err := service.ListTables(context.Background(), testBase); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.CreateRecord(context.Background(), "idem-1", testBase, "Projects", map[string]any{"Name": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.invalidated) == 0 || cache.invalidated[0] != testBase {
		t.Fatalf("expected cache invalidation for %q, got %v", testBase, cache.invalidated)
	}
}

func TestListRecordsClampsPageSize(t *testing.T) {
	upstream := &fakeUpstream{}
	service, _, _ := newService(upstream)

	captured := ports.ListRecordsQuery{}
	service.API = upstreamFunc(func(query ports.ListRecordsQuery) {
		captured = query
	})

	if _, err := service.ListRecords(context.Background(), testBase, ports.ListRecordsQuery{Table: "Projects", PageSize: 500}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.PageSize != 100 {
		t.Fatalf("expected page size clamped to 100, got %d", captured.PageSize)
	}
}

// upstreamFunc adapts a query-capturing closure into ports.AirtableAPI.
type upstreamFunc func(query ports.ListRecordsQuery)

func (f upstreamFunc) ListTables(context.Context, string) ([]ports.TableSchema, error) {
	return nil, nil
}

func (f upstreamFunc) ListRecords(_ context.Context, _ string, query ports.ListRecordsQuery) (ports.RecordPage, error) {
	f(query)
	return ports.RecordPage{}, nil
}

func (f upstreamFunc) GetRecord(context.Context, string, string, string) (ports.RecordItem, error) {
	return ports.RecordItem{}, nil
}

func (f upstreamFunc) CreateRecord(context.Context, string, string, map[string]any) (ports.RecordItem, error) {
	return ports.RecordItem{}, nil
}

func (f upstreamFunc) UpdateRecord(context.Context, string, string, string, map[string]any) (ports.RecordItem, error) {
	return ports.RecordItem{}, nil
}

func (f upstreamFunc) DeleteRecord(context.Context, string, string, string) error {
	return nil
}
