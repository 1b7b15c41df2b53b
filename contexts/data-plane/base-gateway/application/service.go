package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	domainerrors "basehub/contexts/data-plane/base-gateway/domain/errors"
	"basehub/contexts/data-plane/base-gateway/ports"
)

const (
	defaultSchemaTTL   = 5 * time.Minute
	defaultPageSize    = 100
	maxPageSize        = 100
	defaultIdemTTL     = 7 * 24 * time.Hour
	operationCreate    = "create"
	operationUpdate    = "update"
	operationDelete    = "delete"
	writeAuditPageSize = 50
)

var baseIDPattern = regexp.MustCompile(`^app[A-Za-z0-9]{14}$`)

type Service struct {
	API         ports.AirtableAPI
	Cache       ports.SchemaCache
	Audit       ports.WriteAuditLog
	Idempotency ports.IdempotencyStore
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger

	// DefaultBaseID is the service-local configured default; EnvBaseID is
	// the deployment-wide AIRTABLE_BASE value captured at config load.
	DefaultBaseID string
	EnvBaseID     string

	SchemaTTL      time.Duration
	IdempotencyTTL time.Duration
}

// resolveBaseID applies the fallback chain: explicit request value, then the
// service-local default, then the AIRTABLE_BASE environment value. A
// malformed value at any level is an error rather than a fall-through so
// misconfiguration surfaces loudly.
func (s Service) resolveBaseID(explicit string) (string, error) {
	candidates := []struct {
		value  string
		source string
	}{
		{explicit, "request"},
		{s.DefaultBaseID, "service config"},
		{s.EnvBaseID, "AIRTABLE_BASE"},
	}
	for _, candidate := range candidates {
		value := strings.TrimSpace(candidate.value)
		if value == "" {
			continue
		}
		if !baseIDPattern.MatchString(value) {
			return "", fmt.Errorf("%w (from %s)", domainerrors.ErrInvalidBaseID, candidate.source)
		}
		return value, nil
	}
	return "", domainerrors.ErrBaseIDRequired
}

func (s Service) ListTables(ctx context.Context, baseID string) ([]ports.TableSchema, error) {
	resolved, err := s.resolveBaseID(baseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if cached, ok, err := s.Cache.GetSchema(ctx, resolved, now); err == nil && ok {
		return cloneTables(cached.Tables), nil
	}

	tables, err := s.API.ListTables(ctx, resolved)
	if err != nil {
		return nil, err
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	if err := s.Cache.PutSchema(ctx, resolved, ports.CachedSchema{
		Tables:    cloneTables(tables),
		FetchedAt: now,
		ExpiresAt: now.Add(s.schemaTTL()),
	}); err != nil {
		resolveLogger(s.Logger).Warn("schema cache write failed",
			"event", "base_gateway_schema_cache_write_failed",
			"module", "data-plane/base-gateway",
			"layer", "application",
			"base_id", resolved,
			"error", err.Error(),
		)
	}
	return tables, nil
}

func (s Service) ListRecords(ctx context.Context, baseID string, query ports.ListRecordsQuery) (ports.RecordPage, error) {
	resolved, err := s.resolveBaseID(baseID)
	if err != nil {
		return ports.RecordPage{}, err
	}
	if strings.TrimSpace(query.Table) == "" {
		return ports.RecordPage{}, domainerrors.ErrInvalidRequest
	}
	if query.PageSize <= 0 {
		query.PageSize = defaultPageSize
	}
	if query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}
	if query.MaxRecords < 0 {
		return ports.RecordPage{}, domainerrors.ErrInvalidRequest
	}

	page, err := s.API.ListRecords(ctx, resolved, query)
	if err != nil {
		return ports.RecordPage{}, err
	}
	page.Records = cloneRecords(page.Records)
	return page, nil
}

func (s Service) GetRecord(ctx context.Context, baseID string, table string, recordID string) (ports.RecordItem, error) {
	resolved, err := s.resolveBaseID(baseID)
	if err != nil {
		return ports.RecordItem{}, err
	}
	if strings.TrimSpace(table) == "" || strings.TrimSpace(recordID) == "" {
		return ports.RecordItem{}, domainerrors.ErrInvalidRequest
	}
	item, err := s.API.GetRecord(ctx, resolved, table, recordID)
	if err != nil {
		return ports.RecordItem{}, err
	}
	item.Fields = cloneFields(item.Fields)
	return item, nil
}

func (s Service) CreateRecord(
	ctx context.Context,
	idempotencyKey string,
	baseID string,
	table string,
	fields map[string]any,
) (ports.RecordItem, error) {
	var out ports.RecordItem
	resolved, err := s.resolveBaseID(baseID)
	if err != nil {
		return out, err
	}
	if strings.TrimSpace(table) == "" || len(fields) == 0 {
		return out, domainerrors.ErrInvalidRequest
	}
	if err := s.requireIdempotency(idempotencyKey); err != nil {
		return out, err
	}

	fields = cloneFields(fields)
	payload, _ := json.Marshal(map[string]any{"base": resolved, "table": table, "fields": fields})
	requestHash := hashStrings("base_gateway_create_record", string(payload))
	err = s.runIdempotent(
		ctx,
		idempotencyKey,
		requestHash,
		func(raw []byte) error { return json.Unmarshal(raw, &out) },
		func() ([]byte, error) {
			item, err := s.API.CreateRecord(ctx, resolved, table, fields)
			if err != nil {
				return nil, err
			}
			s.recordAudit(ctx, resolved, table, item.ID, operationCreate)
			s.invalidate(ctx, resolved)
			return json.Marshal(item)
		},
	)
	out.Fields = cloneFields(out.Fields)
	return out, err
}

func (s Service) UpdateRecord(
	ctx context.Context,
	idempotencyKey string,
	baseID string,
	table string,
	recordID string,
	fields map[string]any,
) (ports.RecordItem, error) {
	var out ports.RecordItem
	resolved, err := s.resolveBaseID(baseID)
	if err != nil {
		return out, err
	}
	if strings.TrimSpace(table) == "" || strings.TrimSpace(recordID) == "" {
		return out, domainerrors.ErrInvalidRequest
	}
	if len(fields) == 0 {
		return out, domainerrors.ErrEmptyUpdate
	}
	if err := s.requireIdempotency(idempotencyKey); err != nil {
		return out, err
	}

	fields = cloneFields(fields)
	payload, _ := json.Marshal(map[string]any{"base": resolved, "table": table, "record": recordID, "fields": fields})
	requestHash := hashStrings("base_gateway_update_record", string(payload))
	err = s.runIdempotent(
		ctx,
		idempotencyKey,
		requestHash,
		func(raw []byte) error { return json.Unmarshal(raw, &out) },
		func() ([]byte, error) {
			item, err := s.API.UpdateRecord(ctx, resolved, table, recordID, fields)
			if err != nil {
				return nil, err
			}
			s.recordAudit(ctx, resolved, table, item.ID, operationUpdate)
			s.invalidate(ctx, resolved)
			return json.Marshal(item)
		},
	)
	out.Fields = cloneFields(out.Fields)
	return out, err
}

func (s Service) DeleteRecord(
	ctx context.Context,
	idempotencyKey string,
	baseID string,
	table string,
	recordID string,
) error {
	resolved, err := s.resolveBaseID(baseID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(table) == "" || strings.TrimSpace(recordID) == "" {
		return domainerrors.ErrInvalidRequest
	}
	if err := s.requireIdempotency(idempotencyKey); err != nil {
		return err
	}

	requestHash := hashStrings("base_gateway_delete_record", resolved, table, recordID)
	return s.runIdempotent(
		ctx,
		idempotencyKey,
		requestHash,
		func([]byte) error { return nil },
		func() ([]byte, error) {
			if err := s.API.DeleteRecord(ctx, resolved, table, recordID); err != nil {
				return nil, err
			}
			s.recordAudit(ctx, resolved, table, recordID, operationDelete)
			s.invalidate(ctx, resolved)
			return json.Marshal(map[string]string{"deleted": recordID})
		},
	)
}

func (s Service) SearchRecords(
	ctx context.Context,
	baseID string,
	table string,
	field string,
	value string,
) (ports.RecordPage, error) {
	if strings.TrimSpace(field) == "" || strings.TrimSpace(value) == "" {
		return ports.RecordPage{}, domainerrors.ErrInvalidRequest
	}
	formula := fmt.Sprintf("SEARCH(LOWER(%q), LOWER({%s}))", strings.TrimSpace(value), strings.TrimSpace(field))
	return s.ListRecords(ctx, baseID, ports.ListRecordsQuery{
		Table:         table,
		FilterFormula: formula,
	})
}

func (s Service) Invalidate(ctx context.Context, baseID string) error {
	resolved, err := s.resolveBaseID(baseID)
	if err != nil {
		return err
	}
	return s.Cache.InvalidateBase(ctx, resolved)
}

func (s Service) ListWriteAudit(ctx context.Context, baseID string, limit int) ([]ports.WriteAuditEntry, error) {
	resolved, err := s.resolveBaseID(baseID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > writeAuditPageSize {
		limit = writeAuditPageSize
	}
	return s.Audit.ListByBase(ctx, resolved, limit)
}

func (s Service) recordAudit(ctx context.Context, baseID string, table string, recordID string, operation string) {
	auditID, err := s.IDGen.NewID(ctx)
	if err != nil {
		auditID = recordID
	}
	if err := s.Audit.Append(ctx, ports.WriteAuditEntry{
		AuditID:   auditID,
		BaseID:    baseID,
		Table:     table,
		RecordID:  recordID,
		Operation: operation,
		At:        s.now(),
	}); err != nil {
		resolveLogger(s.Logger).Warn("write audit append failed",
			"event", "base_gateway_write_audit_failed",
			"module", "data-plane/base-gateway",
			"layer", "application",
			"base_id", baseID,
			"table", table,
			"error", err.Error(),
		)
	}
}

func (s Service) invalidate(ctx context.Context, baseID string) {
	if err := s.Cache.InvalidateBase(ctx, baseID); err != nil {
		resolveLogger(s.Logger).Warn("cache invalidation failed",
			"event", "base_gateway_cache_invalidate_failed",
			"module", "data-plane/base-gateway",
			"layer", "application",
			"base_id", baseID,
			"error", err.Error(),
		)
	}
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) schemaTTL() time.Duration {
	if s.SchemaTTL <= 0 {
		return defaultSchemaTTL
	}
	return s.SchemaTTL
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return defaultIdemTTL
	}
	return s.IdempotencyTTL
}

func (s Service) requireIdempotency(key string) error {
	if strings.TrimSpace(key) == "" {
		return domainerrors.ErrIdempotencyKeyRequired
	}
	return nil
}

func (s Service) runIdempotent(
	ctx context.Context,
	key string,
	requestHash string,
	decode func([]byte) error,
	exec func() ([]byte, error),
) error {
	now := s.now()
	record, found, err := s.Idempotency.Get(ctx, key, now)
	if err != nil {
		return err
	}
	if found {
		if record.RequestHash != requestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		return decode(record.Payload)
	}

	payload, err := exec()
	if err != nil {
		return err
	}
	if err := s.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Payload:     payload,
		ExpiresAt:   now.Add(s.idempotencyTTL()),
	}); err != nil {
		return err
	}
	return decode(payload)
}

func hashStrings(values ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(values, "|")))
	return hex.EncodeToString(sum[:])
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func cloneRecords(records []ports.RecordItem) []ports.RecordItem {
	out := make([]ports.RecordItem, len(records))
	for i, record := range records {
		record.Fields = cloneFields(record.Fields)
		out[i] = record
	}
	return out
}

func cloneTables(tables []ports.TableSchema) []ports.TableSchema {
	out := make([]ports.TableSchema, len(tables))
	for i, table := range tables {
		table.Fields = append([]ports.FieldSchema(nil), table.Fields...)
		out[i] = table
	}
	return out
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
