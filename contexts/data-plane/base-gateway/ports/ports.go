package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Payload     []byte
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

type FieldSchema struct {
	ID   string
	Name string
	Type string
}

type TableSchema struct {
	ID     string
	Name   string
	Fields []FieldSchema
}

type RecordItem struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

type RecordPage struct {
	Records []RecordItem
	Offset  string
}

type ListRecordsQuery struct {
	Table         string
	View          string
	MaxRecords    int
	PageSize      int
	Offset        string
	FilterFormula string
}

// AirtableAPI is the upstream client surface. Adapters translate these calls
// into Airtable REST requests (or serve them from a fake in memory).
type AirtableAPI interface {
	ListTables(ctx context.Context, baseID string) ([]TableSchema, error)
	ListRecords(ctx context.Context, baseID string, query ListRecordsQuery) (RecordPage, error)
	GetRecord(ctx context.Context, baseID string, table string, recordID string) (RecordItem, error)
	CreateRecord(ctx context.Context, baseID string, table string, fields map[string]any) (RecordItem, error)
	UpdateRecord(ctx context.Context, baseID string, table string, recordID string, fields map[string]any) (RecordItem, error)
	DeleteRecord(ctx context.Context, baseID string, table string, recordID string) error
}

type CachedSchema struct {
	Tables    []TableSchema
	FetchedAt time.Time
	ExpiresAt time.Time
}

type SchemaCache interface {
	GetSchema(ctx context.Context, baseID string, now time.Time) (CachedSchema, bool, error)
	PutSchema(ctx context.Context, baseID string, schema CachedSchema) error
	InvalidateBase(ctx context.Context, baseID string) error
}

// WriteAudit records every mutating call routed through the gateway.
type WriteAuditEntry struct {
	AuditID   string
	BaseID    string
	Table     string
	RecordID  string
	Operation string
	At        time.Time
}

type WriteAuditLog interface {
	Append(ctx context.Context, entry WriteAuditEntry) error
	ListByBase(ctx context.Context, baseID string, limit int) ([]WriteAuditEntry, error)
}
