package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

type TableInfo struct {
	ID     string
	Name   string
	Fields []FieldInfo
}

type FieldInfo struct {
	ID   string
	Name string
	Type string
}

type Record struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

type RecordPage struct {
	Records []Record
	Offset  string
}

// ToolDescriptor is what tools/list advertises for one tool.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema []byte
}

// Gateway is the slice of the data plane the MCP tools need. The composition
// root bridges it to the base gateway; tests use a fake.
type Gateway interface {
	ListTables(ctx context.Context, baseID string) ([]TableInfo, error)
	ListRecords(ctx context.Context, baseID string, table string, maxRecords int) (RecordPage, error)
	GetRecord(ctx context.Context, baseID string, table string, recordID string) (Record, error)
	CreateRecord(ctx context.Context, baseID string, table string, fields map[string]any) (Record, error)
	UpdateRecord(ctx context.Context, baseID string, table string, recordID string, fields map[string]any) (Record, error)
	DeleteRecord(ctx context.Context, baseID string, table string, recordID string) error
	SearchRecords(ctx context.Context, baseID string, table string, field string, value string) (RecordPage, error)
}
