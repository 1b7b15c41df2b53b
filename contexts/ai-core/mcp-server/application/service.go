package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	domainerrors "basehub/contexts/ai-core/mcp-server/domain/errors"
	"basehub/contexts/ai-core/mcp-server/ports"
)

const (
	ProtocolVersion = "2024-11-05"

	defaultMaxRecords = 100
)

var baseIDPattern = regexp.MustCompile(`^app[A-Za-z0-9]{14}$`)

type Service struct {
	Gateway ports.Gateway
	Clock   ports.Clock
	Logger  *slog.Logger

	ServerName    string
	ServerVersion string

	// DefaultBaseID is the service-local configured default; EnvBaseID is
	// the AIRTABLE_BASE value captured at config load. Tool arguments win.
	DefaultBaseID string
	EnvBaseID     string
}

// ToolOutcome is the result of a tool invocation. Failed tools carry their
// error text back to the model rather than failing the RPC.
type ToolOutcome struct {
	Text    string
	IsError bool
}

func (s Service) resolveBaseID(explicit string) (string, error) {
	candidates := []struct {
		value  string
		source string
	}{
		{explicit, "base_id argument"},
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

// ListTools returns the tool catalogue, stable-sorted by name.
func (s Service) ListTools(_ context.Context) []ports.ToolDescriptor {
	tools := []ports.ToolDescriptor{
		{
			Name:        "list_tables",
			Description: "List the tables of an Airtable base, with field schemas.",
			InputSchema: toolSchema(nil, nil),
		},
		{
			Name:        "list_records",
			Description: "List records from a table.",
			InputSchema: toolSchema(map[string]property{
				"table":       {Type: "string", Description: "Table name."},
				"max_records": {Type: "integer", Description: "Maximum records to return (default 100)."},
			}, []string{"table"}),
		},
		{
			Name:        "get_record",
			Description: "Fetch a single record by ID.",
			InputSchema: toolSchema(map[string]property{
				"table":     {Type: "string", Description: "Table name."},
				"record_id": {Type: "string", Description: "Record ID (recXXXXXXXXXXXXXX)."},
			}, []string{"table", "record_id"}),
		},
		{
			Name:        "create_record",
			Description: "Create a record with the given fields.",
			InputSchema: toolSchema(map[string]property{
				"table":  {Type: "string", Description: "Table name."},
				"fields": {Type: "object", Description: "Field name to value map."},
			}, []string{"table", "fields"}),
		},
		{
			Name:        "update_record",
			Description: "Patch a record; only the given fields change.",
			InputSchema: toolSchema(map[string]property{
				"table":     {Type: "string", Description: "Table name."},
				"record_id": {Type: "string", Description: "Record ID."},
				"fields":    {Type: "object", Description: "Field name to value map."},
			}, []string{"table", "record_id", "fields"}),
		},
		{
			Name:        "delete_record",
			Description: "Delete a record by ID.",
			InputSchema: toolSchema(map[string]property{
				"table":     {Type: "string", Description: "Table name."},
				"record_id": {Type: "string", Description: "Record ID."},
			}, []string{"table", "record_id"}),
		},
		{
			Name:        "search_records",
			Description: "Search a table for records whose field contains a value.",
			InputSchema: toolSchema(map[string]property{
				"table": {Type: "string", Description: "Table name."},
				"field": {Type: "string", Description: "Field to search."},
				"value": {Type: "string", Description: "Substring to match, case-insensitive."},
			}, []string{"table", "field", "value"}),
		},
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// CallTool dispatches a tools/call request. Unknown tools and structurally
// bad arguments are protocol errors; tool-level failures (including a missing
// base id) come back as an error outcome for the model to read.
func (s Service) CallTool(ctx context.Context, name string, args map[string]any) (ToolOutcome, error) {
	started := s.now()
	outcome, err := s.dispatch(ctx, name, args)
	if err != nil {
		return ToolOutcome{}, err
	}

	resolveLogger(s.Logger).Info("mcp tool call completed",
		"event", "mcp_tool_call_completed",
		"module", "ai-core/mcp-server",
		"layer", "application",
		"tool", name,
		"is_error", outcome.IsError,
		"duration_ms", s.now().Sub(started).Milliseconds(),
	)
	return outcome, nil
}

func (s Service) dispatch(ctx context.Context, name string, args map[string]any) (ToolOutcome, error) {
	switch name {
	case "list_tables":
		return s.runListTables(ctx, args)
	case "list_records":
		return s.runListRecords(ctx, args)
	case "get_record":
		return s.runGetRecord(ctx, args)
	case "create_record":
		return s.runCreateRecord(ctx, args)
	case "update_record":
		return s.runUpdateRecord(ctx, args)
	case "delete_record":
		return s.runDeleteRecord(ctx, args)
	case "search_records":
		return s.runSearchRecords(ctx, args)
	default:
		return ToolOutcome{}, fmt.Errorf("%w: %s", domainerrors.ErrUnknownTool, name)
	}
}

func (s Service) runListTables(ctx context.Context, args map[string]any) (ToolOutcome, error) {
	baseID, err := s.resolveBaseID(stringArg(args, "base_id"))
	if err != nil {
		return errorOutcome(err), nil
	}
	tables, err := s.Gateway.ListTables(ctx, baseID)
	if err != nil {
		return errorOutcome(err), nil
	}
	rendered := make([]map[string]any, 0, len(tables))
	for _, table := range tables {
		fields := make([]map[string]string, 0, len(table.Fields))
		for _, field := range table.Fields {
			fields = append(fields, map[string]string{
				"id":   field.ID,
				"name": field.Name,
				"type": field.Type,
			})
		}
		rendered = append(rendered, map[string]any{
			"id":     table.ID,
			"name":   table.Name,
			"fields": fields,
		})
	}
	return jsonOutcome(map[string]any{"base_id": baseID, "tables": rendered})
}

func (s Service) runListRecords(ctx context.Context, args map[string]any) (ToolOutcome, error) {
	table, err := requiredString(args, "table")
	if err != nil {
		return ToolOutcome{}, err
	}
	maxRecords := intArg(args, "max_records", defaultMaxRecords)

	baseID, err := s.resolveBaseID(stringArg(args, "base_id"))
	if err != nil {
		return errorOutcome(err), nil
	}
	page, err := s.Gateway.ListRecords(ctx, baseID, table, maxRecords)
	if err != nil {
		return errorOutcome(err), nil
	}
	return jsonOutcome(map[string]any{"records": renderRecords(page.Records), "offset": page.Offset})
}

func (s Service) runGetRecord(ctx context.Context, args map[string]any) (ToolOutcome, error) {
	table, err := requiredString(args, "table")
	if err != nil {
		return ToolOutcome{}, err
	}
	recordID, err := requiredString(args, "record_id")
	if err != nil {
		return ToolOutcome{}, err
	}

	baseID, err := s.resolveBaseID(stringArg(args, "base_id"))
	if err != nil {
		return errorOutcome(err), nil
	}
	record, err := s.Gateway.GetRecord(ctx, baseID, table, recordID)
	if err != nil {
		return errorOutcome(err), nil
	}
	return jsonOutcome(renderRecord(record))
}

func (s Service) runCreateRecord(ctx context.Context, args map[string]any) (ToolOutcome, error) {
	table, err := requiredString(args, "table")
	if err != nil {
		return ToolOutcome{}, err
	}
	fields, err := requiredObject(args, "fields")
	if err != nil {
		return ToolOutcome{}, err
	}

	baseID, err := s.resolveBaseID(stringArg(args, "base_id"))
	if err != nil {
		return errorOutcome(err), nil
	}
	record, err := s.Gateway.CreateRecord(ctx, baseID, table, fields)
	if err != nil {
		return errorOutcome(err), nil
	}
	return jsonOutcome(renderRecord(record))
}

func (s Service) runUpdateRecord(ctx context.Context, args map[string]any) (ToolOutcome, error) {
	table, err := requiredString(args, "table")
	if err != nil {
		return ToolOutcome{}, err
	}
	recordID, err := requiredString(args, "record_id")
	if err != nil {
		return ToolOutcome{}, err
	}
	fields, err := requiredObject(args, "fields")
	if err != nil {
		return ToolOutcome{}, err
	}

	baseID, err := s.resolveBaseID(stringArg(args, "base_id"))
	if err != nil {
		return errorOutcome(err), nil
	}
	record, err := s.Gateway.UpdateRecord(ctx, baseID, table, recordID, fields)
	if err != nil {
		return errorOutcome(err), nil
	}
	return jsonOutcome(renderRecord(record))
}

func (s Service) runDeleteRecord(ctx context.Context, args map[string]any) (ToolOutcome, error) {
	table, err := requiredString(args, "table")
	if err != nil {
		return ToolOutcome{}, err
	}
	recordID, err := requiredString(args, "record_id")
	if err != nil {
		return ToolOutcome{}, err
	}

	baseID, err := s.resolveBaseID(stringArg(args, "base_id"))
	if err != nil {
		return errorOutcome(err), nil
	}
	if err := s.Gateway.DeleteRecord(ctx, baseID, table, recordID); err != nil {
		return errorOutcome(err), nil
	}
	return jsonOutcome(map[string]any{"deleted": recordID})
}

func (s Service) runSearchRecords(ctx context.Context, args map[string]any) (ToolOutcome, error) {
	table, err := requiredString(args, "table")
	if err != nil {
		return ToolOutcome{}, err
	}
	field, err := requiredString(args, "field")
	if err != nil {
		return ToolOutcome{}, err
	}
	value, err := requiredString(args, "value")
	if err != nil {
		return ToolOutcome{}, err
	}

	baseID, err := s.resolveBaseID(stringArg(args, "base_id"))
	if err != nil {
		return errorOutcome(err), nil
	}
	page, err := s.Gateway.SearchRecords(ctx, baseID, table, field, value)
	if err != nil {
		return errorOutcome(err), nil
	}
	return jsonOutcome(map[string]any{"records": renderRecords(page.Records)})
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

type property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// toolSchema builds a JSON Schema object for tool input. Every tool gets the
// optional base_id property with the fallback documented.
func toolSchema(props map[string]property, required []string) []byte {
	if props == nil {
		props = make(map[string]property)
	}
	props["base_id"] = property{
		Type: "string",
		Description: "Airtable base ID (appXXXXXXXXXXXXXX). Optional: falls back to " +
			"the configured default, then the AIRTABLE_BASE environment variable.",
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return raw
}

func stringArg(args map[string]any, key string) string {
	raw, ok := args[key]
	if !ok {
		return ""
	}
	value, _ := raw.(string)
	return value
}

func requiredString(args map[string]any, key string) (string, error) {
	value := strings.TrimSpace(stringArg(args, key))
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", domainerrors.ErrInvalidParams, key)
	}
	return value, nil
}

func requiredObject(args map[string]any, key string) (map[string]any, error) {
	raw, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s is required", domainerrors.ErrInvalidParams, key)
	}
	value, ok := raw.(map[string]any)
	if !ok || len(value) == 0 {
		return nil, fmt.Errorf("%w: %s must be a non-empty object", domainerrors.ErrInvalidParams, key)
	}
	return value, nil
}

func intArg(args map[string]any, key string, fallback int) int {
	raw, ok := args[key]
	if !ok {
		return fallback
	}
	switch value := raw.(type) {
	case float64:
		if value > 0 {
			return int(value)
		}
	case int:
		if value > 0 {
			return value
		}
	}
	return fallback
}

func renderRecord(record ports.Record) map[string]any {
	out := map[string]any{
		"id":     record.ID,
		"fields": record.Fields,
	}
	if !record.CreatedAt.IsZero() {
		out["created_at"] = record.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func renderRecords(records []ports.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		out = append(out, renderRecord(record))
	}
	return out
}

func errorOutcome(err error) ToolOutcome {
	return ToolOutcome{Text: err.Error(), IsError: true}
}

func jsonOutcome(payload any) (ToolOutcome, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return ToolOutcome{}, err
	}
	return ToolOutcome{Text: string(raw)}, nil
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
