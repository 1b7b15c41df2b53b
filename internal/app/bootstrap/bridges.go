package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	llmports "basehub/contexts/ai-core/llm-orchestrator/ports"
	mcpports "basehub/contexts/ai-core/mcp-server/ports"
	basegatewayapp "basehub/contexts/data-plane/base-gateway/application"
	basegatewayports "basehub/contexts/data-plane/base-gateway/ports"
	sagaports "basehub/contexts/platform-ops/saga-orchestrator/ports"
)

// Cross-context bridges live here, in the composition root, so the contexts
// stay decoupled: the MCP server, LLM orchestrator and saga orchestrator each
// declare the slice of the data plane they need and the bridge adapts the
// base gateway service to it.

type mcpGatewayBridge struct {
	gateway basegatewayapp.Service
}

var _ mcpports.Gateway = mcpGatewayBridge{}

func (b mcpGatewayBridge) ListTables(ctx context.Context, baseID string) ([]mcpports.TableInfo, error) {
	tables, err := b.gateway.ListTables(ctx, baseID)
	if err != nil {
		return nil, err
	}
	out := make([]mcpports.TableInfo, 0, len(tables))
	for _, table := range tables {
		fields := make([]mcpports.FieldInfo, 0, len(table.Fields))
		for _, field := range table.Fields {
			fields = append(fields, mcpports.FieldInfo{ID: field.ID, Name: field.Name, Type: field.Type})
		}
		out = append(out, mcpports.TableInfo{ID: table.ID, Name: table.Name, Fields: fields})
	}
	return out, nil
}

func (b mcpGatewayBridge) ListRecords(
	ctx context.Context,
	baseID string,
	table string,
	maxRecords int,
) (mcpports.RecordPage, error) {
	page, err := b.gateway.ListRecords(ctx, baseID, basegatewayports.ListRecordsQuery{
		Table:      table,
		MaxRecords: maxRecords,
	})
	if err != nil {
		return mcpports.RecordPage{}, err
	}
	return toMCPPage(page), nil
}

func (b mcpGatewayBridge) GetRecord(
	ctx context.Context,
	baseID string,
	table string,
	recordID string,
) (mcpports.Record, error) {
	item, err := b.gateway.GetRecord(ctx, baseID, table, recordID)
	if err != nil {
		return mcpports.Record{}, err
	}
	return toMCPRecord(item), nil
}

func (b mcpGatewayBridge) CreateRecord(
	ctx context.Context,
	baseID string,
	table string,
	fields map[string]any,
) (mcpports.Record, error) {
	item, err := b.gateway.CreateRecord(ctx, newBridgeKey("mcp-create"), baseID, table, fields)
	if err != nil {
		return mcpports.Record{}, err
	}
	return toMCPRecord(item), nil
}

func (b mcpGatewayBridge) UpdateRecord(
	ctx context.Context,
	baseID string,
	table string,
	recordID string,
	fields map[string]any,
) (mcpports.Record, error) {
	item, err := b.gateway.UpdateRecord(ctx, newBridgeKey("mcp-update"), baseID, table, recordID, fields)
	if err != nil {
		return mcpports.Record{}, err
	}
	return toMCPRecord(item), nil
}

func (b mcpGatewayBridge) DeleteRecord(ctx context.Context, baseID string, table string, recordID string) error {
	return b.gateway.DeleteRecord(ctx, newBridgeKey("mcp-delete"), baseID, table, recordID)
}

func (b mcpGatewayBridge) SearchRecords(
	ctx context.Context,
	baseID string,
	table string,
	field string,
	value string,
) (mcpports.RecordPage, error) {
	page, err := b.gateway.SearchRecords(ctx, baseID, table, field, value)
	if err != nil {
		return mcpports.RecordPage{}, err
	}
	return toMCPPage(page), nil
}

type llmGatewayBridge struct {
	gateway basegatewayapp.Service
}

var _ llmports.Gateway = llmGatewayBridge{}

func (b llmGatewayBridge) ListTables(ctx context.Context, baseID string) ([]llmports.TableBrief, error) {
	tables, err := b.gateway.ListTables(ctx, baseID)
	if err != nil {
		return nil, err
	}
	out := make([]llmports.TableBrief, 0, len(tables))
	for _, table := range tables {
		names := make([]string, 0, len(table.Fields))
		for _, field := range table.Fields {
			names = append(names, field.Name)
		}
		out = append(out, llmports.TableBrief{Name: table.Name, Fields: names})
	}
	return out, nil
}

type provisionGatewayBridge struct {
	gateway basegatewayapp.Service
}

var _ sagaports.ProvisionGateway = provisionGatewayBridge{}

func (b provisionGatewayBridge) CheckTable(ctx context.Context, baseID string, table string) error {
	tables, err := b.gateway.ListTables(ctx, baseID)
	if err != nil {
		return err
	}
	for _, candidate := range tables {
		if strings.EqualFold(candidate.Name, table) {
			return nil
		}
	}
	return fmt.Errorf("table %q not found in base %s", table, baseID)
}

func (b provisionGatewayBridge) CreateRecord(
	ctx context.Context,
	baseID string,
	table string,
	fields map[string]any,
) (string, error) {
	item, err := b.gateway.CreateRecord(ctx, newBridgeKey("saga-create"), baseID, table, fields)
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

func (b provisionGatewayBridge) DeleteRecord(ctx context.Context, baseID string, table string, recordID string) error {
	return b.gateway.DeleteRecord(ctx, newBridgeKey("saga-delete"), baseID, table, recordID)
}

func (b provisionGatewayBridge) InvalidateSchema(ctx context.Context, baseID string) error {
	return b.gateway.Invalidate(ctx, baseID)
}

func toMCPRecord(item basegatewayports.RecordItem) mcpports.Record {
	return mcpports.Record{ID: item.ID, Fields: item.Fields, CreatedAt: item.CreatedAt}
}

func toMCPPage(page basegatewayports.RecordPage) mcpports.RecordPage {
	records := make([]mcpports.Record, 0, len(page.Records))
	for _, item := range page.Records {
		records = append(records, toMCPRecord(item))
	}
	return mcpports.RecordPage{Records: records, Offset: page.Offset}
}

// newBridgeKey mints an idempotency key for a bridge-initiated write. Bridge
// callers own retries end to end, so each call is a fresh operation.
func newBridgeKey(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
