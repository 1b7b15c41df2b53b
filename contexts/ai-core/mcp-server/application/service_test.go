package application

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "basehub/contexts/ai-core/mcp-server/domain/errors"
	"basehub/contexts/ai-core/mcp-server/adapters/memory"
	"basehub/contexts/ai-core/mcp-server/ports"
)

const testBase = "appTESTTESTTEST00"

func seededService() (Service, *memory.Gateway) {
	gateway := memory.NewGateway()
	gateway.SeedTable(testBase,
		ports.TableInfo{ID: "tbl1", Name: "Projects", Fields: []ports.FieldInfo{{ID: "fld1", Name: "Name", Type: "singleLineText"}}},
		ports.Record{ID: "rec1", Fields: map[string]any{"Name": "Apollo"}},
		ports.Record{ID: "rec2", Fields: map[string]any{"Name": "Borealis"}},
	)
	return Service{Gateway: gateway}, gateway
}

func TestListToolsIsSortedAndDocumentsFallback(t *testing.T) {
	service, _ := seededService()

	tools := service.ListTools(context.Background())
	require.Len(t, tools, 7)
	for i := 1; i < len(tools); i++ {
		assert.Less(t, tools[i-1].Name, tools[i].Name, "tools/list must be stable-sorted")
	}

	for _, tool := range tools {
		var schema struct {
			Properties map[string]struct {
				Description string `json:"description"`
			} `json:"properties"`
			Required []string `json:"required"`
		}
		require.NoError(t, json.Unmarshal(tool.InputSchema, &schema), "tool %s schema must be valid JSON", tool.Name)

		baseProp, ok := schema.Properties["base_id"]
		require.True(t, ok, "tool %s must expose base_id", tool.Name)
		assert.Contains(t, baseProp.Description, "AIRTABLE_BASE")
		assert.NotContains(t, schema.Required, "base_id", "base_id must stay optional")
	}
}

func TestCallToolResolvesBaseFromEnvFallback(t *testing.T) {
	service, _ := seededService()
	service.EnvBaseID = testBase

	outcome, err := service.CallTool(context.Background(), "list_tables", map[string]any{})
	require.NoError(t, err)
	require.False(t, outcome.IsError, "outcome: %s", outcome.Text)
	assert.Contains(t, outcome.Text, "Projects")
	assert.Contains(t, outcome.Text, testBase)
}

func TestCallToolWithoutAnyBaseReturnsToolError(t *testing.T) {
	service, _ := seededService()

	outcome, err := service.CallTool(context.Background(), "list_records", map[string]any{"table": "Projects"})
	require.NoError(t, err, "missing base is a tool-level error, not a protocol error")
	assert.True(t, outcome.IsError)
	assert.Contains(t, outcome.Text, "AIRTABLE_BASE")
	assert.Contains(t, outcome.Text, "base_id")
}

func TestCallToolExplicitBaseBeatsEnv(t *testing.T) {
	service, gateway := seededService()
	otherBase := "appOTHEROTHER0000"
	gateway.SeedTable(otherBase, ports.TableInfo{ID: "tbl9", Name: "Inventory"})
	service.EnvBaseID = otherBase

	outcome, err := service.CallTool(context.Background(), "list_tables", map[string]any{"base_id": testBase})
	require.NoError(t, err)
	require.False(t, outcome.IsError)
	assert.Contains(t, outcome.Text, "Projects")
	assert.NotContains(t, outcome.Text, "Inventory")
}

func TestCallToolRejectsUnknownTool(t *testing.T) {
	service, _ := seededService()

	_, err := service.CallTool(context.Background(), "drop_base", nil)
	assert.ErrorIs(t, err, domainerrors.ErrUnknownTool)
}

func TestCallToolRejectsMissingRequiredArgument(t *testing.T) {
	service, _ := seededService()
	service.EnvBaseID = testBase

	_, err := service.CallTool(context.Background(), "get_record", map[string]any{"table": "Projects"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidParams)
}

func TestCreateAndSearchRoundTrip(t *testing.T) {
	service, _ := seededService()
	service.EnvBaseID = testBase

	outcome, err := service.CallTool(context.Background(), "create_record", map[string]any{
		"table":  "Projects",
		"fields": map[string]any{"Name": "Callisto"},
	})
	require.NoError(t, err)
	require.False(t, outcome.IsError, "outcome: %s", outcome.Text)

	outcome, err = service.CallTool(context.Background(), "search_records", map[string]any{
		"table": "Projects",
		"field": "Name",
		"value": "calli",
	})
	require.NoError(t, err)
	require.False(t, outcome.IsError)
	assert.Contains(t, outcome.Text, "Callisto")
	assert.NotContains(t, outcome.Text, "Apollo")
}

func TestCallToolRejectsMalformedExplicitBase(t *testing.T) {
	service, _ := seededService()
	service.EnvBaseID = testBase

	outcome, err := service.CallTool(context.Background(), "list_tables", map[string]any{"base_id": "nope"})
	require.NoError(t, err)
	assert.True(t, outcome.IsError)
	assert.Contains(t, outcome.Text, "malformed")
}
