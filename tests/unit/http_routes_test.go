package unit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gatewayports "basehub/contexts/data-plane/base-gateway/ports"
	"basehub/internal/app/bootstrap"
	"basehub/internal/platform/config"
	"basehub/internal/platform/httpserver"
)

const testBase = "appUNITTESTBASE01"

func newTestServer(t *testing.T) (*httptest.Server, bootstrap.Modules) {
	t.Helper()

	modules, pg, err := bootstrap.BuildModules(context.Background(), config.Config{
		ServiceName:  "basehub",
		AirtableBase: testBase,
		DefaultModel: "gemini-2.0-flash",
	}, nil)
	if err != nil {
		t.Fatalf("build modules: %v", err)
	}
	if pg != nil {
		t.Fatal("expected in-memory wiring without a postgres dsn")
	}

	modules.Gateway.Store.SeedTable(testBase, gatewayports.TableSchema{
		ID:   "tblProjects",
		Name: "Projects",
		Fields: []gatewayports.FieldSchema{
			{ID: "fld1", Name: "Name", Type: "singleLineText"},
			{ID: "fld2", Name: "Status", Type: "singleSelect"},
		},
	})

	server := httpserver.New(httpserver.Options{
		ServiceName:     "basehub",
		AirtableBaseSet: true,
		Gateway:         modules.Gateway,
		MCP:             modules.MCP,
		LLM:             modules.LLM,
		Deployment:      modules.Deployment,
		Monitor:         modules.Monitor,
		Sagas:           modules.Sagas,
	}, nil)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, modules
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	decodeBody(t, resp, &body)
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy status, got %v", body["status"])
	}
	if body["service"] != "basehub" {
		t.Fatalf("expected service basehub, got %v", body["service"])
	}
}

func TestConfigEndpointReportsBaseFallback(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/config")
	if err != nil {
		t.Fatalf("config request failed: %v", err)
	}

	var body map[string]any
	decodeBody(t, resp, &body)
	if body["airtable_base_set"] != true {
		t.Fatalf("expected airtable_base_set true, got %v", body["airtable_base_set"])
	}
}

func TestRecordRoundTripOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	create, err := http.NewRequest(http.MethodPost, ts.URL+"/api/records",
		strings.NewReader(`{"table":"Projects","fields":{"Name":"Apollo","Status":"active"}}`))
	if err != nil {
		t.Fatal(err)
	}
	create.Header.Set("Idempotency-Key", "unit-create-1")
	create.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(create)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created struct {
		Data struct {
			ID     string         `json:"id"`
			Fields map[string]any `json:"fields"`
		} `json:"data"`
	}
	decodeBody(t, resp, &created)
	if created.Data.ID == "" {
		t.Fatal("expected a record id")
	}

	get, err := http.Get(ts.URL + "/api/tables/Projects/records/" + created.Data.ID)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	if get.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.StatusCode)
	}

	var fetched struct {
		Data struct {
			Fields map[string]any `json:"fields"`
		} `json:"data"`
	}
	decodeBody(t, get, &fetched)
	if fetched.Data.Fields["Name"] != "Apollo" {
		t.Fatalf("expected fetched record to carry Name Apollo, got %v", fetched.Data.Fields)
	}

	audit, err := http.Get(ts.URL + "/api/audit/writes")
	if err != nil {
		t.Fatalf("audit request failed: %v", err)
	}
	var entries struct {
		Data []struct {
			Operation string `json:"operation"`
		} `json:"data"`
	}
	decodeBody(t, audit, &entries)
	if len(entries.Data) != 1 || entries.Data[0].Operation != "create" {
		t.Fatalf("expected one create audit entry, got %+v", entries.Data)
	}
}

func TestCreateRecordRequiresIdempotencyKey(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/records", "application/json",
		strings.NewReader(`{"table":"Projects","fields":{"Name":"NoKey"}}`))
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &body)
	if body.Code != "missing_idempotency_key" {
		t.Fatalf("expected missing_idempotency_key, got %q", body.Code)
	}
}

func TestRPCToolsListOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/rpc", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	if err != nil {
		t.Fatalf("rpc request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	decodeBody(t, resp, &body)
	if len(body.Result.Tools) != 7 {
		t.Fatalf("expected 7 tools, got %d", len(body.Result.Tools))
	}
}

func TestRPCNotificationGetsNoContent(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/rpc", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if err != nil {
		t.Fatalf("rpc request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for a notification, got %d", resp.StatusCode)
	}
}

func TestDeployTableServesBuiltinMappings(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/deploy/table")
	if err != nil {
		t.Fatalf("deploy table request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			Source   string `json:"source"`
			Mappings []struct {
				Service string `json:"service"`
				NewPort int    `json:"new_port"`
			} `json:"mappings"`
		} `json:"data"`
	}
	decodeBody(t, resp, &body)
	if body.Data.Source != "builtin" {
		t.Fatalf("expected builtin source, got %q", body.Data.Source)
	}
	if len(body.Data.Mappings) != 11 {
		t.Fatalf("expected 11 mappings, got %d", len(body.Data.Mappings))
	}
}

func TestMonitorReportCoversRemappedServices(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/monitor/report")
	if err != nil {
		t.Fatalf("monitor report request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			State    string `json:"state"`
			Services []struct {
				Service string `json:"service"`
				State   string `json:"state"`
			} `json:"services"`
		} `json:"data"`
	}
	decodeBody(t, resp, &body)
	if len(body.Data.Services) != 11 {
		t.Fatalf("expected 11 registered services, got %d", len(body.Data.Services))
	}
	for _, service := range body.Data.Services {
		if service.State != "unknown" {
			t.Fatalf("expected unknown state before any probe, got %q for %s", service.State, service.Service)
		}
	}
}

func TestChatSessionOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	create, err := http.NewRequest(http.MethodPost, ts.URL+"/api/sessions",
		strings.NewReader(`{"token_budget":5000}`))
	if err != nil {
		t.Fatal(err)
	}
	create.Header.Set("Idempotency-Key", "unit-session-1")
	create.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(create)
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var session struct {
		Data struct {
			ID     string `json:"id"`
			BaseID string `json:"base_id"`
		} `json:"data"`
	}
	decodeBody(t, resp, &session)
	if session.Data.BaseID != testBase {
		t.Fatalf("expected env base fallback %s, got %s", testBase, session.Data.BaseID)
	}

	chat, err := http.NewRequest(http.MethodPost, ts.URL+"/api/sessions/"+session.Data.ID+"/chat",
		strings.NewReader(`{"message":"What tables are in this base?"}`))
	if err != nil {
		t.Fatal(err)
	}
	chat.Header.Set("Idempotency-Key", "unit-chat-1")
	chat.Header.Set("Content-Type", "application/json")

	chatResp, err := http.DefaultClient.Do(chat)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if chatResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", chatResp.StatusCode)
	}

	var reply struct {
		Data struct {
			Turn struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"turn"`
			TokensUsed int `json:"tokens_used"`
		} `json:"data"`
	}
	decodeBody(t, chatResp, &reply)
	if reply.Data.Turn.Role != "assistant" {
		t.Fatalf("expected an assistant turn, got %q", reply.Data.Turn.Role)
	}
	if !strings.Contains(reply.Data.Turn.Content, "Projects") {
		t.Fatalf("expected grounded reply to mention Projects, got %q", reply.Data.Turn.Content)
	}
	if reply.Data.TokensUsed == 0 {
		t.Fatal("expected token usage to be charged")
	}
}

func TestStartSagaOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	start, err := http.NewRequest(http.MethodPost, ts.URL+"/api/sagas",
		strings.NewReader(`{"name":"provision-base","payload":{"base_id":"`+testBase+`","table":"Projects"}}`))
	if err != nil {
		t.Fatal(err)
	}
	start.Header.Set("Idempotency-Key", "unit-saga-1")
	start.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(start)
	if err != nil {
		t.Fatalf("start saga failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var started struct {
		Data struct {
			Saga struct {
				ID    string `json:"id"`
				State string `json:"state"`
			} `json:"saga"`
		} `json:"data"`
	}
	decodeBody(t, resp, &started)
	if started.Data.Saga.State != "pending" {
		t.Fatalf("expected pending saga, got %q", started.Data.Saga.State)
	}

	get, err := http.Get(ts.URL + "/api/sagas/" + started.Data.Saga.ID)
	if err != nil {
		t.Fatalf("get saga failed: %v", err)
	}
	if get.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.StatusCode)
	}
	get.Body.Close()
}

func TestUnknownSagaDefinitionOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	start, err := http.NewRequest(http.MethodPost, ts.URL+"/api/sagas",
		strings.NewReader(`{"name":"no-such-saga"}`))
	if err != nil {
		t.Fatal(err)
	}
	start.Header.Set("Idempotency-Key", "unit-saga-unknown")

	resp, err := http.DefaultClient.Do(start)
	if err != nil {
		t.Fatalf("start saga failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown definition, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
