package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	domainerrors "basehub/contexts/data-plane/base-gateway/domain/errors"
	"basehub/contexts/data-plane/base-gateway/ports"
)

const (
	// Airtable enforces 5 requests/second per base.
	minRequestInterval = 200 * time.Millisecond
	maxRetries         = 3
	requestTimeout     = 30 * time.Second
)

// Client implements ports.AirtableAPI against the Airtable REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger

	mu       sync.Mutex
	lastCall map[string]time.Time // per-base pacing
}

func NewClient(baseURL string, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logger,
		lastCall: make(map[string]time.Time),
	}
}

type recordBody struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

type recordListBody struct {
	Records []recordBody `json:"records"`
	Offset  string       `json:"offset"`
}

type tableListBody struct {
	Tables []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Fields []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
	} `json:"tables"`
}

func (c *Client) ListTables(ctx context.Context, baseID string) ([]ports.TableSchema, error) {
	endpoint := fmt.Sprintf("%s/meta/bases/%s/tables", c.baseURL, url.PathEscape(baseID))

	var body tableListBody
	if err := c.do(ctx, baseID, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, err
	}

	tables := make([]ports.TableSchema, 0, len(body.Tables))
	for _, table := range body.Tables {
		schema := ports.TableSchema{ID: table.ID, Name: table.Name}
		for _, field := range table.Fields {
			schema.Fields = append(schema.Fields, ports.FieldSchema{
				ID:   field.ID,
				Name: field.Name,
				Type: field.Type,
			})
		}
		tables = append(tables, schema)
	}
	return tables, nil
}

func (c *Client) ListRecords(ctx context.Context, baseID string, query ports.ListRecordsQuery) (ports.RecordPage, error) {
	values := url.Values{}
	if query.View != "" {
		values.Set("view", query.View)
	}
	if query.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(query.PageSize))
	}
	if query.MaxRecords > 0 {
		values.Set("maxRecords", strconv.Itoa(query.MaxRecords))
	}
	if query.Offset != "" {
		values.Set("offset", query.Offset)
	}
	if query.FilterFormula != "" {
		values.Set("filterByFormula", query.FilterFormula)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(baseID), url.PathEscape(query.Table))
	if encoded := values.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var body recordListBody
	if err := c.do(ctx, baseID, http.MethodGet, endpoint, nil, &body); err != nil {
		return ports.RecordPage{}, err
	}

	page := ports.RecordPage{Offset: body.Offset}
	for _, record := range body.Records {
		page.Records = append(page.Records, ports.RecordItem{
			ID:        record.ID,
			Fields:    record.Fields,
			CreatedAt: record.CreatedTime,
		})
	}
	return page, nil
}

func (c *Client) GetRecord(ctx context.Context, baseID string, table string, recordID string) (ports.RecordItem, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, url.PathEscape(baseID), url.PathEscape(table), url.PathEscape(recordID))

	var body recordBody
	if err := c.do(ctx, baseID, http.MethodGet, endpoint, nil, &body); err != nil {
		return ports.RecordItem{}, err
	}
	return ports.RecordItem{ID: body.ID, Fields: body.Fields, CreatedAt: body.CreatedTime}, nil
}

func (c *Client) CreateRecord(ctx context.Context, baseID string, table string, fields map[string]any) (ports.RecordItem, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(baseID), url.PathEscape(table))

	var body recordBody
	if err := c.do(ctx, baseID, http.MethodPost, endpoint, map[string]any{"fields": fields}, &body); err != nil {
		return ports.RecordItem{}, err
	}
	return ports.RecordItem{ID: body.ID, Fields: body.Fields, CreatedAt: body.CreatedTime}, nil
}

func (c *Client) UpdateRecord(ctx context.Context, baseID string, table string, recordID string, fields map[string]any) (ports.RecordItem, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, url.PathEscape(baseID), url.PathEscape(table), url.PathEscape(recordID))

	var body recordBody
	if err := c.do(ctx, baseID, http.MethodPatch, endpoint, map[string]any{"fields": fields}, &body); err != nil {
		return ports.RecordItem{}, err
	}
	return ports.RecordItem{ID: body.ID, Fields: body.Fields, CreatedAt: body.CreatedTime}, nil
}

func (c *Client) DeleteRecord(ctx context.Context, baseID string, table string, recordID string) error {
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, url.PathEscape(baseID), url.PathEscape(table), url.PathEscape(recordID))
	return c.do(ctx, baseID, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) do(ctx context.Context, baseID string, method string, endpoint string, payload any, out any) error {
	var bodyBytes []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode airtable request: %w", err)
		}
		bodyBytes = encoded
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.pace(ctx, baseID); err != nil {
			return err
		}

		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("build airtable request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", domainerrors.ErrUpstreamUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp)
			_ = resp.Body.Close()
			c.logger.Warn("airtable rate limited",
				"event", "airtable_rate_limited",
				"module", "data-plane/base-gateway",
				"layer", "adapter",
				"base_id", baseID,
				"retry_after", wait.String(),
				"attempt", attempt,
			)
			if attempt == maxRetries {
				return domainerrors.ErrRateLimited
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		case resp.StatusCode == http.StatusNotFound:
			_ = resp.Body.Close()
			return domainerrors.ErrRecordNotFound
		case resp.StatusCode == http.StatusUnprocessableEntity:
			_ = resp.Body.Close()
			return domainerrors.ErrInvalidRequest
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			return domainerrors.ErrUpstreamUnavailable
		case resp.StatusCode >= 400:
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return fmt.Errorf("airtable returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.Body.Close()
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		closeErr := resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode airtable response: %w", err)
		}
		return closeErr
	}
	return domainerrors.ErrRateLimited
}

// pace spaces calls per base to stay under the upstream request budget.
func (c *Client) pace(ctx context.Context, baseID string) error {
	c.mu.Lock()
	last := c.lastCall[baseID]
	now := time.Now()
	wait := minRequestInterval - now.Sub(last)
	if wait < 0 {
		wait = 0
	}
	c.lastCall[baseID] = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func retryAfter(resp *http.Response) time.Duration {
	raw := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Second
}
