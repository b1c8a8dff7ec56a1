// Package postgrest runs table queries against a PostgREST (Supabase) endpoint.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/evcraddock/immo/internal/query"
)

const (
	restPath       = "/rest/v1"
	defaultTimeout = 30 * time.Second
)

// Client executes queries over HTTP. It makes exactly one attempt per query.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient creates a client for the project at projectURL authenticated with apiKey.
func NewClient(projectURL, apiKey string, timeout time.Duration) (*Client, error) {
	if projectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if _, err := url.ParseRequestURI(projectURL); err != nil {
		return nil, fmt.Errorf("invalid project URL %q: %w", projectURL, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := strings.TrimRight(projectURL, "/")
	if !strings.HasSuffix(base, restPath) {
		base += restPath
	}

	h := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("apikey", apiKey).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Accept", "application/json")

	return &Client{http: h, baseURL: base}, nil
}

// BaseURL returns the REST root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute implements query.Executor.
func (c *Client) Execute(ctx context.Context, q query.Query) (*query.Result, error) {
	if q.Table == "" {
		return nil, fmt.Errorf("table is required")
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(encode(q))
	if q.Count {
		req.SetHeader("Prefer", "count=exact")
	}

	resp, err := req.Get("/" + url.PathEscape(q.Table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Table, err)
	}

	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}

	var rows []query.Row
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding %s rows: %w", q.Table, err)
	}

	total := -1
	if q.Count {
		total = parseContentRange(resp.Header().Get("Content-Range"))
	}

	return &query.Result{Rows: rows, Total: total}, nil
}

// encode converts q to PostgREST query parameters.
func encode(q query.Query) url.Values {
	params := url.Values{}

	sel := "*"
	if len(q.Columns) > 0 {
		sel = strings.Join(q.Columns, ",")
	}
	params.Set("select", sel)

	for _, f := range q.Filters {
		params.Add(f.Column, string(f.Op)+"."+formatValue(f.Value))
	}

	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}

	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	return params
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

// decodeError builds an APIError from an error response body.
func decodeError(status int, body []byte) error {
	apiErr := &query.APIError{Status: status}
	var payload struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
		Hint    json.RawMessage `json:"hint"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	apiErr.Code = payload.Code
	apiErr.Message = payload.Message
	apiErr.Details = rawText(payload.Details)
	apiErr.Hint = rawText(payload.Hint)
	return apiErr
}

// rawText renders a JSON string or null as plain text.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseContentRange extracts the total from a header like "0-999/2500" or "*/0".
func parseContentRange(h string) int {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return -1
	}
	return n
}
