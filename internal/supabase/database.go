package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// QueryBuilder builds and executes a PostgREST request.
type QueryBuilder struct {
	client  *Client
	table   string
	method  string
	columns string
	filters []string
	orders  []string
	limit   int
	body    []byte
	bodyErr error
	headers map[string]string
	params  url.Values
	token   string
}

// WithToken runs the query as the user owning accessToken.
func (q *QueryBuilder) WithToken(accessToken string) *QueryBuilder {
	q.token = accessToken
	return q
}

// Select sets the returned columns.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.method = http.MethodGet
	q.columns = columns
	return q
}

func (q *QueryBuilder) setBody(data any) {
	body, err := json.Marshal(data)
	if err != nil {
		q.bodyErr = fmt.Errorf("marshal body: %w", err)
		return
	}
	q.body = body
}

// Insert inserts data (a row or a slice of rows).
func (q *QueryBuilder) Insert(data any) *QueryBuilder {
	q.method = http.MethodPost
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Upsert inserts data, merging on the onConflict columns.
func (q *QueryBuilder) Upsert(data any, onConflict string) *QueryBuilder {
	q.method = http.MethodPost
	q.setBody(data)
	q.headers["Prefer"] = "return=representation,resolution=merge-duplicates"
	if onConflict != "" {
		q.param("on_conflict", onConflict)
	}
	return q
}

// Update patches the rows matching the filters.
func (q *QueryBuilder) Update(data any) *QueryBuilder {
	q.method = http.MethodPatch
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Delete removes the rows matching the filters.
func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = http.MethodDelete
	return q
}

// Eq filters column = value.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, column+"=eq."+url.QueryEscape(fmt.Sprint(value)))
	return q
}

// In filters column IN values.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = url.QueryEscape(v)
	}
	q.filters = append(q.filters, column+"=in.("+strings.Join(escaped, ",")+")")
	return q
}

// Order sorts by column.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit caps the number of rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

func (q *QueryBuilder) param(key, value string) {
	if q.params == nil {
		q.params = url.Values{}
	}
	q.params.Set(key, value)
}

func (q *QueryBuilder) buildURL() string {
	parts := []string{}
	if q.method == http.MethodGet || q.headers["Prefer"] != "" {
		parts = append(parts, "select="+url.QueryEscape(q.columns))
	}
	parts = append(parts, q.filters...)
	if len(q.orders) > 0 {
		parts = append(parts, "order="+strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		parts = append(parts, "limit="+strconv.Itoa(q.limit))
	}
	if len(q.params) > 0 {
		parts = append(parts, q.params.Encode())
	}

	u := q.client.restURL + "/" + q.table
	if len(parts) > 0 {
		u += "?" + strings.Join(parts, "&")
	}
	return u
}

// Execute runs the query and returns the raw JSON response.
func (q *QueryBuilder) Execute(ctx context.Context) ([]byte, error) {
	if q.bodyErr != nil {
		return nil, q.bodyErr
	}

	respBody, status, err := q.client.request(ctx, q.method, q.buildURL(), q.body, q.headers, q.token)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseError(respBody, status)
	}
	return respBody, nil
}

// ExecuteInto runs the query and decodes the response into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest any) error {
	body, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", q.table, err)
	}
	return nil
}

// RPC calls the Postgres function fn as the user owning accessToken.
func (c *Client) RPC(ctx context.Context, fn string, params any, accessToken string) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	respBody, status, err := c.request(ctx, http.MethodPost, c.restURL+"/rpc/"+fn, body, nil, accessToken)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, parseError(respBody, status)
	}
	return respBody, nil
}
