// Package supabase is a small client for the hosted identity/database backend:
// Auth (/auth/v1), PostgREST tables (/rest/v1) and Postgres RPC functions.
// Row-level security on the backend is the only authorization boundary; the client
// forwards the user's access token and never decides access itself.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every request unless Config.Timeout says otherwise.
const DefaultTimeout = 30 * time.Second

// Config holds client configuration.
type Config struct {
	ProjectURL string        // e.g. https://xyz.supabase.co
	AnonKey    string        // public anon key, sent as apikey on every request
	Timeout    time.Duration // per-request timeout
	HTTPClient *http.Client  // optional; a client with Timeout is built when nil
}

// Client is the hosted backend client.
type Client struct {
	config  Config
	http    *http.Client
	restURL string
	authURL string

	auth *AuthClient
}

// New creates a client for the project at cfg.ProjectURL.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("anon key is required")
	}

	baseURL := strings.TrimRight(cfg.ProjectURL, "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid project URL: %s", cfg.ProjectURL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		config:  cfg,
		http:    httpClient,
		restURL: baseURL + "/rest/v1",
		authURL: baseURL + "/auth/v1",
	}
	c.auth = &AuthClient{client: c}
	return c, nil
}

// Auth returns the identity client.
func (c *Client) Auth() *AuthClient {
	return c.auth
}

// From starts a PostgREST query against table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  c,
		table:   table,
		method:  http.MethodGet,
		columns: "*",
		headers: make(map[string]string),
	}
}

// request performs an HTTP request. token is the user's access token; the anon key is used when empty.
func (c *Client) request(ctx context.Context, method, rawURL string, body []byte, headers map[string]string, token string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.config.AnonKey)
	if token == "" {
		token = c.config.AnonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
