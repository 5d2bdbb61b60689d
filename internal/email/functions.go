package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// FunctionsClient calls the deployed email handlers from the client core.
// It implements auth.WelcomeSender.
type FunctionsClient struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewFunctionsClient creates a client for handlers served under baseURL.
func NewFunctionsClient(baseURL, anonKey string, client *http.Client) *FunctionsClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &FunctionsClient{baseURL: strings.TrimRight(baseURL, "/"), anonKey: anonKey, client: client}
}

// SendWelcome asks the welcome-email handler to greet a new user.
func (c *FunctionsClient) SendWelcome(ctx context.Context, email, name string) error {
	return c.post(ctx, "welcome-email", map[string]string{"email": email, "name": name})
}

// SendMilestone asks the milestone handler to celebrate an application count.
func (c *FunctionsClient) SendMilestone(ctx context.Context, email string, milestone int) error {
	return c.post(ctx, "milestone-email", map[string]any{"email": email, "milestone": milestone})
}

func (c *FunctionsClient) post(ctx context.Context, fn string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", fn, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+fn, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.anonKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", fn, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned %d: %s", fn, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
