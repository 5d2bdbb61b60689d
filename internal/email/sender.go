package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/logging"
)

// DefaultAPIURL is the transactional email endpoint used when none is configured.
const DefaultAPIURL = "https://api.resend.com/emails"

// DefaultTimeout bounds a single send.
const DefaultTimeout = 10 * time.Second

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendError is a non-2xx answer from the email API.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("email API returned %d: %s", e.StatusCode, e.Body)
}

// HTTPSender posts messages as JSON {from, to, subject, html, text} with a bearer key.
type HTTPSender struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

// NewHTTPSender creates a sender. An empty apiURL selects DefaultAPIURL.
func NewHTTPSender(apiURL, apiKey, from string, client *http.Client) *HTTPSender {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPSender{apiURL: apiURL, apiKey: apiKey, from: from, client: client}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// Send posts msg to the email API.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("message has no recipient")
	}
	body, err := json.Marshal(sendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SendError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return nil
}

// LogSender only logs messages. It stands in when no email API key is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logging.OrNop(logger)}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, no API key configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)))
	return nil
}
