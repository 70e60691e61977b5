package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// Messenger delivers an outbound text to a recipient on the customer channel.
type Messenger interface {
	Send(ctx context.Context, recipient, text string) error
}

// OutboundMessage is the body posted by WebhookMessenger.
type OutboundMessage struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// WebhookMessenger posts outbound messages to a channel gateway.
type WebhookMessenger struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

func NewWebhookMessenger(url string, client *http.Client, logger *logging.Logger) *WebhookMessenger {
	if url == "" {
		panic("messaging: webhook url cannot be empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookMessenger{url: url, client: client, logger: logger}
}

func (m *WebhookMessenger) Send(ctx context.Context, recipient, text string) error {
	body, err := json.Marshal(OutboundMessage{Recipient: recipient, Text: text})
	if err != nil {
		return fmt.Errorf("messaging: encode outbound: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: build outbound request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: post outbound: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("messaging: outbound gateway status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	m.logger.Debug("outbound message delivered", "recipient", recipient, "length", len(text))
	return nil
}

// LogMessenger only logs outbound messages. Used when no gateway is configured.
type LogMessenger struct {
	logger *logging.Logger
}

func NewLogMessenger(logger *logging.Logger) *LogMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) Send(_ context.Context, recipient, text string) error {
	m.logger.Info("outbound message", "recipient", recipient, "text", text)
	return nil
}
