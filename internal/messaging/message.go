// Package messaging moves customer messages from the channels into the
// conversation engine and carries the replies back out.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/bl-concierge/internal/docextract"
)

// InboundMessage is one customer message, possibly with an attached document.
type InboundMessage struct {
	JobID      string               `json:"job_id,omitempty"`
	Sender     string               `json:"sender"`
	MessageID  string               `json:"message_id,omitempty"`
	Text       string               `json:"text"`
	Document   *docextract.Document `json:"document,omitempty"`
	FromSelf   bool                 `json:"from_self,omitempty"`
	ReceivedAt time.Time            `json:"received_at"`
}

var (
	errMissingSender  = errors.New("messaging: sender is required")
	errMissingContent = errors.New("messaging: text or document is required")
)

// Validate checks the fields every channel must provide.
func (m InboundMessage) Validate() error {
	if strings.TrimSpace(m.Sender) == "" {
		return errMissingSender
	}
	if strings.TrimSpace(m.Text) == "" && m.Document == nil {
		return errMissingContent
	}
	return nil
}

func (m InboundMessage) hasDocument() bool {
	return m.Document != nil && m.Document.Supported()
}

func encodeMessage(msg InboundMessage) (InboundMessage, string, error) {
	if msg.JobID == "" {
		msg.JobID = uuid.NewString()
	}
	if msg.MessageID == "" {
		msg.MessageID = msg.JobID
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return InboundMessage{}, "", fmt.Errorf("messaging: failed to encode message: %w", err)
	}
	return msg, string(body), nil
}

// DecodeMessage parses a queued message body.
func DecodeMessage(body string) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("messaging: failed to decode message: %w", err)
	}
	return msg, nil
}
