package webchat

import (
	"context"
	"time"

	"github.com/wolfman30/bl-concierge/internal/messaging"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// ReplyMessenger delivers replies to web senders through their socket and
// hands every other recipient to the fallback messenger.
type ReplyMessenger struct {
	hub      *Hub
	fallback messaging.Messenger
	logger   *logging.Logger
}

var _ messaging.Messenger = (*ReplyMessenger)(nil)

func NewReplyMessenger(hub *Hub, fallback messaging.Messenger, logger *logging.Logger) *ReplyMessenger {
	if hub == nil {
		panic("webchat: hub cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if fallback == nil {
		fallback = messaging.NewLogMessenger(logger)
	}
	return &ReplyMessenger{hub: hub, fallback: fallback, logger: logger}
}

// Send pushes text to a web sender's socket. A web sender without an open
// socket (the HTTP fallback) gets the reply in its response, so nothing is sent.
func (m *ReplyMessenger) Send(ctx context.Context, recipient, text string) error {
	if !IsWebSender(recipient) {
		return m.fallback.Send(ctx, recipient, text)
	}
	pushed := m.hub.Push(recipient, OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	m.logger.Debug("webchat: reply", "sender", recipient, "pushed", pushed, "length", len(text))
	return nil
}
