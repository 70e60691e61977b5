// Package notify delivers customer emails such as payment receipts.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const defaultFromName = "IQSTrade Support"

// CategoryReceipt tags receipt emails with the provider so they can be
// filtered in delivery reports.
const CategoryReceipt = "receipt"

// EmailSender delivers one message.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a single outbound email. HTML is optional.
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	Body     string
	HTML     string
	Category string
}

// Identity is the From (and optional Reply-To) of outbound mail.
type Identity struct {
	Email   string
	Name    string
	ReplyTo string
}

func (id Identity) withDefaults() Identity {
	if strings.TrimSpace(id.Name) == "" {
		id.Name = defaultFromName
	}
	return id
}

// Address renders "Name <email>".
func (id Identity) Address() string {
	return fmt.Sprintf("%s <%s>", id.Name, id.Email)
}

// ReceiptEmail builds the message sent to a customer once a receipt is published.
func ReceiptEmail(to string, identifiers []string, paidAmount, receiptURL string) EmailMessage {
	ids := strings.Join(identifiers, ", ")
	text := fmt.Sprintf("We received your payment of $%s for BL number(s): %s.\n\nYour receipt is available at:\n%s\n\nThank you for your payment!", paidAmount, ids, receiptURL)
	htmlBody := fmt.Sprintf(`<p>We received your payment of <strong>$%s</strong> for BL number(s): %s.</p><p><a href="%s">Download your receipt</a></p><p>Thank you for your payment!</p>`,
		html.EscapeString(paidAmount), html.EscapeString(ids), html.EscapeString(receiptURL))
	return EmailMessage{
		To:       to,
		Subject:  "Payment Receipt for BL " + ids,
		Body:     text,
		HTML:     htmlBody,
		Category: CategoryReceipt,
	}
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client sendGridAPI
	from   Identity
	logger *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	ReplyTo   string
}

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   Identity{Email: cfg.FromEmail, Name: cfg.FromName, ReplyTo: cfg.ReplyTo}.withDefaults(),
		logger: logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = msg.Body
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(s.from.Name, s.from.Email),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		htmlBody,
	)
	if s.from.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail(s.from.Name, s.from.ReplyTo))
	}
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected message", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent", "provider", "sendgrid", "to", msg.To, "category", msg.Category, "status", response.StatusCode)
	return nil
}

// StubEmailSender only logs. Used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("email disabled; not sent", "to", msg.To, "subject", msg.Subject, "category", msg.Category)
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
