package receipt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/bl-concierge/internal/lookup"
	"github.com/wolfman30/bl-concierge/internal/notify"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// Issued describes a receipt that was rendered and published.
type Issued struct {
	Filename string
	URL      string
}

// Issuer renders a receipt, publishes it, marks the shipments as paid and,
// when a recipient is known, emails the link.
type Issuer struct {
	publisher Publisher
	recorder  lookup.ReceiptRecorder
	mailer    notify.EmailSender
	now       func() time.Time
	logger    *logging.Logger
}

// IssuerOption customises an Issuer.
type IssuerOption func(*Issuer)

// WithMailer enables receipt emails.
func WithMailer(m notify.EmailSender) IssuerOption {
	return func(i *Issuer) { i.mailer = m }
}

// WithIssuerClock sets the clock used for receipt timestamps.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewIssuer(publisher Publisher, recorder lookup.ReceiptRecorder, logger *logging.Logger, opts ...IssuerOption) *Issuer {
	if publisher == nil {
		panic("receipt: publisher cannot be nil")
	}
	if recorder == nil {
		panic("receipt: recorder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	i := &Issuer{publisher: publisher, recorder: recorder, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue runs render, publish and record in order and stops at the first
// failure. The email is best effort and never fails the call.
func (i *Issuer) Issue(ctx context.Context, doc Document, recipient string) (Issued, error) {
	if len(doc.Identifiers) == 0 {
		return Issued{}, fmt.Errorf("receipt: no identifiers")
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = i.now()
	}
	filename := doc.Filename()

	url, err := i.publisher.Publish(ctx, filename, Render(doc))
	if err != nil {
		return Issued{}, fmt.Errorf("receipt: publish: %w", err)
	}
	if err := i.recorder.RecordReceipt(ctx, doc.Identifiers, url); err != nil {
		return Issued{Filename: filename, URL: url}, fmt.Errorf("receipt: record: %w", err)
	}

	if i.mailer != nil && strings.TrimSpace(recipient) != "" {
		msg := notify.ReceiptEmail(recipient, doc.Identifiers, FormatAmount(doc.PaidAmount), url)
		if err := i.mailer.Send(ctx, msg); err != nil {
			i.logger.Warn("receipt email failed", "error", err, "bl_numbers", doc.Identifiers)
		}
	}

	i.logger.Info("receipt issued", "bl_numbers", doc.Identifiers, "url", url)
	return Issued{Filename: filename, URL: url}, nil
}
