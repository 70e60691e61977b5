// Package compose builds deterministic replies from lookups once a turn's
// intent is settled and access has been granted.
package compose

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/bl-concierge/internal/canned"
	"github.com/wolfman30/bl-concierge/internal/classify"
	"github.com/wolfman30/bl-concierge/internal/lookup"
	"github.com/wolfman30/bl-concierge/internal/receipt"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const (
	PaymentMethodsReply = "We accept the following payment methods:\n• Bank Transfer\n• Allinpay\n• Stripe"
	PricingReply        = "Our pricing depends on the number of containers and services required. Please provide your BL number(s) and details for a quote."

	// ClassificationInvoiceAndCTN labels the combined invoice and CTN reply.
	ClassificationInvoiceAndCTN = "invoice_and_ctn"

	lookupConcurrency = 4
)

var (
	invoiceKeyword = regexp.MustCompile(`invoice|发票`)
	ctnKeyword     = regexp.MustCompile(`ctn|container`)
	combinedID     = regexp.MustCompile(`[,\s]`)
)

// ReceiptIssuer issues the receipt for a reconciled payment.
type ReceiptIssuer interface {
	Issue(ctx context.Context, doc receipt.Document, recipient string) (receipt.Issued, error)
}

// Composer answers intents from the back-office store.
type Composer struct {
	store  lookup.Store
	issuer ReceiptIssuer
	logger *logging.Logger
}

// New returns a Composer. issuer may be nil, in which case matched payments
// are confirmed without a receipt.
func New(store lookup.Store, issuer ReceiptIssuer, logger *logging.Logger) *Composer {
	if store == nil {
		panic("compose: lookup store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Composer{store: store, issuer: issuer, logger: logger}
}

// Request is a turn whose intent and identifiers are final.
type Request struct {
	Message string
	Intent  classify.Intent
	// Answer is the reply used when no lookup applies.
	Answer string
	// Identifiers are the ones sensitive lookups report on (pending, else valid).
	Identifiers []string
	// Valid are the identifiers confirmed this turn; payments reconcile against them.
	Valid    []string
	Amount   *float64
	Verified bool
	// StatusReport selects the short status format used for the canned
	// payment-status answer.
	StatusReport bool
	// Recipient receives the receipt email, if any.
	Recipient string
}

// Result is the composed reply.
type Result struct {
	Reply          string
	Classification string
	// Lookup is true when the reply was built from store lookups.
	Lookup         bool
	Reconciliation *Reconciliation
}

// Compose dispatches on intent. A combined invoice and CTN request takes
// priority over the single-intent handlers.
func (c *Composer) Compose(ctx context.Context, req Request) Result {
	msg := canned.Normalize(req.Message)
	raw := strings.ToLower(req.Message)
	ids := req.Identifiers
	if len(ids) == 0 {
		ids = req.Valid
	}
	res := Result{Reply: req.Answer, Classification: string(req.Intent)}

	if req.Verified && len(ids) > 0 && (invoiceKeyword.MatchString(msg) || invoiceKeyword.MatchString(raw)) && ctnKeyword.MatchString(msg) {
		res.Reply = c.InvoiceAndCTN(ctx, ids)
		res.Classification = ClassificationInvoiceAndCTN
		res.Lookup = true
		return res
	}

	switch req.Intent {
	case classify.IntentRequestInvoice, classify.IntentAskCTNNumber, classify.IntentAskPaymentStatus:
		if !req.Verified || len(ids) == 0 {
			return res
		}
		res.Lookup = true
		switch {
		case req.Intent == classify.IntentRequestInvoice:
			res.Reply = c.Invoices(ctx, ids)
		case req.Intent == classify.IntentAskCTNNumber:
			res.Reply = c.CTNs(ctx, ids)
		case req.StatusReport:
			res.Reply = c.StatusReport(ctx, ids)
		default:
			res.Reply = c.PaymentStatuses(ctx, ids)
		}
	case classify.IntentPaymentReceipt:
		if len(req.Valid) == 0 || req.Amount == nil {
			return res
		}
		rec := c.Reconcile(ctx, req.Valid, *req.Amount, req.Recipient)
		res.Reply = rec.Reply
		res.Lookup = true
		res.Reconciliation = &rec
	case classify.IntentAskPaymentMethods:
		res.Reply = PaymentMethodsReply
	case classify.IntentAskPricing:
		res.Reply = PricingReply
	}
	return res
}

// InvoiceAndCTN reports invoice and CTN for each identifier. Identifiers that
// contain a comma or whitespace are skipped.
func (c *Composer) InvoiceAndCTN(ctx context.Context, ids []string) string {
	var single []string
	for _, id := range ids {
		if !combinedID.MatchString(id) {
			single = append(single, id)
		}
	}
	return c.perIdentifier(ctx, single, func(ctx context.Context, id string) string {
		return c.invoiceLine(ctx, id) + "\n" + c.ctnLine(ctx, id)
	})
}

func (c *Composer) Invoices(ctx context.Context, ids []string) string {
	return c.perIdentifier(ctx, ids, c.invoiceLine)
}

func (c *Composer) CTNs(ctx context.Context, ids []string) string {
	return c.perIdentifier(ctx, ids, c.ctnLine)
}

func (c *Composer) PaymentStatuses(ctx context.Context, ids []string) string {
	return c.perIdentifier(ctx, ids, func(ctx context.Context, id string) string {
		if status, ok := c.status(ctx, id); ok {
			return fmt.Sprintf("For BL %s: Payment status is '%s'.", id, status)
		}
		return fmt.Sprintf("For BL %s: No payment status found.", id)
	})
}

// StatusReport is the short per-identifier status list.
func (c *Composer) StatusReport(ctx context.Context, ids []string) string {
	return c.perIdentifier(ctx, ids, func(ctx context.Context, id string) string {
		if status, ok := c.status(ctx, id); ok {
			return fmt.Sprintf("BL %s: Payment status is '%s'.", id, status)
		}
		return fmt.Sprintf("BL %s: No payment status found.", id)
	})
}

func (c *Composer) invoiceLine(ctx context.Context, id string) string {
	filename, ok, err := c.store.InvoiceFilename(ctx, strings.TrimSpace(id))
	if err != nil {
		c.logger.Error("invoice lookup failed", "bl_number", id, "error", err)
	}
	if err == nil && ok {
		return fmt.Sprintf("For BL %s: Here's your invoice: %s", id, filename)
	}
	return fmt.Sprintf("For BL %s: Invoice not yet issued. Please contact support.", id)
}

func (c *Composer) ctnLine(ctx context.Context, id string) string {
	ctn, ok, err := c.store.UniqueNumber(ctx, strings.TrimSpace(id))
	if err != nil {
		c.logger.Error("ctn lookup failed", "bl_number", id, "error", err)
	}
	if err == nil && ok {
		return fmt.Sprintf("For BL %s: CTN number is %s.", id, ctn)
	}
	return fmt.Sprintf("For BL %s: No CTN number found.", id)
}

func (c *Composer) status(ctx context.Context, id string) (string, bool) {
	status, ok, err := c.store.PaymentStatus(ctx, strings.TrimSpace(id))
	if err != nil {
		c.logger.Error("payment status lookup failed", "bl_number", id, "error", err)
		return "", false
	}
	return status, ok
}

// perIdentifier runs line for every id concurrently and joins the results in
// input order.
func (c *Composer) perIdentifier(ctx context.Context, ids []string, line func(context.Context, string) string) string {
	lines := make([]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			lines[i] = line(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return strings.Join(lines, "\n")
}

// NotFoundReply is used when every identifier on a lookup intent is unknown.
func NotFoundReply(invalid []string) string {
	return fmt.Sprintf("Sorry, the BL number(s) %s could not be found in our system. Please check and try again.", strings.Join(invalid, ", "))
}

// PartialNote names unknown identifiers when some valid ones remain.
func PartialNote(invalid, valid []string) string {
	return fmt.Sprintf("Note: The following BL number(s) %s were not found. Proceeding with valid BL(s): %s.", strings.Join(invalid, ", "), strings.Join(valid, ", "))
}
