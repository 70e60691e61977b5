package compose

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/wolfman30/bl-concierge/internal/lookup"
	"github.com/wolfman30/bl-concierge/internal/receipt"
)

// PaymentOutcome classifies a reconciled payment.
type PaymentOutcome string

const (
	PaymentMatched      PaymentOutcome = "matched"
	PaymentOverpaid     PaymentOutcome = "overpaid"
	PaymentUnderpaid    PaymentOutcome = "underpaid"
	PaymentUnreconciled PaymentOutcome = "unreconciled"
)

// ReceiptOutcome reports what happened to the receipt side effects.
type ReceiptOutcome string

const (
	ReceiptSkipped ReceiptOutcome = "skipped"
	ReceiptIssued  ReceiptOutcome = "issued"
	ReceiptFailed  ReceiptOutcome = "failed"
)

// Reconciliation is the result of matching a payment against invoiced fees.
type Reconciliation struct {
	Reply      string
	Outcome    PaymentOutcome
	Receipt    ReceiptOutcome
	ReceiptURL string
	// DiffCents is paid minus invoiced, in cents.
	DiffCents int64
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func dollars(cents int64) string {
	return receipt.FormatAmount(float64(cents) / 100)
}

// Reconcile compares paid against the fees of ids. Arithmetic is done in whole
// cents. Receipt failures are logged and never change the reply.
func (c *Composer) Reconcile(ctx context.Context, ids []string, paid float64, recipient string) Reconciliation {
	fees, err := c.store.Fees(ctx, ids)
	if err != nil {
		c.logger.Error("fee lookup failed", "bl_numbers", ids, "error", err)
		fees = nil
	}
	byID := make(map[string]lookup.Fees, len(fees))
	for _, f := range fees {
		byID[strings.ToUpper(strings.TrimSpace(f.Identifier))] = f
	}

	var (
		sumCents int64
		details  []string
		customer string
	)
	for _, id := range ids {
		f, ok := byID[strings.ToUpper(strings.TrimSpace(id))]
		if !ok || !f.HasFees() {
			details = append(details, fmt.Sprintf("BL %s: No fee data found in DB.", id))
			continue
		}
		ctn, service, _ := f.Total()
		amount := toCents(ctn) + toCents(service)
		sumCents += amount
		details = append(details, fmt.Sprintf("BL %s: $%s (CTN Fee: $%s, Service Fee: $%s)",
			id, dollars(amount), receipt.FormatAmount(ctn), receipt.FormatAmount(service)))
		if customer == "" {
			customer = f.CustomerName
		}
	}

	paidText := receipt.FormatAmount(paid)
	if sumCents <= 0 {
		return Reconciliation{
			Reply:   fmt.Sprintf("We detected a payment of $%s for BL number(s): %s. If you need a receipt, let us know.", paidText, strings.Join(ids, ", ")),
			Outcome: PaymentUnreconciled,
			Receipt: ReceiptSkipped,
		}
	}

	diff := toCents(paid) - sumCents
	detailText := strings.Join(details, "\n")
	if diff < 0 {
		return Reconciliation{
			Reply: fmt.Sprintf("We received your payment of $%s, but the total invoice amount for BL(s) is $%s.\n%s\nYou have underpaid by $%.2f. Please pay the remaining amount.",
				paidText, dollars(sumCents), detailText, float64(-diff)/100),
			Outcome:   PaymentUnderpaid,
			Receipt:   ReceiptSkipped,
			DiffCents: diff,
		}
	}

	rec := Reconciliation{Outcome: PaymentMatched, DiffCents: diff, Receipt: ReceiptSkipped}
	var b strings.Builder
	fmt.Fprintf(&b, "We received your payment of $%s, which matches the total invoice amount for BL(s):\n%s", paidText, detailText)
	if diff > 0 {
		rec.Outcome = PaymentOverpaid
		fmt.Fprintf(&b, "\nYou have overpaid by $%.2f. Please contact support for a refund or to allocate the excess.", float64(diff)/100)
	}
	b.WriteString("\nA receipt will be generated and sent to you shortly.")
	rec.Reply = b.String()

	if c.issuer == nil {
		c.logger.Warn("receipt issuer not configured; skipping receipt", "bl_numbers", ids)
		return rec
	}
	issued, err := c.issuer.Issue(ctx, receipt.Document{
		CustomerName:   customer,
		Identifiers:    ids,
		PaidAmount:     paid,
		InvoiceDetails: details,
	}, recipient)
	if err != nil {
		c.logger.Error("receipt generation failed", "bl_numbers", ids, "error", err)
		rec.Receipt = ReceiptFailed
		return rec
	}
	rec.Receipt = ReceiptIssued
	rec.ReceiptURL = issued.URL
	return rec
}
