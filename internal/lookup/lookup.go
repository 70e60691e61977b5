// Package lookup reads bill-of-lading records from the back-office database.
package lookup

import (
	"context"
	"strings"
)

// ReceiptStatus is written when a payment receipt has been issued.
const ReceiptStatus = "Awaiting Bank In"

// Fees are the billable components of one bill of lading. Missing fee columns
// are nil.
type Fees struct {
	Identifier      string
	InvoiceFilename string
	CustomerName    string
	ServiceFee      *float64
	CTNFee          *float64
	PaymentLink     string
}

// HasFees reports whether at least one fee column is present.
func (f Fees) HasFees() bool {
	return f.ServiceFee != nil || f.CTNFee != nil
}

// Total sums the fee components, treating missing ones as zero.
func (f Fees) Total() (ctn, service, total float64) {
	if f.CTNFee != nil {
		ctn = *f.CTNFee
	}
	if f.ServiceFee != nil {
		service = *f.ServiceFee
	}
	return ctn, service, ctn + service
}

// Store answers the questions the concierge asks about shipments. Absence is
// reported through the bool result, not an error.
type Store interface {
	ValidIdentifiers(ctx context.Context, ids []string) ([]string, error)
	InvoiceFilename(ctx context.Context, id string) (string, bool, error)
	UniqueNumber(ctx context.Context, id string) (string, bool, error)
	PaymentStatus(ctx context.Context, id string) (string, bool, error)
	Fees(ctx context.Context, ids []string) ([]Fees, error)
}

// ReceiptRecorder marks shipments as paid once a receipt is published.
type ReceiptRecorder interface {
	RecordReceipt(ctx context.Context, ids []string, receiptURL string) error
}

func normalizeKey(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func normalizeKeys(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if key := normalizeKey(id); key != "" {
			out = append(out, key)
		}
	}
	return out
}
