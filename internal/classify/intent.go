// Package classify turns a conversation into a structured intent using a
// language model, with a strict decode of the model's JSON answer.
package classify

// Intent is the closed set of request kinds the concierge understands.
type Intent string

const (
	IntentRequestInvoice    Intent = "request_invoice"
	IntentAskCTNNumber      Intent = "ask_ctn_number"
	IntentAskPaymentMethods Intent = "ask_payment_methods"
	IntentAskPricing        Intent = "ask_pricing"
	IntentGeneralQuestion   Intent = "general_question"
	IntentPaymentReceipt    Intent = "payment_receipt"
	IntentAskPaymentStatus  Intent = "ask_payment_status"
	IntentOther             Intent = "other"
)

var knownIntents = map[Intent]struct{}{
	IntentRequestInvoice:    {},
	IntentAskCTNNumber:      {},
	IntentAskPaymentMethods: {},
	IntentAskPricing:        {},
	IntentGeneralQuestion:   {},
	IntentPaymentReceipt:    {},
	IntentAskPaymentStatus:  {},
	IntentOther:             {},
}

// Valid reports whether i belongs to the closed intent set.
func (i Intent) Valid() bool {
	_, ok := knownIntents[i]
	return ok
}

// Sensitive reports whether answering i discloses shipment data and so
// requires a verified email.
func (i Intent) Sensitive() bool {
	switch i {
	case IntentRequestInvoice, IntentAskCTNNumber, IntentAskPaymentStatus:
		return true
	default:
		return false
	}
}

// NeedsIdentifiers reports whether i is answered from per-shipment lookups.
func (i Intent) NeedsIdentifiers() bool {
	return i.Sensitive() || i == IntentPaymentReceipt
}
