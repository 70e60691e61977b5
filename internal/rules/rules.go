// Package rules applies keyword and context overrides on top of a
// classification before the verification gate sees it.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/bl-concierge/internal/canned"
	"github.com/wolfman30/bl-concierge/internal/classify"
)

// ProvideIdentifierAnswer replaces a sensitive answer when no shipment is known.
const ProvideIdentifierAnswer = "Please provide a BL number to access this information."

var (
	invoiceKeyword       = regexp.MustCompile(`invoice|发票`)
	ctnKeyword           = regexp.MustCompile(`ctn|container`)
	paymentStatusKeyword = regexp.MustCompile(`payment status|check payment`)
	qualifier            = regexp.MustCompile(`for bl number`)
	overpaidPattern      = regexp.MustCompile(`overpaid.*invoice`)
	underpaidPattern     = regexp.MustCompile(`underpaid.*invoice`)
)

// Input is everything the override rules look at for one turn.
type Input struct {
	Message       string
	Intent        classify.Intent
	Answer        string
	Valid         []string
	Invalid       []string
	Pending       []string
	LastValidated []string
	Amount        *float64
}

// Output is the possibly rewritten classification.
type Output struct {
	Intent classify.Intent
	Answer string
}

// Apply runs the override rules in order; later rules win.
func Apply(in Input) Output {
	out := Output{Intent: in.Intent, Answer: in.Answer}
	// Keywords match the punctuation-free form so "B/L" reads as "bl". The
	// Chinese invoice keyword only survives in the raw lower-cased text.
	msg := canned.Normalize(in.Message)
	raw := strings.ToLower(in.Message)

	if len(in.Valid) > 0 || len(in.LastValidated) > 0 {
		if qualifier.MatchString(msg) {
			if invoiceKeyword.MatchString(msg) || invoiceKeyword.MatchString(raw) {
				out.Intent = classify.IntentRequestInvoice
			}
			if ctnKeyword.MatchString(msg) {
				out.Intent = classify.IntentAskCTNNumber
			}
			if paymentStatusKeyword.MatchString(msg) {
				out.Intent = classify.IntentAskPaymentStatus
			}
		}
	} else if out.Intent.Sensitive() && len(in.Invalid) == 0 && len(in.Pending) == 0 {
		out.Intent = classify.IntentGeneralQuestion
		out.Answer = ProvideIdentifierAnswer
	}

	replyIDs := in.Pending
	if len(replyIDs) == 0 {
		replyIDs = in.Valid
	}
	switch {
	case overpaidPattern.MatchString(msg):
		out.Intent = classify.IntentGeneralQuestion
		out.Answer = OverpaidAnswer(replyIDs)
	case underpaidPattern.MatchString(msg):
		out.Intent = classify.IntentGeneralQuestion
		out.Answer = UnderpaidAnswer(replyIDs)
	}

	if in.Amount != nil && len(in.Valid) > 0 {
		out.Intent = classify.IntentPaymentReceipt
	}
	return out
}

// OverpaidAnswer explains how an overpayment is carried forward.
func OverpaidAnswer(ids []string) string {
	if len(ids) == 0 {
		return "We will deduct the overpaid amount from your next invoice. Please provide your BL or CTN number to process this adjustment."
	}
	return fmt.Sprintf("For the following BL(s): %s, we will deduct the overpaid amount from your next invoice. Please provide your BL or CTN number if not already included to process this adjustment.", strings.Join(ids, ", "))
}

// UnderpaidAnswer explains how a shortfall is carried forward.
func UnderpaidAnswer(ids []string) string {
	if len(ids) == 0 {
		return "The underpaid difference will be added to your next invoice. Please provide your BL or CTN number to process this adjustment."
	}
	return fmt.Sprintf("For the following BL(s): %s, the underpaid difference will be added to your next invoice. Please provide your BL or CTN number if not already included to process this adjustment.", strings.Join(ids, ", "))
}
