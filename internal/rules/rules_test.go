package rules

import (
	"testing"

	"github.com/wolfman30/bl-concierge/internal/classify"
)

func amount(v float64) *float64 { return &v }

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		wantIntent classify.Intent
		wantAnswer string
	}{
		{
			name:       "invoice keyword with qualifier",
			in:         Input{Message: "Invoice for BL number NYC220", Intent: classify.IntentGeneralQuestion, Answer: "a", Valid: []string{"NYC220"}},
			wantIntent: classify.IntentRequestInvoice,
			wantAnswer: "a",
		},
		{
			name:       "slashed B/L qualifier",
			in:         Input{Message: "Please send the invoice for B/L number NYC220", Intent: classify.IntentGeneralQuestion, Valid: []string{"NYC220"}},
			wantIntent: classify.IntentRequestInvoice,
		},
		{
			name:       "punctuated ctn request",
			in:         Input{Message: "CTN, for B.L number NYC220?", Intent: classify.IntentOther, Valid: []string{"NYC220"}},
			wantIntent: classify.IntentAskCTNNumber,
		},
		{
			name:       "chinese invoice keyword",
			in:         Input{Message: "发票 for bl number NYC220", Intent: classify.IntentOther, Valid: []string{"NYC220"}},
			wantIntent: classify.IntentRequestInvoice,
		},
		{
			name:       "keyword without qualifier leaves intent",
			in:         Input{Message: "my invoice NYC220", Intent: classify.IntentGeneralQuestion, Valid: []string{"NYC220"}},
			wantIntent: classify.IntentGeneralQuestion,
		},
		{
			name:       "payment status wins over ctn",
			in:         Input{Message: "check payment and ctn for bl number", Intent: classify.IntentOther, LastValidated: []string{"NYC220"}},
			wantIntent: classify.IntentAskPaymentStatus,
		},
		{
			name:       "sensitive without identifiers downgraded",
			in:         Input{Message: "send my invoice", Intent: classify.IntentRequestInvoice, Answer: "model"},
			wantIntent: classify.IntentGeneralQuestion,
			wantAnswer: ProvideIdentifierAnswer,
		},
		{
			name:       "sensitive with only invalid identifiers kept for not-found messaging",
			in:         Input{Message: "invoice BADID", Intent: classify.IntentRequestInvoice, Answer: "model", Invalid: []string{"BADID"}},
			wantIntent: classify.IntentRequestInvoice,
			wantAnswer: "model",
		},
		{
			name:       "overpaid note names pending first",
			in:         Input{Message: "I overpaid my invoice", Intent: classify.IntentOther, Valid: []string{"A1"}, Pending: []string{"P1", "P2"}},
			wantIntent: classify.IntentGeneralQuestion,
			wantAnswer: OverpaidAnswer([]string{"P1", "P2"}),
		},
		{
			name:       "underpaid without identifiers",
			in:         Input{Message: "Underpaid the Invoice?", Intent: classify.IntentOther},
			wantIntent: classify.IntentGeneralQuestion,
			wantAnswer: UnderpaidAnswer(nil),
		},
		{
			name:       "amount with valid identifier forces receipt",
			in:         Input{Message: "invoice for bl number NYC220 paid $200", Intent: classify.IntentRequestInvoice, Valid: []string{"NYC220"}, Amount: amount(200)},
			wantIntent: classify.IntentPaymentReceipt,
		},
		{
			name:       "amount without valid identifier does nothing",
			in:         Input{Message: "paid $200", Intent: classify.IntentOther, Amount: amount(200)},
			wantIntent: classify.IntentOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.in)
			if got.Intent != tt.wantIntent {
				t.Fatalf("intent = %s, want %s", got.Intent, tt.wantIntent)
			}
			if got.Answer != tt.wantAnswer {
				t.Fatalf("answer = %q, want %q", got.Answer, tt.wantAnswer)
			}
		})
	}
}

func TestAdjustmentAnswers(t *testing.T) {
	got := OverpaidAnswer([]string{"A1", "B2"})
	want := "For the following BL(s): A1, B2, we will deduct the overpaid amount from your next invoice. Please provide your BL or CTN number if not already included to process this adjustment."
	if got != want {
		t.Fatalf("unexpected overpaid answer %q", got)
	}
}
