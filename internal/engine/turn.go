package engine

import (
	"context"

	"github.com/wolfman30/bl-concierge/internal/classify"
	"github.com/wolfman30/bl-concierge/internal/compose"
	"github.com/wolfman30/bl-concierge/internal/extract"
	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/internal/rules"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/internal/verify"
)

// classificationVerification labels replies produced by the gate itself.
const classificationVerification = "verification"

// turnOutcome is either a reply or an instruction to replay a deferred request.
type turnOutcome struct {
	reply          string
	classification string
	identifiers    []string
	replay         *verify.Decision
}

// runTurn executes one pass of the pipeline against sess. It mutates sess but
// does not persist it.
func (e *Engine) runTurn(ctx context.Context, sess *session.Session, message string, tc TurnContext) turnOutcome {
	sess.Append(session.RoleUser, message)

	valid, invalid := e.resolveIdentifiers(ctx, sess, message, tc)
	amount := tc.PaidAmount
	if v, ok := extract.Amount(message); ok {
		amount = &v
	}

	// An email sent while a request is deferred goes straight to the gate.
	if sess.Verification.Phase() == verify.PhaseAwaitingEmail && extract.IsEmail(message) {
		if out, done := e.enforce(ctx, sess, message, valid, ""); done {
			return out
		}
	}
	pending := sess.Verification.Pending()

	intent, answer := classify.IntentGeneralQuestion, classify.DefaultAnswer
	statusReport := false
	if m, ok := e.matcher.Match(message); ok {
		answer = m.Answer
		e.metrics.ObserveClassification("canned")
		if m.IsPaymentStatus() && (len(valid) > 0 || len(pending) > 0) {
			intent = classify.IntentAskPaymentStatus
			statusReport = true
		}
	} else {
		res := e.classifier.Classify(ctx, historyMessages(sess.History), valid, invalid)
		intent, answer = res.Intent, res.Answer
		e.metrics.ObserveClassification(res.Source.String())
		if len(res.Identifiers) > 0 {
			valid = extract.Dedupe(valid, e.validate(ctx, res.Identifiers))
		}
	}

	over := rules.Apply(rules.Input{
		Message:       message,
		Intent:        intent,
		Answer:        answer,
		Valid:         valid,
		Invalid:       invalid,
		Pending:       pending,
		LastValidated: sess.LastValidated,
		Amount:        amount,
	})
	intent, answer = over.Intent, over.Answer

	var note string
	if len(invalid) > 0 {
		if len(valid) == 0 {
			if intent.NeedsIdentifiers() {
				return turnOutcome{reply: compose.NotFoundReply(invalid), classification: string(intent)}
			}
		} else {
			note = compose.PartialNote(invalid, valid)
		}
	}

	ids := pending
	if len(ids) == 0 {
		ids = valid
	}
	if intent.Sensitive() && len(ids) > 0 {
		if out, done := e.enforce(ctx, sess, message, valid, withNote(note, answer)); done {
			out.classification = string(intent)
			out.identifiers = ids
			return out
		}
		// Verification may have cleared pending identifiers.
		if p := sess.Verification.Pending(); len(p) > 0 {
			ids = p
		} else {
			ids = valid
		}
	}

	res := e.composer.Compose(ctx, compose.Request{
		Message:      message,
		Intent:       intent,
		Answer:       answer,
		Identifiers:  ids,
		Valid:        valid,
		Amount:       amount,
		Verified:     sess.Verification.Phase() == verify.PhaseVerified,
		StatusReport: statusReport,
		Recipient:    sess.Verification.Email(),
	})
	if rec := res.Reconciliation; rec != nil {
		e.metrics.ObserveReceipt(string(rec.Outcome), string(rec.Receipt))
	}

	reply := res.Reply
	if note != "" {
		switch {
		case res.Lookup:
			reply = note + "\n" + reply
		case reply == answer:
			reply = note
		}
	}
	return turnOutcome{reply: reply, classification: res.Classification, identifiers: valid}
}

// enforce runs the gate and reports whether the turn ends here. holdReply is
// returned when the gate holds; an empty holdReply lets the turn continue.
func (e *Engine) enforce(ctx context.Context, sess *session.Session, message string, ids []string, holdReply string) (turnOutcome, bool) {
	next, decision := e.gate.Enforce(ctx, sess.Verification, verify.Request{Message: message, Identifiers: ids})
	sess.Verification = next
	e.metrics.ObserveGate(decision.Outcome.String())

	switch decision.Outcome {
	case verify.Proceed:
		return turnOutcome{}, false
	case verify.Reply:
		return turnOutcome{reply: decision.Reply, classification: classificationVerification}, true
	case verify.Replay:
		return turnOutcome{replay: &decision}, true
	case verify.Hold:
		if holdReply == "" {
			return turnOutcome{}, false
		}
		return turnOutcome{reply: holdReply}, true
	default:
		panic("engine: unhandled gate outcome " + decision.Outcome.String())
	}
}

// resolveIdentifiers returns the valid and invalid identifiers for the turn
// and refreshes the session's last validated set.
func (e *Engine) resolveIdentifiers(ctx context.Context, sess *session.Session, message string, tc TurnContext) (valid, invalid []string) {
	if len(tc.Identifiers) > 0 {
		sess.DropDocumentEntries()
	}
	if tc.SkipExtraction {
		return extract.Dedupe(tc.Identifiers), nil
	}

	candidates := extract.Dedupe(tc.Identifiers, extract.Identifiers(message))
	if len(candidates) == 0 {
		return append([]string(nil), sess.LastValidated...), nil
	}
	valid = e.validate(ctx, candidates)
	if len(valid) > 0 {
		sess.LastValidated = valid
	}
	return valid, extract.Subtract(candidates, valid)
}

func (e *Engine) validate(ctx context.Context, candidates []string) []string {
	valid, err := e.lookup.ValidIdentifiers(ctx, candidates)
	if err != nil {
		e.logger.Error("identifier validation failed", "bl_numbers", candidates, "error", err)
		return nil
	}
	return extract.Dedupe(valid)
}

func withNote(note, answer string) string {
	if note != "" {
		return note
	}
	return answer
}

func historyMessages(history []session.Turn) []llm.ChatMessage {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	out := make([]llm.ChatMessage, 0, len(history))
	for _, turn := range history {
		role := llm.ChatRoleUser
		if turn.Role == session.RoleAssistant {
			role = llm.ChatRoleAssistant
		}
		out = append(out, llm.ChatMessage{Role: role, Content: turn.Content})
	}
	return out
}
