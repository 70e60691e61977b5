package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bl-concierge/internal/activity"
	"github.com/wolfman30/bl-concierge/internal/canned"
	"github.com/wolfman30/bl-concierge/internal/classify"
	"github.com/wolfman30/bl-concierge/internal/compose"
	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/internal/localize"
	"github.com/wolfman30/bl-concierge/internal/lookup"
	"github.com/wolfman30/bl-concierge/internal/observability/metrics"
	"github.com/wolfman30/bl-concierge/internal/rules"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/internal/verify"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const sender = "85290001111"

type classifierFunc func(history []llm.ChatMessage, valid, invalid []string) classify.Result

func (f classifierFunc) Classify(_ context.Context, history []llm.ChatMessage, valid, invalid []string) classify.Result {
	return f(history, valid, invalid)
}

type checkerFunc func(email, id string) verify.CheckResult

func (f checkerFunc) Check(_ context.Context, email, id string) verify.CheckResult {
	return f(email, id)
}

type translatorFunc func(text string) string

func (f translatorFunc) Translate(_ context.Context, text, _, _ string) string {
	return f(text)
}

type memoryActivity struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (m *memoryActivity) Record(_ context.Context, e activity.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type harness struct {
	engine   *Engine
	sessions *session.MemoryStore
	store    *lookup.MemoryStore
	activity *memoryActivity

	mu            sync.Mutex
	now           time.Time
	classifyCalls int
	checks        []string
	intentFor     func(message string) classify.Intent
	allowed       map[string]bool
}

func fee(v float64) *float64 { return &v }

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions: session.NewMemoryStore(100, time.Hour),
		store: lookup.NewMemoryStore(
			lookup.Record{Identifier: "NYC220", InvoiceFilename: "inv_NYC220.pdf", UniqueNumber: "CTN-9001", Status: "Paid", CTNFee: fee(100), ServiceFee: fee(100)},
			lookup.Record{Identifier: "NYC221", InvoiceFilename: "inv_NYC221.pdf", UniqueNumber: "CTN-9002", Status: "Unpaid"},
		),
		activity: &memoryActivity{},
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		allowed:  map[string]bool{"user@example.com": true},
	}
	h.intentFor = func(string) classify.Intent { return classify.IntentGeneralQuestion }

	logger := logging.Discard()
	gate := verify.NewGate(checkerFunc(func(email, id string) verify.CheckResult {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.checks = append(h.checks, email+"/"+id)
		if h.allowed[email] {
			return verify.CheckResult{Success: true}
		}
		return verify.CheckResult{Success: false, Message: "Email not registered for this BL."}
	}), logger, verify.WithClock(h.clock))

	classifier := classifierFunc(func(history []llm.ChatMessage, valid, invalid []string) classify.Result {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.classifyCalls++
		last := history[len(history)-1].Content
		return classify.Result{Intent: h.intentFor(last), Answer: "model answer", Source: classify.SourceModel}
	})

	h.engine = New(Deps{
		Sessions:   h.sessions,
		Gate:       gate,
		Lookup:     h.store,
		Matcher:    canned.Default(),
		Classifier: classifier,
		Composer:   compose.New(h.store, nil, logger),
		Localizer:  localize.New(translatorFunc(func(text string) string { return "译文：" + text })),
		Activity:   h.activity,
		Metrics:    metrics.NewTurnMetrics(prometheus.NewRegistry()),
		Logger:     logger,
	})
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) turn(message string) string {
	return h.engine.ProcessTurn(context.Background(), sender, message, TurnContext{})
}

func (h *harness) verified(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sessions.Save(context.Background(), &session.Session{
		SenderID:     sender,
		Verification: verify.Verified("user@example.com", h.clock()),
	}))
}

func (h *harness) session(t *testing.T) *session.Session {
	t.Helper()
	s, err := h.sessions.Peek(context.Background(), sender)
	require.NoError(t, err)
	return s
}

func sensitiveByKeyword(message string) classify.Intent {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "invoice"):
		return classify.IntentRequestInvoice
	case strings.Contains(lower, "ctn"):
		return classify.IntentAskCTNNumber
	default:
		return classify.IntentGeneralQuestion
	}
}

func TestReplayAnswersDeferredRequestAfterVerification(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword

	assert.Equal(t, verify.PromptReply, h.turn("invoice for bl number NYC220"))
	assert.Equal(t, verify.PhaseAwaitingEmail, h.session(t).Verification.Phase())

	reply := h.turn("user@example.com")
	assert.Equal(t, "For BL NYC220: Here's your invoice: inv_NYC220.pdf", reply)

	s := h.session(t)
	assert.Equal(t, verify.PhaseVerified, s.Verification.Phase())
	assert.Equal(t, "user@example.com", s.Verification.Email())
	assert.Equal(t, h.clock(), s.Verification.Since())
	assert.Equal(t, []string{"user@example.com/NYC220"}, h.checks)

	last := s.History[len(s.History)-1]
	assert.Equal(t, session.RoleAssistant, last.Role)
	assert.Equal(t, reply, last.Content)
}

func TestHoldDoesNotRepromptAndUnionsPending(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword

	assert.Equal(t, verify.PromptReply, h.turn("invoice for bl number NYC220"))
	assert.Equal(t, "model answer", h.turn("ctn for bl number NYC221"))
	assert.ElementsMatch(t, []string{"NYC220", "NYC221"}, h.session(t).Verification.Pending())

	reply := h.turn("user@example.com")
	assert.Equal(t, "For BL NYC220: CTN number is CTN-9001.\nFor BL NYC221: CTN number is CTN-9002.", reply)
	assert.Len(t, h.checks, 2)
}

func TestVerificationFailureKeepsWaiting(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword

	h.turn("invoice for bl number NYC220")
	reply := h.turn("intruder@example.com")

	assert.Equal(t, "Cannot access info for BL NYC220: Email not registered for this BL.", reply)
	assert.Equal(t, verify.PhaseAwaitingEmail, h.session(t).Verification.Phase())

	assert.Equal(t, "For BL NYC220: Here's your invoice: inv_NYC220.pdf", h.turn("user@example.com"))
}

func TestVerificationExpiresAfterTwoHours(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword
	h.verified(t)

	h.advance(2*time.Hour - time.Millisecond)
	assert.Equal(t, "For BL NYC220: CTN number is CTN-9001.", h.turn("ctn for bl number NYC220"))

	h.advance(2 * time.Millisecond)
	assert.Equal(t, verify.ExpiredReply, h.turn("ctn for bl number NYC220"))

	s := h.session(t)
	assert.Equal(t, verify.PhaseAwaitingEmail, s.Verification.Phase())
	assert.Empty(t, s.Verification.Email())
	assert.True(t, s.Verification.Since().IsZero())

	assert.Equal(t, "For BL NYC220: CTN number is CTN-9001.", h.turn("user@example.com"))
}

func TestMixedIdentifiersNamesInvalidAndAnswersValid(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword
	h.verified(t)

	reply := h.engine.ProcessTurn(context.Background(), sender, "ctn for bl number NYC220", TurnContext{Identifiers: []string{"NYC220", "BADID"}})

	assert.Equal(t, "Note: The following BL number(s) BADID were not found. Proceeding with valid BL(s): NYC220.\nFor BL NYC220: CTN number is CTN-9001.", reply)
}

func TestEntirelyInvalidIdentifiersSkipLookup(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword
	h.verified(t)

	reply := h.turn("invoice for bl number ZZZ999")
	assert.Equal(t, compose.NotFoundReply([]string{"ZZZ999"}), reply)
}

func TestSensitiveIntentWithoutIdentifiersIsDowngraded(t *testing.T) {
	h := newHarness(t)
	h.intentFor = func(string) classify.Intent { return classify.IntentRequestInvoice }

	assert.Equal(t, rules.ProvideIdentifierAnswer, h.turn("send me my invoice please"))
	assert.Empty(t, h.checks)
	assert.Equal(t, verify.PhaseUnverified, h.session(t).Verification.Phase())
}

func TestCannedPaymentStatusReportsPerIdentifier(t *testing.T) {
	h := newHarness(t)
	h.verified(t)

	reply := h.turn("how do i check my payment status NYC220")
	assert.Equal(t, "BL NYC220: Payment status is 'Paid'.", reply)
	assert.Zero(t, h.classifyCalls)
}

func TestCannedAnswerWithoutIdentifiers(t *testing.T) {
	h := newHarness(t)

	reply := h.turn("what are your business hours?")
	assert.Contains(t, reply, "Monday to Friday")
	assert.Zero(t, h.classifyCalls)
}

func TestPaymentReconciliation(t *testing.T) {
	h := newHarness(t)

	reply := h.turn("I paid $200 for NYC220")
	assert.True(t, strings.HasPrefix(reply, "We received your payment of $200, which matches the total invoice amount for BL(s):"), reply)
	assert.NotContains(t, reply, "overpaid")

	reply = h.engine.ProcessTurn(context.Background(), sender, "", TurnContext{Identifiers: []string{"NYC220"}, PaidAmount: fee(199.99)})
	assert.Contains(t, reply, "You have underpaid by $0.01.")
}

func TestChineseInboundIsTranslatedAndSigned(t *testing.T) {
	h := newHarness(t)

	reply := h.turn("请问你们的营业时间")
	assert.Equal(t, "译文：model answer"+localize.Signature, reply)
}

func TestLastValidatedIdentifiersCarryOver(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword
	h.verified(t)

	h.turn("ctn for bl number NYC221")
	assert.Equal(t, []string{"NYC221"}, h.session(t).LastValidated)

	reply := h.turn("and the invoice for bl number please")
	assert.Equal(t, "For BL NYC221: Here's your invoice: inv_NYC221.pdf", reply)
}

func TestActivityRecorded(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword

	h.turn("invoice for bl number NYC220")
	require.Len(t, h.activity.entries, 1)
	e := h.activity.entries[0]
	assert.Equal(t, activity.KindAIReply, e.Kind)
	assert.Equal(t, sender, e.Sender)
	assert.Equal(t, "invoice for bl number NYC220", e.Question)
	assert.Equal(t, verify.PromptReply, e.Reply)
	assert.Equal(t, "request_invoice", e.Classification)
	assert.Equal(t, []string{"NYC220"}, e.Identifiers)
}

type failingLookup struct{ *lookup.MemoryStore }

func (failingLookup) ValidIdentifiers(context.Context, []string) ([]string, error) {
	return nil, errors.New("db down")
}

func TestValidationErrorTreatsIdentifiersAsInvalid(t *testing.T) {
	h := newHarness(t)
	h.intentFor = sensitiveByKeyword
	h.engine.lookup = failingLookup{h.store}

	assert.Equal(t, compose.NotFoundReply([]string{"NYC220"}), h.turn("invoice for bl number NYC220"))
}

func TestConcurrentTurnsFromOneSenderAreSerialised(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.turn("hello there")
		}()
	}
	wg.Wait()

	assert.Len(t, h.session(t).History, 20)
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.turn("hello there")

	require.NoError(t, h.engine.Reset(context.Background(), sender))
	_, err := h.sessions.Peek(context.Background(), sender)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestHistoryMessagesCapsAndMapsRoles(t *testing.T) {
	var history []session.Turn
	for i := 0; i < maxHistoryTurns+5; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		history = append(history, session.Turn{Role: role, Content: "x"})
	}
	msgs := historyMessages(history)
	require.Len(t, msgs, maxHistoryTurns)
	assert.Equal(t, llm.ChatRoleAssistant, msgs[0].Role)
}
