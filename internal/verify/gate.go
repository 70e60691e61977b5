package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/bl-concierge/internal/extract"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const (
	// DefaultValidity is how long a verified email unlocks shipment data.
	DefaultValidity = 2 * time.Hour

	PromptReply        = "For security, please provide your registered email to access this information."
	ExpiredReply       = "Your verification has expired. Please provide your registered email to access this information."
	defaultFailureText = "Email verification failed."
)

// Outcome tags a gate decision.
type Outcome int

const (
	// Proceed lets the turn continue to composition with full access.
	Proceed Outcome = iota
	// Reply ends the turn with Decision.Reply.
	Reply
	// Hold keeps waiting for an email without prompting again.
	Hold
	// Replay re-runs the deferred request with Decision.Identifiers.
	Replay
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case Reply:
		return "reply"
	case Hold:
		return "hold"
	case Replay:
		return "replay"
	default:
		return "unknown"
	}
}

// Decision is what the caller must do after Enforce.
type Decision struct {
	Outcome     Outcome
	Reply       string
	Message     string
	Identifiers []string
}

// Request is the turn presented to the gate.
type Request struct {
	Message     string
	Identifiers []string
}

// Gate runs the verification state machine.
type Gate struct {
	checker  Checker
	validity time.Duration
	now      func() time.Time
	logger   *logging.Logger
}

// Option customises a Gate.
type Option func(*Gate)

// WithClock injects the time source used for stamping and expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithValidity overrides DefaultValidity.
func WithValidity(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.validity = d
		}
	}
}

func NewGate(checker Checker, logger *logging.Logger, opts ...Option) *Gate {
	if checker == nil {
		panic("verify: checker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Gate{checker: checker, validity: DefaultValidity, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Now exposes the gate's clock.
func (g *Gate) Now() time.Time { return g.now() }

// Refresh expires a verification once the validity period has elapsed.
func (g *Gate) Refresh(s State) State {
	if s.Phase() == PhaseVerified && g.now().Sub(s.Since()) >= g.validity {
		return Unverified(true)
	}
	return s
}

// Enforce decides whether the turn may see sensitive data and returns the
// next state. It is called for sensitive intents with known identifiers and
// for any email sent while awaiting one.
func (g *Gate) Enforce(ctx context.Context, s State, req Request) (State, Decision) {
	switch s.Phase() {
	case PhaseVerified:
		return s, Decision{Outcome: Proceed}
	case PhaseAwaitingEmail, PhaseUnverified:
	default:
		panic(fmt.Sprintf("verify: unhandled phase %s", s.Phase()))
	}

	if extract.IsEmail(req.Message) {
		return g.verify(ctx, s, req)
	}

	if s.Phase() == PhaseAwaitingEmail {
		next := AwaitingEmail(req.Message, extract.Dedupe(s.Pending(), req.Identifiers))
		return next, Decision{Outcome: Hold}
	}

	next := AwaitingEmail(req.Message, req.Identifiers)
	if s.Lapsed() {
		return next, Decision{Outcome: Reply, Reply: ExpiredReply}
	}
	return next, Decision{Outcome: Reply, Reply: PromptReply}
}

func (g *Gate) verify(ctx context.Context, s State, req Request) (State, Decision) {
	email := strings.TrimSpace(req.Message)
	ids := s.Pending()
	if len(ids) == 0 {
		ids = extract.Dedupe(req.Identifiers)
	}
	if len(ids) == 0 {
		return s, Decision{Outcome: Reply, Reply: PromptReply}
	}

	for _, id := range ids {
		result := g.checker.Check(ctx, email, id)
		if !result.Success {
			detail := result.Message
			if strings.TrimSpace(detail) == "" {
				detail = defaultFailureText
			}
			g.logger.Info("email verification rejected", "bl_number", id, "reason", detail)
			return s, Decision{Outcome: Reply, Reply: fmt.Sprintf("Cannot access info for BL %s: %s", id, detail)}
		}
	}

	next := Verified(email, g.now())
	if deferred := s.DeferredRequest(); s.Phase() == PhaseAwaitingEmail && deferred != "" {
		return next, Decision{Outcome: Replay, Message: deferred, Identifiers: ids}
	}
	return next, Decision{Outcome: Proceed}
}
