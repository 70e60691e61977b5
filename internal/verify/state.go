// Package verify gates shipment data behind a verified email address.
package verify

import (
	"encoding/json"
	"fmt"
	"time"
)

// Phase tags the verification state of a session.
type Phase int

const (
	PhaseUnverified Phase = iota
	PhaseAwaitingEmail
	PhaseVerified
)

func (p Phase) String() string {
	switch p {
	case PhaseUnverified:
		return "unverified"
	case PhaseAwaitingEmail:
		return "awaiting_email"
	case PhaseVerified:
		return "verified"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func parsePhase(s string) (Phase, error) {
	switch s {
	case "", "unverified":
		return PhaseUnverified, nil
	case "awaiting_email":
		return PhaseAwaitingEmail, nil
	case "verified":
		return PhaseVerified, nil
	default:
		return 0, fmt.Errorf("verify: unknown phase %q", s)
	}
}

// State is the verification state of one session. Only the fields of the
// current phase are populated; construct values with Unverified,
// AwaitingEmail or Verified. The zero value is a fresh unverified session.
type State struct {
	phase   Phase
	lapsed  bool
	request string
	pending []string
	email   string
	since   time.Time
}

// Unverified returns the initial state. lapsed marks a verification that
// expired and has not been replaced yet.
func Unverified(lapsed bool) State {
	return State{phase: PhaseUnverified, lapsed: lapsed}
}

// AwaitingEmail records that the customer was asked for an email. request is
// the sensitive message to replay once verification succeeds.
func AwaitingEmail(request string, pending []string) State {
	return State{phase: PhaseAwaitingEmail, request: request, pending: append([]string(nil), pending...)}
}

// Verified records a successful verification at since.
func Verified(email string, since time.Time) State {
	return State{phase: PhaseVerified, email: email, since: since}
}

func (s State) Phase() Phase { return s.phase }

// Lapsed reports whether an earlier verification expired.
func (s State) Lapsed() bool { return s.phase == PhaseUnverified && s.lapsed }

// DeferredRequest is the message held for replay while awaiting an email.
func (s State) DeferredRequest() string { return s.request }

// Pending lists identifiers collected while awaiting an email.
func (s State) Pending() []string { return append([]string(nil), s.pending...) }

// Email is the verified address, empty unless verified.
func (s State) Email() string { return s.email }

// Since is the verification instant, zero unless verified.
func (s State) Since() time.Time { return s.since }

type stateJSON struct {
	Phase   string     `json:"phase"`
	Lapsed  bool       `json:"lapsed,omitempty"`
	Request string     `json:"request,omitempty"`
	Pending []string   `json:"pending,omitempty"`
	Email   string     `json:"email,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{Phase: s.phase.String()}
	switch s.phase {
	case PhaseUnverified:
		out.Lapsed = s.lapsed
	case PhaseAwaitingEmail:
		out.Request = s.request
		out.Pending = s.pending
	case PhaseVerified:
		since := s.since
		out.Email = s.email
		out.Since = &since
	}
	return json.Marshal(out)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	phase, err := parsePhase(in.Phase)
	if err != nil {
		return err
	}
	switch phase {
	case PhaseUnverified:
		*s = Unverified(in.Lapsed)
	case PhaseAwaitingEmail:
		*s = AwaitingEmail(in.Request, in.Pending)
	case PhaseVerified:
		if in.Email == "" || in.Since == nil {
			return fmt.Errorf("verify: verified state requires email and timestamp")
		}
		*s = Verified(in.Email, *in.Since)
	}
	return nil
}
