// Package session keeps per-sender conversation state between turns.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/bl-concierge/internal/verify"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	documentEntryPrefix = "Untitled"
)

// ErrNotFound is returned by Peek when no session exists for a sender.
var ErrNotFound = errors.New("session: not found")

// Turn is one entry of the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is everything remembered about one sender.
type Session struct {
	SenderID      string       `json:"sender_id"`
	History       []Turn       `json:"history"`
	Verification  verify.State `json:"verification"`
	LastValidated []string     `json:"last_validated,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// New returns an empty unverified session.
func New(senderID string) *Session {
	return &Session{SenderID: senderID, Verification: verify.Unverified(false)}
}

// Append records a turn.
func (s *Session) Append(role, content string) {
	s.History = append(s.History, Turn{Role: role, Content: content})
}

// DropDocumentEntries removes history entries produced from earlier document
// uploads so stale extracted text does not leak into classification.
func (s *Session) DropDocumentEntries() {
	kept := s.History[:0]
	for _, turn := range s.History {
		if strings.HasPrefix(turn.Content, documentEntryPrefix) {
			continue
		}
		kept = append(kept, turn)
	}
	s.History = kept
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]Turn(nil), s.History...)
	out.LastValidated = append([]string(nil), s.LastValidated...)
	return &out
}

// Store loads and saves sessions. Load returns a fresh session for unknown
// senders.
type Store interface {
	Load(ctx context.Context, senderID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, senderID string) error
}

// Peeker is implemented by stores that can report whether a session exists.
type Peeker interface {
	Peek(ctx context.Context, senderID string) (*Session, error)
}
