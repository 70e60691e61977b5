package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	httpmiddleware "github.com/wolfman30/bl-concierge/internal/http/middleware"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// SessionResetter clears everything remembered about a sender.
type SessionResetter interface {
	Reset(ctx context.Context, senderID string) error
}

// AdminSessionsHandler lets operators inspect and reset customer sessions.
type AdminSessionsHandler struct {
	sessions session.Peeker
	resetter SessionResetter
	logger   *logging.Logger
}

func NewAdminSessionsHandler(sessions session.Peeker, resetter SessionResetter, logger *logging.Logger) *AdminSessionsHandler {
	if sessions == nil {
		panic("handlers: session peeker cannot be nil")
	}
	if resetter == nil {
		panic("handlers: session resetter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{sessions: sessions, resetter: resetter, logger: logger}
}

// SessionView is the operator's view of a session. The verified email is
// masked.
type SessionView struct {
	Sender          string     `json:"sender"`
	Phase           string     `json:"phase"`
	Lapsed          bool       `json:"lapsed,omitempty"`
	VerifiedEmail   string     `json:"verified_email,omitempty"`
	VerifiedSince   *time.Time `json:"verified_since,omitempty"`
	PendingBLs      []string   `json:"pending_bl_numbers,omitempty"`
	LastValidated   []string   `json:"last_validated_bl_numbers"`
	HistoryLength   int        `json:"history_length"`
	LastUpdatedAt   time.Time  `json:"updated_at"`
	DeferredRequest string     `json:"deferred_request,omitempty"`
}

func newSessionView(s *session.Session) SessionView {
	state := s.Verification
	view := SessionView{
		Sender:          s.SenderID,
		Phase:           state.Phase().String(),
		Lapsed:          state.Lapsed(),
		VerifiedEmail:   maskEmail(state.Email()),
		PendingBLs:      state.Pending(),
		LastValidated:   s.LastValidated,
		HistoryLength:   len(s.History),
		LastUpdatedAt:   s.UpdatedAt,
		DeferredRequest: state.DeferredRequest(),
	}
	if since := state.Since(); !since.IsZero() {
		view.VerifiedSince = &since
	}
	if view.LastValidated == nil {
		view.LastValidated = []string{}
	}
	return view
}

// GetSession handles GET /admin/sessions/{sender}.
func (h *AdminSessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sender := strings.TrimSpace(chi.URLParam(r, "sender"))
	if sender == "" {
		jsonError(w, "missing sender", http.StatusBadRequest)
		return
	}
	sess, err := h.sessions.Peek(r.Context(), sender)
	if errors.Is(err, session.ErrNotFound) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("admin sessions: load failed", "sender", sender, "error", err)
		jsonError(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

// ResetSession handles DELETE /admin/sessions/{sender}.
func (h *AdminSessionsHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sender := strings.TrimSpace(chi.URLParam(r, "sender"))
	if sender == "" {
		jsonError(w, "missing sender", http.StatusBadRequest)
		return
	}
	if err := h.resetter.Reset(r.Context(), sender); err != nil {
		h.logger.Error("admin sessions: reset failed", "sender", sender, "error", err)
		jsonError(w, "failed to reset session", http.StatusInternalServerError)
		return
	}
	operator, _ := httpmiddleware.AdminSubject(r.Context())
	h.logger.Info("admin sessions: session reset", "sender", sender, "operator", operator)
	w.WriteHeader(http.StatusNoContent)
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	return local[:1] + "***@" + domain
}
