// Package webchat serves the browser chat channel over a WebSocket.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/bl-concierge/internal/messaging"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const senderPrefix = "web:"

// Router handles one inbound message and delivers its reply.
type Router interface {
	Route(ctx context.Context, msg messaging.InboundMessage) (messaging.RouteResult, error)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is one past turn.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SenderID namespaces a browser session as a conversation sender.
func SenderID(sessionID string) string {
	return senderPrefix + sessionID
}

// IsWebSender reports whether a sender belongs to the web chat channel.
func IsWebSender(senderID string) bool {
	return strings.HasPrefix(senderID, senderPrefix)
}

// Hub tracks the open socket of each web sender.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*websocket.Conn)}
}

func (h *Hub) register(senderID string, conn *websocket.Conn) func() {
	h.mu.Lock()
	h.conns[senderID] = conn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		if h.conns[senderID] == conn {
			delete(h.conns, senderID)
		}
		h.mu.Unlock()
	}
}

// Push sends msg to the sender's open socket and reports whether one existed.
func (h *Hub) Push(senderID string, msg OutboundMessage) bool {
	h.mu.RLock()
	conn, ok := h.conns[senderID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return websocket.JSON.Send(conn, msg) == nil
}

// Handler manages web chat connections and messages.
type Handler struct {
	router  Router
	hub     *Hub
	history session.Peeker
	logger  *logging.Logger
}

// NewHandler creates a web chat handler. history may be nil.
func NewHandler(router Router, hub *Hub, history session.Peeker, logger *logging.Logger) *Handler {
	if router == nil {
		panic("webchat: router cannot be nil")
	}
	if hub == nil {
		panic("webchat: hub cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{router: router, hub: hub, history: history, logger: logger}
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	senderID := SenderID(sessionID)

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	if history := h.loadHistory(ctx, senderID); len(history) > 0 {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})
	}

	unregister := h.hub.register(senderID, conn)
	defer unregister()
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}
		switch {
		case msg.Type == "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
		case msg.Type == "message" && strings.TrimSpace(msg.Text) != "":
			h.hub.Push(senderID, OutboundMessage{Type: "typing"})
			if _, err := h.route(ctx, senderID, msg.Text); err != nil {
				_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
			}
		}
	}
}

func (h *Handler) route(ctx context.Context, senderID, text string) (messaging.RouteResult, error) {
	res, err := h.router.Route(ctx, messaging.InboundMessage{
		Sender:     senderID,
		MessageID:  uuid.NewString(),
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("webchat: failed to route message", "sender", senderID, "error", err)
	}
	return res, err
}

// HandleMessage is the HTTP fallback for sending messages. The reply is
// returned in the response.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	res, err := h.route(r.Context(), SenderID(req.SessionID), req.Text)
	if err != nil && res.Reply == "" {
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":     string(res.Status),
		"session_id": req.SessionID,
		"reply":      res.Reply,
	})
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	history := h.loadHistory(r.Context(), SenderID(sessionID))
	if history == nil {
		history = []HistoryMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": history})
}

func (h *Handler) loadHistory(ctx context.Context, senderID string) []HistoryMessage {
	if h.history == nil {
		return nil
	}
	sess, err := h.history.Peek(ctx, senderID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			h.logger.Warn("webchat: failed to load history", "sender", senderID, "error", err)
		}
		return nil
	}
	out := make([]HistoryMessage, 0, len(sess.History))
	for _, turn := range sess.History {
		out = append(out, HistoryMessage{Role: turn.Role, Text: turn.Content})
	}
	return out
}
