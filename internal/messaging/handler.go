package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bl-concierge/internal/docextract"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const maxInboundBody = 12 << 20

// Enqueuer accepts inbound messages for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg InboundMessage) (string, error)
}

// Handler exposes the inbound message API.
type Handler struct {
	publisher Enqueuer
	jobs      JobRecorder
	logger    *logging.Logger
}

// NewHandler builds the handler. jobs may be nil, in which case job lookups
// answer 404.
func NewHandler(publisher Enqueuer, jobs JobRecorder, logger *logging.Logger) *Handler {
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{publisher: publisher, jobs: jobs, logger: logger}
}

type postMessageRequest struct {
	Sender    string               `json:"sender"`
	MessageID string               `json:"message_id"`
	Text      string               `json:"text"`
	Document  *docextract.Document `json:"document,omitempty"`
}

// PostMessage handles POST /v1/messages.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInboundBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg := InboundMessage{
		Sender:    strings.TrimSpace(req.Sender),
		MessageID: strings.TrimSpace(req.MessageID),
		Text:      req.Text,
		Document:  req.Document,
	}
	if err := msg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := h.publisher.Enqueue(r.Context(), msg)
	if err != nil {
		h.logger.Error("failed to enqueue inbound message", "sender", msg.Sender, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept message")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// GetJob handles GET /v1/messages/{jobID}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" || h.jobs == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
