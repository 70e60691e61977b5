package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bl-concierge/internal/activity"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const maxActivityLimit = 200

// ActivityReader lists recent activity for a sender.
type ActivityReader interface {
	Recent(ctx context.Context, sender string, limit int) ([]activity.Entry, error)
}

// AdminActivityHandler exposes the activity log to operators.
type AdminActivityHandler struct {
	reader ActivityReader
	logger *logging.Logger
}

func NewAdminActivityHandler(reader ActivityReader, logger *logging.Logger) *AdminActivityHandler {
	if reader == nil {
		panic("handlers: activity reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminActivityHandler{reader: reader, logger: logger}
}

// ListActivity handles GET /admin/activity/{sender}?limit=N.
func (h *AdminActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	sender := strings.TrimSpace(chi.URLParam(r, "sender"))
	if sender == "" {
		jsonError(w, "missing sender", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxActivityLimit)
	}

	entries, err := h.reader.Recent(r.Context(), sender, limit)
	if err != nil {
		h.logger.Error("admin activity: query failed", "sender", sender, "error", err)
		jsonError(w, "failed to load activity", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sender": sender, "entries": entries})
}
