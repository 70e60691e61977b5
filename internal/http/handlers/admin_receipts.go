package handlers

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// ReceiptOpener streams a stored receipt back by filename.
type ReceiptOpener interface {
	Open(ctx context.Context, filename string) (io.ReadCloser, error)
}

// AdminReceiptsHandler lets operators download issued receipts.
type AdminReceiptsHandler struct {
	receipts ReceiptOpener
	logger   *logging.Logger
}

func NewAdminReceiptsHandler(receipts ReceiptOpener, logger *logging.Logger) *AdminReceiptsHandler {
	if receipts == nil {
		panic("handlers: receipt opener cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminReceiptsHandler{receipts: receipts, logger: logger}
}

// GetReceipt handles GET /admin/receipts/{filename}.
func (h *AdminReceiptsHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	name := path.Base(strings.TrimSpace(chi.URLParam(r, "filename")))
	if name == "" || name == "." || name == "/" || !strings.HasSuffix(name, ".pdf") {
		jsonError(w, "invalid receipt filename", http.StatusBadRequest)
		return
	}
	body, err := h.receipts.Open(r.Context(), name)
	if err != nil {
		h.logger.Warn("admin receipts: open failed", "filename", name, "error", err)
		jsonError(w, "receipt not found", http.StatusNotFound)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("admin receipts: stream interrupted", "filename", name, "error", err)
	}
}
