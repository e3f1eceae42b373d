package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/starfall-project/authcore/internal/server/fop"
)

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error(ctx, "write json", "error", err)
	}
}

// writeError maps err onto the deterministic (category, reason, status)
// triple and a safe message. Internal detail is logged here and goes no
// further.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	c := fop.Classify(err)
	if c.Status >= 500 {
		h.logger.Error(ctx, "request failed", "reason", c.Reason, "error", err)
	}
	h.writeJSON(ctx, w, c.Status, errorBody{
		Error:   c.Category,
		Reason:  c.Reason,
		Message: fop.Message(err),
	})
}

// writeBadRequest reports a request-shape problem that has no fop sentinel.
func (h *Handler) writeBadRequest(ctx context.Context, w http.ResponseWriter, reason, message string) {
	h.writeJSON(ctx, w, http.StatusBadRequest, errorBody{
		Error:   "bad_request",
		Reason:  reason,
		Message: message,
	})
}
