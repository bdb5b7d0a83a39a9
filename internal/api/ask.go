package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/digitizerx/digitizerx/internal/rag"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// QueryEngine is the assistant capability behind the ask endpoint.
type QueryEngine interface {
	Handle(ctx context.Context, req rag.Request) (*rag.Response, error)
}

type askHandler struct {
	engine QueryEngine
	logger *slog.Logger
}

// ask handles POST /api/v1/ask. Any engine failure maps to a single 500
// carrying the error message; partial results are never returned.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req rag.Request
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := h.engine.Handle(r.Context(), req)
	if err != nil {
		h.logger.Error("ask failed",
			"error", err,
			"mode", req.Mode,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
