package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// InputResolver classifies raw scanner or keyboard input into an app route.
// An empty result means no match; resolution never fails outright.
type InputResolver interface {
	Resolve(ctx context.Context, input string) string
}

type resolveHandler struct {
	resolver InputResolver
	logger   *slog.Logger
}

type resolveRequest struct {
	Input string `json:"input"`
}

type resolveResponse struct {
	Path *string `json:"path"`
}

// resolve handles POST /api/v1/resolve. A no-match yields {"path": null}
// with status 200; malformed JSON is the only client error.
func (h *resolveHandler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	var resp resolveResponse
	if path := h.resolver.Resolve(r.Context(), req.Input); path != "" {
		resp.Path = &path
	}

	writeJSON(w, http.StatusOK, resp)
}
