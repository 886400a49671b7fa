package handlers

import (
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/studio/internal/studio"
)

// HandleGenerate runs one generation and answers {imageUrl}
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req studio.GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.writeError(w, "Prompt is required", http.StatusBadRequest)
		return
	}

	result, err := h.studio.Generate(r.Context(), req)
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, result)
}
