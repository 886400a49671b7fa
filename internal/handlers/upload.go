package handlers

import (
	"net/http"
)

// HandleUpload hosts a base64 or data URL image and answers {url}
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Image string `json:"image"`
	}
	if !h.decode(w, r, &request) {
		return
	}
	if request.Image == "" {
		h.writeError(w, "No image provided", http.StatusBadRequest)
		return
	}

	url, err := h.studio.Upload(r.Context(), request.Image)
	if err != nil {
		h.writeError(w, "Failed to upload image: "+err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, map[string]string{"url": url})
}

// HandleSpeech is the speech-to-text endpoint, which is not offered
func (h *Handler) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, "Speech-to-text service is not available", http.StatusNotImplemented)
}
