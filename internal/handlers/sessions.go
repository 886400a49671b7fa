package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/studio/internal/models"
	"github.com/lehigh-university-libraries/studio/internal/sessions"
)

type sessionsResponse struct {
	Sessions []models.DesignSession `json:"sessions"`
	sessions.View
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, sessionsResponse{Sessions: h.studio.Sessions(), View: h.studio.View()})
	case "POST":
		created, ok := h.studio.CreateSession(r.Context())
		if !ok {
			// the active design is still empty; hand it back instead
			active, err := h.studio.EnsureSession(r.Context())
			if err != nil {
				h.writeError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			h.writeJSON(w, active)
			return
		}
		h.writeJSONStatus(w, http.StatusCreated, created)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail serves /api/sessions/{id} and /api/sessions/{id}/select
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		h.writeError(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	switch {
	case action == "select" && r.Method == "POST":
		if !h.studio.SelectSession(r.Context(), sessionID) {
			h.writeError(w, "Session not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, h.studio.View())
	case action != "":
		h.writeError(w, "Not found", http.StatusNotFound)
	case r.Method == "GET":
		session, ok := h.studio.Session(sessionID)
		if !ok {
			h.writeError(w, "Session not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, session)
	case r.Method == "DELETE":
		if !h.studio.DeleteSession(r.Context(), sessionID) {
			h.writeError(w, "Session not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleHistory appends a version produced outside the generate endpoint
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var entry models.HistoryEntry
	if !h.decode(w, r, &entry) {
		return
	}
	if entry.ImageURL == "" {
		h.writeError(w, "imageUrl is required", http.StatusBadRequest)
		return
	}
	if entry.Operation == "" {
		entry.Operation = models.OperationInitial
	}

	session, err := h.studio.AppendHistory(r.Context(), entry)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, sessions.ErrNoActiveSession) {
			code = http.StatusConflict
		}
		h.writeError(w, err.Error(), code)
		return
	}
	h.writeJSON(w, session)
}
