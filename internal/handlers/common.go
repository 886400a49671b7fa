package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/studio/internal/dispatch"
	"github.com/lehigh-university-libraries/studio/internal/quota"
	"github.com/lehigh-university-libraries/studio/internal/sessions"
	"github.com/lehigh-university-libraries/studio/internal/studio"
)

// maxBodyBytes bounds request bodies; uploads carry base64 canvas images
const maxBodyBytes = 25 << 20

type Handler struct {
	studio    *studio.Service
	staticDir string
}

func New(svc *studio.Service, staticDir string) *Handler {
	if staticDir == "" {
		staticDir = "static"
	}
	return &Handler{
		studio:    svc,
		staticDir: staticDir,
	}
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/replicate/generate-image", h.HandleGenerate)
	mux.HandleFunc("/api/generate", h.HandleGenerate)
	mux.HandleFunc("/api/upload", h.HandleUpload)
	mux.HandleFunc("/api/deepgram", h.HandleSpeech)
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/api/history", h.HandleHistory)
	mux.HandleFunc("/api/quota", h.HandleQuota)
	mux.HandleFunc("/api/quota/decrement", h.HandleQuotaDecrement)
	mux.Handle("/metrics", h.studio.Metrics().Handler())
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	mux.HandleFunc("/", h.HandleStatic)
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	h.writeJSONStatus(w, code, map[string]string{"error": message})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var remote *dispatch.RemoteError
	switch {
	case errors.Is(err, dispatch.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, quota.ErrExhausted):
		return http.StatusTooManyRequests
	case errors.Is(err, sessions.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, studio.ErrHostingDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &remote), errors.Is(err, dispatch.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
