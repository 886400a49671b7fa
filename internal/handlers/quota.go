package handlers

import (
	"net/http"
)

type quotaBody struct {
	Count int `json:"count"`
}

func (h *Handler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, quotaBody{Count: h.studio.Quota()})
	case "PUT":
		var body quotaBody
		if !h.decode(w, r, &body) {
			return
		}
		h.studio.SetQuota(r.Context(), body.Count)
		h.writeJSON(w, quotaBody{Count: h.studio.Quota()})
	case "DELETE":
		h.studio.ResetQuota(r.Context())
		h.writeJSON(w, quotaBody{Count: h.studio.Quota()})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleQuotaDecrement(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, quotaBody{Count: h.studio.DecrementQuota(r.Context())})
}
