package handlers

import (
	"net/http"
)

type askRequest struct {
	Question string `json:"question"`
}

// HandleAsk answers a visitor question with the guide.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if h.guide == nil {
		h.unavailable(w, "Guide")
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	answer, err := h.guide.Ask(r.Context(), req.Question)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, answer)
}
