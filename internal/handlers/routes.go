package handlers

import (
	"log/slog"
	"net/http"
)

// Routes wires every endpoint onto a mux wrapped in the request logger.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/collections", h.HandleCollections)
	mux.HandleFunc("GET /api/suggestions", h.HandleSuggestions)
	mux.HandleFunc("GET /api/categories", h.HandleCategories)
	mux.HandleFunc("POST /api/ask", h.HandleAsk)
	mux.HandleFunc("POST /api/login", h.HandleLogin)
	mux.HandleFunc("POST /api/logout", h.HandleLogout)

	mux.HandleFunc("POST /api/collections/refresh", h.RequireAdmin(h.HandleRefresh))
	mux.HandleFunc("POST /api/admin/artifacts", h.RequireAdmin(h.HandleCreateArtifact))
	mux.HandleFunc("PUT /api/admin/artifacts/{id}", h.RequireAdmin(h.HandleUpdateArtifact))
	mux.HandleFunc("DELETE /api/admin/artifacts/{id}", h.RequireAdmin(h.HandleDeleteArtifact))
	mux.HandleFunc("POST /api/admin/upload", h.RequireAdmin(h.HandleUpload))
	mux.HandleFunc("POST /api/admin/audio", h.RequireAdmin(h.HandleAudio))
	mux.HandleFunc("GET /api/admin/sessions", h.RequireAdmin(h.HandleSessions))

	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	mux.HandleFunc("GET /", h.HandleStatic)

	return withRequestLog(mux)
}
