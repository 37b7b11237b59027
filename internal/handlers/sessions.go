package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/google/uuid"
)

type contextKey string

const adminSessionKey contextKey = "admin_session"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
}

// HandleLogin exchanges curator credentials for a session token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		h.unavailable(w, "Login")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.users.Authenticate(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	now := time.Now()
	session := &models.AdminSession{
		Token:     uuid.NewString(),
		UserID:    string(user.ID),
		Email:     user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(h.sessionTTL),
	}
	h.sessions.Set(session.Token, session)

	h.writeJSON(w, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		UserID:    session.UserID,
		Email:     session.Email,
	})
}

// HandleLogout ends the caller's session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.sessions.Delete(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSessions lists live admin sessions, newest first. Tokens are not exposed.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	h.sessions.Prune()
	sessions := h.sessions.GetAll()

	type sessionInfo struct {
		UserID    string    `json:"user_id"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	list := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, sessionInfo{UserID: s.UserID, Email: s.Email, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })

	h.writeJSON(w, list)
}

// RequireAdmin admits requests carrying a live session token or the admin API key.
func (h *Handler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-API-Key"); key != "" && h.adminKey != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) == 1 {
				next(w, r)
				return
			}
		}

		if token := bearerToken(r); token != "" {
			if session, ok := h.sessions.Get(token); ok {
				next(w, r.WithContext(context.WithValue(r.Context(), adminSessionKey, session)))
				return
			}
		}

		h.writeError(w, "Admin authentication required", http.StatusUnauthorized)
	}
}

// AdminFromContext returns the session that authorized the request, if any.
func AdminFromContext(ctx context.Context) (*models.AdminSession, bool) {
	session, ok := ctx.Value(adminSessionKey).(*models.AdminSession)
	return session, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
