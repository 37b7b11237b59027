package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/frontql"
	"github.com/artifex-heritage/artifex/internal/guide"
	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/artifex-heritage/artifex/internal/storage"
	"github.com/artifex-heritage/artifex/internal/upload"
)

// ArtifactStore writes artifacts to the backend.
type ArtifactStore interface {
	Create(ctx context.Context, in models.ArtifactInput) (models.CatalogueRecord, error)
	Update(ctx context.Context, id string, in models.ArtifactInput) (models.CatalogueRecord, error)
	Delete(ctx context.Context, id string) error
}

// Uploader stores files on the external file host.
type Uploader interface {
	Upload(ctx context.Context, req upload.Request) (string, error)
	PublicURL(path string) string
}

// Authenticator checks curator credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*frontql.User, error)
}

// Asker answers visitor questions.
type Asker interface {
	Ask(ctx context.Context, question string) (*guide.Answer, error)
}

// Deps are the collaborators of the HTTP handlers. Only Snapshots and
// Fetcher are required; routes whose dependency is nil answer 503.
type Deps struct {
	Snapshots   *storage.SnapshotStore
	Sessions    *storage.SessionStore
	Fetcher     storage.Fetcher
	Artifacts   ArtifactStore
	Uploader    Uploader
	Users       Authenticator
	Guide       Asker
	AdminAPIKey string
	SessionTTL  time.Duration
	StaticDir   string
}

type Handler struct {
	ctx        context.Context
	snapshots  *storage.SnapshotStore
	sessions   *storage.SessionStore
	fetcher    storage.Fetcher
	artifacts  ArtifactStore
	uploader   Uploader
	users      Authenticator
	guide      Asker
	adminKey   string
	sessionTTL time.Duration
	staticDir  string
	maxBody    int64
	refreshes  sync.WaitGroup
}

// New creates the handlers. ctx bounds background refreshes.
func New(ctx context.Context, deps Deps) *Handler {
	sessions := deps.Sessions
	if sessions == nil {
		sessions = storage.New()
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	staticDir := deps.StaticDir
	if staticDir == "" {
		staticDir = "static"
	}
	return &Handler{
		ctx:        ctx,
		snapshots:  deps.Snapshots,
		sessions:   sessions,
		fetcher:    deps.Fetcher,
		artifacts:  deps.Artifacts,
		uploader:   deps.Uploader,
		users:      deps.Users,
		guide:      deps.Guide,
		adminKey:   deps.AdminAPIKey,
		sessionTTL: ttl,
		staticDir:  staticDir,
		maxBody:    maxUploadBody,
	}
}

// RefreshAsync starts a catalogue fetch in the background. The newest fetch wins.
func (h *Handler) RefreshAsync(reason string) {
	h.refreshes.Add(1)
	go func() {
		defer h.refreshes.Done()
		slog.Info("Refreshing catalogue", "reason", reason)
		if err := h.snapshots.Refresh(h.ctx, h.fetcher); err != nil {
			slog.Error("Catalogue refresh failed", "reason", reason, "error", err)
		}
	}()
}

// RetryAsync starts a background fetch only when none is outstanding, so
// concurrent readers of a failed view trigger a single retry.
func (h *Handler) RetryAsync(reason string) bool {
	ticket, ok := h.snapshots.TryBegin()
	if !ok {
		return false
	}
	h.refreshes.Add(1)
	go func() {
		defer h.refreshes.Done()
		slog.Info("Refreshing catalogue", "reason", reason)
		if err := h.snapshots.Settle(h.ctx, ticket, h.fetcher); err != nil {
			slog.Error("Catalogue refresh failed", "reason", reason, "error", err)
		}
	}()
	return true
}

// Wait blocks until every background refresh has returned.
func (h *Handler) Wait() {
	h.refreshes.Wait()
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

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Debug(message, "status", code)
	}
	h.writeJSONStatus(w, code, errorResponse{Error: message})
}

// writeServiceError maps errors from the domain packages onto status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var se *frontql.StatusError
	switch {
	case errors.Is(err, catalogue.ErrUnknownCategory),
		errors.Is(err, catalogue.ErrNameRequired),
		errors.Is(err, upload.ErrUnknownKind),
		errors.Is(err, guide.ErrEmptyQuestion):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, frontql.ErrInvalidCredentials):
		h.writeError(w, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, upload.ErrTooLarge):
		h.writeError(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, guide.ErrBusy):
		h.writeError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, guide.ErrNoCatalogue), errors.Is(err, upload.ErrNotConfigured):
		h.writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		h.writeError(w, "Artifact not found", http.StatusNotFound)
	case errors.As(err, &se), errors.Is(err, frontql.ErrRemote), errors.Is(err, frontql.ErrMalformedResponse):
		h.writeError(w, "Backend error: "+err.Error(), http.StatusBadGateway)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) unavailable(w http.ResponseWriter, what string) {
	h.writeError(w, what+" is not configured", http.StatusServiceUnavailable)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}
