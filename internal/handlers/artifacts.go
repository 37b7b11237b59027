package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/artifex-heritage/artifex/internal/upload"
)

// readArtifactInput accepts a JSON body or a multipart form. For a form, an
// "image" file is uploaded to the artifacts folder and its path becomes imageUrl.
func (h *Handler) readArtifactInput(w http.ResponseWriter, r *http.Request) (models.ArtifactInput, bool, error) {
	var in models.ArtifactInput

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := decodeJSON(r, &in); err != nil {
			return in, false, err
		}
		return in, false, nil
	}

	if err := h.parseMultipart(w, r); err != nil {
		return in, false, err
	}
	in.Name = r.FormValue("name")
	in.Category = r.FormValue("category")
	in.ImageURL = r.FormValue("imageUrl")
	in.Keywords = parseKeywordsField(r.MultipartForm.Value["keywords"])

	return in, len(r.MultipartForm.File[string(upload.KindImage)]) > 0, nil
}

// parseKeywordsField accepts repeated fields, comma-separated text, or a JSON list.
func parseKeywordsField(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var list []string
			if err := json.Unmarshal([]byte(v), &list); err == nil {
				out = append(out, list...)
				continue
			}
		}
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

// attachImage uploads the form image, if any, and points in at it.
func (h *Handler) attachImage(w http.ResponseWriter, r *http.Request, in *models.ArtifactInput) bool {
	if h.uploader == nil {
		h.unavailable(w, "File upload")
		return false
	}
	resp, err := h.uploadFormFile(r, upload.KindImage, "artifacts")
	if err != nil {
		h.writeUploadError(w, err)
		return false
	}
	in.ImageURL = resp.Path
	return true
}

// HandleCreateArtifact creates an artifact. The held snapshot is not patched;
// a background refresh picks the new record up.
func (h *Handler) HandleCreateArtifact(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		h.unavailable(w, "Artifact editing")
		return
	}

	in, hasImage, err := h.readArtifactInput(w, r)
	if errors.Is(err, upload.ErrTooLarge) {
		h.writeServiceError(w, err)
		return
	}
	if err != nil {
		h.writeError(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if in, err = catalogue.Validate(in); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if hasImage && !h.attachImage(w, r, &in) {
		return
	}

	rec, err := h.artifacts.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.RefreshAsync("artifact created")
	h.writeJSONStatus(w, http.StatusCreated, h.recordResponse(rec))
}

// HandleUpdateArtifact updates an artifact and patches the held snapshot.
func (h *Handler) HandleUpdateArtifact(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		h.unavailable(w, "Artifact editing")
		return
	}
	id := r.PathValue("id")

	in, hasImage, err := h.readArtifactInput(w, r)
	if errors.Is(err, upload.ErrTooLarge) {
		h.writeServiceError(w, err)
		return
	}
	if err != nil {
		h.writeError(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if in, err = catalogue.Validate(in); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if hasImage && !h.attachImage(w, r, &in) {
		return
	}

	rec, err := h.artifacts.Update(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	patched := h.snapshots.Replace(rec)
	h.writeJSON(w, map[string]any{
		"artifact": h.recordResponse(rec),
		"patched":  patched,
	})
}

// HandleDeleteArtifact deletes an artifact and drops it from the held snapshot.
func (h *Handler) HandleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		h.unavailable(w, "Artifact editing")
		return
	}
	id := r.PathValue("id")

	if err := h.artifacts.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	removed := h.snapshots.Remove(id)
	h.writeJSON(w, map[string]any{
		"id":      id,
		"removed": removed,
	})
}
