package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"github.com/artifex-heritage/artifex/internal/upload"
)

const (
	maxMultipartMemory = 32 << 20
	// maxUploadBody leaves room for the form fields around one maximal file.
	maxUploadBody = upload.MaxSize + 1<<20
)

var (
	errNotAnImage  = errors.New("file is not a JPEG, PNG or GIF image")
	errMissingFile = errors.New("no file in request")
	errBadForm     = errors.New("failed to parse form")
	folderPattern  = regexp.MustCompile(`^[A-Za-z0-9_\-]+(/[A-Za-z0-9_\-]+)*$`)
	segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

type uploadResponse struct {
	Kind   upload.Kind `json:"kind"`
	Path   string      `json:"path"`
	URL    string      `json:"url"`
	Width  int         `json:"width,omitempty"`
	Height int         `json:"height,omitempty"`
}

// HandleUpload stores an image or audio file in the requested folder.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		h.unavailable(w, "File upload")
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.writeUploadError(w, err)
		return
	}

	kind := upload.KindImage
	if len(r.MultipartForm.File[string(upload.KindImage)]) == 0 {
		kind = upload.KindAudio
	}

	folder := strings.Trim(r.FormValue("folder"), "/")
	if folder == "" {
		folder = defaultFolder(kind)
	}
	if !folderPattern.MatchString(folder) {
		h.writeError(w, "Invalid folder", http.StatusBadRequest)
		return
	}

	resp, err := h.uploadFormFile(r, kind, folder)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	h.writeJSONStatus(w, http.StatusCreated, resp)
}

// HandleAudio stores an audio guide for one artifact and language.
func (h *Handler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		h.unavailable(w, "File upload")
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.writeUploadError(w, err)
		return
	}

	artifactID := r.FormValue("artifact_id")
	language := strings.ToLower(r.FormValue("language"))
	if !segmentPattern.MatchString(artifactID) || !segmentPattern.MatchString(language) {
		h.writeError(w, "artifact_id and language are required", http.StatusBadRequest)
		return
	}

	resp, err := h.uploadFormFile(r, upload.KindAudio, fmt.Sprintf("audio/%s/%s", artifactID, language))
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	h.writeJSONStatus(w, http.StatusCreated, resp)
}

// parseMultipart caps the request body before parsing the form, so an
// oversized upload is rejected while it is read.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return fmt.Errorf("%w (max %d MB)", upload.ErrTooLarge, upload.MaxSize/1024/1024)
		}
		return fmt.Errorf("%w: %w", errBadForm, err)
	}
	return nil
}

func defaultFolder(kind upload.Kind) string {
	if kind == upload.KindAudio {
		return "audio"
	}
	return "artifacts"
}

// uploadFormFile forwards the multipart file named after kind to the file host.
func (h *Handler) uploadFormFile(r *http.Request, kind upload.Kind, folder string) (*uploadResponse, error) {
	file, header, err := r.FormFile(string(kind))
	if err != nil {
		return nil, fmt.Errorf("%w: expected field %q", errMissingFile, kind)
	}
	defer file.Close()

	return h.uploadFile(r, file, header, kind, folder)
}

func (h *Handler) uploadFile(r *http.Request, file multipart.File, header *multipart.FileHeader, kind upload.Kind, folder string) (*uploadResponse, error) {
	data, err := io.ReadAll(io.LimitReader(file, upload.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(data) > upload.MaxSize {
		return nil, upload.ErrTooLarge
	}

	resp := &uploadResponse{Kind: kind}
	if kind == upload.KindImage {
		width, height, format, err := inspectImage(data)
		if err != nil {
			return nil, err
		}
		resp.Width, resp.Height = width, height
		slog.Debug("Image inspected", "filename", header.Filename, "format", format, "width", width, "height", height)
	}

	path, err := h.uploader.Upload(r.Context(), upload.Request{
		Kind:     kind,
		Folder:   folder,
		Filename: header.Filename,
		Body:     bytes.NewReader(data),
	})
	if err != nil {
		return nil, err
	}

	resp.Path = path
	resp.URL = h.uploader.PublicURL(path)
	return resp, nil
}

// inspectImage checks that data is a decodable image and returns its size.
func inspectImage(data []byte) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", errNotAnImage
	}
	return cfg.Width, cfg.Height, format, nil
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	var se *upload.StatusError
	switch {
	case errors.Is(err, errMissingFile), errors.Is(err, errNotAnImage), errors.Is(err, errBadForm):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, upload.ErrNoPath), errors.As(err, &se):
		h.writeError(w, "File host error: "+err.Error(), http.StatusBadGateway)
	default:
		h.writeServiceError(w, err)
	}
}
