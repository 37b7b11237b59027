package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HandleStatic serves the front-end bundle. Paths without a file extension
// that do not exist fall back to index.html so client-side routes load.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.staticDir, filepath.FromSlash(path))
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		if filepath.Ext(path) != "" {
			http.NotFound(w, r)
			return
		}
		fullPath = filepath.Join(h.staticDir, "index.html")
	}

	// Set appropriate content type based on file extension
	switch {
	case strings.HasSuffix(fullPath, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(fullPath, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(fullPath, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	http.ServeFile(w, r, fullPath)
}
