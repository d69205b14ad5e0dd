package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// HandleStatic serves uploaded sheets under /static/uploads/ and crops under
// /static/artifacts/.
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/static/")

	// Prevent directory traversal attacks
	if strings.Contains(rel, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	var root string
	switch {
	case strings.HasPrefix(rel, "uploads/"):
		root, rel = h.opts.UploadsDir, strings.TrimPrefix(rel, "uploads/")
	case strings.HasPrefix(rel, "artifacts/"):
		root, rel = h.opts.ArtifactsDir, strings.TrimPrefix(rel, "artifacts/")
	}
	if root == "" || rel == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case strings.HasSuffix(rel, ".yaml"):
		w.Header().Set("Content-Type", "application/yaml")
	case strings.HasSuffix(rel, ".jpg"), strings.HasSuffix(rel, ".jpeg"):
		w.Header().Set("Content-Type", "image/jpeg")
	}

	http.ServeFile(w, r, filepath.Join(root, filepath.FromSlash(rel)))
}
