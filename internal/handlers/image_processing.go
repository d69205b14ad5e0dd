package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/fizic37/Delcampe-sub011/internal/preview"
	"github.com/fizic37/Delcampe-sub011/internal/session"
)

const (
	defaultPreviewW = 800
	defaultPreviewH = 600
	maxPreviewSide  = 4096
)

// handlePreview renders the current grid over the sheet as PNG. Size comes
// from ?width=&height=, defaulting to 800x600.
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request, s *session.Session) {
	width, ok := previewSide(r, "width", defaultPreviewW)
	if !ok {
		h.writeError(w, "Invalid width", http.StatusBadRequest)
		return
	}
	height, ok := previewSide(r, "height", defaultPreviewH)
	if !ok {
		h.writeError(w, "Invalid height", http.StatusBadRequest)
		return
	}

	sheet, err := s.Sheet()
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	hs, vs, err := s.Grid()
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	src, err := imaging.Open(sheet.Path)
	if err != nil {
		h.writeError(w, "Failed to open image: "+err.Error(), http.StatusInternalServerError)
		return
	}

	img, _, err := preview.Render(src, hs, vs, width, height, h.opts.LineColor)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var buf bytes.Buffer
	if err := preview.WritePNG(&buf, img); err != nil {
		h.writeError(w, "Failed to encode preview: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func previewSide(r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxPreviewSide {
		return 0, false
	}
	return n, true
}
