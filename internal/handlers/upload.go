package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/session"
)

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check if this is a JSON request with image URL
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleURLUpload(w, r)
		return
	}

	h.handleFileUpload(w, r)
}

func (h *Handler) handleURLUpload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ImageURL  string `json:"image_url"`
		Kind      string `json:"kind"`
		SessionID string `json:"session_id"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	if request.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return
	}
	kind, err := models.ParseKind(request.Kind)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, filename, err := h.fetcher.Fetch(r.Context(), request.ImageURL)
	if err != nil {
		h.writeError(w, "Failed to process image URL: "+err.Error(), statusForFetch(err))
		return
	}

	h.upload(r.Context(), w, request.SessionID, data, filename, kind)
}

func statusForFetch(err error) int {
	if code := statusFor(err); code != http.StatusInternalServerError {
		return code
	}
	return http.StatusBadRequest
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("files")
		if err != nil {
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	defer file.Close()

	kind, err := models.ParseKind(r.FormValue("kind"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileData, err := io.ReadAll(io.LimitReader(file, h.opts.MaxUploadBytes))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if int64(len(fileData)) >= h.opts.MaxUploadBytes {
		h.writeError(w, fmt.Sprintf("File too large (max %d bytes)", h.opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	h.upload(r.Context(), w, r.FormValue("session_id"), fileData, header.Filename, kind)
}

// upload loads data into an existing session, or a new one when sessionID
// is empty.
func (h *Handler) upload(ctx context.Context, w http.ResponseWriter, sessionID string, data []byte, filename string, kind models.Kind) {
	var s *session.Session
	if sessionID != "" {
		var ok bool
		if s, ok = h.getSessionOrError(w, sessionID); !ok {
			return
		}
	} else {
		s = session.New(h.deps)
	}

	result, err := s.OnUpload(ctx, data, filename, kind)
	if err != nil {
		h.writeError(w, "Upload failed: "+err.Error(), statusFor(err))
		return
	}

	if sessionID == "" {
		h.sessions.Add(s)
	}
	h.writeJSON(w, result)
}
