package handlers

import (
	"encoding/json"
	"errors"
	"image/color"
	"log/slog"
	"net/http"

	"github.com/fizic37/Delcampe-sub011/internal/boundary"
	"github.com/fizic37/Delcampe-sub011/internal/dedup"
	"github.com/fizic37/Delcampe-sub011/internal/extraction"
	"github.com/fizic37/Delcampe-sub011/internal/images"
	"github.com/fizic37/Delcampe-sub011/internal/session"
	"github.com/fizic37/Delcampe-sub011/internal/storage"
	"github.com/fizic37/Delcampe-sub011/internal/viewport"
)

// Options configures a Handler.
type Options struct {
	Deps           *session.Deps
	Store          storage.Store
	MaxUploadBytes int64
	LineColor      color.Color
	UploadsDir     string
	ArtifactsDir   string
}

type Handler struct {
	sessions *session.Registry
	deps     *session.Deps
	store    storage.Store
	fetcher  *images.Fetcher
	opts     Options
}

func New(opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 * 1024 * 1024
	}
	if opts.LineColor == nil {
		opts.LineColor = color.NRGBA{R: 255, A: 255}
	}
	return &Handler{
		sessions: session.NewRegistry(),
		deps:     opts.Deps,
		store:    opts.Store,
		fetcher:  images.NewFetcher(opts.MaxUploadBytes),
		opts:     opts,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/api/upload", h.HandleUpload)
	mux.HandleFunc("/api/records", h.HandleRecords)
	mux.HandleFunc("/api/records/", h.HandleRecordDetail)
	mux.HandleFunc("/static/", h.HandleStatic)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}

// writeFailure maps domain errors to HTTP status codes.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, boundary.ErrFixedBoundary),
		errors.Is(err, boundary.ErrInvalidCount),
		errors.Is(err, viewport.ErrInvalidDimension),
		errors.Is(err, session.ErrBadIndex),
		errors.Is(err, session.ErrBadAction),
		errors.Is(err, session.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoImage),
		errors.Is(err, session.ErrNoCandidate),
		errors.Is(err, session.ErrStaleBounds),
		errors.Is(err, dedup.ErrNotReusable),
		errors.Is(err, dedup.ErrPersistenceConflict),
		errors.Is(err, extraction.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, images.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*session.Session, bool) {
	s, exists := h.sessions.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
