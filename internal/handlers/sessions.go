package handlers

import (
	"net/http"
	"strings"

	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/session"
	"github.com/fizic37/Delcampe-sub011/internal/viewport"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		sessions := h.sessions.List()
		sessionList := make([]session.Snapshot, 0, len(sessions))
		for _, s := range sessions {
			sessionList = append(sessionList, s.Snapshot())
		}
		h.writeJSON(w, sessionList)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail serves /api/sessions/{id} and its actions.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")

	s, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	if action == "" {
		switch r.Method {
		case "GET":
			h.writeJSON(w, s.Snapshot())
		case "DELETE":
			h.sessions.Delete(sessionID)
			w.WriteHeader(http.StatusNoContent)
		default:
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if action == "preview" {
		if r.Method != "GET" {
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handlePreview(w, r, s)
		return
	}

	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "resize":
		h.handleResize(w, r, s)
	case "drag":
		h.handleDrag(w, r, s)
	case "grid":
		h.handleGrid(w, r, s)
	case "decision":
		h.handleDecision(w, r, s)
	case "extract":
		h.handleExtract(w, r, s)
	default:
		h.writeError(w, "Unknown action: "+action, http.StatusNotFound)
	}
}

func (h *Handler) handleResize(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var request struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	state, err := s.OnResize(request.Width, request.Height)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, state)
}

func (h *Handler) handleDrag(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var request struct {
		Axis  string  `json:"axis"`
		Index int     `json:"index"`
		Coord float64 `json:"coord"`
		// Container the client measured coord in; defaults to the last resize.
		ContainerW float64 `json:"container_w"`
		ContainerH float64 `json:"container_h"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	axis, err := models.ParseAxis(request.Axis)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	bounds, ok := s.Bounds()
	if request.ContainerW != 0 || request.ContainerH != 0 {
		sheet, err := s.Sheet()
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		if bounds, err = viewport.ComputeBounds(sheet.NaturalW, sheet.NaturalH, request.ContainerW, request.ContainerH); err != nil {
			h.writeFailure(w, err)
			return
		}
	} else if !ok {
		h.writeFailure(w, session.ErrStaleBounds)
		return
	}

	result, err := s.OnDragBoundary(axis, request.Index, request.Coord, bounds)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, result)
}

func (h *Handler) handleGrid(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var request struct {
		Rows int `json:"rows"`
		Cols int `json:"cols"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	snap, err := s.SetGridDimensions(request.Rows, request.Cols)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, snap)
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var request struct {
		Action string `json:"action"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	snap, err := s.Decide(session.Action(request.Action))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, snap)
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request, s *session.Session) {
	result, err := s.OnExtract(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, result)
}
