package handlers

import (
	"net/http"
	"strings"

	"github.com/fizic37/Delcampe-sub011/internal/models"
)

func (h *Handler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := h.store.ListRecords(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if records == nil {
		records = []*models.ProcessingRecord{}
	}
	h.writeJSON(w, records)
}

// HandleRecordDetail serves /api/records/{hash}/{kind}. The response carries
// the reuse status of the record, including any missing artifacts.
func (h *Handler) HandleRecordDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hash, rawKind, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/api/records/"), "/")
	if hash == "" {
		h.writeError(w, "fingerprint is required", http.StatusBadRequest)
		return
	}
	kind, err := models.ParseKind(rawKind)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, found, err := h.deps.Gateway.Lookup(r.Context(), hash, kind)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if !found {
		h.writeError(w, "Record not found", http.StatusNotFound)
		return
	}

	candidate, err := h.deps.Gateway.Evaluate(r.Context(), rec)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, candidate)
}
