package handlers

import (
	"net/http"
	"strconv"

	"watchsync/models"
)

type historyStore interface {
	ListJobRecords(limit int) ([]models.JobRecord, error)
}

// HistoryHandler serves the job history log.
type HistoryHandler struct {
	Store historyStore
}

func NewHistoryHandler(store historyStore) *HistoryHandler {
	return &HistoryHandler{Store: store}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := h.Store.ListJobRecords(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []models.JobRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}
