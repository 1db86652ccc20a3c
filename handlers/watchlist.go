package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"watchsync/models"
	syncsvc "watchsync/services/sync"
)

type watchlistService interface {
	Watchlists() (models.Watchlists, error)
	RemoveItem(ratingKey string) error
}

var _ watchlistService = (*syncsvc.Service)(nil)

// WatchlistHandler serves the combined mine/friends watchlist view and the
// per-item removal action.
type WatchlistHandler struct {
	Service watchlistService
}

func NewWatchlistHandler(service watchlistService) *WatchlistHandler {
	return &WatchlistHandler{Service: service}
}

// List returns both watchlists, rebuilt from the media server on every call.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.Service.Watchlists()
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, syncsvc.ErrSettingsIncomplete) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

type removeRequest struct {
	RatingKey string `json:"rating_key"`
}

type removeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Remove deletes one item from the media server watchlist. The sync map row
// is dropped only after the server acknowledged the removal.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var body removeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if strings.TrimSpace(body.RatingKey) == "" {
		writeJSON(w, http.StatusBadRequest, removeResponse{Success: false, Message: "rating_key is required"})
		return
	}

	if err := h.Service.RemoveItem(body.RatingKey); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, syncsvc.ErrSettingsIncomplete) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, removeResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, removeResponse{Success: true})
}
