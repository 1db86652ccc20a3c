package handlers

import (
	"encoding/json"
	"net/http"

	"watchsync/config"
)

// ConfigHandler serves the settings object backing the dashboard's
// settings panel.
type ConfigHandler struct {
	Manager *config.Manager
}

func NewConfigHandler(m *config.Manager) *ConfigHandler {
	return &ConfigHandler{Manager: m}
}

func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ConfigHandler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	dec := json.NewDecoder(r.Body)
	// Unknown fields are tolerated so configs saved by a newer build keep
	// loading after a downgrade.
	if err := dec.Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Manager.Save(s); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	saved, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
