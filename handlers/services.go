package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"watchsync/services/arr"
	"watchsync/services/plex"
)

type plexTester interface {
	TestConnection(token string) (*plex.UserInfo, error)
}

var _ plexTester = (*plex.Client)(nil)

type arrTester interface {
	TestConnection() (*arr.SystemStatus, error)
}

// ServicesHandler answers connection tests for the settings panel. Tests run
// against the submitted, not yet saved, values.
type ServicesHandler struct {
	Plex plexTester

	// newArr is swapped in tests.
	newArr func(service arr.ServiceType, baseURL, apiKey string) arrTester
}

func NewServicesHandler(plexClient plexTester) *ServicesHandler {
	return &ServicesHandler{
		Plex: plexClient,
		newArr: func(service arr.ServiceType, baseURL, apiKey string) arrTester {
			return arr.NewClient(service, baseURL, apiKey)
		},
	}
}

type testRequest struct {
	ServiceType string `json:"service_type"`
	URL         string `json:"url"`
	APIKey      string `json:"api_key"`
}

type testResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

// Test checks connectivity for one service using the submitted credentials.
func (h *ServicesHandler) Test(w http.ResponseWriter, r *http.Request) {
	var body testRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch strings.ToLower(body.ServiceType) {
	case "plex":
		user, err := h.Plex.TestConnection(body.APIKey)
		if err != nil {
			writeJSON(w, http.StatusOK, testResponse{Success: false, Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, testResponse{
			Success: true,
			Message: fmt.Sprintf("Plex token valid (account %s)", user.Username),
		})
	case "radarr", "sonarr":
		client := h.newArr(arr.ServiceType(body.ServiceType), body.URL, body.APIKey)
		status, err := client.TestConnection()
		if err != nil {
			writeJSON(w, http.StatusOK, testResponse{Success: false, Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, testResponse{
			Success: true,
			Message: "Connection successful",
			Version: status.Version,
		})
	default:
		writeJSON(w, http.StatusOK, testResponse{Success: false, Message: "unknown service"})
	}
}
