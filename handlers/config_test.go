package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"watchsync/config"
)

func testConfigHandler(t *testing.T) *ConfigHandler {
	t.Helper()
	return NewConfigHandler(config.NewManager(filepath.Join(t.TempDir(), "settings.json")))
}

func TestGetConfig_ReturnsDefaults(t *testing.T) {
	h := testConfigHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	h.GetConfig(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var s config.Settings
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Server.Port != 8787 {
		t.Errorf("expected default port, got %d", s.Server.Port)
	}
}

func TestPutConfig_PersistsAndEchoes(t *testing.T) {
	h := testConfigHandler(t)

	s := config.Defaults()
	s.Plex.Token = "tok"
	s.Radarr.Enabled = true
	s.Radarr.APIKey = "rkey"
	body, _ := json.Marshal(s)

	req := httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.PutConfig(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var saved config.Settings
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.Plex.Token != "tok" || !saved.Radarr.Enabled {
		t.Errorf("response does not reflect saved settings: %+v", saved)
	}

	// The next GET sees the same state.
	rec = httptest.NewRecorder()
	h.GetConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	var reloaded config.Settings
	if err := json.NewDecoder(rec.Body).Decode(&reloaded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reloaded.Radarr.APIKey != "rkey" {
		t.Errorf("saved settings lost: %+v", reloaded.Radarr)
	}
}

func TestPutConfig_EditedFieldKeepsSiblings(t *testing.T) {
	h := testConfigHandler(t)

	s := config.Defaults()
	s.Sonarr.APIKey = "skey"
	s.Sonarr.Enabled = true
	body, _ := json.Marshal(s)
	rec := httptest.NewRecorder()
	h.PutConfig(rec, httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("seed put: %d", rec.Code)
	}

	// Edit a single field of another section and PUT the full object back.
	var current config.Settings
	json.NewDecoder(rec.Body).Decode(&current)
	current.Radarr.URL = "http://10.0.0.9:7878"
	body, _ = json.Marshal(current)

	rec = httptest.NewRecorder()
	h.PutConfig(rec, httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var saved config.Settings
	json.NewDecoder(rec.Body).Decode(&saved)
	if saved.Radarr.URL != "http://10.0.0.9:7878" {
		t.Errorf("edited field lost: %q", saved.Radarr.URL)
	}
	if saved.Sonarr.APIKey != "skey" || !saved.Sonarr.Enabled {
		t.Errorf("sibling section changed: %+v", saved.Sonarr)
	}
}

func TestPutConfig_RejectsMalformedBody(t *testing.T) {
	h := testConfigHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader([]byte("{oops")))
	rec := httptest.NewRecorder()
	h.PutConfig(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
