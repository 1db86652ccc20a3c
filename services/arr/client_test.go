package arr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/system/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key123" {
			t.Errorf("missing api key header, got %q", r.Header.Get("X-Api-Key"))
		}
		json.NewEncoder(w).Encode(SystemStatus{AppName: "Radarr", Version: "5.2.6"})
	}))
	defer srv.Close()

	client := NewClient(ServiceRadarr, srv.URL, "key123")
	status, err := client.TestConnection()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Version != "5.2.6" {
		t.Errorf("expected version 5.2.6, got %q", status.Version)
	}
}

func TestTestConnection_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(ServiceSonarr, srv.URL, "wrong")
	if _, err := client.TestConnection(); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/movie/lookup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("term"); got != "tmdb:603" {
			t.Errorf("unexpected term %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"title": "The Matrix", "tmdbId": 603},
			{"title": "The Matrix Reloaded", "tmdbId": 604},
		})
	}))
	defer srv.Close()

	client := NewClient(ServiceRadarr, srv.URL, "key")
	result, err := client.Lookup("tmdb:603")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Title() != "The Matrix" {
		t.Errorf("expected first result, got %q", result.Title())
	}
	if result.ID() != 0 {
		t.Errorf("expected no library id, got %d", result.ID())
	}
}

func TestLookup_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewClient(ServiceSonarr, srv.URL, "key")
	result, err := client.Lookup("tvdb:999999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
}

func TestLookup_SonarrUsesSeriesResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/series/lookup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewClient(ServiceSonarr, srv.URL, "key")
	if _, err := client.Lookup("tvdb:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdd_SetsAddOptions(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v3/movie" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 17, "title": "The Matrix"})
	}))
	defer srv.Close()

	client := NewClient(ServiceRadarr, srv.URL, "key")
	lookup := LookupResult{"title": "The Matrix", "tmdbId": float64(603)}
	id, err := client.Add(lookup, "/movies", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 17 {
		t.Errorf("expected created id 17, got %d", id)
	}

	if received["rootFolderPath"] != "/movies" {
		t.Errorf("rootFolderPath = %v", received["rootFolderPath"])
	}
	if received["qualityProfileId"] != float64(4) {
		t.Errorf("qualityProfileId = %v", received["qualityProfileId"])
	}
	if received["monitored"] != true {
		t.Errorf("monitored = %v", received["monitored"])
	}
	opts, ok := received["addOptions"].(map[string]any)
	if !ok || opts["searchForMovie"] != true {
		t.Errorf("addOptions = %v", received["addOptions"])
	}
	// Lookup payload fields are forwarded untouched.
	if received["tmdbId"] != float64(603) {
		t.Errorf("tmdbId = %v", received["tmdbId"])
	}
}

func TestAdd_SonarrSearchOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		opts, _ := payload["addOptions"].(map[string]any)
		if opts["searchForMissingEpisodes"] != true {
			t.Errorf("addOptions = %v", payload["addOptions"])
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 3})
	}))
	defer srv.Close()

	client := NewClient(ServiceSonarr, srv.URL, "key")
	id, err := client.Add(LookupResult{"title": "Severance"}, "/tv", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 3 {
		t.Errorf("expected id 3, got %d", id)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(ServiceRadarr, srv.URL, "key")
	_, err := client.GetItem(99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHasFile_Movie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 1, "hasFile": true})
	}))
	defer srv.Close()

	client := NewClient(ServiceRadarr, srv.URL, "key")
	has, err := client.HasFile(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !has {
		t.Error("expected hasFile true")
	}
}

func TestHasFile_SeriesStatistics(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		want bool
	}{
		{
			"top-level statistics",
			map[string]any{"id": 1, "statistics": map[string]any{"episodeFileCount": 5}},
			true,
		},
		{
			"season statistics",
			map[string]any{"id": 1, "seasons": []any{
				map[string]any{"seasonNumber": 1, "statistics": map[string]any{"episodeFileCount": 2}},
			}},
			true,
		},
		{
			"no files anywhere",
			map[string]any{"id": 1, "statistics": map[string]any{"episodeFileCount": 0}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			client := NewClient(ServiceSonarr, srv.URL, "key")
			has, err := client.HasFile(1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if has != tt.want {
				t.Errorf("HasFile = %v, want %v", has, tt.want)
			}
		})
	}
}

func TestHasFile_MissingRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(ServiceRadarr, srv.URL, "key")
	has, err := client.HasFile(404)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has {
		t.Error("expected false for missing record")
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := NewClient(ServiceRadarr, "http://radarr:7878///", "key")
	if client.baseURL != "http://radarr:7878" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
}
