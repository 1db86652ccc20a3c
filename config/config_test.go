package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "settings.json"))
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	m := tempManager(t)

	s, err := m.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Server.Port != 8787 {
		t.Errorf("expected default port 8787, got %d", s.Server.Port)
	}
	if len(s.Scheduler.Tasks) != 2 {
		t.Errorf("expected 2 default tasks, got %d", len(s.Scheduler.Tasks))
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	m := tempManager(t)

	s := Defaults()
	s.Plex.Token = "secret-token"
	s.Plex.FriendsRSSURL = "https://rss.plex.tv/abc"
	s.Radarr.Enabled = true
	s.Radarr.APIKey = "radarr-key"

	if err := m.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Plex.Token != "secret-token" {
		t.Errorf("token not persisted: %q", loaded.Plex.Token)
	}
	if loaded.Plex.FriendsRSSURL != "https://rss.plex.tv/abc" {
		t.Errorf("friends feed not persisted: %q", loaded.Plex.FriendsRSSURL)
	}
	if !loaded.Radarr.Enabled || loaded.Radarr.APIKey != "radarr-key" {
		t.Errorf("radarr settings not persisted: %+v", loaded.Radarr)
	}
}

func TestSave_PreservesSiblingFields(t *testing.T) {
	m := tempManager(t)

	s := Defaults()
	s.Sonarr.APIKey = "sonarr-key"
	s.Sonarr.RootFolderPath = "/mnt/tv"
	if err := m.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Change one field of a different section and save again.
	s, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Radarr.URL = "http://10.0.0.5:7878"
	if err := m.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Radarr.URL != "http://10.0.0.5:7878" {
		t.Errorf("edited field lost: %q", loaded.Radarr.URL)
	}
	if loaded.Sonarr.APIKey != "sonarr-key" || loaded.Sonarr.RootFolderPath != "/mnt/tv" {
		t.Errorf("sibling section changed: %+v", loaded.Sonarr)
	}
}

func TestLoad_PartialFileGetsFallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	partial := `{"plex":{"token":"abc"}}`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	s, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Plex.Token != "abc" {
		t.Errorf("expected token from file, got %q", s.Plex.Token)
	}
	if s.Server.Port != 8787 {
		t.Errorf("expected fallback port, got %d", s.Server.Port)
	}
	if s.Radarr.QualityProfileID != 1 {
		t.Errorf("expected fallback quality profile, got %d", s.Radarr.QualityProfileID)
	}
	if len(s.Scheduler.Tasks) == 0 {
		t.Error("expected fallback task list")
	}
}

func TestLoad_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for corrupt settings file")
	}
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "settings.json"))
	if err := m.Save(Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "settings.json" {
		t.Errorf("expected only settings.json, got %v", entries)
	}
}

func TestTaskFrequencyInterval(t *testing.T) {
	tests := []struct {
		freq TaskFrequency
		want time.Duration
	}{
		{TaskFrequency15Min, 15 * time.Minute},
		{TaskFrequency30Min, 30 * time.Minute},
		{TaskFrequencyHourly, time.Hour},
		{TaskFrequency6Hours, 6 * time.Hour},
		{TaskFrequencyDaily, 24 * time.Hour},
		{TaskFrequency("bogus"), 24 * time.Hour},
	}

	for _, tt := range tests {
		if got := tt.freq.Interval(); got != tt.want {
			t.Errorf("Interval(%q) = %v, want %v", tt.freq, got, tt.want)
		}
	}
}
