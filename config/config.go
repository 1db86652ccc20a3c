package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ServerSettings controls the HTTP listener.
type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// PlexSettings holds the media server connection used to pull watchlists.
type PlexSettings struct {
	URL                    string `json:"url"`
	Token                  string `json:"token"`
	FriendsRSSURL          string `json:"friendsRssUrl,omitempty"`
	EnableWatchlistCleanup bool   `json:"enableWatchlistCleanup"`
}

// ArrSettings holds the connection and add options for one download
// automation service (Radarr or Sonarr).
type ArrSettings struct {
	URL              string `json:"url"`
	APIKey           string `json:"apiKey"`
	QualityProfileID int    `json:"qualityProfileId"`
	RootFolderPath   string `json:"rootFolderPath"`
	Enabled          bool   `json:"enabled"`
}

// Task frequencies supported by the scheduler.
type TaskFrequency string

const (
	TaskFrequency15Min  TaskFrequency = "15m"
	TaskFrequency30Min  TaskFrequency = "30m"
	TaskFrequencyHourly TaskFrequency = "1h"
	TaskFrequency6Hours TaskFrequency = "6h"
	TaskFrequencyDaily  TaskFrequency = "24h"
)

// Task statuses persisted alongside each scheduled task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusError   TaskStatus = "error"
)

// Task types known to the scheduler.
type TaskType string

const (
	TaskTypeWatchlistSync TaskType = "watchlist-sync"
	TaskTypeStatusRefresh TaskType = "status-refresh"
)

// ScheduledTask describes one recurring job and its last known outcome.
type ScheduledTask struct {
	ID         string        `json:"id"`
	Type       TaskType      `json:"type"`
	Name       string        `json:"name"`
	Enabled    bool          `json:"enabled"`
	Frequency  TaskFrequency `json:"frequency"`
	LastRunAt  *time.Time    `json:"lastRunAt,omitempty"`
	LastStatus TaskStatus    `json:"lastStatus,omitempty"`
	LastError  string        `json:"lastError,omitempty"`
	ItemsAdded int           `json:"itemsAdded,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// SchedulerSettings holds the task list and loop cadence.
type SchedulerSettings struct {
	CheckIntervalSeconds int             `json:"checkIntervalSeconds"`
	Tasks                []ScheduledTask `json:"tasks"`
}

// LogSettings controls the rotated backend log file.
type LogSettings struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
}

// Settings is the full persisted configuration, round-tripped as one object
// over GET/PUT /api/config.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Plex      PlexSettings      `json:"plex"`
	Radarr    ArrSettings       `json:"radarr"`
	Sonarr    ArrSettings       `json:"sonarr"`
	Scheduler SchedulerSettings `json:"scheduler"`
	Log       LogSettings       `json:"log"`
}

// Defaults returns the settings used when no file exists yet. Connection
// defaults point at the conventional docker-compose service addresses.
func Defaults() Settings {
	now := time.Now().UTC()
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8787},
		Plex: PlexSettings{
			URL: "http://localhost:32400",
		},
		Radarr: ArrSettings{
			URL:              "http://radarr:7878",
			QualityProfileID: 1,
			RootFolderPath:   "/movies",
		},
		Sonarr: ArrSettings{
			URL:              "http://sonarr:8989",
			QualityProfileID: 1,
			RootFolderPath:   "/tv",
		},
		Scheduler: SchedulerSettings{
			CheckIntervalSeconds: 60,
			Tasks: []ScheduledTask{
				{
					ID:         "watchlist-sync",
					Type:       TaskTypeWatchlistSync,
					Name:       "Watchlist Sync",
					Enabled:    true,
					Frequency:  TaskFrequencyHourly,
					LastStatus: TaskStatusPending,
					CreatedAt:  now,
				},
				{
					ID:         "status-refresh",
					Type:       TaskTypeStatusRefresh,
					Name:       "Download Status Refresh",
					Enabled:    true,
					Frequency:  TaskFrequency30Min,
					LastStatus: TaskStatusPending,
					CreatedAt:  now,
				},
			},
		},
		Log: LogSettings{
			File:       "watchsync.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Manager loads and saves the settings file. Writes are atomic
// (tmp + rename) so a crash mid-save never leaves a truncated file.
type Manager struct {
	mu   sync.RWMutex
	path string
}

// NewManager creates a manager for the settings file at path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the settings file, returning defaults when it does not exist.
// Missing sections of an older file are filled in from defaults.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("open settings: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if len(data) == 0 {
		return Defaults(), nil
	}

	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	applyFallbacks(&s)
	return s, nil
}

// Save persists the settings atomically.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	applyFallbacks(&s)

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	tmp := m.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync settings: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close settings temp file: %w", err)
	}

	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	return nil
}

// applyFallbacks fills zero values that would otherwise break the scheduler
// or the sync engine. Old configs saved before a field existed unmarshal to
// zero values.
func applyFallbacks(s *Settings) {
	d := Defaults()
	if s.Server.Port == 0 {
		s.Server.Port = d.Server.Port
	}
	if s.Server.Host == "" {
		s.Server.Host = d.Server.Host
	}
	if s.Plex.URL == "" {
		s.Plex.URL = d.Plex.URL
	}
	if s.Radarr.QualityProfileID == 0 {
		s.Radarr.QualityProfileID = d.Radarr.QualityProfileID
	}
	if s.Radarr.RootFolderPath == "" {
		s.Radarr.RootFolderPath = d.Radarr.RootFolderPath
	}
	if s.Sonarr.QualityProfileID == 0 {
		s.Sonarr.QualityProfileID = d.Sonarr.QualityProfileID
	}
	if s.Sonarr.RootFolderPath == "" {
		s.Sonarr.RootFolderPath = d.Sonarr.RootFolderPath
	}
	if s.Scheduler.CheckIntervalSeconds <= 0 {
		s.Scheduler.CheckIntervalSeconds = d.Scheduler.CheckIntervalSeconds
	}
	if len(s.Scheduler.Tasks) == 0 {
		s.Scheduler.Tasks = d.Scheduler.Tasks
	}
	if s.Log.File == "" {
		s.Log = d.Log
	}
}

// Interval converts a task frequency to a duration, defaulting to daily for
// unknown values.
func (f TaskFrequency) Interval() time.Duration {
	switch f {
	case TaskFrequency15Min:
		return 15 * time.Minute
	case TaskFrequency30Min:
		return 30 * time.Minute
	case TaskFrequencyHourly:
		return time.Hour
	case TaskFrequency6Hours:
		return 6 * time.Hour
	case TaskFrequencyDaily:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
