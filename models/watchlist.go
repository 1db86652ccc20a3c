package models

import (
	"regexp"
	"strconv"
	"time"
)

// Media types as reported by Plex.
const (
	MediaTypeMovie = "movie"
	MediaTypeShow  = "show"
)

// Sync statuses for a watchlist item. Empty means the item has not been
// pushed to a download service yet.
const (
	StatusAdded      = "added"
	StatusDownloaded = "downloaded"
)

// Watchlist sources.
const (
	SourceMine    = "mine"
	SourceFriends = "friends"
)

// WatchItem is a single entry of a Plex watchlist enriched with local sync
// state. The UI never constructs these; they are rebuilt wholesale on every
// fetch.
type WatchItem struct {
	RatingKey   string `json:"rating_key"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Year        int    `json:"year,omitempty"`
	DisplayYear string `json:"display_year,omitempty"`
	Poster      string `json:"poster,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Status      string `json:"status,omitempty"`
	Source      string `json:"source"`
	TmdbID      string `json:"tmdb_id,omitempty"`
	TvdbID      string `json:"tvdb_id,omitempty"`
	ImdbID      string `json:"imdb_id,omitempty"`
}

// Watchlists groups the two ordered collections returned by /api/watchlists.
type Watchlists struct {
	Mine    []WatchItem `json:"mine"`
	Friends []WatchItem `json:"friends"`
}

var titleYearPattern = regexp.MustCompile(`\((\d{4})\)`)

// DisplayYear returns the year to render for an item: the explicit year when
// present, otherwise a 4-digit token parenthesized inside the title, otherwise
// an empty string.
func DisplayYear(title string, year int) string {
	if year > 0 {
		return strconv.Itoa(year)
	}
	if m := titleYearPattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return ""
}

// SyncEntry maps a Plex rating key to the record created in a download
// service. Status tracks the acquisition lifecycle (added -> downloaded).
type SyncEntry struct {
	RatingKey string    `json:"rating_key"`
	ArrID     int64     `json:"arr_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobRecord is one row of the job history log.
type JobRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	JobType   string    `json:"job_type"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
}
