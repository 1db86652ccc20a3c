package sync

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"watchsync/config"
	"watchsync/internal/database"
	"watchsync/models"
	"watchsync/services/arr"
	"watchsync/services/plex"
)

var (
	// ErrSyncRunning is returned when a run is triggered while another is
	// still in flight.
	ErrSyncRunning = errors.New("sync already running")
	// ErrSettingsIncomplete is returned when the Plex token or every
	// download service is missing from the configuration.
	ErrSettingsIncomplete = errors.New("sync settings incomplete")
)

const lookupWorkers = 4

type plexClient interface {
	GetWatchlist(token string) ([]plex.WatchlistItem, error)
	GetFriendsWatchlist(feedURL string) ([]plex.WatchlistItem, error)
	GetItemDetails(token, ratingKey string) map[string]string
	RemoveFromWatchlist(token, ratingKey string) error
}

var _ plexClient = (*plex.Client)(nil)

type arrClient interface {
	Lookup(term string) (arr.LookupResult, error)
	Add(item arr.LookupResult, rootFolder string, qualityProfileID int) (int64, error)
	HasFile(id int64) (bool, error)
}

// arrFactory builds a client for one download service; swapped in tests.
type arrFactory func(service arr.ServiceType, baseURL, apiKey string) arrClient

// Stats summarizes one sync run for the dashboard.
type Stats struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
}

// Service pushes watchlist items into Radarr/Sonarr and tracks their
// download state in the sync map.
type Service struct {
	configManager *config.Manager
	plexClient    plexClient
	repo          *database.Repository
	newArr        arrFactory

	mu      sync.Mutex
	running bool
}

// NewService creates the sync engine.
func NewService(configManager *config.Manager, plexClient plexClient, repo *database.Repository) *Service {
	return &Service{
		configManager: configManager,
		plexClient:    plexClient,
		repo:          repo,
		newArr: func(service arr.ServiceType, baseURL, apiKey string) arrClient {
			return arr.NewClient(service, baseURL, apiKey)
		},
	}
}

// IsRunning reports whether a sync run is in flight.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSyncRunning
	}
	s.running = true
	return nil
}

func (s *Service) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Watchlists fetches both watchlists and annotates each item with its local
// sync status. The collections are rebuilt wholesale on every call.
func (s *Service) Watchlists() (models.Watchlists, error) {
	settings, err := s.configManager.Load()
	if err != nil {
		return models.Watchlists{}, fmt.Errorf("load settings: %w", err)
	}
	if strings.TrimSpace(settings.Plex.Token) == "" {
		return models.Watchlists{}, ErrSettingsIncomplete
	}

	mineRaw, err := s.plexClient.GetWatchlist(settings.Plex.Token)
	if err != nil {
		return models.Watchlists{}, fmt.Errorf("fetch watchlist: %w", err)
	}

	friendsRaw, err := s.plexClient.GetFriendsWatchlist(settings.Plex.FriendsRSSURL)
	if err != nil {
		// The friends feed is optional; a broken feed should not hide the
		// user's own list.
		log.Printf("[sync] friends watchlist fetch failed: %v", err)
		friendsRaw = nil
	}

	statusIndex, err := s.statusIndex()
	if err != nil {
		return models.Watchlists{}, err
	}

	lists := models.Watchlists{
		Mine:    make([]models.WatchItem, 0, len(mineRaw)),
		Friends: make([]models.WatchItem, 0, len(friendsRaw)),
	}
	for _, raw := range mineRaw {
		lists.Mine = append(lists.Mine, s.toWatchItem(raw, models.SourceMine, settings.Plex.Token, statusIndex))
	}
	for _, raw := range friendsRaw {
		lists.Friends = append(lists.Friends, s.toWatchItem(raw, models.SourceFriends, settings.Plex.Token, statusIndex))
	}
	return lists, nil
}

func (s *Service) toWatchItem(raw plex.WatchlistItem, source, token string, statusIndex map[string]string) models.WatchItem {
	item := models.WatchItem{
		RatingKey:   raw.RatingKey,
		Title:       raw.Title,
		Type:        raw.Type,
		Year:        raw.Year,
		DisplayYear: models.DisplayYear(raw.Title, raw.Year),
		Poster:      plex.GetPosterURL(raw.Thumb, token),
		Summary:     raw.Summary,
		Source:      source,
		Status:      statusIndex[raw.RatingKey],
	}
	for k, v := range plex.ParseGUID(raw.GUID) {
		switch k {
		case "tmdb":
			item.TmdbID = v
		case "tvdb":
			item.TvdbID = v
		case "imdb":
			item.ImdbID = v
		}
	}
	return item
}

// statusIndex maps rating keys to their sync status.
func (s *Service) statusIndex() (map[string]string, error) {
	entries, err := s.repo.ListSyncEntries("")
	if err != nil {
		return nil, err
	}
	index := make(map[string]string, len(entries))
	for _, entry := range entries {
		index[entry.RatingKey] = entry.Status
	}
	return index, nil
}

// Run executes one full sync: pull both watchlists, push unseen items into
// the matching download service and record sync-map entries. Only one run
// may be in flight at a time.
func (s *Service) Run() (Stats, error) {
	if err := s.acquire(); err != nil {
		return Stats{}, err
	}
	defer s.release()

	stats := Stats{Added: []string{}, Skipped: []string{}}

	settings, err := s.configManager.Load()
	if err != nil {
		return stats, fmt.Errorf("load settings: %w", err)
	}

	if strings.TrimSpace(settings.Plex.Token) == "" {
		return stats, ErrSettingsIncomplete
	}
	radarrReady := settings.Radarr.Enabled && settings.Radarr.URL != "" && settings.Radarr.APIKey != ""
	sonarrReady := settings.Sonarr.Enabled && settings.Sonarr.URL != "" && settings.Sonarr.APIKey != ""
	if !radarrReady && !sonarrReady {
		return stats, ErrSettingsIncomplete
	}

	var radarrClient, sonarrClient arrClient
	if radarrReady {
		radarrClient = s.newArr(arr.ServiceRadarr, settings.Radarr.URL, settings.Radarr.APIKey)
	}
	if sonarrReady {
		sonarrClient = s.newArr(arr.ServiceSonarr, settings.Sonarr.URL, settings.Sonarr.APIKey)
	}

	log.Printf("[sync] starting watchlist sync")

	items, err := s.collectItems(settings)
	if err != nil {
		s.recordJob("watchlist-sync", "error", err.Error())
		return stats, err
	}

	var statsMu sync.Mutex
	workers := pool.New().WithMaxGoroutines(lookupWorkers)

	for _, item := range items {
		workers.Go(func() {
			outcome := s.syncItem(settings, item, radarrClient, sonarrClient)
			statsMu.Lock()
			defer statsMu.Unlock()
			switch outcome {
			case outcomeAdded:
				stats.Added = append(stats.Added, item.Title)
			case outcomeSkipped:
				stats.Skipped = append(stats.Skipped, item.Title)
			}
		})
	}
	workers.Wait()

	details := fmt.Sprintf("added %d, skipped %d", len(stats.Added), len(stats.Skipped))
	s.recordJob("watchlist-sync", "success", details)
	log.Printf("[sync] watchlist sync complete: %s", details)

	return stats, nil
}

// collectItems merges the own and friends watchlists, deduplicated by
// rating key. Order is preserved, own list first.
func (s *Service) collectItems(settings config.Settings) ([]plex.WatchlistItem, error) {
	mine, err := s.plexClient.GetWatchlist(settings.Plex.Token)
	if err != nil {
		return nil, fmt.Errorf("fetch watchlist: %w", err)
	}

	friends, err := s.plexClient.GetFriendsWatchlist(settings.Plex.FriendsRSSURL)
	if err != nil {
		log.Printf("[sync] friends watchlist fetch failed: %v", err)
		friends = nil
	}

	seen := make(map[string]bool, len(mine)+len(friends))
	items := make([]plex.WatchlistItem, 0, len(mine)+len(friends))
	for _, item := range append(mine, friends...) {
		if item.RatingKey == "" || seen[item.RatingKey] {
			continue
		}
		seen[item.RatingKey] = true
		items = append(items, item)
	}
	return items, nil
}

type syncOutcome int

const (
	outcomeAdded syncOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// syncItem pushes a single watchlist item into its download service.
func (s *Service) syncItem(settings config.Settings, item plex.WatchlistItem, radarrClient, sonarrClient arrClient) syncOutcome {
	var client arrClient
	var cfg config.ArrSettings
	switch item.Type {
	case models.MediaTypeMovie:
		client, cfg = radarrClient, settings.Radarr
	case models.MediaTypeShow:
		client, cfg = sonarrClient, settings.Sonarr
	default:
		return outcomeSkipped
	}
	if client == nil {
		return outcomeSkipped
	}

	existing, err := s.repo.GetSyncEntry(item.RatingKey)
	if err != nil {
		log.Printf("[sync] sync map lookup failed for %q: %v", item.Title, err)
		return outcomeFailed
	}
	if existing != nil {
		return outcomeSkipped
	}

	lookup, err := client.Lookup(s.lookupTerm(settings.Plex.Token, item))
	if err != nil {
		log.Printf("[sync] lookup failed for %q: %v", item.Title, err)
		return outcomeFailed
	}
	if lookup == nil {
		log.Printf("[sync] no match found for %q", item.Title)
		return outcomeSkipped
	}

	arrID := lookup.ID()
	if arrID == 0 {
		arrID, err = client.Add(lookup, cfg.RootFolderPath, cfg.QualityProfileID)
		if err != nil {
			log.Printf("[sync] add failed for %q: %v", item.Title, err)
			return outcomeFailed
		}
		log.Printf("[sync] added %q (%s)", item.Title, item.Type)
	}

	entry := models.SyncEntry{
		RatingKey: item.RatingKey,
		ArrID:     arrID,
		Type:      item.Type,
		Status:    models.StatusAdded,
	}
	if err := s.repo.UpsertSyncEntry(entry); err != nil {
		log.Printf("[sync] failed to record sync entry for %q: %v", item.Title, err)
		return outcomeFailed
	}

	if lookup.ID() != 0 {
		// Already in the library before this run.
		return outcomeSkipped
	}
	return outcomeAdded
}

// lookupTerm builds the search term for an item, preferring external IDs
// over a title/year text search.
func (s *Service) lookupTerm(token string, item plex.WatchlistItem) string {
	ids := plex.ParseGUID(item.GUID)
	if len(ids) == 0 && token != "" {
		ids = s.plexClient.GetItemDetails(token, item.RatingKey)
	}

	switch item.Type {
	case models.MediaTypeShow:
		if id := ids["tvdb"]; id != "" {
			return "tvdb:" + id
		}
	default:
		if id := ids["tmdb"]; id != "" {
			return "tmdb:" + id
		}
	}
	if id := ids["imdb"]; id != "" {
		return "imdb:" + id
	}

	term := item.Title
	if item.Year > 0 {
		term = fmt.Sprintf("%s %d", item.Title, item.Year)
	}
	return term
}

// RefreshStatuses polls the download services for entries still in state
// "added" and flips them to "downloaded" once media is on disk. When
// watchlist cleanup is enabled, downloaded items are also removed from the
// Plex watchlist. Returns the number of entries that changed state.
func (s *Service) RefreshStatuses() (int, error) {
	settings, err := s.configManager.Load()
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}

	entries, err := s.repo.ListSyncEntries(models.StatusAdded)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var radarrClient, sonarrClient arrClient
	if settings.Radarr.Enabled && settings.Radarr.URL != "" && settings.Radarr.APIKey != "" {
		radarrClient = s.newArr(arr.ServiceRadarr, settings.Radarr.URL, settings.Radarr.APIKey)
	}
	if settings.Sonarr.Enabled && settings.Sonarr.URL != "" && settings.Sonarr.APIKey != "" {
		sonarrClient = s.newArr(arr.ServiceSonarr, settings.Sonarr.URL, settings.Sonarr.APIKey)
	}

	updated := 0
	for _, entry := range entries {
		client := radarrClient
		if entry.Type == models.MediaTypeShow {
			client = sonarrClient
		}
		if client == nil {
			continue
		}

		hasFile, err := client.HasFile(entry.ArrID)
		if err != nil {
			log.Printf("[sync] status check failed for %s: %v", entry.RatingKey, err)
			continue
		}
		if !hasFile {
			continue
		}

		if _, err := s.repo.UpdateSyncStatus(entry.RatingKey, models.StatusDownloaded); err != nil {
			log.Printf("[sync] status update failed for %s: %v", entry.RatingKey, err)
			continue
		}
		updated++

		if settings.Plex.EnableWatchlistCleanup {
			if err := s.plexClient.RemoveFromWatchlist(settings.Plex.Token, entry.RatingKey); err != nil {
				log.Printf("[sync] watchlist cleanup failed for %s: %v", entry.RatingKey, err)
			}
		}
	}

	if updated > 0 {
		s.recordJob("status-refresh", "success", fmt.Sprintf("%d item(s) downloaded", updated))
	}
	return updated, nil
}

// RemoveItem removes an item from the Plex watchlist and drops its sync-map
// entry. The sync map is only touched after Plex acknowledged the removal.
func (s *Service) RemoveItem(ratingKey string) error {
	settings, err := s.configManager.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if strings.TrimSpace(settings.Plex.Token) == "" {
		return ErrSettingsIncomplete
	}

	if err := s.plexClient.RemoveFromWatchlist(settings.Plex.Token, ratingKey); err != nil {
		return err
	}

	if _, err := s.repo.DeleteSyncEntry(ratingKey); err != nil {
		log.Printf("[sync] failed to drop sync entry for %s: %v", ratingKey, err)
	}
	return nil
}

func (s *Service) recordJob(jobType, status, details string) {
	record := models.JobRecord{JobType: jobType, Status: status, Details: details}
	if err := s.repo.AddJobRecord(&record); err != nil {
		log.Printf("[sync] failed to record job history: %v", err)
	}
}
