package plex

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"watchsync/utils"
)

// Overridable in tests.
var (
	plexTVBaseURL       = "https://plex.tv/api/v2"
	plexDiscoverBaseURL = "https://discover.provider.plex.tv"
)

// Client handles Plex API interactions: token validation, watchlist fetching
// and watchlist mutation.
type Client struct {
	httpClient *http.Client
	feedParser *gofeed.Parser
	clientID   string
}

// WatchlistItem is an item of the Plex watchlist as returned by the
// discover API.
type WatchlistItem struct {
	RatingKey string `json:"ratingKey"`
	Key       string `json:"key"`
	GUID      string `json:"guid"`
	Type      string `json:"type"` // "movie" or "show"
	Title     string `json:"title"`
	Year      int    `json:"year"`
	Summary   string `json:"summary"`
	Thumb     string `json:"thumb"`
	AddedAt   int64  `json:"addedAt"`
}

// UserInfo is the plex.tv account behind a token.
type UserInfo struct {
	ID       int    `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// watchlistPage is one page of the discover watchlist response.
type watchlistPage struct {
	MediaContainer struct {
		Size      int             `json:"size"`
		TotalSize int             `json:"totalSize"`
		Offset    int             `json:"offset"`
		Metadata  []WatchlistItem `json:"Metadata"`
	} `json:"MediaContainer"`
}

// NewClient creates a Plex client with a generated client identifier.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		feedParser: gofeed.NewParser(),
		clientID:   "watchsync-" + uuid.NewString(),
	}
}

// setPlexHeaders adds the headers Plex requires on every request.
func (c *Client) setPlexHeaders(req *http.Request, token string) {
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", "watchsync")
	req.Header.Set("X-Plex-Version", "1.0.0")
	req.Header.Set("X-Plex-Platform", "Web")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("X-Plex-Token", token)
	}
}

// TestConnection validates a Plex token against plex.tv and returns the
// account behind it.
func (c *Client) TestConnection(token string) (*UserInfo, error) {
	req, err := http.NewRequest(http.MethodGet, plexTVBaseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setPlexHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("plex token check failed: %s - %s", resp.Status, string(body))
	}

	var user UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &user, nil
}

// GetWatchlist retrieves the account's own watchlist, walking all pages.
func (c *Client) GetWatchlist(token string) ([]WatchlistItem, error) {
	var allItems []WatchlistItem
	offset := 0
	pageSize := 50

	for {
		items, totalSize, err := c.getWatchlistPage(token, offset, pageSize)
		if err != nil {
			return nil, err
		}

		allItems = append(allItems, items...)

		if len(allItems) >= totalSize || len(items) == 0 {
			break
		}
		offset += len(items)
	}

	return allItems, nil
}

// getWatchlistPage retrieves a single page of the watchlist. Transient
// failures are retried before giving up; 4xx responses are not.
func (c *Client) getWatchlistPage(token string, offset, limit int) ([]WatchlistItem, int, error) {
	watchlistURL := fmt.Sprintf("%s/library/sections/watchlist/all?X-Plex-Container-Start=%d&X-Plex-Container-Size=%d",
		plexDiscoverBaseURL, offset, limit)

	var page watchlistPage
	err := retry.Do(
		func() error {
			req, err := http.NewRequest(http.MethodGet, watchlistURL, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			c.setPlexHeaders(req, token)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("plex api request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				reqErr := fmt.Errorf("plex watchlist failed: %s - %s", resp.Status, string(body))
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return retry.Unrecoverable(reqErr)
				}
				return reqErr
			}

			page = watchlistPage{}
			if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, 0, err
	}

	total := page.MediaContainer.TotalSize
	if total == 0 {
		total = page.MediaContainer.Size
	}
	return page.MediaContainer.Metadata, total, nil
}

// GetFriendsWatchlist fetches a shared watchlist from a Plex RSS feed URL.
// Plex only exposes friends' watchlists through RSS.
func (c *Client) GetFriendsWatchlist(feedURL string) ([]WatchlistItem, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, nil
	}

	feed, err := c.feedParser.ParseURL(feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse watchlist feed: %w", err)
	}

	items := make([]WatchlistItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := WatchlistItem{
			RatingKey: ratingKeyFromGUID(entry.GUID),
			GUID:      entry.GUID,
			Title:     entry.Title,
			Summary:   entry.Description,
			Type:      feedCategoryType(entry.Categories),
		}
		if entry.PublishedParsed != nil {
			item.AddedAt = entry.PublishedParsed.Unix()
		}
		if len(entry.Enclosures) > 0 {
			item.Thumb = entry.Enclosures[0].URL
		} else if entry.Image != nil {
			item.Thumb = entry.Image.URL
		}
		if strings.Contains(item.Thumb, " ") {
			if encoded, err := utils.EncodeURLWithSpaces(item.Thumb); err == nil {
				item.Thumb = encoded
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// feedCategoryType maps an RSS category to a Plex media type, defaulting
// to movie.
func feedCategoryType(categories []string) string {
	for _, c := range categories {
		switch strings.ToLower(c) {
		case "movie":
			return "movie"
		case "show", "tv show":
			return "show"
		}
	}
	return "movie"
}

// ratingKeyFromGUID extracts the trailing key from a plex:// GUID; falls
// back to the raw GUID so feed items always carry a stable identifier.
func ratingKeyFromGUID(guid string) string {
	if idx := strings.LastIndex(guid, "/"); idx != -1 && idx+1 < len(guid) {
		return guid[idx+1:]
	}
	return guid
}

// RemoveFromWatchlist removes an item from the account's watchlist.
func (c *Client) RemoveFromWatchlist(token, ratingKey string) error {
	return c.watchlistAction(token, "removeFromWatchlist", ratingKey)
}

// AddToWatchlist adds an item to the account's watchlist.
func (c *Client) AddToWatchlist(token, ratingKey string) error {
	return c.watchlistAction(token, "addToWatchlist", ratingKey)
}

func (c *Client) watchlistAction(token, action, ratingKey string) error {
	actionURL := fmt.Sprintf("%s/actions/%s?ratingKey=%s",
		plexDiscoverBaseURL, action, url.QueryEscape(ratingKey))

	req, err := http.NewRequest(http.MethodPut, actionURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setPlexHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("plex %s failed: %s - %s", action, resp.Status, string(body))
	}
	return nil
}

// ParseGUID extracts external IDs from a Plex GUID string.
// Example: "plex://movie/5d7768532e80df001ebe18e3" or embedded references
// like "imdb://tt1234567".
func ParseGUID(guid string) map[string]string {
	ids := make(map[string]string)

	patterns := map[string]*regexp.Regexp{
		"imdb": regexp.MustCompile(`imdb://?(tt\d+)`),
		"tmdb": regexp.MustCompile(`tmdb://(\d+)`),
		"tvdb": regexp.MustCompile(`tvdb://(\d+)`),
	}

	for service, pattern := range patterns {
		if matches := pattern.FindStringSubmatch(guid); len(matches) > 1 {
			ids[service] = matches[1]
		}
	}

	return ids
}

// GetItemDetails retrieves the external IDs (tmdb/tvdb/imdb) of a watchlist
// item. Failures are non-critical and return an empty map.
func (c *Client) GetItemDetails(token, ratingKey string) map[string]string {
	detailsURL := fmt.Sprintf("%s/library/metadata/%s", plexDiscoverBaseURL, url.PathEscape(ratingKey))

	req, err := http.NewRequest(http.MethodGet, detailsURL, nil)
	if err != nil {
		return nil
	}
	c.setPlexHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var details struct {
		MediaContainer struct {
			Metadata []struct {
				GUID  string `json:"guid"`
				Guids []struct {
					ID string `json:"id"`
				} `json:"Guid"`
			} `json:"Metadata"`
		} `json:"MediaContainer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil
	}

	ids := make(map[string]string)
	if len(details.MediaContainer.Metadata) > 0 {
		item := details.MediaContainer.Metadata[0]
		for k, v := range ParseGUID(item.GUID) {
			ids[k] = v
		}
		for _, g := range item.Guids {
			for k, v := range ParseGUID(g.ID) {
				ids[k] = v
			}
		}
	}
	return ids
}

// GetPosterURL constructs a full poster URL from a Plex thumb path.
func GetPosterURL(thumb, token string) string {
	if thumb == "" {
		return ""
	}
	if strings.HasPrefix(thumb, "/") {
		return fmt.Sprintf("%s%s?X-Plex-Token=%s", plexDiscoverBaseURL, thumb, token)
	}
	return thumb
}

// ClientID returns the client identifier sent with every request.
func (c *Client) ClientID() string {
	return c.clientID
}
