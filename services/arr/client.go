package arr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ServiceType selects the v3 API flavor of a download automation service.
type ServiceType string

const (
	ServiceRadarr ServiceType = "radarr"
	ServiceSonarr ServiceType = "sonarr"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Client talks to a single Radarr or Sonarr instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	service    ServiceType
}

// SystemStatus is the subset of /system/status the sync manager cares about.
type SystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}

// LookupResult is the raw record returned by a lookup call. The add call
// must forward the payload untouched apart from the add options, so it stays
// a generic map with typed accessors.
type LookupResult map[string]any

// ID returns the library record id, 0 when the item is not in the library.
func (l LookupResult) ID() int64 {
	if v, ok := l["id"].(float64); ok {
		return int64(v)
	}
	return 0
}

// Title returns the record title.
func (l LookupResult) Title() string {
	if v, ok := l["title"].(string); ok {
		return v
	}
	return ""
}

// NewClient creates a client for one arr instance. The trailing slash of the
// base URL is dropped so endpoint joining stays predictable.
func NewClient(service ServiceType, baseURL, apiKey string) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		service:    service,
	}
}

// resource returns the v3 resource name for this service flavor.
func (c *Client) resource() string {
	if c.service == ServiceSonarr {
		return "series"
	}
	return "movie"
}

func (c *Client) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// TestConnection checks /api/v3/system/status and returns the reported
// application version.
func (c *Client) TestConnection() (*SystemStatus, error) {
	req, err := c.newRequest(http.MethodGet, "/api/v3/system/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s status check failed: %s - %s", c.service, resp.Status, string(body))
	}

	var status SystemStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &status, nil
}

// Lookup searches the service for a term ("tmdb:123", "tvdb:456" or free
// text) and returns the first result, or nil when nothing matched.
func (c *Client) Lookup(term string) (LookupResult, error) {
	path := fmt.Sprintf("/api/v3/%s/lookup?term=%s", c.resource(), url.QueryEscape(term))
	req, err := c.newRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s lookup: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s lookup failed: %s - %s", c.service, resp.Status, string(body))
	}

	var results []LookupResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Add submits a lookup result to the library with the configured root folder
// and quality profile, monitored and with an immediate search. Returns the
// created record id.
func (c *Client) Add(item LookupResult, rootFolder string, qualityProfileID int) (int64, error) {
	payload := make(map[string]any, len(item)+4)
	for k, v := range item {
		payload[k] = v
	}
	payload["rootFolderPath"] = rootFolder
	payload["qualityProfileId"] = qualityProfileID
	payload["monitored"] = true
	if c.service == ServiceSonarr {
		payload["addOptions"] = map[string]any{"searchForMissingEpisodes": true}
	} else {
		payload["addOptions"] = map[string]any{"searchForMovie": true}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}

	req, err := c.newRequest(http.MethodPost, "/api/v3/"+c.resource(), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s add: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("%s add failed: %s - %s", c.service, resp.Status, string(respBody))
	}

	var created LookupResult
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return created.ID(), nil
}

// GetItem fetches one library record by id. Returns ErrNotFound for 404.
func (c *Client) GetItem(id int64) (LookupResult, error) {
	req, err := c.newRequest(http.MethodGet, fmt.Sprintf("/api/v3/%s/%d", c.resource(), id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s get item: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s get item failed: %s - %s", c.service, resp.Status, string(body))
	}

	var item LookupResult
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return item, nil
}

// HasFile reports whether the record has media on disk. For movies this is
// the hasFile flag; for series any season with a non-zero episodeFileCount
// counts.
func (c *Client) HasFile(id int64) (bool, error) {
	item, err := c.GetItem(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if c.service == ServiceRadarr {
		v, _ := item["hasFile"].(bool)
		return v, nil
	}

	if stats, ok := item["statistics"].(map[string]any); ok {
		if count, ok := stats["episodeFileCount"].(float64); ok && count > 0 {
			return true, nil
		}
	}
	seasons, _ := item["seasons"].([]any)
	for _, s := range seasons {
		season, ok := s.(map[string]any)
		if !ok {
			continue
		}
		stats, ok := season["statistics"].(map[string]any)
		if !ok {
			continue
		}
		if count, ok := stats["episodeFileCount"].(float64); ok && count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Service returns the configured service flavor.
func (c *Client) Service() ServiceType {
	return c.service
}
