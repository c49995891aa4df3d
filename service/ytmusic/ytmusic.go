// Package ytmusic talks to a ytmusicapi proxy sidecar. YouTube Music has no
// public API, so the client expects the REST facade named by the ytmusic_url
// setting and stays unavailable until one is configured. Response shapes
// follow the proxy's passthrough of ytmusicapi: videoId, duration_seconds,
// artist and album references by name and id.
package ytmusic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/models"
)

// Image is a thumbnail in proxy responses.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Artist is an artist reference in proxy responses.
type Artist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type trackAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Track is a song in proxy responses.
type Track struct {
	VideoID     string      `json:"videoId"`
	Title       string      `json:"title"`
	Artists     []Artist    `json:"artists"`
	Album       *trackAlbum `json:"album"`
	Duration    string      `json:"duration"`
	DurationSec int         `json:"duration_seconds"`
	Thumbnails  []Image     `json:"thumbnails"`
	ISRC        string      `json:"isrc,omitempty"`
}

// Playlist is a playlist with its resolved tracks.
type Playlist struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Privacy     string  `json:"privacy"`
	Thumbnails  []Image `json:"thumbnails"`
	TrackCount  int     `json:"trackCount"`
	Tracks      []Track `json:"tracks,omitempty"`
}

type Service struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// New creates a client for the proxy at baseURL. An empty baseURL leaves the
// client unavailable rather than failing.
func New(baseURL string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "ytmusic", ReportTimestamp: true})
	}
	return &Service{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// IsAvailable reports whether a proxy endpoint is configured.
func (s *Service) IsAvailable() bool { return s.baseURL != "" }

// get performs a GET against the proxy and decodes the body into out. Proxy
// failures carry a FastAPI-style detail field, which is folded into the
// error.
func (s *Service) get(ctx context.Context, endpoint string, out any) error {
	if s.baseURL == "" {
		return fmt.Errorf("ytmusic proxy not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("ytmusic proxy status %d: %s", resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("ytmusic proxy status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// SearchTracks searches songs through the proxy. Errors are logged and yield
// an empty result like the other catalog clients.
func (s *Service) SearchTracks(ctx context.Context, query string, limit int) []models.CatalogTrack {
	if !s.IsAvailable() || query == "" {
		return nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	endpoint := fmt.Sprintf("/api/search?q=%s&filter=songs", url.QueryEscape(query))

	var results []Track
	if err := s.get(ctx, endpoint, &results); err != nil {
		s.logger.Error("track search failed", "query", query, "err", err)
		return nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]models.CatalogTrack, 0, len(results))
	for _, t := range results {
		out = append(out, catalogTrack(t))
	}
	return out
}

// Playlist fetches a playlist and its tracks from the proxy.
func (s *Service) Playlist(ctx context.Context, playlistID string) (*Playlist, error) {
	if !s.IsAvailable() {
		return nil, fmt.Errorf("ytmusic proxy not configured")
	}
	if playlistID == "" {
		return nil, fmt.Errorf("playlist id required")
	}
	var playlist Playlist
	if err := s.get(ctx, "/api/playlists/"+url.PathEscape(playlistID), &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracks resolves a playlist into importable (artist, title, album)
// rows. Playlist import is user triggered, so failures surface as errors.
func (s *Service) PlaylistTracks(ctx context.Context, playlistID string) (string, []models.PlaylistTrack, error) {
	playlist, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return "", nil, err
	}

	tracks := make([]models.PlaylistTrack, 0, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		if t.Title == "" || len(t.Artists) == 0 || t.Artists[0].Name == "" {
			continue
		}
		entry := models.PlaylistTrack{ArtistName: t.Artists[0].Name, TrackTitle: t.Title}
		if t.Album != nil {
			entry.AlbumTitle = t.Album.Name
		}
		tracks = append(tracks, entry)
	}
	return playlist.Title, tracks, nil
}

// PlaylistIDFromURL extracts the list id from a YouTube Music URL such as
// https://music.youtube.com/playlist?list=PLxyz. Watch URLs carrying a list
// parameter count too.
func PlaylistIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	switch host {
	case "music.youtube.com", "www.youtube.com", "youtube.com":
	default:
		return "", false
	}
	list := u.Query().Get("list")
	if list == "" {
		return "", false
	}
	return list, true
}

func catalogTrack(t Track) models.CatalogTrack {
	track := models.CatalogTrack{
		Title:      t.Title,
		ISRC:       t.ISRC,
		DurationMS: int64(t.DurationSec) * 1000,
		Source:     "ytmusic",
	}
	if t.VideoID != "" {
		track.URL = "https://music.youtube.com/watch?v=" + t.VideoID
	}
	if len(t.Artists) > 0 {
		track.ArtistName = t.Artists[0].Name
	}
	if t.Album != nil {
		track.AlbumTitle = t.Album.Name
	}
	return track
}
