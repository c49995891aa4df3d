// Package deezer queries the public Deezer API. Deezer needs no credentials,
// so the client is gated only by the deezer_enabled setting. It is the one
// catalog here with a browsable genre tree, which makes it the canonical
// lookup for genre exploration, and its playlists can be resolved for
// wishlist imports.
package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/models"
)

const defaultBaseURL = "https://api.deezer.com"

// apiError is Deezer's error envelope. Failures arrive inside a 200 body, so
// every response is probed for it before decoding.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type Artist struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Link    string `json:"link,omitempty"`
	Picture string `json:"picture_medium,omitempty"`
	Fans    int64  `json:"nb_fan,omitempty"`
	Albums  int    `json:"nb_album,omitempty"`
}

type Album struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Link        string  `json:"link,omitempty"`
	Cover       string  `json:"cover_medium,omitempty"`
	GenreID     int64   `json:"genre_id,omitempty"`
	TrackCount  int     `json:"nb_tracks,omitempty"`
	RecordType  string  `json:"record_type,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	Artist      *Artist `json:"artist,omitempty"`
	Tracks      *struct {
		Data []Track `json:"data"`
	} `json:"tracks,omitempty"`
}

type Track struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Link     string  `json:"link,omitempty"`
	Duration int     `json:"duration,omitempty"` // seconds
	Rank     int64   `json:"rank,omitempty"`
	Artist   *Artist `json:"artist,omitempty"`
	Album    *struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
		Cover string `json:"cover_medium,omitempty"`
	} `json:"album,omitempty"`
}

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type artistList struct {
	Data []Artist `json:"data"`
}

type albumList struct {
	Data []Album `json:"data"`
}

type trackList struct {
	Data []Track `json:"data"`
}

type genreList struct {
	Data []Genre `json:"data"`
}

type playlistResponse struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Tracks struct {
		Data []Track `json:"data"`
	} `json:"tracks"`
}

type Service struct {
	baseURL    string
	enabled    bool
	httpClient *http.Client
	logger     *log.Logger

	genreMutex sync.Mutex
	genres     []Genre
}

// New creates a Deezer client. The API is keyless, so enabled is the only
// switch.
func New(enabled bool, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "deezer", ReportTimestamp: true})
	}
	return &Service{
		baseURL:    defaultBaseURL,
		enabled:    enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// IsAvailable reports whether the deezer_enabled setting turned the client on.
func (s *Service) IsAvailable() bool { return s.enabled }

// get performs a GET, rejects Deezer's in-band error envelope, and decodes
// the body into out.
func (s *Service) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deezer returned status %d for %s", resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return fmt.Errorf("deezer error %d (%s): %s", envelope.Error.Code, envelope.Error.Type, envelope.Error.Message)
	}
	return json.Unmarshal(body, out)
}

// SearchArtists looks up artists by name. Errors are logged and yield an
// empty result so callers merging multiple catalogs never stall.
func (s *Service) SearchArtists(ctx context.Context, name string, limit int) []models.CatalogArtist {
	if !s.enabled || name == "" {
		return nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	endpoint := fmt.Sprintf("%s/search/artist?q=%s&limit=%d", s.baseURL, url.QueryEscape(name), limit)

	var result artistList
	if err := s.get(ctx, endpoint, &result); err != nil {
		s.logger.Error("artist search failed", "query", name, "err", err)
		return nil
	}
	out := make([]models.CatalogArtist, 0, len(result.Data))
	for _, a := range result.Data {
		out = append(out, catalogArtist(a))
	}
	return out
}

// SearchAlbums looks up albums by free-text query.
func (s *Service) SearchAlbums(ctx context.Context, query string, limit int) []models.CatalogAlbum {
	if !s.enabled || query == "" {
		return nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	endpoint := fmt.Sprintf("%s/search/album?q=%s&limit=%d", s.baseURL, url.QueryEscape(query), limit)

	var result albumList
	if err := s.get(ctx, endpoint, &result); err != nil {
		s.logger.Error("album search failed", "query", query, "err", err)
		return nil
	}
	out := make([]models.CatalogAlbum, 0, len(result.Data))
	for _, al := range result.Data {
		out = append(out, catalogAlbum(al))
	}
	return out
}

// SearchTracks looks up tracks by free-text query.
func (s *Service) SearchTracks(ctx context.Context, query string, limit int) []models.CatalogTrack {
	if !s.enabled || query == "" {
		return nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	endpoint := fmt.Sprintf("%s/search/track?q=%s&limit=%d", s.baseURL, url.QueryEscape(query), limit)

	var result trackList
	if err := s.get(ctx, endpoint, &result); err != nil {
		s.logger.Error("track search failed", "query", query, "err", err)
		return nil
	}
	out := make([]models.CatalogTrack, 0, len(result.Data))
	for _, t := range result.Data {
		out = append(out, catalogTrack(t))
	}
	return out
}

// Artist fetches one artist by Deezer id, nil when the id is unknown.
func (s *Service) Artist(ctx context.Context, id int64) *models.CatalogArtist {
	if !s.enabled || id <= 0 {
		return nil
	}
	var artist Artist
	if err := s.get(ctx, fmt.Sprintf("%s/artist/%d", s.baseURL, id), &artist); err != nil {
		s.logger.Error("artist lookup failed", "id", id, "err", err)
		return nil
	}
	out := catalogArtist(artist)
	return &out
}

// Album fetches one album with its track list, nil when the id is unknown.
func (s *Service) Album(ctx context.Context, id int64) *models.CatalogAlbum {
	if !s.enabled || id <= 0 {
		return nil
	}
	var album Album
	if err := s.get(ctx, fmt.Sprintf("%s/album/%d", s.baseURL, id), &album); err != nil {
		s.logger.Error("album lookup failed", "id", id, "err", err)
		return nil
	}
	out := catalogAlbum(album)
	if album.Tracks != nil && out.TotalTracks == 0 {
		out.TotalTracks = len(album.Tracks.Data)
	}
	return &out
}

// loadGenres fetches Deezer's genre tree once and keeps it for the life of
// the process. A failed fetch is retried on the next call.
func (s *Service) loadGenres(ctx context.Context) []Genre {
	s.genreMutex.Lock()
	defer s.genreMutex.Unlock()
	if s.genres == nil {
		var result genreList
		if err := s.get(ctx, s.baseURL+"/genre", &result); err != nil {
			s.logger.Error("genre list fetch failed", "err", err)
			return nil
		}
		genres := result.Data
		sort.Slice(genres, func(i, j int) bool { return genres[i].Name < genres[j].Name })
		s.genres = genres
	}
	return s.genres
}

// matchGenre resolves a free-form genre name to a Deezer genre id. Exact
// match wins, then containment either way, so "indie rock" still lands on
// "Rock". The genre list is scanned in name order to keep ties deterministic.
func (s *Service) matchGenre(ctx context.Context, name string) (int64, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return 0, false
	}
	genres := s.loadGenres(ctx)
	for _, g := range genres {
		if strings.ToLower(g.Name) == key {
			return g.ID, true
		}
	}
	for _, g := range genres {
		genreName := strings.ToLower(g.Name)
		if genreName == "all" {
			continue
		}
		if strings.Contains(key, genreName) || strings.Contains(genreName, key) {
			return g.ID, true
		}
	}
	return 0, false
}

// GenreArtists lists the artists Deezer files under the named genre. The
// genre-explore producer feeds taste-profile genre names straight in.
func (s *Service) GenreArtists(ctx context.Context, genre string, limit int) []models.CatalogArtist {
	if !s.enabled || genre == "" {
		return nil
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	id, ok := s.matchGenre(ctx, genre)
	if !ok {
		return nil
	}
	endpoint := fmt.Sprintf("%s/genre/%d/artists?limit=%d", s.baseURL, id, limit)

	var result artistList
	if err := s.get(ctx, endpoint, &result); err != nil {
		s.logger.Error("genre artist fetch failed", "genre", genre, "err", err)
		return nil
	}
	if len(result.Data) > limit {
		result.Data = result.Data[:limit]
	}
	out := make([]models.CatalogArtist, 0, len(result.Data))
	for _, a := range result.Data {
		artist := catalogArtist(a)
		artist.Genres = []string{genre}
		out = append(out, artist)
	}
	return out
}

// PlaylistTracks resolves a Deezer playlist into importable (artist, title,
// album) rows. Playlist import is user triggered, so unlike the catalog
// searches failures surface as errors. Deezer serves up to 400 tracks in one
// page, which covers any playlist worth importing.
func (s *Service) PlaylistTracks(ctx context.Context, playlistID int64) (string, []models.PlaylistTrack, error) {
	if !s.enabled {
		return "", nil, fmt.Errorf("deezer is disabled")
	}
	if playlistID <= 0 {
		return "", nil, fmt.Errorf("playlist id required")
	}

	var playlist playlistResponse
	if err := s.get(ctx, fmt.Sprintf("%s/playlist/%d", s.baseURL, playlistID), &playlist); err != nil {
		return "", nil, err
	}

	tracks := make([]models.PlaylistTrack, 0, len(playlist.Tracks.Data))
	for _, t := range playlist.Tracks.Data {
		if t.Title == "" || t.Artist == nil || t.Artist.Name == "" {
			continue
		}
		entry := models.PlaylistTrack{ArtistName: t.Artist.Name, TrackTitle: t.Title}
		if t.Album != nil {
			entry.AlbumTitle = t.Album.Title
		}
		tracks = append(tracks, entry)
	}
	return playlist.Title, tracks, nil
}

// PlaylistIDFromURL extracts the playlist id from a Deezer URL such as
// https://www.deezer.com/en/playlist/1234567.
func PlaylistIDFromURL(raw string) (int64, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	host := strings.ToLower(u.Hostname())
	if host != "deezer.com" && !strings.HasSuffix(host, ".deezer.com") {
		return 0, false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg != "playlist" || i+1 >= len(segments) {
			continue
		}
		id, err := strconv.ParseInt(segments[i+1], 10, 64)
		if err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func catalogArtist(a Artist) models.CatalogArtist {
	return models.CatalogArtist{
		Name:      a.Name,
		ImageURL:  a.Picture,
		URL:       a.Link,
		Listeners: a.Fans,
		Source:    "deezer",
	}
}

func catalogAlbum(al Album) models.CatalogAlbum {
	album := models.CatalogAlbum{
		Title:       al.Title,
		AlbumType:   strings.ToLower(al.RecordType),
		ReleaseDate: al.ReleaseDate,
		TotalTracks: al.TrackCount,
		CoverURL:    al.Cover,
		URL:         al.Link,
		Source:      "deezer",
	}
	if al.Artist != nil {
		album.ArtistName = al.Artist.Name
	}
	return album
}

func catalogTrack(t Track) models.CatalogTrack {
	track := models.CatalogTrack{
		Title:      t.Title,
		DurationMS: int64(t.Duration) * 1000,
		URL:        t.Link,
		Source:     "deezer",
	}
	if t.Artist != nil {
		track.ArtistName = t.Artist.Name
	}
	if t.Album != nil {
		track.AlbumTitle = t.Album.Title
	}
	return track
}
