// Package musicbrainz queries the public MusicBrainz web service for artist
// and release-group metadata. MusicBrainz allows one request per second, so
// every call goes through a shared limiter, and responses are cached in
// memory for an hour.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/vibarr/vibarr/models"
)

const (
	baseURL   = "https://musicbrainz.org/ws/2"
	userAgent = "vibarr/0.1 ( https://github.com/vibarr/vibarr )"
)

// Artist API types.
type Artist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name,omitempty"`
	Disambiguation string `json:"disambiguation,omitempty"`
	Country        string `json:"country,omitempty"`
	Score          int    `json:"score,omitempty"`
	Type           string `json:"type,omitempty"`
	Tags           []Tag  `json:"tags,omitempty"`
	LifeSpan       *struct {
		Begin string `json:"begin,omitempty"`
		End   string `json:"end,omitempty"`
	} `json:"life-span,omitempty"`
}

type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ArtistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type ReleaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	PrimaryType      string         `json:"primary-type,omitempty"`
	SecondaryTypes   []string       `json:"secondary-types,omitempty"`
	FirstReleaseDate string         `json:"first-release-date,omitempty"`
	ArtistCredit     []ArtistCredit `json:"artist-credit,omitempty"`
	Score            int            `json:"score,omitempty"`
}

type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int            `json:"length,omitempty"` // milliseconds
	ISRCs        []string       `json:"isrcs,omitempty"`
	ArtistCredit []ArtistCredit `json:"artist-credit,omitempty"`
	Releases     []Release      `json:"releases,omitempty"`
}

type Release struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Status       string        `json:"status,omitempty"`
	Date         string        `json:"date,omitempty"` // YYYY-MM-DD, YYYY-MM, or YYYY
	Country      string        `json:"country,omitempty"`
	ReleaseGroup *ReleaseGroup `json:"release-group,omitempty"`
}

type artistSearchResponse struct {
	Count   int      `json:"count"`
	Artists []Artist `json:"artists"`
}

type releaseGroupResponse struct {
	Count         int            `json:"count"`
	ReleaseGroups []ReleaseGroup `json:"release-groups"`
}

type recordingSearchResponse struct {
	Count      int         `json:"count"`
	Recordings []Recording `json:"recordings"`
}

// cacheEntry holds cached response bytes and their expiration time.
type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

type Service struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      map[string]cacheEntry
	cacheMutex sync.RWMutex
	cacheTTL   time.Duration
	cleaner    *Cleaner
	logger     *log.Logger
}

// New creates a MusicBrainz client with rate limiting and caching. The
// service needs no credentials and is always available.
func New(logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "musicbrainz", ReportTimestamp: true})
	}
	return &Service{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// MusicBrainz allows 1 request per second
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		cache:    make(map[string]cacheEntry),
		cacheTTL: time.Hour,
		cleaner:  NewCleaner("Latin"),
		logger:   logger,
	}
}

// IsAvailable reports whether the client is usable. MusicBrainz is a public
// API, so it always is.
func (s *Service) IsAvailable() bool { return true }

func (s *Service) getCached(key string) ([]byte, bool) {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	entry, found := s.cache[key]
	if found && time.Now().UTC().Before(entry.expiresAt) {
		return entry.body, true
	}
	return nil, false
}

func (s *Service) setCached(key string, body []byte) {
	s.cacheMutex.Lock()
	s.cache[key] = cacheEntry{body: body, expiresAt: time.Now().UTC().Add(s.cacheTTL)}
	s.cacheMutex.Unlock()
}

// get performs a rate-limited, cached GET and unmarshals into out.
func (s *Service) get(ctx context.Context, endpoint string, out any) error {
	if body, ok := s.getCached(endpoint); ok {
		return json.Unmarshal(body, out)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("context error during request: %w", ctx.Err())
		}
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("musicbrainz returned status %d for %s", resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	s.setCached(endpoint, body)
	return json.Unmarshal(body, out)
}

// SearchArtists looks up artists by name. Errors are logged and yield an
// empty result so callers merging multiple catalogs never stall.
func (s *Service) SearchArtists(ctx context.Context, name string, limit int) []models.CatalogArtist {
	if name == "" {
		return nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	endpoint := fmt.Sprintf("%s/artist?query=%s&limit=%d&fmt=json",
		baseURL, url.QueryEscape(fmt.Sprintf(`artist:"%s"`, name)), limit)

	var result artistSearchResponse
	if err := s.get(ctx, endpoint, &result); err != nil {
		s.logger.Error("artist search failed", "query", name, "err", err)
		return nil
	}

	out := make([]models.CatalogArtist, 0, len(result.Artists))
	for _, a := range result.Artists {
		out = append(out, models.CatalogArtist{
			Name:          a.Name,
			MusicBrainzID: a.ID,
			Genres:        tagNames(a.Tags),
			Match:         float64(a.Score) / 100,
			Source:        "musicbrainz",
		})
	}
	return out
}

// SearchReleaseGroups finds albums by title, optionally narrowed to an
// artist. An empty first pass is retried once with decoration stripped,
// since "Album (Deluxe Edition)" often only exists here as "Album".
func (s *Service) SearchReleaseGroups(ctx context.Context, artist, title string, limit int) []models.CatalogAlbum {
	if title == "" && artist == "" {
		return nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	albums := s.searchReleaseGroups(ctx, artist, title, limit)
	if len(albums) > 0 {
		return albums
	}

	cleanTitle, titleChanged := s.cleaner.Title(title)
	cleanArtist, artistChanged := s.cleaner.Artist(artist)
	if !titleChanged && !artistChanged {
		return albums
	}
	s.logger.Debug("retrying release-group search with cleaned metadata",
		"artist", cleanArtist, "title", cleanTitle)
	return s.searchReleaseGroups(ctx, cleanArtist, cleanTitle, limit)
}

func (s *Service) searchReleaseGroups(ctx context.Context, artist, title string, limit int) []models.CatalogAlbum {
	var parts []string
	if title != "" {
		parts = append(parts, fmt.Sprintf(`releasegroup:"%s"`, title))
	}
	if artist != "" {
		parts = append(parts, fmt.Sprintf(`artist:"%s"`, artist))
	}
	endpoint := fmt.Sprintf("%s/release-group?query=%s&limit=%d&fmt=json",
		baseURL, url.QueryEscape(strings.Join(parts, " AND ")), limit)

	var result releaseGroupResponse
	if err := s.get(ctx, endpoint, &result); err != nil {
		s.logger.Error("release-group search failed", "artist", artist, "title", title, "err", err)
		return nil
	}
	return normalizeReleaseGroups(result.ReleaseGroups)
}

// ArtistReleaseGroups browses an artist's albums and EPs by MBID. Used by
// the new-release check.
func (s *Service) ArtistReleaseGroups(ctx context.Context, mbid string, limit int) []models.CatalogAlbum {
	if mbid == "" {
		return nil
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	endpoint := fmt.Sprintf("%s/release-group?artist=%s&type=album|ep&limit=%d&fmt=json",
		baseURL, url.QueryEscape(mbid), limit)

	var result releaseGroupResponse
	if err := s.get(ctx, endpoint, &result); err != nil {
		s.logger.Error("artist release-group browse failed", "mbid", mbid, "err", err)
		return nil
	}
	return normalizeReleaseGroups(result.ReleaseGroups)
}

func normalizeReleaseGroups(groups []ReleaseGroup) []models.CatalogAlbum {
	out := make([]models.CatalogAlbum, 0, len(groups))
	for _, rg := range groups {
		album := models.CatalogAlbum{
			Title:         rg.Title,
			MusicBrainzID: rg.ID,
			AlbumType:     strings.ToLower(rg.PrimaryType),
			ReleaseDate:   rg.FirstReleaseDate,
			Match:         float64(rg.Score) / 100,
			Source:        "musicbrainz",
		}
		if len(rg.ArtistCredit) > 0 {
			album.ArtistName = rg.ArtistCredit[0].Name
		}
		out = append(out, album)
	}
	return out
}

// SearchRecordings searches recordings by track and artist, used when a
// track wish must be resolved to its canonical album. An empty first pass
// is retried once with featuring credits and variant suffixes stripped.
func (s *Service) SearchRecordings(ctx context.Context, artist, track string, limit int) []Recording {
	if track == "" {
		return nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	recordings := s.searchRecordings(ctx, artist, track, limit)
	if len(recordings) > 0 {
		return recordings
	}

	cleanTrack, trackChanged := s.cleaner.Title(track)
	cleanArtist, artistChanged := s.cleaner.Artist(artist)
	if !trackChanged && !artistChanged {
		return recordings
	}
	s.logger.Debug("retrying recording search with cleaned metadata",
		"artist", cleanArtist, "track", cleanTrack)
	return s.searchRecordings(ctx, cleanArtist, cleanTrack, limit)
}

func (s *Service) searchRecordings(ctx context.Context, artist, track string, limit int) []Recording {
	parts := []string{fmt.Sprintf(`recording:"%s"`, track)}
	if artist != "" {
		parts = append(parts, fmt.Sprintf(`artist:"%s"`, artist))
	}
	endpoint := fmt.Sprintf("%s/recording?query=%s&limit=%d&fmt=json&inc=artists+releases",
		baseURL, url.QueryEscape(strings.Join(parts, " AND ")), limit)

	var result recordingSearchResponse
	if err := s.get(ctx, endpoint, &result); err != nil {
		s.logger.Error("recording search failed", "artist", artist, "track", track, "err", err)
		return nil
	}
	return result.Recordings
}

// BestRelease selects the canonical release for a recording: prefer the
// oldest official album whose title is not just the track title, worldwide
// or US pressings ahead of the rest.
func BestRelease(releases []Release, trackTitle string) *Release {
	if len(releases) == 0 {
		return nil
	}

	sorted := make([]Release, len(releases))
	copy(sorted, releases)

	// Valid dates first, then date, title, id so ties break deterministically.
	sort.SliceStable(sorted, func(i, j int) bool {
		dateA, dateB := sorted[i].Date, sorted[j].Date
		validA, validB := len(dateA) >= 4, len(dateB) >= 4
		if validA != validB {
			return validA
		}
		if dateA != dateB {
			return dateA < dateB
		}
		if sorted[i].Title != sorted[j].Title {
			return sorted[i].Title < sorted[j].Title
		}
		return sorted[i].ID < sorted[j].ID
	})

	pick := func(match func(*Release) bool) *Release {
		for i := range sorted {
			if match(&sorted[i]) {
				return &sorted[i]
			}
		}
		return nil
	}

	if r := pick(func(r *Release) bool {
		return (r.Country == "XW" || r.Country == "US") && r.Title != trackTitle && isOfficialAlbum(r)
	}); r != nil {
		return r
	}
	if r := pick(func(r *Release) bool {
		return r.Title != trackTitle && isOfficialAlbum(r)
	}); r != nil {
		return r
	}
	if r := pick(func(r *Release) bool {
		return r.Title != trackTitle && r.Status == "Official"
	}); r != nil {
		return r
	}
	if r := pick(func(r *Release) bool { return r.Title != trackTitle }); r != nil {
		return r
	}
	return &sorted[0]
}

// isOfficialAlbum checks if a release is an official album, not a
// compilation, EP or promo.
func isOfficialAlbum(r *Release) bool {
	if r.Status != "" && r.Status != "Official" {
		return false
	}
	if r.ReleaseGroup != nil {
		if r.ReleaseGroup.PrimaryType != "Album" {
			return false
		}
		if len(r.ReleaseGroup.SecondaryTypes) > 0 {
			return false
		}
	}
	return true
}

func tagNames(tags []Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}
