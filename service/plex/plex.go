// Package plex reads a Plex Media Server's music library and listening
// history, and handles plex.tv PIN authentication. All server calls send the
// X-Plex-Token header and ask for JSON; plex.tv calls are tokenless and
// identified by the client identifier instead.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/errs"
)

const (
	plexTVURL = "https://plex.tv/api/v2"

	product          = "Vibarr"
	clientIdentifier = "vibarr-server"
)

// Plex type codes used by section listings.
const (
	typeArtist = 8
	typeAlbum  = 9
	typeTrack  = 10
)

// Section is one library section of the server.
type Section struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Item is one metadata entry: an artist, album, track, history row or
// playlist depending on which endpoint produced it.
type Item struct {
	RatingKey            string `json:"ratingKey"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	ParentTitle          string `json:"parentTitle,omitempty"`
	GrandparentTitle     string `json:"grandparentTitle,omitempty"`
	ParentRatingKey      string `json:"parentRatingKey,omitempty"`
	GrandparentRatingKey string `json:"grandparentRatingKey,omitempty"`
	Year                 int    `json:"year,omitempty"`
	Index                int    `json:"index,omitempty"`
	Duration             int64  `json:"duration,omitempty"` // ms
	ViewCount            int    `json:"viewCount,omitempty"`
	ViewedAt             int64  `json:"viewedAt,omitempty"` // unix seconds
	AddedAt              int64  `json:"addedAt,omitempty"`
	LastViewedAt         int64  `json:"lastViewedAt,omitempty"`
	AccountID            int    `json:"accountID,omitempty"`
	Thumb                string `json:"thumb,omitempty"`
	Genres               []struct {
		Tag string `json:"tag"`
	} `json:"Genre,omitempty"`
}

// GenreTags flattens the genre list.
func (i Item) GenreTags() []string {
	if len(i.Genres) == 0 {
		return nil
	}
	out := make([]string, 0, len(i.Genres))
	for _, g := range i.Genres {
		out = append(out, g.Tag)
	}
	return out
}

type mediaContainer struct {
	MediaContainer struct {
		Size              int       `json:"size"`
		MachineIdentifier string    `json:"machineIdentifier"`
		Directory         []Section `json:"Directory"`
		Metadata          []Item    `json:"Metadata"`
	} `json:"MediaContainer"`
}

// Pin is one plex.tv PIN authentication attempt.
type Pin struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	AuthToken string `json:"authToken"`
}

type Service struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *log.Logger
}

// New builds a Plex client against one server.
func New(baseURL, token string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "plex", ReportTimestamp: true})
	}
	return &Service{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// IsAvailable reports whether a server URL and token were configured.
func (s *Service) IsAvailable() bool { return s.baseURL != "" && s.token != "" }

func (s *Service) get(ctx context.Context, path string, out *mediaContainer) error {
	if !s.IsAvailable() {
		return fmt.Errorf("plex: %w", errs.ErrConfigMissing)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex %s: %w", path, errs.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("plex token rejected: %w", errs.ErrForbidden)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("plex %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Sections lists the server's library sections.
func (s *Service) Sections(ctx context.Context) ([]Section, error) {
	var mc mediaContainer
	if err := s.get(ctx, "/library/sections", &mc); err != nil {
		return nil, err
	}
	return mc.MediaContainer.Directory, nil
}

// MusicSectionKey finds the first music (artist-typed) section.
func (s *Service) MusicSectionKey(ctx context.Context) (string, error) {
	sections, err := s.Sections(ctx)
	if err != nil {
		return "", err
	}
	for _, sec := range sections {
		if sec.Type == "artist" {
			return sec.Key, nil
		}
	}
	return "", fmt.Errorf("no music section on server: %w", errs.ErrForbidden)
}

// VerifyToken checks that the token works and a music library exists. An
// unreachable server maps to ErrUnavailable, a reachable server without a
// music section to ErrForbidden.
func (s *Service) VerifyToken(ctx context.Context) error {
	_, err := s.MusicSectionKey(ctx)
	return err
}

func (s *Service) sectionAll(ctx context.Context, sectionKey string, typeCode int) ([]Item, error) {
	path := fmt.Sprintf("/library/sections/%s/all?type=%d", url.PathEscape(sectionKey), typeCode)
	var mc mediaContainer
	if err := s.get(ctx, path, &mc); err != nil {
		return nil, err
	}
	return mc.MediaContainer.Metadata, nil
}

// SectionArtists lists every artist in a music section.
func (s *Service) SectionArtists(ctx context.Context, sectionKey string) ([]Item, error) {
	return s.sectionAll(ctx, sectionKey, typeArtist)
}

// SectionAlbums lists every album in a music section.
func (s *Service) SectionAlbums(ctx context.Context, sectionKey string) ([]Item, error) {
	return s.sectionAll(ctx, sectionKey, typeAlbum)
}

// SectionTracks lists every track in a music section. Large libraries make
// this heavy; callers should prefer AlbumTracks when walking albums.
func (s *Service) SectionTracks(ctx context.Context, sectionKey string) ([]Item, error) {
	return s.sectionAll(ctx, sectionKey, typeTrack)
}

// AlbumTracks lists the children of one album rating key.
func (s *Service) AlbumTracks(ctx context.Context, albumRatingKey string) ([]Item, error) {
	var mc mediaContainer
	if err := s.get(ctx, "/library/metadata/"+url.PathEscape(albumRatingKey)+"/children", &mc); err != nil {
		return nil, err
	}
	return mc.MediaContainer.Metadata, nil
}

// HistorySince returns play-history rows newer than the cutoff, oldest
// first so ingestion can track a high-water mark.
func (s *Service) HistorySince(ctx context.Context, since time.Time) ([]Item, error) {
	params := url.Values{}
	params.Set("sort", "viewedAt:asc")
	if !since.IsZero() {
		params.Set("viewedAt>", strconv.FormatInt(since.Unix(), 10))
	}
	var mc mediaContainer
	if err := s.get(ctx, "/status/sessions/history/all?"+params.Encode(), &mc); err != nil {
		return nil, err
	}
	return mc.MediaContainer.Metadata, nil
}

// RecentlyAdded returns the newest additions to a section.
func (s *Service) RecentlyAdded(ctx context.Context, sectionKey string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 25
	}
	path := fmt.Sprintf("/library/sections/%s/recentlyAdded?X-Plex-Container-Size=%d",
		url.PathEscape(sectionKey), limit)
	var mc mediaContainer
	if err := s.get(ctx, path, &mc); err != nil {
		return nil, err
	}
	return mc.MediaContainer.Metadata, nil
}

// MachineIdentifier returns the server's unique id, needed to build
// playlist item URIs.
func (s *Service) MachineIdentifier(ctx context.Context) (string, error) {
	var mc mediaContainer
	if err := s.get(ctx, "/identity", &mc); err != nil {
		return "", err
	}
	if mc.MediaContainer.MachineIdentifier == "" {
		return "", fmt.Errorf("server reported no machine identifier")
	}
	return mc.MediaContainer.MachineIdentifier, nil
}

// FindPlaylist looks up an audio playlist by title; nil when absent.
func (s *Service) FindPlaylist(ctx context.Context, title string) (*Item, error) {
	var mc mediaContainer
	if err := s.get(ctx, "/playlists?playlistType=audio", &mc); err != nil {
		return nil, err
	}
	for i := range mc.MediaContainer.Metadata {
		if strings.EqualFold(mc.MediaContainer.Metadata[i].Title, title) {
			return &mc.MediaContainer.Metadata[i], nil
		}
	}
	return nil, nil
}

func (s *Service) itemURI(machineID, ratingKey string) string {
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", machineID, ratingKey)
}

func (s *Service) post(ctx context.Context, path string) (*mediaContainer, error) {
	if !s.IsAvailable() {
		return nil, fmt.Errorf("plex: %w", errs.ErrConfigMissing)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex %s: %w", path, errs.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("plex %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var mc mediaContainer
	if err := json.NewDecoder(resp.Body).Decode(&mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

// CreatePlaylist creates an audio playlist seeded with one item and returns
// its rating key.
func (s *Service) CreatePlaylist(ctx context.Context, title, ratingKey string) (string, error) {
	machineID, err := s.MachineIdentifier(ctx)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("type", "audio")
	params.Set("title", title)
	params.Set("smart", "0")
	params.Set("uri", s.itemURI(machineID, ratingKey))

	mc, err := s.post(ctx, "/playlists?"+params.Encode())
	if err != nil {
		return "", err
	}
	if len(mc.MediaContainer.Metadata) == 0 {
		return "", fmt.Errorf("playlist create returned no metadata")
	}
	return mc.MediaContainer.Metadata[0].RatingKey, nil
}

// AddToPlaylist appends one item to an existing playlist.
func (s *Service) AddToPlaylist(ctx context.Context, playlistRatingKey, ratingKey string) error {
	machineID, err := s.MachineIdentifier(ctx)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("uri", s.itemURI(machineID, ratingKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		s.baseURL+"/playlists/"+url.PathEscape(playlistRatingKey)+"/items?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex playlist add: %w", errs.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("plex playlist add: status %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func plexTVHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Product", product)
	req.Header.Set("X-Plex-Client-Identifier", clientIdentifier)
}

// CreatePin starts a plex.tv PIN login and returns the pin id and the code
// the user enters at plex.tv/link.
func (s *Service) CreatePin(ctx context.Context) (*Pin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, plexTVURL+"/pins?strong=true", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	plexTVHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex.tv pins: %w", errs.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("plex.tv pins: status %d", resp.StatusCode)
	}
	var pin Pin
	if err := json.NewDecoder(resp.Body).Decode(&pin); err != nil {
		return nil, err
	}
	return &pin, nil
}

// CheckPin polls one PIN; the token is empty until the user has linked.
func (s *Service) CheckPin(ctx context.Context, pinID int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/pins/%d", plexTVURL, pinID), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	plexTVHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("plex.tv pin check: %w", errs.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("pin %d: %w", pinID, errs.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("plex.tv pin check: status %d", resp.StatusCode)
	}
	var pin Pin
	if err := json.NewDecoder(resp.Body).Decode(&pin); err != nil {
		return "", err
	}
	return pin.AuthToken, nil
}

// Account identifies the plex.tv account a token belongs to.
type Account struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Account resolves the plex.tv account behind a token, which is how the PIN
// login flow maps a linked token onto a local user.
func (s *Service) Account(ctx context.Context, token string) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, plexTVURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	plexTVHeaders(req)
	req.Header.Set("X-Plex-Token", token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex.tv user: %w", errs.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("plex token rejected: %w", errs.ErrForbidden)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("plex.tv user: status %d", resp.StatusCode)
	}
	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, err
	}
	return &account, nil
}
