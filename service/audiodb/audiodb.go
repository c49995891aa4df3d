// Package audiodb pulls artist and album artwork plus descriptive metadata
// from TheAudioDB. The free tier ships a shared key, so lookups work without
// configuration; audiodb_api_key swaps in a paid key. Records are keyed by
// name or by MusicBrainz id, which makes this the bridge between library
// MBIDs and display metadata.
package audiodb

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
)

const (
	defaultBaseURL = "https://www.theaudiodb.com/api/v1/json"

	// FreeTierKey is TheAudioDB's shared developer key.
	FreeTierKey = "2"
)

// Artist is TheAudioDB artist record, trimmed to the fields enrichment uses.
type Artist struct {
	ID            string `json:"idArtist"`
	Name          string `json:"strArtist"`
	Label         string `json:"strLabel,omitempty"`
	Genre         string `json:"strGenre,omitempty"`
	Style         string `json:"strStyle,omitempty"`
	Mood          string `json:"strMood,omitempty"`
	FormedYear    string `json:"intFormedYear,omitempty"`
	Country       string `json:"strCountry,omitempty"`
	Biography     string `json:"strBiographyEN,omitempty"`
	Thumb         string `json:"strArtistThumb,omitempty"`
	Fanart        string `json:"strArtistFanart,omitempty"`
	Banner        string `json:"strArtistBanner,omitempty"`
	Website       string `json:"strWebsite,omitempty"`
	MusicBrainzID string `json:"strMusicBrainzID,omitempty"`
}

// Genres returns the artist's genre and style as a tag list, dropping blanks
// and the "..." placeholder TheAudioDB uses for unknown values.
func (a *Artist) Genres() []string {
	var out []string
	for _, tag := range []string{a.Genre, a.Style} {
		tag = strings.TrimSpace(tag)
		if tag == "" || tag == "..." {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// Album is TheAudioDB album record.
type Album struct {
	ID                  string `json:"idAlbum"`
	ArtistID            string `json:"idArtist"`
	Title               string `json:"strAlbum"`
	Artist              string `json:"strArtist"`
	Year                string `json:"intYearReleased,omitempty"`
	Genre               string `json:"strGenre,omitempty"`
	Style               string `json:"strStyle,omitempty"`
	Mood                string `json:"strMood,omitempty"`
	Thumb               string `json:"strAlbumThumb,omitempty"`
	Description         string `json:"strDescriptionEN,omitempty"`
	MusicBrainzID       string `json:"strMusicBrainzID,omitempty"`
	MusicBrainzArtistID string `json:"strMusicBrainzArtistID,omitempty"`
}

type artistResponse struct {
	Artists []Artist `json:"artists"`
}

type albumResponse struct {
	Albums []Album `json:"album"`
}

type Service struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
}

// New creates a TheAudioDB client. An empty key falls back to the shared
// free-tier key.
func New(apiKey string, logger *log.Logger) *Service {
	if apiKey == "" {
		apiKey = FreeTierKey
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "audiodb", ReportTimestamp: true})
	}
	return &Service{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// IsAvailable is always true: the free-tier key needs no configuration.
func (s *Service) IsAvailable() bool { return s.apiKey != "" }

func (s *Service) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/%s/%s?%s", s.baseURL, s.apiKey, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("theaudiodb returned status %d for %s", resp.StatusCode, path)
	}
	// Misses come back as {"artists":null}, which decodes to an empty slice.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// SearchArtist looks an artist up by name and returns the first record, or
// nil when TheAudioDB has none. Errors are logged and yield nil so the
// enrichment path degrades to bare library data.
func (s *Service) SearchArtist(ctx context.Context, name string) *Artist {
	if name == "" {
		return nil
	}
	var result artistResponse
	if err := s.get(ctx, "search.php", url.Values{"s": {name}}, &result); err != nil {
		s.logger.Error("artist search failed", "artist", name, "err", err)
		return nil
	}
	if len(result.Artists) == 0 {
		return nil
	}
	return &result.Artists[0]
}

// ArtistByMBID resolves a MusicBrainz artist id to TheAudioDB's record.
func (s *Service) ArtistByMBID(ctx context.Context, mbid string) *Artist {
	if mbid == "" {
		return nil
	}
	var result artistResponse
	if err := s.get(ctx, "artist-mb.php", url.Values{"i": {mbid}}, &result); err != nil {
		s.logger.Error("artist mbid lookup failed", "mbid", mbid, "err", err)
		return nil
	}
	if len(result.Artists) == 0 {
		return nil
	}
	return &result.Artists[0]
}

// SearchAlbum looks an album up by artist and title.
func (s *Service) SearchAlbum(ctx context.Context, artist, album string) *Album {
	if artist == "" || album == "" {
		return nil
	}
	var result albumResponse
	if err := s.get(ctx, "searchalbum.php", url.Values{"s": {artist}, "a": {album}}, &result); err != nil {
		s.logger.Error("album search failed", "artist", artist, "album", album, "err", err)
		return nil
	}
	if len(result.Albums) == 0 {
		return nil
	}
	return &result.Albums[0]
}

// AlbumByMBID resolves a MusicBrainz release-group id to TheAudioDB's record.
func (s *Service) AlbumByMBID(ctx context.Context, mbid string) *Album {
	if mbid == "" {
		return nil
	}
	var result albumResponse
	if err := s.get(ctx, "album-mb.php", url.Values{"i": {mbid}}, &result); err != nil {
		s.logger.Error("album mbid lookup failed", "mbid", mbid, "err", err)
		return nil
	}
	if len(result.Albums) == 0 {
		return nil
	}
	return &result.Albums[0]
}
