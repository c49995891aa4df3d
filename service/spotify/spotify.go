// Package spotify wraps the Spotify Web API using the client-credentials
// flow. Catalog lookups are rate limited to stay inside Spotify's budget,
// and every method degrades to empty results on error so merged searches
// keep working when the integration is down.
package spotify

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/vibarr/vibarr/models"
)

type Service struct {
	client  *spotifyapi.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// New builds a Spotify client from application credentials. With empty
// credentials the service constructs but reports unavailable.
func New(clientID, clientSecret string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "spotify", ReportTimestamp: true})
	}
	s := &Service{
		// Spotify tolerates roughly 10 requests per minute sustained.
		limiter: rate.NewLimiter(rate.Every(6*time.Second), 1),
		logger:  logger,
	}
	if clientID == "" || clientSecret == "" {
		return s
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := config.Client(context.Background())
	httpClient.Timeout = 15 * time.Second
	s.client = spotifyapi.New(httpClient)
	return s
}

// IsAvailable reports whether credentials were configured.
func (s *Service) IsAvailable() bool { return s.client != nil }

func (s *Service) ready(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.Warn("rate limiter wait cancelled", "err", err)
		return false
	}
	return true
}

// SearchArtists queries the artist catalog.
func (s *Service) SearchArtists(ctx context.Context, query string, limit int) []models.CatalogArtist {
	if query == "" || !s.ready(ctx) {
		return nil
	}
	result, err := s.client.Search(ctx, query, spotifyapi.SearchTypeArtist, spotifyapi.Limit(clampLimit(limit)))
	if err != nil {
		s.logger.Error("artist search failed", "query", query, "err", err)
		return nil
	}
	if result.Artists == nil {
		return nil
	}
	out := make([]models.CatalogArtist, 0, len(result.Artists.Artists))
	for _, a := range result.Artists.Artists {
		out = append(out, normalizeArtist(a))
	}
	return out
}

// SearchAlbums queries the album catalog.
func (s *Service) SearchAlbums(ctx context.Context, query string, limit int) []models.CatalogAlbum {
	if query == "" || !s.ready(ctx) {
		return nil
	}
	result, err := s.client.Search(ctx, query, spotifyapi.SearchTypeAlbum, spotifyapi.Limit(clampLimit(limit)))
	if err != nil {
		s.logger.Error("album search failed", "query", query, "err", err)
		return nil
	}
	if result.Albums == nil {
		return nil
	}
	out := make([]models.CatalogAlbum, 0, len(result.Albums.Albums))
	for _, a := range result.Albums.Albums {
		out = append(out, normalizeAlbum(a))
	}
	return out
}

// SearchTracks queries the track catalog.
func (s *Service) SearchTracks(ctx context.Context, query string, limit int) []models.CatalogTrack {
	if query == "" || !s.ready(ctx) {
		return nil
	}
	result, err := s.client.Search(ctx, query, spotifyapi.SearchTypeTrack, spotifyapi.Limit(clampLimit(limit)))
	if err != nil {
		s.logger.Error("track search failed", "query", query, "err", err)
		return nil
	}
	if result.Tracks == nil {
		return nil
	}
	out := make([]models.CatalogTrack, 0, len(result.Tracks.Tracks))
	for _, t := range result.Tracks.Tracks {
		out = append(out, normalizeTrack(t))
	}
	return out
}

// RelatedArtists returns artists similar to the given Spotify artist id.
func (s *Service) RelatedArtists(ctx context.Context, spotifyID string) []models.CatalogArtist {
	if spotifyID == "" || !s.ready(ctx) {
		return nil
	}
	artists, err := s.client.GetRelatedArtists(ctx, spotifyapi.ID(spotifyID))
	if err != nil {
		s.logger.Error("related artists failed", "id", spotifyID, "err", err)
		return nil
	}
	out := make([]models.CatalogArtist, 0, len(artists))
	for _, a := range artists {
		out = append(out, normalizeArtist(a))
	}
	return out
}

// NewReleases fetches Spotify's new-release browse list.
func (s *Service) NewReleases(ctx context.Context, limit int) []models.CatalogAlbum {
	if !s.ready(ctx) {
		return nil
	}
	page, err := s.client.NewReleases(ctx, spotifyapi.Limit(clampLimit(limit)))
	if err != nil {
		s.logger.Error("new releases failed", "err", err)
		return nil
	}
	out := make([]models.CatalogAlbum, 0, len(page.Albums))
	for _, a := range page.Albums {
		out = append(out, normalizeAlbum(a))
	}
	return out
}

// ArtistAlbums lists an artist's albums and singles by Spotify id.
func (s *Service) ArtistAlbums(ctx context.Context, spotifyID string, limit int) []models.CatalogAlbum {
	if spotifyID == "" || !s.ready(ctx) {
		return nil
	}
	page, err := s.client.GetArtistAlbums(ctx, spotifyapi.ID(spotifyID),
		[]spotifyapi.AlbumType{spotifyapi.AlbumTypeAlbum, spotifyapi.AlbumTypeSingle},
		spotifyapi.Limit(clampLimit(limit)))
	if err != nil {
		s.logger.Error("artist albums failed", "id", spotifyID, "err", err)
		return nil
	}
	out := make([]models.CatalogAlbum, 0, len(page.Albums))
	for _, a := range page.Albums {
		out = append(out, normalizeAlbum(a))
	}
	return out
}

// AudioFeatures fetches the audio-analysis vector for up to 100 track ids,
// keyed by id. Missing tracks are simply absent from the map.
func (s *Service) AudioFeatures(ctx context.Context, trackIDs []string) map[string]*models.AudioFeatures {
	if len(trackIDs) == 0 || !s.ready(ctx) {
		return nil
	}
	if len(trackIDs) > 100 {
		trackIDs = trackIDs[:100]
	}
	ids := make([]spotifyapi.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotifyapi.ID(id)
	}
	features, err := s.client.GetAudioFeatures(ctx, ids...)
	if err != nil {
		s.logger.Error("audio features failed", "count", len(ids), "err", err)
		return nil
	}
	out := make(map[string]*models.AudioFeatures, len(features))
	for _, f := range features {
		if f == nil {
			continue
		}
		out[string(f.ID)] = &models.AudioFeatures{
			Danceability:     float64(f.Danceability),
			Energy:           float64(f.Energy),
			Key:              int(f.Key),
			Loudness:         float64(f.Loudness),
			Mode:             int(f.Mode),
			Speechiness:      float64(f.Speechiness),
			Acousticness:     float64(f.Acousticness),
			Instrumentalness: float64(f.Instrumentalness),
			Liveness:         float64(f.Liveness),
			Valence:          float64(f.Valence),
			Tempo:            float64(f.Tempo),
			TimeSignature:    int(f.TimeSignature),
		}
	}
	return out
}

// PlaylistTracks resolves a playlist URL or bare id into its track list.
func (s *Service) PlaylistTracks(ctx context.Context, playlistURL string) []models.PlaylistTrack {
	id := ParsePlaylistID(playlistURL)
	if id == "" || !s.ready(ctx) {
		return nil
	}
	page, err := s.client.GetPlaylistItems(ctx, spotifyapi.ID(id))
	if err != nil {
		s.logger.Error("playlist fetch failed", "playlist", id, "err", err)
		return nil
	}
	var out []models.PlaylistTrack
	for _, item := range page.Items {
		t := item.Track.Track
		if t == nil || len(t.Artists) == 0 {
			continue
		}
		out = append(out, models.PlaylistTrack{
			ArtistName: t.Artists[0].Name,
			TrackTitle: t.Name,
			AlbumTitle: t.Album.Name,
		})
	}
	return out
}

// ParsePlaylistID extracts the playlist id from an open.spotify.com URL, a
// spotify: URI, or a bare id.
func ParsePlaylistID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "spotify:playlist:") {
		return strings.TrimPrefix(raw, "spotify:playlist:")
	}
	if strings.Contains(raw, "open.spotify.com") {
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && parts[0] == "playlist" {
			return parts[1]
		}
		return ""
	}
	if strings.ContainsAny(raw, "/?:") {
		return ""
	}
	return raw
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 50 {
		return 20
	}
	return limit
}

func normalizeArtist(a spotifyapi.FullArtist) models.CatalogArtist {
	out := models.CatalogArtist{
		Name:       a.Name,
		SpotifyID:  string(a.ID),
		Genres:     a.Genres,
		Popularity: int(a.Popularity),
		URL:        a.ExternalURLs["spotify"],
		Source:     "spotify",
	}
	if len(a.Images) > 0 {
		out.ImageURL = a.Images[0].URL
	}
	return out
}

func normalizeAlbum(a spotifyapi.SimpleAlbum) models.CatalogAlbum {
	out := models.CatalogAlbum{
		Title:       a.Name,
		SpotifyID:   string(a.ID),
		AlbumType:   a.AlbumType,
		ReleaseDate: a.ReleaseDate,
		TotalTracks: int(a.TotalTracks),
		URL:         a.ExternalURLs["spotify"],
		Source:      "spotify",
	}
	if len(a.Artists) > 0 {
		out.ArtistName = a.Artists[0].Name
	}
	if len(a.Images) > 0 {
		out.CoverURL = a.Images[0].URL
	}
	return out
}

func normalizeTrack(t spotifyapi.FullTrack) models.CatalogTrack {
	out := models.CatalogTrack{
		Title:      t.Name,
		SpotifyID:  string(t.ID),
		AlbumTitle: t.Album.Name,
		DurationMS: int64(t.Duration),
		PreviewURL: t.PreviewURL,
		Popularity: int(t.Popularity),
		URL:        t.ExternalURLs["spotify"],
		ISRC:       t.ExternalIDs["isrc"],
		Source:     "spotify",
	}
	if len(t.Artists) > 0 {
		out.ArtistName = t.Artists[0].Name
	}
	return out
}
