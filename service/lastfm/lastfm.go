// Package lastfm wraps the Last.fm API behind a bounded worker pool. The
// underlying library is synchronous, so every call runs on its own goroutine
// gated by a semaphore; a stuck Last.fm request can never stall a scheduler
// worker past its context deadline.
package lastfm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	lastfmgo "github.com/shkh/lastfm-go/lastfm"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/vibarr/vibarr/models"
)

const maxInflight = 4

type Service struct {
	api     *lastfmgo.Api
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	logger  *log.Logger
}

// ArtistInfo is the detail view for one artist.
type ArtistInfo struct {
	Name      string                 `json:"name"`
	MBID      string                 `json:"mbid,omitempty"`
	URL       string                 `json:"url,omitempty"`
	Listeners int64                  `json:"listeners"`
	Plays     int64                  `json:"plays"`
	Tags      []string               `json:"tags,omitempty"`
	Summary   string                 `json:"summary,omitempty"`
	Similar   []models.CatalogArtist `json:"similar,omitempty"`
}

// New builds a Last.fm client. Empty credentials leave it unavailable.
func New(apiKey, sharedSecret string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "lastfm", ReportTimestamp: true})
	}
	s := &Service{
		// Stay inside 10 requests per minute.
		limiter: rate.NewLimiter(rate.Every(6*time.Second), 1),
		sem:     semaphore.NewWeighted(maxInflight),
		logger:  logger,
	}
	if apiKey == "" {
		return s
	}
	s.api = lastfmgo.New(apiKey, sharedSecret)
	return s
}

// IsAvailable reports whether an API key was configured.
func (s *Service) IsAvailable() bool { return s.api != nil }

// call runs a blocking library call on a pooled goroutine, abandoning it
// when the context expires. The goroutine finishes in the background and
// releases its slot; the caller just stops waiting.
func (s *Service) call(ctx context.Context, name string, fn func() error) bool {
	if s.api == nil {
		return false
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.Warn("rate limiter wait cancelled", "call", name, "err", err)
		return false
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.logger.Warn("worker slot wait cancelled", "call", name, "err", err)
		return false
	}

	done := make(chan error, 1)
	go func() {
		defer s.sem.Release(1)
		done <- fn()
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("lastfm call failed", "call", name, "err", err)
			return false
		}
		return true
	case <-ctx.Done():
		s.logger.Warn("lastfm call abandoned", "call", name, "err", ctx.Err())
		return false
	}
}

// SimilarArtists fetches artists similar to the given one with their match
// scores in [0,1].
func (s *Service) SimilarArtists(ctx context.Context, artist string, limit int) []models.CatalogArtist {
	if artist == "" {
		return nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var result lastfmgo.ArtistGetSimilar
	ok := s.call(ctx, "artist.getSimilar", func() error {
		var err error
		result, err = s.api.Artist.GetSimilar(lastfmgo.P{
			"artist": artist,
			"limit":  limit,
		})
		return err
	})
	if !ok {
		return nil
	}

	out := make([]models.CatalogArtist, 0, len(result.Similars))
	for _, a := range result.Similars {
		match := 0.0
		if a.Match != "" {
			_, _ = fmt.Sscanf(a.Match, "%f", &match)
		}
		out = append(out, models.CatalogArtist{
			Name:          a.Name,
			MusicBrainzID: a.Mbid,
			URL:           a.Url,
			Match:         match,
			Source:        "lastfm",
		})
	}
	return out
}

// Info fetches listener counts, tags, a bio summary and similar artists for
// one artist. Returns nil when the lookup fails.
func (s *Service) Info(ctx context.Context, artist string) *ArtistInfo {
	if artist == "" {
		return nil
	}

	var result lastfmgo.ArtistGetInfo
	ok := s.call(ctx, "artist.getInfo", func() error {
		var err error
		result, err = s.api.Artist.GetInfo(lastfmgo.P{"artist": artist})
		return err
	})
	if !ok {
		return nil
	}

	info := &ArtistInfo{
		Name:    result.Name,
		MBID:    result.Mbid,
		URL:     result.Url,
		Summary: result.Bio.Summary,
	}
	info.Listeners, _ = strconv.ParseInt(result.Stats.Listeners, 10, 64)
	info.Plays, _ = strconv.ParseInt(result.Stats.Plays, 10, 64)
	for _, tag := range result.Tags {
		info.Tags = append(info.Tags, tag.Name)
	}
	for _, sim := range result.Similars {
		info.Similar = append(info.Similar, models.CatalogArtist{
			Name:   sim.Name,
			URL:    sim.Url,
			Source: "lastfm",
		})
	}
	return info
}

// TopAlbums fetches an artist's most played albums.
func (s *Service) TopAlbums(ctx context.Context, artist string, limit int) []models.CatalogAlbum {
	if artist == "" {
		return nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var result lastfmgo.ArtistGetTopAlbums
	ok := s.call(ctx, "artist.getTopAlbums", func() error {
		var err error
		result, err = s.api.Artist.GetTopAlbums(lastfmgo.P{
			"artist": artist,
			"limit":  limit,
		})
		return err
	})
	if !ok {
		return nil
	}

	out := make([]models.CatalogAlbum, 0, len(result.Albums))
	for _, a := range result.Albums {
		out = append(out, models.CatalogAlbum{
			Title:         a.Name,
			ArtistName:    a.Artist.Name,
			MusicBrainzID: a.Mbid,
			URL:           a.Url,
			Source:        "lastfm",
		})
	}
	return out
}

// TagTopArtists fetches the top artists for a genre tag, feeding the
// genre-exploration candidate producer.
func (s *Service) TagTopArtists(ctx context.Context, tag string, limit int) []models.CatalogArtist {
	if tag == "" {
		return nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var result lastfmgo.TagGetTopArtists
	ok := s.call(ctx, "tag.getTopArtists", func() error {
		var err error
		result, err = s.api.Tag.GetTopArtists(lastfmgo.P{
			"tag":   tag,
			"limit": limit,
		})
		return err
	})
	if !ok {
		return nil
	}

	out := make([]models.CatalogArtist, 0, len(result.Artists))
	for _, a := range result.Artists {
		out = append(out, models.CatalogArtist{
			Name:   a.Name,
			URL:    a.Url,
			Source: "lastfm",
		})
	}
	return out
}
