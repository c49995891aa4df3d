package main

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/pkg/relevance"
)

const (
	searchKindAll    = "all"
	searchKindArtist = "artist"
	searchKindAlbum  = "album"
	searchKindTrack  = "track"
)

// handleSearchMusic fans one query out to every configured catalog and
// merges the answers. Unconfigured providers contribute nothing, so the
// endpoint degrades instead of failing.
func (app *application) handleSearchMusic(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, http.StatusBadRequest, "q is required")
		return
	}
	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = searchKindAll
	}
	switch kind {
	case searchKindAll, searchKindArtist, searchKindAlbum, searchKindTrack:
	default:
		jsonError(w, http.StatusBadRequest, "type must be artist, album, track or all")
		return
	}
	limit := queryInt(r, "limit", 10)
	if limit > 25 {
		limit = 25
	}

	ctx := r.Context()
	var (
		wg      sync.WaitGroup
		artists []models.CatalogArtist
		albums  []models.CatalogAlbum
		tracks  []models.CatalogTrack
	)
	if kind == searchKindAll || kind == searchKindArtist {
		wg.Add(1)
		go func() {
			defer wg.Done()
			artists = app.searchArtists(ctx, q, limit)
		}()
	}
	if kind == searchKindAll || kind == searchKindAlbum {
		wg.Add(1)
		go func() {
			defer wg.Done()
			albums = app.searchAlbums(ctx, q, limit)
		}()
	}
	if kind == searchKindAll || kind == searchKindTrack {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracks = app.searchTracks(ctx, q, limit)
		}()
	}
	wg.Wait()

	jsonResponse(w, http.StatusOK, map[string]any{
		"query":   q,
		"artists": artists,
		"albums":  albums,
		"tracks":  tracks,
	})
}

func (app *application) searchArtists(ctx context.Context, q string, limit int) []models.CatalogArtist {
	merged := app.clients.Spotify().SearchArtists(ctx, q, limit)
	merged = append(merged, app.clients.MusicBrainz().SearchArtists(ctx, q, limit)...)
	merged = append(merged, app.clients.Deezer().SearchArtists(ctx, q, limit)...)

	seen := make(map[string]bool, len(merged))
	out := merged[:0]
	for _, a := range merged {
		key := relevance.Normalize(a.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (app *application) searchAlbums(ctx context.Context, q string, limit int) []models.CatalogAlbum {
	merged := app.clients.Spotify().SearchAlbums(ctx, q, limit)
	merged = append(merged, app.clients.MusicBrainz().SearchReleaseGroups(ctx, "", q, limit)...)
	merged = append(merged, app.clients.Deezer().SearchAlbums(ctx, q, limit)...)

	seen := make(map[string]bool, len(merged))
	out := merged[:0]
	for _, a := range merged {
		key := relevance.Normalize(a.ArtistName + " " + a.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (app *application) searchTracks(ctx context.Context, q string, limit int) []models.CatalogTrack {
	merged := app.clients.Spotify().SearchTracks(ctx, q, limit)
	merged = append(merged, app.clients.Deezer().SearchTracks(ctx, q, limit)...)
	merged = append(merged, app.clients.YTMusic().SearchTracks(ctx, q, limit)...)

	seen := make(map[string]bool, len(merged))
	out := merged[:0]
	for _, t := range merged {
		key := relevance.Normalize(t.ArtistName + " " + t.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

// handleSearchReleases runs an indexer search and returns the scored
// releases, best first, exactly as the pipeline would see them.
func (app *application) handleSearchReleases(w http.ResponseWriter, r *http.Request) {
	artist := strings.TrimSpace(r.URL.Query().Get("artist"))
	album := strings.TrimSpace(r.URL.Query().Get("album"))
	if artist == "" || album == "" {
		jsonError(w, http.StatusBadRequest, "artist and album are required")
		return
	}
	format := r.URL.Query().Get("format")

	releases, err := app.clients.Prowlarr().SearchAlbum(r.Context(), artist, album, format)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"artist":   artist,
		"album":    album,
		"count":    len(releases),
		"releases": releases,
	})
}

// handleSimilarArtists merges Last.fm and Spotify neighbours of one library
// artist.
func (app *application) handleSimilarArtists(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "artistID")
	if err != nil {
		httpError(w, err)
		return
	}
	artist, err := app.database.GetArtist(id)
	if err != nil {
		httpError(w, err)
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit > 50 {
		limit = 50
	}

	ctx := r.Context()
	merged := app.clients.LastFM().SimilarArtists(ctx, artist.Name, limit)
	if artist.SpotifyID != nil {
		merged = append(merged, app.clients.Spotify().RelatedArtists(ctx, *artist.SpotifyID)...)
	}

	self := relevance.Normalize(artist.Name)
	seen := map[string]bool{self: true}
	out := merged[:0]
	for _, a := range merged {
		key := relevance.Normalize(a.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"artist":  artist,
		"similar": out,
	})
}

// handleNewReleases joins the global Spotify new-release rail with releases
// the check-new-releases job recorded for library artists.
func (app *application) handleNewReleases(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit > 50 {
		limit = 50
	}

	catalog := app.clients.Spotify().NewReleases(r.Context(), limit)

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	local, err := app.database.AlbumsReleasedSince(cutoff, limit)
	if err != nil {
		httpError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"catalog": catalog,
		"library": local,
	})
}
