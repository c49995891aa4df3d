// Package library keeps the local database in step with the media server.
// It mirrors Plex artists, albums and tracks, ingests listening history,
// and discovers fresh catalog releases for artists the library already has.
// Each entry point is the body of one scheduler job.
package library

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/metrics"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/registry"
	"github.com/vibarr/vibarr/rules"
	"github.com/vibarr/vibarr/service/plex"
)

const (
	// historyWindow is how far back each history sync reaches. Overlap
	// between runs is harmless; event insertion deduplicates.
	historyWindow = 7 * 24 * time.Hour

	// releaseWindow bounds how old a catalog release may be and still
	// count as new.
	releaseWindow = 30 * 24 * time.Hour

	releaseFetchLimit = 25
	sweepPage         = 500
)

// playMilestones are the all-time play counts that fire a
// listening_milestone trigger when first crossed.
var playMilestones = []int{100, 500, 1000, 5000, 10000}

// Syncer runs the media-server sync jobs. The rules engine is optional;
// without one, triggers are silently skipped.
type Syncer struct {
	db      *db.DB
	clients *registry.Registry
	rules   *rules.Engine
	logger  *log.Logger

	// releases resolves an artist's recent catalog albums; swapped in
	// tests to keep MusicBrainz off the wire.
	releases func(ctx context.Context, artist *models.Artist) []models.CatalogAlbum
}

func New(database *db.DB, clients *registry.Registry, rulesEngine *rules.Engine, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "library", ReportTimestamp: true})
	}
	s := &Syncer{db: database, clients: clients, rules: rulesEngine, logger: logger}
	s.releases = s.catalogReleases
	return s
}

// SyncLibrary mirrors the Plex music section into the artists, albums and
// tracks tables. Entities that vanished from the server lose their library
// flag but keep their catalog row. Triggers fire only after the whole
// mirror is consistent.
func (s *Syncer) SyncLibrary(ctx context.Context) error {
	plx := s.clients.Plex()
	if !plx.IsAvailable() {
		s.logger.Info("plex is not configured; skipping library sync")
		return nil
	}
	section, err := plx.MusicSectionKey(ctx)
	if err != nil {
		return fmt.Errorf("resolve music section: %w", err)
	}

	artistKeys, newArtists, err := s.syncArtists(ctx, plx, section)
	if err != nil {
		return err
	}
	albumKeys, newAlbums, err := s.syncAlbums(ctx, plx, section)
	if err != nil {
		return err
	}
	trackCount, err := s.syncTracks(ctx, plx, section)
	if err != nil {
		return err
	}
	s.sweepDeparted(artistKeys, albumKeys)

	artistCount, _ := s.db.LibraryArtistCount()
	albumCount, _ := s.db.LibraryAlbumCount()
	libraryTracks, _ := s.db.LibraryTrackCount()
	metrics.SetLibrarySize(artistCount, albumCount, libraryTracks)
	s.logger.Info("library sync complete",
		"artists", artistCount, "albums", albumCount, "tracks", trackCount,
		"new_artists", len(newArtists), "new_albums", len(newAlbums))

	for _, artist := range newArtists {
		s.dispatch(ctx, models.TriggerNewArtistDiscovered, rules.ArtistContext(artist))
	}
	for _, added := range newAlbums {
		s.dispatch(ctx, models.TriggerLibrarySync, rules.AlbumContext(added.artist, added.album))
	}
	return nil
}

// newAlbum pairs a freshly imported album with its artist for dispatch.
type newAlbum struct {
	artist *models.Artist
	album  *models.Album
}

func (s *Syncer) syncArtists(ctx context.Context, plx *plex.Service, section string) (map[string]bool, []*models.Artist, error) {
	items, err := plx.SectionArtists(ctx, section)
	if err != nil {
		return nil, nil, fmt.Errorf("list plex artists: %w", err)
	}

	seen := make(map[string]bool, len(items))
	var fresh []*models.Artist
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if it.RatingKey == "" || it.Title == "" {
			continue
		}
		seen[it.RatingKey] = true

		artist, err := s.db.GetArtistByMediaKey(it.RatingKey)
		if err != nil {
			return nil, nil, err
		}
		if artist == nil {
			// A catalog row from search or recommendations may already
			// exist; adopt it instead of duplicating the artist.
			artist, err = s.db.GetArtistByName(it.Title)
			if err != nil {
				return nil, nil, err
			}
		}

		key := it.RatingKey
		if artist == nil {
			artist = &models.Artist{
				Name:           it.Title,
				Genres:         it.GenreTags(),
				ThumbURL:       it.Thumb,
				InLibrary:      true,
				MediaServerKey: &key,
			}
			id, err := s.db.CreateArtist(artist)
			if err != nil {
				return nil, nil, err
			}
			artist.ID = id
			fresh = append(fresh, artist)
			continue
		}

		changed := !artist.InLibrary || artist.MediaServerKey == nil || *artist.MediaServerKey != key
		if !artist.InLibrary {
			fresh = append(fresh, artist)
		}
		artist.InLibrary = true
		artist.MediaServerKey = &key
		if len(artist.Genres) == 0 {
			if genres := it.GenreTags(); len(genres) > 0 {
				artist.Genres = genres
				changed = true
			}
		}
		if artist.ThumbURL == "" && it.Thumb != "" {
			artist.ThumbURL = it.Thumb
			changed = true
		}
		if changed {
			if err := s.db.UpdateArtist(artist); err != nil {
				return nil, nil, err
			}
		}
	}
	return seen, fresh, nil
}

func (s *Syncer) syncAlbums(ctx context.Context, plx *plex.Service, section string) (map[string]bool, []newAlbum, error) {
	items, err := plx.SectionAlbums(ctx, section)
	if err != nil {
		return nil, nil, fmt.Errorf("list plex albums: %w", err)
	}

	seen := make(map[string]bool, len(items))
	var fresh []newAlbum
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if it.RatingKey == "" || it.Title == "" {
			continue
		}
		seen[it.RatingKey] = true

		artist, err := s.resolveAlbumArtist(it)
		if err != nil {
			return nil, nil, err
		}
		if artist == nil {
			s.logger.Debug("album without a resolvable artist", "album", it.Title)
			continue
		}

		album, err := s.db.GetAlbumByMediaKey(it.RatingKey)
		if err != nil {
			return nil, nil, err
		}
		if album == nil {
			album, err = s.db.GetAlbumByTitle(artist.ID, it.Title)
			if err != nil {
				return nil, nil, err
			}
		}

		key := it.RatingKey
		if album == nil {
			album = &models.Album{
				Title:          it.Title,
				ArtistID:       artist.ID,
				ThumbURL:       it.Thumb,
				InLibrary:      true,
				MediaServerKey: &key,
			}
			if it.Year > 0 {
				year := it.Year
				album.ReleaseYear = &year
			}
			id, err := s.db.CreateAlbum(album)
			if err != nil {
				return nil, nil, err
			}
			album.ID = id
			fresh = append(fresh, newAlbum{artist: artist, album: album})
			continue
		}

		changed := !album.InLibrary || album.MediaServerKey == nil || *album.MediaServerKey != key
		if !album.InLibrary {
			fresh = append(fresh, newAlbum{artist: artist, album: album})
		}
		album.InLibrary = true
		album.MediaServerKey = &key
		if album.ReleaseYear == nil && it.Year > 0 {
			year := it.Year
			album.ReleaseYear = &year
			changed = true
		}
		if album.ThumbURL == "" && it.Thumb != "" {
			album.ThumbURL = it.Thumb
			changed = true
		}
		if changed {
			if err := s.db.UpdateAlbum(album); err != nil {
				return nil, nil, err
			}
		}
	}
	return seen, fresh, nil
}

// resolveAlbumArtist maps an album item's parent to an artist row, creating
// a stub when Plex knows an artist the database has never seen.
func (s *Syncer) resolveAlbumArtist(it plex.Item) (*models.Artist, error) {
	if it.ParentRatingKey != "" {
		artist, err := s.db.GetArtistByMediaKey(it.ParentRatingKey)
		if err != nil || artist != nil {
			return artist, err
		}
	}
	if it.ParentTitle == "" {
		return nil, nil
	}
	artist, err := s.db.GetArtistByName(it.ParentTitle)
	if err != nil || artist != nil {
		return artist, err
	}
	artist = &models.Artist{Name: it.ParentTitle, InLibrary: true}
	if it.ParentRatingKey != "" {
		key := it.ParentRatingKey
		artist.MediaServerKey = &key
	}
	id, err := s.db.CreateArtist(artist)
	if err != nil {
		return nil, err
	}
	artist.ID = id
	return artist, nil
}

func (s *Syncer) syncTracks(ctx context.Context, plx *plex.Service, section string) (int, error) {
	items, err := plx.SectionTracks(ctx, section)
	if err != nil {
		return 0, fmt.Errorf("list plex tracks: %w", err)
	}

	count := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if it.RatingKey == "" || it.Title == "" || it.ParentRatingKey == "" {
			continue
		}
		album, err := s.db.GetAlbumByMediaKey(it.ParentRatingKey)
		if err != nil {
			return count, err
		}
		if album == nil {
			continue
		}

		track, err := s.db.GetTrackByMediaKey(it.RatingKey)
		if err != nil {
			return count, err
		}
		key := it.RatingKey
		if track == nil {
			track = &models.Track{
				Title:          it.Title,
				AlbumID:        album.ID,
				TrackNumber:    it.Index,
				DurationMs:     it.Duration,
				InLibrary:      true,
				MediaServerKey: &key,
			}
			if _, err := s.db.CreateTrack(track); err != nil {
				return count, err
			}
			count++
			continue
		}

		changed := !track.InLibrary || track.AlbumID != album.ID
		track.InLibrary = true
		track.AlbumID = album.ID
		if track.TrackNumber == 0 && it.Index > 0 {
			track.TrackNumber = it.Index
			changed = true
		}
		if track.DurationMs == 0 && it.Duration > 0 {
			track.DurationMs = it.Duration
			changed = true
		}
		if changed {
			if err := s.db.UpdateTrack(track); err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}

// sweepDeparted clears the library flag on artists and albums whose media
// key no longer appears on the server. Rows are collected before any write
// so the paginated listing stays stable.
func (s *Syncer) sweepDeparted(artistKeys, albumKeys map[string]bool) {
	var departedArtists []*models.Artist
	for offset := 0; ; offset += sweepPage {
		page, err := s.db.ListArtists(true, sweepPage, offset)
		if err != nil {
			s.logger.Error("sweep library artists", "error", err)
			return
		}
		for _, a := range page {
			if a.MediaServerKey != nil && !artistKeys[*a.MediaServerKey] {
				departedArtists = append(departedArtists, a)
			}
		}
		if len(page) < sweepPage {
			break
		}
	}

	var departedAlbums []*models.Album
	for offset := 0; ; offset += sweepPage {
		page, err := s.db.ListAlbums(true, sweepPage, offset)
		if err != nil {
			s.logger.Error("sweep library albums", "error", err)
			return
		}
		for _, a := range page {
			if a.MediaServerKey != nil && !albumKeys[*a.MediaServerKey] {
				departedAlbums = append(departedAlbums, a)
			}
		}
		if len(page) < sweepPage {
			break
		}
	}

	for _, a := range departedArtists {
		a.InLibrary = false
		if err := s.db.UpdateArtist(a); err != nil {
			s.logger.Error("unflag departed artist", "artist", a.Name, "error", err)
		}
	}
	for _, a := range departedAlbums {
		a.InLibrary = false
		if err := s.db.UpdateAlbum(a); err != nil {
			s.logger.Error("unflag departed album", "album", a.Title, "error", err)
		}
	}
	if len(departedArtists) > 0 || len(departedAlbums) > 0 {
		s.logger.Info("cleared library flags for departed entities",
			"artists", len(departedArtists), "albums", len(departedAlbums))
	}
}

// SyncListeningHistory pulls the recent play history from Plex and stores
// it as listening events. Plays are attributed to the token owner; crossing
// an all-time play milestone fires a listening_milestone trigger.
func (s *Syncer) SyncListeningHistory(ctx context.Context) error {
	plx := s.clients.Plex()
	if !plx.IsAvailable() {
		s.logger.Info("plex is not configured; skipping history sync")
		return nil
	}
	owner, err := s.historyOwner()
	if err != nil {
		return err
	}
	if owner == nil {
		s.logger.Info("no users yet; skipping history sync")
		return nil
	}

	items, err := plx.HistorySince(ctx, time.Now().Add(-historyWindow))
	if err != nil {
		return fmt.Errorf("plex history: %w", err)
	}

	before, _, _, _, err := s.db.ListeningCounts(owner.ID, time.Time{})
	if err != nil {
		return err
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.Type != "track" || it.RatingKey == "" || it.ViewedAt == 0 {
			continue
		}
		event := s.eventFromHistory(owner.ID, it)
		if _, err := s.db.InsertListeningEvent(event); err != nil {
			s.logger.Error("insert listening event", "track", it.Title, "error", err)
		}
	}

	after, _, _, _, err := s.db.ListeningCounts(owner.ID, time.Time{})
	if err != nil {
		return err
	}
	s.logger.Info("history sync complete",
		"user", owner.Username, "fetched", len(items), "new", after-before)

	for _, milestone := range playMilestones {
		if before < milestone && after >= milestone {
			s.dispatch(ctx, models.TriggerListeningMilestone,
				rules.MilestoneContext("total_plays", milestone, ""))
		}
	}
	return nil
}

// historyOwner picks the account plays belong to. Server history reflects
// the configured token's owner, which on a personal instance is the admin.
func (s *Syncer) historyOwner() (*models.User, error) {
	users, err := s.db.ListUsers()
	if err != nil {
		return nil, err
	}
	var first *models.User
	for _, u := range users {
		if u.IsAdmin {
			return u, nil
		}
		if first == nil {
			first = u
		}
	}
	return first, nil
}

func (s *Syncer) eventFromHistory(userID int64, it plex.Item) *models.ListeningEvent {
	event := &models.ListeningEvent{
		UserID:          userID,
		PlayedAt:        time.Unix(it.ViewedAt, 0).UTC(),
		TrackDurationMs: it.Duration,
		// History rows only exist for plays Plex counted as complete.
		Completion: 100,
		Source:     "plex",
	}
	trackKey := it.RatingKey
	event.TrackKey = &trackKey
	if track, err := s.db.GetTrackByMediaKey(trackKey); err == nil && track != nil {
		event.TrackID = &track.ID
	}
	if it.ParentRatingKey != "" {
		albumKey := it.ParentRatingKey
		event.AlbumKey = &albumKey
		if album, err := s.db.GetAlbumByMediaKey(albumKey); err == nil && album != nil {
			event.AlbumID = &album.ID
		}
	}
	if it.GrandparentRatingKey != "" {
		artistKey := it.GrandparentRatingKey
		event.ArtistKey = &artistKey
		if artist, err := s.db.GetArtistByMediaKey(artistKey); err == nil && artist != nil {
			event.ArtistID = &artist.ID
		}
	}
	return event
}

// CheckNewReleases walks the library artists and records catalog releases
// from the last thirty days that the database has not seen. Each new album
// row fires a new_release trigger.
func (s *Syncer) CheckNewReleases(ctx context.Context) error {
	cutoff := time.Now().Add(-releaseWindow)
	found := 0
	for offset := 0; ; offset += sweepPage {
		artists, err := s.db.ListArtists(true, sweepPage, offset)
		if err != nil {
			return err
		}
		for _, artist := range artists {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := s.checkArtistReleases(ctx, artist, cutoff)
			if err != nil {
				return err
			}
			found += n
		}
		if len(artists) < sweepPage {
			break
		}
	}
	s.logger.Info("release check complete", "found", found)
	return nil
}

func (s *Syncer) checkArtistReleases(ctx context.Context, artist *models.Artist, cutoff time.Time) (int, error) {
	found := 0
	for _, cand := range s.releases(ctx, artist) {
		if cand.Title == "" {
			continue
		}
		released, ok := parseReleaseDate(cand.ReleaseDate)
		if !ok || released.Before(cutoff) {
			continue
		}
		existing, err := s.db.GetAlbumByTitle(artist.ID, cand.Title)
		if err != nil {
			return found, err
		}
		if existing != nil {
			continue
		}

		album := albumFromCatalog(artist.ID, cand, released)
		id, err := s.db.CreateAlbum(album)
		if err != nil {
			return found, err
		}
		album.ID = id
		found++
		s.logger.Info("new release",
			"artist", artist.Name, "album", cand.Title,
			"released", released.Format("2006-01-02"), "source", cand.Source)
		s.dispatch(ctx, models.TriggerNewRelease, rules.AlbumContext(artist, album))
	}
	return found, nil
}

// catalogReleases asks MusicBrainz first and falls back to Spotify. Both
// clients return empty lists on error, so a flaky upstream only means a
// quiet round.
func (s *Syncer) catalogReleases(ctx context.Context, artist *models.Artist) []models.CatalogAlbum {
	if artist.MusicBrainzID != nil && *artist.MusicBrainzID != "" {
		groups := s.clients.MusicBrainz().ArtistReleaseGroups(ctx, *artist.MusicBrainzID, releaseFetchLimit)
		if len(groups) > 0 {
			return groups
		}
	}
	if artist.SpotifyID != nil && *artist.SpotifyID != "" {
		return s.clients.Spotify().ArtistAlbums(ctx, *artist.SpotifyID, releaseFetchLimit)
	}
	return nil
}

// parseReleaseDate accepts full and year-month catalog dates. Bare years
// cannot place a release inside the thirty-day window, so they are
// rejected.
func parseReleaseDate(raw string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func albumFromCatalog(artistID int64, cand models.CatalogAlbum, released time.Time) *models.Album {
	album := &models.Album{
		Title:       cand.Title,
		ArtistID:    artistID,
		ReleaseDate: &released,
		TotalTracks: cand.TotalTracks,
		CoverURL:    cand.CoverURL,
	}
	year := released.Year()
	album.ReleaseYear = &year
	if t := models.AlbumType(strings.ToLower(cand.AlbumType)); t.Valid() {
		album.AlbumType = t
	}
	if cand.MusicBrainzID != "" {
		id := cand.MusicBrainzID
		album.MusicBrainzReleaseGroupID = &id
	}
	if cand.SpotifyID != "" {
		id := cand.SpotifyID
		album.SpotifyID = &id
	}
	if cand.Popularity > 0 {
		pop := cand.Popularity
		album.SpotifyPopularity = &pop
	}
	return album
}

// dispatch hands a trigger to the rules engine when one is wired. Rule
// failures never fail a sync job.
func (s *Syncer) dispatch(ctx context.Context, trigger models.RuleTrigger, rctx rules.Context) {
	if s.rules == nil {
		return
	}
	if err := s.rules.Dispatch(ctx, trigger, rctx); err != nil {
		s.logger.Error("dispatch trigger", "trigger", trigger, "error", err)
	}
}
