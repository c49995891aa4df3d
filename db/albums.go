package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const albumColumns = `id, title, artist_id, album_type, release_type,
	musicbrainz_release_group_id, musicbrainz_release_id, spotify_id, discogs_id,
	release_date, release_year, label, catalog_number, country,
	total_tracks, total_discs, duration_seconds,
	mean_danceability, mean_energy, mean_valence, mean_tempo, spotify_popularity,
	in_library, media_server_key, format, bitrate, sample_rate, bit_depth,
	cover_url, thumb_url, created_at, updated_at`

// prefixedAlbumColumns qualifies every album column with the al alias, for
// queries that join against artists.
var prefixedAlbumColumns = func() string {
	cols := strings.Split(albumColumns, ",")
	for i, c := range cols {
		cols[i] = "al." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}()

func scanAlbum(row interface{ Scan(...any) error }) (*models.Album, error) {
	a := &models.Album{}
	var (
		albumType, releaseType, rgID, relID, spotifyID, discogsID sql.NullString
		label, catalogNumber, country, mediaKey, format           sql.NullString
		coverURL, thumbURL                                        sql.NullString
		releaseDate                                               sql.NullTime
		releaseYear, totalTracks, totalDiscs, duration            sql.NullInt64
		bitrate, sampleRate, bitDepth, spotifyPop                 sql.NullInt64
		danceability, energy, valence, tempo                      sql.NullFloat64
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.ArtistID, &albumType, &releaseType,
		&rgID, &relID, &spotifyID, &discogsID,
		&releaseDate, &releaseYear, &label, &catalogNumber, &country,
		&totalTracks, &totalDiscs, &duration,
		&danceability, &energy, &valence, &tempo, &spotifyPop,
		&a.InLibrary, &mediaKey, &format, &bitrate, &sampleRate, &bitDepth,
		&coverURL, &thumbURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.AlbumType = models.AlbumType(nullStringValue(albumType))
	a.ReleaseType = models.ReleaseType(nullStringValue(releaseType))
	a.MusicBrainzReleaseGroupID = nullStringPtr(rgID)
	a.MusicBrainzReleaseID = nullStringPtr(relID)
	a.SpotifyID = nullStringPtr(spotifyID)
	a.DiscogsID = nullStringPtr(discogsID)
	a.ReleaseDate = nullTimePtr(releaseDate)
	a.ReleaseYear = nullIntPtr(releaseYear)
	a.Label = nullStringValue(label)
	a.CatalogNumber = nullStringValue(catalogNumber)
	a.Country = nullStringValue(country)
	a.TotalTracks = nullIntValue(totalTracks)
	a.TotalDiscs = nullIntValue(totalDiscs)
	a.DurationSeconds = nullIntValue(duration)
	a.MeanDanceability = nullFloatPtr(danceability)
	a.MeanEnergy = nullFloatPtr(energy)
	a.MeanValence = nullFloatPtr(valence)
	a.MeanTempo = nullFloatPtr(tempo)
	a.SpotifyPopularity = nullIntPtr(spotifyPop)
	a.MediaServerKey = nullStringPtr(mediaKey)
	a.Format = nullStringValue(format)
	a.Bitrate = nullIntPtr(bitrate)
	a.SampleRate = nullIntPtr(sampleRate)
	a.BitDepth = nullIntPtr(bitDepth)
	a.CoverURL = nullStringValue(coverURL)
	a.ThumbURL = nullStringValue(thumbURL)
	return a, nil
}

// CreateAlbum inserts an album and returns its id.
func (db *DB) CreateAlbum(a *models.Album) (int64, error) {
	now := time.Now().UTC()
	res, err := db.Exec(`
	INSERT INTO albums (title, artist_id, album_type, release_type,
		musicbrainz_release_group_id, musicbrainz_release_id, spotify_id, discogs_id,
		release_date, release_year, label, catalog_number, country,
		total_tracks, total_discs, duration_seconds,
		mean_danceability, mean_energy, mean_valence, mean_tempo, spotify_popularity,
		in_library, media_server_key, format, bitrate, sample_rate, bit_depth,
		cover_url, thumb_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.ArtistID, string(a.AlbumType), string(a.ReleaseType),
		a.MusicBrainzReleaseGroupID, a.MusicBrainzReleaseID, a.SpotifyID, a.DiscogsID,
		a.ReleaseDate, a.ReleaseYear, a.Label, a.CatalogNumber, a.Country,
		a.TotalTracks, a.TotalDiscs, a.DurationSeconds,
		a.MeanDanceability, a.MeanEnergy, a.MeanValence, a.MeanTempo, a.SpotifyPopularity,
		a.InLibrary, a.MediaServerKey, a.Format, a.Bitrate, a.SampleRate, a.BitDepth,
		a.CoverURL, a.ThumbURL, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert album: %w", err)
	}
	return res.LastInsertId()
}

// UpdateAlbum overwrites the mutable columns of an album.
func (db *DB) UpdateAlbum(a *models.Album) error {
	_, err := db.Exec(`
	UPDATE albums SET title = ?, artist_id = ?, album_type = ?, release_type = ?,
		musicbrainz_release_group_id = ?, musicbrainz_release_id = ?, spotify_id = ?, discogs_id = ?,
		release_date = ?, release_year = ?, label = ?, catalog_number = ?, country = ?,
		total_tracks = ?, total_discs = ?, duration_seconds = ?,
		mean_danceability = ?, mean_energy = ?, mean_valence = ?, mean_tempo = ?, spotify_popularity = ?,
		in_library = ?, media_server_key = ?, format = ?, bitrate = ?, sample_rate = ?, bit_depth = ?,
		cover_url = ?, thumb_url = ?, updated_at = ?
	WHERE id = ?`,
		a.Title, a.ArtistID, string(a.AlbumType), string(a.ReleaseType),
		a.MusicBrainzReleaseGroupID, a.MusicBrainzReleaseID, a.SpotifyID, a.DiscogsID,
		a.ReleaseDate, a.ReleaseYear, a.Label, a.CatalogNumber, a.Country,
		a.TotalTracks, a.TotalDiscs, a.DurationSeconds,
		a.MeanDanceability, a.MeanEnergy, a.MeanValence, a.MeanTempo, a.SpotifyPopularity,
		a.InLibrary, a.MediaServerKey, a.Format, a.Bitrate, a.SampleRate, a.BitDepth,
		a.CoverURL, a.ThumbURL, time.Now().UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("update album %d: %w", a.ID, err)
	}
	return nil
}

// GetAlbum fetches an album by id.
func (db *DB) GetAlbum(id int64) (*models.Album, error) {
	a, err := scanAlbum(db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("album %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get album %d: %w", id, err)
	}
	return a, nil
}

// GetAlbumByMediaKey looks an album up by rating key; nil, nil when absent.
func (db *DB) GetAlbumByMediaKey(key string) (*models.Album, error) {
	a, err := scanAlbum(db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE media_server_key = ?`, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get album by media key: %w", err)
	}
	return a, nil
}

// GetAlbumByTitle finds an album of an artist by title, case-insensitively.
func (db *DB) GetAlbumByTitle(artistID int64, title string) (*models.Album, error) {
	a, err := scanAlbum(db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE artist_id = ? AND title = ? COLLATE NOCASE`, artistID, title))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get album by title: %w", err)
	}
	return a, nil
}

// ListAlbums returns albums, optionally restricted to the library.
func (db *DB) ListAlbums(libraryOnly bool, limit, offset int) ([]*models.Album, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + albumColumns + ` FROM albums`
	if libraryOnly {
		query += ` WHERE in_library = 1`
	}
	query += ` ORDER BY title LIMIT ? OFFSET ?`

	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// ListAlbumsByArtist returns all albums for one artist.
func (db *DB) ListAlbumsByArtist(artistID int64) ([]*models.Album, error) {
	rows, err := db.Query(`SELECT `+albumColumns+` FROM albums WHERE artist_id = ? ORDER BY release_year, title`, artistID)
	if err != nil {
		return nil, fmt.Errorf("list albums by artist: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// LibraryAlbumCount counts albums flagged as in the library.
func (db *DB) LibraryAlbumCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM albums WHERE in_library = 1`).Scan(&n)
	return n, err
}

// AlbumsReleasedSince returns catalog albums of library artists released on
// or after the cutoff, newest first. Albums already in the library are
// excluded; the release radar only suggests what the user does not have.
func (db *DB) AlbumsReleasedSince(cutoff time.Time, limit int) ([]*models.Album, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
	SELECT `+prefixedAlbumColumns+` FROM albums al
	JOIN artists ar ON ar.id = al.artist_id
	WHERE ar.in_library = 1 AND al.in_library = 0 AND al.release_date >= ?
	ORDER BY al.release_date DESC LIMIT ?`, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("albums released since: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// RecentLibraryAlbums returns the newest library albums by creation time.
func (db *DB) RecentLibraryAlbums(limit int) ([]*models.Album, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT `+albumColumns+` FROM albums WHERE in_library = 1 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}
