package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const trackColumns = `id, title, album_id, disc_number, track_number,
	musicbrainz_id, spotify_id, isrc, duration_ms, features, spotify_popularity,
	in_library, media_server_key, created_at, updated_at`

func scanTrack(row interface{ Scan(...any) error }) (*models.Track, error) {
	t := &models.Track{}
	var (
		disc, number, durationMs, spotifyPop sql.NullInt64
		mbid, spotifyID, isrc, mediaKey      sql.NullString
		features                             sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.AlbumID, &disc, &number,
		&mbid, &spotifyID, &isrc, &durationMs, &features, &spotifyPop,
		&t.InLibrary, &mediaKey, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.DiscNumber = nullIntValue(disc)
	t.TrackNumber = nullIntValue(number)
	t.MusicBrainzID = nullStringPtr(mbid)
	t.SpotifyID = nullStringPtr(spotifyID)
	t.ISRC = nullStringPtr(isrc)
	t.DurationMs = nullInt64Value(durationMs)
	if features.Valid && features.String != "" {
		t.Features = &models.AudioFeatures{}
		jsonScan(features, t.Features)
	}
	t.SpotifyPopularity = nullIntPtr(spotifyPop)
	t.MediaServerKey = nullStringPtr(mediaKey)
	return t, nil
}

// CreateTrack inserts a track and returns its id.
func (db *DB) CreateTrack(t *models.Track) (int64, error) {
	now := time.Now().UTC()
	res, err := db.Exec(`
	INSERT INTO tracks (title, album_id, disc_number, track_number,
		musicbrainz_id, spotify_id, isrc, duration_ms, features, spotify_popularity,
		in_library, media_server_key, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.AlbumID, t.DiscNumber, t.TrackNumber,
		t.MusicBrainzID, t.SpotifyID, t.ISRC, t.DurationMs, jsonString(t.Features), t.SpotifyPopularity,
		t.InLibrary, t.MediaServerKey, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert track: %w", err)
	}
	return res.LastInsertId()
}

// UpdateTrack overwrites the mutable columns of a track.
func (db *DB) UpdateTrack(t *models.Track) error {
	_, err := db.Exec(`
	UPDATE tracks SET title = ?, album_id = ?, disc_number = ?, track_number = ?,
		musicbrainz_id = ?, spotify_id = ?, isrc = ?, duration_ms = ?, features = ?,
		spotify_popularity = ?, in_library = ?, media_server_key = ?, updated_at = ?
	WHERE id = ?`,
		t.Title, t.AlbumID, t.DiscNumber, t.TrackNumber,
		t.MusicBrainzID, t.SpotifyID, t.ISRC, t.DurationMs, jsonString(t.Features),
		t.SpotifyPopularity, t.InLibrary, t.MediaServerKey, time.Now().UTC(), t.ID)
	if err != nil {
		return fmt.Errorf("update track %d: %w", t.ID, err)
	}
	return nil
}

// GetTrack fetches a track by id.
func (db *DB) GetTrack(id int64) (*models.Track, error) {
	t, err := scanTrack(db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get track %d: %w", id, err)
	}
	return t, nil
}

// GetTrackByMediaKey looks up a track by rating key; nil, nil when absent.
func (db *DB) GetTrackByMediaKey(key string) (*models.Track, error) {
	t, err := scanTrack(db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE media_server_key = ?`, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track by media key: %w", err)
	}
	return t, nil
}

// ListTracksByAlbum returns all tracks of an album in disc/track order.
func (db *DB) ListTracksByAlbum(albumID int64) ([]*models.Track, error) {
	rows, err := db.Query(`SELECT `+trackColumns+` FROM tracks WHERE album_id = ? ORDER BY disc_number, track_number`, albumID)
	if err != nil {
		return nil, fmt.Errorf("list tracks by album: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// LibraryTrackCount counts tracks flagged as in the library.
func (db *DB) LibraryTrackCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM tracks WHERE in_library = 1`).Scan(&n)
	return n, err
}

// TracksWithFeatures returns library tracks that carry an audio-feature
// vector, for embedding computation.
func (db *DB) TracksWithFeatures(limit int) ([]*models.Track, error) {
	if limit <= 0 {
		limit = 5000
	}
	rows, err := db.Query(`SELECT `+trackColumns+` FROM tracks WHERE features IS NOT NULL AND features != '' LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("tracks with features: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
