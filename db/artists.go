package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const artistColumns = `id, name, sort_name, disambiguation, musicbrainz_id, spotify_id,
	discogs_id, lastfm_url, biography, country, formed_year, disbanded_year, genres, tags,
	mean_danceability, mean_energy, mean_valence, mean_tempo,
	spotify_popularity, lastfm_listeners, lastfm_plays,
	in_library, media_server_key, image_url, thumb_url, created_at, updated_at`

func scanArtist(row interface{ Scan(...any) error }) (*models.Artist, error) {
	a := &models.Artist{}
	var (
		sortName, disambiguation, mbid, spotifyID, discogsID, lastfmURL sql.NullString
		biography, country, mediaKey, imageURL, thumbURL                sql.NullString
		formedYear, disbandedYear, spotifyPop                           sql.NullInt64
		lastfmListeners, lastfmPlays                                    sql.NullInt64
		genres, tags                                                    sql.NullString
		danceability, energy, valence, tempo                            sql.NullFloat64
	)
	err := row.Scan(
		&a.ID, &a.Name, &sortName, &disambiguation, &mbid, &spotifyID,
		&discogsID, &lastfmURL, &biography, &country, &formedYear, &disbandedYear, &genres, &tags,
		&danceability, &energy, &valence, &tempo,
		&spotifyPop, &lastfmListeners, &lastfmPlays,
		&a.InLibrary, &mediaKey, &imageURL, &thumbURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.SortName = nullStringValue(sortName)
	a.Disambiguation = nullStringValue(disambiguation)
	a.MusicBrainzID = nullStringPtr(mbid)
	a.SpotifyID = nullStringPtr(spotifyID)
	a.DiscogsID = nullStringPtr(discogsID)
	a.LastfmURL = nullStringPtr(lastfmURL)
	a.Biography = nullStringValue(biography)
	a.Country = nullStringValue(country)
	a.FormedYear = nullIntPtr(formedYear)
	a.DisbandedYear = nullIntPtr(disbandedYear)
	jsonScan(genres, &a.Genres)
	jsonScan(tags, &a.Tags)
	a.MeanDanceability = nullFloatPtr(danceability)
	a.MeanEnergy = nullFloatPtr(energy)
	a.MeanValence = nullFloatPtr(valence)
	a.MeanTempo = nullFloatPtr(tempo)
	a.SpotifyPopularity = nullIntPtr(spotifyPop)
	a.LastfmListeners = nullInt64Ptr(lastfmListeners)
	a.LastfmPlays = nullInt64Ptr(lastfmPlays)
	a.MediaServerKey = nullStringPtr(mediaKey)
	a.ImageURL = nullStringValue(imageURL)
	a.ThumbURL = nullStringValue(thumbURL)
	return a, nil
}

// CreateArtist inserts an artist and returns its id.
func (db *DB) CreateArtist(a *models.Artist) (int64, error) {
	now := time.Now().UTC()
	res, err := db.Exec(`
	INSERT INTO artists (name, sort_name, disambiguation, musicbrainz_id, spotify_id,
		discogs_id, lastfm_url, biography, country, formed_year, disbanded_year, genres, tags,
		mean_danceability, mean_energy, mean_valence, mean_tempo,
		spotify_popularity, lastfm_listeners, lastfm_plays,
		in_library, media_server_key, image_url, thumb_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.SortName, a.Disambiguation, a.MusicBrainzID, a.SpotifyID,
		a.DiscogsID, a.LastfmURL, a.Biography, a.Country, a.FormedYear, a.DisbandedYear,
		jsonString(a.Genres), jsonString(a.Tags),
		a.MeanDanceability, a.MeanEnergy, a.MeanValence, a.MeanTempo,
		a.SpotifyPopularity, a.LastfmListeners, a.LastfmPlays,
		a.InLibrary, a.MediaServerKey, a.ImageURL, a.ThumbURL, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert artist: %w", err)
	}
	return res.LastInsertId()
}

// UpdateArtist overwrites the mutable columns of an artist.
func (db *DB) UpdateArtist(a *models.Artist) error {
	_, err := db.Exec(`
	UPDATE artists SET name = ?, sort_name = ?, disambiguation = ?, musicbrainz_id = ?,
		spotify_id = ?, discogs_id = ?, lastfm_url = ?, biography = ?, country = ?,
		formed_year = ?, disbanded_year = ?, genres = ?, tags = ?,
		mean_danceability = ?, mean_energy = ?, mean_valence = ?, mean_tempo = ?,
		spotify_popularity = ?, lastfm_listeners = ?, lastfm_plays = ?,
		in_library = ?, media_server_key = ?, image_url = ?, thumb_url = ?, updated_at = ?
	WHERE id = ?`,
		a.Name, a.SortName, a.Disambiguation, a.MusicBrainzID,
		a.SpotifyID, a.DiscogsID, a.LastfmURL, a.Biography, a.Country,
		a.FormedYear, a.DisbandedYear, jsonString(a.Genres), jsonString(a.Tags),
		a.MeanDanceability, a.MeanEnergy, a.MeanValence, a.MeanTempo,
		a.SpotifyPopularity, a.LastfmListeners, a.LastfmPlays,
		a.InLibrary, a.MediaServerKey, a.ImageURL, a.ThumbURL, time.Now().UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("update artist %d: %w", a.ID, err)
	}
	return nil
}

// GetArtist fetches an artist by id.
func (db *DB) GetArtist(id int64) (*models.Artist, error) {
	a, err := scanArtist(db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artist %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artist %d: %w", id, err)
	}
	return a, nil
}

// GetArtistByMediaKey looks an artist up by its media-server rating key.
// Absence is normal during sync, so it returns nil, nil when not found.
func (db *DB) GetArtistByMediaKey(key string) (*models.Artist, error) {
	a, err := scanArtist(db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE media_server_key = ?`, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artist by media key: %w", err)
	}
	return a, nil
}

// GetArtistByName does a case-insensitive exact-name lookup. nil, nil when
// not found.
func (db *DB) GetArtistByName(name string) (*models.Artist, error) {
	a, err := scanArtist(db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE name = ? COLLATE NOCASE`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artist by name: %w", err)
	}
	return a, nil
}

// ListArtists returns artists, optionally restricted to library members.
func (db *DB) ListArtists(libraryOnly bool, limit, offset int) ([]*models.Artist, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + artistColumns + ` FROM artists`
	if libraryOnly {
		query += ` WHERE in_library = 1`
	}
	query += ` ORDER BY name LIMIT ? OFFSET ?`

	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}

// LibraryArtistCount counts artists flagged as in the library.
func (db *DB) LibraryArtistCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM artists WHERE in_library = 1`).Scan(&n)
	return n, err
}

// ArtistNameIndex returns a lowercased name to id index, optionally limited
// to library members. Membership checks during recommendation runs go
// through this instead of per-name queries.
func (db *DB) ArtistNameIndex(libraryOnly bool) (map[string]int64, error) {
	query := `SELECT id, name FROM artists`
	if libraryOnly {
		query += ` WHERE in_library = 1`
	}
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("artist name index: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		index[strings.ToLower(name)] = id
	}
	return index, rows.Err()
}
