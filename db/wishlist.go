package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const wishlistColumns = `id, type, artist_id, album_id, artist_name, album_title, track_title,
	musicbrainz_id, spotify_id, status, priority, source, confidence, preferred_format,
	auto_download, playlist_group, notes, last_searched_at, search_count, created_at, updated_at`

func scanWishlistItem(row interface{ Scan(...any) error }) (*models.WishlistItem, error) {
	w := &models.WishlistItem{}
	var (
		artistID, albumID                  sql.NullInt64
		artistName, albumTitle, trackTitle sql.NullString
		mbid, spotifyID                    sql.NullString
		source, preferredFormat            sql.NullString
		playlistGroup, notes               sql.NullString
		confidence                         sql.NullFloat64
		lastSearched                       sql.NullTime
	)
	err := row.Scan(
		&w.ID, &w.Type, &artistID, &albumID, &artistName, &albumTitle, &trackTitle,
		&mbid, &spotifyID, &w.Status, &w.Priority, &source, &confidence, &preferredFormat,
		&w.AutoDownload, &playlistGroup, &notes, &lastSearched, &w.SearchCount, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.ArtistID = nullInt64Ptr(artistID)
	w.AlbumID = nullInt64Ptr(albumID)
	w.ArtistName = nullStringValue(artistName)
	w.AlbumTitle = nullStringValue(albumTitle)
	w.TrackTitle = nullStringValue(trackTitle)
	w.MusicBrainzID = nullStringPtr(mbid)
	w.SpotifyID = nullStringPtr(spotifyID)
	w.Source = nullStringValue(source)
	w.Confidence = nullFloatPtr(confidence)
	w.PreferredFormat = nullStringValue(preferredFormat)
	w.PlaylistGroup = nullStringPtr(playlistGroup)
	w.Notes = nullStringValue(notes)
	w.LastSearchedAt = nullTimePtr(lastSearched)
	return w, nil
}

// CreateWishlistItem inserts a new wish and returns its id.
func (db *DB) CreateWishlistItem(w *models.WishlistItem) (int64, error) {
	if w.Status == "" {
		w.Status = models.WishlistWanted
	}
	if w.Priority == "" {
		w.Priority = models.PriorityNormal
	}
	now := time.Now().UTC()
	res, err := db.Exec(`
	INSERT INTO wishlist_items (type, artist_id, album_id, artist_name, album_title, track_title,
		musicbrainz_id, spotify_id, status, priority, source, confidence, preferred_format,
		auto_download, playlist_group, notes, last_searched_at, search_count, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(w.Type), w.ArtistID, w.AlbumID, w.ArtistName, w.AlbumTitle, w.TrackTitle,
		w.MusicBrainzID, w.SpotifyID, string(w.Status), string(w.Priority), w.Source, w.Confidence, w.PreferredFormat,
		w.AutoDownload, w.PlaylistGroup, w.Notes, w.LastSearchedAt, w.SearchCount, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert wishlist item: %w", err)
	}
	return res.LastInsertId()
}

// GetWishlistItem fetches one wish by id.
func (db *DB) GetWishlistItem(id int64) (*models.WishlistItem, error) {
	w, err := scanWishlistItem(db.QueryRow(`SELECT `+wishlistColumns+` FROM wishlist_items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("wishlist item %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get wishlist item %d: %w", id, err)
	}
	return w, nil
}

// FindWishlistTrack checks for an existing per-track wish by artist and
// title; used by playlist imports to deduplicate.
func (db *DB) FindWishlistTrack(artistName, trackTitle string) (*models.WishlistItem, error) {
	w, err := scanWishlistItem(db.QueryRow(`SELECT `+wishlistColumns+` FROM wishlist_items
		WHERE type = ? AND artist_name = ? COLLATE NOCASE AND track_title = ? COLLATE NOCASE`,
		string(models.WishlistTypeTrack), artistName, trackTitle))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find wishlist track: %w", err)
	}
	return w, nil
}

// FindWishlistPlaylist checks for an existing playlist-level wish by
// title so repeated imports of the same playlist reuse its group.
func (db *DB) FindWishlistPlaylist(title string) (*models.WishlistItem, error) {
	w, err := scanWishlistItem(db.QueryRow(`SELECT `+wishlistColumns+` FROM wishlist_items
		WHERE type = ? AND album_title = ? COLLATE NOCASE`,
		string(models.WishlistTypePlaylist), title))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find wishlist playlist: %w", err)
	}
	return w, nil
}

// ListWishlist returns wishes filtered by status ("" for all), newest first.
func (db *DB) ListWishlist(status models.WishlistStatus, limit, offset int) ([]*models.WishlistItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = db.Query(`SELECT `+wishlistColumns+` FROM wishlist_items
			ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	} else {
		rows, err = db.Query(`SELECT `+wishlistColumns+` FROM wishlist_items
			WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, string(status), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var items []*models.WishlistItem
	for rows.Next() {
		w, err := scanWishlistItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

// AutoDownloadCandidates returns wanted items flagged for auto-download,
// high priority first, least-recently-searched first within a priority.
func (db *DB) AutoDownloadCandidates(limit int) ([]*models.WishlistItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT `+wishlistColumns+` FROM wishlist_items
		WHERE status = ? AND auto_download = 1
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
			last_searched_at IS NOT NULL, last_searched_at
		LIMIT ?`, string(models.WishlistWanted), limit)
	if err != nil {
		return nil, fmt.Errorf("auto-download candidates: %w", err)
	}
	defer rows.Close()

	var items []*models.WishlistItem
	for rows.Next() {
		w, err := scanWishlistItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

// UpdateWishlistItem overwrites the user-editable columns.
func (db *DB) UpdateWishlistItem(w *models.WishlistItem) error {
	_, err := db.Exec(`
	UPDATE wishlist_items SET priority = ?, preferred_format = ?, auto_download = ?, notes = ?, updated_at = ?
	WHERE id = ?`,
		string(w.Priority), w.PreferredFormat, w.AutoDownload, w.Notes, time.Now().UTC(), w.ID)
	if err != nil {
		return fmt.Errorf("update wishlist item %d: %w", w.ID, err)
	}
	return nil
}

// SetWishlistStatus moves a wish to a status, optionally recording notes.
func (db *DB) SetWishlistStatus(id int64, status models.WishlistStatus, notes string) error {
	var err error
	if notes != "" {
		_, err = db.Exec(`UPDATE wishlist_items SET status = ?, notes = ?, updated_at = ? WHERE id = ?`,
			string(status), notes, time.Now().UTC(), id)
	} else {
		_, err = db.Exec(`UPDATE wishlist_items SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), time.Now().UTC(), id)
	}
	if err != nil {
		return fmt.Errorf("set wishlist %d status %s: %w", id, status, err)
	}
	return nil
}

// BeginWishlistSearch atomically marks a wish searching, stamps
// last_searched_at and bumps search_count. Returns false if the item was not
// in the expected status (another worker got there first).
func (db *DB) BeginWishlistSearch(id int64, from models.WishlistStatus) (bool, error) {
	res, err := db.Exec(`
	UPDATE wishlist_items SET status = ?, last_searched_at = ?, search_count = search_count + 1, updated_at = ?
	WHERE id = ? AND status = ?`,
		string(models.WishlistSearching), time.Now().UTC(), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("begin wishlist search %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteWishlistItem removes a wish. Downloads keep running: the weak
// reference is detached, not cascaded.
func (db *DB) DeleteWishlistItem(id int64) error {
	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE downloads SET wishlist_id = NULL WHERE wishlist_id = ?`, id); err != nil {
			return fmt.Errorf("detach downloads: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM wishlist_items WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete wishlist item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("wishlist item %d: %w", id, errs.ErrNotFound)
		}
		return nil
	})
}

// WishlistStatusCounts aggregates wishes per status for the stats page.
func (db *DB) WishlistStatusCounts() (map[string]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM wishlist_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("wishlist status counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
