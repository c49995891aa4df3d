package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/models"
)

const listeningColumns = `id, user_id, track_id, album_id, artist_id,
	track_key, album_key, artist_key, played_at, play_duration_ms, track_duration_ms,
	completion, skipped, source, device, player, hour_of_day, day_of_week`

func scanListeningEvent(row interface{ Scan(...any) error }) (*models.ListeningEvent, error) {
	e := &models.ListeningEvent{}
	var (
		trackID, albumID, artistID    sql.NullInt64
		trackKey, albumKey, artistKey sql.NullString
		playDur, trackDur             sql.NullInt64
		source, device, player        sql.NullString
		hour, day                     sql.NullInt64
	)
	err := row.Scan(
		&e.ID, &e.UserID, &trackID, &albumID, &artistID,
		&trackKey, &albumKey, &artistKey, &e.PlayedAt, &playDur, &trackDur,
		&e.Completion, &e.Skipped, &source, &device, &player, &hour, &day,
	)
	if err != nil {
		return nil, err
	}
	e.TrackID = nullInt64Ptr(trackID)
	e.AlbumID = nullInt64Ptr(albumID)
	e.ArtistID = nullInt64Ptr(artistID)
	e.TrackKey = nullStringPtr(trackKey)
	e.AlbumKey = nullStringPtr(albumKey)
	e.ArtistKey = nullStringPtr(artistKey)
	e.PlayDurationMs = nullInt64Value(playDur)
	e.TrackDurationMs = nullInt64Value(trackDur)
	e.Source = nullStringValue(source)
	e.Device = nullStringValue(device)
	e.Player = nullStringValue(player)
	e.HourOfDay = nullIntValue(hour)
	e.DayOfWeek = nullIntValue(day)
	return e, nil
}

// InsertListeningEvent stores one play. Duplicate (user, track key, time)
// rows are ignored so history ingestion can overlap safely.
func (db *DB) InsertListeningEvent(e *models.ListeningEvent) (int64, error) {
	e.StampTimeBuckets()
	res, err := db.Exec(`
	INSERT OR IGNORE INTO listening_events (user_id, track_id, album_id, artist_id,
		track_key, album_key, artist_key, played_at, play_duration_ms, track_duration_ms,
		completion, skipped, source, device, player, hour_of_day, day_of_week)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.TrackID, e.AlbumID, e.ArtistID,
		e.TrackKey, e.AlbumKey, e.ArtistKey, e.PlayedAt.UTC(), e.PlayDurationMs, e.TrackDurationMs,
		e.Completion, e.Skipped, e.Source, e.Device, e.Player, e.HourOfDay, e.DayOfWeek)
	if err != nil {
		return 0, fmt.Errorf("insert listening event: %w", err)
	}
	return res.LastInsertId()
}

// ListeningEventsSince returns a user's plays newer than the cutoff, most
// recent first.
func (db *DB) ListeningEventsSince(userID int64, since time.Time) ([]*models.ListeningEvent, error) {
	rows, err := db.Query(`SELECT `+listeningColumns+` FROM listening_events
		WHERE user_id = ? AND played_at >= ? ORDER BY played_at DESC`, userID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("listening events since: %w", err)
	}
	defer rows.Close()

	var events []*models.ListeningEvent
	for rows.Next() {
		e, err := scanListeningEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LatestListeningEvent returns the most recent play timestamp for a user, or
// the zero time when there is no history.
func (db *DB) LatestListeningEvent(userID int64) (time.Time, error) {
	var latest sql.NullTime
	err := db.QueryRow(`SELECT MAX(played_at) FROM listening_events WHERE user_id = ?`, userID).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest listening event: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

// ListeningCounts aggregates total plays and distinct entity counts for a
// user since the cutoff.
func (db *DB) ListeningCounts(userID int64, since time.Time) (plays, artists, albums, tracks int, err error) {
	err = db.QueryRow(`
	SELECT COUNT(*),
		COUNT(DISTINCT artist_id),
		COUNT(DISTINCT album_id),
		COUNT(DISTINCT track_id)
	FROM listening_events
	WHERE user_id = ? AND played_at >= ?`, userID, since.UTC()).Scan(&plays, &artists, &albums, &tracks)
	if err != nil {
		err = fmt.Errorf("listening counts: %w", err)
	}
	return
}

// TopPlayedArtists returns artist ids by play count within the window.
func (db *DB) TopPlayedArtists(userID int64, since time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
	SELECT artist_id, COUNT(*) AS plays FROM listening_events
	WHERE user_id = ? AND played_at >= ? AND artist_id IS NOT NULL
	GROUP BY artist_id ORDER BY plays DESC LIMIT ?`, userID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("top played artists: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var plays int
		if err := rows.Scan(&id, &plays); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HourHistogram counts plays per hour of day for a user.
func (db *DB) HourHistogram(userID int64) (map[int]int, error) {
	rows, err := db.Query(`SELECT hour_of_day, COUNT(*) FROM listening_events
		WHERE user_id = ? GROUP BY hour_of_day`, userID)
	if err != nil {
		return nil, fmt.Errorf("hour histogram: %w", err)
	}
	defer rows.Close()

	hist := make(map[int]int)
	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, err
		}
		hist[hour] = count
	}
	return hist, rows.Err()
}

// DayHistogram counts plays per day of week for a user.
func (db *DB) DayHistogram(userID int64) (map[int]int, error) {
	rows, err := db.Query(`SELECT day_of_week, COUNT(*) FROM listening_events
		WHERE user_id = ? GROUP BY day_of_week`, userID)
	if err != nil {
		return nil, fmt.Errorf("day histogram: %w", err)
	}
	defer rows.Close()

	hist := make(map[int]int)
	for rows.Next() {
		var day, count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		hist[day] = count
	}
	return hist, rows.Err()
}
