package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/models"
)

const tasteColumns = `id, user_id, version, top_genres, preferred_decades, mean_features,
	total_plays, total_artists, total_albums, total_tracks, peak_hours, peak_days,
	novelty_preference, profile_data, created_at`

func scanTasteProfile(row interface{ Scan(...any) error }) (*models.TasteProfile, error) {
	t := &models.TasteProfile{}
	var genres, decades, features, hours, days, profileData sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &t.Version, &genres, &decades, &features,
		&t.TotalPlays, &t.TotalArtists, &t.TotalAlbums, &t.TotalTracks, &hours, &days,
		&t.NoveltyPreference, &profileData, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	jsonScan(genres, &t.TopGenres)
	jsonScan(decades, &t.PreferredDecades)
	jsonScan(features, &t.MeanFeatures)
	jsonScan(hours, &t.PeakHours)
	jsonScan(days, &t.PeakDays)
	jsonScan(profileData, &t.ProfileData)
	return t, nil
}

// SaveTasteProfile stores a new profile version for the user. Versions are
// monotonic per user; the latest one is the live profile.
func (db *DB) SaveTasteProfile(t *models.TasteProfile) (int64, error) {
	var id int64
	err := db.WithTx(func(tx *sql.Tx) error {
		var latest sql.NullInt64
		if err := tx.QueryRow(`SELECT MAX(version) FROM taste_profiles WHERE user_id = ?`, t.UserID).Scan(&latest); err != nil {
			return fmt.Errorf("latest taste version: %w", err)
		}
		t.Version = int(latest.Int64) + 1
		res, err := tx.Exec(`
		INSERT INTO taste_profiles (user_id, version, top_genres, preferred_decades, mean_features,
			total_plays, total_artists, total_albums, total_tracks, peak_hours, peak_days,
			novelty_preference, profile_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.UserID, t.Version, jsonString(t.TopGenres), jsonString(t.PreferredDecades),
			jsonString(t.MeanFeatures), t.TotalPlays, t.TotalArtists, t.TotalAlbums, t.TotalTracks,
			jsonString(t.PeakHours), jsonString(t.PeakDays), t.NoveltyPreference,
			jsonString(t.ProfileData), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert taste profile: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// LatestTasteProfile returns the newest profile version for the user, or
// nil when the user has never been profiled.
func (db *DB) LatestTasteProfile(userID int64) (*models.TasteProfile, error) {
	t, err := scanTasteProfile(db.QueryRow(`SELECT `+tasteColumns+` FROM taste_profiles
		WHERE user_id = ? ORDER BY version DESC LIMIT 1`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest taste profile: %w", err)
	}
	return t, nil
}

// TasteProfileHistory returns up to limit profile versions, newest first.
func (db *DB) TasteProfileHistory(userID int64, limit int) ([]*models.TasteProfile, error) {
	if limit <= 0 {
		limit = 12
	}
	rows, err := db.Query(`SELECT `+tasteColumns+` FROM taste_profiles
		WHERE user_id = ? ORDER BY version DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("taste profile history: %w", err)
	}
	defer rows.Close()

	var out []*models.TasteProfile
	for rows.Next() {
		t, err := scanTasteProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertPreference records or refreshes a learned preference value, keyed
// by (user, kind, key).
func (db *DB) UpsertPreference(p *models.UserPreference) error {
	now := time.Now().UTC()
	_, err := db.Exec(`
	INSERT INTO user_preferences (user_id, kind, key, weight, confidence, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, kind, key) DO UPDATE SET
		weight = excluded.weight, confidence = excluded.confidence, updated_at = excluded.updated_at`,
		p.UserID, p.Kind, p.Key, p.Weight, p.Confidence, now)
	if err != nil {
		return fmt.Errorf("upsert preference %s/%s: %w", p.Kind, p.Key, err)
	}
	return nil
}

// PreferencesByKind returns the user's preferences of one kind, strongest first.
func (db *DB) PreferencesByKind(userID int64, kind string, limit int) ([]*models.UserPreference, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
	SELECT id, user_id, kind, key, weight, confidence, updated_at FROM user_preferences
	WHERE user_id = ? AND kind = ? ORDER BY weight DESC LIMIT ?`, userID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("preferences by kind: %w", err)
	}
	defer rows.Close()

	var out []*models.UserPreference
	for rows.Next() {
		p := &models.UserPreference{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Kind, &p.Key, &p.Weight, &p.Confidence, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
