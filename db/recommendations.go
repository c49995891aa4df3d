package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const recommendationColumns = `id, user_id, type, artist_id, album_id, track_id,
	artist_name, album_title, track_title, image_url, category, reason, reason_details,
	based_on_artist_id, based_on_album_id, confidence, relevance, novelty, score_factors,
	shown, clicked, dismissed, added_to_wishlist, shown_at, clicked_at, dismissed_at,
	playlist_group, expires_at, created_at`

func scanRecommendation(row interface{ Scan(...any) error }) (*models.Recommendation, error) {
	r := &models.Recommendation{}
	var (
		artistID, albumID, trackID      sql.NullInt64
		artistName, albumTitle          sql.NullString
		trackTitle, imageURL            sql.NullString
		reason, reasonDetails           sql.NullString
		basedOnArtist, basedOnAlbum     sql.NullInt64
		factors, playlistGroup          sql.NullString
		shownAt, clickedAt, dismissedAt sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.UserID, &r.Type, &artistID, &albumID, &trackID,
		&artistName, &albumTitle, &trackTitle, &imageURL, &r.Category, &reason, &reasonDetails,
		&basedOnArtist, &basedOnAlbum, &r.Confidence, &r.Relevance, &r.Novelty, &factors,
		&r.Shown, &r.Clicked, &r.Dismissed, &r.AddedToWishlist, &shownAt, &clickedAt, &dismissedAt,
		&playlistGroup, &r.ExpiresAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ArtistID = nullInt64Ptr(artistID)
	r.AlbumID = nullInt64Ptr(albumID)
	r.TrackID = nullInt64Ptr(trackID)
	r.ArtistName = nullStringValue(artistName)
	r.AlbumTitle = nullStringValue(albumTitle)
	r.TrackTitle = nullStringValue(trackTitle)
	r.ImageURL = nullStringValue(imageURL)
	r.Reason = nullStringValue(reason)
	jsonScan(reasonDetails, &r.ReasonDetails)
	r.BasedOnArtistID = nullInt64Ptr(basedOnArtist)
	r.BasedOnAlbumID = nullInt64Ptr(basedOnAlbum)
	jsonScan(factors, &r.ScoreFactors)
	r.ShownAt = nullTimePtr(shownAt)
	r.ClickedAt = nullTimePtr(clickedAt)
	r.DismissedAt = nullTimePtr(dismissedAt)
	r.PlaylistGroup = nullStringPtr(playlistGroup)
	return r, nil
}

func insertRecommendation(tx *sql.Tx, r *models.Recommendation, now time.Time) (int64, error) {
	res, err := tx.Exec(`
	INSERT INTO recommendations (user_id, type, artist_id, album_id, track_id,
		artist_name, album_title, track_title, image_url, category, reason, reason_details,
		based_on_artist_id, based_on_album_id, confidence, relevance, novelty, score_factors,
		shown, clicked, dismissed, added_to_wishlist, playlist_group, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, ?, ?, ?)`,
		r.UserID, string(r.Type), r.ArtistID, r.AlbumID, r.TrackID,
		r.ArtistName, r.AlbumTitle, r.TrackTitle, r.ImageURL, string(r.Category), r.Reason,
		jsonString(r.ReasonDetails), r.BasedOnArtistID, r.BasedOnAlbumID,
		r.Confidence, r.Relevance, r.Novelty, jsonString(r.ScoreFactors),
		r.PlaylistGroup, r.ExpiresAt, now)
	if err != nil {
		return 0, fmt.Errorf("insert recommendation: %w", err)
	}
	return res.LastInsertId()
}

// CreateRecommendation inserts one recommendation and returns its id.
func (db *DB) CreateRecommendation(r *models.Recommendation) (int64, error) {
	var id int64
	err := db.WithTx(func(tx *sql.Tx) error {
		var err error
		id, err = insertRecommendation(tx, r, time.Now().UTC())
		return err
	})
	return id, err
}

// GetRecommendation fetches one recommendation by id.
func (db *DB) GetRecommendation(id int64) (*models.Recommendation, error) {
	r, err := scanRecommendation(db.QueryRow(`SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recommendation %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation %d: %w", id, err)
	}
	return r, nil
}

// ListRecommendations returns a user's live (non-dismissed, unexpired)
// recommendations, optionally narrowed to a category, best first.
func (db *DB) ListRecommendations(userID int64, category models.RecommendationCategory, limit, offset int) ([]*models.Recommendation, error) {
	if limit <= 0 {
		limit = 50
	}
	now := time.Now().UTC()
	var (
		rows *sql.Rows
		err  error
	)
	if category == "" {
		rows, err = db.Query(`SELECT `+recommendationColumns+` FROM recommendations
			WHERE user_id = ? AND dismissed = 0 AND expires_at > ?
			ORDER BY confidence DESC, created_at DESC LIMIT ? OFFSET ?`, userID, now, limit, offset)
	} else {
		rows, err = db.Query(`SELECT `+recommendationColumns+` FROM recommendations
			WHERE user_id = ? AND category = ? AND dismissed = 0 AND expires_at > ?
			ORDER BY confidence DESC, created_at DESC LIMIT ? OFFSET ?`, userID, string(category), now, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []*models.Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceRecommendations swaps out a user's unengaged recommendations in a
// category for a freshly generated batch. Clicked, wishlisted or dismissed
// rows survive so engagement history keeps feeding the scorer.
func (db *DB) ReplaceRecommendations(userID int64, category models.RecommendationCategory, recs []*models.Recommendation) error {
	return db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM recommendations
			WHERE user_id = ? AND category = ? AND clicked = 0 AND dismissed = 0 AND added_to_wishlist = 0`,
			userID, string(category))
		if err != nil {
			return fmt.Errorf("clear stale recommendations: %w", err)
		}
		now := time.Now().UTC()
		for _, r := range recs {
			if _, err := insertRecommendation(tx, r, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkRecommendationShown stamps first display; repeated calls keep the
// original timestamp.
func (db *DB) MarkRecommendationShown(id int64) error {
	return db.stampRecommendation(id, `shown = 1, shown_at = COALESCE(shown_at, ?)`)
}

// MarkRecommendationClicked records positive engagement. Clicking clears a
// previous dismissal.
func (db *DB) MarkRecommendationClicked(id int64) error {
	return db.stampRecommendation(id, `clicked = 1, dismissed = 0, clicked_at = ?`)
}

// MarkRecommendationDismissed hides a recommendation from future listings.
func (db *DB) MarkRecommendationDismissed(id int64) error {
	return db.stampRecommendation(id, `dismissed = 1, dismissed_at = ?`)
}

// MarkRecommendationWishlisted records that the item was pushed to the wishlist.
func (db *DB) MarkRecommendationWishlisted(id int64) error {
	return db.stampRecommendation(id, `added_to_wishlist = 1, clicked_at = COALESCE(clicked_at, ?)`)
}

func (db *DB) stampRecommendation(id int64, set string) error {
	res, err := db.Exec(`UPDATE recommendations SET `+set+` WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update recommendation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recommendation %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

// DeleteExpiredRecommendations prunes unengaged rows past their expiry.
func (db *DB) DeleteExpiredRecommendations() (int64, error) {
	res, err := db.Exec(`DELETE FROM recommendations
		WHERE expires_at <= ?
		AND clicked = 0 AND dismissed = 0 AND added_to_wishlist = 0`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired recommendations: %w", err)
	}
	return res.RowsAffected()
}

// FeedbackStats summarizes engagement with past recommendations in one
// category, for the feedback factor of the scorer.
type FeedbackStats struct {
	Category   string
	Clicked    int
	Dismissed  int
	Wishlisted int
	Total      int
}

// RecommendationFeedback aggregates historical engagement grouped by category.
func (db *DB) RecommendationFeedback(userID int64) (map[string]FeedbackStats, error) {
	rows, err := db.Query(`
	SELECT category, SUM(clicked), SUM(dismissed), SUM(added_to_wishlist), COUNT(*)
	FROM recommendations
	WHERE user_id = ?
	GROUP BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("recommendation feedback: %w", err)
	}
	defer rows.Close()

	out := map[string]FeedbackStats{}
	for rows.Next() {
		var s FeedbackStats
		if err := rows.Scan(&s.Category, &s.Clicked, &s.Dismissed, &s.Wishlisted, &s.Total); err != nil {
			return nil, err
		}
		out[s.Category] = s
	}
	return out, rows.Err()
}

// EngagedArtistNames returns artists the user clicked or wishlisted,
// newest engagement first, deduplicated.
func (db *DB) EngagedArtistNames(userID int64, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := db.Query(`
	SELECT artist_name FROM recommendations
	WHERE user_id = ? AND (clicked = 1 OR added_to_wishlist = 1) AND artist_name != ''
	GROUP BY artist_name ORDER BY MAX(clicked_at) DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("engaged artists: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
