package main

import (
	"fmt"
	"net/http"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/recommend"
	"github.com/vibarr/vibarr/session"
)

func (app *application) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.GetUserID(r.Context())

	category := models.RecommendationCategory(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown recommendation category")
		return
	}
	limit, offset := pageParams(r)

	recs, err := app.database.ListRecommendations(userID, category, limit, offset)
	if err != nil {
		httpError(w, err)
		return
	}

	// Listing is the impression; the feedback loop keys off shown.
	for _, rec := range recs {
		if rec.Shown {
			continue
		}
		if err := app.database.MarkRecommendationShown(rec.ID); err != nil {
			app.logger.Warn("mark recommendation shown failed", "id", rec.ID, "err", err)
		}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"recommendations": recs,
		"limit":           limit,
		"offset":          offset,
	})
}

func (app *application) handleRefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	if err := app.sched.Enqueue("generate-daily-recommendations"); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, map[string]any{
		"status": "queued",
		"id":     "generate-daily-recommendations",
	})
}

// ownRecommendation loads a recommendation and hides other users' rows
// behind a 404.
func (app *application) ownRecommendation(r *http.Request) (*models.Recommendation, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	rec, err := app.database.GetRecommendation(id)
	if err != nil {
		return nil, err
	}
	userID, _ := session.GetUserID(r.Context())
	if rec.UserID != userID {
		return nil, fmt.Errorf("recommendation %d: %w", id, errs.ErrNotFound)
	}
	return rec, nil
}

func (app *application) handleRecommendationClick(w http.ResponseWriter, r *http.Request) {
	rec, err := app.ownRecommendation(r)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := app.database.MarkRecommendationClicked(rec.ID); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"status": "clicked", "id": rec.ID})
}

func (app *application) handleRecommendationDismiss(w http.ResponseWriter, r *http.Request) {
	rec, err := app.ownRecommendation(r)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := app.database.MarkRecommendationDismissed(rec.ID); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"status": "dismissed", "id": rec.ID})
}

// handleRecommendationWishlist promotes a suggestion into a wish, which is
// the strongest positive signal the feedback stats can record.
func (app *application) handleRecommendationWishlist(w http.ResponseWriter, r *http.Request) {
	rec, err := app.ownRecommendation(r)
	if err != nil {
		httpError(w, err)
		return
	}

	item := &models.WishlistItem{
		Type:       models.WishlistType(rec.Type),
		ArtistID:   rec.ArtistID,
		AlbumID:    rec.AlbumID,
		ArtistName: rec.ArtistName,
		AlbumTitle: rec.AlbumTitle,
		TrackTitle: rec.TrackTitle,
		Source:     "recommendation",
		Confidence: &rec.Confidence,
	}
	if err := normalizeWish(item); err != nil {
		httpError(w, err)
		return
	}

	wishID, err := app.database.CreateWishlistItem(item)
	if err != nil {
		httpError(w, err)
		return
	}
	if err := app.database.MarkRecommendationWishlisted(rec.ID); err != nil {
		app.logger.Warn("mark recommendation wishlisted failed", "id", rec.ID, "err", err)
	}
	jsonResponse(w, http.StatusCreated, map[string]any{
		"status": "wishlisted",
		"id":     wishID,
	})
}

// handleTaste exposes the requesting user's taste summary plus the other
// accounts that opted into matching.
func (app *application) handleTaste(w http.ResponseWriter, r *http.Request) {
	user, err := app.currentUser(r)
	if err != nil {
		httpError(w, err)
		return
	}

	profile, err := app.database.LatestTasteProfile(user.ID)
	if err != nil {
		httpError(w, err)
		return
	}
	if profile == nil {
		jsonResponse(w, http.StatusOK, map[string]any{
			"profile": nil,
			"message": "no taste profile yet; it builds from listening history",
		})
		return
	}

	out := map[string]any{
		"tags":       user.TasteTags,
		"topGenres":  profile.TopGenres,
		"totalPlays": profile.TotalPlays,
		"profile":    profile,
	}
	if profile.ProfileData != nil {
		out["cluster"] = profile.ProfileData.Cluster
		out["confidence"] = profile.ProfileData.ClusterConfidence
		out["embedding"] = profile.ProfileData.Embedding
	}

	if user.ShareTaste {
		others, err := app.database.UsersSharingTaste(user.ID)
		if err != nil {
			httpError(w, err)
			return
		}
		peers := make([]map[string]any, 0, len(others))
		for _, other := range others {
			peer := map[string]any{"id": other.ID, "username": other.Username}
			if other.TasteCluster != nil {
				peer["cluster"] = *other.TasteCluster
			}
			peers = append(peers, peer)
		}
		out["peers"] = peers
	}

	jsonResponse(w, http.StatusOK, out)
}

// handleCompatibility scores two users' taste embeddings against each
// other. Both sides must have opted into sharing.
func (app *application) handleCompatibility(w http.ResponseWriter, r *http.Request) {
	me, err := app.currentUser(r)
	if err != nil {
		httpError(w, err)
		return
	}
	otherID, err := pathID(r, "userID")
	if err != nil {
		httpError(w, err)
		return
	}
	other, err := app.database.GetUser(otherID)
	if err != nil {
		httpError(w, err)
		return
	}
	if other.ID == me.ID {
		jsonError(w, http.StatusBadRequest, "cannot compare a user with themselves")
		return
	}
	if !me.ShareTaste || !other.ShareTaste {
		jsonError(w, http.StatusForbidden, "taste sharing is not enabled for both users")
		return
	}

	score := recommend.Cosine(me.CompatibilityVector, other.CompatibilityVector)

	mine := make(map[string]bool, len(me.TasteTags))
	for _, tag := range me.TasteTags {
		mine[tag] = true
	}
	shared := []string{}
	for _, tag := range other.TasteTags {
		if mine[tag] {
			shared = append(shared, tag)
		}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"userId":       other.ID,
		"username":     other.Username,
		"score":        score,
		"sharedGenres": shared,
	})
}
