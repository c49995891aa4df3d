package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

func (app *application) handleListWishlist(w http.ResponseWriter, r *http.Request) {
	status := models.WishlistStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown wishlist status")
		return
	}
	limit, offset := pageParams(r)

	items, err := app.database.ListWishlist(status, limit, offset)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (app *application) handleCreateWishlistItem(w http.ResponseWriter, r *http.Request) {
	var item models.WishlistItem
	if err := decodeJSON(r, &item); err != nil {
		httpError(w, err)
		return
	}
	if err := normalizeWish(&item); err != nil {
		httpError(w, err)
		return
	}

	id, err := app.database.CreateWishlistItem(&item)
	if err != nil {
		httpError(w, err)
		return
	}
	created, err := app.database.GetWishlistItem(id)
	if err != nil {
		httpError(w, err)
		return
	}
	app.logger.Info("wishlist item added",
		"id", id, "type", created.Type, "artist", created.ArtistName, "album", created.AlbumTitle)
	jsonResponse(w, http.StatusCreated, created)
}

// normalizeWish applies defaults and rejects wishes the pipeline could never
// act on.
func normalizeWish(item *models.WishlistItem) error {
	if item.Type == "" {
		item.Type = models.WishlistTypeAlbum
	}
	if !item.Type.Valid() {
		return fmt.Errorf("unknown wishlist type %q: %w", item.Type, errs.ErrInvalid)
	}
	item.ArtistName = strings.TrimSpace(item.ArtistName)
	item.AlbumTitle = strings.TrimSpace(item.AlbumTitle)
	item.TrackTitle = strings.TrimSpace(item.TrackTitle)
	if item.ArtistName == "" {
		return fmt.Errorf("artistName required: %w", errs.ErrInvalid)
	}
	if item.Type == models.WishlistTypeAlbum && item.AlbumTitle == "" {
		return fmt.Errorf("albumTitle required for album wishes: %w", errs.ErrInvalid)
	}
	if item.Type == models.WishlistTypeTrack && item.TrackTitle == "" {
		return fmt.Errorf("trackTitle required for track wishes: %w", errs.ErrInvalid)
	}
	if item.Priority == "" {
		item.Priority = models.PriorityNormal
	}
	if !item.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", item.Priority, errs.ErrInvalid)
	}
	if item.Source == "" {
		item.Source = "manual"
	}
	// The pipeline owns all other states.
	item.Status = models.WishlistWanted
	return nil
}

type wishlistPatch struct {
	Priority        *models.Priority       `json:"priority"`
	AutoDownload    *bool                  `json:"autoDownload"`
	PreferredFormat *string                `json:"preferredFormat"`
	Notes           *string                `json:"notes"`
	Status          *models.WishlistStatus `json:"status"`
}

// handleUpdateWishlistItem patches the user-ownable fields. Pipeline states
// cannot be forged through here: the only status write accepted is the reset
// to wanted, which re-arms a failed or completed wish.
func (app *application) handleUpdateWishlistItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	item, err := app.database.GetWishlistItem(id)
	if err != nil {
		httpError(w, err)
		return
	}

	var patch wishlistPatch
	if err := decodeJSON(r, &patch); err != nil {
		httpError(w, err)
		return
	}

	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			jsonError(w, http.StatusBadRequest, "unknown priority")
			return
		}
		item.Priority = *patch.Priority
	}
	if patch.AutoDownload != nil {
		item.AutoDownload = *patch.AutoDownload
	}
	if patch.PreferredFormat != nil {
		item.PreferredFormat = *patch.PreferredFormat
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}
	if patch.Status != nil {
		if *patch.Status != models.WishlistWanted {
			jsonError(w, http.StatusBadRequest, "status can only be reset to wanted")
			return
		}
		item.Status = models.WishlistWanted
	}

	if err := app.database.UpdateWishlistItem(item); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

func (app *application) handleDeleteWishlistItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if err := app.database.DeleteWishlistItem(id); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}

// handleWishlistSearch hands one wish to the pipeline on a worker.
// User-triggered searches bypass the auto-download gate, so the best release
// is always grabbed.
func (app *application) handleWishlistSearch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if _, err := app.database.GetWishlistItem(id); err != nil {
		httpError(w, err)
		return
	}

	task := func(ctx context.Context) error {
		_, err := app.pipe.SearchWishlistItem(ctx, id, true)
		return err
	}
	if err := app.sched.Submit("wishlist-search", task); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, map[string]any{
		"status": "searching",
		"id":     id,
	})
}
