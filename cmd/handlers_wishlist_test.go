package main

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/vibarr/vibarr/models"
)

func TestWishlistCRUD(t *testing.T) {
	app, server := newTestApp(t)
	_, token := createTestUser(t, app, "collector", false)

	// Create.
	resp, body := doRequest(t, http.MethodPost, server.URL+"/api/wishlist", token, map[string]any{
		"type":       "album",
		"artistName": "Boards of Canada",
		"albumTitle": "Geogaddi",
		"priority":   "high",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", resp.StatusCode, body)
	}
	var created models.WishlistItem
	decodeBody(t, body, &created)
	if created.ID == 0 {
		t.Fatal("Expected a wishlist item id")
	}
	if created.Status != models.WishlistWanted {
		t.Errorf("Expected status 'wanted', got %q", created.Status)
	}
	if created.Priority != models.PriorityHigh {
		t.Errorf("Expected priority 'high', got %q", created.Priority)
	}

	// Client-supplied pipeline states are ignored on create.
	resp, body = doRequest(t, http.MethodPost, server.URL+"/api/wishlist", token, map[string]any{
		"type":       "artist",
		"artistName": "Autechre",
		"status":     "downloaded",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", resp.StatusCode, body)
	}
	var forged models.WishlistItem
	decodeBody(t, body, &forged)
	if forged.Status != models.WishlistWanted {
		t.Errorf("Expected forged status to reset to 'wanted', got %q", forged.Status)
	}

	// List.
	resp, body = doRequest(t, http.MethodGet, server.URL+"/api/wishlist", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var listing struct {
		Items []models.WishlistItem `json:"items"`
	}
	decodeBody(t, body, &listing)
	if len(listing.Items) != 2 {
		t.Fatalf("Expected 2 wishlist items, got %d", len(listing.Items))
	}

	// Status filter.
	resp, _ = doRequest(t, http.MethodGet, server.URL+"/api/wishlist?status=bogus", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for an unknown status filter, got %d", resp.StatusCode)
	}

	// Patch user-ownable fields.
	notes := "vinyl rip preferred"
	resp, body = doRequest(t, http.MethodPatch, fmt.Sprintf("%s/api/wishlist/%d", server.URL, created.ID), token,
		map[string]any{"priority": "low", "autoDownload": true, "notes": notes})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, body)
	}
	var updated models.WishlistItem
	decodeBody(t, body, &updated)
	if updated.Priority != models.PriorityLow {
		t.Errorf("Expected priority 'low', got %q", updated.Priority)
	}
	if !updated.AutoDownload {
		t.Error("Expected autoDownload to be set")
	}
	if updated.Notes != notes {
		t.Errorf("Expected notes %q, got %q", notes, updated.Notes)
	}

	// Pipeline states cannot be forced through a patch.
	resp, _ = doRequest(t, http.MethodPatch, fmt.Sprintf("%s/api/wishlist/%d", server.URL, created.ID), token,
		map[string]any{"status": "downloaded"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400 for a pipeline status write, got %d", resp.StatusCode)
	}

	// Resetting to wanted is the one allowed status write.
	resp, _ = doRequest(t, http.MethodPatch, fmt.Sprintf("%s/api/wishlist/%d", server.URL, created.ID), token,
		map[string]any{"status": "wanted"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 for a reset to wanted, got %d", resp.StatusCode)
	}

	// Delete.
	resp, _ = doRequest(t, http.MethodDelete, fmt.Sprintf("%s/api/wishlist/%d", server.URL, created.ID), token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodPatch, fmt.Sprintf("%s/api/wishlist/%d", server.URL, created.ID), token,
		map[string]any{"priority": "high"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected status 404 after delete, got %d", resp.StatusCode)
	}
}

func TestWishlistValidation(t *testing.T) {
	app, server := newTestApp(t)
	_, token := createTestUser(t, app, "collector", false)

	testCases := []struct {
		name string
		body map[string]any
	}{
		{"missing_artist", map[string]any{"type": "album", "albumTitle": "Geogaddi"}},
		{"album_without_title", map[string]any{"type": "album", "artistName": "Boards of Canada"}},
		{"track_without_title", map[string]any{"type": "track", "artistName": "Boards of Canada"}},
		{"unknown_type", map[string]any{"type": "podcast", "artistName": "Boards of Canada"}},
		{"unknown_priority", map[string]any{"type": "artist", "artistName": "Autechre", "priority": "urgent"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPost, server.URL+"/api/wishlist", token, tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d. Body: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestWishlistSearchAction(t *testing.T) {
	app, server := newTestApp(t)
	_, token := createTestUser(t, app, "collector", false)

	resp, _ := doRequest(t, http.MethodPost, server.URL+"/api/wishlist/999/search", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected status 404 for an unknown item, got %d", resp.StatusCode)
	}

	item := &models.WishlistItem{
		Type:       models.WishlistTypeAlbum,
		ArtistName: "Boards of Canada",
		AlbumTitle: "Geogaddi",
		Status:     models.WishlistWanted,
		Priority:   models.PriorityNormal,
		Source:     "manual",
	}
	id, err := app.database.CreateWishlistItem(item)
	if err != nil {
		t.Fatalf("Failed to seed wishlist item: %v", err)
	}

	resp, body := doRequest(t, http.MethodPost, fmt.Sprintf("%s/api/wishlist/%d/search", server.URL, id), token, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d. Body: %s", resp.StatusCode, body)
	}
	var accepted struct {
		Status string `json:"status"`
		ID     int64  `json:"id"`
	}
	decodeBody(t, body, &accepted)
	if accepted.Status != "searching" || accepted.ID != id {
		t.Errorf("Expected searching/%d, got %+v", id, accepted)
	}
}
