package db

import (
	"testing"
	"time"

	"github.com/vibarr/vibarr/models"
)

func createTestWish(t *testing.T, database *DB) *models.WishlistItem {
	t.Helper()
	w := &models.WishlistItem{
		Type:       models.WishlistTypeAlbum,
		ArtistName: "The Weeknd",
		AlbumTitle: "Dawn FM",
		Status:     models.WishlistSearching,
		Source:     "manual",
	}
	id, err := database.CreateWishlistItem(w)
	if err != nil {
		t.Fatalf("Failed to create wishlist item: %v", err)
	}
	w.ID = id
	return w
}

func createTestDownload(t *testing.T, database *DB, wishlistID int64) *models.Download {
	t.Helper()
	d := &models.Download{
		WishlistID:   &wishlistID,
		ArtistName:   "The Weeknd",
		AlbumTitle:   "Dawn FM",
		ReleaseTitle: "The Weeknd - Dawn FM FLAC",
		Status:       models.DownloadFound,
		Protocol:     "torrent",
	}
	id, err := database.CreateDownload(d)
	if err != nil {
		t.Fatalf("Failed to create download: %v", err)
	}
	d.ID = id
	return d
}

func wishStatus(t *testing.T, database *DB, id int64) models.WishlistStatus {
	t.Helper()
	w, err := database.GetWishlistItem(id)
	if err != nil {
		t.Fatalf("Failed to get wishlist item: %v", err)
	}
	return w.Status
}

func TestTransitionDownloadSyncsWishlist(t *testing.T) {
	database := setupTestDB(t)
	wish := createTestWish(t, database)
	dl := createTestDownload(t, database, wish.ID)

	steps := []struct {
		from []models.DownloadStatus
		to   models.DownloadStatus
		want models.WishlistStatus
	}{
		{[]models.DownloadStatus{models.DownloadFound}, models.DownloadQueued, models.WishlistDownloading},
		{[]models.DownloadStatus{models.DownloadQueued}, models.DownloadDownloading, models.WishlistDownloading},
		{[]models.DownloadStatus{models.DownloadDownloading}, models.DownloadImporting, models.WishlistImporting},
		{[]models.DownloadStatus{models.DownloadImporting}, models.DownloadCompleted, models.WishlistDownloaded},
	}

	for _, step := range steps {
		_, applied, err := database.TransitionDownload(dl.ID, step.from, step.to, nil)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", step.to, err)
		}
		if !applied {
			t.Fatalf("transition to %s was not applied", step.to)
		}
		if got := wishStatus(t, database, wish.ID); got != step.want {
			t.Errorf("after %s: wishlist status = %s, want %s", step.to, got, step.want)
		}
	}
}

func TestTransitionDownloadFailureCarriesMessage(t *testing.T) {
	database := setupTestDB(t)
	wish := createTestWish(t, database)
	dl := createTestDownload(t, database, wish.ID)

	_, applied, err := database.TransitionDownload(dl.ID, nil, models.DownloadFailed, func(d *models.Download) {
		d.StatusMessage = "no seeders"
	})
	if err != nil || !applied {
		t.Fatalf("transition failed: applied=%v err=%v", applied, err)
	}

	w, err := database.GetWishlistItem(wish.ID)
	if err != nil {
		t.Fatalf("Failed to get wishlist item: %v", err)
	}
	if w.Status != models.WishlistFailed {
		t.Errorf("wishlist status = %s, want %s", w.Status, models.WishlistFailed)
	}
	if w.Notes != "no seeders" {
		t.Errorf("wishlist notes = %q, want failure reason", w.Notes)
	}
}

func TestTransitionDownloadIdempotentGuard(t *testing.T) {
	database := setupTestDB(t)
	wish := createTestWish(t, database)
	dl := createTestDownload(t, database, wish.ID)

	_, applied, err := database.TransitionDownload(dl.ID,
		[]models.DownloadStatus{models.DownloadFound}, models.DownloadQueued, nil)
	if err != nil || !applied {
		t.Fatalf("first transition: applied=%v err=%v", applied, err)
	}

	// A second poller tick sees the same completion; the guard must reject it.
	_, applied, err = database.TransitionDownload(dl.ID,
		[]models.DownloadStatus{models.DownloadFound}, models.DownloadQueued, nil)
	if err != nil {
		t.Fatalf("second transition errored: %v", err)
	}
	if applied {
		t.Error("second transition should be a no-op")
	}
}

func TestTransitionDownloadWithoutWishlist(t *testing.T) {
	database := setupTestDB(t)
	d := &models.Download{
		ArtistName:   "Khruangbin",
		AlbumTitle:   "Mordechai",
		ReleaseTitle: "Khruangbin - Mordechai [FLAC]",
		Status:       models.DownloadFound,
	}
	id, err := database.CreateDownload(d)
	if err != nil {
		t.Fatalf("Failed to create download: %v", err)
	}

	_, applied, err := database.TransitionDownload(id,
		[]models.DownloadStatus{models.DownloadFound}, models.DownloadQueued, nil)
	if err != nil || !applied {
		t.Fatalf("transition without wishlist: applied=%v err=%v", applied, err)
	}
}

func TestDeleteWishlistDetachesDownloads(t *testing.T) {
	database := setupTestDB(t)
	wish := createTestWish(t, database)
	dl := createTestDownload(t, database, wish.ID)

	if err := database.DeleteWishlistItem(wish.ID); err != nil {
		t.Fatalf("Failed to delete wishlist item: %v", err)
	}

	got, err := database.GetDownload(dl.ID)
	if err != nil {
		t.Fatalf("download should survive wishlist deletion: %v", err)
	}
	if got.WishlistID != nil {
		t.Error("expected the download to be detached from the deleted wish")
	}
}

func TestActiveDownloadCount(t *testing.T) {
	database := setupTestDB(t)
	wish := createTestWish(t, database)

	statuses := []models.DownloadStatus{
		models.DownloadQueued, models.DownloadDownloading, models.DownloadImporting,
		models.DownloadCompleted, models.DownloadFailed, models.DownloadPending,
	}
	for _, s := range statuses {
		d := &models.Download{
			WishlistID:   &wish.ID,
			ArtistName:   "a",
			AlbumTitle:   "b",
			ReleaseTitle: "a - b",
			Status:       s,
		}
		if _, err := database.CreateDownload(d); err != nil {
			t.Fatalf("Failed to create download: %v", err)
		}
	}

	n, err := database.ActiveDownloadCount()
	if err != nil {
		t.Fatalf("Failed to count active downloads: %v", err)
	}
	if n != 3 {
		t.Errorf("active count = %d, want 3 (queued, downloading, importing)", n)
	}
}

func TestBeginWishlistSearchStampsAndGuards(t *testing.T) {
	database := setupTestDB(t)
	w := &models.WishlistItem{
		Type:       models.WishlistTypeAlbum,
		ArtistName: "Big Thief",
		AlbumTitle: "Two Hands",
		Status:     models.WishlistWanted,
	}
	id, err := database.CreateWishlistItem(w)
	if err != nil {
		t.Fatalf("Failed to create wishlist item: %v", err)
	}

	before := time.Now().UTC().Add(-time.Second)
	ok, err := database.BeginWishlistSearch(id, models.WishlistWanted)
	if err != nil || !ok {
		t.Fatalf("begin search: ok=%v err=%v", ok, err)
	}

	got, err := database.GetWishlistItem(id)
	if err != nil {
		t.Fatalf("Failed to get wishlist item: %v", err)
	}
	if got.Status != models.WishlistSearching {
		t.Errorf("status = %s, want searching", got.Status)
	}
	if got.SearchCount != 1 {
		t.Errorf("search count = %d, want 1", got.SearchCount)
	}
	if got.LastSearchedAt == nil || got.LastSearchedAt.Before(before) {
		t.Error("expected last_searched_at stamped")
	}

	// Item is no longer wanted; a concurrent worker must lose the claim.
	ok, err = database.BeginWishlistSearch(id, models.WishlistWanted)
	if err != nil {
		t.Fatalf("second begin search errored: %v", err)
	}
	if ok {
		t.Error("second claim should fail while the item is searching")
	}
}
