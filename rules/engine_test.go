package rules

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/events"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/registry"
	"github.com/vibarr/vibarr/settings"
)

type fakeDownloader struct {
	ids       []int64
	userFlags []bool
	err       error
}

func (f *fakeDownloader) SearchWishlistItem(_ context.Context, id int64, userTriggered bool) (*models.Download, error) {
	f.ids = append(f.ids, id)
	f.userFlags = append(f.userFlags, userTriggered)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Download{ID: 1, WishlistID: &id}, nil
}

type ruleHarness struct {
	eng    *Engine
	db     *db.DB
	store  *settings.Store
	dl     *fakeDownloader
	userID int64
}

func newRuleHarness(t *testing.T) *ruleHarness {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	logger := log.New(io.Discard)
	store, err := settings.New(database, logger)
	require.NoError(t, err)
	reg := registry.New(store, logger)
	hub := events.NewHub(nil, logger)

	userID, err := database.CreateUser(&models.User{Username: "amy", PasswordHash: "x"})
	require.NoError(t, err)

	eng := New(database, reg, hub, logger)
	dl := &fakeDownloader{}
	eng.UseDownloader(dl)
	return &ruleHarness{eng: eng, db: database, store: store, dl: dl, userID: userID}
}

func (h *ruleHarness) addRule(t *testing.T, rule *models.AutomationRule) int64 {
	t.Helper()
	if rule.UserID == 0 {
		rule.UserID = h.userID
	}
	id, err := h.db.CreateRule(rule)
	require.NoError(t, err)
	rule.ID = id
	return id
}

// libraryAlbum seeds an artist and album and returns their context.
func (h *ruleHarness) libraryAlbum(t *testing.T) (Context, int64, int64) {
	t.Helper()
	artistID, err := h.db.CreateArtist(&models.Artist{
		Name:   "Radiohead",
		Genres: []string{"art rock", "electronic"},
	})
	require.NoError(t, err)
	artist, err := h.db.GetArtist(artistID)
	require.NoError(t, err)

	albumID, err := h.db.CreateAlbum(&models.Album{
		Title:    "In Rainbows",
		ArtistID: artistID,
	})
	require.NoError(t, err)
	album, err := h.db.GetAlbum(albumID)
	require.NoError(t, err)

	return AlbumContext(artist, album), artistID, albumID
}

func (h *ruleHarness) wishes(t *testing.T) []*models.WishlistItem {
	t.Helper()
	items, err := h.db.ListWishlist("", 100, 0)
	require.NoError(t, err)
	return items
}

func (h *ruleHarness) reload(t *testing.T, ruleID int64) *models.AutomationRule {
	t.Helper()
	rule, err := h.db.GetRule(ruleID)
	require.NoError(t, err)
	return rule
}

func TestDispatchRunsMatchingRule(t *testing.T) {
	h := newRuleHarness(t)
	rctx, artistID, albumID := h.libraryAlbum(t)

	ruleID := h.addRule(t, &models.AutomationRule{
		Name:    "Grab art rock releases",
		Trigger: models.TriggerNewRelease,
		Enabled: true,
		Conditions: []models.RuleCondition{
			{Field: "genres", Operator: models.OpContains, Value: "art rock"},
		},
		Actions: []models.RuleAction{
			{Type: models.ActionAddToWishlist, Params: map[string]any{
				"priority":      "high",
				"auto_download": true,
			}},
		},
	})

	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewRelease, rctx))

	items := h.wishes(t)
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, models.WishlistTypeAlbum, item.Type)
	assert.Equal(t, "Radiohead", item.ArtistName)
	assert.Equal(t, "In Rainbows", item.AlbumTitle)
	assert.Equal(t, "automation", item.Source)
	assert.Equal(t, models.PriorityHigh, item.Priority)
	assert.True(t, item.AutoDownload)
	require.NotNil(t, item.ArtistID)
	assert.Equal(t, artistID, *item.ArtistID)
	require.NotNil(t, item.AlbumID)
	assert.Equal(t, albumID, *item.AlbumID)
	assert.Contains(t, item.Notes, "Grab art rock releases")

	rule := h.reload(t, ruleID)
	assert.Equal(t, 1, rule.TriggerCount)
	assert.NotNil(t, rule.LastTriggeredAt)
}

func TestDispatchIgnoresNonMatchingRule(t *testing.T) {
	h := newRuleHarness(t)
	rctx, _, _ := h.libraryAlbum(t)

	ruleID := h.addRule(t, &models.AutomationRule{
		Name:    "Jazz only",
		Trigger: models.TriggerNewRelease,
		Enabled: true,
		Conditions: []models.RuleCondition{
			{Field: "genres", Operator: models.OpContains, Value: "jazz"},
		},
		Actions: []models.RuleAction{{Type: models.ActionAddToWishlist}},
	})

	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewRelease, rctx))

	assert.Empty(t, h.wishes(t))
	rule := h.reload(t, ruleID)
	assert.Equal(t, 0, rule.TriggerCount)
	assert.Nil(t, rule.LastTriggeredAt)
}

func TestDispatchSkipsDisabledAndForeignTriggers(t *testing.T) {
	h := newRuleHarness(t)
	rctx, _, _ := h.libraryAlbum(t)

	disabled := h.addRule(t, &models.AutomationRule{
		Name:    "Disabled",
		Trigger: models.TriggerNewRelease,
		Enabled: false,
		Actions: []models.RuleAction{{Type: models.ActionAddToWishlist}},
	})
	other := h.addRule(t, &models.AutomationRule{
		Name:    "Different trigger",
		Trigger: models.TriggerLibrarySync,
		Enabled: true,
		Actions: []models.RuleAction{{Type: models.ActionAddToWishlist}},
	})

	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewRelease, rctx))

	assert.Empty(t, h.wishes(t))
	assert.Equal(t, 0, h.reload(t, disabled).TriggerCount)
	assert.Equal(t, 0, h.reload(t, other).TriggerCount)
}

func TestDispatchRunsRulesIndependently(t *testing.T) {
	h := newRuleHarness(t)
	rctx, _, _ := h.libraryAlbum(t)
	h.dl.err = errors.New("indexer down")

	failing := h.addRule(t, &models.AutomationRule{
		Name:     "Download everything",
		Trigger:  models.TriggerNewRelease,
		Priority: 10,
		Enabled:  true,
		Actions:  []models.RuleAction{{Type: models.ActionStartDownload}},
	})
	wishing := h.addRule(t, &models.AutomationRule{
		Name:     "Wish everything",
		Trigger:  models.TriggerNewRelease,
		Priority: 5,
		Enabled:  true,
		Actions:  []models.RuleAction{{Type: models.ActionAddToWishlist}},
	})

	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewRelease, rctx))

	// The failing download action still wished the item first; the lower
	// priority rule ran regardless and added its own.
	assert.Len(t, h.wishes(t), 2)
	assert.Equal(t, 1, h.reload(t, failing).TriggerCount)
	assert.Equal(t, 1, h.reload(t, wishing).TriggerCount)
}

func TestSkipItemHaltsRemainingActions(t *testing.T) {
	h := newRuleHarness(t)
	rctx, _, _ := h.libraryAlbum(t)

	ruleID := h.addRule(t, &models.AutomationRule{
		Name:    "Skip everything",
		Trigger: models.TriggerNewRelease,
		Enabled: true,
		Actions: []models.RuleAction{
			{Type: models.ActionSkipItem},
			{Type: models.ActionAddToWishlist},
			{Type: models.ActionSendNotification, Params: map[string]any{"message": "hi"}},
		},
	})

	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewRelease, rctx))

	assert.Empty(t, h.wishes(t))
	notes, err := h.db.ListNotifications(h.userID, false, 10)
	require.NoError(t, err)
	assert.Empty(t, notes)
	// The rule still counts as triggered.
	assert.Equal(t, 1, h.reload(t, ruleID).TriggerCount)
}

func TestStartDownloadCreatesWishAndSearches(t *testing.T) {
	h := newRuleHarness(t)
	rctx, _, _ := h.libraryAlbum(t)

	h.addRule(t, &models.AutomationRule{
		Name:    "Grab in 320",
		Trigger: models.TriggerNewRelease,
		Enabled: true,
		Actions: []models.RuleAction{
			{Type: models.ActionStartDownload, Params: map[string]any{"format": "320"}},
		},
	})

	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewRelease, rctx))

	require.Len(t, h.dl.ids, 1)
	assert.False(t, h.dl.userFlags[0])

	item, err := h.db.GetWishlistItem(h.dl.ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.WishlistTypeAlbum, item.Type)
	assert.Equal(t, "320", item.PreferredFormat)
}

func TestStartDownloadReusesContextWish(t *testing.T) {
	h := newRuleHarness(t)

	wishID, err := h.db.CreateWishlistItem(&models.WishlistItem{
		Type:       models.WishlistTypeAlbum,
		ArtistName: "Radiohead",
		AlbumTitle: "Kid A",
	})
	require.NoError(t, err)

	h.addRule(t, &models.AutomationRule{
		Name:    "Retry stalled wishes",
		Trigger: models.TriggerSchedule,
		Enabled: true,
		Actions: []models.RuleAction{{Type: models.ActionStartDownload}},
	})

	rctx := Context{"artist_name": "Radiohead", "wishlist_item_id": wishID}
	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerSchedule, rctx))

	require.Equal(t, []int64{wishID}, h.dl.ids)
	assert.Len(t, h.wishes(t), 1)
}

func TestSendNotificationInterpolates(t *testing.T) {
	h := newRuleHarness(t)
	rctx, _, _ := h.libraryAlbum(t)

	h.addRule(t, &models.AutomationRule{
		Name:    "Release alert",
		Trigger: models.TriggerNewRelease,
		Enabled: true,
		Actions: []models.RuleAction{
			{Type: models.ActionSendNotification, Params: map[string]any{
				"message": "New album {album_title} by {artist_name}",
			}},
		},
	})

	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewRelease, rctx))

	notes, err := h.db.ListNotifications(h.userID, false, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Release alert", notes[0].Title)
	assert.Equal(t, "New album In Rainbows by Radiohead", notes[0].Message)
	require.NotNil(t, notes[0].UserID)
	assert.Equal(t, h.userID, *notes[0].UserID)
}

func TestTagItemMergesArtistTags(t *testing.T) {
	h := newRuleHarness(t)

	artistID, err := h.db.CreateArtist(&models.Artist{
		Name: "Radiohead",
		Tags: []string{"rock"},
	})
	require.NoError(t, err)

	h.addRule(t, &models.AutomationRule{
		Name:    "Tag favorites",
		Trigger: models.TriggerNewArtistDiscovered,
		Enabled: true,
		Actions: []models.RuleAction{
			{Type: models.ActionTagItem, Params: map[string]any{
				"tags": []any{"Rock", "favorite"},
			}},
		},
	})

	rctx := Context{"artist_id": artistID, "artist_name": "Radiohead"}
	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewArtistDiscovered, rctx))

	artist, err := h.db.GetArtist(artistID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rock", "favorite"}, artist.Tags)
}

func TestSetQualityProfileAppliesTopFormat(t *testing.T) {
	h := newRuleHarness(t)

	_, err := h.db.CreateQualityProfile(&models.QualityProfile{
		Name:             "lossless",
		PreferredFormats: []string{"flac-24", "flac"},
	})
	require.NoError(t, err)

	wishID, err := h.db.CreateWishlistItem(&models.WishlistItem{
		Type:       models.WishlistTypeAlbum,
		ArtistName: "Radiohead",
		AlbumTitle: "Kid A",
	})
	require.NoError(t, err)

	h.addRule(t, &models.AutomationRule{
		Name:    "Lossless for downloads",
		Trigger: models.TriggerSchedule,
		Enabled: true,
		Actions: []models.RuleAction{
			{Type: models.ActionSetQualityProfile, Params: map[string]any{
				"profile_name": "lossless",
			}},
		},
	})

	rctx := Context{"artist_name": "Radiohead", "wishlist_item_id": wishID}
	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerSchedule, rctx))

	item, err := h.db.GetWishlistItem(wishID)
	require.NoError(t, err)
	assert.Equal(t, "flac-24", item.PreferredFormat)
}

func TestAddToLibraryMarksOwned(t *testing.T) {
	h := newRuleHarness(t)
	rctx, artistID, albumID := h.libraryAlbum(t)

	h.addRule(t, &models.AutomationRule{
		Name:    "Adopt releases",
		Trigger: models.TriggerNewRelease,
		Enabled: true,
		Actions: []models.RuleAction{{Type: models.ActionAddToLibrary}},
	})

	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerNewRelease, rctx))

	artist, err := h.db.GetArtist(artistID)
	require.NoError(t, err)
	assert.True(t, artist.InLibrary)
	album, err := h.db.GetAlbum(albumID)
	require.NoError(t, err)
	assert.True(t, album.InLibrary)
}

func TestImportPlaylistRequiresConfiguredProvider(t *testing.T) {
	h := newRuleHarness(t)
	require.NoError(t, h.store.Set(settings.KeyDeezerEnabled, "false"))

	ruleID := h.addRule(t, &models.AutomationRule{
		Name:    "Watch playlist",
		Trigger: models.TriggerPlaylistURLCheck,
		Enabled: true,
		Actions: []models.RuleAction{
			{Type: models.ActionImportPlaylistURL, Params: map[string]any{
				"url": "https://www.deezer.com/en/playlist/123456",
			}},
		},
	})

	rctx := PlaylistURLContext("https://www.deezer.com/en/playlist/123456")
	require.NoError(t, h.eng.Dispatch(context.Background(), models.TriggerPlaylistURLCheck, rctx))

	// The action fails against the disabled client but the dispatch
	// itself succeeds and the match is still recorded.
	assert.Empty(t, h.wishes(t))
	assert.Equal(t, 1, h.reload(t, ruleID).TriggerCount)
}

func TestAddToWishlistInfersType(t *testing.T) {
	h := newRuleHarness(t)
	rule := &models.AutomationRule{Name: "infer", UserID: h.userID}

	artistWish, err := h.eng.addToWishlist(rule, nil, Context{"artist_name": "Radiohead"})
	require.NoError(t, err)
	albumWish, err := h.eng.addToWishlist(rule, nil, Context{"artist_name": "Radiohead", "album_title": "Kid A"})
	require.NoError(t, err)
	trackWish, err := h.eng.addToWishlist(rule, nil, Context{"artist_name": "Radiohead", "album_title": "Kid A", "track_title": "Idioteque"})
	require.NoError(t, err)

	for id, want := range map[int64]models.WishlistType{
		artistWish: models.WishlistTypeArtist,
		albumWish:  models.WishlistTypeAlbum,
		trackWish:  models.WishlistTypeTrack,
	} {
		item, err := h.db.GetWishlistItem(id)
		require.NoError(t, err)
		assert.Equal(t, want, item.Type)
	}

	_, err = h.eng.addToWishlist(rule, nil, Context{})
	assert.Error(t, err)
}
