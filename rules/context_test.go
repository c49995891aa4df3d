package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vibarr/vibarr/models"
)

func TestAlbumContextFields(t *testing.T) {
	key := "12345"
	year := 2007
	released := time.Date(2007, 10, 10, 0, 0, 0, 0, time.UTC)
	artist := &models.Artist{ID: 1, Name: "Radiohead", Genres: []string{"art rock"}, InLibrary: true}
	album := &models.Album{
		ID:             2,
		Title:          "In Rainbows",
		AlbumType:      models.AlbumTypeAlbum,
		ReleaseYear:    &year,
		ReleaseDate:    &released,
		MediaServerKey: &key,
	}

	ctx := AlbumContext(artist, album)
	assert.Equal(t, int64(1), ctx["artist_id"])
	assert.Equal(t, "Radiohead", ctx["artist_name"])
	assert.Equal(t, []string{"art rock"}, ctx["genres"])
	assert.Equal(t, int64(2), ctx["album_id"])
	assert.Equal(t, "In Rainbows", ctx["album_title"])
	assert.Equal(t, 2007, ctx["year"])
	assert.Equal(t, "2007-10-10", ctx["release_date"])
	assert.Equal(t, "12345", ctx["media_server_key"])
	assert.Equal(t, false, ctx["in_library"])

	// Optional fields stay absent rather than zero-valued, so negated
	// operators treat them as missing.
	_, ok := ctx["country"]
	assert.False(t, ok)
}

func TestDownloadContextFields(t *testing.T) {
	wishID := int64(7)
	d := &models.Download{
		WishlistID: &wishID,
		ArtistName: "Radiohead",
		AlbumTitle: "Kid A",
		Status:     models.DownloadFound,
		Format:     "flac",
		Seeders:    42,
		SizeBytes:  512 << 20,
		Protocol:   "torrent",
	}

	ctx := DownloadContext(d)
	assert.Equal(t, "Radiohead", ctx["artist_name"])
	assert.Equal(t, "flac", ctx["format"])
	assert.Equal(t, 42, ctx["seeders"])
	assert.Equal(t, float64(512), ctx["size_mb"])
	assert.Equal(t, int64(7), ctx["wishlist_item_id"])
}

func TestRecommendationContextFields(t *testing.T) {
	artistID := int64(3)
	rec := &models.Recommendation{
		Type:       models.RecTypeAlbum,
		ArtistID:   &artistID,
		ArtistName: "Portishead",
		AlbumTitle: "Dummy",
		Category:   models.CategorySimilarArtists,
		Confidence: 0.9,
	}

	ctx := RecommendationContext(rec)
	assert.Equal(t, "Portishead", ctx["artist_name"])
	assert.Equal(t, "similar_artists", ctx["category"])
	assert.Equal(t, "album", ctx["type"])
	assert.Equal(t, 0.9, ctx["confidence"])
	assert.Equal(t, int64(3), ctx["artist_id"])
}

func TestInterpolate(t *testing.T) {
	ctx := Context{
		"artist_name": "Radiohead",
		"year":        1997,
		"genres":      []string{"art rock", "electronic"},
	}
	got := ctx.Interpolate("New album by {artist_name} ({year}): {genres}. See {unknown}.")
	assert.Equal(t, "New album by Radiohead (1997): art rock, electronic. See {unknown}.", got)
}
