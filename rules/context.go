package rules

import (
	"fmt"
	"strings"

	"github.com/vibarr/vibarr/models"
)

// Context is the flat view of the triggering item that conditions read
// and actions operate on. Keys form the closed field set exposed to rule
// authors; values are strings, numbers, bools, or string lists. Actions
// may write derived keys back (wishlist_item_id) so later actions of the
// same rule can build on them.
type Context map[string]any

// AlbumContext builds the field set for new_release and library_sync
// firings. Either argument may be nil.
func AlbumContext(artist *models.Artist, album *models.Album) Context {
	ctx := Context{}
	if artist != nil {
		ctx["artist_id"] = artist.ID
		ctx["artist_name"] = artist.Name
		ctx["artist_in_library"] = artist.InLibrary
		if len(artist.Genres) > 0 {
			ctx["genres"] = artist.Genres
		}
		if len(artist.Tags) > 0 {
			ctx["tags"] = artist.Tags
		}
		if artist.Country != "" {
			ctx["country"] = artist.Country
		}
		if artist.SpotifyPopularity != nil {
			ctx["popularity"] = *artist.SpotifyPopularity
		}
		if artist.MediaServerKey != nil {
			ctx["media_server_key"] = *artist.MediaServerKey
		}
	}
	if album != nil {
		ctx["album_id"] = album.ID
		ctx["album_title"] = album.Title
		ctx["in_library"] = album.InLibrary
		if album.AlbumType != "" {
			ctx["album_type"] = string(album.AlbumType)
		}
		if album.ReleaseType != "" {
			ctx["release_type"] = string(album.ReleaseType)
		}
		if album.TotalTracks > 0 {
			ctx["total_tracks"] = album.TotalTracks
		}
		if album.ReleaseYear != nil {
			ctx["year"] = *album.ReleaseYear
		}
		if album.ReleaseDate != nil {
			ctx["release_date"] = album.ReleaseDate.Format("2006-01-02")
		}
		if album.MediaServerKey != nil {
			ctx["media_server_key"] = *album.MediaServerKey
		}
	}
	return ctx
}

// ArtistContext builds the field set for new_artist_discovered firings.
func ArtistContext(artist *models.Artist) Context {
	return AlbumContext(artist, nil)
}

// RecommendationContext builds the field set for recommendation_generated
// firings.
func RecommendationContext(rec *models.Recommendation) Context {
	ctx := Context{
		"artist_name": rec.ArtistName,
		"category":    string(rec.Category),
		"type":        string(rec.Type),
		"confidence":  rec.Confidence,
		"relevance":   rec.Relevance,
		"novelty":     rec.Novelty,
	}
	if rec.AlbumTitle != "" {
		ctx["album_title"] = rec.AlbumTitle
	}
	if rec.TrackTitle != "" {
		ctx["track_title"] = rec.TrackTitle
	}
	if rec.Reason != "" {
		ctx["reason"] = rec.Reason
	}
	if rec.ArtistID != nil {
		ctx["artist_id"] = *rec.ArtistID
	}
	if rec.AlbumID != nil {
		ctx["album_id"] = *rec.AlbumID
	}
	return ctx
}

// DownloadContext builds the field set for download-related milestones.
func DownloadContext(d *models.Download) Context {
	ctx := Context{
		"artist_name": d.ArtistName,
		"album_title": d.AlbumTitle,
		"status":      string(d.Status),
		"protocol":    d.Protocol,
	}
	if d.ReleaseTitle != "" {
		ctx["release_title"] = d.ReleaseTitle
	}
	if d.Format != "" {
		ctx["format"] = d.Format
	}
	if d.Quality != "" {
		ctx["quality"] = d.Quality
	}
	if d.IndexerName != "" {
		ctx["indexer_name"] = d.IndexerName
	}
	if d.Seeders > 0 {
		ctx["seeders"] = d.Seeders
	}
	if d.Score > 0 {
		ctx["score"] = d.Score
	}
	if d.SizeBytes > 0 {
		ctx["size_mb"] = float64(d.SizeBytes) / (1 << 20)
	}
	if d.WishlistID != nil {
		ctx["wishlist_item_id"] = *d.WishlistID
	}
	return ctx
}

// MilestoneContext builds the field set for listening_milestone firings.
func MilestoneContext(milestone string, count int, artistName string) Context {
	ctx := Context{
		"milestone": milestone,
		"count":     count,
	}
	if artistName != "" {
		ctx["artist_name"] = artistName
	}
	return ctx
}

// PlaylistURLContext builds the field set for playlist_url_check firings.
// import_playlist_url reads the url when its params carry none.
func PlaylistURLContext(url string) Context {
	return Context{"url": url}
}

// Interpolate replaces {field} placeholders in a message template with
// context values. Placeholders without a matching field are left alone.
func (c Context) Interpolate(template string) string {
	out := template
	for key, val := range c {
		out = strings.ReplaceAll(out, "{"+key+"}", displayValue(val))
	}
	return out
}

func displayValue(v any) string {
	if list, ok := v.([]string); ok {
		return strings.Join(list, ", ")
	}
	return fmt.Sprintf("%v", v)
}
