package models

// CatalogArtist is an external catalog search hit, normalized across
// providers. Source names the provider that produced it.
type CatalogArtist struct {
	Name          string   `json:"name"`
	MusicBrainzID string   `json:"musicbrainz_id,omitempty"`
	SpotifyID     string   `json:"spotify_id,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	URL           string   `json:"url,omitempty"`
	Popularity    int      `json:"popularity,omitempty"`
	Listeners     int64    `json:"listeners,omitempty"`
	Match         float64  `json:"match,omitempty"`
	Source        string   `json:"source"`
}

// CatalogAlbum is a normalized external album search hit or new release.
type CatalogAlbum struct {
	Title         string  `json:"title"`
	ArtistName    string  `json:"artist_name"`
	MusicBrainzID string  `json:"musicbrainz_id,omitempty"`
	SpotifyID     string  `json:"spotify_id,omitempty"`
	AlbumType     string  `json:"album_type,omitempty"`
	ReleaseDate   string  `json:"release_date,omitempty"`
	TotalTracks   int     `json:"total_tracks,omitempty"`
	CoverURL      string  `json:"cover_url,omitempty"`
	URL           string  `json:"url,omitempty"`
	Popularity    int     `json:"popularity,omitempty"`
	Match         float64 `json:"match,omitempty"`
	Source        string  `json:"source"`
}

// CatalogTrack is a normalized external track search hit.
type CatalogTrack struct {
	Title         string         `json:"title"`
	ArtistName    string         `json:"artist_name"`
	AlbumTitle    string         `json:"album_title,omitempty"`
	MusicBrainzID string         `json:"musicbrainz_id,omitempty"`
	SpotifyID     string         `json:"spotify_id,omitempty"`
	ISRC          string         `json:"isrc,omitempty"`
	DurationMS    int64          `json:"duration_ms,omitempty"`
	PreviewURL    string         `json:"preview_url,omitempty"`
	URL           string         `json:"url,omitempty"`
	Popularity    int            `json:"popularity,omitempty"`
	Source        string         `json:"source"`
	Features      *AudioFeatures `json:"features,omitempty"`
}

// PlaylistTrack is one entry pulled from an external playlist URL.
type PlaylistTrack struct {
	ArtistName string `json:"artist_name"`
	TrackTitle string `json:"track_title"`
	AlbumTitle string `json:"album_title,omitempty"`
}
