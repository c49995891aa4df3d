package models

import "time"

// WishlistItem is a declarative "I want this" the pipeline works to satisfy.
type WishlistItem struct {
	ID   int64        `json:"id"`
	Type WishlistType `json:"type"`

	ArtistID   *int64 `json:"artistId,omitempty"`
	AlbumID    *int64 `json:"albumId,omitempty"`
	ArtistName string `json:"artistName,omitempty"`
	AlbumTitle string `json:"albumTitle,omitempty"`
	TrackTitle string `json:"trackTitle,omitempty"`

	MusicBrainzID *string `json:"musicbrainzId,omitempty"`
	SpotifyID     *string `json:"spotifyId,omitempty"`

	Status   WishlistStatus `json:"status"`
	Priority Priority       `json:"priority"`

	// Where the wish came from: manual, recommendation, automation,
	// release_radar.
	Source     string   `json:"source,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	PreferredFormat string `json:"preferredFormat,omitempty"`
	AutoDownload    bool   `json:"autoDownload"`

	// Items created by import_playlist_url share a group id.
	PlaylistGroup *string `json:"playlistGroup,omitempty"`

	Notes string `json:"notes,omitempty"`

	LastSearchedAt *time.Time `json:"lastSearchedAt,omitempty"`
	SearchCount    int        `json:"searchCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
