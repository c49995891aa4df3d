package models

import "time"

// Recommendation is one ranked suggestion produced by the engine.
type Recommendation struct {
	ID     int64              `json:"id"`
	UserID int64              `json:"userId"`
	Type   RecommendationType `json:"type"`

	ArtistID *int64 `json:"artistId,omitempty"`
	AlbumID  *int64 `json:"albumId,omitempty"`
	TrackID  *int64 `json:"trackId,omitempty"`

	// Catalog identity for items not (yet) in the entity store.
	ArtistName string `json:"artistName,omitempty"`
	AlbumTitle string `json:"albumTitle,omitempty"`
	TrackTitle string `json:"trackTitle,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`

	Category RecommendationCategory `json:"category"`

	Reason        string   `json:"reason,omitempty"`
	ReasonDetails []string `json:"reasonDetails,omitempty"`

	// The library artist/album that justified this suggestion.
	BasedOnArtistID *int64 `json:"basedOnArtistId,omitempty"`
	BasedOnAlbumID  *int64 `json:"basedOnAlbumId,omitempty"`

	Confidence float64 `json:"confidence"` // [0,1]
	Relevance  float64 `json:"relevance"`  // [0,1]
	Novelty    float64 `json:"novelty"`    // [0,1]

	// Per-factor breakdown of the weighted score.
	ScoreFactors map[string]float64 `json:"scoreFactors,omitempty"`

	Shown           bool       `json:"shown"`
	Clicked         bool       `json:"clicked"`
	Dismissed       bool       `json:"dismissed"`
	AddedToWishlist bool       `json:"addedToWishlist"`
	ShownAt         *time.Time `json:"shownAt,omitempty"`
	ClickedAt       *time.Time `json:"clickedAt,omitempty"`
	DismissedAt     *time.Time `json:"dismissedAt,omitempty"`

	PlaylistGroup *string `json:"playlistGroup,omitempty"`

	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
