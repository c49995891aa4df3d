package models

import "time"

// Artist is a catalog or library artist.
type Artist struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	SortName       string  `json:"sortName,omitempty"`
	Disambiguation string  `json:"disambiguation,omitempty"`
	MusicBrainzID  *string `json:"musicbrainzId,omitempty"`
	SpotifyID      *string `json:"spotifyId,omitempty"`
	DiscogsID      *string `json:"discogsId,omitempty"`
	LastfmURL      *string `json:"lastfmUrl,omitempty"`

	Biography     string   `json:"biography,omitempty"`
	Country       string   `json:"country,omitempty"`
	FormedYear    *int     `json:"formedYear,omitempty"`
	DisbandedYear *int     `json:"disbandedYear,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Tags          []string `json:"tags,omitempty"`

	// Aggregated audio features over the artist's tracks.
	MeanDanceability *float64 `json:"meanDanceability,omitempty"`
	MeanEnergy       *float64 `json:"meanEnergy,omitempty"`
	MeanValence      *float64 `json:"meanValence,omitempty"`
	MeanTempo        *float64 `json:"meanTempo,omitempty"`

	SpotifyPopularity *int   `json:"spotifyPopularity,omitempty"`
	LastfmListeners   *int64 `json:"lastfmListeners,omitempty"`
	LastfmPlays       *int64 `json:"lastfmPlays,omitempty"`

	InLibrary      bool    `json:"inLibrary"`
	MediaServerKey *string `json:"mediaServerKey,omitempty"`

	ImageURL      string `json:"imageUrl,omitempty"`
	ThumbURL      string `json:"thumbUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
