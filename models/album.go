package models

import "time"

// Album is a catalog or library album.
type Album struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	ArtistID int64  `json:"artistId"`

	AlbumType   AlbumType   `json:"albumType,omitempty"`
	ReleaseType ReleaseType `json:"releaseType,omitempty"`

	MusicBrainzReleaseGroupID *string `json:"musicbrainzReleaseGroupId,omitempty"`
	MusicBrainzReleaseID      *string `json:"musicbrainzReleaseId,omitempty"`
	SpotifyID                 *string `json:"spotifyId,omitempty"`
	DiscogsID                 *string `json:"discogsId,omitempty"`

	ReleaseDate   *time.Time `json:"releaseDate,omitempty"`
	ReleaseYear   *int       `json:"releaseYear,omitempty"`
	Label         string     `json:"label,omitempty"`
	CatalogNumber string     `json:"catalogNumber,omitempty"`
	Country       string     `json:"country,omitempty"`

	TotalTracks     int `json:"totalTracks,omitempty"`
	TotalDiscs      int `json:"totalDiscs,omitempty"`
	DurationSeconds int `json:"durationSeconds,omitempty"`

	MeanDanceability *float64 `json:"meanDanceability,omitempty"`
	MeanEnergy       *float64 `json:"meanEnergy,omitempty"`
	MeanValence      *float64 `json:"meanValence,omitempty"`
	MeanTempo        *float64 `json:"meanTempo,omitempty"`

	SpotifyPopularity *int `json:"spotifyPopularity,omitempty"`

	InLibrary      bool    `json:"inLibrary"`
	MediaServerKey *string `json:"mediaServerKey,omitempty"`

	// Set for library items only, read from file metadata.
	Format     string `json:"format,omitempty"`
	Bitrate    *int   `json:"bitrate,omitempty"`
	SampleRate *int   `json:"sampleRate,omitempty"`
	BitDepth   *int   `json:"bitDepth,omitempty"`

	CoverURL string `json:"coverUrl,omitempty"`
	ThumbURL string `json:"thumbUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
