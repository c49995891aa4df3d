package models

import "time"

// Track is a catalog or library track.
type Track struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AlbumID     int64  `json:"albumId"`
	DiscNumber  int    `json:"discNumber,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`

	MusicBrainzID *string `json:"musicbrainzId,omitempty"`
	SpotifyID     *string `json:"spotifyId,omitempty"`
	ISRC          *string `json:"isrc,omitempty"`

	DurationMs int64 `json:"durationMs,omitempty"`

	Features *AudioFeatures `json:"features,omitempty"`

	SpotifyPopularity *int `json:"spotifyPopularity,omitempty"`

	InLibrary      bool    `json:"inLibrary"`
	MediaServerKey *string `json:"mediaServerKey,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AudioFeatures is the full per-track feature vector. Scalars are in [0,1]
// except Tempo (BPM) and Loudness (dB).
type AudioFeatures struct {
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"timeSignature"`
}
