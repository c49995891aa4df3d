package models

import "time"

// ListeningEvent is one observed play from the media server. Entity
// references are weak: the target may vanish when a library is cleared.
type ListeningEvent struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"userId"`
	TrackID  *int64 `json:"trackId,omitempty"`
	AlbumID  *int64 `json:"albumId,omitempty"`
	ArtistID *int64 `json:"artistId,omitempty"`

	TrackKey  *string `json:"trackKey,omitempty"`
	AlbumKey  *string `json:"albumKey,omitempty"`
	ArtistKey *string `json:"artistKey,omitempty"`

	PlayedAt        time.Time `json:"playedAt"`
	PlayDurationMs  int64     `json:"playDurationMs,omitempty"`
	TrackDurationMs int64     `json:"trackDurationMs,omitempty"`
	Completion      float64   `json:"completion"` // percentage, 0-100
	Skipped         bool      `json:"skipped"`

	Source string `json:"source,omitempty"`
	Device string `json:"device,omitempty"`
	Player string `json:"player,omitempty"`

	HourOfDay int `json:"hourOfDay"` // 0-23
	DayOfWeek int `json:"dayOfWeek"` // 0-6, Sunday = 0
}

// StampTimeBuckets derives the hour/day columns from PlayedAt.
func (e *ListeningEvent) StampTimeBuckets() {
	e.HourOfDay = e.PlayedAt.Hour()
	e.DayOfWeek = int(e.PlayedAt.Weekday())
}
