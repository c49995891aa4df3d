package models

import "time"

// TasteProfile is a versioned snapshot of a user's listening taste.
type TasteProfile struct {
	ID      int64 `json:"id"`
	UserID  int64 `json:"userId"`
	Version int   `json:"version"`

	TopGenres        map[string]float64 `json:"topGenres,omitempty"`
	PreferredDecades map[int]float64    `json:"preferredDecades,omitempty"`

	MeanFeatures map[string]float64 `json:"meanFeatures,omitempty"`

	TotalPlays   int `json:"totalPlays"`
	TotalArtists int `json:"totalArtists"`
	TotalAlbums  int `json:"totalAlbums"`
	TotalTracks  int `json:"totalTracks"`

	PeakHours []int `json:"peakHours,omitempty"` // 0-23
	PeakDays  []int `json:"peakDays,omitempty"`  // 0-6

	NoveltyPreference float64 `json:"noveltyPreference"` // [0,1]

	// Opaque ML payload: embedding, cluster assignment, evolution history.
	ProfileData *ProfileData `json:"profileData,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ProfileData carries the embedding-derived portion of a taste profile.
type ProfileData struct {
	Embedding         []float64           `json:"embedding,omitempty"`
	EmbeddingSamples  int                 `json:"embeddingSamples,omitempty"`
	Cluster           string              `json:"cluster,omitempty"`
	ClusterConfidence float64             `json:"clusterConfidence,omitempty"`
	Evolution         []EvolutionSnapshot `json:"evolution,omitempty"`
	Trend             string              `json:"trend,omitempty"` // stable, evolving, shifting
	TrendDetails      []FeatureDrift      `json:"trendDetails,omitempty"`
}

// EvolutionSnapshot is one monthly embedding sample. At most the last 12 are
// retained.
type EvolutionSnapshot struct {
	Period     string    `json:"period"` // YYYY-MM
	Embedding  []float64 `json:"embedding"`
	SampleSize int       `json:"sampleSize"`
}

// FeatureDrift reports a per-feature direction for deltas of at least 0.05
// between consecutive evolution periods.
type FeatureDrift struct {
	Feature   string  `json:"feature"`
	Direction string  `json:"direction"` // rising or falling
	Magnitude float64 `json:"magnitude"`
}

// UserPreference is one typed sparse preference row.
type UserPreference struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Kind       string    `json:"kind"` // genre, decade, audio_feature, artist, time_window
	Key        string    `json:"key"`
	Weight     float64   `json:"weight"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
