package models

import "time"

// KnownFormats is the ordered quality ladder recognized in release titles,
// best first.
var KnownFormats = []string{"flac-24", "flac", "320", "v0", "256", "192", "mp3"}

// KnownFormat reports whether f is on the quality ladder.
func KnownFormat(f string) bool {
	for _, k := range KnownFormats {
		if k == f {
			return true
		}
	}
	return false
}

// QualityProfile ranks candidate releases for a user or wishlist item.
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Ordered subset of KnownFormats, most preferred first.
	PreferredFormats []string `json:"preferredFormats"`
	MinQuality       string   `json:"minQuality,omitempty"`

	MaxSizeMB  *int `json:"maxSizeMb,omitempty"`
	MinSeeders int  `json:"minSeeders"`

	ReleaseTypes []ReleaseType `json:"releaseTypes,omitempty"`

	FormatMatchWeight float64 `json:"formatMatchWeight"`
	SeederWeight      float64 `json:"seederWeight"`

	IsDefault bool `json:"isDefault"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
