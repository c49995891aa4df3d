package models

import "time"

// User is an account on this instance.
type User struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Email        *string `json:"email,omitempty"`
	PasswordHash string  `json:"-"`
	IsAdmin      bool    `json:"isAdmin"`

	MediaServerUsername *string `json:"mediaServerUsername,omitempty"`
	MediaServerToken    *string `json:"-"`

	// Privacy flags for the social surface.
	ShareListening bool `json:"shareListening"`
	ShareTaste     bool `json:"shareTaste"`

	// Cached taste summary, refreshed by the taste-profile job.
	TasteCluster        *string   `json:"tasteCluster,omitempty"`
	TasteTags           []string  `json:"tasteTags,omitempty"`
	CompatibilityVector []float64 `json:"-"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
