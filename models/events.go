package models

import (
	"encoding/json"
	"time"
)

// DownloadEventType tags the payloads published on the download_updates
// channel.
type DownloadEventType string

const (
	EventStatusChange DownloadEventType = "status_change"
	EventProgress     DownloadEventType = "progress"
	EventGrab         DownloadEventType = "grab"
	EventImport       DownloadEventType = "import"
	EventNotification DownloadEventType = "notification"
)

// DownloadEvent is the JSON payload pushed to connected clients for every
// pipeline state change.
type DownloadEvent struct {
	ID         string            `json:"id"`
	Type       DownloadEventType `json:"type"`
	DownloadID int64             `json:"downloadId,omitempty"`
	WishlistID *int64            `json:"wishlistId,omitempty"`
	Status     DownloadStatus    `json:"status,omitempty"`
	Progress   float64           `json:"progress,omitempty"`
	Message    string            `json:"message,omitempty"`
	At         time.Time         `json:"at"`
}

// Encode renders the event as the JSON string sent over the wire.
func (e DownloadEvent) Encode() string {
	b, err := json.Marshal(e)
	if err != nil {
		return `{"type":"status_change"}`
	}
	return string(b)
}

// Notification is a persisted record of a send_notification rule action.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"userId,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
