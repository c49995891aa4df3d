package models

import "time"

// Download is one dispatched release working its way through a download
// client. It holds a weak reference to the wishlist item that spawned it.
type Download struct {
	ID         int64  `json:"id"`
	WishlistID *int64 `json:"wishlistId,omitempty"`

	ArtistName string `json:"artistName"`
	AlbumTitle string `json:"albumTitle"`

	Status        DownloadStatus `json:"status"`
	StatusMessage string         `json:"statusMessage,omitempty"`

	// Release metadata captured from the indexer at grab time.
	ReleaseTitle string  `json:"releaseTitle,omitempty"`
	SizeBytes    int64   `json:"sizeBytes,omitempty"`
	Format       string  `json:"format,omitempty"`
	Quality      string  `json:"quality,omitempty"`
	Seeders      int     `json:"seeders,omitempty"`
	Leechers     int     `json:"leechers,omitempty"`
	Score        float64 `json:"score,omitempty"`

	IndexerID   int    `json:"indexerId,omitempty"`
	IndexerName string `json:"indexerName,omitempty"`
	Guid        string `json:"guid,omitempty"`
	Protocol    string `json:"protocol,omitempty"` // torrent or usenet
	DownloadURL string `json:"-"`

	// Client-side identity: torrent hash or SABnzbd nzo id.
	DownloadClient string `json:"downloadClient,omitempty"`
	DownloadID     string `json:"downloadId,omitempty"`

	Progress      float64 `json:"progress"` // 0-100
	DownloadSpeed int64   `json:"downloadSpeed,omitempty"`
	ETASeconds    int64   `json:"etaSeconds,omitempty"`
	DownloadPath  string  `json:"downloadPath,omitempty"`

	FinalPath     string `json:"finalPath,omitempty"`
	BeetsImported bool   `json:"beetsImported"`

	// manual, auto, wishlist, automation.
	Source string `json:"source,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
