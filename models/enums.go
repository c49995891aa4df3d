package models

// WishlistStatus tracks a wishlist item through the download pipeline.
type WishlistStatus string

const (
	WishlistWanted      WishlistStatus = "wanted"
	WishlistSearching   WishlistStatus = "searching"
	WishlistFound       WishlistStatus = "found"
	WishlistDownloading WishlistStatus = "downloading"
	WishlistImporting   WishlistStatus = "importing"
	WishlistDownloaded  WishlistStatus = "downloaded"
	WishlistFailed      WishlistStatus = "failed"
)

func (s WishlistStatus) Valid() bool {
	switch s {
	case WishlistWanted, WishlistSearching, WishlistFound, WishlistDownloading,
		WishlistImporting, WishlistDownloaded, WishlistFailed:
		return true
	}
	return false
}

// DownloadStatus is the authoritative pipeline state once a Download exists.
type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadSearching   DownloadStatus = "searching"
	DownloadFound       DownloadStatus = "found"
	DownloadQueued      DownloadStatus = "queued"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadImporting   DownloadStatus = "importing"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
	DownloadCancelled   DownloadStatus = "cancelled"
)

func (s DownloadStatus) Valid() bool {
	switch s {
	case DownloadPending, DownloadSearching, DownloadFound, DownloadQueued,
		DownloadDownloading, DownloadImporting, DownloadCompleted,
		DownloadFailed, DownloadCancelled:
		return true
	}
	return false
}

// Active reports whether the download still occupies a client slot.
func (s DownloadStatus) Active() bool {
	switch s {
	case DownloadQueued, DownloadDownloading, DownloadImporting:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s DownloadStatus) Terminal() bool {
	switch s {
	case DownloadCompleted, DownloadFailed, DownloadCancelled:
		return true
	}
	return false
}

// WishlistStatusFor maps a download status onto the linked wishlist item.
// The downloaded side dominates: once a Download exists its status is
// authoritative and the wishlist shadows it.
func WishlistStatusFor(s DownloadStatus) (WishlistStatus, bool) {
	switch s {
	case DownloadSearching:
		return WishlistSearching, true
	case DownloadFound:
		return WishlistFound, true
	case DownloadQueued, DownloadDownloading:
		return WishlistDownloading, true
	case DownloadImporting:
		return WishlistImporting, true
	case DownloadCompleted:
		return WishlistDownloaded, true
	case DownloadFailed:
		return WishlistFailed, true
	}
	return "", false
}

// Priority orders wishlist processing.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// WishlistType says what kind of thing the user asked for.
type WishlistType string

const (
	WishlistTypeArtist   WishlistType = "artist"
	WishlistTypeAlbum    WishlistType = "album"
	WishlistTypeTrack    WishlistType = "track"
	WishlistTypePlaylist WishlistType = "playlist"
)

func (t WishlistType) Valid() bool {
	switch t {
	case WishlistTypeArtist, WishlistTypeAlbum, WishlistTypeTrack, WishlistTypePlaylist:
		return true
	}
	return false
}

// AlbumType classifies a release group.
type AlbumType string

const (
	AlbumTypeAlbum       AlbumType = "album"
	AlbumTypeSingle      AlbumType = "single"
	AlbumTypeEP          AlbumType = "ep"
	AlbumTypeCompilation AlbumType = "compilation"
)

func (t AlbumType) Valid() bool {
	switch t {
	case AlbumTypeAlbum, AlbumTypeSingle, AlbumTypeEP, AlbumTypeCompilation:
		return true
	}
	return false
}

// ReleaseType classifies how an album was recorded.
type ReleaseType string

const (
	ReleaseTypeStudio     ReleaseType = "studio"
	ReleaseTypeLive       ReleaseType = "live"
	ReleaseTypeRemix      ReleaseType = "remix"
	ReleaseTypeSoundtrack ReleaseType = "soundtrack"
)

// RecommendationCategory groups recommendations by producer.
type RecommendationCategory string

const (
	CategoryDiscoverWeekly RecommendationCategory = "discover_weekly"
	CategoryReleaseRadar   RecommendationCategory = "release_radar"
	CategorySimilarArtists RecommendationCategory = "similar_artists"
	CategoryDeepCuts       RecommendationCategory = "deep_cuts"
	CategoryGenreExplore   RecommendationCategory = "genre_explore"
	CategoryMoodBased      RecommendationCategory = "mood_based"
)

func (c RecommendationCategory) Valid() bool {
	switch c {
	case CategoryDiscoverWeekly, CategoryReleaseRadar, CategorySimilarArtists,
		CategoryDeepCuts, CategoryGenreExplore, CategoryMoodBased:
		return true
	}
	return false
}

// RecommendationType says what entity kind is being recommended.
type RecommendationType string

const (
	RecTypeArtist RecommendationType = "artist"
	RecTypeAlbum  RecommendationType = "album"
	RecTypeTrack  RecommendationType = "track"
)
