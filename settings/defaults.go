package settings

// Setting keys. Names are stable: the HTTP settings API exposes them as-is
// and integrations key their rebuild triggers on them.
const (
	KeySpotifyClientID     = "spotify_client_id"
	KeySpotifyClientSecret = "spotify_client_secret"
	KeyLastFMAPIKey        = "lastfm_api_key"
	KeyLastFMSharedSecret  = "lastfm_shared_secret"
	KeyPlexURL             = "plex_url"
	KeyPlexToken           = "plex_token"
	KeyProwlarrURL         = "prowlarr_url"
	KeyProwlarrAPIKey      = "prowlarr_api_key"
	KeyProwlarrMinMatch    = "prowlarr_min_title_match_score"

	KeyQbitURL             = "qbittorrent_url"
	KeyQbitUsername        = "qbittorrent_username"
	KeyQbitPassword        = "qbittorrent_password"
	KeyQbitCategory        = "qbittorrent_category"
	KeyQbitCategories      = "qbittorrent_categories"
	KeyQbitIncompletePath  = "qbittorrent_incomplete_path"
	KeyQbitCompletedPath   = "qbittorrent_completed_path"
	KeyQbitRemoveCompleted = "qbittorrent_remove_completed"

	KeySabEnabled         = "sabnzbd_enabled"
	KeySabURL             = "sabnzbd_url"
	KeySabAPIKey          = "sabnzbd_api_key"
	KeySabCategory        = "sabnzbd_category"
	KeySabRemoveCompleted = "sabnzbd_remove_completed"

	KeyBeetsEnabled     = "beets_enabled"
	KeyBeetsExecutable  = "beets_executable"
	KeyBeetsConfigPath  = "beets_config_path"
	KeyBeetsLibraryPath = "beets_library_path"
	KeyBeetsAutoImport  = "beets_auto_import"
	KeyBeetsMoveFiles   = "beets_move_files"

	KeyAutoDownloadEnabled   = "auto_download_enabled"
	KeyAutoDownloadThreshold = "auto_download_confidence_threshold"
	KeyPreferredQuality      = "preferred_quality"
	KeyMaxConcurrent         = "max_concurrent_downloads"
	KeyDownloadPath          = "download_path"
	KeyCompletedPath         = "completed_download_path"

	KeyMLProfilingEnabled  = "ml_profiling_enabled"
	KeyEmbeddingHalfLife   = "taste_embedding_half_life_days"
	KeyArtistHalfLife      = "recommendation_artist_half_life_days"
	KeyGenreHalfLife       = "recommendation_genre_half_life_days"
	KeyRegistrationEnabled = "registration_enabled"
	KeyMaxUsers            = "max_users"

	KeyDeezerEnabled = "deezer_enabled"
	KeyYTMusicURL    = "ytmusic_url"
	KeyAudioDBAPIKey = "audiodb_api_key"
)

// Defaults seeds first-run values. Empty strings mark integrations that stay
// unavailable until the operator fills them in.
func Defaults() map[string]string {
	return map[string]string{
		KeySpotifyClientID:     "",
		KeySpotifyClientSecret: "",
		KeyLastFMAPIKey:        "",
		KeyLastFMSharedSecret:  "",
		KeyPlexURL:             "",
		KeyPlexToken:           "",
		KeyProwlarrURL:         "",
		KeyProwlarrAPIKey:      "",
		KeyProwlarrMinMatch:    "0.6",

		KeyQbitURL:             "",
		KeyQbitUsername:        "",
		KeyQbitPassword:        "",
		KeyQbitCategory:        "vibarr",
		KeyQbitCategories:      "",
		KeyQbitIncompletePath:  "",
		KeyQbitCompletedPath:   "",
		KeyQbitRemoveCompleted: "false",

		KeySabEnabled:         "false",
		KeySabURL:             "",
		KeySabAPIKey:          "",
		KeySabCategory:        "music",
		KeySabRemoveCompleted: "false",

		KeyBeetsEnabled:     "false",
		KeyBeetsExecutable:  "beet",
		KeyBeetsConfigPath:  "",
		KeyBeetsLibraryPath: "",
		KeyBeetsAutoImport:  "true",
		KeyBeetsMoveFiles:   "true",

		KeyAutoDownloadEnabled:   "false",
		KeyAutoDownloadThreshold: "0.85",
		KeyPreferredQuality:      "flac",
		KeyMaxConcurrent:         "3",
		KeyDownloadPath:          "/downloads",
		KeyCompletedPath:         "/downloads/complete",

		KeyMLProfilingEnabled:  "true",
		KeyEmbeddingHalfLife:   "21",
		KeyArtistHalfLife:      "14",
		KeyGenreHalfLife:       "21",
		KeyRegistrationEnabled: "true",
		KeyMaxUsers:            "0",

		KeyDeezerEnabled: "true",
		KeyYTMusicURL:    "",
		KeyAudioDBAPIKey: "2",
	}
}
