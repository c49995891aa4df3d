package main

import (
	"net/http"
	"time"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes assembles the handler tree. Everything under /api sits behind the
// JWT middleware except the exempt auth endpoints, which are registered on
// the outer mux where their more specific patterns win.
func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", app.handleRoot)
	mux.HandleFunc("GET /health", app.handleHealth)
	mux.HandleFunc("GET /health/ready", app.handleReadiness)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/downloads", app.handleDownloadSocket)

	mux.HandleFunc("POST /api/auth/login", app.handleLogin)
	mux.HandleFunc("POST /api/auth/register", app.handleRegister)
	mux.HandleFunc("POST /api/auth/setup", app.handleSetup)
	mux.HandleFunc("GET /api/auth/setup-status", app.handleSetupStatus)
	mux.HandleFunc("POST /api/auth/plex/pin", app.handlePlexPin)
	mux.HandleFunc("GET /api/auth/plex/callback", app.handlePlexCallback)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/auth/me", app.handleMe)

	api.HandleFunc("GET /api/search/music", app.handleSearchMusic)
	api.HandleFunc("GET /api/search/releases", app.handleSearchReleases)

	api.HandleFunc("GET /api/artists", app.handleListArtists)
	api.HandleFunc("GET /api/artists/{id}", app.handleGetArtist)
	api.HandleFunc("GET /api/artists/{id}/albums", app.handleArtistAlbums)

	api.HandleFunc("GET /api/albums", app.handleListAlbums)
	api.HandleFunc("GET /api/albums/{id}", app.handleGetAlbum)
	api.HandleFunc("GET /api/albums/{id}/tracks", app.handleAlbumTracks)

	api.HandleFunc("GET /api/library/stats", app.handleLibraryStats)
	api.HandleFunc("POST /api/library/sync", app.handleLibrarySync)
	api.HandleFunc("GET /api/library/recent", app.handleLibraryRecent)

	api.HandleFunc("GET /api/discovery/similar/{artistID}", app.handleSimilarArtists)
	api.HandleFunc("GET /api/discovery/new-releases", app.handleNewReleases)

	api.HandleFunc("GET /api/recommendations", app.handleListRecommendations)
	api.HandleFunc("POST /api/recommendations/refresh", app.handleRefreshRecommendations)
	api.HandleFunc("POST /api/recommendations/{id}/click", app.handleRecommendationClick)
	api.HandleFunc("POST /api/recommendations/{id}/dismiss", app.handleRecommendationDismiss)
	api.HandleFunc("POST /api/recommendations/{id}/wishlist", app.handleRecommendationWishlist)

	api.HandleFunc("GET /api/wishlist", app.handleListWishlist)
	api.HandleFunc("POST /api/wishlist", app.handleCreateWishlistItem)
	api.HandleFunc("PATCH /api/wishlist/{id}", app.handleUpdateWishlistItem)
	api.HandleFunc("DELETE /api/wishlist/{id}", app.handleDeleteWishlistItem)
	api.HandleFunc("POST /api/wishlist/{id}/search", app.handleWishlistSearch)

	api.HandleFunc("GET /api/downloads", app.handleListDownloads)
	api.HandleFunc("GET /api/downloads/active", app.handleActiveDownloads)
	api.HandleFunc("POST /api/downloads/{id}/cancel", app.handleCancelDownload)
	api.HandleFunc("POST /api/downloads/{id}/retry", app.handleRetryDownload)
	api.HandleFunc("DELETE /api/downloads/{id}", app.handleDeleteDownload)

	api.HandleFunc("GET /api/settings", app.handleListSettings)
	api.HandleFunc("PUT /api/settings", app.handlePutSettings)
	api.HandleFunc("GET /api/settings/{key}", app.handleGetSetting)
	api.HandleFunc("GET /api/settings/quality-profiles", app.handleListQualityProfiles)
	api.HandleFunc("POST /api/settings/quality-profiles", app.handleCreateQualityProfile)
	api.HandleFunc("PUT /api/settings/quality-profiles/{id}", app.handleUpdateQualityProfile)
	api.HandleFunc("DELETE /api/settings/quality-profiles/{id}", app.handleDeleteQualityProfile)

	api.HandleFunc("GET /api/stats/overview", app.handleStatsOverview)
	api.HandleFunc("GET /api/stats/listening", app.handleListeningStats)

	api.HandleFunc("GET /api/social/taste", app.handleTaste)
	api.HandleFunc("GET /api/social/compatibility/{userID}", app.handleCompatibility)

	api.HandleFunc("GET /api/automation/rules", app.handleListRules)
	api.HandleFunc("POST /api/automation/rules", app.handleCreateRule)
	api.HandleFunc("PUT /api/automation/rules/{id}", app.handleUpdateRule)
	api.HandleFunc("DELETE /api/automation/rules/{id}", app.handleDeleteRule)
	api.HandleFunc("POST /api/automation/rules/{id}/test", app.handleTestRule)
	api.HandleFunc("GET /api/automation/notifications", app.handleListNotifications)
	api.HandleFunc("POST /api/automation/notifications/{id}/read", app.handleReadNotification)
	api.HandleFunc("POST /api/automation/notifications/read-all", app.handleReadAllNotifications)

	mux.Handle("/api/", app.sessions.Require(api))

	return alice.New(app.recoverPanic, app.logRequest).Then(mux)
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				app.logger.Error("handler panic", "path", r.URL.Path, "panic", p)
				w.Header().Set("Connection", "close")
				jsonError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		app.logger.Debug("request",
			"method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
