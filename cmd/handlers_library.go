package main

import (
	"net/http"
	"time"

	"github.com/vibarr/vibarr/session"
)

func (app *application) handleListArtists(w http.ResponseWriter, r *http.Request) {
	libraryOnly := queryBool(r, "library", true)
	limit, offset := pageParams(r)

	artists, err := app.database.ListArtists(libraryOnly, limit, offset)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"artists": artists,
		"limit":   limit,
		"offset":  offset,
	})
}

func (app *application) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	artist, err := app.database.GetArtist(id)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, artist)
}

func (app *application) handleArtistAlbums(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if _, err := app.database.GetArtist(id); err != nil {
		httpError(w, err)
		return
	}
	albums, err := app.database.ListAlbumsByArtist(id)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"albums": albums})
}

func (app *application) handleListAlbums(w http.ResponseWriter, r *http.Request) {
	libraryOnly := queryBool(r, "library", true)
	limit, offset := pageParams(r)

	albums, err := app.database.ListAlbums(libraryOnly, limit, offset)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"albums": albums,
		"limit":  limit,
		"offset": offset,
	})
}

func (app *application) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	album, err := app.database.GetAlbum(id)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, album)
}

func (app *application) handleAlbumTracks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if _, err := app.database.GetAlbum(id); err != nil {
		httpError(w, err)
		return
	}
	tracks, err := app.database.ListTracksByAlbum(id)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (app *application) handleLibraryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.libraryCounts()
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

func (app *application) libraryCounts() (map[string]int, error) {
	artists, err := app.database.LibraryArtistCount()
	if err != nil {
		return nil, err
	}
	albums, err := app.database.LibraryAlbumCount()
	if err != nil {
		return nil, err
	}
	tracks, err := app.database.LibraryTrackCount()
	if err != nil {
		return nil, err
	}
	return map[string]int{"artists": artists, "albums": albums, "tracks": tracks}, nil
}

func (app *application) handleLibrarySync(w http.ResponseWriter, r *http.Request) {
	if err := app.sched.Enqueue("sync-plex-library"); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, map[string]any{
		"status": "queued",
		"id":     "sync-plex-library",
	})
}

func (app *application) handleLibraryRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	albums, err := app.database.RecentLibraryAlbums(limit)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"albums": albums})
}

func (app *application) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	library, err := app.libraryCounts()
	if err != nil {
		httpError(w, err)
		return
	}
	wishlist, err := app.database.WishlistStatusCounts()
	if err != nil {
		httpError(w, err)
		return
	}
	downloads, err := app.database.DownloadStatusCounts()
	if err != nil {
		httpError(w, err)
		return
	}
	active, err := app.database.ActiveDownloadCount()
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"library":         library,
		"wishlist":        wishlist,
		"downloads":       downloads,
		"activeDownloads": active,
	})
}

// handleListeningStats returns the requesting user's play totals and the
// hour/day histograms behind the peak-time profile.
func (app *application) handleListeningStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := session.GetUserID(r.Context())

	hours, err := app.database.HourHistogram(userID)
	if err != nil {
		httpError(w, err)
		return
	}
	days, err := app.database.DayHistogram(userID)
	if err != nil {
		httpError(w, err)
		return
	}
	plays, artists, albums, tracks, err := app.database.ListeningCounts(userID, time.Time{})
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"hours": hours,
		"days":  days,
		"totals": map[string]int{
			"plays":   plays,
			"artists": artists,
			"albums":  albums,
			"tracks":  tracks,
		},
	})
}
