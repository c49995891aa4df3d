package main

import (
	"context"
	"net/http"

	"github.com/vibarr/vibarr/models"
)

func (app *application) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	status := models.DownloadStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown download status")
		return
	}
	limit, offset := pageParams(r)

	downloads, err := app.database.ListDownloads(status, limit, offset)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"downloads": downloads,
		"limit":     limit,
		"offset":    offset,
	})
}

func (app *application) handleActiveDownloads(w http.ResponseWriter, r *http.Request) {
	downloads, err := app.database.DownloadsInStatuses(
		models.DownloadQueued, models.DownloadDownloading, models.DownloadImporting)
	if err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"downloads": downloads})
}

// handleCancelDownload asks the pipeline to stop one download. The client
// call can block on a slow download client, so it runs on a worker.
func (app *application) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if _, err := app.database.GetDownload(id); err != nil {
		httpError(w, err)
		return
	}

	task := func(ctx context.Context) error {
		return app.pipe.CancelDownload(ctx, id)
	}
	if err := app.sched.Submit("download-cancel", task); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, map[string]any{
		"status": "cancelling",
		"id":     id,
	})
}

func (app *application) handleRetryDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	if _, err := app.database.GetDownload(id); err != nil {
		httpError(w, err)
		return
	}

	task := func(ctx context.Context) error {
		return app.pipe.RetryDownload(ctx, id)
	}
	if err := app.sched.Submit("download-retry", task); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusAccepted, map[string]any{
		"status": "retrying",
		"id":     id,
	})
}

// handleDeleteDownload drops the record. Active downloads must be cancelled
// first so the client slot is actually released.
func (app *application) handleDeleteDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpError(w, err)
		return
	}
	download, err := app.database.GetDownload(id)
	if err != nil {
		httpError(w, err)
		return
	}
	if download.Status.Active() {
		jsonError(w, http.StatusConflict, "cancel the download before deleting it")
		return
	}
	if err := app.database.DeleteDownload(id); err != nil {
		httpError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}
