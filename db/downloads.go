package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const downloadColumns = `id, wishlist_id, artist_name, album_title, status, status_message,
	release_title, size_bytes, format, quality, seeders, leechers, score,
	indexer_id, indexer_name, guid, protocol, download_url, download_client, download_id,
	progress, download_speed, eta_seconds, download_path, final_path, beets_imported,
	source, started_at, completed_at, created_at, updated_at`

func scanDownload(row interface{ Scan(...any) error }) (*models.Download, error) {
	d := &models.Download{}
	var (
		wishlistID                        sql.NullInt64
		statusMessage, releaseTitle       sql.NullString
		format, quality                   sql.NullString
		indexerName, guid, protocol       sql.NullString
		downloadURL, client, clientID     sql.NullString
		downloadPath, finalPath, source   sql.NullString
		sizeBytes, speed, etaSeconds      sql.NullInt64
		seeders, leechers, indexerID      sql.NullInt64
		score                             sql.NullFloat64
		startedAt, completedAt            sql.NullTime
	)
	err := row.Scan(
		&d.ID, &wishlistID, &d.ArtistName, &d.AlbumTitle, &d.Status, &statusMessage,
		&releaseTitle, &sizeBytes, &format, &quality, &seeders, &leechers, &score,
		&indexerID, &indexerName, &guid, &protocol, &downloadURL, &client, &clientID,
		&d.Progress, &speed, &etaSeconds, &downloadPath, &finalPath, &d.BeetsImported,
		&source, &startedAt, &completedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.WishlistID = nullInt64Ptr(wishlistID)
	d.StatusMessage = nullStringValue(statusMessage)
	d.ReleaseTitle = nullStringValue(releaseTitle)
	d.SizeBytes = nullInt64Value(sizeBytes)
	d.Format = nullStringValue(format)
	d.Quality = nullStringValue(quality)
	d.Seeders = nullIntValue(seeders)
	d.Leechers = nullIntValue(leechers)
	d.Score = nullFloatValue(score)
	d.IndexerID = nullIntValue(indexerID)
	d.IndexerName = nullStringValue(indexerName)
	d.Guid = nullStringValue(guid)
	d.Protocol = nullStringValue(protocol)
	d.DownloadURL = nullStringValue(downloadURL)
	d.DownloadClient = nullStringValue(client)
	d.DownloadID = nullStringValue(clientID)
	d.DownloadSpeed = nullInt64Value(speed)
	d.ETASeconds = nullInt64Value(etaSeconds)
	d.DownloadPath = nullStringValue(downloadPath)
	d.FinalPath = nullStringValue(finalPath)
	d.Source = nullStringValue(source)
	d.StartedAt = nullTimePtr(startedAt)
	d.CompletedAt = nullTimePtr(completedAt)
	return d, nil
}

// CreateDownload inserts a new download row and returns its id.
func (db *DB) CreateDownload(d *models.Download) (int64, error) {
	if d.Status == "" {
		d.Status = models.DownloadPending
	}
	now := time.Now().UTC()
	res, err := db.Exec(`
	INSERT INTO downloads (wishlist_id, artist_name, album_title, status, status_message,
		release_title, size_bytes, format, quality, seeders, leechers, score,
		indexer_id, indexer_name, guid, protocol, download_url, download_client, download_id,
		progress, download_speed, eta_seconds, download_path, final_path, beets_imported,
		source, started_at, completed_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.WishlistID, d.ArtistName, d.AlbumTitle, string(d.Status), d.StatusMessage,
		d.ReleaseTitle, d.SizeBytes, d.Format, d.Quality, d.Seeders, d.Leechers, d.Score,
		d.IndexerID, d.IndexerName, d.Guid, d.Protocol, d.DownloadURL, d.DownloadClient, d.DownloadID,
		d.Progress, d.DownloadSpeed, d.ETASeconds, d.DownloadPath, d.FinalPath, d.BeetsImported,
		d.Source, d.StartedAt, d.CompletedAt, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert download: %w", err)
	}
	return res.LastInsertId()
}

// GetDownload fetches one download by id.
func (db *DB) GetDownload(id int64) (*models.Download, error) {
	d, err := scanDownload(db.QueryRow(`SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("download %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get download %d: %w", id, err)
	}
	return d, nil
}

// ListDownloads returns downloads filtered by status ("" for all), newest first.
func (db *DB) ListDownloads(status models.DownloadStatus, limit, offset int) ([]*models.Download, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = db.Query(`SELECT `+downloadColumns+` FROM downloads
			ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	} else {
		rows, err = db.Query(`SELECT `+downloadColumns+` FROM downloads
			WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, string(status), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()
	return collectDownloads(rows)
}

// DownloadsInStatuses returns every download whose status is in the set,
// oldest first so pollers work through the backlog in order.
func (db *DB) DownloadsInStatuses(statuses ...models.DownloadStatus) ([]*models.Download, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		marks[i] = "?"
		args[i] = string(s)
	}
	rows, err := db.Query(`SELECT `+downloadColumns+` FROM downloads
		WHERE status IN (`+strings.Join(marks, ",")+`) ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("downloads in statuses: %w", err)
	}
	defer rows.Close()
	return collectDownloads(rows)
}

func collectDownloads(rows *sql.Rows) ([]*models.Download, error) {
	var out []*models.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ActiveDownloadCount counts downloads currently occupying a client slot.
func (db *DB) ActiveDownloadCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM downloads WHERE status IN (?, ?, ?)`,
		string(models.DownloadQueued), string(models.DownloadDownloading), string(models.DownloadImporting)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("active download count: %w", err)
	}
	return n, nil
}

// TransitionDownload moves a download to a new status inside one
// transaction, applying any extra mutation and syncing the owning wishlist
// item when the new status maps to a wishlist status. The transition only
// fires when the current status is in allowedFrom; otherwise it reports
// applied=false and leaves everything untouched, which makes repeated poller
// ticks and races between workers harmless.
func (db *DB) TransitionDownload(id int64, allowedFrom []models.DownloadStatus, to models.DownloadStatus, apply func(*models.Download)) (*models.Download, bool, error) {
	var (
		out     *models.Download
		applied bool
	)
	err := db.WithTx(func(tx *sql.Tx) error {
		d, err := scanDownload(tx.QueryRow(`SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return fmt.Errorf("download %d: %w", id, errs.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load download %d: %w", id, err)
		}

		ok := len(allowedFrom) == 0
		for _, s := range allowedFrom {
			if d.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			out = d
			return nil
		}

		d.Status = to
		if apply != nil {
			apply(d)
		}
		d.UpdatedAt = time.Now().UTC()

		_, err = tx.Exec(`
		UPDATE downloads SET status = ?, status_message = ?, download_client = ?, download_id = ?,
			quality = ?, size_bytes = ?, progress = ?, download_speed = ?, eta_seconds = ?,
			download_path = ?, final_path = ?, beets_imported = ?, started_at = ?, completed_at = ?,
			updated_at = ?
		WHERE id = ?`,
			string(d.Status), d.StatusMessage, d.DownloadClient, d.DownloadID,
			d.Quality, d.SizeBytes, d.Progress, d.DownloadSpeed, d.ETASeconds,
			d.DownloadPath, d.FinalPath, d.BeetsImported, d.StartedAt, d.CompletedAt,
			d.UpdatedAt, d.ID)
		if err != nil {
			return fmt.Errorf("update download %d: %w", id, err)
		}

		if d.WishlistID != nil {
			if ws, mapped := models.WishlistStatusFor(d.Status); mapped {
				if d.Status == models.DownloadFailed && d.StatusMessage != "" {
					_, err = tx.Exec(`UPDATE wishlist_items SET status = ?, notes = ?, updated_at = ? WHERE id = ?`,
						string(ws), d.StatusMessage, d.UpdatedAt, *d.WishlistID)
				} else {
					_, err = tx.Exec(`UPDATE wishlist_items SET status = ?, updated_at = ? WHERE id = ?`,
						string(ws), d.UpdatedAt, *d.WishlistID)
				}
				if err != nil {
					return fmt.Errorf("sync wishlist %d: %w", *d.WishlistID, err)
				}
			}
		}

		out = d
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, applied, nil
}

// UpdateDownloadProgress refreshes the live progress columns without
// touching status. Used for in-flight poll updates.
func (db *DB) UpdateDownloadProgress(id int64, progress float64, speed, etaSeconds int64, path string) error {
	_, err := db.Exec(`UPDATE downloads SET progress = ?, download_speed = ?, eta_seconds = ?,
		download_path = ?, updated_at = ? WHERE id = ?`,
		progress, speed, etaSeconds, path, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update download %d progress: %w", id, err)
	}
	return nil
}

// SetDownloadClientID records the client-side identifier (torrent hash or
// sabnzbd nzo id) once the grab resolves it.
func (db *DB) SetDownloadClientID(id int64, client, clientID string) error {
	_, err := db.Exec(`UPDATE downloads SET download_client = ?, download_id = ?, updated_at = ? WHERE id = ?`,
		client, clientID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set download %d client id: %w", id, err)
	}
	return nil
}

// DeleteDownload removes a download record.
func (db *DB) DeleteDownload(id int64) error {
	res, err := db.Exec(`DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete download %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("download %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

// DownloadStatusCounts aggregates downloads per status for the stats page
// and the prometheus gauge refresh.
func (db *DB) DownloadStatusCounts() (map[string]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM downloads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("download status counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
