// Package pipeline is the download state machine. It searches the indexers
// for wishlist items, grabs the best release through a download client,
// polls the clients for progress and hands finished directories to beets.
// Three drivers share it: the hourly process-wishlist job, user-triggered
// searches and the five-minute status poll. Every transition is guarded by
// the current status and persisted atomically, so overlapping drivers
// cannot corrupt a download.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/events"
	"github.com/vibarr/vibarr/metrics"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/pkg/relevance"
	"github.com/vibarr/vibarr/registry"
	"github.com/vibarr/vibarr/scheduler"
	"github.com/vibarr/vibarr/settings"
)

const (
	// grabHashWindow bounds hash resolution right after a Prowlarr grab; the
	// client usually registers the torrent within a second or two.
	grabHashWindow = 2 * time.Second
	// addHashWindow bounds hash resolution after a direct add-URL fallback.
	addHashWindow = 15 * time.Second
	// queuedHashTimeout fails a queued torrent whose hash never resolved.
	queuedHashTimeout = 3 * time.Minute

	// qBittorrent reports this ETA when it has no estimate.
	noETA = 8640000
)

type Pipeline struct {
	db       *db.DB
	clients  *registry.Registry
	settings *settings.Store
	hub      *events.Hub
	logger   *log.Logger

	// When set, imports run on the shared worker pool instead of inline on
	// the polling goroutine.
	submit func(name string, task scheduler.Task) error

	// Shortened in tests.
	grabWindow  time.Duration
	addWindow   time.Duration
	hashPoll    time.Duration
	hashTimeout time.Duration
}

func New(database *db.DB, clients *registry.Registry, store *settings.Store, hub *events.Hub, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "pipeline", ReportTimestamp: true})
	}
	return &Pipeline{
		db:          database,
		clients:     clients,
		settings:    store,
		hub:         hub,
		logger:      logger,
		grabWindow:  grabHashWindow,
		addWindow:   addHashWindow,
		hashTimeout: queuedHashTimeout,
	}
}

// UseSubmitter routes beets imports onto the shared worker pool so the
// status poll is not blocked behind a long tagging run.
func (p *Pipeline) UseSubmitter(fn func(name string, task scheduler.Task) error) {
	p.submit = fn
}

// ProcessWishlist is the hourly job body: run every wanted auto-download
// item through search, high priority first, applying the auto-grab gate to
// each hit.
func (p *Pipeline) ProcessWishlist(ctx context.Context) error {
	items, err := p.db.AutoDownloadCandidates(50)
	if err != nil {
		return err
	}
	var failed int
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := p.SearchWishlistItem(ctx, item.ID, false); err != nil {
			p.logger.Error("wishlist search failed", "wishlist", item.ID, "artist", item.ArtistName, "err", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d wishlist searches failed", failed, len(items))
	}
	return nil
}

// SearchWishlistItem runs one wishlist item through indexer search. A hit
// persists a Download at "found"; no results revert the item to "wanted".
// User-triggered searches always grab the pick; scheduled runs pass it
// through the auto-grab gate first.
func (p *Pipeline) SearchWishlistItem(ctx context.Context, id int64, userTriggered bool) (*models.Download, error) {
	item, err := p.db.GetWishlistItem(id)
	if err != nil {
		return nil, err
	}
	prow := p.clients.Prowlarr()
	if !prow.IsAvailable() {
		return nil, fmt.Errorf("prowlarr: %w", errs.ErrConfigMissing)
	}

	claimed, err := p.db.BeginWishlistSearch(id, item.Status)
	if err != nil {
		return nil, err
	}
	if !claimed {
		p.logger.Debug("wishlist item already claimed", "wishlist", id)
		return nil, nil
	}

	// Track wishes have no album; search on the track title instead.
	albumTitle := item.AlbumTitle
	if albumTitle == "" {
		albumTitle = item.TrackTitle
	}
	format := item.PreferredFormat
	if format == "" {
		format = p.settings.String(settings.KeyPreferredQuality, "flac")
	}

	releases, err := prow.SearchAlbum(ctx, item.ArtistName, albumTitle, format)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		if rErr := p.db.SetWishlistStatus(id, models.WishlistWanted, ""); rErr != nil {
			p.logger.Error("revert to wanted failed", "wishlist", id, "err", rErr)
		}
		return nil, fmt.Errorf("search %s: %w", item.ArtistName, err)
	}
	if len(releases) == 0 {
		metrics.SearchesTotal.WithLabelValues("miss").Inc()
		p.logger.Info("no releases found", "wishlist", id, "artist", item.ArtistName, "album", albumTitle)
		return nil, p.db.SetWishlistStatus(id, models.WishlistWanted, "")
	}
	metrics.SearchesTotal.WithLabelValues("hit").Inc()

	best := releases[0]
	source := "wishlist"
	if userTriggered {
		source = "manual"
	} else if item.Source == "automation" {
		source = "automation"
	}

	d := &models.Download{
		WishlistID:   &item.ID,
		ArtistName:   item.ArtistName,
		AlbumTitle:   albumTitle,
		Status:       models.DownloadFound,
		ReleaseTitle: best.Title,
		SizeBytes:    best.Size,
		Format:       relevance.ParseFormat(best.Title),
		Quality:      best.Quality,
		Seeders:      best.Seeders,
		Leechers:     best.Leechers,
		Score:        best.Score,
		IndexerID:    best.IndexerID,
		IndexerName:  best.Indexer,
		Guid:         best.Guid,
		Protocol:     best.Protocol,
		DownloadURL:  best.DownloadURL,
		Source:       source,
	}
	downloadID, err := p.db.CreateDownload(d)
	if err != nil {
		return nil, err
	}
	d.ID = downloadID
	if err := p.db.SetWishlistStatus(id, models.WishlistFound, ""); err != nil {
		p.logger.Error("wishlist sync failed", "wishlist", id, "err", err)
	}
	metrics.RecordTransition(string(models.DownloadFound))
	p.publish(ctx, d, models.EventStatusChange, "release found: "+best.Title)
	p.logger.Info("release found", "wishlist", id, "release", best.Title,
		"score", fmt.Sprintf("%.1f", best.Score), "protocol", best.Protocol)

	if !userTriggered && !p.autoGrabAllowed(best.Score) {
		return d, nil
	}
	if err := p.Grab(ctx, downloadID); err != nil {
		return nil, err
	}
	return p.db.GetDownload(downloadID)
}

// autoGrabAllowed is the scheduled-run gate: auto downloads must be enabled,
// the pick must clear the confidence threshold and the clients must have a
// free slot.
func (p *Pipeline) autoGrabAllowed(score float64) bool {
	if !p.settings.Bool(settings.KeyAutoDownloadEnabled, false) {
		return false
	}
	threshold := p.settings.Float(settings.KeyAutoDownloadThreshold, 0.85) * 100
	if score < threshold {
		p.logger.Debug("score below auto-grab threshold", "score", score, "threshold", threshold)
		return false
	}
	active, err := p.db.ActiveDownloadCount()
	if err != nil {
		p.logger.Error("active download count failed", "err", err)
		return false
	}
	if limit := p.settings.Int(settings.KeyMaxConcurrent, 3); active >= limit {
		p.logger.Info("auto-grab deferred, clients at capacity", "active", active, "max", limit)
		return false
	}
	return true
}

// Grab pushes a found release into its download client. Usenet goes to
// SABnzbd; torrents try a Prowlarr grab first and fall back to adding the
// download URL directly. The download ends up downloading, queued (added
// but hash not yet known) or failed.
func (p *Pipeline) Grab(ctx context.Context, id int64) error {
	d, err := p.db.GetDownload(id)
	if err != nil {
		return err
	}
	if d.Status != models.DownloadFound {
		return fmt.Errorf("download %d is %s, not %s: %w", id, d.Status, models.DownloadFound, errs.ErrConflict)
	}

	switch d.Protocol {
	case "usenet":
		return p.grabUsenet(ctx, d)
	case "torrent":
		return p.grabTorrent(ctx, d)
	default:
		return p.fail(ctx, d, "unknown protocol "+d.Protocol)
	}
}

func (p *Pipeline) grabUsenet(ctx context.Context, d *models.Download) error {
	sab := p.clients.Sabnzbd()
	if !sab.IsAvailable() {
		metrics.RecordGrab("usenet", false)
		return p.fail(ctx, d, "sabnzbd is not configured")
	}

	category := p.settings.String(settings.KeySabCategory, "music")
	nzoID, err := sab.AddNZBURL(ctx, d.DownloadURL, d.ReleaseTitle, category)
	if err != nil {
		metrics.RecordGrab("usenet", false)
		return p.fail(ctx, d, "sabnzbd add failed: "+err.Error())
	}
	if err := p.db.SetDownloadClientID(d.ID, "sabnzbd", nzoID); err != nil {
		return err
	}
	metrics.RecordGrab("usenet", true)
	return p.markGrabbed(ctx, d.ID, models.DownloadDownloading)
}

func (p *Pipeline) grabTorrent(ctx context.Context, d *models.Download) error {
	qb := p.clients.Qbittorrent()
	prow := p.clients.Prowlarr()
	category := p.settings.String(settings.KeyQbitCategory, "vibarr")

	// Prowlarr forwards to its own configured client, so a successful grab
	// only leaves the torrent's identity to resolve.
	if res, err := prow.Grab(ctx, d.Guid, d.IndexerID); err == nil && res.Success {
		hash := res.DownloadID
		if hash == "" && qb.IsAvailable() {
			hash, _ = qb.FindTorrentHash(ctx, d.ReleaseTitle, category, p.grabWindow, p.hashPoll)
		}
		if hash != "" {
			if err := p.db.SetDownloadClientID(d.ID, "qbittorrent", strings.ToLower(hash)); err != nil {
				return err
			}
			metrics.RecordGrab("torrent", true)
			return p.markGrabbed(ctx, d.ID, models.DownloadDownloading)
		}
		// Identity unknown; fall through to the direct add. Grabbing twice
		// is harmless, the client dedupes on info hash.
	}

	if !qb.IsAvailable() {
		metrics.RecordGrab("torrent", false)
		return p.fail(ctx, d, "no torrent client configured")
	}
	savePath := p.settings.String(settings.KeyQbitIncompletePath, "")
	if err := qb.AddTorrentURL(ctx, d.DownloadURL, category, savePath); err != nil {
		metrics.RecordGrab("torrent", false)
		return p.fail(ctx, d, "qbittorrent add failed: "+err.Error())
	}

	hash, err := qb.FindTorrentHash(ctx, d.ReleaseTitle, category, p.addWindow, p.hashPoll)
	if err != nil {
		// The torrent is in the client but unidentified; the status poll
		// keeps resolving until the queued-hash timeout.
		if err := p.db.SetDownloadClientID(d.ID, "qbittorrent", ""); err != nil {
			return err
		}
		metrics.RecordGrab("torrent", true)
		return p.markGrabbed(ctx, d.ID, models.DownloadQueued)
	}
	if err := p.db.SetDownloadClientID(d.ID, "qbittorrent", strings.ToLower(hash)); err != nil {
		return err
	}
	metrics.RecordGrab("torrent", true)
	return p.markGrabbed(ctx, d.ID, models.DownloadDownloading)
}

// markGrabbed finalizes a successful grab, stamping started_at.
func (p *Pipeline) markGrabbed(ctx context.Context, id int64, to models.DownloadStatus) error {
	now := time.Now().UTC()
	d, applied, err := p.db.TransitionDownload(id, []models.DownloadStatus{models.DownloadFound}, to,
		func(dl *models.Download) { dl.StartedAt = &now })
	if err != nil {
		return err
	}
	if applied {
		metrics.RecordTransition(string(to))
		p.publish(ctx, d, models.EventGrab, "sent to "+d.DownloadClient)
		p.logger.Info("grab succeeded", "download", id, "client", d.DownloadClient, "status", to)
	}
	return nil
}

// PollDownloads is the five-minute job body: refresh every queued or
// downloading item from its client and route completions onward.
func (p *Pipeline) PollDownloads(ctx context.Context) error {
	list, err := p.db.DownloadsInStatuses(models.DownloadQueued, models.DownloadDownloading)
	if err != nil {
		return err
	}
	if active, err := p.db.ActiveDownloadCount(); err == nil {
		metrics.ActiveDownloads.Set(float64(active))
	}

	var failed int
	for _, d := range list {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var err error
		switch d.DownloadClient {
		case "sabnzbd":
			err = p.pollUsenet(ctx, d)
		case "qbittorrent":
			err = p.pollTorrent(ctx, d)
		default:
			err = p.fail(ctx, d, "unknown download client "+d.DownloadClient)
		}
		if err != nil {
			p.logger.Error("poll failed", "download", d.ID, "client", d.DownloadClient, "err", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads errored", failed, len(list))
	}
	return nil
}

func (p *Pipeline) pollUsenet(ctx context.Context, d *models.Download) error {
	sab := p.clients.Sabnzbd()
	if !sab.IsAvailable() {
		return p.fail(ctx, d, "sabnzbd is not configured")
	}

	slot, err := sab.QueueSlot(ctx, d.DownloadID)
	if err != nil {
		// Transient client trouble; the download keeps its status.
		return fmt.Errorf("sabnzbd queue: %w", err)
	}
	if slot != nil {
		if err := p.db.UpdateDownloadProgress(d.ID, slot.Progress(), 0, slot.ETASeconds(), d.DownloadPath); err != nil {
			return err
		}
		d.Progress = slot.Progress()
		p.publish(ctx, d, models.EventProgress, "")
		return nil
	}

	// Out of the queue means finished one way or the other.
	hist, err := sab.HistorySlot(ctx, d.DownloadID)
	if err != nil {
		return fmt.Errorf("sabnzbd history: %w", err)
	}
	switch {
	case hist == nil:
		return p.fail(ctx, d, "download disappeared from sabnzbd")
	case hist.Failed():
		msg := hist.FailMessage
		if msg == "" {
			msg = "sabnzbd reported failure"
		}
		return p.fail(ctx, d, msg)
	case hist.Completed():
		if err := p.db.UpdateDownloadProgress(d.ID, 100, 0, 0, hist.FinalPath()); err != nil {
			return err
		}
		d.DownloadPath = hist.FinalPath()
		return p.finish(ctx, d)
	default:
		// Still unpacking or verifying; check again next tick.
		return nil
	}
}

func (p *Pipeline) pollTorrent(ctx context.Context, d *models.Download) error {
	qb := p.clients.Qbittorrent()
	if !qb.IsAvailable() {
		return p.fail(ctx, d, "qbittorrent is not configured")
	}
	category := p.settings.String(settings.KeyQbitCategory, "vibarr")

	if d.DownloadID == "" {
		hash, err := qb.FindTorrentHash(ctx, d.ReleaseTitle, category, p.grabWindow, p.hashPoll)
		if err != nil {
			if d.StartedAt != nil && time.Since(*d.StartedAt) > p.hashTimeout {
				return p.fail(ctx, d, "hash resolution timed out")
			}
			return nil
		}
		if err := p.db.SetDownloadClientID(d.ID, "qbittorrent", strings.ToLower(hash)); err != nil {
			return err
		}
		d.DownloadID = strings.ToLower(hash)
	}

	t, err := qb.Torrent(ctx, d.DownloadID)
	if err != nil {
		return fmt.Errorf("qbittorrent info: %w", err)
	}
	if t == nil {
		return p.fail(ctx, d, "torrent removed from client")
	}
	if t.Errored() {
		return p.fail(ctx, d, "client reported state "+t.State)
	}

	if t.Complete() {
		if err := p.db.UpdateDownloadProgress(d.ID, 100, 0, 0, t.Path()); err != nil {
			return err
		}
		d.DownloadPath = t.Path()
		if p.settings.Bool(settings.KeyQbitRemoveCompleted, false) {
			// Keep the payload on disk, beets still needs it.
			if err := qb.Delete(ctx, d.DownloadID, false); err != nil {
				p.logger.Warn("completed torrent removal failed", "download", d.ID, "err", err)
			}
		}
		return p.finish(ctx, d)
	}

	if d.Status == models.DownloadQueued {
		updated, applied, err := p.db.TransitionDownload(d.ID,
			[]models.DownloadStatus{models.DownloadQueued}, models.DownloadDownloading, nil)
		if err != nil {
			return err
		}
		if applied {
			metrics.RecordTransition(string(models.DownloadDownloading))
			p.publish(ctx, updated, models.EventStatusChange, "")
			d.Status = models.DownloadDownloading
		}
	}

	eta := t.ETA
	if eta >= noETA {
		eta = 0
	}
	if err := p.db.UpdateDownloadProgress(d.ID, t.Progress*100, t.DLSpeed, eta, t.Path()); err != nil {
		return err
	}
	d.Progress = t.Progress * 100
	p.publish(ctx, d, models.EventProgress, "")
	return nil
}

// finish routes a completed client download: into beets when auto-import is
// on, straight to completed otherwise.
func (p *Pipeline) finish(ctx context.Context, d *models.Download) error {
	fromActive := []models.DownloadStatus{models.DownloadQueued, models.DownloadDownloading}

	if !p.clients.Beets().IsAvailable() || !p.settings.Bool(settings.KeyBeetsAutoImport, true) {
		now := time.Now().UTC()
		updated, applied, err := p.db.TransitionDownload(d.ID, fromActive, models.DownloadCompleted,
			func(dl *models.Download) {
				dl.Progress = 100
				dl.CompletedAt = &now
			})
		if err != nil {
			return err
		}
		if applied {
			metrics.RecordTransition(string(models.DownloadCompleted))
			p.publish(ctx, updated, models.EventStatusChange, "download complete")
			p.logger.Info("download complete", "download", d.ID, "release", d.ReleaseTitle, "path", updated.DownloadPath)
		}
		return nil
	}

	updated, applied, err := p.db.TransitionDownload(d.ID, fromActive, models.DownloadImporting,
		func(dl *models.Download) { dl.Progress = 100 })
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	metrics.RecordTransition(string(models.DownloadImporting))
	p.publish(ctx, updated, models.EventStatusChange, "importing into library")

	if p.submit != nil {
		return p.submit(fmt.Sprintf("import-download-%d", d.ID), func(ctx context.Context) error {
			return p.ImportDownload(ctx, d.ID)
		})
	}
	return p.ImportDownload(ctx, d.ID)
}

// ImportDownload runs beets over a finished download's directory and records
// where the music ended up.
func (p *Pipeline) ImportDownload(ctx context.Context, id int64) error {
	d, err := p.db.GetDownload(id)
	if err != nil {
		return err
	}
	if d.Status != models.DownloadImporting {
		return fmt.Errorf("download %d is %s, not %s: %w", id, d.Status, models.DownloadImporting, errs.ErrConflict)
	}

	move := p.settings.Bool(settings.KeyBeetsMoveFiles, true)
	res := p.clients.Beets().ImportDirectory(ctx, d.DownloadPath, d.ArtistName, d.AlbumTitle, move)
	if !res.Success {
		metrics.RecordImport(false)
		return p.fail(ctx, d, "beets import failed: "+res.Err)
	}

	now := time.Now().UTC()
	updated, applied, err := p.db.TransitionDownload(id,
		[]models.DownloadStatus{models.DownloadImporting}, models.DownloadCompleted,
		func(dl *models.Download) {
			dl.FinalPath = res.FinalPath
			dl.BeetsImported = true
			dl.CompletedAt = &now
			dl.StatusMessage = fmt.Sprintf("imported %d albums, %d tracks", res.AlbumsImported, res.TracksImported)
		})
	if err != nil {
		return err
	}
	if applied {
		metrics.RecordImport(true)
		metrics.RecordTransition(string(models.DownloadCompleted))
		p.publish(ctx, updated, models.EventImport, updated.StatusMessage)
		p.logger.Info("import complete", "download", id, "path", res.FinalPath,
			"albums", res.AlbumsImported, "tracks", res.TracksImported)
	}

	if d.DownloadClient == "sabnzbd" && p.settings.Bool(settings.KeySabRemoveCompleted, false) {
		if err := p.clients.Sabnzbd().DeleteHistory(ctx, d.DownloadID, true); err != nil {
			p.logger.Warn("sabnzbd history cleanup failed", "download", id, "err", err)
		}
	}
	return nil
}

// CancelDownload aborts a download from any non-terminal state, removing it
// from the client along with any partial data. The wish reverts to wanted
// so a later search can try a different release.
func (p *Pipeline) CancelDownload(ctx context.Context, id int64) error {
	d, err := p.db.GetDownload(id)
	if err != nil {
		return err
	}
	if d.Status.Terminal() {
		return fmt.Errorf("download %d already %s: %w", id, d.Status, errs.ErrConflict)
	}

	if d.DownloadID != "" {
		switch d.DownloadClient {
		case "qbittorrent":
			if err := p.clients.Qbittorrent().Delete(ctx, d.DownloadID, true); err != nil {
				p.logger.Warn("cancel could not remove torrent", "download", id, "err", err)
			}
		case "sabnzbd":
			if err := p.clients.Sabnzbd().Delete(ctx, d.DownloadID, true); err != nil {
				p.logger.Warn("cancel could not remove nzb", "download", id, "err", err)
			}
		}
	}

	updated, applied, err := p.db.TransitionDownload(id, nil, models.DownloadCancelled,
		func(dl *models.Download) { dl.StatusMessage = "cancelled by user" })
	if err != nil {
		return err
	}
	if applied {
		metrics.RecordTransition(string(models.DownloadCancelled))
		p.publish(ctx, updated, models.EventStatusChange, "cancelled")
	}
	if d.WishlistID != nil {
		if err := p.db.SetWishlistStatus(*d.WishlistID, models.WishlistWanted, ""); err != nil {
			p.logger.Error("cancel could not revert wishlist", "wishlist", *d.WishlistID, "err", err)
		}
	}
	return nil
}

// RetryDownload re-grabs a failed or cancelled download using the release
// already on file.
func (p *Pipeline) RetryDownload(ctx context.Context, id int64) error {
	updated, applied, err := p.db.TransitionDownload(id,
		[]models.DownloadStatus{models.DownloadFailed, models.DownloadCancelled}, models.DownloadFound,
		func(dl *models.Download) {
			dl.StatusMessage = ""
			dl.Progress = 0
			dl.DownloadSpeed = 0
			dl.ETASeconds = 0
			dl.DownloadClient = ""
			dl.DownloadID = ""
			dl.StartedAt = nil
			dl.CompletedAt = nil
		})
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("download %d not retryable: %w", id, errs.ErrConflict)
	}
	metrics.RecordTransition(string(models.DownloadFound))
	p.publish(ctx, updated, models.EventStatusChange, "retrying")
	return p.Grab(ctx, id)
}

// fail moves a download to failed, recording the reason on the download and
// the linked wishlist item. The returned error carries the same reason so
// job runs surface it.
func (p *Pipeline) fail(ctx context.Context, d *models.Download, msg string) error {
	updated, applied, err := p.db.TransitionDownload(d.ID, nil, models.DownloadFailed,
		func(dl *models.Download) { dl.StatusMessage = msg })
	if err != nil {
		return fmt.Errorf("mark download %d failed: %w", d.ID, err)
	}
	if applied {
		metrics.RecordTransition(string(models.DownloadFailed))
		p.publish(ctx, updated, models.EventStatusChange, msg)
	}
	p.logger.Warn("download failed", "download", d.ID, "release", d.ReleaseTitle, "reason", msg)
	return fmt.Errorf("download %d failed: %s", d.ID, msg)
}

func (p *Pipeline) publish(ctx context.Context, d *models.Download, typ models.DownloadEventType, msg string) {
	p.hub.PublishEvent(ctx, models.DownloadEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		DownloadID: d.ID,
		WishlistID: d.WishlistID,
		Status:     d.Status,
		Progress:   d.Progress,
		Message:    msg,
		At:         time.Now().UTC(),
	})
}
