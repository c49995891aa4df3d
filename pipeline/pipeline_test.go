package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/events"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/registry"
	"github.com/vibarr/vibarr/service/qbittorrent"
	"github.com/vibarr/vibarr/service/sabnzbd"
	"github.com/vibarr/vibarr/settings"
)

// indexerRelease is the wire shape Prowlarr returns from /api/v1/search.
type indexerRelease struct {
	Guid        string `json:"guid"`
	IndexerID   int    `json:"indexerId"`
	Indexer     string `json:"indexer"`
	Title       string `json:"title"`
	Size        int64  `json:"size"`
	Seeders     int    `json:"seeders"`
	Leechers    int    `json:"leechers"`
	Protocol    string `json:"protocol"`
	DownloadURL string `json:"downloadUrl"`
}

// fakeIndexer plays Prowlarr: seeded search results, switchable grab
// behavior.
type fakeIndexer struct {
	srv *httptest.Server

	mu       sync.Mutex
	results  []indexerRelease
	grabID   string
	grabFail bool
	grabs    int
}

func newFakeIndexer(t *testing.T) *fakeIndexer {
	t.Helper()
	f := &fakeIndexer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodPost {
			f.grabs++
			if f.grabFail {
				http.Error(w, `{"message":"no download client"}`, http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"downloadId": f.grabID})
			return
		}
		json.NewEncoder(w).Encode(f.results)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIndexer) setResults(rels ...indexerRelease) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = rels
}

func (f *fakeIndexer) setGrabID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grabID = id
}

func (f *fakeIndexer) failGrabs() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grabFail = true
}

func (f *fakeIndexer) grabCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grabs
}

// fakeTorrentClient plays the qBittorrent WebUI. The torrent list is seeded
// by tests; adds and deletes are recorded.
type fakeTorrentClient struct {
	srv *httptest.Server

	mu       sync.Mutex
	torrents []qbittorrent.Torrent
	added    []url.Values
	deleted  []url.Values
}

func newFakeTorrentClient(t *testing.T) *fakeTorrentClient {
	t.Helper()
	f := &fakeTorrentClient{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Ok.")
	})
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := f.torrents
		if hashes := r.URL.Query().Get("hashes"); hashes != "" {
			list = nil
			for _, tor := range f.torrents {
				if tor.Hash == hashes {
					list = append(list, tor)
				}
			}
		}
		json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.added = append(f.added, url.Values(r.MultipartForm.Value))
		f.mu.Unlock()
		io.WriteString(w, "Ok.")
	})
	mux.HandleFunc("/api/v2/torrents/delete", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PostForm)
		f.mu.Unlock()
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTorrentClient) setTorrents(torrents ...qbittorrent.Torrent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torrents = torrents
}

func (f *fakeTorrentClient) addedForms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values{}, f.added...)
}

func (f *fakeTorrentClient) deletedForms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values{}, f.deleted...)
}

// fakeUsenetClient plays SABnzbd; everything funnels through /api
// discriminated by mode.
type fakeUsenetClient struct {
	srv *httptest.Server

	mu      sync.Mutex
	addFail bool
	adds    []url.Values
	queue   []sabnzbd.QueueSlot
	history []sabnzbd.HistorySlot
	deletes []url.Values
}

func newFakeUsenetClient(t *testing.T) *fakeUsenetClient {
	t.Helper()
	f := &fakeUsenetClient{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.mu.Lock()
		defer f.mu.Unlock()
		switch q.Get("mode") {
		case "addurl":
			f.adds = append(f.adds, q)
			if f.addFail {
				json.NewEncoder(w).Encode(map[string]any{"status": false, "error": "invalid nzb"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"status": true, "nzo_ids": []string{"SABnzbd_nzo_p1x"}})
		case "queue":
			if q.Get("name") == "delete" {
				f.deletes = append(f.deletes, q)
				io.WriteString(w, `{"status":true}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"queue": map[string]any{"slots": f.queue}})
		case "history":
			if q.Get("name") == "delete" {
				f.deletes = append(f.deletes, q)
				io.WriteString(w, `{"status":true}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"history": map[string]any{"slots": f.history}})
		default:
			io.WriteString(w, `{}`)
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUsenetClient) failAdds() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addFail = true
}

func (f *fakeUsenetClient) setQueue(slots ...sabnzbd.QueueSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = slots
}

func (f *fakeUsenetClient) setHistory(slots ...sabnzbd.HistorySlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = slots
}

func (f *fakeUsenetClient) addForms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values{}, f.adds...)
}

func (f *fakeUsenetClient) deleteForms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values{}, f.deletes...)
}

type harness struct {
	db      *db.DB
	store   *settings.Store
	pipe    *Pipeline
	indexer *fakeIndexer
	torrent *fakeTorrentClient
	usenet  *fakeUsenetClient
}

func setup(t *testing.T) *harness {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	logger := log.New(io.Discard)
	store, err := settings.New(database, logger)
	require.NoError(t, err)

	h := &harness{
		db:      database,
		store:   store,
		indexer: newFakeIndexer(t),
		torrent: newFakeTorrentClient(t),
		usenet:  newFakeUsenetClient(t),
	}
	require.NoError(t, store.SetMany(map[string]string{
		settings.KeyProwlarrURL:    h.indexer.srv.URL,
		settings.KeyProwlarrAPIKey: "test-key",
		settings.KeyQbitURL:        h.torrent.srv.URL,
		settings.KeySabEnabled:     "true",
		settings.KeySabURL:         h.usenet.srv.URL,
		settings.KeySabAPIKey:      "sab-key",
	}))

	reg := registry.New(store, logger)
	h.pipe = New(database, reg, store, events.NewHub(nil, logger), logger)
	h.pipe.grabWindow = 200 * time.Millisecond
	h.pipe.addWindow = 400 * time.Millisecond
	h.pipe.hashPoll = 20 * time.Millisecond
	return h
}

func (h *harness) addWish(t *testing.T, artist, album string) int64 {
	t.Helper()
	id, err := h.db.CreateWishlistItem(&models.WishlistItem{
		Type:         models.WishlistTypeAlbum,
		ArtistName:   artist,
		AlbumTitle:   album,
		AutoDownload: true,
	})
	require.NoError(t, err)
	return id
}

func (h *harness) addActiveDownload(t *testing.T, wishID int64, client, clientID string) int64 {
	t.Helper()
	started := time.Now().UTC().Add(-time.Minute)
	d := &models.Download{
		ArtistName:     "Seeded",
		AlbumTitle:     "Album",
		Status:         models.DownloadDownloading,
		ReleaseTitle:   "Seeded - Album [FLAC]",
		Protocol:       "torrent",
		DownloadClient: client,
		DownloadID:     clientID,
		StartedAt:      &started,
	}
	if wishID != 0 {
		d.WishlistID = &wishID
	}
	if client == "sabnzbd" {
		d.Protocol = "usenet"
	}
	id, err := h.db.CreateDownload(d)
	require.NoError(t, err)
	return id
}

func torrentRelease(title string, seeders int) indexerRelease {
	return indexerRelease{
		Guid:        "guid-" + title,
		IndexerID:   7,
		Indexer:     "redarr",
		Title:       title,
		Size:        600 << 20,
		Seeders:     seeders,
		Leechers:    3,
		Protocol:    "torrent",
		DownloadURL: "http://indexer.example/dl/" + url.PathEscape(title) + ".torrent",
	}
}

func TestScheduledSearchStopsAtFoundWhenAutoGrabOff(t *testing.T) {
	h := setup(t)
	id := h.addWish(t, "Daft Punk", "Discovery")
	h.indexer.setResults(
		torrentRelease("Daft Punk - Discovery (2001) [FLAC]", 80),
		torrentRelease("Totally Unrelated Compilation", 900),
	)

	d, err := h.pipe.SearchWishlistItem(context.Background(), id, false)
	require.NoError(t, err)
	require.NotNil(t, d)

	// The gate-passing release must win over the high-seed wrong album.
	assert.Equal(t, models.DownloadFound, d.Status)
	assert.Equal(t, "Daft Punk - Discovery (2001) [FLAC]", d.ReleaseTitle)
	assert.Equal(t, "flac", d.Quality)
	assert.Greater(t, d.Score, 90.0)
	assert.Equal(t, "wishlist", d.Source)

	// auto_download_enabled defaults off, so nothing was grabbed.
	assert.Zero(t, h.indexer.grabCount())
	assert.Empty(t, h.torrent.addedForms())

	item, err := h.db.GetWishlistItem(id)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistFound, item.Status)
	assert.Equal(t, 1, item.SearchCount)
	assert.NotNil(t, item.LastSearchedAt)
}

func TestSearchMissRevertsToWanted(t *testing.T) {
	h := setup(t)
	id := h.addWish(t, "Daft Punk", "Discovery")

	d, err := h.pipe.SearchWishlistItem(context.Background(), id, false)
	require.NoError(t, err)
	assert.Nil(t, d)

	item, err := h.db.GetWishlistItem(id)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistWanted, item.Status)
	assert.Equal(t, 1, item.SearchCount)

	downloads, err := h.db.ListDownloads("", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, downloads)
}

func TestUserSearchAlwaysGrabs(t *testing.T) {
	h := setup(t)
	id := h.addWish(t, "Daft Punk", "Discovery")
	h.indexer.setResults(torrentRelease("Daft Punk - Discovery [FLAC]", 40))
	h.indexer.setGrabID("abcdef0123456789abcdef0123456789abcdef01")

	d, err := h.pipe.SearchWishlistItem(context.Background(), id, true)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, models.DownloadDownloading, d.Status)
	assert.Equal(t, "qbittorrent", d.DownloadClient)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", d.DownloadID)
	assert.Equal(t, "manual", d.Source)
	require.NotNil(t, d.StartedAt)

	item, err := h.db.GetWishlistItem(id)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistDownloading, item.Status)
}

func TestAutoGrabGate(t *testing.T) {
	strong := torrentRelease("Daft Punk - Discovery [FLAC]", 80)
	weak := torrentRelease("Daft Punk - Discovery", 0)
	weak.Size = 10 << 20

	t.Run("below threshold stays found", func(t *testing.T) {
		h := setup(t)
		require.NoError(t, h.store.Set(settings.KeyAutoDownloadEnabled, "true"))
		id := h.addWish(t, "Daft Punk", "Discovery")
		h.indexer.setResults(weak)

		d, err := h.pipe.SearchWishlistItem(context.Background(), id, false)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, models.DownloadFound, d.Status)
		assert.Zero(t, h.indexer.grabCount())
	})

	t.Run("at capacity stays found", func(t *testing.T) {
		h := setup(t)
		require.NoError(t, h.store.SetMany(map[string]string{
			settings.KeyAutoDownloadEnabled: "true",
			settings.KeyMaxConcurrent:       "1",
		}))
		h.addActiveDownload(t, 0, "qbittorrent", "1111111111111111111111111111111111111111")
		id := h.addWish(t, "Daft Punk", "Discovery")
		h.indexer.setResults(strong)

		d, err := h.pipe.SearchWishlistItem(context.Background(), id, false)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, models.DownloadFound, d.Status)
		assert.Zero(t, h.indexer.grabCount())
	})

	t.Run("clear gate grabs", func(t *testing.T) {
		h := setup(t)
		require.NoError(t, h.store.Set(settings.KeyAutoDownloadEnabled, "true"))
		id := h.addWish(t, "Daft Punk", "Discovery")
		h.indexer.setResults(strong)
		h.indexer.setGrabID("abcdef0123456789abcdef0123456789abcdef01")

		d, err := h.pipe.SearchWishlistItem(context.Background(), id, false)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, models.DownloadDownloading, d.Status)
		assert.Equal(t, 1, h.indexer.grabCount())
	})
}

func TestGrabRoutesUsenetToSabnzbd(t *testing.T) {
	h := setup(t)
	id := h.addWish(t, "Autechre", "Amber")
	rel := torrentRelease("Autechre - Amber [FLAC]", 0)
	rel.Protocol = "usenet"
	rel.DownloadURL = "http://indexer.example/get/amber.nzb"
	h.indexer.setResults(rel)

	d, err := h.pipe.SearchWishlistItem(context.Background(), id, true)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, models.DownloadDownloading, d.Status)
	assert.Equal(t, "sabnzbd", d.DownloadClient)
	assert.Equal(t, "SABnzbd_nzo_p1x", d.DownloadID)

	adds := h.usenet.addForms()
	require.Len(t, adds, 1)
	assert.Equal(t, "http://indexer.example/get/amber.nzb", adds[0].Get("name"))
	assert.Equal(t, "Autechre - Amber [FLAC]", adds[0].Get("nzbname"))
	assert.Equal(t, "music", adds[0].Get("cat"))
}

func TestUsenetAddFailureMarksDownloadFailed(t *testing.T) {
	h := setup(t)
	h.usenet.failAdds()
	id := h.addWish(t, "Autechre", "Amber")
	rel := torrentRelease("Autechre - Amber [FLAC]", 0)
	rel.Protocol = "usenet"
	h.indexer.setResults(rel)

	_, err := h.pipe.SearchWishlistItem(context.Background(), id, true)
	require.Error(t, err)

	downloads, err := h.db.ListDownloads(models.DownloadFailed, 10, 0)
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Contains(t, downloads[0].StatusMessage, "invalid nzb")

	item, err := h.db.GetWishlistItem(id)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistFailed, item.Status)
	assert.Contains(t, item.Notes, "invalid nzb")
}

func TestGrabResolvesHashAfterIndexerForward(t *testing.T) {
	h := setup(t)
	id := h.addWish(t, "Boards of Canada", "Geogaddi")
	h.indexer.setResults(torrentRelease("Boards of Canada - Geogaddi [FLAC]", 60))
	// Prowlarr accepts the grab but reports no client id; identity must come
	// from the torrent list.
	h.torrent.setTorrents(qbittorrent.Torrent{
		Hash:    "feedbeef00feedbeef00feedbeef00feedbeef00",
		Name:    "Boards of Canada - Geogaddi [FLAC]",
		State:   "downloading",
		AddedOn: time.Now().Unix(),
	})

	d, err := h.pipe.SearchWishlistItem(context.Background(), id, true)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, models.DownloadDownloading, d.Status)
	assert.Equal(t, "feedbeef00feedbeef00feedbeef00feedbeef00", d.DownloadID)
	assert.Empty(t, h.torrent.addedForms(), "forwarded grab must not add the torrent a second time")
}

func TestGrabFallsBackToDirectAdd(t *testing.T) {
	h := setup(t)
	id := h.addWish(t, "Boards of Canada", "Geogaddi")
	h.indexer.setResults(torrentRelease("Boards of Canada - Geogaddi [FLAC]", 60))
	h.indexer.failGrabs()
	h.torrent.setTorrents(qbittorrent.Torrent{
		Hash:    "feedbeef00feedbeef00feedbeef00feedbeef00",
		Name:    "Boards of Canada - Geogaddi [FLAC]",
		State:   "downloading",
		AddedOn: time.Now().Unix(),
	})

	d, err := h.pipe.SearchWishlistItem(context.Background(), id, true)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, models.DownloadDownloading, d.Status)
	assert.Equal(t, "feedbeef00feedbeef00feedbeef00feedbeef00", d.DownloadID)
	assert.Equal(t, 1, h.indexer.grabCount())

	adds := h.torrent.addedForms()
	require.Len(t, adds, 1)
	assert.Equal(t, d.DownloadURL, adds[0].Get("urls"))
	assert.Equal(t, "vibarr", adds[0].Get("category"))
}

func TestGrabQueuesWhenHashUnresolved(t *testing.T) {
	h := setup(t)
	id := h.addWish(t, "Burial", "Untrue")
	h.indexer.setResults(torrentRelease("Burial - Untrue [FLAC]", 25))
	h.indexer.failGrabs()
	h.torrent.setTorrents(qbittorrent.Torrent{
		Hash:    "1234123412341234123412341234123412341234",
		Name:    "Something Else Entirely",
		State:   "downloading",
		AddedOn: time.Now().Unix(),
	})

	d, err := h.pipe.SearchWishlistItem(context.Background(), id, true)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, models.DownloadQueued, d.Status)
	assert.Equal(t, "qbittorrent", d.DownloadClient)
	assert.Empty(t, d.DownloadID)

	item, err := h.db.GetWishlistItem(id)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistDownloading, item.Status)
}

func TestPollRefreshesTorrentProgress(t *testing.T) {
	h := setup(t)
	id := h.addActiveDownload(t, 0, "qbittorrent", "cafe0000cafe0000cafe0000cafe0000cafe0000")
	h.torrent.setTorrents(qbittorrent.Torrent{
		Hash:        "cafe0000cafe0000cafe0000cafe0000cafe0000",
		Name:        "Seeded - Album [FLAC]",
		State:       "downloading",
		Progress:    0.42,
		DLSpeed:     1500000,
		ETA:         320,
		SavePath:    "/downloads/incomplete",
		ContentPath: "/downloads/incomplete/Seeded - Album",
	})

	require.NoError(t, h.pipe.PollDownloads(context.Background()))

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadDownloading, d.Status)
	assert.InDelta(t, 42, d.Progress, 0.01)
	assert.Equal(t, int64(1500000), d.DownloadSpeed)
	assert.Equal(t, int64(320), d.ETASeconds)
	assert.Equal(t, "/downloads/incomplete/Seeded - Album", d.DownloadPath)
}

func TestQueuedHashResolutionTimesOut(t *testing.T) {
	h := setup(t)
	h.pipe.hashTimeout = 50 * time.Millisecond
	wishID := h.addWish(t, "Burial", "Untrue")
	started := time.Now().UTC().Add(-time.Minute)
	id, err := h.db.CreateDownload(&models.Download{
		WishlistID:     &wishID,
		ArtistName:     "Burial",
		AlbumTitle:     "Untrue",
		Status:         models.DownloadQueued,
		ReleaseTitle:   "Burial - Untrue [FLAC]",
		Protocol:       "torrent",
		DownloadClient: "qbittorrent",
		StartedAt:      &started,
	})
	require.NoError(t, err)

	err = h.pipe.PollDownloads(context.Background())
	require.Error(t, err)

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadFailed, d.Status)
	assert.Equal(t, "hash resolution timed out", d.StatusMessage)

	item, err := h.db.GetWishlistItem(wishID)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistFailed, item.Status)
	assert.Equal(t, "hash resolution timed out", item.Notes)
}

func TestTorrentCompletionWithoutBeets(t *testing.T) {
	h := setup(t)
	require.NoError(t, h.store.Set(settings.KeyQbitRemoveCompleted, "true"))
	wishID := h.addWish(t, "Aphex Twin", "Drukqs")
	id := h.addActiveDownload(t, wishID, "qbittorrent", "dead0000dead0000dead0000dead0000dead0000")
	h.torrent.setTorrents(qbittorrent.Torrent{
		Hash:        "dead0000dead0000dead0000dead0000dead0000",
		Name:        "Seeded - Album [FLAC]",
		State:       "uploading",
		Progress:    1,
		ContentPath: "/downloads/complete/Aphex Twin - Drukqs",
	})

	require.NoError(t, h.pipe.PollDownloads(context.Background()))

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadCompleted, d.Status)
	assert.NotNil(t, d.CompletedAt)
	assert.Equal(t, float64(100), d.Progress)
	assert.Equal(t, "/downloads/complete/Aphex Twin - Drukqs", d.DownloadPath)
	assert.False(t, d.BeetsImported)

	// Removal keeps the payload on disk.
	deletes := h.torrent.deletedForms()
	require.Len(t, deletes, 1)
	assert.Equal(t, "dead0000dead0000dead0000dead0000dead0000", deletes[0].Get("hashes"))
	assert.Equal(t, "false", deletes[0].Get("deleteFiles"))

	item, err := h.db.GetWishlistItem(wishID)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistDownloaded, item.Status)
}

func TestCompletionRunsBeetsImport(t *testing.T) {
	h := setup(t)
	require.NoError(t, h.store.SetMany(map[string]string{
		settings.KeyBeetsEnabled:     "true",
		settings.KeyBeetsExecutable:  "/bin/echo",
		settings.KeyBeetsLibraryPath: "/music",
	}))
	wishID := h.addWish(t, "Radiohead", "In Rainbows")
	id := h.addActiveDownload(t, wishID, "qbittorrent", "beef0000beef0000beef0000beef0000beef0000")
	h.torrent.setTorrents(qbittorrent.Torrent{
		Hash:        "beef0000beef0000beef0000beef0000beef0000",
		Name:        "Seeded - Album [FLAC]",
		State:       "stalledUP",
		Progress:    1,
		ContentPath: "/downloads/complete/Radiohead - In Rainbows",
	})

	require.NoError(t, h.pipe.PollDownloads(context.Background()))

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadCompleted, d.Status)
	assert.True(t, d.BeetsImported)
	assert.Equal(t, filepath.Join("/music", "Seeded", "Album"), d.FinalPath)
	assert.Contains(t, d.StatusMessage, "imported")
	assert.NotNil(t, d.CompletedAt)

	item, err := h.db.GetWishlistItem(wishID)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistDownloaded, item.Status)
}

func TestImportFailureMarksDownloadFailed(t *testing.T) {
	h := setup(t)
	require.NoError(t, h.store.SetMany(map[string]string{
		settings.KeyBeetsEnabled:    "true",
		settings.KeyBeetsExecutable: "/bin/false",
	}))
	wishID := h.addWish(t, "Radiohead", "In Rainbows")
	id := h.addActiveDownload(t, wishID, "qbittorrent", "beef0000beef0000beef0000beef0000beef0000")
	h.torrent.setTorrents(qbittorrent.Torrent{
		Hash:        "beef0000beef0000beef0000beef0000beef0000",
		Name:        "Seeded - Album [FLAC]",
		State:       "uploading",
		Progress:    1,
		ContentPath: "/downloads/complete/x",
	})

	err := h.pipe.PollDownloads(context.Background())
	require.Error(t, err)

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadFailed, d.Status)
	assert.Contains(t, d.StatusMessage, "beets import failed")

	item, err := h.db.GetWishlistItem(wishID)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistFailed, item.Status)
	assert.Contains(t, item.Notes, "beets import failed")
}

func TestPollUsenetProgressAndCompletion(t *testing.T) {
	h := setup(t)
	id := h.addActiveDownload(t, 0, "sabnzbd", "SABnzbd_nzo_p1x")
	h.usenet.setQueue(sabnzbd.QueueSlot{
		NzoID:      "SABnzbd_nzo_p1x",
		Status:     "Downloading",
		Percentage: "37.5",
		TimeLeft:   "0:05:30",
	})

	require.NoError(t, h.pipe.PollDownloads(context.Background()))

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadDownloading, d.Status)
	assert.InDelta(t, 37.5, d.Progress, 0.01)
	assert.Equal(t, int64(330), d.ETASeconds)

	// The slot moves to history once unpacking finishes.
	h.usenet.setQueue()
	h.usenet.setHistory(sabnzbd.HistorySlot{
		NzoID:   "SABnzbd_nzo_p1x",
		Status:  "Completed",
		Storage: "/downloads/complete/Seeded - Album",
	})

	require.NoError(t, h.pipe.PollDownloads(context.Background()))

	d, err = h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadCompleted, d.Status)
	assert.Equal(t, "/downloads/complete/Seeded - Album", d.DownloadPath)
}

func TestPollUsenetFailureRecordsReason(t *testing.T) {
	h := setup(t)
	wishID := h.addWish(t, "Plaid", "Double Figure")
	id := h.addActiveDownload(t, wishID, "sabnzbd", "SABnzbd_nzo_p1x")
	h.usenet.setHistory(sabnzbd.HistorySlot{
		NzoID:       "SABnzbd_nzo_p1x",
		Status:      "Failed",
		FailMessage: "Out of retention",
	})

	err := h.pipe.PollDownloads(context.Background())
	require.Error(t, err)

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadFailed, d.Status)
	assert.Equal(t, "Out of retention", d.StatusMessage)

	item, err := h.db.GetWishlistItem(wishID)
	require.NoError(t, err)
	assert.Equal(t, "Out of retention", item.Notes)
}

func TestCancelRemovesFromClientAndRevertsWish(t *testing.T) {
	h := setup(t)
	wishID := h.addWish(t, "Moderat", "II")
	id := h.addActiveDownload(t, wishID, "qbittorrent", "aaaa0000aaaa0000aaaa0000aaaa0000aaaa0000")

	require.NoError(t, h.pipe.CancelDownload(context.Background(), id))

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadCancelled, d.Status)
	assert.Equal(t, "cancelled by user", d.StatusMessage)

	deletes := h.torrent.deletedForms()
	require.Len(t, deletes, 1)
	assert.Equal(t, "true", deletes[0].Get("deleteFiles"), "cancel discards partial data")

	item, err := h.db.GetWishlistItem(wishID)
	require.NoError(t, err)
	assert.Equal(t, models.WishlistWanted, item.Status)

	err = h.pipe.CancelDownload(context.Background(), id)
	assert.Error(t, err, "a cancelled download cannot be cancelled again")
}

func TestRetryFailedDownloadGrabsAgain(t *testing.T) {
	h := setup(t)
	id, err := h.db.CreateDownload(&models.Download{
		ArtistName:    "Moderat",
		AlbumTitle:    "II",
		Status:        models.DownloadFailed,
		StatusMessage: "client reported state error",
		ReleaseTitle:  "Moderat - II [FLAC]",
		Protocol:      "torrent",
		Guid:          "guid-retry",
		IndexerID:     7,
		DownloadURL:   "http://indexer.example/dl/retry.torrent",
	})
	require.NoError(t, err)
	h.indexer.setGrabID("bbbb0000bbbb0000bbbb0000bbbb0000bbbb0000")

	require.NoError(t, h.pipe.RetryDownload(context.Background(), id))

	d, err := h.db.GetDownload(id)
	require.NoError(t, err)
	assert.Equal(t, models.DownloadDownloading, d.Status)
	assert.Equal(t, "bbbb0000bbbb0000bbbb0000bbbb0000bbbb0000", d.DownloadID)
	assert.Empty(t, d.StatusMessage)
	assert.NotNil(t, d.StartedAt)

	err = h.pipe.RetryDownload(context.Background(), id)
	assert.Error(t, err, "an active download cannot be retried")
}

func TestProcessWishlistSearchesEveryCandidate(t *testing.T) {
	h := setup(t)
	first := h.addWish(t, "Daft Punk", "Discovery")
	second := h.addWish(t, "Daft Punk", "Homework")
	h.indexer.setResults(torrentRelease("Daft Punk - Discovery [FLAC]", 50))

	require.NoError(t, h.pipe.ProcessWishlist(context.Background()))

	for _, id := range []int64{first, second} {
		item, err := h.db.GetWishlistItem(id)
		require.NoError(t, err)
		assert.Equal(t, 1, item.SearchCount)
	}
}
