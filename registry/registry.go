// Package registry owns the integration clients. Every client is built from
// the settings store at startup and rebuilt when its settings change, so the
// rest of the code receives injected clients instead of reaching for
// singletons, and saving the settings form swaps credentials without a
// restart.
package registry

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/service/audiodb"
	"github.com/vibarr/vibarr/service/beets"
	"github.com/vibarr/vibarr/service/deezer"
	"github.com/vibarr/vibarr/service/lastfm"
	"github.com/vibarr/vibarr/service/musicbrainz"
	"github.com/vibarr/vibarr/service/plex"
	"github.com/vibarr/vibarr/service/prowlarr"
	"github.com/vibarr/vibarr/service/qbittorrent"
	"github.com/vibarr/vibarr/service/sabnzbd"
	"github.com/vibarr/vibarr/service/spotify"
	"github.com/vibarr/vibarr/service/ytmusic"
	"github.com/vibarr/vibarr/settings"
)

// rebuildGroup maps a setting key to the client it configures. Keys missing
// here (thresholds, paths, scheduler knobs) are read live and need no rebuild.
var rebuildGroup = map[string]string{
	settings.KeySpotifyClientID:     "spotify",
	settings.KeySpotifyClientSecret: "spotify",
	settings.KeyLastFMAPIKey:        "lastfm",
	settings.KeyLastFMSharedSecret:  "lastfm",
	settings.KeyPlexURL:             "plex",
	settings.KeyPlexToken:           "plex",
	settings.KeyProwlarrURL:         "prowlarr",
	settings.KeyProwlarrAPIKey:      "prowlarr",
	settings.KeyProwlarrMinMatch:    "prowlarr",
	settings.KeyQbitURL:             "qbittorrent",
	settings.KeyQbitUsername:        "qbittorrent",
	settings.KeyQbitPassword:        "qbittorrent",
	settings.KeySabEnabled:          "sabnzbd",
	settings.KeySabURL:              "sabnzbd",
	settings.KeySabAPIKey:           "sabnzbd",
	settings.KeyBeetsEnabled:        "beets",
	settings.KeyBeetsExecutable:     "beets",
	settings.KeyBeetsConfigPath:     "beets",
	settings.KeyBeetsLibraryPath:    "beets",
	settings.KeyDeezerEnabled:       "deezer",
	settings.KeyYTMusicURL:          "ytmusic",
	settings.KeyAudioDBAPIKey:       "audiodb",
}

type Registry struct {
	settings *settings.Store
	base     *log.Logger
	logger   *log.Logger

	mu          sync.RWMutex
	spotify     *spotify.Service
	lastfm      *lastfm.Service
	musicbrainz *musicbrainz.Service
	deezer      *deezer.Service
	ytmusic     *ytmusic.Service
	audiodb     *audiodb.Service
	plex        *plex.Service
	prowlarr    *prowlarr.Service
	qbit        *qbittorrent.Service
	sabnzbd     *sabnzbd.Service
	beets       *beets.Service
}

// New builds every client from current settings and subscribes to changes.
func New(store *settings.Store, logger *log.Logger) *Registry {
	r := &Registry{
		settings: store,
		base:     logger,
		logger:   logger.With("component", "registry"),
	}
	// MusicBrainz is keyless and never rebuilds.
	r.musicbrainz = musicbrainz.New(logger.WithPrefix("musicbrainz"))

	r.mu.Lock()
	for _, group := range []string{
		"spotify", "lastfm", "plex", "prowlarr", "qbittorrent",
		"sabnzbd", "beets", "deezer", "ytmusic", "audiodb",
	} {
		r.buildLocked(group)
	}
	r.mu.Unlock()

	store.OnChange(r.Invalidate)
	return r
}

// Invalidate rebuilds the clients whose settings are among keys. It is the
// settings.OnChange hook, so a bulk settings write rebuilds each affected
// client exactly once.
func (r *Registry) Invalidate(keys []string) {
	groups := make(map[string]bool)
	for _, key := range keys {
		if g, ok := rebuildGroup[key]; ok {
			groups[g] = true
		}
	}
	if len(groups) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for g := range groups {
		r.buildLocked(g)
		r.logger.Info("integration client rebuilt", "integration", g)
	}
}

func (r *Registry) buildLocked(group string) {
	s := r.settings
	switch group {
	case "spotify":
		r.spotify = spotify.New(
			s.String(settings.KeySpotifyClientID, ""),
			s.String(settings.KeySpotifyClientSecret, ""),
			r.base.WithPrefix("spotify"))
	case "lastfm":
		r.lastfm = lastfm.New(
			s.String(settings.KeyLastFMAPIKey, ""),
			s.String(settings.KeyLastFMSharedSecret, ""),
			r.base.WithPrefix("lastfm"))
	case "plex":
		r.plex = plex.New(
			s.String(settings.KeyPlexURL, ""),
			s.String(settings.KeyPlexToken, ""),
			r.base.WithPrefix("plex"))
	case "prowlarr":
		r.prowlarr = prowlarr.New(
			s.String(settings.KeyProwlarrURL, ""),
			s.String(settings.KeyProwlarrAPIKey, ""),
			s.Float(settings.KeyProwlarrMinMatch, 0.6),
			r.base.WithPrefix("prowlarr"))
	case "qbittorrent":
		r.qbit = qbittorrent.New(
			s.String(settings.KeyQbitURL, ""),
			s.String(settings.KeyQbitUsername, ""),
			s.String(settings.KeyQbitPassword, ""),
			r.base.WithPrefix("qbittorrent"))
	case "sabnzbd":
		url, key := "", ""
		if s.Bool(settings.KeySabEnabled, false) {
			url = s.String(settings.KeySabURL, "")
			key = s.String(settings.KeySabAPIKey, "")
		}
		r.sabnzbd = sabnzbd.New(url, key, r.base.WithPrefix("sabnzbd"))
	case "beets":
		r.beets = beets.New(
			s.Bool(settings.KeyBeetsEnabled, false),
			s.String(settings.KeyBeetsExecutable, "beet"),
			s.String(settings.KeyBeetsConfigPath, ""),
			s.String(settings.KeyBeetsLibraryPath, ""),
			r.base.WithPrefix("beets"))
	case "deezer":
		r.deezer = deezer.New(
			s.Bool(settings.KeyDeezerEnabled, true),
			r.base.WithPrefix("deezer"))
	case "ytmusic":
		r.ytmusic = ytmusic.New(
			s.String(settings.KeyYTMusicURL, ""),
			r.base.WithPrefix("ytmusic"))
	case "audiodb":
		r.audiodb = audiodb.New(
			s.String(settings.KeyAudioDBAPIKey, ""),
			r.base.WithPrefix("audiodb"))
	}
}

func (r *Registry) Spotify() *spotify.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.spotify
}

func (r *Registry) LastFM() *lastfm.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastfm
}

func (r *Registry) MusicBrainz() *musicbrainz.Service {
	return r.musicbrainz
}

func (r *Registry) Deezer() *deezer.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deezer
}

func (r *Registry) YTMusic() *ytmusic.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ytmusic
}

func (r *Registry) AudioDB() *audiodb.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.audiodb
}

func (r *Registry) Plex() *plex.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plex
}

func (r *Registry) Prowlarr() *prowlarr.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prowlarr
}

func (r *Registry) Qbittorrent() *qbittorrent.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.qbit
}

func (r *Registry) Sabnzbd() *sabnzbd.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sabnzbd
}

func (r *Registry) Beets() *beets.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.beets
}

// Status reports availability per integration, for the settings page and the
// stats overview.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]bool{
		"spotify":     r.spotify.IsAvailable(),
		"lastfm":      r.lastfm.IsAvailable(),
		"musicbrainz": r.musicbrainz.IsAvailable(),
		"deezer":      r.deezer.IsAvailable(),
		"ytmusic":     r.ytmusic.IsAvailable(),
		"audiodb":     r.audiodb.IsAvailable(),
		"plex":        r.plex.IsAvailable(),
		"prowlarr":    r.prowlarr.IsAvailable(),
		"qbittorrent": r.qbit.IsAvailable(),
		"sabnzbd":     r.sabnzbd.IsAvailable(),
		"beets":       r.beets.IsAvailable(),
	}
}
