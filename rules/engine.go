// Package rules evaluates user automation rules against trigger events
// and executes their actions. A rule binds one trigger to an AND-joined
// condition list and an ordered action list; on dispatch every enabled
// rule for the trigger is checked independently, highest priority first.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/events"
	"github.com/vibarr/vibarr/metrics"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/registry"
	"github.com/vibarr/vibarr/service/deezer"
	"github.com/vibarr/vibarr/service/ytmusic"
)

// Downloader starts a search for a wishlist item. The download pipeline
// satisfies this; the indirection keeps rules and pipeline from
// importing each other.
type Downloader interface {
	SearchWishlistItem(ctx context.Context, id int64, userTriggered bool) (*models.Download, error)
}

// Engine matches automation rules to trigger events and runs their
// actions.
type Engine struct {
	db      *db.DB
	clients *registry.Registry
	hub     *events.Hub
	logger  *log.Logger

	downloader Downloader
}

// New builds a rule engine. Wire the download pipeline in with
// UseDownloader before dispatching rules that start downloads.
func New(database *db.DB, clients *registry.Registry, hub *events.Hub, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "rules", ReportTimestamp: true})
	}
	return &Engine{db: database, clients: clients, hub: hub, logger: logger}
}

// UseDownloader connects the engine to the download pipeline after both
// are constructed.
func (e *Engine) UseDownloader(d Downloader) { e.downloader = d }

// Dispatch runs every enabled rule bound to trigger against rctx. Rules
// are evaluated in priority order but independently: a failing action
// never stops later rules, and skip_item halts only the remaining
// actions of its own rule. The returned error covers rule listing only.
func (e *Engine) Dispatch(ctx context.Context, trigger models.RuleTrigger, rctx Context) error {
	matched, err := e.db.EnabledRulesFor(trigger)
	if err != nil {
		return fmt.Errorf("rules for %s: %w", trigger, err)
	}
	for _, rule := range matched {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !Evaluate(rule.Conditions, rctx) {
			continue
		}
		e.logger.Info("rule matched", "rule", rule.Name, "trigger", trigger, "context", rctx)
		e.runRule(ctx, rule, rctx)
		if err := e.db.TouchRuleTriggered(rule.ID); err != nil {
			e.logger.Warn("stamp rule trigger", "rule", rule.Name, "error", err)
		}
	}
	return nil
}

func (e *Engine) runRule(ctx context.Context, rule *models.AutomationRule, shared Context) {
	// Each rule works on its own copy so action write-backs such as
	// wishlist_item_id never leak into other rules.
	rctx := make(Context, len(shared)+1)
	for k, v := range shared {
		rctx[k] = v
	}
	for _, action := range rule.Actions {
		if action.Type == models.ActionSkipItem {
			metrics.RecordRuleAction(string(action.Type), true)
			e.logger.Info("rule action", "rule", rule.Name, "action", action.Type, "status", "halted")
			return
		}
		err := e.runAction(ctx, rule, action, rctx)
		metrics.RecordRuleAction(string(action.Type), err == nil)
		if err != nil {
			e.logger.Error("rule action failed", "rule", rule.Name, "action", action.Type, "error", err)
			continue
		}
		e.logger.Info("rule action", "rule", rule.Name, "action", action.Type, "status", "ok")
	}
}

func (e *Engine) runAction(ctx context.Context, rule *models.AutomationRule, action models.RuleAction, rctx Context) error {
	switch action.Type {
	case models.ActionAddToWishlist:
		_, err := e.addToWishlist(rule, action.Params, rctx)
		return err
	case models.ActionStartDownload:
		return e.startDownload(ctx, rule, action, rctx)
	case models.ActionAddToPlaylist:
		return e.addToPlaylist(ctx, action, rctx)
	case models.ActionSendNotification:
		return e.sendNotification(ctx, rule, action, rctx)
	case models.ActionTagItem:
		return e.tagItem(action, rctx)
	case models.ActionSetQualityProfile:
		return e.setQualityProfile(action, rctx)
	case models.ActionAddToLibrary:
		return e.addToLibrary(rctx)
	case models.ActionImportPlaylistURL:
		return e.importPlaylistURL(ctx, action, rctx)
	}
	return fmt.Errorf("unknown action type %q", action.Type)
}

// addToWishlist wants the context item: a track when the firing carries
// a track title, else an album when it carries one, else the artist.
// The new id is written back into the context for later actions.
func (e *Engine) addToWishlist(rule *models.AutomationRule, params map[string]any, rctx Context) (int64, error) {
	artist := ctxString(rctx, "artist_name")
	if artist == "" {
		return 0, errors.New("context has no artist_name")
	}
	item := &models.WishlistItem{
		Type:         models.WishlistTypeArtist,
		ArtistName:   artist,
		Source:       "automation",
		AutoDownload: paramBool(params, "auto_download"),
		Notes:        "Added by rule: " + rule.Name,
	}
	if album := ctxString(rctx, "album_title"); album != "" {
		item.Type = models.WishlistTypeAlbum
		item.AlbumTitle = album
	}
	if track := ctxString(rctx, "track_title"); track != "" {
		item.Type = models.WishlistTypeTrack
		item.TrackTitle = track
	}
	if p := models.Priority(paramString(params, "priority")); p.Valid() {
		item.Priority = p
	}
	if id, ok := ctxID(rctx, "artist_id"); ok {
		item.ArtistID = &id
	}
	if id, ok := ctxID(rctx, "album_id"); ok {
		item.AlbumID = &id
	}
	if conf, ok := asFloat(rctx["confidence"]); ok {
		item.Confidence = &conf
	}
	id, err := e.db.CreateWishlistItem(item)
	if err != nil {
		return 0, err
	}
	rctx["wishlist_item_id"] = id
	return id, nil
}

// startDownload queues a pipeline search for the context item, wishing
// it first when the firing did not already carry a wishlist id.
func (e *Engine) startDownload(ctx context.Context, rule *models.AutomationRule, action models.RuleAction, rctx Context) error {
	if e.downloader == nil {
		return errors.New("download pipeline not wired")
	}
	id, ok := ctxID(rctx, "wishlist_item_id")
	if !ok {
		created, err := e.addToWishlist(rule, action.Params, rctx)
		if err != nil {
			return fmt.Errorf("create wish: %w", err)
		}
		id = created
	}
	if format := paramString(action.Params, "format"); format != "" {
		item, err := e.db.GetWishlistItem(id)
		if err != nil {
			return err
		}
		item.PreferredFormat = format
		if err := e.db.UpdateWishlistItem(item); err != nil {
			return err
		}
	}
	// Automation searches stay behind the auto-grab gate.
	_, err := e.downloader.SearchWishlistItem(ctx, id, false)
	return err
}

// addToPlaylist appends the context item to a Plex playlist by title,
// creating the playlist when it does not exist yet. Only items already
// in the media server carry the needed rating key.
func (e *Engine) addToPlaylist(ctx context.Context, action models.RuleAction, rctx Context) error {
	plx := e.clients.Plex()
	if !plx.IsAvailable() {
		return errors.New("plex not configured")
	}
	title := paramString(action.Params, "playlist_id")
	if title == "" {
		return errors.New("playlist_id param required")
	}
	ratingKey := ctxString(rctx, "media_server_key")
	if ratingKey == "" {
		return errors.New("context item is not in the media server")
	}
	if note := paramString(action.Params, "note"); note != "" {
		e.logger.Debug("playlist note", "playlist", title, "note", rctx.Interpolate(note))
	}
	existing, err := plx.FindPlaylist(ctx, title)
	if err != nil {
		return fmt.Errorf("find playlist: %w", err)
	}
	if existing == nil {
		_, err := plx.CreatePlaylist(ctx, title, ratingKey)
		return err
	}
	return plx.AddToPlaylist(ctx, existing.RatingKey, ratingKey)
}

// sendNotification persists a notification for the rule's owner and
// pushes it to live clients.
func (e *Engine) sendNotification(ctx context.Context, rule *models.AutomationRule, action models.RuleAction, rctx Context) error {
	message := paramString(action.Params, "message")
	if message == "" {
		return errors.New("message param required")
	}
	n := &models.Notification{
		UserID:  &rule.UserID,
		Title:   rule.Name,
		Message: rctx.Interpolate(message),
	}
	if _, err := e.db.CreateNotification(n); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"type":    "notification",
		"title":   n.Title,
		"message": n.Message,
	})
	if err != nil {
		return err
	}
	e.hub.Publish(ctx, string(payload))
	return nil
}

// tagItem merges the action's tags into the context artist. Albums carry
// no tag list, so album firings tag their artist.
func (e *Engine) tagItem(action models.RuleAction, rctx Context) error {
	tags := conditionList(action.Params["tags"])
	if len(tags) == 0 {
		return errors.New("tags param required")
	}
	id, ok := ctxID(rctx, "artist_id")
	if !ok {
		return errors.New("context has no artist_id")
	}
	artist, err := e.db.GetArtist(id)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(artist.Tags))
	for _, t := range artist.Tags {
		have[strings.ToLower(t)] = true
	}
	added := false
	for _, t := range tags {
		if !have[t] {
			artist.Tags = append(artist.Tags, t)
			added = true
		}
	}
	if !added {
		return nil
	}
	return e.db.UpdateArtist(artist)
}

// setQualityProfile applies a named profile's top format preference to
// the context wishlist item.
func (e *Engine) setQualityProfile(action models.RuleAction, rctx Context) error {
	name := paramString(action.Params, "profile_name")
	if name == "" {
		return errors.New("profile_name param required")
	}
	profile, err := e.db.GetQualityProfileByName(name)
	if err != nil {
		return err
	}
	id, ok := ctxID(rctx, "wishlist_item_id")
	if !ok {
		return errors.New("context has no wishlist item")
	}
	item, err := e.db.GetWishlistItem(id)
	if err != nil {
		return err
	}
	if len(profile.PreferredFormats) == 0 {
		return nil
	}
	item.PreferredFormat = profile.PreferredFormats[0]
	return e.db.UpdateWishlistItem(item)
}

// addToLibrary marks the context album and artist as owned.
func (e *Engine) addToLibrary(rctx Context) error {
	touched := false
	if id, ok := ctxID(rctx, "album_id"); ok {
		album, err := e.db.GetAlbum(id)
		if err != nil {
			return err
		}
		if !album.InLibrary {
			album.InLibrary = true
			if err := e.db.UpdateAlbum(album); err != nil {
				return err
			}
		}
		touched = true
	}
	if id, ok := ctxID(rctx, "artist_id"); ok {
		artist, err := e.db.GetArtist(id)
		if err != nil {
			return err
		}
		if !artist.InLibrary {
			artist.InLibrary = true
			if err := e.db.UpdateArtist(artist); err != nil {
				return err
			}
		}
		touched = true
	}
	if !touched {
		return errors.New("context has no artist_id or album_id")
	}
	return nil
}

// importPlaylistURL pulls a Deezer or YouTube Music playlist and wishes
// every track not already wanted. All rows from one playlist share a
// group id; re-imports reuse the existing group.
func (e *Engine) importPlaylistURL(ctx context.Context, action models.RuleAction, rctx Context) error {
	raw := paramString(action.Params, "url")
	if raw == "" {
		raw = ctxString(rctx, "url")
	}
	if raw == "" {
		return errors.New("url param required")
	}

	title, tracks, err := e.fetchPlaylist(ctx, raw)
	if err != nil {
		return err
	}
	if title == "" {
		title = raw
	}

	priority := models.Priority(paramString(action.Params, "priority"))
	if !priority.Valid() {
		priority = models.PriorityNormal
	}
	autoDownload := paramBool(action.Params, "auto_download")

	group := uuid.NewString()
	header, err := e.db.FindWishlistPlaylist(title)
	if err != nil {
		return err
	}
	if header != nil && header.PlaylistGroup != nil {
		group = *header.PlaylistGroup
	}
	if header == nil {
		header = &models.WishlistItem{
			Type:          models.WishlistTypePlaylist,
			ArtistName:    "Various Artists",
			AlbumTitle:    title,
			Source:        "automation",
			Priority:      priority,
			AutoDownload:  autoDownload,
			PlaylistGroup: &group,
			Notes:         "Imported from " + raw,
		}
		if _, err := e.db.CreateWishlistItem(header); err != nil {
			return fmt.Errorf("playlist wish: %w", err)
		}
	}

	added := 0
	for _, track := range tracks {
		if track.ArtistName == "" || track.TrackTitle == "" {
			continue
		}
		existing, err := e.db.FindWishlistTrack(track.ArtistName, track.TrackTitle)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		wish := &models.WishlistItem{
			Type:          models.WishlistTypeTrack,
			ArtistName:    track.ArtistName,
			AlbumTitle:    track.AlbumTitle,
			TrackTitle:    track.TrackTitle,
			Source:        "automation",
			Priority:      priority,
			AutoDownload:  autoDownload,
			PlaylistGroup: &group,
		}
		if _, err := e.db.CreateWishlistItem(wish); err != nil {
			return err
		}
		added++
	}
	e.logger.Info("playlist imported", "title", title, "tracks", len(tracks), "added", added)
	return nil
}

// fetchPlaylist resolves a playlist URL against whichever provider
// recognizes it.
func (e *Engine) fetchPlaylist(ctx context.Context, raw string) (string, []models.PlaylistTrack, error) {
	if id, ok := deezer.PlaylistIDFromURL(raw); ok {
		svc := e.clients.Deezer()
		if !svc.IsAvailable() {
			return "", nil, errors.New("deezer not configured")
		}
		return svc.PlaylistTracks(ctx, id)
	}
	if id, ok := ytmusic.PlaylistIDFromURL(raw); ok {
		svc := e.clients.YTMusic()
		if !svc.IsAvailable() {
			return "", nil, errors.New("youtube music not configured")
		}
		return svc.PlaylistTracks(ctx, id)
	}
	return "", nil, fmt.Errorf("unrecognized playlist url %q", raw)
}

func paramString(params map[string]any, key string) string {
	if v, ok := params[key]; ok && v != nil {
		return strings.TrimSpace(asString(v))
	}
	return ""
}

func paramBool(params map[string]any, key string) bool {
	switch t := params[key].(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	}
	return false
}

func ctxString(rctx Context, key string) string {
	if v, ok := rctx[key]; ok && v != nil {
		return strings.TrimSpace(asString(v))
	}
	return ""
}

// ctxID reads an entity id, tolerating the float64 that JSON decoding
// produces.
func ctxID(rctx Context, key string) (int64, bool) {
	v, ok := rctx[key]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
