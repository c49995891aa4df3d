// Package recommend turns listening history into ranked music suggestions.
// A generation run decays plays into artist and genre affinities, asks five
// producers for candidates, scores each against a weighted factor model and
// persists the diversified survivors per category. A separate profiling pass
// maintains a versioned taste profile with an audio-feature embedding,
// personality cluster and monthly evolution history.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/metrics"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/registry"
	"github.com/vibarr/vibarr/settings"
)

const (
	historyWindow      = 180 // days of plays feeding affinity and embedding
	releaseRadarWindow = 30  // days a release counts as new
	topGenreCount      = 10
	tasteTagCount      = 5
	peakHourCount      = 3
	peakDayCount       = 2
)

// Engine runs recommendation generation and taste profiling.
type Engine struct {
	db       *db.DB
	clients  *registry.Registry
	settings *settings.Store
	logger   *log.Logger

	src catalogSources
}

// New builds the engine on top of the shared entity store and client
// registry.
func New(database *db.DB, clients *registry.Registry, store *settings.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "recommend", ReportTimestamp: true})
	}
	return &Engine{
		db:       database,
		clients:  clients,
		settings: store,
		logger:   logger,
		src:      registrySources{clients},
	}
}

// GenerateAll runs recommendation generation for every user.
func (e *Engine) GenerateAll(ctx context.Context) error {
	users, err := e.db.ListUsers()
	if err != nil {
		return err
	}
	failed := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.GenerateForUser(ctx, u.ID); err != nil {
			failed++
			e.logger.Error("recommendation run failed", "user", u.ID, "err", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d recommendation runs failed", failed, len(users))
	}
	return nil
}

// GenerateForUser runs the full producer pipeline for one user and replaces
// their unengaged recommendations category by category. Users without any
// listening history are skipped.
func (e *Engine) GenerateForUser(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	events, err := e.db.ListeningEventsSince(userID, now.AddDate(0, 0, -historyWindow))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		e.logger.Info("no listening history, skipping recommendations", "user", userID)
		return nil
	}

	artists, err := e.playedArtists(events)
	if err != nil {
		return err
	}
	aff := ComputeAffinity(events, artistGenres(artists),
		e.halfLife(settings.KeyArtistHalfLife, defaultArtistHalfLife),
		e.halfLife(settings.KeyGenreHalfLife, defaultGenreHalfLife), now)

	profile, err := e.buildProfile(userID, events, aff, now)
	if err != nil {
		return err
	}
	// Mean features come from the last profiling pass; a user who has never
	// been profiled simply scores without the audio factor.
	var profileFeatures map[string]float64
	if saved, err := e.db.LatestTasteProfile(userID); err != nil {
		return err
	} else if saved != nil {
		profileFeatures = saved.MeanFeatures
	}

	library, err := e.db.ArtistNameIndex(true)
	if err != nil {
		return err
	}
	known, err := e.db.ArtistNameIndex(false)
	if err != nil {
		return err
	}
	feedback, err := e.db.RecommendationFeedback(userID)
	if err != nil {
		return err
	}

	basis := topLibraryArtists(events, artists, similarBasisLimit)
	var cands []*candidate
	cands = append(cands, e.produceSimilarArtists(ctx, userID, basis, aff, library)...)
	cands = append(cands, e.produceGenreExplore(ctx, userID, profile, aff, library)...)
	cands = append(cands, e.produceDeepCuts(ctx, userID, basis, aff, profileFeatures)...)
	cands = append(cands, e.produceMoodBased(ctx, userID, profileFeatures)...)
	cands = append(cands, e.produceHistoryBased(ctx, userID, aff, library, now)...)
	if len(cands) == 0 {
		e.logger.Info("producers returned no candidates", "user", userID)
		return nil
	}

	for _, c := range cands {
		_, knownArtist := known[strings.ToLower(c.artist)]
		scoreCandidate(c, profile.NoveltyPreference, knownArtist, feedback)
	}
	final := diversify(cands, maxPerArtist, maxPerCategory)

	if _, err := e.db.DeleteExpiredRecommendations(); err != nil {
		e.logger.Warn("expired recommendation cleanup failed", "err", err)
	}
	byCategory := map[models.RecommendationCategory][]*models.Recommendation{}
	for _, c := range final {
		c.rec.ExpiresAt = now.Add(categoryTTL(c.rec.Category))
		byCategory[c.rec.Category] = append(byCategory[c.rec.Category], c.rec)
	}
	for category, recs := range byCategory {
		if err := e.db.ReplaceRecommendations(userID, category, recs); err != nil {
			return err
		}
		metrics.RecordRecommendations(string(category), len(recs))
	}

	e.logger.Info("recommendations generated",
		"user", userID, "candidates", len(cands), "kept", len(final), "categories", len(byCategory))
	return nil
}

// UpdateProfiles refreshes the taste profile of every user.
func (e *Engine) UpdateProfiles(ctx context.Context) error {
	users, err := e.db.ListUsers()
	if err != nil {
		return err
	}
	failed := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.UpdateProfileForUser(ctx, u.ID); err != nil {
			failed++
			e.logger.Error("taste profile update failed", "user", u.ID, "err", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d profile updates failed", failed, len(users))
	}
	return nil
}

// UpdateProfileForUser recomputes and versions a user's taste profile,
// embedding included.
func (e *Engine) UpdateProfileForUser(ctx context.Context, userID int64) error {
	if !e.settings.Bool(settings.KeyMLProfilingEnabled, true) {
		e.logger.Debug("ml profiling disabled, skipping", "user", userID)
		return nil
	}

	now := time.Now().UTC()
	events, err := e.db.ListeningEventsSince(userID, now.AddDate(0, 0, -historyWindow))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		e.logger.Info("no listening history, skipping profile", "user", userID)
		return nil
	}

	artists, err := e.playedArtists(events)
	if err != nil {
		return err
	}
	aff := ComputeAffinity(events, artistGenres(artists),
		e.halfLife(settings.KeyArtistHalfLife, defaultArtistHalfLife),
		e.halfLife(settings.KeyGenreHalfLife, defaultGenreHalfLife), now)

	profile, err := e.buildProfile(userID, events, aff, now)
	if err != nil {
		return err
	}

	features, err := e.playedTrackFeatures(events)
	if err != nil {
		return err
	}
	embedding, samples := computeEmbedding(events, features,
		e.halfLife(settings.KeyEmbeddingHalfLife, defaultEmbeddingHalfLife), now)
	if embedding != nil {
		cluster, confidence := classifyCluster(embedding)

		var history []models.EvolutionSnapshot
		if prev, err := e.db.LatestTasteProfile(userID); err != nil {
			return err
		} else if prev != nil && prev.ProfileData != nil {
			history = prev.ProfileData.Evolution
		}
		history = appendEvolution(history, models.EvolutionSnapshot{
			Period:     now.Format("2006-01"),
			Embedding:  embedding,
			SampleSize: samples,
		})
		trend, drifts := classifyTrend(history)

		profile.MeanFeatures = featureMap(embedding)
		profile.ProfileData = &models.ProfileData{
			Embedding:         embedding,
			EmbeddingSamples:  samples,
			Cluster:           cluster,
			ClusterConfidence: confidence,
			Evolution:         history,
			Trend:             trend,
			TrendDetails:      drifts,
		}
	}

	if _, err := e.db.SaveTasteProfile(profile); err != nil {
		return err
	}
	e.persistPreferences(userID, profile)
	e.refreshUserTaste(userID, profile)

	cluster := ""
	if profile.ProfileData != nil {
		cluster = profile.ProfileData.Cluster
	}
	e.logger.Info("taste profile updated",
		"user", userID, "version", profile.Version, "plays", profile.TotalPlays, "cluster", cluster)
	return nil
}

// refreshUserTaste mirrors the profile summary onto the user row, which is
// what the social endpoints read. Failures are logged, never fatal.
func (e *Engine) refreshUserTaste(userID int64, profile *models.TasteProfile) {
	user, err := e.db.GetUser(userID)
	if err != nil {
		e.logger.Warn("user load for taste summary failed", "user", userID, "err", err)
		return
	}
	user.TasteTags = topKeys(profile.TopGenres, tasteTagCount)
	if profile.ProfileData != nil {
		cluster := profile.ProfileData.Cluster
		user.TasteCluster = &cluster
		user.CompatibilityVector = profile.ProfileData.Embedding
	}
	if err := e.db.UpdateUser(user); err != nil {
		e.logger.Warn("taste summary write failed", "user", userID, "err", err)
	}
}

// ReleaseRadarAll emits release-radar recommendations for every user.
func (e *Engine) ReleaseRadarAll(ctx context.Context) error {
	users, err := e.db.ListUsers()
	if err != nil {
		return err
	}
	failed := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.ReleaseRadarForUser(ctx, u.ID); err != nil {
			failed++
			e.logger.Error("release radar failed", "user", u.ID, "err", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d release radar runs failed", failed, len(users))
	}
	return nil
}

// ReleaseRadarForUser scans catalog albums of library artists released in
// the last month and emits them with fixed confidence and full novelty.
func (e *Engine) ReleaseRadarForUser(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	albums, err := e.db.AlbumsReleasedSince(now.AddDate(0, 0, -releaseRadarWindow), 50)
	if err != nil {
		return err
	}
	if len(albums) == 0 {
		e.logger.Debug("no fresh releases for radar", "user", userID)
		return nil
	}

	events, err := e.db.ListeningEventsSince(userID, now.AddDate(0, 0, -historyWindow))
	if err != nil {
		return err
	}
	aff := ComputeAffinity(events, nil, e.halfLife(settings.KeyArtistHalfLife, defaultArtistHalfLife), defaultGenreHalfLife, now)

	var cands []*candidate
	for _, album := range albums {
		artist, err := e.db.GetArtist(album.ArtistID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			return err
		}

		c := newCandidate(userID, models.RecTypeAlbum, models.CategoryReleaseRadar, artist.Name)
		c.rec.ArtistID = &album.ArtistID
		c.rec.AlbumID = &album.ID
		c.rec.AlbumTitle = album.Title
		c.rec.ImageURL = album.CoverURL
		c.rec.Reason = "New release from " + artist.Name
		if album.ReleaseDate != nil {
			c.rec.ReasonDetails = []string{"released " + album.ReleaseDate.Format("2006-01-02")}
		}
		basisID := artist.ID
		c.rec.BasedOnArtistID = &basisID
		c.rec.Confidence = 0.9
		c.rec.Novelty = 1.0
		c.rec.Relevance = 0.5
		if w, ok := aff.Artists[artist.ID]; ok && w > 0 {
			c.rec.Relevance = w
		}
		cands = append(cands, c)
	}
	if len(cands) == 0 {
		return nil
	}

	final := diversify(cands, maxPerArtist, maxPerCategory)
	recs := make([]*models.Recommendation, 0, len(final))
	for _, c := range final {
		c.rec.ExpiresAt = now.Add(categoryTTL(models.CategoryReleaseRadar))
		recs = append(recs, c.rec)
	}
	if err := e.db.ReplaceRecommendations(userID, models.CategoryReleaseRadar, recs); err != nil {
		return err
	}
	metrics.RecordRecommendations(string(models.CategoryReleaseRadar), len(recs))
	e.logger.Info("release radar updated", "user", userID, "releases", len(recs))
	return nil
}

// buildProfile assembles the statistical half of the taste profile from the
// loaded play window. The embedding half is added by the profiling pass.
func (e *Engine) buildProfile(userID int64, events []*models.ListeningEvent, aff *Affinity, now time.Time) (*models.TasteProfile, error) {
	since := now.AddDate(0, 0, -historyWindow)
	plays, artistCount, albumCount, trackCount, err := e.db.ListeningCounts(userID, since)
	if err != nil {
		return nil, err
	}
	years, err := e.playedAlbumYears(events)
	if err != nil {
		return nil, err
	}
	hours, err := e.db.HourHistogram(userID)
	if err != nil {
		return nil, err
	}
	days, err := e.db.DayHistogram(userID)
	if err != nil {
		return nil, err
	}

	return &models.TasteProfile{
		UserID:            userID,
		TopGenres:         topWeights(aff.Genres, topGenreCount),
		PreferredDecades:  decadeWeights(events, years, e.halfLife(settings.KeyGenreHalfLife, defaultGenreHalfLife), now),
		TotalPlays:        plays,
		TotalArtists:      artistCount,
		TotalAlbums:       albumCount,
		TotalTracks:       trackCount,
		PeakHours:         peakBuckets(hours, peakHourCount),
		PeakDays:          peakBuckets(days, peakDayCount),
		NoveltyPreference: noveltyPreference(artistCount, plays),
	}, nil
}

// persistPreferences mirrors the profile's genre and decade weights into the
// sparse preference store. Failures are logged, never fatal; the profile row
// is already saved.
func (e *Engine) persistPreferences(userID int64, profile *models.TasteProfile) {
	confidence := math.Min(float64(profile.TotalPlays)/200, 1)
	for genre, weight := range profile.TopGenres {
		err := e.db.UpsertPreference(&models.UserPreference{
			UserID: userID, Kind: "genre", Key: genre,
			Weight: weight, Confidence: confidence,
		})
		if err != nil {
			e.logger.Warn("genre preference write failed", "genre", genre, "err", err)
		}
	}
	for decade, weight := range profile.PreferredDecades {
		err := e.db.UpsertPreference(&models.UserPreference{
			UserID: userID, Kind: "decade", Key: strconv.Itoa(decade),
			Weight: weight, Confidence: confidence,
		})
		if err != nil {
			e.logger.Warn("decade preference write failed", "decade", decade, "err", err)
		}
	}
}

// playedArtists loads the artist rows the events reference. Dangling
// references are skipped; plays may outlive a cleared library.
func (e *Engine) playedArtists(events []*models.ListeningEvent) (map[int64]*models.Artist, error) {
	out := map[int64]*models.Artist{}
	seen := map[int64]bool{}
	for _, ev := range events {
		if ev.ArtistID == nil || seen[*ev.ArtistID] {
			continue
		}
		seen[*ev.ArtistID] = true
		artist, err := e.db.GetArtist(*ev.ArtistID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[artist.ID] = artist
	}
	return out, nil
}

// playedTrackFeatures loads the feature vectors of played tracks that carry
// one.
func (e *Engine) playedTrackFeatures(events []*models.ListeningEvent) (map[int64]*models.AudioFeatures, error) {
	out := map[int64]*models.AudioFeatures{}
	seen := map[int64]bool{}
	for _, ev := range events {
		if ev.TrackID == nil || seen[*ev.TrackID] {
			continue
		}
		seen[*ev.TrackID] = true
		track, err := e.db.GetTrack(*ev.TrackID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if track.Features != nil {
			out[track.ID] = track.Features
		}
	}
	return out, nil
}

// playedAlbumYears maps played album ids to their release years.
func (e *Engine) playedAlbumYears(events []*models.ListeningEvent) (map[int64]int, error) {
	out := map[int64]int{}
	seen := map[int64]bool{}
	for _, ev := range events {
		if ev.AlbumID == nil || seen[*ev.AlbumID] {
			continue
		}
		seen[*ev.AlbumID] = true
		album, err := e.db.GetAlbum(*ev.AlbumID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if album.ReleaseYear != nil {
			out[album.ID] = *album.ReleaseYear
		}
	}
	return out, nil
}

// artistGenres projects loaded artists onto their genre lists.
func artistGenres(artists map[int64]*models.Artist) map[int64][]string {
	out := make(map[int64][]string, len(artists))
	for id, a := range artists {
		if len(a.Genres) > 0 {
			out[id] = a.Genres
		}
	}
	return out
}

// topLibraryArtists ranks played library artists by raw play count.
func topLibraryArtists(events []*models.ListeningEvent, artists map[int64]*models.Artist, n int) []*models.Artist {
	counts := map[int64]int{}
	for _, ev := range events {
		if ev.ArtistID != nil {
			counts[*ev.ArtistID]++
		}
	}
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		if a := artists[id]; a != nil && a.InLibrary {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	out := make([]*models.Artist, 0, len(ids))
	for _, id := range ids {
		out = append(out, artists[id])
	}
	return out
}

func (e *Engine) halfLife(key string, def float64) float64 {
	if v := e.settings.Float(key, def); v > 0 {
		return v
	}
	return def
}
