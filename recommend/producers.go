package recommend

import (
	"context"
	"strings"
	"time"

	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/registry"
)

const (
	similarBasisLimit = 5
	similarPerArtist  = 10
	exploreGenres     = 3
	genreArtistLimit  = 10
	deepCutAlbums     = 20
	moodTrackLimit    = 8
	historyWindowDays = 14
	historyBasisLimit = 5
	historyPerArtist  = 8
)

// catalogSources is the slice of the external catalog the producers draw
// from. The registry-backed implementation resolves live clients on every
// call so settings changes take effect mid-process; tests install fakes.
type catalogSources interface {
	SimilarArtists(ctx context.Context, artist string, limit int) []models.CatalogArtist
	GenreArtists(ctx context.Context, genre string, limit int) []models.CatalogArtist
	ArtistTopAlbums(ctx context.Context, artist, mbid string, limit int) []models.CatalogAlbum
	SearchTracks(ctx context.Context, query string, limit int) []models.CatalogTrack
}

type registrySources struct {
	clients *registry.Registry
}

func (r registrySources) SimilarArtists(ctx context.Context, artist string, limit int) []models.CatalogArtist {
	if lfm := r.clients.LastFM(); lfm.IsAvailable() {
		return lfm.SimilarArtists(ctx, artist, limit)
	}
	return nil
}

// GenreArtists prefers Deezer, the one catalog with a browsable genre tree,
// and falls back to Last.fm tag charts.
func (r registrySources) GenreArtists(ctx context.Context, genre string, limit int) []models.CatalogArtist {
	if dz := r.clients.Deezer(); dz.IsAvailable() {
		if artists := dz.GenreArtists(ctx, genre, limit); len(artists) > 0 {
			return artists
		}
	}
	if lfm := r.clients.LastFM(); lfm.IsAvailable() {
		return lfm.TagTopArtists(ctx, genre, limit)
	}
	return nil
}

func (r registrySources) ArtistTopAlbums(ctx context.Context, artist, mbid string, limit int) []models.CatalogAlbum {
	if lfm := r.clients.LastFM(); lfm.IsAvailable() {
		if albums := lfm.TopAlbums(ctx, artist, limit); len(albums) > 0 {
			return albums
		}
	}
	mb := r.clients.MusicBrainz()
	if mbid != "" {
		return mb.ArtistReleaseGroups(ctx, mbid, limit)
	}
	return mb.SearchReleaseGroups(ctx, artist, "", limit)
}

func (r registrySources) SearchTracks(ctx context.Context, query string, limit int) []models.CatalogTrack {
	if dz := r.clients.Deezer(); dz.IsAvailable() {
		if tracks := dz.SearchTracks(ctx, query, limit); len(tracks) > 0 {
			return tracks
		}
	}
	if yt := r.clients.YTMusic(); yt.IsAvailable() {
		return yt.SearchTracks(ctx, query, limit)
	}
	return nil
}

// candidate is one produced suggestion before scoring. Producers seed the
// factors they can observe; the scorer adds novelty and feedback.
type candidate struct {
	rec     *models.Recommendation
	factors map[string]float64

	// Recommended artist name, for known-artist checks at scoring time.
	artist string
}

func newCandidate(userID int64, typ models.RecommendationType, category models.RecommendationCategory, artist string) *candidate {
	return &candidate{
		rec: &models.Recommendation{
			UserID:     userID,
			Type:       typ,
			Category:   category,
			ArtistName: artist,
		},
		factors: map[string]float64{},
		artist:  artist,
	}
}

// moods are the fixed mood rails. The first two keywords form the catalog
// query; the full set lands in the reason details.
var moods = []struct {
	name     string
	keywords []string
}{
	{"energetic", []string{"upbeat", "energetic", "power", "workout"}},
	{"chill", []string{"chill", "ambient", "mellow", "lofi"}},
	{"focus", []string{"instrumental", "focus", "study", "minimal"}},
}

// produceSimilarArtists suggests out-of-library artists adjacent to the
// user's most played library artists.
func (e *Engine) produceSimilarArtists(ctx context.Context, userID int64, basis []*models.Artist, aff *Affinity, library map[string]int64) []*candidate {
	var out []*candidate
	seen := map[string]bool{}
	for _, artist := range basis {
		for _, hit := range e.src.SimilarArtists(ctx, artist.Name, similarPerArtist) {
			key := strings.ToLower(hit.Name)
			if hit.Name == "" || seen[key] {
				continue
			}
			if _, inLibrary := library[key]; inLibrary {
				continue
			}
			seen[key] = true

			c := newCandidate(userID, models.RecTypeArtist, models.CategorySimilarArtists, hit.Name)
			c.rec.ImageURL = hit.ImageURL
			c.rec.Reason = "Because you listen to " + artist.Name
			basisID := artist.ID
			c.rec.BasedOnArtistID = &basisID
			if w, ok := aff.Artists[artist.ID]; ok {
				c.factors[factorSourceArtist] = w
			}
			if hit.Match > 0 {
				c.factors[factorExternal] = clamp01(hit.Match)
			}
			if g, ok := genreFactor(hit.Genres, aff); ok {
				c.factors[factorGenre] = g
			}
			out = append(out, c)
		}
	}
	return out
}

// produceGenreExplore pulls chart artists for the user's strongest genres.
func (e *Engine) produceGenreExplore(ctx context.Context, userID int64, profile *models.TasteProfile, aff *Affinity, library map[string]int64) []*candidate {
	var out []*candidate
	seen := map[string]bool{}
	for _, genre := range topKeys(profile.TopGenres, exploreGenres) {
		for _, hit := range e.src.GenreArtists(ctx, genre, genreArtistLimit) {
			key := strings.ToLower(hit.Name)
			if hit.Name == "" || seen[key] {
				continue
			}
			if _, inLibrary := library[key]; inLibrary {
				continue
			}
			seen[key] = true

			c := newCandidate(userID, models.RecTypeArtist, models.CategoryGenreExplore, hit.Name)
			c.rec.ImageURL = hit.ImageURL
			c.rec.Reason = "Popular in " + genre
			c.rec.ReasonDetails = []string{genre}
			if w, ok := aff.Genres[genre]; ok {
				c.factors[factorGenre] = w
			}
			out = append(out, c)
		}
	}
	return out
}

// produceDeepCuts surfaces discography the user is missing from artists
// already in the library.
func (e *Engine) produceDeepCuts(ctx context.Context, userID int64, basis []*models.Artist, aff *Affinity, profileFeatures map[string]float64) []*candidate {
	var out []*candidate
	for _, artist := range basis {
		mbid := ""
		if artist.MusicBrainzID != nil {
			mbid = *artist.MusicBrainzID
		}
		seen := map[string]bool{}
		for _, album := range e.src.ArtistTopAlbums(ctx, artist.Name, mbid, deepCutAlbums) {
			key := strings.ToLower(album.Title)
			if album.Title == "" || seen[key] {
				continue
			}
			seen[key] = true
			if owned, err := e.db.GetAlbumByTitle(artist.ID, album.Title); err != nil {
				e.logger.Warn("deep cut library check failed", "artist", artist.Name, "album", album.Title, "err", err)
				continue
			} else if owned != nil && owned.InLibrary {
				continue
			}

			c := newCandidate(userID, models.RecTypeAlbum, models.CategoryDeepCuts, artist.Name)
			c.rec.AlbumTitle = album.Title
			c.rec.ImageURL = album.CoverURL
			c.rec.Reason = "More from " + artist.Name
			basisID := artist.ID
			c.rec.BasedOnArtistID = &basisID
			if w, ok := aff.Artists[artist.ID]; ok {
				c.factors[factorSourceArtist] = w
			}
			if g, ok := genreFactor(artist.Genres, aff); ok {
				c.factors[factorGenre] = g
			}
			if a, ok := audioFactor(profileFeatures, artistFeatureMap(artist)); ok {
				c.factors[factorAudio] = a
			}
			out = append(out, c)
		}
	}
	return out
}

// produceMoodBased queries the catalog with fixed mood keyword sets.
func (e *Engine) produceMoodBased(ctx context.Context, userID int64, profileFeatures map[string]float64) []*candidate {
	var out []*candidate
	for _, mood := range moods {
		query := strings.Join(mood.keywords[:2], " ")
		seen := map[string]bool{}
		for _, hit := range e.src.SearchTracks(ctx, query, moodTrackLimit) {
			key := strings.ToLower(hit.ArtistName + "\x00" + hit.Title)
			if hit.Title == "" || hit.ArtistName == "" || seen[key] {
				continue
			}
			seen[key] = true

			c := newCandidate(userID, models.RecTypeTrack, models.CategoryMoodBased, hit.ArtistName)
			c.rec.TrackTitle = hit.Title
			c.rec.AlbumTitle = hit.AlbumTitle
			c.rec.Reason = "Matches your " + mood.name + " mood"
			c.rec.ReasonDetails = mood.keywords
			if hit.Features != nil {
				if a, ok := audioFactor(profileFeatures, featureMap(featureSlice(hit.Features))); ok {
					c.factors[factorAudio] = a
				}
			}
			out = append(out, c)
		}
	}
	return out
}

// produceHistoryBased rides the last two weeks of plays: artists adjacent
// to whatever is in heavy rotation right now.
func (e *Engine) produceHistoryBased(ctx context.Context, userID int64, aff *Affinity, library map[string]int64, now time.Time) []*candidate {
	ids, err := e.db.TopPlayedArtists(userID, now.AddDate(0, 0, -historyWindowDays), historyBasisLimit)
	if err != nil {
		e.logger.Warn("recent artist lookup failed", "err", err)
		return nil
	}

	var out []*candidate
	seen := map[string]bool{}
	for _, id := range ids {
		artist, err := e.db.GetArtist(id)
		if err != nil {
			continue
		}
		for _, hit := range e.src.SimilarArtists(ctx, artist.Name, historyPerArtist) {
			key := strings.ToLower(hit.Name)
			if hit.Name == "" || seen[key] {
				continue
			}
			if _, inLibrary := library[key]; inLibrary {
				continue
			}
			seen[key] = true

			c := newCandidate(userID, models.RecTypeArtist, models.CategoryDiscoverWeekly, hit.Name)
			c.rec.ImageURL = hit.ImageURL
			c.rec.Reason = "Because you played " + artist.Name + " recently"
			basisID := artist.ID
			c.rec.BasedOnArtistID = &basisID
			if w, ok := aff.Artists[artist.ID]; ok {
				c.factors[factorSourceArtist] = w
			}
			if hit.Match > 0 {
				c.factors[factorExternal] = clamp01(hit.Match)
			}
			if g, ok := genreFactor(hit.Genres, aff); ok {
				c.factors[factorGenre] = g
			}
			out = append(out, c)
		}
	}
	return out
}

// genreFactor averages the user's genre weights over the item's genres.
// Genres the user has never played count as zero.
func genreFactor(genres []string, aff *Affinity) (float64, bool) {
	if len(genres) == 0 {
		return 0, false
	}
	var sum float64
	for _, g := range genres {
		sum += aff.Genres[strings.ToLower(strings.TrimSpace(g))]
	}
	return clamp01(sum / float64(len(genres))), true
}

// artistFeatureMap exposes an artist's mean audio columns on the embedding
// scale. Only the dimensions the library sync fills are present.
func artistFeatureMap(a *models.Artist) map[string]float64 {
	out := map[string]float64{}
	if a.MeanDanceability != nil {
		out["danceability"] = clamp01(*a.MeanDanceability)
	}
	if a.MeanEnergy != nil {
		out["energy"] = clamp01(*a.MeanEnergy)
	}
	if a.MeanValence != nil {
		out["valence"] = clamp01(*a.MeanValence)
	}
	if a.MeanTempo != nil {
		out["tempo"] = clamp01((*a.MeanTempo - 60) / 140)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func featureSlice(f *models.AudioFeatures) []float64 {
	v := featureVector(f)
	return v[:]
}
