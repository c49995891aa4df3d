package recommend

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vibarr/vibarr/models"
)

const (
	defaultArtistHalfLife    = 14.0
	defaultGenreHalfLife     = 21.0
	defaultEmbeddingHalfLife = 21.0

	// skipDamping shrinks the weight of skipped plays in affinity sums;
	// skipRepulsion turns them into a negative pull in the embedding.
	skipDamping   = 0.3
	skipRepulsion = -0.2
)

// Affinity is the time-decayed view of one user's listening history. Artist
// weights key on artist id, genre weights on lowercased genre name; both are
// normalized so the strongest entry sits at 1.
type Affinity struct {
	Artists map[int64]float64
	Genres  map[string]float64
}

// decayWeight halves a play's contribution every halfLifeDays.
func decayWeight(ageDays, halfLifeDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

// playWeight is the decayed weight of one play, scaled by how much of the
// track was actually heard and damped when the user skipped.
func playWeight(e *models.ListeningEvent, now time.Time, halfLifeDays float64) float64 {
	w := decayWeight(now.Sub(e.PlayedAt).Hours()/24, halfLifeDays)
	w *= clamp01(e.Completion / 100)
	if e.Skipped {
		w *= skipDamping
	}
	return w
}

// ComputeAffinity folds plays into normalized artist and genre weights.
// genresByArtist supplies each played artist's genre list.
func ComputeAffinity(events []*models.ListeningEvent, genresByArtist map[int64][]string, artistHalfLife, genreHalfLife float64, now time.Time) *Affinity {
	artists := make(map[int64]float64)
	genres := make(map[string]float64)
	for _, e := range events {
		if e.ArtistID == nil {
			continue
		}
		id := *e.ArtistID
		artists[id] += playWeight(e, now, artistHalfLife)

		gw := playWeight(e, now, genreHalfLife)
		for _, g := range genresByArtist[id] {
			g = strings.ToLower(strings.TrimSpace(g))
			if g == "" {
				continue
			}
			genres[g] += gw
		}
	}
	normalizeByMax(artists)
	normalizeByMax(genres)
	return &Affinity{Artists: artists, Genres: genres}
}

func normalizeByMax[K comparable](weights map[K]float64) {
	var peak float64
	for _, w := range weights {
		if w > peak {
			peak = w
		}
	}
	if peak <= 0 {
		return
	}
	for k, w := range weights {
		weights[k] = w / peak
	}
}

// noveltyPreference estimates how much a user seeks out new artists. A wide
// rotation relative to play volume pushes it toward 1.
func noveltyPreference(uniqueArtists, totalPlays int) float64 {
	return math.Min(float64(uniqueArtists)/(float64(totalPlays)*0.1+1), 1)
}

// decadeWeights buckets plays by the release decade of the played album.
func decadeWeights(events []*models.ListeningEvent, yearByAlbum map[int64]int, halfLifeDays float64, now time.Time) map[int]float64 {
	out := make(map[int]float64)
	for _, e := range events {
		if e.AlbumID == nil {
			continue
		}
		year, ok := yearByAlbum[*e.AlbumID]
		if !ok || year == 0 {
			continue
		}
		out[year/10*10] += playWeight(e, now, halfLifeDays)
	}
	normalizeByMax(out)
	return out
}

// topWeights keeps the n heaviest entries of a weight map.
func topWeights(weights map[string]float64, n int) map[string]float64 {
	if len(weights) <= n {
		out := make(map[string]float64, len(weights))
		for k, v := range weights {
			out[k] = v
		}
		return out
	}
	keys := sortedKeys(weights)
	out := make(map[string]float64, n)
	for _, k := range keys[:n] {
		out[k] = weights[k]
	}
	return out
}

// topKeys returns up to n keys of the weight map, heaviest first.
func topKeys(weights map[string]float64, n int) []string {
	keys := sortedKeys(weights)
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// sortedKeys orders keys by weight descending, name ascending on ties.
func sortedKeys(weights map[string]float64) []string {
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if weights[keys[i]] != weights[keys[j]] {
			return weights[keys[i]] > weights[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// peakBuckets picks the n busiest histogram buckets, smallest bucket first
// on equal counts.
func peakBuckets(hist map[int]int, n int) []int {
	buckets := make([]int, 0, len(hist))
	for b, count := range hist {
		if count > 0 {
			buckets = append(buckets, b)
		}
	}
	sort.Slice(buckets, func(i, j int) bool {
		if hist[buckets[i]] != hist[buckets[j]] {
			return hist[buckets[i]] > hist[buckets[j]]
		}
		return buckets[i] < buckets[j]
	})
	if len(buckets) > n {
		buckets = buckets[:n]
	}
	sort.Ints(buckets)
	return buckets
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
