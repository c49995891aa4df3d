package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/vibarr/vibarr/models"
)

const (
	embeddingDims = 8
	evolutionCap  = 12

	trendStable   = "stable"
	trendEvolving = "evolving"
	trendShifting = "shifting"
)

// featureNames fixes the dimension order of the taste embedding.
var featureNames = [embeddingDims]string{
	"danceability", "energy", "valence", "acousticness",
	"instrumentalness", "liveness", "speechiness", "tempo",
}

// clusterCentroids are the listening personalities an embedding is matched
// against. Dimensions follow featureNames; tempo is on the normalized scale.
var clusterCentroids = map[string][embeddingDims]float64{
	"energetic_explorer":   {0.75, 0.85, 0.65, 0.10, 0.10, 0.25, 0.10, 0.65},
	"chill_curator":        {0.45, 0.30, 0.45, 0.70, 0.30, 0.10, 0.05, 0.30},
	"eclectic_audiophile":  {0.55, 0.55, 0.50, 0.45, 0.40, 0.20, 0.10, 0.50},
	"rhythm_devotee":       {0.85, 0.70, 0.60, 0.15, 0.20, 0.15, 0.15, 0.55},
	"melancholy_romantic":  {0.40, 0.35, 0.25, 0.60, 0.25, 0.10, 0.05, 0.35},
	"instrumental_voyager": {0.45, 0.50, 0.40, 0.45, 0.85, 0.15, 0.02, 0.45},
	"indie_tastemaker":     {0.55, 0.60, 0.55, 0.40, 0.25, 0.30, 0.08, 0.50},
	"high_fidelity_purist": {0.50, 0.55, 0.50, 0.55, 0.60, 0.35, 0.05, 0.45},
}

// featureVector projects audio features onto the embedding dimensions.
// Tempo maps 60-200 BPM onto [0,1].
func featureVector(f *models.AudioFeatures) [embeddingDims]float64 {
	return [embeddingDims]float64{
		clamp01(f.Danceability),
		clamp01(f.Energy),
		clamp01(f.Valence),
		clamp01(f.Acousticness),
		clamp01(f.Instrumentalness),
		clamp01(f.Liveness),
		clamp01(f.Speechiness),
		clamp01((f.Tempo - 60) / 140),
	}
}

// computeEmbedding builds the weighted mean feature vector over plays whose
// track carries features. Skipped plays repel: their weight flips negative,
// pulling the mean away from what the user rejects. Returns nil when no play
// contributed.
func computeEmbedding(events []*models.ListeningEvent, features map[int64]*models.AudioFeatures, halfLifeDays float64, now time.Time) ([]float64, int) {
	var sum [embeddingDims]float64
	var totalWeight float64
	samples := 0

	for _, e := range events {
		if e.TrackID == nil {
			continue
		}
		f := features[*e.TrackID]
		if f == nil {
			continue
		}
		w := decayWeight(now.Sub(e.PlayedAt).Hours()/24, halfLifeDays) * clamp01(e.Completion/100)
		if e.Skipped {
			w *= skipRepulsion
		}
		if w == 0 {
			continue
		}
		v := featureVector(f)
		for i := range sum {
			sum[i] += w * v[i]
		}
		totalWeight += math.Abs(w)
		samples++
	}
	if samples == 0 || totalWeight == 0 {
		return nil, 0
	}

	out := make([]float64, embeddingDims)
	for i := range sum {
		out[i] = clamp01(sum[i] / totalWeight)
	}
	return out, samples
}

// featureMap names the dimensions of an embedding vector.
func featureMap(embedding []float64) map[string]float64 {
	if len(embedding) != embeddingDims {
		return nil
	}
	out := make(map[string]float64, embeddingDims)
	for i, name := range featureNames {
		out[name] = embedding[i]
	}
	return out
}

// classifyCluster assigns the nearest personality centroid by Euclidean
// distance. Confidence is 1 at the centroid and falls off toward the
// diagonal of the unit cube.
func classifyCluster(embedding []float64) (string, float64) {
	if len(embedding) != embeddingDims {
		return "", 0
	}
	names := make([]string, 0, len(clusterCentroids))
	for name := range clusterCentroids {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestDist := math.MaxFloat64
	for _, name := range names {
		c := clusterCentroids[name]
		var sq float64
		for i := range c {
			d := embedding[i] - c[i]
			sq += d * d
		}
		if dist := math.Sqrt(sq); dist < bestDist {
			best, bestDist = name, dist
		}
	}
	return best, clamp01(1 - bestDist/math.Sqrt(embeddingDims))
}

// Cosine is the similarity of two taste embeddings in [0,1] for the
// non-negative vectors used here. Mismatched or empty vectors score zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// appendEvolution records this period's snapshot, replacing an existing
// entry for the same period, and caps history at twelve months.
func appendEvolution(history []models.EvolutionSnapshot, snap models.EvolutionSnapshot) []models.EvolutionSnapshot {
	if n := len(history); n > 0 && history[n-1].Period == snap.Period {
		history[n-1] = snap
		return history
	}
	history = append(history, snap)
	if len(history) > evolutionCap {
		history = history[len(history)-evolutionCap:]
	}
	return history
}

// classifyTrend summarizes taste drift. The trend label comes from the mean
// per-dimension movement between consecutive snapshots; the per-feature
// report compares the oldest snapshot against the newest.
func classifyTrend(history []models.EvolutionSnapshot) (string, []models.FeatureDrift) {
	if len(history) < 2 {
		return trendStable, nil
	}

	var drift float64
	pairs := 0
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1].Embedding, history[i].Embedding
		if len(prev) != embeddingDims || len(cur) != embeddingDims {
			continue
		}
		var d float64
		for j := range prev {
			d += math.Abs(cur[j] - prev[j])
		}
		drift += d / embeddingDims
		pairs++
	}
	if pairs == 0 {
		return trendStable, nil
	}

	trend := trendStable
	switch avg := drift / float64(pairs); {
	case avg >= 0.15:
		trend = trendShifting
	case avg >= 0.05:
		trend = trendEvolving
	}

	var drifts []models.FeatureDrift
	first, last := history[0].Embedding, history[len(history)-1].Embedding
	if len(first) == embeddingDims && len(last) == embeddingDims {
		for i, name := range featureNames {
			delta := last[i] - first[i]
			if math.Abs(delta) < 0.05 {
				continue
			}
			direction := "rising"
			if delta < 0 {
				direction = "falling"
			}
			drifts = append(drifts, models.FeatureDrift{
				Feature:   name,
				Direction: direction,
				Magnitude: math.Abs(delta),
			})
		}
	}
	return trend, drifts
}
