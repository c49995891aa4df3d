package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/vibarr/models"
)

func snap(period string, fill float64) models.EvolutionSnapshot {
	emb := make([]float64, embeddingDims)
	for i := range emb {
		emb[i] = fill
	}
	return models.EvolutionSnapshot{Period: period, Embedding: emb, SampleSize: 10}
}

func TestFeatureVector(t *testing.T) {
	f := &models.AudioFeatures{
		Danceability: 0.5, Energy: 1.4, Valence: -0.2,
		Acousticness: 0.3, Instrumentalness: 0.2, Liveness: 0.1,
		Speechiness: 0.05, Tempo: 130,
	}
	v := featureVector(f)

	assert.InDelta(t, 0.5, v[0], 1e-9)
	assert.InDelta(t, 1.0, v[1], 1e-9) // clamped high
	assert.InDelta(t, 0.0, v[2], 1e-9) // clamped low
	assert.InDelta(t, 0.5, v[7], 1e-9) // 130 BPM sits mid-scale
}

func TestFeatureVectorTempoBounds(t *testing.T) {
	assert.Zero(t, featureVector(&models.AudioFeatures{Tempo: 60})[7])
	assert.Zero(t, featureVector(&models.AudioFeatures{Tempo: 40})[7])
	assert.InDelta(t, 1.0, featureVector(&models.AudioFeatures{Tempo: 200})[7], 1e-9)
	assert.InDelta(t, 1.0, featureVector(&models.AudioFeatures{Tempo: 300})[7], 1e-9)
}

func TestComputeEmbeddingAveragesPlays(t *testing.T) {
	features := map[int64]*models.AudioFeatures{
		1: {Energy: 0.9, Valence: 0.8, Tempo: 60},
		2: {Energy: 0.1, Valence: 0.4, Tempo: 200},
	}
	events := []*models.ListeningEvent{
		trackPlay(1, 0, 100, false),
		trackPlay(2, 0, 100, false),
	}

	emb, samples := computeEmbedding(events, features, 21, testNow)

	require.NotNil(t, emb)
	require.Len(t, emb, embeddingDims)
	assert.Equal(t, 2, samples)
	assert.InDelta(t, 0.5, emb[1], 1e-9)
	assert.InDelta(t, 0.6, emb[2], 1e-9)
	assert.InDelta(t, 0.5, emb[7], 1e-9)
}

func TestComputeEmbeddingSkipsRepel(t *testing.T) {
	features := map[int64]*models.AudioFeatures{
		1: {Energy: 0.9},
		2: {Energy: 0.9},
	}
	played := []*models.ListeningEvent{trackPlay(1, 0, 100, false)}
	withSkip := append(played, trackPlay(2, 0, 100, true))

	base, _ := computeEmbedding(played, features, 21, testNow)
	repelled, samples := computeEmbedding(withSkip, features, 21, testNow)

	assert.Equal(t, 2, samples)
	assert.Less(t, repelled[1], base[1])
	assert.InDelta(t, 0.6, repelled[1], 1e-9) // (0.9 - 0.2*0.9) / 1.2
}

func TestComputeEmbeddingNoUsableSamples(t *testing.T) {
	// Plays without a track attached contribute nothing.
	emb, n := computeEmbedding([]*models.ListeningEvent{play(1, 0, 100, false)}, nil, 21, testNow)
	assert.Nil(t, emb)
	assert.Zero(t, n)

	// Neither do tracks whose features were never fetched.
	emb, _ = computeEmbedding([]*models.ListeningEvent{trackPlay(1, 0, 100, false)},
		map[int64]*models.AudioFeatures{}, 21, testNow)
	assert.Nil(t, emb)

	// Zero-completion plays carry zero weight.
	emb, _ = computeEmbedding([]*models.ListeningEvent{trackPlay(1, 0, 0, false)},
		map[int64]*models.AudioFeatures{1: {Energy: 0.5}}, 21, testNow)
	assert.Nil(t, emb)
}

func TestFeatureMap(t *testing.T) {
	m := featureMap([]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8})

	require.Len(t, m, embeddingDims)
	assert.InDelta(t, 0.1, m["danceability"], 1e-9)
	assert.InDelta(t, 0.2, m["energy"], 1e-9)
	assert.InDelta(t, 0.8, m["tempo"], 1e-9)

	assert.Nil(t, featureMap([]float64{0.1}))
	assert.Nil(t, featureMap(nil))
}

func TestClassifyClusterPicksNearestCentroid(t *testing.T) {
	for name, c := range clusterCentroids {
		got, conf := classifyCluster(c[:])
		assert.Equal(t, name, got)
		assert.InDelta(t, 1.0, conf, 1e-9)
	}
}

func TestClassifyClusterConfidenceFallsWithDistance(t *testing.T) {
	c := clusterCentroids["chill_curator"]
	off := make([]float64, embeddingDims)
	for i := range off {
		off[i] = clamp01(c[i] + 0.1)
	}

	name, conf := classifyCluster(off)

	assert.NotEmpty(t, name)
	assert.Less(t, conf, 1.0)
	assert.Greater(t, conf, 0.0)
}

func TestClassifyClusterRejectsWrongDims(t *testing.T) {
	name, conf := classifyCluster([]float64{0.5})
	assert.Empty(t, name)
	assert.Zero(t, conf)
}

func TestAppendEvolutionReplacesSamePeriod(t *testing.T) {
	hist := appendEvolution(nil, snap("2025-05", 0.1))
	hist = appendEvolution(hist, snap("2025-06", 0.2))
	require.Len(t, hist, 2)

	// A rerun within the month overwrites that month's snapshot.
	hist = appendEvolution(hist, snap("2025-06", 0.9))
	require.Len(t, hist, 2)
	assert.InDelta(t, 0.9, hist[1].Embedding[0], 1e-9)
}

func TestAppendEvolutionCapsHistory(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var hist []models.EvolutionSnapshot
	for i := 0; i < 14; i++ {
		hist = appendEvolution(hist, snap(start.AddDate(0, i, 0).Format("2006-01"), float64(i)/20))
	}

	require.Len(t, hist, evolutionCap)
	assert.Equal(t, "2024-03", hist[0].Period)
	assert.Equal(t, "2025-02", hist[len(hist)-1].Period)
}

func TestClassifyTrend(t *testing.T) {
	trend, drifts := classifyTrend(nil)
	assert.Equal(t, trendStable, trend)
	assert.Nil(t, drifts)

	trend, drifts = classifyTrend([]models.EvolutionSnapshot{snap("2025-05", 0.5), snap("2025-06", 0.5)})
	assert.Equal(t, trendStable, trend)
	assert.Empty(t, drifts)

	trend, drifts = classifyTrend([]models.EvolutionSnapshot{snap("2025-05", 0.4), snap("2025-06", 0.5)})
	assert.Equal(t, trendEvolving, trend)
	require.Len(t, drifts, embeddingDims)
	assert.Equal(t, "rising", drifts[0].Direction)
	assert.InDelta(t, 0.1, drifts[0].Magnitude, 1e-9)

	trend, drifts = classifyTrend([]models.EvolutionSnapshot{snap("2025-05", 0.7), snap("2025-06", 0.5)})
	assert.Equal(t, trendShifting, trend)
	require.Len(t, drifts, embeddingDims)
	assert.Equal(t, "falling", drifts[0].Direction)
}

func TestClassifyTrendRoundTrip(t *testing.T) {
	// Taste that wandered off and came back: big consecutive movement but no
	// net feature drift to report.
	history := []models.EvolutionSnapshot{
		snap("2025-04", 0.3),
		snap("2025-05", 0.5),
		snap("2025-06", 0.3),
	}

	trend, drifts := classifyTrend(history)

	assert.Equal(t, trendShifting, trend)
	assert.Empty(t, drifts)
}
