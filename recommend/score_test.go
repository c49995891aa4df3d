package recommend

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/models"
)

func seededCandidate(category models.RecommendationCategory, factors map[string]float64) *candidate {
	c := newCandidate(7, models.RecTypeArtist, category, "Test Artist")
	for k, v := range factors {
		c.factors[k] = v
	}
	return c
}

func TestScoreCandidateWeighsPresentFactors(t *testing.T) {
	c := seededCandidate(models.CategorySimilarArtists, map[string]float64{
		factorGenre:        0.8,
		factorSourceArtist: 0.5,
	})

	scoreCandidate(c, 0.4, false, nil)

	novelty := (noveltyUnknownArtist + 0.4) / 2
	wantConfidence := (0.8*0.25 + 0.5*0.20 + novelty*0.10) / (0.25 + 0.20 + 0.10)
	assert.InDelta(t, wantConfidence, c.rec.Confidence, 1e-9)
	assert.InDelta(t, (0.8+0.5)/2, c.rec.Relevance, 1e-9)
	assert.InDelta(t, novelty, c.rec.Novelty, 1e-9)
	assert.Equal(t, c.factors, c.rec.ScoreFactors)
	assert.NotContains(t, c.rec.ScoreFactors, factorFeedback)
}

func TestScoreCandidateNoveltyOnly(t *testing.T) {
	c := seededCandidate(models.CategoryMoodBased, nil)

	scoreCandidate(c, 0.2, false, nil)

	// With no relevance factors the score is the novelty blend alone.
	assert.InDelta(t, (noveltyUnknownArtist+0.2)/2, c.rec.Confidence, 1e-9)
	assert.Zero(t, c.rec.Relevance)
}

func TestScoreCandidateKnownArtistLowersNovelty(t *testing.T) {
	known := seededCandidate(models.CategorySimilarArtists, map[string]float64{factorGenre: 0.6})
	unknown := seededCandidate(models.CategorySimilarArtists, map[string]float64{factorGenre: 0.6})

	scoreCandidate(known, 0.4, true, nil)
	scoreCandidate(unknown, 0.4, false, nil)

	assert.InDelta(t, (noveltyKnownArtist+0.4)/2, known.rec.Novelty, 1e-9)
	assert.Less(t, known.rec.Novelty, unknown.rec.Novelty)
	assert.Less(t, known.rec.Confidence, unknown.rec.Confidence)
}

func TestScoreCandidateFeedbackByCategory(t *testing.T) {
	feedback := map[string]db.FeedbackStats{
		string(models.CategorySimilarArtists): {Clicked: 2, Dismissed: 2},
	}

	engaged := seededCandidate(models.CategorySimilarArtists, map[string]float64{factorGenre: 0.6})
	scoreCandidate(engaged, 0.5, false, feedback)
	assert.InDelta(t, 0.5, engaged.rec.ScoreFactors[factorFeedback], 1e-9)

	other := seededCandidate(models.CategoryDeepCuts, map[string]float64{factorGenre: 0.6})
	scoreCandidate(other, 0.5, false, feedback)
	assert.NotContains(t, other.rec.ScoreFactors, factorFeedback)
}

func TestFeedbackFactor(t *testing.T) {
	cases := []struct {
		name  string
		stats db.FeedbackStats
		want  float64
		ok    bool
	}{
		{"no engagement", db.FeedbackStats{}, 0, false},
		{"dismissals only", db.FeedbackStats{Dismissed: 3}, 0, true},
		{"mixed", db.FeedbackStats{Clicked: 1, Dismissed: 3}, 0.25, true},
		{"wishlists count double", db.FeedbackStats{Clicked: 1, Dismissed: 1, Wishlisted: 1}, 1.0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := feedbackFactor(tc.stats)
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestAudioFactor(t *testing.T) {
	profile := map[string]float64{"energy": 0.8, "valence": 0.6}

	f, ok := audioFactor(profile, map[string]float64{"energy": 0.8, "valence": 0.6})
	require.True(t, ok)
	assert.InDelta(t, 1.0, f, 1e-9)

	f, ok = audioFactor(profile, map[string]float64{"energy": 0.3, "valence": 0.1})
	require.True(t, ok)
	assert.InDelta(t, 0.5, f, 1e-9)

	// Only shared dimensions are compared.
	f, ok = audioFactor(profile, map[string]float64{"energy": 0.8, "tempo": 0.1})
	require.True(t, ok)
	assert.InDelta(t, 1.0, f, 1e-9)

	_, ok = audioFactor(profile, map[string]float64{"tempo": 0.4})
	assert.False(t, ok)
	_, ok = audioFactor(nil, profile)
	assert.False(t, ok)
}

func TestDiversifyCapsPerBasisArtist(t *testing.T) {
	basis := int64(42)
	var cands []*candidate
	for i := 0; i < 5; i++ {
		c := newCandidate(1, models.RecTypeArtist, models.CategorySimilarArtists, fmt.Sprintf("artist %d", i))
		c.rec.BasedOnArtistID = &basis
		c.rec.Confidence = float64(10-i) / 10
		cands = append(cands, c)
	}

	out := diversify(cands, 3, 15)

	require.Len(t, out, 3)
	assert.InDelta(t, 1.0, out[0].rec.Confidence, 1e-9)
	assert.InDelta(t, 0.8, out[2].rec.Confidence, 1e-9)
}

func TestDiversifyCapsPerCategory(t *testing.T) {
	var cands []*candidate
	for i := 0; i < 20; i++ {
		// No artist basis, so only the category cap applies.
		c := newCandidate(1, models.RecTypeTrack, models.CategoryMoodBased, fmt.Sprintf("artist %d", i))
		c.rec.Confidence = float64(i) / 20
		cands = append(cands, c)
	}

	out := diversify(cands, 3, 15)

	assert.Len(t, out, 15)
}

func TestDiversifyOrdersByConfidence(t *testing.T) {
	confidences := []float64{0.3, 0.9, 0.1, 0.7}
	var cands []*candidate
	for i, conf := range confidences {
		c := newCandidate(1, models.RecTypeArtist, models.CategoryGenreExplore, fmt.Sprintf("artist %d", i))
		c.rec.Confidence = conf
		cands = append(cands, c)
	}

	out := diversify(cands, 3, 15)

	require.Len(t, out, 4)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].rec.Confidence, out[i].rec.Confidence)
	}
}

func TestDiversifySpreadsAcrossBasisArtists(t *testing.T) {
	mk := func(basis int64, conf float64) *candidate {
		c := newCandidate(1, models.RecTypeArtist, models.CategorySimilarArtists, fmt.Sprintf("a%d-%v", basis, conf))
		id := basis
		c.rec.BasedOnArtistID = &id
		c.rec.Confidence = conf
		return c
	}
	cands := []*candidate{
		mk(1, 0.9), mk(1, 0.8), mk(1, 0.7), mk(1, 0.6),
		mk(2, 0.5), mk(2, 0.4),
	}

	out := diversify(cands, 3, 15)

	require.Len(t, out, 5)
	// The fourth candidate from basis artist 1 lost its slot; both from
	// artist 2 survive.
	perBasis := map[int64]int{}
	for _, c := range out {
		perBasis[*c.rec.BasedOnArtistID]++
	}
	assert.Equal(t, 3, perBasis[1])
	assert.Equal(t, 2, perBasis[2])
}

func TestCategoryTTL(t *testing.T) {
	assert.Equal(t, 3*24*time.Hour, categoryTTL(models.CategoryMoodBased))
	assert.Equal(t, 14*24*time.Hour, categoryTTL(models.CategoryDeepCuts))
	assert.Equal(t, 14*24*time.Hour, categoryTTL(models.CategoryReleaseRadar))
	assert.Equal(t, 7*24*time.Hour, categoryTTL(models.CategorySimilarArtists))
	assert.Equal(t, 7*24*time.Hour, categoryTTL(models.CategoryDiscoverWeekly))
	assert.Equal(t, 7*24*time.Hour, categoryTTL(models.CategoryGenreExplore))
}
