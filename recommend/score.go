package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/models"
)

// Score factor names, persisted verbatim in each recommendation's
// score_factors map.
const (
	factorGenre        = "genre_affinity"
	factorSourceArtist = "source_artist_affinity"
	factorExternal     = "external_similarity"
	factorAudio        = "audio_similarity"
	factorNovelty      = "novelty"
	factorFeedback     = "feedback"
)

// factorOrder fixes the summation order; the first four are the relevance
// factors.
var factorOrder = []string{
	factorGenre, factorSourceArtist, factorExternal, factorAudio,
	factorNovelty, factorFeedback,
}

var factorWeights = map[string]float64{
	factorGenre:        0.25,
	factorSourceArtist: 0.20,
	factorExternal:     0.20,
	factorAudio:        0.15,
	factorNovelty:      0.10,
	factorFeedback:     0.10,
}

const (
	noveltyKnownArtist   = 0.3
	noveltyUnknownArtist = 0.8

	maxPerArtist   = 3
	maxPerCategory = 15
)

// scoreCandidate completes the factor map and folds it into the confidence
// score. Absent factors drop their weight from the denominator instead of
// dragging the score down.
func scoreCandidate(c *candidate, noveltyPref float64, knownArtist bool, feedback map[string]db.FeedbackStats) {
	base := noveltyUnknownArtist
	if knownArtist {
		base = noveltyKnownArtist
	}
	c.factors[factorNovelty] = clamp01((base + noveltyPref) / 2)

	if stats, ok := feedback[string(c.rec.Category)]; ok {
		if f, ok := feedbackFactor(stats); ok {
			c.factors[factorFeedback] = f
		}
	}

	var weighted, weightSum float64
	var relevanceSum float64
	relevanceCount := 0
	for i, name := range factorOrder {
		v, ok := c.factors[name]
		if !ok {
			continue
		}
		v = clamp01(v)
		weighted += v * factorWeights[name]
		weightSum += factorWeights[name]
		if i < 4 {
			relevanceSum += v
			relevanceCount++
		}
	}

	if weightSum > 0 {
		c.rec.Confidence = weighted / weightSum
	}
	if relevanceCount > 0 {
		c.rec.Relevance = relevanceSum / float64(relevanceCount)
	}
	c.rec.Novelty = c.factors[factorNovelty]
	c.rec.ScoreFactors = c.factors
}

// feedbackFactor summarizes past engagement with a category. No engagement
// at all leaves the factor absent.
func feedbackFactor(s db.FeedbackStats) (float64, bool) {
	den := s.Clicked + s.Dismissed + s.Wishlisted
	if den == 0 {
		return 0, false
	}
	return clamp01(float64(s.Clicked+2*s.Wishlisted) / float64(den)), true
}

// audioFactor measures closeness between the profile's mean features and an
// item's, over the dimensions both sides carry.
func audioFactor(profile, item map[string]float64) (float64, bool) {
	if len(profile) == 0 || len(item) == 0 {
		return 0, false
	}
	var sum float64
	shared := 0
	for name, pv := range profile {
		iv, ok := item[name]
		if !ok {
			continue
		}
		sum += math.Abs(pv - iv)
		shared++
	}
	if shared == 0 {
		return 0, false
	}
	return clamp01(1 - sum/float64(shared)), true
}

// diversify enforces the per-basis-artist and per-category caps on the
// scored candidates. Candidates without an artist basis bypass the artist
// cap. The survivors come back ordered by confidence descending.
func diversify(cands []*candidate, perArtist, perCategory int) []*candidate {
	sorted := make([]*candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].rec.Confidence > sorted[j].rec.Confidence
	})

	artistCount := map[int64]int{}
	categoryCount := map[models.RecommendationCategory]int{}
	out := make([]*candidate, 0, len(sorted))
	for _, c := range sorted {
		if categoryCount[c.rec.Category] >= perCategory {
			continue
		}
		if basis := c.rec.BasedOnArtistID; basis != nil {
			if artistCount[*basis] >= perArtist {
				continue
			}
			artistCount[*basis]++
		}
		categoryCount[c.rec.Category]++
		out = append(out, c)
	}
	return out
}

// categoryTTL is how long fresh recommendations in a category stay live.
// Mood rails churn fastest; deep cuts and release radar age slowest.
func categoryTTL(c models.RecommendationCategory) time.Duration {
	switch c {
	case models.CategoryMoodBased:
		return 3 * 24 * time.Hour
	case models.CategoryDeepCuts, models.CategoryReleaseRadar:
		return 14 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}
