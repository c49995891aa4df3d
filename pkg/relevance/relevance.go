// Package relevance holds the text normalization and release scoring shared
// by the indexer search path and the torrent-name identity bridge. Both sides
// must normalize identically or hash resolution silently fails.
package relevance

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

var (
	editionPhrases = regexp.MustCompile(`\b(super deluxe|bonus tracks?)\b`)
	editionWords   = regexp.MustCompile(`\b(deluxe|expanded|anniversary|collectors|special|remastered|remaster|reissue|edition)\b`)
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]+`)
	spaces         = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, folds connectors to "and", strips punctuation,
// drops edition decorations and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "+", " and ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")
	s = nonAlnum.ReplaceAllString(s, " ")
	s = editionPhrases.ReplaceAllString(s, " ")
	s = editionWords.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens returns the normalized token list.
func Tokens(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// coverage is the fraction of query tokens present in the candidate set.
// An empty query is vacuously covered.
func coverage(query []string, candidate map[string]struct{}) float64 {
	if len(query) == 0 {
		return 1
	}
	hits := 0
	for _, t := range query {
		if _, ok := candidate[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// Quality tiers ordered worst to best. ParseQuality maps a release title
// onto one of these; an unrecognized title yields "".
var qualityRank = map[string]int{
	"mp3":     1,
	"192":     2,
	"256":     3,
	"v0":      4,
	"320":     5,
	"flac":    6,
	"flac-24": 7,
}

var (
	hiResFlac = regexp.MustCompile(`flac[^a-z0-9]{0,3}24|24[^a-z0-9]{0,3}bit`)
	qualityRe = map[string]*regexp.Regexp{
		"320": regexp.MustCompile(`\b320(?:kbps)?\b`),
		"v0":  regexp.MustCompile(`\bv0\b`),
		"256": regexp.MustCompile(`\b256(?:kbps)?\b`),
		"192": regexp.MustCompile(`\b192(?:kbps)?\b`),
	}
	containerRe = regexp.MustCompile(`\b(flac|mp3|aac|ogg|opus)\b`)
)

// ParseQuality extracts the bitrate/encoding tier from a release title.
func ParseQuality(title string) string {
	t := strings.ToLower(title)
	if strings.Contains(t, "flac") {
		if hiResFlac.MatchString(t) {
			return "flac-24"
		}
		return "flac"
	}
	for _, q := range []string{"320", "v0", "256", "192"} {
		if qualityRe[q].MatchString(t) {
			return q
		}
	}
	if strings.Contains(t, "mp3") {
		return "mp3"
	}
	return ""
}

// ParseFormat extracts the container format from a release title.
func ParseFormat(title string) string {
	m := containerRe.FindString(strings.ToLower(title))
	return m
}

// Score is the per-component breakdown of one release against a target.
type Score struct {
	ArtistCoverage float64 `json:"artist_coverage"`
	AlbumCoverage  float64 `json:"album_coverage"`
	OverlapRatio   float64 `json:"overlap_ratio"`

	Title      float64 `json:"title"`
	Format     float64 `json:"format"`
	Seeders    float64 `json:"seeders"`
	SizeSanity float64 `json:"size_sanity"`

	Total               float64 `json:"total"`
	PassesTextRelevance bool    `json:"passes_text_relevance"`
	Quality             string  `json:"quality"`
}

const (
	minSaneSize = 50 * humanize.MiByte
	maxSaneSize = 2 * humanize.GiByte

	coveragePenalty = 10.0
)

// ScoreRelease scores a single indexer result against the wanted artist and
// album. minOverlap is the text-relevance gate threshold (0.6 by default,
// operator-tunable). The total tops out around 100.
func ScoreRelease(artist, album, preferredFormat, releaseTitle string, seeders int, sizeBytes int64, minOverlap float64) Score {
	if minOverlap <= 0 {
		minOverlap = 0.6
	}

	artistTokens := Tokens(artist)
	albumTokens := Tokens(album)
	targetTokens := append(append([]string{}, artistTokens...), albumTokens...)
	titleSet := tokenSet(Tokens(releaseTitle))

	s := Score{
		ArtistCoverage: coverage(artistTokens, titleSet),
		AlbumCoverage:  coverage(albumTokens, titleSet),
		Quality:        ParseQuality(releaseTitle),
	}

	shared := 0
	seen := map[string]struct{}{}
	for _, t := range targetTokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := titleSet[t]; ok {
			shared++
		}
	}
	if len(seen) > 0 {
		s.OverlapRatio = float64(shared) / float64(len(seen))
	}
	s.PassesTextRelevance = s.OverlapRatio >= minOverlap

	s.Title = s.ArtistCoverage*24 + s.AlbumCoverage*26
	if s.Title > 50 {
		s.Title = 50
	}
	if s.OverlapRatio < 0.55 {
		s.Title -= coveragePenalty
	}
	if s.ArtistCoverage < 0.45 {
		s.Title -= coveragePenalty
	}
	if s.AlbumCoverage < 0.45 {
		s.Title -= coveragePenalty
	}
	if s.Title < 0 {
		s.Title = 0
	}

	s.Format = formatScore(preferredFormat, s.Quality)
	s.Seeders = seederScore(seeders)
	if sizeBytes > minSaneSize && sizeBytes < maxSaneSize {
		s.SizeSanity = 5
	}

	s.Total = s.Title + s.Format + s.Seeders + s.SizeSanity
	return s
}

// formatScore rewards closeness between the wanted and detected quality
// tier. Without a preference the tier alone decides.
func formatScore(preferred, detected string) float64 {
	if preferred == "" {
		switch qualityRank[detected] {
		case 7, 6:
			return 28
		case 5, 4:
			return 26
		case 3, 2, 1:
			return 24
		default:
			return 22
		}
	}
	diff := qualityRank[detected] - qualityRank[strings.ToLower(preferred)]
	if diff < 0 {
		diff = -diff
	}
	score := 30 - 2*float64(diff)
	if score < 22 {
		return 22
	}
	return score
}

func seederScore(seeders int) float64 {
	switch {
	case seeders > 100:
		return 15
	case seeders > 50:
		return 12
	case seeders > 20:
		return 9
	case seeders > 5:
		return 6
	case seeders > 0:
		return 3
	default:
		return 0
	}
}

// Ranked sorts indexes of scored releases so that every gate-passing result
// precedes every failing one, best score first within each half.
func Ranked(scores []Score) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := scores[idx[a]], scores[idx[b]]
		if sa.PassesTextRelevance != sb.PassesTextRelevance {
			return sa.PassesTextRelevance
		}
		return sa.Total > sb.Total
	})
	return idx
}

// TitlesMatch reports whether a download-client item name refers to the
// expected release. Containment either way tolerates client-side renames
// like trailing tags or truncation.
func TitlesMatch(expected, actual string) bool {
	ne, na := Normalize(expected), Normalize(actual)
	if ne == "" || na == "" {
		return false
	}
	return ne == na || strings.Contains(na, ne) || strings.Contains(ne, na)
}
