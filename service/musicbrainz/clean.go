package musicbrainz

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// Search text arriving from playlists, scrobbles and release feeds carries
// decoration MusicBrainz does not index: "(Remastered 2009)", "feat. X",
// "Song - Single Version". The cleaner strips the decoration so a lookup
// that found nothing can be retried with the bare title.

// decorationWords mark a variant of a work rather than a different work.
// A bracketed fragment made mostly of these is safe to drop.
var decorationWords = []string{
	"a cappella", "acoustic", "bonus", "censored", "clean", "club", "clubmix", "composition",
	"cut", "dance", "demo", "dialogue", "dirty", "edit", "excerpt", "explicit", "extended",
	"instrumental", "interlude", "intro", "karaoke", "live", "long", "main", "maxi", "megamix",
	"mix", "mono", "official", "orchestral", "original", "outro", "outtake", "outtakes", "piano",
	"quadraphonic", "radio", "rap", "re-edit", "reedit", "refix", "rehearsal", "reinterpreted",
	"released", "release", "remake", "remastered", "remaster", "master", "remix", "remixed",
	"remode", "reprise", "rework", "reworked", "rmx", "session", "short", "single", "skit",
	"stereo", "studio", "take", "takes", "tape", "track", "tryout", "uncensored", "unknown",
	"unplugged", "untitled", "version", "ver", "video", "vocal", "vs", "with", "without",
}

var punctuation = "1234567890!@#$%^&*()-=_+[]{};\"|;'\\<>?/.,~`"

type Cleaner struct {
	titleExprs  []*regexp2.Regexp
	artistExprs []*regexp2.Regexp
	yearExpr    *regexp2.Regexp
	script      string
}

// NewCleaner builds a cleaner that keeps runes from the given script
// ("Latin", "Han", "Cyrillic", "Devanagari") plus everything script-neutral.
func NewCleaner(script string) *Cleaner {
	titlePatterns := []string{
		`(?<title>.+?)\s+(?<enclosed>\(.+\)|\[.+\]|\{.+\}|\<.+\>)$`,
		`(?<title>.+?)\s+?(?<feat>[\[\(]?(?:feat(?:uring)?|ft)\b\.?)\s*?(?<artists>.+)\s*`,
		`(?<title>.+?)(?:\s+?[\u2010\u2012\u2013\u2014~/-])(?![^(]*\))(?<dash>.*)`,
	}
	artistPatterns := []string{
		`(?<primary>.+?)(?:\s*?,)(?<rest>.*)`,
		`(?<primary>.+?)(?:\s+?(&|with))(?<rest>.*)`,
	}

	c := &Cleaner{
		script:   script,
		yearExpr: regexp2.MustCompile(`(20[0-9]{2}|19[0-9]{2})`, 0),
	}
	for _, p := range titlePatterns {
		c.titleExprs = append(c.titleExprs, regexp2.MustCompile(`(?i)`+p, 0))
	}
	for _, p := range artistPatterns {
		c.artistExprs = append(c.artistExprs, regexp2.MustCompile(`(?i)`+p, 0))
	}
	return c
}

// Title strips featured-artist credits, decorated parentheticals and dash
// suffixes from a track or album title. The second return reports whether
// anything was stripped.
func (c *Cleaner) Title(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !balancedBrackets(text) {
		return text, false
	}
	text = c.keepScript(text)

	for _, expr := range c.titleExprs {
		match, _ := expr.FindStringMatch(text)
		if match == nil {
			continue
		}
		groups := namedGroups(expr, match)
		if enclosed := groups["enclosed"]; enclosed != "" && c.likelyDecoration(enclosed) {
			return groups["title"], true
		}
		if groups["feat"] != "" {
			return groups["title"], true
		}
		if dash := groups["dash"]; dash != "" && c.likelyDecoration(dash) {
			return groups["title"], true
		}
	}
	return strings.TrimSpace(text), false
}

// Artist reduces a joined credit ("A, B", "A & B", "A with B") to the
// primary artist.
func (c *Cleaner) Artist(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !balancedBrackets(text) {
		return text, false
	}
	text = c.keepScript(text)

	for _, expr := range c.artistExprs {
		match, _ := expr.FindStringMatch(text)
		if match == nil {
			continue
		}
		primary := namedGroups(expr, match)["primary"]
		r, _ := utf8.DecodeRuneInString(primary)
		if utf8.RuneCountInString(primary) > 2 && unicode.IsLetter(r) {
			return primary, true
		}
	}
	return strings.TrimSpace(text), false
}

func namedGroups(expr *regexp2.Regexp, match *regexp2.Match) map[string]string {
	groups := make(map[string]string)
	for _, name := range expr.GetGroupNames() {
		groups[name] = strings.TrimSpace(match.GroupByName(name).String())
	}
	return groups
}

// likelyDecoration reports whether a fragment is mostly variant markers,
// years and punctuation rather than a real subtitle.
func (c *Cleaner) likelyDecoration(fragment string) bool {
	f := strings.ToLower(fragment)
	before := utf8.RuneCountInString(f)
	for _, w := range decorationWords {
		f = strings.ReplaceAll(f, w, "")
	}
	f, _ = c.yearExpr.Replace(f, "", -1, -1)

	markers := before - utf8.RuneCountInString(f)
	letters := 0
	for _, r := range f {
		if strings.ContainsRune(punctuation, r) {
			markers++
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return markers > letters
}

// keepScript drops runes outside the preferred script so mixed-script
// titles match their transliterated MusicBrainz entry. The original text
// wins when the filter would leave no letters behind.
func (c *Cleaner) keepScript(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	dropped := false
	letters := false
	for _, r := range text {
		if unicode.Is(unicode.Common, r) || c.inScript(r) {
			b.WriteRune(r)
			if unicode.IsLetter(r) {
				letters = true
			}
		} else {
			dropped = true
		}
	}

	out := strings.TrimSpace(b.String())
	if dropped && letters && out != "" {
		return out
	}
	return text
}

func (c *Cleaner) inScript(r rune) bool {
	switch c.script {
	case "Latin":
		return unicode.Is(unicode.Latin, r)
	case "Han":
		return unicode.Is(unicode.Han, r)
	case "Cyrillic":
		return unicode.Is(unicode.Cyrillic, r)
	case "Devanagari":
		return unicode.Is(unicode.Devanagari, r)
	default:
		return false
	}
}

// balancedBrackets guards the regexes against truncated titles where an
// open bracket never closes.
func balancedBrackets(text string) bool {
	pairs := [...][2]rune{{'(', ')'}, {'[', ']'}, {'{', '}'}, {'<', '>'}}
	for _, p := range pairs {
		if strings.Count(text, string(p[0])) != strings.Count(text, string(p[1])) {
			return false
		}
	}
	return true
}
