// Package normalize is the single home for the text normalization shared by
// candidate discovery, filtering, scoring, result collapsing, and cache keys.
// Every component that needs to decide whether two titles or two artist names
// refer to the same thing must go through this package so they all agree.
package normalize

import (
	"strings"
	"unicode"
)

// slangPairs maps common slang/abbreviated tokens to their spelled-out forms.
// Variants are generated in both directions.
var slangPairs = map[string]string{
	"u":    "you",
	"ur":   "your",
	"luv":  "love",
	"nite": "night",
	"thru": "through",
	"2":    "to",
	"4":    "for",
}

// featuringMarkers are suffix markers that introduce a guest credit.
var featuringMarkers = []string{" feat. ", " feat ", " ft. ", " ft ", " featuring ", " with "}

// artistJoiners split a multi-artist credit; the first segment is the
// primary artist.
var artistJoiners = []string{" feat. ", " feat ", " ft. ", " ft ", " featuring ", " & ", " and ", " x ", " vs. ", " vs ", ", "}

// Title lowercases and collapses whitespace without touching punctuation.
func Title(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Key folds a string for use in map keys and cache keys: lowercase,
// punctuation stripped, whitespace collapsed to single spaces.
func Key(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '/':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// Everything else (apostrophes, dots, quotes) is dropped.
	}
	return strings.TrimSpace(b.String())
}

// StripFeaturing removes a trailing "feat./ft./featuring/with ..." guest
// credit from a title. Parenthesized forms are handled before bare forms.
func StripFeaturing(title string) string {
	lower := strings.ToLower(title)
	for _, marker := range featuringMarkers {
		// "(feat. X)" or "[feat. X]"
		for _, open := range []string{"(", "["} {
			if idx := strings.Index(lower, open+strings.TrimSpace(marker)+" "); idx >= 0 {
				return strings.TrimSpace(title[:idx])
			}
		}
		if idx := strings.Index(lower, marker); idx >= 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return strings.TrimSpace(title)
}

// PrimaryArtist returns the first credited name from an artist credit,
// stripped of featuring markers and joiners.
func PrimaryArtist(credit string) string {
	lower := strings.ToLower(credit)
	cut := len(credit)
	for _, j := range artistJoiners {
		if idx := strings.Index(lower, j); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(credit[:cut])
}

// WorkKey builds the canonical-work identity key for a (title, artist) pair.
// Two results are the same canonical work iff their WorkKeys match.
func WorkKey(title, artist string) string {
	return Key(StripFeaturing(title)) + "|" + Key(PrimaryArtist(artist))
}

// TitleVariants returns alternate spellings of a title produced by swapping
// slang tokens ("u" <-> "you"). The original title is not included. Variants
// are capped by max; zero or negative max means no variants.
func TitleVariants(title string, max int) []string {
	if max <= 0 {
		return nil
	}
	words := strings.Fields(strings.ToLower(title))
	var variants []string
	seen := map[string]bool{strings.Join(words, " "): true}

	add := func(ws []string, i int, repl string) {
		if len(variants) >= max {
			return
		}
		v := make([]string, len(ws))
		copy(v, ws)
		v[i] = repl
		joined := strings.Join(v, " ")
		if !seen[joined] {
			seen[joined] = true
			variants = append(variants, joined)
		}
	}

	for i, w := range words {
		if full, ok := slangPairs[w]; ok {
			add(words, i, full)
		}
		for slang, full := range slangPairs {
			if w == full {
				add(words, i, slang)
			}
		}
	}
	return variants
}

// EqualFold reports whether two strings normalize to the same key.
func EqualFold(a, b string) bool {
	return Key(a) == Key(b)
}

// IsFunctionWord reports whether the word is a common English function word
// (articles, prepositions, pronouns, auxiliaries). Used by the query parser
// to avoid misreading title tails like "Will Go On" as artist names.
func IsFunctionWord(w string) bool {
	_, ok := functionWords[strings.ToLower(w)]
	return ok
}

var functionWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "nor": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "by": {}, "for": {},
	"with": {}, "from": {}, "into": {}, "over": {}, "under": {}, "up": {},
	"down": {}, "out": {}, "off": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "am": {}, "do": {}, "does": {},
	"did": {}, "will": {}, "would": {}, "can": {}, "could": {}, "shall": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "it": {}, "its": {},
	"i": {}, "me": {}, "my": {}, "you": {}, "your": {}, "he": {}, "him": {},
	"his": {}, "she": {}, "her": {}, "we": {}, "us": {}, "our": {},
	"they": {}, "them": {}, "their": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "go": {}, "not": {}, "no": {},
	"so": {}, "as": {}, "if": {}, "then": {}, "than": {}, "too": {},
	"very": {}, "just": {}, "all": {}, "some": {}, "any": {}, "more": {},
	"most": {}, "other": {}, "such": {}, "only": {}, "own": {}, "same": {},
	"here": {}, "there": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"what": {}, "who": {}, "whom": {}, "which": {}, "again": {}, "once": {},
	"now": {}, "never": {}, "always": {},
}
