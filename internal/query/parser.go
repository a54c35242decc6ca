// Package query parses free-text song queries into a title and an optional
// artist. Parsing is pure and total: it never fails and never touches the
// network.
package query

import (
	"strings"
	"unicode"

	"github.com/sydlexius/songcanon/internal/normalize"
)

// ParsedQuery is the parsed form of a raw song query.
type ParsedQuery struct {
	Title  string
	Artist string // empty when no artist was detected
}

// HasArtist reports whether an explicit or inferred artist is present.
func (q ParsedQuery) HasArtist() bool { return q.Artist != "" }

// SingleWord reports whether the title is a single word.
func (q ParsedQuery) SingleWord() bool {
	return len(strings.Fields(q.Title)) == 1
}

// dashSeparators in priority order after " by ".
var dashSeparators = []string{" - ", " – ", " — "}

// Parse splits a raw query into title and optional artist. Rules, in
// priority order: an explicit " by " separator, a dash separator, a comma,
// short queries kept whole, and finally a trailing proper-noun heuristic.
func Parse(raw string) ParsedQuery {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedQuery{}
	}

	// Rule 1: explicit " by " separator ("jump by van halen").
	if title, artist, ok := splitLast(s, " by "); ok {
		return ParsedQuery{Title: title, Artist: artist}
	}

	// Rule 2: dash separators ("jump - van halen").
	for _, sep := range dashSeparators {
		if title, artist, ok := splitFirst(s, sep); ok {
			return ParsedQuery{Title: title, Artist: artist}
		}
	}

	// Rule 3: comma ("jump, van halen").
	if title, artist, ok := splitFirst(s, ","); ok {
		return ParsedQuery{Title: title, Artist: artist}
	}

	words := strings.Fields(s)

	// Rule 4: two words or fewer is always a bare title.
	if len(words) <= 2 {
		return ParsedQuery{Title: s}
	}

	// Rule 5: trailing-artist heuristic. In a case-aware query the trailing
	// two words must look like a proper name ("the dude Quincy Jones"); in
	// all-lowercase freetext, where capitalization carries no signal, they
	// qualify when neither is a function word ("jump van halen" splits,
	// "my heart will go on" and "total eclipse of the heart" stay titles).
	tail := words[len(words)-2:]
	caseAware := strings.ToLower(s) != s
	artistLike := false
	if caseAware {
		artistLike = looksLikeProperName(tail) && !allFunctionWords(tail)
	} else {
		artistLike = noFunctionWords(tail)
	}
	if artistLike {
		return ParsedQuery{
			Title:  strings.Join(words[:len(words)-2], " "),
			Artist: strings.Join(tail, " "),
		}
	}

	return ParsedQuery{Title: s}
}

// splitFirst splits on the first occurrence of sep; both halves must be
// non-empty.
func splitFirst(s, sep string) (title, artist string, ok bool) {
	idx := strings.Index(strings.ToLower(s), sep)
	if idx < 0 {
		return "", "", false
	}
	title = strings.TrimSpace(s[:idx])
	artist = strings.TrimSpace(s[idx+len(sep):])
	if title == "" || artist == "" {
		return "", "", false
	}
	return title, artist, true
}

// splitLast splits on the last occurrence of sep, so titles containing the
// separator themselves ("stand by me by ben e. king") keep their longest
// sensible title.
func splitLast(s, sep string) (title, artist string, ok bool) {
	idx := strings.LastIndex(strings.ToLower(s), sep)
	if idx < 0 {
		return "", "", false
	}
	title = strings.TrimSpace(s[:idx])
	artist = strings.TrimSpace(s[idx+len(sep):])
	if title == "" || artist == "" {
		return "", "", false
	}
	return title, artist, true
}

// looksLikeProperName reports whether every word is capitalized or carries
// name-characteristic punctuation (&, ., or an apostrophe beside a capital).
func looksLikeProperName(words []string) bool {
	for _, w := range words {
		if !properNameWord(w) {
			return false
		}
	}
	return true
}

func properNameWord(w string) bool {
	if w == "" {
		return false
	}
	r := []rune(w)[0]
	if unicode.IsUpper(r) {
		return true
	}
	if strings.ContainsAny(w, "&.") {
		return true
	}
	if idx := strings.IndexRune(w, '\''); idx >= 0 {
		rs := []rune(w)
		for i, c := range rs {
			if c != '\'' {
				continue
			}
			if i > 0 && unicode.IsUpper(rs[i-1]) {
				return true
			}
			if i+1 < len(rs) && unicode.IsUpper(rs[i+1]) {
				return true
			}
		}
	}
	return false
}

func allFunctionWords(words []string) bool {
	for _, w := range words {
		if !normalize.IsFunctionWord(w) {
			return false
		}
	}
	return true
}

func noFunctionWords(words []string) bool {
	for _, w := range words {
		if normalize.IsFunctionWord(w) {
			return false
		}
	}
	return true
}
