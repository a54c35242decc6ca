package resolver

import (
	"strings"

	"github.com/sydlexius/songcanon/internal/normalize"
)

// disqualifyingSecondaryTypes are release secondary types that mark a
// non-studio context.
var disqualifyingSecondaryTypes = map[string]bool{
	"live":           true,
	"remix":          true,
	"dj-mix":         true,
	"mixtape":        true,
	"mixtape/street": true,
}

// disqualifyingKeywords in a recording title mark alternate versions that
// are never the canonical studio take.
var disqualifyingKeywords = []string{
	"live", "remaster", "remastered", "remix", "demo", "karaoke",
	"acoustic", "instrumental", "cover", "tribute", "sped up",
	"taylor's version", "re-recording", "re-recorded", "rerecorded",
	"radio edit", "single version",
}

// TitleMatches reports whether the recording's title matches the query
// title: exact, a prefix of the query, or equal once any featuring suffix
// is stripped. Candidates from the obvious-song probe bypass this check.
func TitleMatches(rec *NormalizedRecording, queryTitle string) bool {
	if rec.Provenance == ProvenanceObviousSeed {
		return true
	}
	recKey := normalize.Key(rec.Title)
	queryKey := normalize.Key(queryTitle)
	if recKey == queryKey {
		return true
	}
	if strings.HasPrefix(queryKey, recKey) && recKey != "" {
		return true
	}
	return normalize.Key(normalize.StripFeaturing(rec.Title)) == queryKey
}

// IsStudioRecording reports whether at least one attached release is a
// plausible studio context and the title carries no disqualifying keyword.
// Tracklist-sourced candidates bypass it; their provenance already
// guarantees album context.
func IsStudioRecording(rec *NormalizedRecording) bool {
	if rec.Source == SourceReleaseTrack || rec.Source == SourceAlbumTitleInferred {
		return true
	}
	if titleDisqualified(rec.Title) {
		return false
	}
	if len(rec.Releases) == 0 {
		return false
	}
	for _, rel := range rec.Releases {
		if !releaseDisqualified(rel) {
			return true
		}
	}
	return false
}

// HasAlbumOrSingleRelease reports whether at least one attached release is
// typed Album or Single. Compilations or soundtracks as the sole type do
// not qualify. Tracklist-sourced candidates bypass it.
func HasAlbumOrSingleRelease(rec *NormalizedRecording) bool {
	if rec.Source == SourceReleaseTrack || rec.Source == SourceAlbumTitleInferred {
		return true
	}
	for _, rel := range rec.Releases {
		if rel.PrimaryType == "Album" || rel.PrimaryType == "Single" {
			return true
		}
	}
	return false
}

// titleDisqualified matches keywords on word boundaries over the folded
// title, so "Jump (Live)" is caught but "Alive" is not.
func titleDisqualified(title string) bool {
	key := " " + normalize.Key(title) + " "
	for _, kw := range disqualifyingKeywords {
		if strings.Contains(key, " "+normalize.Key(kw)+" ") {
			return true
		}
	}
	return false
}

func releaseDisqualified(rel ReleaseInfo) bool {
	for _, st := range rel.SecondaryTypes {
		if disqualifyingSecondaryTypes[strings.ToLower(st)] {
			return true
		}
	}
	return false
}

// FilterStage names how far the filter ladder had to relax.
type FilterStage string

// Filter stages, strictest first.
const (
	FilterStrict    FilterStage = "strict"
	FilterTitleOnly FilterStage = "title-only"
	FilterBypass    FilterStage = "bypass"
)

// ApplyFilters runs the strict predicates and degrades gracefully: if the
// strict set would eliminate every candidate it relaxes to title-match
// only, and if that still leaves nothing it bypasses filtering entirely.
// Filtering never produces a hard empty result on its own.
func ApplyFilters(recs []NormalizedRecording, queryTitle string) ([]NormalizedRecording, FilterStage) {
	strict := make([]NormalizedRecording, 0, len(recs))
	for _, r := range recs {
		if TitleMatches(&r, queryTitle) && IsStudioRecording(&r) && HasAlbumOrSingleRelease(&r) {
			strict = append(strict, r)
		}
	}
	if len(strict) > 0 {
		return strict, FilterStrict
	}

	titleOnly := make([]NormalizedRecording, 0, len(recs))
	for _, r := range recs {
		if TitleMatches(&r, queryTitle) {
			titleOnly = append(titleOnly, r)
		}
	}
	if len(titleOnly) > 0 {
		return titleOnly, FilterTitleOnly
	}

	return recs, FilterBypass
}
