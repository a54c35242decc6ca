// Package resolver implements the candidate discovery and resolution
// pipeline that maps a free-text song query to its most culturally
// canonical recording, or to a ranked short-list when the query is
// ambiguous.
package resolver

import "github.com/sydlexius/songcanon/internal/normalize"

// Source records where a candidate's data came from.
type Source string

// Known candidate sources.
const (
	SourceCatalogSearch      Source = "catalog-search"
	SourceReleaseTrack       Source = "release-track"
	SourceAlbumTitleInferred Source = "album-title-inferred"
	SourceEncyclopedia       Source = "encyclopedia"
)

// Provenance marks which discovery strategy produced a candidate. Later
// stages use it for filter bypasses; it is assigned at discovery time and
// never mutated.
type Provenance string

// Known provenance marks.
const (
	ProvenanceTitleSearch   Provenance = "title-search"
	ProvenanceArtistSearch  Provenance = "artist-search"
	ProvenanceExactSearch   Provenance = "exact-search"
	ProvenanceVariantSearch Provenance = "variant-search"
	ProvenanceArtistProbe   Provenance = "artist-probe"
	ProvenanceObviousSeed   Provenance = "obvious-seed"
	ProvenanceTracklist     Provenance = "tracklist"
)

// ReleaseInfo is one release context attached to a recording.
type ReleaseInfo struct {
	Title          string   `json:"title"`
	Year           int      `json:"year,omitempty"`
	Country        string   `json:"country,omitempty"`
	PrimaryType    string   `json:"primary_type,omitempty"`
	SecondaryTypes []string `json:"secondary_types,omitempty"`
}

// NormalizedRecording is the internal shape every raw catalog recording is
// mapped into before filtering and scoring.
type NormalizedRecording struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	Releases   []ReleaseInfo `json:"releases,omitempty"`
	LengthMs   int           `json:"length_ms,omitempty"`
	RawScore   int           `json:"raw_score"`
	Score      int           `json:"score"` // always recomputed by the ranker
	Source     Source        `json:"source"`
	Provenance Provenance    `json:"provenance"`
}

// EarliestYear returns the earliest release year attached to the recording,
// or 0 when no release carries a date.
func (r *NormalizedRecording) EarliestYear() int {
	year := 0
	for _, rel := range r.Releases {
		if rel.Year > 0 && (year == 0 || rel.Year < year) {
			year = rel.Year
		}
	}
	return year
}

// WorkKey returns the canonical-work identity of the recording.
func (r *NormalizedRecording) WorkKey() string {
	return normalize.WorkKey(r.Title, r.Artist)
}

// AlbumTrackCandidate is a track discovered only through a release's
// tracklist, with no standalone catalog recording. It is a distinct entity
// kind and is never merged into NormalizedRecording before scoring.
type AlbumTrackCandidate struct {
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Year         int    `json:"year,omitempty"`
	ReleaseTitle string `json:"release_title"`
	ReleaseID    string `json:"release_id"`
	Source       Source `json:"source"`
	Score        int    `json:"score"`
}

// WorkKey returns the canonical-work identity of the track.
func (t *AlbumTrackCandidate) WorkKey() string {
	return normalize.WorkKey(t.Title, t.Artist)
}

// EntityType classifies what kind of entity a result resolved to.
type EntityType string

// Known entity types.
const (
	EntityRecording    EntityType = "recording"
	EntityAlbumTrack   EntityType = "album_track"
	EntitySongInferred EntityType = "song_inferred"
)

// CanonicalResult is the only type returned to callers.
type CanonicalResult struct {
	ID              string     `json:"id,omitempty"`
	Title           string     `json:"title"`
	Artist          string     `json:"artist"`
	Year            int        `json:"year,omitempty"`
	ReleaseTitle    string     `json:"release_title,omitempty"`
	EntityType      EntityType `json:"entity_type"`
	ConfidenceScore int        `json:"confidence_score"`
	Source          Source     `json:"source"`
	Explanation     string     `json:"explanation,omitempty"`

	// protected marks a must-include result; internal to resolution.
	protected bool
	// probed marks results discovered by an artist-scoped probe that
	// returned an exact title match.
	probed bool
}

// WorkKey returns the canonical-work identity of the result.
func (r *CanonicalResult) WorkKey() string {
	return normalize.WorkKey(r.Title, r.Artist)
}

// Mode distinguishes a single canonical answer from a ranked short-list.
type Mode string

// Response modes.
const (
	ModeCanonical Mode = "canonical"
	ModeAmbiguous Mode = "ambiguous"
)

// SearchResponse is the tagged union returned by Resolve: either one
// canonical result or a ranked list of plausible candidates.
type SearchResponse struct {
	Mode    Mode              `json:"mode"`
	Result  *CanonicalResult  `json:"result,omitempty"`
	Results []CanonicalResult `json:"results,omitempty"`
	Trace   *Trace            `json:"trace,omitempty"`
}
