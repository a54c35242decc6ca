package resolver

import (
	"strings"
	"time"

	"github.com/sydlexius/songcanon/internal/config"
	"github.com/sydlexius/songcanon/internal/normalize"
	"github.com/sydlexius/songcanon/internal/query"
)

// scoreInput is the immutable candidate+query pair every scoring rule
// reads from.
type scoreInput struct {
	rec     *NormalizedRecording
	q       query.ParsedQuery
	th      config.Thresholds
	nowYear int
}

// scoreRule is one named additive scoring rule. Rules never mutate the
// input; the total score is a pure fold over the rule table.
type scoreRule struct {
	name  string
	apply func(scoreInput) int
}

// recordingRules is the ordered rule table for scoring recordings.
var recordingRules = []scoreRule{
	{"title-match", ruleTitleMatch},
	{"repeated-word", ruleRepeatedWord},
	{"artist", ruleArtist},
	{"studio", ruleStudio},
	{"us-distribution", ruleUSDistribution},
	{"release-types", ruleReleaseTypes},
	{"title-track", ruleTitleTrack},
	{"age-bias", ruleAgeBias},
	{"canonical-80s", ruleCanonical80s},
	{"raw-score", ruleRawScore},
}

// ScoreRecording computes the confidence score for a recording against the
// parsed query. The result is a signed score, not a probability.
func ScoreRecording(rec *NormalizedRecording, q query.ParsedQuery, th config.Thresholds) int {
	total, _ := scoreRecordingDetail(rec, q, th)
	return total
}

// scoreRecordingDetail also returns the per-rule breakdown for traces.
func scoreRecordingDetail(rec *NormalizedRecording, q query.ParsedQuery, th config.Thresholds) (int, map[string]int) {
	in := scoreInput{rec: rec, q: q, th: th, nowYear: time.Now().Year()}
	total := 0
	breakdown := make(map[string]int, len(recordingRules))
	for _, rule := range recordingRules {
		delta := rule.apply(in)
		if delta != 0 {
			breakdown[rule.name] = delta
		}
		total += delta
	}
	return total, breakdown
}

func ruleTitleMatch(in scoreInput) int {
	recKey := normalize.Key(in.rec.Title)
	queryKey := normalize.Key(in.q.Title)
	single := in.q.SingleWord()

	switch {
	case recKey == queryKey:
		if single {
			return 100
		}
		return 40
	case strings.HasPrefix(recKey, queryKey):
		return 30
	case strings.Contains(recKey, queryKey):
		return 20
	case single:
		return -30
	}
	return 0
}

// ruleRepeatedWord penalizes novelty titles like "jump jump jump" when the
// query is a single word.
func ruleRepeatedWord(in scoreInput) int {
	if !in.q.SingleWord() {
		return 0
	}
	words := strings.Fields(normalize.Key(in.rec.Title))
	if len(words) < 2 {
		return 0
	}
	queryKey := normalize.Key(in.q.Title)
	for _, w := range words {
		if w != queryKey {
			return 0
		}
	}
	return -25
}

func ruleArtist(in scoreInput) int {
	if in.q.Artist != "" {
		recArtist := normalize.Key(in.rec.Artist)
		qArtist := normalize.Key(in.q.Artist)
		if recArtist == qArtist || strings.Contains(recArtist, qArtist) || strings.Contains(qArtist, recArtist) {
			return 25
		}
		return -10
	}
	// No artist in the query: prominence and release diversity stand in
	// for the missing signal.
	return Prominence(in.rec, in.nowYear) + ReleaseDiversity(in.rec)
}

func ruleStudio(in scoreInput) int {
	if IsStudioRecording(in.rec) {
		return 10
	}
	return -20
}

func ruleUSDistribution(in scoreInput) int {
	for _, rel := range in.rec.Releases {
		if rel.Country == "US" || rel.Country == "XW" {
			return 5
		}
	}
	return 0
}

func ruleReleaseTypes(in scoreInput) int {
	score := 0
	hasAlbum, hasSingle := false, false
	for _, rel := range in.rec.Releases {
		switch rel.PrimaryType {
		case "Album":
			hasAlbum = true
		case "Single":
			hasSingle = true
		}
	}
	if hasAlbum {
		score += 10
	}
	if hasSingle {
		score += 5
	}
	return score
}

// ruleTitleTrack rewards recordings that share a title with one of their
// album releases: title tracks are disproportionately canonical.
func ruleTitleTrack(in scoreInput) int {
	hasAlbum := false
	titleMatch := false
	recKey := normalize.Key(in.rec.Title)
	for _, rel := range in.rec.Releases {
		if rel.PrimaryType == "Album" {
			hasAlbum = true
		}
		if normalize.Key(rel.Title) == recKey {
			titleMatch = true
		}
	}
	if hasAlbum && titleMatch {
		return 20
	}
	return 0
}

// ruleAgeBias gives older recordings up to AgeBiasCap points, one point per
// four years of age.
func ruleAgeBias(in scoreInput) int {
	first := in.rec.EarliestYear()
	if first <= 0 {
		return 0
	}
	age := in.nowYear - first
	if age < 0 {
		return 0
	}
	bias := age / 4
	if bias > in.th.AgeBiasCap {
		bias = in.th.AgeBiasCap
	}
	return bias
}

// ruleCanonical80s is a deliberately large tie-breaker for the common
// cultural pattern of a single-word 80s album hit with US distribution.
func ruleCanonical80s(in scoreInput) int {
	if !in.q.SingleWord() {
		return 0
	}
	if normalize.Key(in.rec.Title) != normalize.Key(in.q.Title) {
		return 0
	}
	if !IsStudioRecording(in.rec) {
		return 0
	}
	first := in.rec.EarliestYear()
	if first < 1980 || first > 1990 {
		return 0
	}
	hasAlbum, hasUS := false, false
	for _, rel := range in.rec.Releases {
		if rel.PrimaryType == "Album" {
			hasAlbum = true
		}
		if rel.Country == "US" {
			hasUS = true
		}
	}
	if hasAlbum && hasUS {
		return 40
	}
	return 0
}

// ruleRawScore folds in the catalog's own relevance score, scaled down so
// it breaks ties rather than driving the ranking.
func ruleRawScore(in scoreInput) int {
	return in.rec.RawScore / 10
}

// ScoreAlbumTrack scores a tracklist-discovered candidate. Album tracks
// are intentionally capped well below a strong recording match: they fill
// gaps, they never outrank a genuine recording of the same work.
func ScoreAlbumTrack(track *AlbumTrackCandidate, q query.ParsedQuery) int {
	score := 0
	trackKey := normalize.Key(track.Title)
	queryKey := normalize.Key(q.Title)

	switch {
	case trackKey == queryKey:
		score += 20
	case strings.Contains(trackKey, queryKey):
		score += 10
	}

	if track.Year > 0 && track.Year < 1990 {
		score += 5
	}

	if q.Artist != "" {
		trackArtist := normalize.Key(track.Artist)
		qArtist := normalize.Key(q.Artist)
		if trackArtist == qArtist || strings.Contains(trackArtist, qArtist) {
			score += 15
		} else {
			score -= 5
		}
	}

	return score
}
