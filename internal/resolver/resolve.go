package resolver

import (
	"fmt"
	"sort"
	"time"

	"github.com/sydlexius/songcanon/internal/config"
	"github.com/sydlexius/songcanon/internal/normalize"
	"github.com/sydlexius/songcanon/internal/query"
)

// prominentThreshold is the Prominence value above which an artist counts
// as globally prominent for the must-include guarantee.
const prominentThreshold = 10

// resolveInput carries everything the resolution state machine reads. All
// fields are per-request values; resolution mutates nothing outside its
// own candidates.
type resolveInput struct {
	q          query.ParsedQuery
	recordings []NormalizedRecording // already filtered
	tracks     []AlbumTrackCandidate
	th         config.Thresholds
	seeds      *Seeds
	trace      *Trace
}

// resolve runs Scored -> MustIncludeIdentified -> Collapsed -> ModeDecided.
// Validation/reranking happens afterwards in the service, on the returned
// response.
func resolve(in resolveInput) *SearchResponse {
	candidates := scoreAll(in)
	if len(candidates) == 0 {
		return nil
	}

	markMustInclude(candidates, in)
	collapsed := songCollapse(candidates)
	return decideMode(collapsed, in)
}

// scoreAll recomputes every candidate's score and converts both candidate
// kinds into CanonicalResults. Entity types are assigned exactly once,
// here, from provenance; never from title text.
func scoreAll(in resolveInput) []CanonicalResult {
	out := make([]CanonicalResult, 0, len(in.recordings)+len(in.tracks))

	for i := range in.recordings {
		rec := &in.recordings[i]
		total, breakdown := scoreRecordingDetail(rec, in.q, in.th)
		if in.trace != nil {
			in.trace.mu.Lock()
			in.trace.Scores = append(in.trace.Scores, TraceScore{ID: rec.ID, Title: rec.Title, Rules: breakdown, Total: total})
			in.trace.mu.Unlock()
		}

		exact := normalize.EqualFold(rec.Title, in.q.Title)
		out = append(out, CanonicalResult{
			ID:              rec.ID,
			Title:           rec.Title,
			Artist:          rec.Artist,
			Year:            rec.EarliestYear(),
			ReleaseTitle:    firstAlbumTitle(rec),
			EntityType:      EntityRecording,
			ConfidenceScore: total,
			Source:          rec.Source,
			probed: exact && (rec.Provenance == ProvenanceArtistProbe ||
				rec.Provenance == ProvenanceObviousSeed),
		})
	}

	for i := range in.tracks {
		track := &in.tracks[i]
		total := ScoreAlbumTrack(track, in.q)
		if in.trace != nil {
			in.trace.mu.Lock()
			in.trace.Scores = append(in.trace.Scores, TraceScore{Title: track.Title, Total: total})
			in.trace.mu.Unlock()
		}
		out = append(out, CanonicalResult{
			ID:              track.ReleaseID + ":" + normalize.Key(track.Title),
			Title:           track.Title,
			Artist:          track.Artist,
			Year:            track.Year,
			ReleaseTitle:    track.ReleaseTitle,
			EntityType:      EntityAlbumTrack,
			ConfidenceScore: total,
			Source:          track.Source,
		})
	}

	return out
}

// markMustInclude flags candidates that cannot be evicted when truncating
// to the result cap: exact-title works by a prominent artist, exact-title
// artist-probe hits, and title tracks. For single-word queries with no
// explicit artist the guarantee narrows to the curated obvious-song map,
// since almost any artist is "prominent" for a one-word title.
func markMustInclude(candidates []CanonicalResult, in resolveInput) {
	narrow := in.q.SingleWord() && !in.q.HasArtist()
	var seed SeedSong
	var hasSeed bool
	if narrow {
		seed, hasSeed = in.seeds.ObviousSong(in.q.Title)
	}

	prominent := prominentWorks(in)

	for i := range candidates {
		c := &candidates[i]
		exact := normalize.EqualFold(c.Title, in.q.Title)
		if !exact {
			continue
		}

		if narrow {
			if hasSeed && normalize.Key(normalize.PrimaryArtist(c.Artist)) == normalize.Key(seed.Artist) {
				c.protected = true
			}
			continue
		}

		switch {
		case prominent[c.WorkKey()]:
			c.protected = true
		case c.probed:
			c.protected = true
		case c.EntityType == EntityAlbumTrack && normalize.EqualFold(c.ReleaseTitle, in.q.Title):
			// The candidate is the title track of an album named after
			// the query.
			c.protected = true
		}
	}

	if in.trace != nil {
		for i := range candidates {
			if candidates[i].protected {
				in.trace.MustInclude = append(in.trace.MustInclude, candidates[i].WorkKey())
			}
		}
	}
}

// prominentWorks computes which work keys belong to globally prominent
// artists, judged by the data-driven Prominence signal.
func prominentWorks(in resolveInput) map[string]bool {
	nowYear := time.Now().Year()
	out := make(map[string]bool)
	for i := range in.recordings {
		rec := &in.recordings[i]
		if Prominence(rec, nowYear) >= prominentThreshold {
			out[rec.WorkKey()] = true
		}
	}
	return out
}

// songCollapse groups candidates by canonical work and keeps exactly one
// representative per group. A recording found in this search always beats
// an album track for the same work; within a kind the higher score wins.
func songCollapse(candidates []CanonicalResult) []CanonicalResult {
	byWork := make(map[string]int) // work key -> index into out
	var out []CanonicalResult

	for _, c := range candidates {
		key := c.WorkKey()
		idx, seen := byWork[key]
		if !seen {
			byWork[key] = len(out)
			out = append(out, c)
			continue
		}

		cur := &out[idx]
		// Protection is a property of the work, not the representative.
		c.protected = c.protected || cur.protected

		if better(c, *cur) {
			out[idx] = c
		} else {
			cur.protected = c.protected
		}
	}
	return out
}

// better reports whether a should replace b as the work representative.
func better(a, b CanonicalResult) bool {
	aRec := a.EntityType == EntityRecording
	bRec := b.EntityType == EntityRecording
	if aRec != bRec {
		return aRec
	}
	return a.ConfidenceScore > b.ConfidenceScore
}

// decideMode applies the mode decision and the result caps.
func decideMode(candidates []CanonicalResult, in resolveInput) *SearchResponse {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ConfidenceScore > candidates[j].ConfidenceScore
	})

	switch {
	case in.q.HasArtist():
		top := candidates[0]
		in.trace.setModeRationale("explicit artist supplied; returning top candidate as canonical")
		return &SearchResponse{Mode: ModeCanonical, Result: &top}

	case in.q.SingleWord():
		if len(candidates) == 1 {
			top := candidates[0]
			in.trace.setModeRationale("single surviving candidate for single-word query")
			return &SearchResponse{Mode: ModeCanonical, Result: &top}
		}
		gap := candidates[0].ConfidenceScore - candidates[1].ConfidenceScore
		if gap >= in.th.ScoreGap {
			top := candidates[0]
			in.trace.setModeRationale(fmt.Sprintf("top candidate leads by %d (gap threshold %d)", gap, in.th.ScoreGap))
			return &SearchResponse{Mode: ModeCanonical, Result: &top}
		}
		in.trace.setModeRationale(fmt.Sprintf("top two within %d points; ambiguous", in.th.ScoreGap))
		return &SearchResponse{Mode: ModeAmbiguous, Results: capResults(candidates, in.th.ResultCap, in.th.MinConfidence)}

	default:
		// Multi-word title-only queries never assert a single canonical
		// answer.
		in.trace.setModeRationale("multi-word query without artist; always ambiguous")
		return &SearchResponse{Mode: ModeAmbiguous, Results: capResults(candidates, in.th.AmbiguousCap, in.th.MinConfidence)}
	}
}

// capResults truncates a score-ordered candidate list to the cap.
// Protected candidates occupy slots first; the remainder fills by score
// order. Unprotected candidates below the confidence floor are dropped.
func capResults(candidates []CanonicalResult, limit, minConfidence int) []CanonicalResult {
	var protected, rest []CanonicalResult
	for _, c := range candidates {
		if c.protected {
			protected = append(protected, c)
		} else if c.ConfidenceScore >= minConfidence {
			rest = append(rest, c)
		}
	}

	out := protected
	if len(out) > limit {
		out = out[:limit]
	}
	for _, c := range rest {
		if len(out) >= limit {
			break
		}
		out = append(out, c)
	}

	// Present the final list best-first regardless of protection.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out
}

// setModeRationale records the mode decision rationale on the trace.
func (t *Trace) setModeRationale(s string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ModeRationale = s
}

// firstAlbumTitle returns the title of the first album-typed release, or
// the first release title when no album exists.
func firstAlbumTitle(rec *NormalizedRecording) string {
	for _, rel := range rec.Releases {
		if rel.PrimaryType == "Album" {
			return rel.Title
		}
	}
	if len(rec.Releases) > 0 {
		return rec.Releases[0].Title
	}
	return ""
}
