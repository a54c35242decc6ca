package resolver

import (
	"strconv"
	"strings"

	"github.com/sydlexius/songcanon/internal/catalog"
)

// NormalizeRecording maps a raw catalog recording into the internal shape.
// Pure mapping: no filtering, no scoring.
func NormalizeRecording(rec *catalog.Recording, prov Provenance) NormalizedRecording {
	return NormalizedRecording{
		ID:         rec.ID,
		Title:      rec.Title,
		Artist:     joinArtistCredit(rec.ArtistCredit),
		Releases:   normalizeReleases(rec.Releases),
		LengthMs:   rec.LengthMs,
		RawScore:   rawScore(rec),
		Source:     SourceCatalogSearch,
		Provenance: prov,
	}
}

// NormalizeAlbumTrack maps a release tracklist entry into an album-track
// candidate.
func NormalizeAlbumTrack(rel *catalog.Release, track *catalog.Track) AlbumTrackCandidate {
	return AlbumTrackCandidate{
		Title:        track.Title,
		Artist:       joinArtistCredit(rel.ArtistCredit),
		Year:         parseYear(rel.Date),
		ReleaseTitle: rel.Title,
		ReleaseID:    rel.ID,
		Source:       SourceReleaseTrack,
	}
}

// joinArtistCredit flattens a multi-artist credit into a single string,
// honoring the catalog's join phrases ("Run-DMC feat. Aerosmith").
func joinArtistCredit(credits []catalog.ArtistCredit) string {
	var b strings.Builder
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(c.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

func normalizeReleases(rels []catalog.Release) []ReleaseInfo {
	if len(rels) == 0 {
		return nil
	}
	out := make([]ReleaseInfo, 0, len(rels))
	for _, rel := range rels {
		out = append(out, ReleaseInfo{
			Title:          rel.Title,
			Year:           parseYear(rel.Date),
			Country:        rel.Country,
			PrimaryType:    rel.ReleaseGroup.PrimaryType,
			SecondaryTypes: rel.ReleaseGroup.SecondaryTypes,
		})
	}
	return out
}

// rawScore accepts either of the catalog's two score field spellings.
func rawScore(rec *catalog.Recording) int {
	if rec.Score != 0 {
		return rec.Score
	}
	if rec.ExtScore != "" {
		if n, err := strconv.Atoi(rec.ExtScore); err == nil {
			return n
		}
	}
	return 0
}

// parseYear extracts the year from a catalog date ("1984", "1984-01-09").
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	n, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return n
}
