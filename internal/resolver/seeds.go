package resolver

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/songcanon/internal/normalize"
)

//go:embed seeds.yaml
var seedData []byte

// SeedSong is one curated canonical (title, artist) pair.
type SeedSong struct {
	Title  string `yaml:"title"`
	Artist string `yaml:"artist"`
}

// Seeds holds the process-lifetime curated lookup structures. Loaded once
// at startup; immutable afterwards.
type Seeds struct {
	popularArtists []string
	obviousSongs   map[string]SeedSong // keyed by normalized title
}

type seedFile struct {
	PopularArtists []string            `yaml:"popular_artists"`
	ObviousSongs   map[string]SeedSong `yaml:"obvious_songs"`
}

// LoadSeeds parses the embedded seed data.
func LoadSeeds() (*Seeds, error) {
	return parseSeeds(seedData)
}

func parseSeeds(data []byte) (*Seeds, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed data: %w", err)
	}

	s := &Seeds{
		popularArtists: f.PopularArtists,
		obviousSongs:   make(map[string]SeedSong, len(f.ObviousSongs)),
	}
	for title, song := range f.ObviousSongs {
		s.obviousSongs[normalize.Key(title)] = song
	}
	return s, nil
}

// PopularArtists returns the curated popularity seed list, optionally
// prioritized: seed artists whose normalized names appear in the seen set
// sort first. The returned slice is a copy.
func (s *Seeds) PopularArtists(seen map[string]bool) []string {
	out := make([]string, 0, len(s.popularArtists))
	var rest []string
	for _, a := range s.popularArtists {
		if seen != nil && seen[normalize.Key(a)] {
			out = append(out, a)
		} else {
			rest = append(rest, a)
		}
	}
	return append(out, rest...)
}

// ObviousSong looks up the curated canonical pair for an exact query
// title.
func (s *Seeds) ObviousSong(title string) (SeedSong, bool) {
	song, ok := s.obviousSongs[normalize.Key(title)]
	return song, ok
}
