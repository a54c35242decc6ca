package resolver

// Prominence approximates an artist's cultural weight from the release
// evidence attached to a recording, without any hardcoded name list:
// discography size, album presence, era, and US-market distribution.
// Returns 0..15.
func Prominence(rec *NormalizedRecording, nowYear int) int {
	score := 0

	if len(rec.Releases) >= 5 {
		score += 5
	} else if len(rec.Releases) >= 3 {
		score += 3
	}

	albums := 0
	usPresence := false
	for _, rel := range rec.Releases {
		if rel.PrimaryType == "Album" {
			albums++
		}
		if rel.Country == "US" || rel.Country == "XW" {
			usPresence = true
		}
	}
	if albums >= 2 {
		score += 5
	} else if albums == 1 {
		score += 2
	}

	if first := rec.EarliestYear(); first > 0 && nowYear-first >= 25 {
		score += 3
	}
	if usPresence {
		score += 2
	}

	if score > 15 {
		score = 15
	}
	return score
}

// ReleaseDiversity rewards recordings whose releases span multiple types
// and years, a signal that the work kept being reissued. Returns 0..25.
func ReleaseDiversity(rec *NormalizedRecording) int {
	types := make(map[string]bool)
	years := make(map[int]bool)
	for _, rel := range rec.Releases {
		if rel.PrimaryType != "" {
			types[rel.PrimaryType] = true
		}
		if rel.Year > 0 {
			years[rel.Year] = true
		}
	}

	score := 0
	if len(types) >= 2 {
		score += 10
	}
	switch {
	case len(years) >= 3:
		score += 15
	case len(years) == 2:
		score += 8
	}
	return score
}
