package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/sydlexius/songcanon/internal/cache"
	"github.com/sydlexius/songcanon/internal/catalog"
	"github.com/sydlexius/songcanon/internal/config"
	"github.com/sydlexius/songcanon/internal/query"
	"github.com/sydlexius/songcanon/internal/validate"
)

func testService(cat Catalog, encyclopedia Encyclopedia, reranker Reranker) *Service {
	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	seeds, _ := LoadSeeds()
	d := NewDiscoverer(cat, cache.NewMemoryStore(), seeds, cfg.Discovery, cfg.Cache.TTL, logger, nil)
	return NewService(d, seeds, cfg.Thresholds, encyclopedia, reranker, logger, nil)
}

func album(title, date string) catalog.Release {
	return catalog.Release{
		Title:        title,
		Date:         date,
		Country:      "US",
		ReleaseGroup: catalog.ReleaseGroup{PrimaryType: "Album"},
	}
}

func single(title, date string) catalog.Release {
	return catalog.Release{
		Title:        title,
		Date:         date,
		Country:      "US",
		ReleaseGroup: catalog.ReleaseGroup{PrimaryType: "Single"},
	}
}

// vanHalenJump is a canonical 80s album hit: one US album release.
func vanHalenJump() catalog.Recording {
	return catalog.Recording{
		ID:           "vh-1",
		Title:        "Jump",
		Score:        95,
		ArtistCredit: artistCredit("Van Halen"),
		Releases:     []catalog.Release{album("1984", "1984-01-09")},
	}
}

// madonnaJump carries a large, diverse discography so it scores within the
// ambiguity window of the Van Halen recording on a bare "jump" query.
func madonnaJump() catalog.Recording {
	return catalog.Recording{
		ID:           "md-1",
		Title:        "Jump",
		Score:        100,
		ArtistCredit: artistCredit("Madonna"),
		Releases: []catalog.Release{
			album("Something to Remember", "1995-11-03"),
			album("Confessions on a Dance Floor", "2005-11-09"),
			single("Hung Up", "2006-10-31"),
			album("Celebration", "2009-09-18"),
			album("MDNA", "2012-03-23"),
		},
	}
}

func TestResolveArtistQueryCanonical(t *testing.T) {
	cat := &fakeCatalog{
		byArtist: map[string][]catalog.Recording{
			"jump|van halen": {vanHalenJump()},
		},
	}
	svc := testService(cat, nil, nil)

	resp, err := svc.Resolve(context.Background(), "jump van halen", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp == nil || resp.Mode != ModeCanonical {
		t.Fatalf("resp = %+v, want canonical", resp)
	}
	if resp.Result.EntityType != EntityRecording {
		t.Errorf("entity = %q, want recording", resp.Result.EntityType)
	}
	if resp.Result.Artist != "Van Halen" {
		t.Errorf("artist = %q, want Van Halen", resp.Result.Artist)
	}
}

func TestResolveSingleWordAmbiguous(t *testing.T) {
	cat := &fakeCatalog{
		byArtist: map[string][]catalog.Recording{
			"jump|van halen": {vanHalenJump()},
		},
		exact: map[string][]catalog.Recording{
			"jump": {vanHalenJump(), madonnaJump()},
		},
	}
	svc := testService(cat, nil, nil)

	resp, err := svc.Resolve(context.Background(), "jump", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp == nil || resp.Mode != ModeAmbiguous {
		t.Fatalf("resp mode = %v, want ambiguous", resp)
	}

	artists := map[string]bool{}
	for _, r := range resp.Results {
		artists[r.Artist] = true
	}
	if !artists["Van Halen"] || !artists["Madonna"] {
		t.Errorf("both close-scoring recordings must be present: %+v", resp.Results)
	}
}

func TestResolveAlbumTrackOnly(t *testing.T) {
	release := &catalog.Release{
		ID:           "rel-1",
		Title:        "The Dude",
		Date:         "1981-03-26",
		ArtistCredit: artistCredit("Quincy Jones"),
		ReleaseGroup: catalog.ReleaseGroup{PrimaryType: "Album"},
		Media: []catalog.Media{
			{Tracks: []catalog.Track{{Title: "The Dude", Position: 2}}},
		},
	}
	cat := &fakeCatalog{
		releases: map[string][]catalog.Release{
			"the dude": {{ID: "rel-1", Title: "The Dude", ReleaseGroup: catalog.ReleaseGroup{PrimaryType: "Album"}}},
		},
		releaseByID: map[string]*catalog.Release{"rel-1": release},
	}
	svc := testService(cat, nil, nil)

	resp, err := svc.Resolve(context.Background(), "the dude", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp == nil || resp.Mode != ModeAmbiguous {
		t.Fatalf("resp = %+v, want ambiguous", resp)
	}

	var found *CanonicalResult
	for i := range resp.Results {
		if resp.Results[i].Artist == "Quincy Jones" {
			found = &resp.Results[i]
		}
	}
	if found == nil {
		t.Fatalf("no Quincy Jones result: %+v", resp.Results)
	}
	if found.EntityType != EntityAlbumTrack {
		t.Errorf("entity = %q, want album_track", found.EntityType)
	}
	if found.ReleaseTitle != "The Dude" {
		t.Errorf("release title = %q, want The Dude", found.ReleaseTitle)
	}
}

func TestResolveAlbumTrackWithArtistCanonical(t *testing.T) {
	rec := catalog.Recording{
		ID:           "qj-1",
		Title:        "The Dude",
		Score:        100,
		ArtistCredit: artistCredit("Quincy Jones"),
		Releases:     []catalog.Release{album("The Dude", "1981-03-26")},
	}
	cat := &fakeCatalog{
		byArtist: map[string][]catalog.Recording{
			"the dude|quincy jones": {rec},
		},
	}
	svc := testService(cat, nil, nil)

	resp, err := svc.Resolve(context.Background(), "the dude quincy jones", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp == nil || resp.Mode != ModeCanonical {
		t.Fatalf("resp = %+v, want canonical", resp)
	}
	if resp.Result.EntityType != EntityRecording || resp.Result.Artist != "Quincy Jones" {
		t.Errorf("unexpected result: %+v", resp.Result)
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	svc := testService(&fakeCatalog{}, nil, nil)

	for _, q := range []string{"", "   "} {
		resp, err := svc.Resolve(context.Background(), q, false)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Resolve(%q) err = %v, want ErrEmptyQuery", q, err)
		}
		if resp != nil {
			t.Errorf("Resolve(%q) returned a response", q)
		}
	}
}

func TestResolveAllStrategiesFail(t *testing.T) {
	svc := testService(&fakeCatalog{failEverything: true}, nil, nil)

	resp, err := svc.Resolve(context.Background(), "the dude", false)
	if err != nil {
		t.Fatalf("upstream failures must not surface: %v", err)
	}
	if resp != nil {
		t.Errorf("resp = %+v, want nil", resp)
	}
}

func TestResolveDeterministic(t *testing.T) {
	cat := &fakeCatalog{
		byArtist: map[string][]catalog.Recording{
			"jump|van halen": {vanHalenJump()},
		},
		exact: map[string][]catalog.Recording{
			"jump": {vanHalenJump(), madonnaJump()},
		},
	}
	svc := testService(cat, nil, nil)

	first, err := svc.Resolve(context.Background(), "jump", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := svc.Resolve(context.Background(), "jump", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolution not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestResolveWorkUniqueness(t *testing.T) {
	// The same recording surfaces through the seed probe and exact search;
	// the response must carry each work once.
	cat := &fakeCatalog{
		byArtist: map[string][]catalog.Recording{
			"jump|van halen": {vanHalenJump()},
		},
		exact: map[string][]catalog.Recording{
			"jump": {vanHalenJump(), madonnaJump()},
		},
	}
	svc := testService(cat, nil, nil)

	resp, err := svc.Resolve(context.Background(), "jump", false)
	if err != nil || resp == nil {
		t.Fatalf("Resolve: %v, %v", resp, err)
	}
	seen := map[string]bool{}
	for _, r := range resp.Results {
		key := r.WorkKey()
		if seen[key] {
			t.Errorf("work %q appears twice", key)
		}
		seen[key] = true
	}
}

func TestResolveDebugTrace(t *testing.T) {
	cat := &fakeCatalog{
		byArtist: map[string][]catalog.Recording{
			"jump|van halen": {vanHalenJump()},
		},
	}
	svc := testService(cat, nil, nil)

	plain, err := svc.Resolve(context.Background(), "jump van halen", false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if plain.Trace != nil {
		t.Error("trace attached without debug")
	}

	debug, err := svc.Resolve(context.Background(), "jump van halen", true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if debug.Trace == nil {
		t.Fatal("debug response missing trace")
	}
	if debug.Trace.ParsedTitle != "jump" || debug.Trace.ParsedArtist != "van halen" {
		t.Errorf("trace parse fields: %+v", debug.Trace)
	}
	if debug.Trace.ModeRationale == "" {
		t.Error("trace missing mode rationale")
	}

	// The trace must never change the answer.
	debug.Trace = nil
	if !reflect.DeepEqual(plain, debug) {
		t.Errorf("debug changed the response:\n%+v\n%+v", plain, debug)
	}
}

// fakeEncyclopedia scripts the secondary lookup.
type fakeEncyclopedia struct {
	song  *validate.InferredSong
	err   error
	calls int
}

func (f *fakeEncyclopedia) InferSong(_ context.Context, _ string) (*validate.InferredSong, error) {
	f.calls++
	return f.song, f.err
}

// fakeReranker scripts the LLM ordering.
type fakeReranker struct {
	ranking []string
	err     error
	enabled bool
	calls   int
}

func (f *fakeReranker) Enabled() bool { return f.enabled }

func (f *fakeReranker) Rerank(_ context.Context, _ string, _ []validate.RerankCandidate) ([]string, error) {
	f.calls++
	return f.ranking, f.err
}

// blueMonday builds two modern low-confidence recordings that trigger the
// escalation paths: no artist, top score well under the validation
// trigger, no pre-2000 release, no title track, no album track.
func blueMondayCatalog() *fakeCatalog {
	a := catalog.Recording{
		ID:           "bm-a",
		Title:        "Blue Monday",
		Score:        90,
		ArtistCredit: artistCredit("Night Club"),
		Releases:     []catalog.Release{album("After Dark", "2010-06-01")},
	}
	b := catalog.Recording{
		ID:           "bm-b",
		Title:        "Blue Monday",
		Score:        90,
		ArtistCredit: artistCredit("Grey City"),
		Releases:     []catalog.Release{album("Northern Lights", "2012-02-01")},
	}
	return &fakeCatalog{
		byTitle: map[string][]catalog.Recording{
			"blue monday": {a, b},
		},
	}
}

func TestResolveEncyclopediaAugments(t *testing.T) {
	enc := &fakeEncyclopedia{
		song: &validate.InferredSong{Title: "Blue Monday", Artist: "New Order", Year: 1983},
	}
	svc := testService(blueMondayCatalog(), enc, nil)

	resp, err := svc.Resolve(context.Background(), "blue monday", false)
	if err != nil || resp == nil {
		t.Fatalf("Resolve: %v, %v", resp, err)
	}
	if enc.calls != 1 {
		t.Fatalf("encyclopedia called %d times, want 1", enc.calls)
	}

	var inferred *CanonicalResult
	for i := range resp.Results {
		if resp.Results[i].Source == SourceEncyclopedia {
			inferred = &resp.Results[i]
		}
	}
	if inferred == nil {
		t.Fatalf("no inferred result: %+v", resp.Results)
	}
	if inferred.EntityType != EntitySongInferred {
		t.Errorf("entity = %q, want song_inferred", inferred.EntityType)
	}
	if inferred.ConfidenceScore != config.Default().Thresholds.InferredConfidence {
		t.Errorf("confidence = %d", inferred.ConfidenceScore)
	}
	if len(resp.Results) < 3 {
		t.Errorf("augmentation must not evict catalog results: %+v", resp.Results)
	}
}

func TestInferredSongNeverEvictsProtected(t *testing.T) {
	th := config.Default().Thresholds
	th.AmbiguousCap = 3
	enc := &fakeEncyclopedia{
		song: &validate.InferredSong{Title: "Blue Monday", Artist: "New Order", Year: 2005},
	}
	s := &Service{
		encyclopedia: enc,
		th:           th,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	// An at-cap short-list whose lowest-scored entry is must-include.
	resp := &SearchResponse{
		Mode: ModeAmbiguous,
		Results: []CanonicalResult{
			{ID: "a", Title: "Blue Monday", Artist: "Night Club", Year: 2010, ConfidenceScore: 80},
			{ID: "b", Title: "Blue Monday", Artist: "Grey City", Year: 2012, ConfidenceScore: 60},
			{ID: "c", Title: "Blue Monday", Artist: "Cold Ward", Year: 2014, ConfidenceScore: 40, protected: true},
		},
	}

	s.maybeInferSong(context.Background(), query.ParsedQuery{Title: "blue monday"}, resp, nil)

	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want 3 (cap kept)", len(resp.Results))
	}
	ids := map[string]bool{}
	for _, r := range resp.Results {
		ids[r.ID] = true
	}
	if !ids["c"] {
		t.Fatalf("protected result evicted by augmentation: %+v", resp.Results)
	}
	if ids["b"] {
		t.Errorf("lowest unprotected entry should have made room: %+v", resp.Results)
	}

	var inferred bool
	for _, r := range resp.Results {
		if r.Source == SourceEncyclopedia {
			inferred = true
		}
	}
	if !inferred {
		t.Errorf("inferred song missing: %+v", resp.Results)
	}
}

func TestInferredSongSkippedWhenAllProtected(t *testing.T) {
	th := config.Default().Thresholds
	th.AmbiguousCap = 2
	enc := &fakeEncyclopedia{
		song: &validate.InferredSong{Title: "Blue Monday", Artist: "New Order", Year: 2005},
	}
	s := &Service{
		encyclopedia: enc,
		th:           th,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	resp := &SearchResponse{
		Mode: ModeAmbiguous,
		Results: []CanonicalResult{
			{ID: "a", Title: "Blue Monday", Artist: "Night Club", Year: 2010, ConfidenceScore: 80, protected: true},
			{ID: "b", Title: "Blue Monday", Artist: "Grey City", Year: 2012, ConfidenceScore: 60, protected: true},
		},
	}

	s.maybeInferSong(context.Background(), query.ParsedQuery{Title: "blue monday"}, resp, nil)

	if len(resp.Results) != 2 || resp.Results[0].ID != "a" || resp.Results[1].ID != "b" {
		t.Errorf("fully protected short-list changed: %+v", resp.Results)
	}
}

func TestResolveEncyclopediaSkippedOnStrongSignal(t *testing.T) {
	// An explicit artist short-circuits the escalation.
	enc := &fakeEncyclopedia{song: &validate.InferredSong{Title: "Jump", Artist: "Van Halen"}}
	cat := &fakeCatalog{
		byArtist: map[string][]catalog.Recording{
			"jump|van halen": {vanHalenJump()},
		},
	}
	svc := testService(cat, enc, nil)

	if _, err := svc.Resolve(context.Background(), "jump van halen", false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if enc.calls != 0 {
		t.Errorf("encyclopedia called on an artist query")
	}
}

func TestResolveEncyclopediaFailureIsSilent(t *testing.T) {
	enc := &fakeEncyclopedia{err: errors.New("scripted failure")}
	svc := testService(blueMondayCatalog(), enc, nil)

	resp, err := svc.Resolve(context.Background(), "blue monday", false)
	if err != nil || resp == nil {
		t.Fatalf("encyclopedia failure surfaced: %v, %v", resp, err)
	}
	for _, r := range resp.Results {
		if r.Source == SourceEncyclopedia {
			t.Errorf("failed lookup contributed a result")
		}
	}
}

func TestResolveRerankReorders(t *testing.T) {
	rr := &fakeReranker{
		enabled: true,
		// Best-first from the model, with one unknown id to ignore.
		ranking: []string{"no-such-id", "bm-b", "bm-a"},
	}
	svc := testService(blueMondayCatalog(), nil, rr)

	resp, err := svc.Resolve(context.Background(), "blue monday", false)
	if err != nil || resp == nil {
		t.Fatalf("Resolve: %v, %v", resp, err)
	}
	if rr.calls != 1 {
		t.Fatalf("reranker called %d times, want 1", rr.calls)
	}
	if resp.Results[0].ID != "bm-b" || resp.Results[1].ID != "bm-a" {
		t.Errorf("order = %q, %q; want bm-b first", resp.Results[0].ID, resp.Results[1].ID)
	}
}

func TestResolveRerankFailureKeepsOrder(t *testing.T) {
	rr := &fakeReranker{enabled: true, err: errors.New("scripted failure")}
	svc := testService(blueMondayCatalog(), nil, rr)

	resp, err := svc.Resolve(context.Background(), "blue monday", false)
	if err != nil || resp == nil {
		t.Fatalf("Resolve: %v, %v", resp, err)
	}
	if resp.Results[0].ID != "bm-a" {
		t.Errorf("failed rerank changed the order: %+v", resp.Results)
	}
}

func TestResolveRerankDisabledWithoutKey(t *testing.T) {
	rr := &fakeReranker{enabled: false, ranking: []string{"bm-b", "bm-a"}}
	svc := testService(blueMondayCatalog(), nil, rr)

	if _, err := svc.Resolve(context.Background(), "blue monday", false); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rr.calls != 0 {
		t.Error("disabled reranker was called")
	}
}
