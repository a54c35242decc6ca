package resolver

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/songcanon/internal/cache"
	"github.com/sydlexius/songcanon/internal/catalog"
	"github.com/sydlexius/songcanon/internal/config"
	"github.com/sydlexius/songcanon/internal/event"
	"github.com/sydlexius/songcanon/internal/normalize"
	"github.com/sydlexius/songcanon/internal/query"
)

// Catalog is the subset of the metadata catalog client that discovery
// depends on.
type Catalog interface {
	SearchRecordings(ctx context.Context, title string, limit, offset int) (*catalog.RecordingSearchResponse, error)
	SearchRecordingsByArtist(ctx context.Context, title, artist string, limit int) (*catalog.RecordingSearchResponse, error)
	SearchRecordingsExact(ctx context.Context, title string, limit int) (*catalog.RecordingSearchResponse, error)
	SearchReleases(ctx context.Context, title string, limit int) (*catalog.ReleaseSearchResponse, error)
	LookupRelease(ctx context.Context, id string) (*catalog.Release, error)
}

// Discoverer runs the candidate discovery strategies for one query.
type Discoverer struct {
	catalog Catalog
	store   cache.Store
	seeds   *Seeds
	cfg     config.DiscoveryConfig
	ttl     time.Duration
	logger  *slog.Logger
	bus     *event.Bus
}

// NewDiscoverer wires a Discoverer.
func NewDiscoverer(cat Catalog, store cache.Store, seeds *Seeds, cfg config.DiscoveryConfig, ttl time.Duration, logger *slog.Logger, bus *event.Bus) *Discoverer {
	return &Discoverer{
		catalog: cat,
		store:   store,
		seeds:   seeds,
		cfg:     cfg,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "discovery")),
		bus:     bus,
	}
}

// discovered is the per-strategy output before cross-strategy merging.
type discovered struct {
	strategy   string
	recordings []NormalizedRecording
	tracks     []AlbumTrackCandidate
}

// Discover runs the strategies selected by the query shape and returns
// id-deduplicated candidates. Strategy failures and timeouts contribute
// zero candidates; Discover itself never fails.
func (d *Discoverer) Discover(ctx context.Context, q query.ParsedQuery, trace *Trace) ([]NormalizedRecording, []AlbumTrackCandidate) {
	var batches []discovered

	switch {
	case q.HasArtist():
		batches = append(batches, d.artistScopedSearch(ctx, q.Title, q.Artist, ProvenanceArtistSearch, "artist-search"))

	case q.SingleWord():
		batches = append(batches, d.obviousSeedProbe(ctx, q.Title)...)
		batches = append(batches, d.exactTitleSearch(ctx, q.Title))

	default:
		batches = append(batches, d.obviousSeedProbe(ctx, q.Title)...)
		broad := d.broadTitleSearch(ctx, q.Title)
		batches = append(batches, broad...)
		batches = append(batches, d.concurrentFallbacks(ctx, q.Title, seenArtists(broad))...)
	}

	return mergeBatches(batches, trace)
}

// artistScopedSearch runs a single title+artist query.
func (d *Discoverer) artistScopedSearch(ctx context.Context, title, artist string, prov Provenance, strategy string) discovered {
	out := discovered{strategy: strategy}
	recs, ok := d.cachedSearch(ctx, cache.Key("title-artist", title, artist), func(callCtx context.Context) ([]catalog.Recording, error) {
		resp, err := d.catalog.SearchRecordingsByArtist(callCtx, title, artist, d.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		return resp.Recordings, nil
	}, d.cfg.StrategyTimeout)
	if !ok {
		return out
	}
	for i := range recs {
		out.recordings = append(out.recordings, NormalizeRecording(&recs[i], prov))
	}
	return out
}

// obviousSeedProbe injects an early artist-scoped search when the query
// title has a curated canonical mapping. It only adds candidates; it never
// suppresses anything.
func (d *Discoverer) obviousSeedProbe(ctx context.Context, title string) []discovered {
	song, ok := d.seeds.ObviousSong(title)
	if !ok {
		return nil
	}
	batch := d.artistScopedSearch(ctx, song.Title, song.Artist, ProvenanceObviousSeed, "obvious-seed")
	return []discovered{batch}
}

// exactTitleSearch runs a quoted exact-title query, falling back to a
// broad search only when the exact search returns zero rows.
func (d *Discoverer) exactTitleSearch(ctx context.Context, title string) discovered {
	out := discovered{strategy: "exact-search"}
	recs, ok := d.cachedSearch(ctx, cache.Key("exact", title, ""), func(callCtx context.Context) ([]catalog.Recording, error) {
		resp, err := d.catalog.SearchRecordingsExact(callCtx, title, d.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		return resp.Recordings, nil
	}, d.cfg.StrategyTimeout)
	if ok && len(recs) > 0 {
		for i := range recs {
			out.recordings = append(out.recordings, NormalizeRecording(&recs[i], ProvenanceExactSearch))
		}
		return out
	}

	recs, ok = d.cachedSearch(ctx, cache.Key("title", title, ""), func(callCtx context.Context) ([]catalog.Recording, error) {
		resp, err := d.catalog.SearchRecordings(callCtx, title, d.cfg.PageSize, 0)
		if err != nil {
			return nil, err
		}
		return resp.Recordings, nil
	}, d.cfg.StrategyTimeout)
	if !ok {
		return out
	}
	for i := range recs {
		out.recordings = append(out.recordings, NormalizeRecording(&recs[i], ProvenanceTitleSearch))
	}
	return out
}

// broadTitleSearch pages the title query up to the configured page bound
// and fans out a small number of slang/spelling variant queries
// concurrently. Variants only ever fetch their first page.
func (d *Discoverer) broadTitleSearch(ctx context.Context, title string) []discovered {
	type titleQuery struct {
		title  string
		offset int
		prov   Provenance
		name   string
	}

	var queries []titleQuery
	for page := 0; page < d.cfg.TitlePages; page++ {
		queries = append(queries, titleQuery{title, page * d.cfg.PageSize, ProvenanceTitleSearch, "title-search"})
	}
	for _, v := range titleVariants(title, d.cfg.MaxTitleVariants) {
		queries = append(queries, titleQuery{v, 0, ProvenanceVariantSearch, "variant-search"})
	}

	results := make([]discovered, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			out := discovered{strategy: q.name}
			key := cache.Key("title", q.title, "")
			if q.offset > 0 {
				key += ":" + strconv.Itoa(q.offset)
			}
			recs, ok := d.cachedSearch(gctx, key, func(callCtx context.Context) ([]catalog.Recording, error) {
				resp, err := d.catalog.SearchRecordings(callCtx, q.title, d.cfg.PageSize, q.offset)
				if err != nil {
					return nil, err
				}
				return resp.Recordings, nil
			}, d.cfg.StrategyTimeout)
			if ok {
				for j := range recs {
					out.recordings = append(out.recordings, NormalizeRecording(&recs[j], q.prov))
				}
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait() // strategies never return errors, only empty batches

	return results
}

// concurrentFallbacks runs the popularity-seed probes and the
// release-tracklist fallback, which are independent of each other.
func (d *Discoverer) concurrentFallbacks(ctx context.Context, title string, seen map[string]bool) []discovered {
	var probes, tracklist []discovered
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		probes = d.popularityProbes(gctx, title, seen)
		return nil
	})
	g.Go(func() error {
		tracklist = []discovered{d.releaseTracklistFallback(gctx, title)}
		return nil
	})
	_ = g.Wait()

	return append(probes, tracklist...)
}

// popularityProbes runs direct title+artist queries against the curated
// popularity seed list, prioritizing artists already seen in the broad
// search. This closes the recall gap where a well-known recording is
// crowded out of generic title search.
func (d *Discoverer) popularityProbes(ctx context.Context, title string, seen map[string]bool) []discovered {
	artists := d.seeds.PopularArtists(seen)
	if len(artists) > d.cfg.MaxArtistProbes {
		artists = artists[:d.cfg.MaxArtistProbes]
	}

	results := make([]discovered, len(artists))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, artist := range artists {
		g.Go(func() error {
			results[i] = d.artistScopedSearch(gctx, title, artist, ProvenanceArtistProbe, "artist-probe")
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// releaseTracklistFallback searches releases titled like the query, keeps
// album-typed ones, and extracts matching tracks from a bounded number of
// tracklists. Some canonical songs are only discoverable as the title
// track of an album.
func (d *Discoverer) releaseTracklistFallback(ctx context.Context, title string) discovered {
	out := discovered{strategy: "release-tracklist"}

	releases, ok := d.cachedReleaseSearch(ctx, title)
	if !ok {
		return out
	}

	var albumIDs []string
	for _, rel := range releases {
		if rel.ReleaseGroup.PrimaryType != "Album" {
			continue
		}
		if !titleEqual(rel.Title, title) {
			continue
		}
		albumIDs = append(albumIDs, rel.ID)
		if len(albumIDs) >= d.cfg.MaxReleaseLookups {
			break
		}
	}

	tracks := make([][]AlbumTrackCandidate, len(albumIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range albumIDs {
		g.Go(func() error {
			tracks[i] = d.lookupMatchingTracks(gctx, id, title)
			return nil
		})
	}
	_ = g.Wait()

	for _, ts := range tracks {
		out.tracks = append(out.tracks, ts...)
	}
	return out
}

func (d *Discoverer) lookupMatchingTracks(ctx context.Context, releaseID, title string) []AlbumTrackCandidate {
	key := cache.Key("release", releaseID, "")
	rel, found := cache.GetJSON[*catalog.Release](ctx, d.store, key)
	if !found {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.FallbackTimeout)
		defer cancel()
		var err error
		rel, err = d.catalog.LookupRelease(callCtx, releaseID)
		if err != nil {
			d.reportFailure("release-lookup", err)
			return nil
		}
		cache.SetJSON(ctx, d.store, key, rel, d.ttl)
	}

	var out []AlbumTrackCandidate
	for _, media := range rel.Media {
		for i := range media.Tracks {
			if titleEqual(media.Tracks[i].Title, title) {
				out = append(out, NormalizeAlbumTrack(rel, &media.Tracks[i]))
			}
		}
	}
	return out
}

// cachedSearch is the read-through wrapper every recording search goes
// through: cache hit, else a time-boxed upstream call whose result is
// written back. ok=false means the strategy found nothing usable.
func (d *Discoverer) cachedSearch(ctx context.Context, key string, fetch func(context.Context) ([]catalog.Recording, error), timeout time.Duration) ([]catalog.Recording, bool) {
	if recs, found := cache.GetJSON[[]catalog.Recording](ctx, d.store, key); found {
		return recs, true
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	recs, err := fetch(callCtx)
	if err != nil {
		d.reportFailure(key, err)
		return nil, false
	}
	cache.SetJSON(ctx, d.store, key, recs, d.ttl)
	return recs, true
}

func (d *Discoverer) cachedReleaseSearch(ctx context.Context, title string) ([]catalog.Release, bool) {
	key := cache.Key("release-search", title, "")
	if rels, found := cache.GetJSON[[]catalog.Release](ctx, d.store, key); found {
		return rels, true
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.FallbackTimeout)
	defer cancel()
	resp, err := d.catalog.SearchReleases(callCtx, title, d.cfg.PageSize)
	if err != nil {
		d.reportFailure(key, err)
		return nil, false
	}
	cache.SetJSON(ctx, d.store, key, resp.Releases, d.ttl)
	return resp.Releases, true
}

func (d *Discoverer) reportFailure(op string, err error) {
	d.logger.Warn("discovery call failed", slog.String("op", op), slog.String("error", err.Error()))
	if d.bus != nil {
		d.bus.Publish(event.Event{
			Type: event.UpstreamFailed,
			Data: map[string]any{"op": op, "error": err.Error()},
		})
	}
}

// mergeBatches deduplicates candidates across strategies. Recordings
// dedupe by catalog id; album tracks by (release id, work key). Batch
// order is fixed by strategy selection, so merging is deterministic.
func mergeBatches(batches []discovered, trace *Trace) ([]NormalizedRecording, []AlbumTrackCandidate) {
	var recs []NormalizedRecording
	var tracks []AlbumTrackCandidate
	seenRec := make(map[string]bool)
	seenTrack := make(map[string]bool)

	for _, b := range batches {
		added := 0
		for _, r := range b.recordings {
			if seenRec[r.ID] {
				continue
			}
			seenRec[r.ID] = true
			recs = append(recs, r)
			added++
		}
		for _, t := range b.tracks {
			key := t.ReleaseID + "|" + t.WorkKey()
			if seenTrack[key] {
				continue
			}
			seenTrack[key] = true
			tracks = append(tracks, t)
			added++
		}
		trace.AddStrategy(b.strategy, added)
	}
	return recs, tracks
}

// titleVariants defers to the shared normalization module so discovery,
// filtering, and cache keys agree on what counts as the same title.
func titleVariants(title string, max int) []string {
	return normalize.TitleVariants(title, max)
}

func titleEqual(a, b string) bool {
	return normalize.EqualFold(a, b)
}

func artistKey(credit string) string {
	return normalize.Key(normalize.PrimaryArtist(credit))
}

// seenArtists collects the normalized primary artists contributed by the
// broad search, used to prioritize popularity probes.
func seenArtists(batches []discovered) map[string]bool {
	seen := make(map[string]bool)
	for _, b := range batches {
		for _, r := range b.recordings {
			seen[artistKey(r.Artist)] = true
		}
	}
	return seen
}
