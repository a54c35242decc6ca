package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sydlexius/songcanon/internal/config"
	"github.com/sydlexius/songcanon/internal/event"
	"github.com/sydlexius/songcanon/internal/normalize"
	"github.com/sydlexius/songcanon/internal/query"
	"github.com/sydlexius/songcanon/internal/validate"
)

// ErrEmptyQuery is returned for a blank query string. It is the only
// user-visible error Resolve produces; every upstream failure degrades to
// fewer candidates instead.
var ErrEmptyQuery = errors.New("query must not be empty")

// Encyclopedia is the secondary-source lookup that can contribute one
// inferred song. A nil Encyclopedia disables the escalation.
type Encyclopedia interface {
	InferSong(ctx context.Context, title string) (*validate.InferredSong, error)
}

// Reranker orders a small candidate set best-first. A nil or disabled
// Reranker leaves the score ordering untouched.
type Reranker interface {
	Enabled() bool
	Rerank(ctx context.Context, query string, candidates []validate.RerankCandidate) ([]string, error)
}

// Service is the resolution entry point consumed by the outer transport
// layer. It is safe for concurrent use.
type Service struct {
	discoverer   *Discoverer
	seeds        *Seeds
	th           config.Thresholds
	encyclopedia Encyclopedia
	reranker     Reranker
	logger       *slog.Logger
	bus          *event.Bus
}

// NewService wires a Service. encyclopedia and reranker may be nil.
func NewService(d *Discoverer, seeds *Seeds, th config.Thresholds, encyclopedia Encyclopedia, reranker Reranker, logger *slog.Logger, bus *event.Bus) *Service {
	return &Service{
		discoverer:   d,
		seeds:        seeds,
		th:           th,
		encyclopedia: encyclopedia,
		reranker:     reranker,
		logger:       logger.With(slog.String("component", "resolver")),
		bus:          bus,
	}
}

// Resolve maps a free-text song query to a SearchResponse. A nil, nil
// return means every strategy came back empty; that is a valid outcome,
// not an error. With debug set the response carries a Trace, which never
// influences the returned results.
func (s *Service) Resolve(ctx context.Context, raw string, debug bool) (*SearchResponse, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	var trace *Trace
	if debug {
		trace = newTrace(raw)
	}

	q := query.Parse(raw)
	if trace != nil {
		trace.ParsedTitle = q.Title
		trace.ParsedArtist = q.Artist
	}

	recordings, tracks := s.discoverer.Discover(ctx, q, trace)
	filtered, stage := ApplyFilters(recordings, q.Title)
	if trace != nil {
		trace.FilterStage = string(stage)
	}

	resp := resolve(resolveInput{
		q:          q,
		recordings: filtered,
		tracks:     tracks,
		th:         s.th,
		seeds:      s.seeds,
		trace:      trace,
	})
	if resp == nil {
		s.logger.Info("no candidates survived", slog.String("query", raw))
		s.publishCompleted(raw, "", 0, start)
		return nil, nil
	}

	s.maybeInferSong(ctx, q, resp, trace)
	s.maybeRerank(ctx, raw, resp, trace)

	resp.Trace = trace
	s.publishCompleted(raw, string(resp.Mode), len(resp.Results), start)
	return resp, nil
}

// versionedWords in a query title mean the user is asking for a specific
// alternate version, which secondary validation cannot help with.
var versionedWords = []string{"live", "remix", "version"}

// maybeInferSong runs the encyclopedia escalation when catalog confidence
// is low and nothing internal already explains the query. It can only add
// one reduced-confidence candidate to an ambiguous short-list.
func (s *Service) maybeInferSong(ctx context.Context, q query.ParsedQuery, resp *SearchResponse, trace *Trace) {
	if s.encyclopedia == nil || q.HasArtist() || resp.Mode != ModeAmbiguous {
		return
	}
	if len(resp.Results) == 0 || resp.Results[0].ConfidenceScore >= s.th.ValidationTrigger {
		return
	}
	if titleLooksVersioned(q.Title) || hasStrongSignal(q, resp.Results) {
		return
	}

	song, err := s.encyclopedia.InferSong(ctx, q.Title)
	if err != nil {
		s.logger.Debug("encyclopedia lookup failed", slog.String("error", err.Error()))
		trace.SetValidation("encyclopedia", "failed: "+err.Error())
		return
	}

	entity := EntitySongInferred
	if song.ReleaseTitle != "" {
		entity = EntityAlbumTrack
	}
	cand := CanonicalResult{
		Title:           song.Title,
		Artist:          song.Artist,
		Year:            song.Year,
		ReleaseTitle:    song.ReleaseTitle,
		EntityType:      entity,
		ConfidenceScore: s.th.InferredConfidence,
		Source:          SourceEncyclopedia,
	}

	for i := range resp.Results {
		if resp.Results[i].WorkKey() == cand.WorkKey() {
			trace.SetValidation("encyclopedia", "confirmed "+cand.WorkKey())
			return
		}
	}

	// A full short-list gives up its lowest-scored unprotected entry to
	// make room; must-include results are never displaced.
	if len(resp.Results) >= s.th.AmbiguousCap {
		evict := -1
		for i := len(resp.Results) - 1; i >= 0; i-- {
			if !resp.Results[i].protected {
				evict = i
				break
			}
		}
		if evict < 0 {
			trace.SetValidation("encyclopedia", "skipped: short-list full of protected results")
			return
		}
		resp.Results = append(resp.Results[:evict], resp.Results[evict+1:]...)
	}

	// Insert by score order.
	pos := len(resp.Results)
	for i := range resp.Results {
		if cand.ConfidenceScore > resp.Results[i].ConfidenceScore {
			pos = i
			break
		}
	}
	resp.Results = append(resp.Results[:pos], append([]CanonicalResult{cand}, resp.Results[pos:]...)...)

	trace.SetValidation("encyclopedia", "added "+cand.WorkKey())
	s.publishValidation("encyclopedia", q.Title)
}

// maybeRerank sends a too-close-to-call short-list to the LLM reranker.
// The reranker only reorders; membership and scores never change, and any
// failure keeps the prior ordering.
func (s *Service) maybeRerank(ctx context.Context, raw string, resp *SearchResponse, trace *Trace) {
	if s.reranker == nil || !s.reranker.Enabled() {
		return
	}
	if resp.Mode != ModeAmbiguous || len(resp.Results) < 2 {
		return
	}
	if resp.Results[0].ConfidenceScore-resp.Results[1].ConfidenceScore > s.th.RerankWindow {
		return
	}

	window := len(resp.Results)
	if window > 5 {
		window = 5
	}
	head := resp.Results[:window]

	candidates := make([]validate.RerankCandidate, len(head))
	for i, c := range head {
		candidates[i] = validate.RerankCandidate{
			ID:           rerankID(&c),
			Title:        c.Title,
			Artist:       c.Artist,
			Year:         c.Year,
			ReleaseTitle: c.ReleaseTitle,
		}
	}

	ranking, err := s.reranker.Rerank(ctx, raw, candidates)
	if err != nil {
		s.logger.Debug("rerank failed", slog.String("error", err.Error()))
		trace.SetValidation("rerank", "failed: "+err.Error())
		return
	}

	reordered := applyRanking(head, ranking)
	copy(resp.Results[:window], reordered)

	trace.SetValidation("rerank", "applied")
	s.publishValidation("rerank", raw)
}

// applyRanking reorders head by the model's id list: recognized ids first
// in model order, then every unmentioned candidate in its prior order.
// Unknown ids are ignored.
func applyRanking(head []CanonicalResult, ranking []string) []CanonicalResult {
	byID := make(map[string]int, len(head))
	for i := range head {
		byID[rerankID(&head[i])] = i
	}

	out := make([]CanonicalResult, 0, len(head))
	used := make(map[int]bool, len(head))
	for _, id := range ranking {
		if i, ok := byID[id]; ok && !used[i] {
			out = append(out, head[i])
			used[i] = true
		}
	}
	for i := range head {
		if !used[i] {
			out = append(out, head[i])
		}
	}
	return out
}

// rerankID is the candidate identity sent to the model. Inferred results
// have no catalog id, so the work key stands in.
func rerankID(c *CanonicalResult) string {
	if c.ID != "" {
		return c.ID
	}
	return c.WorkKey()
}

// titleLooksVersioned reports whether the query itself asks for an
// alternate version.
func titleLooksVersioned(title string) bool {
	key := " " + normalize.Key(title) + " "
	for _, w := range versionedWords {
		if strings.Contains(key, " "+w+" ") {
			return true
		}
	}
	return false
}

// hasStrongSignal reports whether the result set already carries internal
// evidence that the catalog answer is right: a title-track match, a
// pre-2000 release, or any album-track candidate.
func hasStrongSignal(q query.ParsedQuery, results []CanonicalResult) bool {
	for i := range results {
		c := &results[i]
		if c.EntityType == EntityAlbumTrack {
			return true
		}
		if normalize.EqualFold(c.ReleaseTitle, q.Title) && c.ReleaseTitle != "" {
			return true
		}
		if c.Year > 0 && c.Year < 2000 {
			return true
		}
	}
	return false
}

func (s *Service) publishCompleted(query, mode string, results int, start time.Time) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type: event.ResolveCompleted,
		Data: map[string]any{
			"query":       query,
			"mode":        mode,
			"results":     results,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
}

func (s *Service) publishValidation(kind, query string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type: event.ValidationUsed,
		Data: map[string]any{"kind": kind, "query": query},
	})
}
