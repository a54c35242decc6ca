// Package validate holds the secondary-source escalation clients: an
// encyclopedia lookup that can contribute one low-confidence inferred song,
// and an LLM reranker for too-close-to-call short-lists. Both are strictly
// augmentative; every failure falls back to the caller's prior state.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sydlexius/songcanon/internal/upstream"
	"github.com/sydlexius/songcanon/internal/version"
)

const defaultWikipediaBaseURL = "https://en.wikipedia.org"

// InferredSong is a song identity extracted from an encyclopedia article.
// ReleaseTitle is empty when the article names no album.
type InferredSong struct {
	Title        string
	Artist       string
	ReleaseTitle string
	Year         int
	Summary      string
}

// Wikipedia looks up song articles via the opensearch and page-summary
// endpoints.
type Wikipedia struct {
	client  *http.Client
	limiter *upstream.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// NewWikipedia creates a Wikipedia client.
func NewWikipedia(limiter *upstream.RateLimiterMap, logger *slog.Logger) *Wikipedia {
	return NewWikipediaWithBaseURL(limiter, logger, defaultWikipediaBaseURL)
}

// NewWikipediaWithBaseURL creates a Wikipedia client with a custom base URL
// (for testing).
func NewWikipediaWithBaseURL(limiter *upstream.RateLimiterMap, logger *slog.Logger, baseURL string) *Wikipedia {
	return &Wikipedia{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger.With(slog.String("client", "wikipedia")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// InferSong searches for an article about the titled song and extracts a
// (title, artist) identity from its summary. Returns ErrNotFound when no
// article reads like a song article.
func (w *Wikipedia) InferSong(ctx context.Context, title string) (*InferredSong, error) {
	titles, err := w.opensearch(ctx, title+" song")
	if err != nil {
		return nil, err
	}

	for _, page := range titles {
		song, err := w.summarize(ctx, page)
		if err != nil {
			var notFound *upstream.ErrNotFound
			if errors.As(err, &notFound) {
				continue
			}
			return nil, err
		}
		if song != nil {
			return song, nil
		}
	}
	return nil, &upstream.ErrNotFound{Source: upstream.SourceWikipedia, ID: title}
}

// opensearch returns candidate article titles for a free-text search.
func (w *Wikipedia) opensearch(ctx context.Context, search string) ([]string, error) {
	params := url.Values{
		"action": {"opensearch"},
		"search": {search},
		"limit":  {"3"},
		"format": {"json"},
	}
	body, err := w.doRequest(ctx, w.baseURL+"/w/api.php?"+params.Encode())
	if err != nil {
		return nil, err
	}

	// Response shape: [query, [titles], [descriptions], [urls]].
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing opensearch response: %w", err)
	}
	if len(raw) < 2 {
		return nil, nil
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, fmt.Errorf("parsing opensearch titles: %w", err)
	}
	return titles, nil
}

// pageSummary is the subset of the REST page-summary response we read.
type pageSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Extract     string `json:"extract"`
}

// summarize fetches one article summary and, if it describes a song,
// extracts the song identity. A nil, nil return means the article is not
// about a song.
func (w *Wikipedia) summarize(ctx context.Context, page string) (*InferredSong, error) {
	body, err := w.doRequest(ctx, w.baseURL+"/api/rest_v1/page/summary/"+url.PathEscape(page))
	if err != nil {
		return nil, err
	}

	var sum pageSummary
	if err := json.Unmarshal(body, &sum); err != nil {
		return nil, fmt.Errorf("parsing page summary: %w", err)
	}
	return parseSongSummary(&sum), nil
}

var (
	// "... is a song by Van Halen", "... is a 1984 single by Madonna",
	// "song recorded by Quincy Jones".
	artistPattern = regexp.MustCompile(`(?i)\b(?:song|single|track)\b[^.]*?\bby ([^.,;]+)`)
	albumPattern  = regexp.MustCompile(`(?i)\bfrom (?:the|their|his|her) (?:\d{4} )?(?:debut |studio )?album,? "?([^.",;]+)`)
	yearPattern   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// parseSongSummary extracts a song identity from an article summary, or
// returns nil when the article does not describe a song.
func parseSongSummary(sum *pageSummary) *InferredSong {
	text := sum.Description + ". " + sum.Extract

	m := artistPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	song := &InferredSong{
		Title:   cleanArticleTitle(sum.Title),
		Artist:  strings.TrimSpace(m[1]),
		Summary: sum.Extract,
	}
	if am := albumPattern.FindStringSubmatch(text); am != nil {
		song.ReleaseTitle = strings.TrimSpace(am[1])
	}
	if ym := yearPattern.FindStringSubmatch(text); ym != nil {
		fmt.Sscanf(ym[1], "%d", &song.Year) //nolint:errcheck
	}
	return song
}

// cleanArticleTitle strips encyclopedia disambiguators like
// "Jump (Van Halen song)" and surrounding quotes.
func cleanArticleTitle(title string) string {
	if idx := strings.Index(title, " ("); idx >= 0 {
		title = title[:idx]
	}
	return strings.Trim(strings.TrimSpace(title), `"`)
}

// doRequest executes an HTTP GET with rate limiting and standard headers.
func (w *Wikipedia) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := w.limiter.Wait(ctx, upstream.SourceWikipedia); err != nil {
		return nil, &upstream.ErrUnavailable{
			Source: upstream.SourceWikipedia,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("songcanon/%s", version.Version))
	req.Header.Set("Accept", "application/json")

	w.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, &upstream.ErrUnavailable{
			Source: upstream.SourceWikipedia,
			Cause:  err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &upstream.ErrNotFound{
			Source: upstream.SourceWikipedia,
			ID:     reqURL,
		}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &upstream.ErrUnavailable{
			Source: upstream.SourceWikipedia,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 256*1024))
}
