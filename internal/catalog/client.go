// Package catalog is the read-only client for the third-party music
// metadata catalog. It exposes the four lookup operations candidate
// discovery is built on; all of them are idempotent and safe to cache.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/songcanon/internal/upstream"
	"github.com/sydlexius/songcanon/internal/version"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// Client talks to the catalog's search and lookup endpoints.
type Client struct {
	client  *http.Client
	limiter *upstream.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	contact string
}

// New creates a catalog client with the default base URL.
func New(limiter *upstream.RateLimiterMap, logger *slog.Logger, contact string) *Client {
	return NewWithBaseURL(limiter, logger, contact, defaultBaseURL)
}

// NewWithBaseURL creates a catalog client with a custom base URL (for testing).
func NewWithBaseURL(limiter *upstream.RateLimiterMap, logger *slog.Logger, contact, baseURL string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger.With(slog.String("client", "catalog")),
		baseURL: strings.TrimRight(baseURL, "/"),
		contact: contact,
	}
}

// SearchRecordings runs a broad title search, paginated by limit/offset.
// The title terms are grouped but not quoted, so the catalog's fuzzy
// matching applies.
func (c *Client) SearchRecordings(ctx context.Context, title string, limit, offset int) (*RecordingSearchResponse, error) {
	q := fmt.Sprintf(`recording:(%s)`, luceneEscape(title))
	return c.searchRecordings(ctx, q, limit, offset)
}

// SearchRecordingsByArtist runs a title search scoped to an artist name.
func (c *Client) SearchRecordingsByArtist(ctx context.Context, title, artist string, limit int) (*RecordingSearchResponse, error) {
	q := fmt.Sprintf(`recording:%s AND artist:%s`, luceneQuote(title), luceneQuote(artist))
	return c.searchRecordings(ctx, q, limit, 0)
}

// SearchRecordingsExact runs a quoted exact-title search.
func (c *Client) SearchRecordingsExact(ctx context.Context, title string, limit int) (*RecordingSearchResponse, error) {
	q := fmt.Sprintf(`recording:%s`, luceneQuote(title))
	return c.searchRecordings(ctx, q, limit, 0)
}

func (c *Client) searchRecordings(ctx context.Context, query string, limit, offset int) (*RecordingSearchResponse, error) {
	params := url.Values{
		"query":  {query},
		"fmt":    {"json"},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	body, err := c.doRequest(ctx, c.baseURL+"/recording?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp RecordingSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing recording search response: %w", err)
	}
	return &resp, nil
}

// SearchReleases searches releases by exact title.
func (c *Client) SearchReleases(ctx context.Context, title string, limit int) (*ReleaseSearchResponse, error) {
	params := url.Values{
		"query": {fmt.Sprintf(`release:%s`, luceneQuote(title))},
		"fmt":   {"json"},
		"limit": {strconv.Itoa(limit)},
	}
	body, err := c.doRequest(ctx, c.baseURL+"/release?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp ReleaseSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing release search response: %w", err)
	}
	return &resp, nil
}

// LookupRelease fetches a single release with its tracklist.
func (c *Client) LookupRelease(ctx context.Context, id string) (*Release, error) {
	params := url.Values{
		"inc": {"recordings+artist-credits+release-groups"},
		"fmt": {"json"},
	}
	body, err := c.doRequest(ctx, c.baseURL+"/release/"+url.PathEscape(id)+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("parsing release response: %w", err)
	}
	return &rel, nil
}

// doRequest executes an HTTP GET with rate limiting and standard headers.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, upstream.SourceCatalog); err != nil {
		return nil, &upstream.ErrUnavailable{
			Source: upstream.SourceCatalog,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &upstream.ErrUnavailable{
			Source: upstream.SourceCatalog,
			Cause:  err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &upstream.ErrNotFound{
			Source: upstream.SourceCatalog,
			ID:     reqURL,
		}
	}

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &upstream.ErrUnavailable{
			Source:     upstream.SourceCatalog,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: 2 * time.Second,
		}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &upstream.ErrUnavailable{
			Source: upstream.SourceCatalog,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
}

// luceneQuote wraps a value in quotes for the catalog's Lucene query
// syntax, escaping embedded quotes and backslashes.
func luceneQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// luceneEscape escapes Lucene special characters without quoting, for
// fuzzy term groups.
func luceneEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`+-&|!(){}[]^"~*?:\/`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *Client) userAgent() string {
	ua := fmt.Sprintf("songcanon/%s", version.Version)
	if c.contact != "" {
		ua += " (" + c.contact + ")"
	}
	return ua
}
