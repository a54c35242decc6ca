package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sydlexius/songcanon/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL(upstream.NewRateLimiterMap(), testLogger(), "test@example.com", srv.URL)
}

const recordingSearchBody = `{
	"count": 2,
	"offset": 0,
	"recordings": [
		{
			"id": "rec-1",
			"title": "Jump",
			"length": 241000,
			"score": 100,
			"artist-credit": [{"name": "Van Halen", "artist": {"id": "vh", "name": "Van Halen"}}],
			"releases": [
				{
					"id": "rel-1",
					"title": "1984",
					"status": "Official",
					"date": "1984-01-09",
					"country": "US",
					"release-group": {"primary-type": "Album"}
				}
			]
		},
		{
			"id": "rec-2",
			"title": "Jump",
			"ext:score": "95",
			"artist-credit": [{"name": "Madonna", "artist": {"id": "md", "name": "Madonna"}}],
			"releases": []
		}
	]
}`

func TestSearchRecordings(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recording" {
			t.Errorf("path = %q, want /recording", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("query")
		if r.URL.Query().Get("fmt") != "json" {
			t.Error("expected fmt=json")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(recordingSearchBody))
	})

	resp, err := client.SearchRecordings(context.Background(), "jump", 25, 0)
	if err != nil {
		t.Fatalf("SearchRecordings: %v", err)
	}
	if len(resp.Recordings) != 2 {
		t.Fatalf("got %d recordings, want 2", len(resp.Recordings))
	}
	if gotQuery != `recording:(jump)` {
		t.Errorf("query = %q", gotQuery)
	}

	rec := resp.Recordings[0]
	if rec.ID != "rec-1" || rec.Title != "Jump" || rec.Score != 100 {
		t.Errorf("unexpected first recording: %+v", rec)
	}
	if rec.Releases[0].ReleaseGroup.PrimaryType != "Album" {
		t.Errorf("primary type = %q", rec.Releases[0].ReleaseGroup.PrimaryType)
	}
	// Older-style ext:score survives parsing.
	if resp.Recordings[1].ExtScore != "95" {
		t.Errorf("ext:score = %q, want 95", resp.Recordings[1].ExtScore)
	}
}

func TestSearchRecordingsByArtist(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		if q != `recording:"jump" AND artist:"van halen"` {
			t.Errorf("query = %q", q)
		}
		_, _ = w.Write([]byte(`{"count":0,"recordings":[]}`))
	})

	if _, err := client.SearchRecordingsByArtist(context.Background(), "jump", "van halen", 25); err != nil {
		t.Fatalf("SearchRecordingsByArtist: %v", err)
	}
}

func TestSearchRecordingsExactQuotes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		if q != `recording:"jump"` {
			t.Errorf("query = %q, want quoted phrase", q)
		}
		_, _ = w.Write([]byte(`{"count":0,"recordings":[]}`))
	})

	if _, err := client.SearchRecordingsExact(context.Background(), "jump", 10); err != nil {
		t.Fatalf("SearchRecordingsExact: %v", err)
	}
}

func TestLookupRelease(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/release/rel-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"id": "rel-1",
			"title": "The Dude",
			"date": "1981-03-26",
			"country": "US",
			"artist-credit": [{"name": "Quincy Jones", "artist": {"id": "qj", "name": "Quincy Jones"}}],
			"release-group": {"primary-type": "Album"},
			"media": [{"format": "Vinyl", "tracks": [
				{"id": "t1", "title": "Ai No Corrida", "position": 1},
				{"id": "t2", "title": "The Dude", "position": 2}
			]}]
		}`))
	})

	rel, err := client.LookupRelease(context.Background(), "rel-1")
	if err != nil {
		t.Fatalf("LookupRelease: %v", err)
	}
	if rel.Title != "The Dude" {
		t.Errorf("title = %q", rel.Title)
	}
	if len(rel.Media) != 1 || len(rel.Media[0].Tracks) != 2 {
		t.Fatalf("unexpected media: %+v", rel.Media)
	}
	if rel.Media[0].Tracks[1].Title != "The Dude" {
		t.Errorf("track title = %q", rel.Media[0].Tracks[1].Title)
	}
}

func TestNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.LookupRelease(context.Background(), "nope")
	var nf *upstream.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if nf.Source != upstream.SourceCatalog {
		t.Errorf("source = %q", nf.Source)
	}
}

func TestUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusInternalServerError} {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})
		_, err := client.SearchRecordings(context.Background(), "jump", 25, 0)
		var ua *upstream.ErrUnavailable
		if !errors.As(err, &ua) {
			t.Errorf("status %d: expected ErrUnavailable, got %v", status, err)
		}
	}
}

func TestLuceneQuote(t *testing.T) {
	if got := luceneQuote(`say "hi"`); got != `"say \"hi\""` {
		t.Errorf("luceneQuote = %q", got)
	}
	if got := luceneEscape("AC/DC"); got != `AC\/DC` {
		t.Errorf("luceneEscape = %q", got)
	}
}
