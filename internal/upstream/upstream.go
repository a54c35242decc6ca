// Package upstream holds the identifiers, error types, and rate limiting
// shared by all external data source clients.
package upstream

import (
	"fmt"
	"time"
)

// Source uniquely identifies an external data source.
type Source string

// Known sources.
const (
	SourceCatalog   Source = "catalog"
	SourceWikipedia Source = "wikipedia"
	SourceLLM       Source = "llm"
)

// DisplayName returns a human-readable name for the source.
func (s Source) DisplayName() string {
	switch s {
	case SourceCatalog:
		return "MusicBrainz"
	case SourceWikipedia:
		return "Wikipedia"
	case SourceLLM:
		return "LLM reranker"
	default:
		return string(s)
	}
}

// ErrUnavailable indicates a transient failure (rate-limited, timeout,
// server error). The pipeline recovers from it locally; the failing
// strategy simply contributes no candidates.
type ErrUnavailable struct {
	Source     Source
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the source has no data for the requested ID.
type ErrNotFound struct {
	Source Source
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("upstream %s: %s not found", e.Source, e.ID)
}

// ErrAuthRequired indicates the source needs an API key but none is configured.
type ErrAuthRequired struct {
	Source Source
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("upstream %s: API key not configured", e.Source)
}
