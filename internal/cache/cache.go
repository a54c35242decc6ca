// Package cache provides the advisory TTL cache in front of the external
// metadata catalog. Entries are immutable value snapshots; a miss or a store
// failure only costs latency, never correctness.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sydlexius/songcanon/internal/normalize"
)

// Store is a key/value store with per-entry time-to-live.
type Store interface {
	// Get returns the value for key, or found=false on a miss or an
	// expired entry.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores the value under key for the given TTL. Last write wins.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key builds a deterministic cache key from the operation kind, the
// normalized query text, and the optional artist.
func Key(op, query, artist string) string {
	k := op + ":" + normalize.Key(query)
	if artist != "" {
		k += ":" + normalize.Key(artist)
	}
	return k
}

// GetJSON reads key from the store and unmarshals it into a fresh T.
// Any store or decode error degrades to a miss.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool) {
	var zero T
	data, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false
	}
	return v, true
}

// SetJSON marshals v and writes it to the store. Errors are swallowed; the
// cache is advisory.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.Set(ctx, key, data, ttl)
}
