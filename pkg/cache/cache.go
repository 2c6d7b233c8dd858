// Package cache stores rendered views and frames between runs.
//
// Tracing a view is the slow step of dataset generation, and a dataset run is
// often repeated with different packing options. Views are cached under a key
// derived from the scene content and every option that changes the pixels, so
// a re-run only traces what changed.
//
// Backends:
//   - [NullCache]: caching disabled
//   - [FileCache]: hashed files under a directory, for the CLI
//   - [RedisCache]: shared cache for several generator processes
//
// Every backend can be wrapped with [Instrument] to report hits, misses and
// stores to the observability cache hooks.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value stored under key. A missing or expired entry is
	// a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Entry lifetimes.
const (
	TTLView  = 30 * 24 * time.Hour
	TTLFrame = time.Hour
)
