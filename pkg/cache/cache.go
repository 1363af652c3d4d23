// Package cache stores rendered diagrams keyed by graph fingerprint.
//
// Three backends implement [Cache]: [FileCache] for the CLI, [RedisCache]
// for sharing renders between machines, and [NullCache] when caching is
// disabled. Keys come from a [Keyer]; [ScopedKeyer] prefixes every key so
// different build versions or users never read each other's entries.
package cache

import (
	"context"
	"time"
)

// TTLArtifact is the lifetime of a rendered artifact. Artifacts are keyed
// by content, so a long lifetime never serves stale output.
const TTLArtifact = 30 * 24 * time.Hour

// Cache is a byte-oriented key/value store with expiration.
type Cache interface {
	// Get returns the value and true on a hit. Expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// ArtifactKeyOpts are the render options that change an artifact's bytes.
type ArtifactKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed,omitempty"`
	Rankdir  string `json:"rankdir,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	ArtifactKey(fingerprint string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes key components into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ArtifactKey returns "artifact:<sha256>" over the fingerprint and options.
func (DefaultKeyer) ArtifactKey(fingerprint string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", fingerprint, opts)
}
