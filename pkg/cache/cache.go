// Package cache provides pluggable byte caches and deterministic cache keys
// for the expensive derived artifacts of a classification session: sankey
// counts, computed layouts, and cross-tree comparisons. Backends cover local
// CLI use (files), server deployments (Redis), and disabled caching (null).
package cache

import (
	"context"
	"time"
)

// Default TTLs per artifact kind. Every key hashes the full set of inputs
// that shape its artifact, so entries never need invalidation; the TTLs
// just bound cache growth.
const (
	TTLSankey     = 24 * time.Hour
	TTLLayout     = 24 * time.Hour
	TTLComparison = 24 * time.Hour
	TTLHTTP       = time.Hour
)

// Cache stores opaque byte payloads under string keys with optional TTL.
// Implementations must treat a missing key as (nil, false, nil), never as
// an error.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// SankeyKeyOpts captures everything that changes a classification run's
// output besides the tree itself.
type SankeyKeyOpts struct {
	FilterHash string
	ItemCount  int
}

// LayoutKeyOpts captures the drawing-area parameters a layout depends on.
type LayoutKeyOpts struct {
	Width     float64
	Height    float64
	NodeWidth float64
}

// ComparisonKeyOpts captures the classified populations a comparison
// intersects. The same pair of trees compared over different filter
// selections carries different member sets, so the population hashes must
// be part of the key.
type ComparisonKeyOpts struct {
	LeftMembersHash  string
	RightMembersHash string
}

// Keyer generates cache keys. Key generation is separated from storage so
// scoping (per-user, per-deployment) composes with any backend.
type Keyer interface {
	// HTTPKey generates a key for caching an HTTP response body.
	HTTPKey(namespace, key string) string

	// SankeyKey generates a key for classification counts of one tree
	// state. treeHash must change whenever the tree structure does.
	SankeyKey(treeHash string, opts SankeyKeyOpts) string

	// LayoutKey generates a key for a computed layout.
	LayoutKey(treeHash string, opts LayoutKeyOpts) string

	// ComparisonKey generates a key for a cross-tree comparison. It is
	// order-sensitive: left-vs-right and right-vs-left are distinct runs.
	ComparisonKey(leftHash, rightHash string, opts ComparisonKeyOpts) string
}

// DefaultKeyer is the standard key scheme: a readable prefix identifying
// the artifact kind plus a SHA-256 digest of every input that affects the
// artifact.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// HTTPKey generates a key for HTTP response caching.
func (k *DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// SankeyKey generates a key for classification counts.
func (k *DefaultKeyer) SankeyKey(treeHash string, opts SankeyKeyOpts) string {
	return hashKey("sankey", treeHash, opts)
}

// LayoutKey generates a key for a computed layout.
func (k *DefaultKeyer) LayoutKey(treeHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", treeHash, opts)
}

// ComparisonKey generates a key for a cross-tree comparison.
func (k *DefaultKeyer) ComparisonKey(leftHash, rightHash string, opts ComparisonKeyOpts) string {
	return hashKey("comparison", leftHash, rightHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
