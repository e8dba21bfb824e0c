package cache

import (
	"context"
	"time"
)

// NullCache discards every write and misses every read. Passing it where
// a Cache is required disables caching without branching in the pipeline:
// every run recomputes from scratch.
type NullCache struct{}

var _ Cache = (*NullCache)(nil)

// NewNullCache creates a cache that stores nothing.
func NewNullCache() Cache {
	return &NullCache{}
}

// Get always misses.
func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set discards the value.
func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

// Delete is a no-op.
func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Close is a no-op.
func (c *NullCache) Close() error {
	return nil
}
