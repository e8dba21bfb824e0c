package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation. In a
// shared server deployment each session gets its own cache namespace so one
// user's tree state never collides with another's.
//
// Example usage:
//
//	// Session-specific keys
//	sessionKeyer := NewScopedKeyer(NewDefaultKeyer(), "session:"+id+":")
//
//	// Deployment-global keys for shared datasets
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// SankeyKey generates a prefixed key for classification counts.
func (k *ScopedKeyer) SankeyKey(treeHash string, opts SankeyKeyOpts) string {
	return k.prefix + k.inner.SankeyKey(treeHash, opts)
}

// LayoutKey generates a prefixed key for layout caching.
func (k *ScopedKeyer) LayoutKey(treeHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(treeHash, opts)
}

// ComparisonKey generates a prefixed key for comparison caching.
func (k *ScopedKeyer) ComparisonKey(leftHash, rightHash string, opts ComparisonKeyOpts) string {
	return k.prefix + k.inner.ComparisonKey(leftHash, rightHash, opts)
}
