package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/strataviz/strataflow/pkg/cache"
	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/dataset"
	"github.com/strataviz/strataflow/pkg/flow"
	"github.com/strataviz/strataflow/pkg/graphio"
	"github.com/strataviz/strataflow/pkg/layout"
	"github.com/strataviz/strataflow/pkg/observability"
	"github.com/strataviz/strataflow/pkg/tree"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete classify → layout pipeline with caching.
func (r *Runner) Execute(ctx context.Context, tr *tree.Tree, ds *dataset.Dataset, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		TreeHash: TreeHash(tr),
	}

	// Stage 1: Classify
	classifyStart := time.Now()
	res, sankey, sankeyHit, err := r.ClassifyWithCacheInfo(ctx, tr, ds, opts)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	result.Classification = res
	result.Sankey = sankey
	result.Stats.ClassifyTime = time.Since(classifyStart)
	result.Stats.ItemCount = sankey.Metadata.Total
	result.Stats.NodeCount = len(sankey.Nodes)
	result.CacheInfo.SankeyHit = sankeyHit

	r.Logger.Info("classified items",
		"items", result.Stats.ItemCount,
		"nodes", result.Stats.NodeCount,
		"duration", result.Stats.ClassifyTime)

	// Stage 2: Layout
	layoutStart := time.Now()
	lay, layoutHit, err := r.LayoutWithCacheInfo(ctx, tr, sankey, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = lay
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = layoutHit

	r.Logger.Info("computed layout",
		"columns", len(lay.Columns),
		"crossings", lay.Crossings,
		"duration", result.Stats.LayoutTime)

	return result, nil
}

// ClassifyWithCacheInfo classifies the dataset through the tree and
// returns the sankey payload plus cache hit info. On a cache hit the raw
// classification result is nil: the cached sankey carries every count the
// later stages need, but not per-item assignments.
func (r *Runner) ClassifyWithCacheInfo(ctx context.Context, tr *tree.Tree, ds *dataset.Dataset, opts Options) (*classify.Result, graphio.Sankey, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, graphio.Sankey{}, false, err
	}
	r.applyLogger(&opts)

	view := ds.Filter(opts.Filters)
	cacheKey := r.Keyer.SankeyKey(TreeHash(tr), opts.SankeyKeyOpts(view.Len()))

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cached graphio.Sankey
			if err := json.Unmarshal(data, &cached); err == nil {
				observability.Cache().OnCacheHit(ctx, "sankey")
				return nil, cached, true, nil // Cache hit
			}
		}
	}
	observability.Cache().OnCacheMiss(ctx, "sankey")

	res, err := classify.Run(ctx, tr, view.Items(), classify.Options{
		TreeID:      opts.TreeID,
		SkipMissing: opts.SkipMissing,
	})
	if err != nil {
		return nil, graphio.Sankey{}, false, err
	}
	sankey := graphio.BuildSankey(tr, res, opts.Filters)

	if data, err := json.Marshal(sankey); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLSankey)
		observability.Cache().OnCacheSet(ctx, "sankey", len(data))
	}

	return res, sankey, false, nil // Cache miss
}

// Classify is a convenience wrapper that discards the sankey payload and
// cache hit info. It always runs the classifier, since per-item
// assignments are not cached.
func (r *Runner) Classify(ctx context.Context, tr *tree.Tree, ds *dataset.Dataset, opts Options) (*classify.Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	view := ds.Filter(opts.Filters)
	return classify.Run(ctx, tr, view.Items(), classify.Options{
		TreeID:      opts.TreeID,
		SkipMissing: opts.SkipMissing,
	})
}

// LayoutWithCacheInfo computes drawing positions with caching and returns
// cache hit info. The cache key hashes the sankey payload, so any change
// to tree shape or counts recomputes.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, tr *tree.Tree, sankey graphio.Sankey, opts Options) (*layout.Layout, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	sankeyData, err := json.Marshal(sankey)
	if err != nil {
		return nil, false, fmt.Errorf("serialize sankey for cache key: %w", err)
	}
	cacheKey := r.Keyer.LayoutKey(cache.Hash(sankeyData), opts.LayoutKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cached layout.Layout
			if err := json.Unmarshal(data, &cached); err == nil {
				observability.Cache().OnCacheHit(ctx, "layout")
				return &cached, true, nil // Cache hit
			}
			// If deserialization fails, fall through to recompute
		}
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	lay, err := layout.Compute(ctx, tr, weightsFromSankey(sankey), opts.LayoutOptions())
	if err != nil {
		return nil, false, err
	}

	if data, err := json.Marshal(lay); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLLayout)
		observability.Cache().OnCacheSet(ctx, "layout", len(data))
	}

	return lay, false, nil // Cache miss
}

// ComputeLayout is a convenience wrapper that builds the sankey payload
// from a classification result and discards the cache hit info.
func (r *Runner) ComputeLayout(ctx context.Context, tr *tree.Tree, res *classify.Result, opts Options) (*layout.Layout, error) {
	lay, _, err := r.LayoutWithCacheInfo(ctx, tr, graphio.BuildSankey(tr, res, opts.Filters), opts)
	return lay, err
}

// CompareWithCacheInfo matches item flows between two classified trees at
// their common stage depth, with caching, and returns cache hit info.
func (r *Runner) CompareWithCacheInfo(ctx context.Context, left, right *tree.Tree, leftRes, rightRes *classify.Result, opts Options) (graphio.Comparison, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return graphio.Comparison{}, false, err
	}
	r.applyLogger(&opts)

	leftHash, rightHash := TreeHash(left), TreeHash(right)
	leftID, rightID := leftRes.TreeID, rightRes.TreeID

	// The key must cover the classified populations, not just the trees:
	// the same pair compared under a different filter selection carries
	// different member sets and must not share cached edges.
	leftPop, _ := json.Marshal(leftRes.LeafMembers)
	rightPop, _ := json.Marshal(rightRes.LeafMembers)
	cacheKey := r.Keyer.ComparisonKey(leftHash, rightHash, cache.ComparisonKeyOpts{
		LeftMembersHash:  cache.Hash(leftPop),
		RightMembersHash: cache.Hash(rightPop),
	})

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cached graphio.Comparison
			if err := json.Unmarshal(data, &cached); err == nil {
				observability.Cache().OnCacheHit(ctx, "comparison")
				return cached, true, nil // Cache hit
			}
		}
	}
	observability.Cache().OnCacheMiss(ctx, "comparison")

	stage := flow.CommonStage(left, right)
	matched := flow.Match(ctx, left, right,
		flow.MembershipAtStage(left, leftRes, stage),
		flow.MembershipAtStage(right, rightRes, stage),
		flow.Options{LeftID: leftID, RightID: rightID})
	comparison := graphio.BuildComparison(leftID, rightID, matched)

	if data, err := json.Marshal(comparison); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLComparison)
		observability.Cache().OnCacheSet(ctx, "comparison", len(data))
	}

	return comparison, false, nil // Cache miss
}

// Compare is a convenience wrapper that discards the cache hit info.
func (r *Runner) Compare(ctx context.Context, left, right *tree.Tree, leftRes, rightRes *classify.Result, opts Options) (graphio.Comparison, error) {
	c, _, err := r.CompareWithCacheInfo(ctx, left, right, leftRes, rightRes, opts)
	return c, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// TreeHash computes the content hash of a tree's serialized form, used as
// the base of every stage cache key.
func TreeHash(tr *tree.Tree) string {
	data, err := graphio.MarshalTree(tr)
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}

// weightsFromSankey rebuilds layout weights from a sankey payload, so a
// cached payload can drive layout without rerunning the classifier.
func weightsFromSankey(s graphio.Sankey) layout.Weights {
	w := layout.Weights{
		Nodes: make(map[string]int, len(s.Nodes)),
		Links: make(map[classify.Link]int, len(s.Links)),
	}
	for _, n := range s.Nodes {
		w.Nodes[n.ID] = n.Count
	}
	for _, l := range s.Links {
		w.Links[classify.Link{Source: l.Source, Target: l.Target}] = l.Value
	}
	return w
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
