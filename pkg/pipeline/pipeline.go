// Package pipeline provides the core classification pipeline for Strataflow.
//
// This package implements the complete classify → layout flow that both the
// CLI and the HTTP API drive. Centralizing it keeps caching and default
// handling identical across entry points.
//
// # Architecture
//
// The pipeline consists of two stages:
//
//  1. Classify: route every dataset item through the tree, producing
//     per-node counts and leaf memberships
//  2. Layout: compute drawing positions for the classified tree
//
// Each stage can be run independently or as part of the complete pipeline,
// and each stage caches its output keyed by a content hash of its inputs.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    TreeID: "session-tree",
//	    Width:  1200,
//	    Height: 800,
//	}
//	result, err := runner.Execute(ctx, tr, ds, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	diagram := result.Sankey
//
// Run individual stages:
//
//	// Classify only
//	res, err := runner.Classify(ctx, tr, ds, opts)
//
//	// Layout with an existing classification
//	lay, err := runner.ComputeLayout(ctx, tr, res, opts)
package pipeline

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/strataviz/strataflow/pkg/cache"
	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/dataset"
	"github.com/strataviz/strataflow/pkg/graphio"
	"github.com/strataviz/strataflow/pkg/layout"
)

// Default values shared by CLI and API entry points.
const (
	// DefaultWidth is the default drawing area width in pixels.
	DefaultWidth = 800.0

	// DefaultHeight is the default drawing area height in pixels.
	DefaultHeight = 600.0
)

// Options contains all configuration for the classification pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// TreeID identifies the tree in hooks and payloads.
	TreeID string `json:"tree_id,omitempty"`

	// Filters selects dataset records by categorical label before
	// classification.
	Filters dataset.Filters `json:"filters,omitempty"`

	// SkipMissing records items lacking a required metric instead of
	// failing the run.
	SkipMissing bool `json:"skip_missing,omitempty"`

	// Layout options.
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	NodeWidth float64 `json:"node_width,omitempty"`

	// Refresh bypasses cached stage results.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized).
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Classification is the per-item routing result.
	Classification *classify.Result

	// Sankey is the serialized diagram payload.
	Sankey graphio.Sankey

	// Layout contains drawing positions, or nil when layout was skipped.
	Layout *layout.Layout

	// TreeHash is the content hash of the classified tree.
	TreeHash string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ItemCount    int
	NodeCount    int
	ClassifyTime time.Duration
	LayoutTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	SankeyHit bool // Whether classification counts came from cache
	LayoutHit bool // Whether the layout came from cache
}

// ValidateAndSetDefaults checks option values and applies defaults. This
// method is idempotent - calling it multiple times has the same effect as
// calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Width < 0 || o.Height < 0 || o.NodeWidth < 0 {
		return fmt.Errorf("negative dimensions: %gx%g", o.Width, o.Height)
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// LayoutOptions returns the layout engine options derived from the
// pipeline options.
func (o *Options) LayoutOptions() layout.Options {
	return layout.Options{
		TreeID:    o.TreeID,
		Width:     o.Width,
		Height:    o.Height,
		NodeWidth: o.NodeWidth,
	}
}

// SankeyKeyOpts returns cache key options for the classification stage.
func (o *Options) SankeyKeyOpts(itemCount int) cache.SankeyKeyOpts {
	return cache.SankeyKeyOpts{
		FilterHash: o.filterHash(),
		ItemCount:  itemCount,
	}
}

// LayoutKeyOpts returns cache key options for the layout stage.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		Width:     o.Width,
		Height:    o.Height,
		NodeWidth: o.NodeWidth,
	}
}

// filterHash folds the filter selections into a stable digest. Filters is
// a map, so the digest hashes the sorted key/value rendering rather than
// raw marshal order.
func (o *Options) filterHash() string {
	if len(o.Filters) == 0 {
		return ""
	}
	return cache.Hash([]byte(fmt.Sprintf("%v", sortedFilters(o.Filters))))
}

func sortedFilters(f dataset.Filters) []string {
	entries := make([]string, 0, len(f))
	for key, values := range f {
		entries = append(entries, fmt.Sprintf("%s=%v", key, values))
	}
	sort.Strings(entries)
	return entries
}
