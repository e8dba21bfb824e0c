// Package pkg provides the core libraries for Strataflow hierarchical
// classification.
//
// # Overview
//
// Strataflow routes scored datasets through configurable classification
// trees and lays the resulting flows out as layered sankey diagrams. The
// pkg directory is organized into five main areas:
//
//  1. [tree] - Split rules, the stage-type catalog, and tree mutation
//  2. [classify] - Routing items through a tree and counting flows
//  3. [layout] - Crossing-minimized sankey coordinate computation
//  4. [flow] - Cross-tree flow matching and consistency grading
//  5. [pipeline] - Orchestration (classify → layout) with caching
//
// # Architecture
//
// The typical data flow through Strataflow:
//
//	Dataset (JSON file, HTTP endpoint, or MongoDB)
//	         ↓
//	    [dataset] package (filtering + histograms)
//	         ↓
//	    [classify] package (route items through the tree)
//	         ↓
//	    [layout] package (sankey coordinates)
//	         ↓
//	    JSON output / HTTP API
//
// # Quick Start
//
// Classify a dataset and compute a layout:
//
//	import (
//	    "context"
//	    "github.com/strataviz/strataflow/pkg/dataset"
//	    "github.com/strataviz/strataflow/pkg/pipeline"
//	    "github.com/strataviz/strataflow/pkg/tree"
//	)
//
//	// 1. Build a tree from the standard catalog
//	tr := tree.New(tree.DefaultCatalog())
//	_ = tr.AddStage(tree.RootID, tree.StageFeatureSplitting, nil)
//
//	// 2. Load records
//	src := dataset.NewFileSource("items.json")
//	records, _ := src.Load(context.Background())
//	ds := dataset.New(records)
//
//	// 3. Run the pipeline
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, _ := runner.Execute(context.Background(), tr, ds, pipeline.Options{})
//
// # Main Packages
//
//   - tree: split-rule library, catalog, and all-or-nothing mutation
//   - classify: item routing with per-node and per-link counts
//   - dataset: records, label filters, histograms, and sources
//   - layout: layered sankey placement with crossing minimization
//   - flow: cross-tree flow matching graded by triviality
//   - graphio: JSON serialization for trees, sankeys, and comparisons
//   - pipeline: cached classify → layout orchestration
//   - cache: file, Redis, and null cache backends with content keys
//   - errors: coded engine errors shared by the CLI and HTTP API
//   - observability: pluggable hooks for engine and HTTP events
package pkg
