package pipeline

import (
	"context"
	"testing"

	"github.com/strataviz/strataflow/pkg/cache"
	"github.com/strataviz/strataflow/pkg/dataset"
	"github.com/strataviz/strataflow/pkg/graphio"
	"github.com/strataviz/strataflow/pkg/tree"
)

func testTree(t *testing.T) *tree.Tree {
	t.Helper()
	tr := tree.New(tree.DefaultCatalog())
	if err := tr.AddStage(tree.RootID, tree.StageFeatureSplitting, []float64{0.5}); err != nil {
		t.Fatal(err)
	}
	return tr
}

func testDataset() *dataset.Dataset {
	return dataset.New([]dataset.Record{
		{ID: 1, Labels: map[string]string{"model": "a"}, Values: map[string]float64{"feature_splitting": 0.1}},
		{ID: 2, Labels: map[string]string{"model": "a"}, Values: map[string]float64{"feature_splitting": 0.7}},
		{ID: 3, Labels: map[string]string{"model": "b"}, Values: map[string]float64{"feature_splitting": 0.9}},
	})
}

func TestExecute(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	defer runner.Close()

	result, err := runner.Execute(context.Background(), testTree(t), testDataset(), Options{TreeID: "t1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Classification == nil {
		t.Fatal("missing classification")
	}
	if result.Classification.Total != 3 {
		t.Errorf("total = %d, want 3", result.Classification.Total)
	}
	if result.Stats.NodeCount != 3 {
		t.Errorf("node count = %d, want 3", result.Stats.NodeCount)
	}
	if result.Layout == nil {
		t.Fatal("missing layout")
	}
	if len(result.Layout.Columns) != 2 {
		t.Errorf("columns = %d, want 2", len(result.Layout.Columns))
	}
	if result.TreeHash == "" {
		t.Error("missing tree hash")
	}
	if result.CacheInfo.SankeyHit || result.CacheInfo.LayoutHit {
		t.Error("null cache should never hit")
	}
}

func TestExecuteFiltered(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	defer runner.Close()

	result, err := runner.Execute(context.Background(), testTree(t), testDataset(), Options{
		Filters: dataset.Filters{"model": {"a"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Classification.Total != 2 {
		t.Errorf("total = %d, want 2", result.Classification.Total)
	}
}

func TestExecuteCacheHit(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, nil)
	defer runner.Close()

	tr := testTree(t)
	ds := testDataset()

	first, err := runner.Execute(context.Background(), tr, ds, Options{})
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.CacheInfo.SankeyHit || first.CacheInfo.LayoutHit {
		t.Error("first run should miss")
	}

	second, err := runner.Execute(context.Background(), tr, ds, Options{})
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.CacheInfo.SankeyHit {
		t.Error("second run should hit the sankey cache")
	}
	if !second.CacheInfo.LayoutHit {
		t.Error("second run should hit the layout cache")
	}
	if second.Classification != nil {
		t.Error("cached run should carry no per-item classification")
	}
	if second.Sankey.Metadata.Total != first.Sankey.Metadata.Total {
		t.Errorf("cached total = %d, want %d", second.Sankey.Metadata.Total, first.Sankey.Metadata.Total)
	}

	// Refresh bypasses the cache.
	third, err := runner.Execute(context.Background(), tr, ds, Options{Refresh: true})
	if err != nil {
		t.Fatalf("third Execute: %v", err)
	}
	if third.CacheInfo.SankeyHit || third.CacheInfo.LayoutHit {
		t.Error("refresh should bypass the cache")
	}
}

func TestExecuteCacheKeySensitivity(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, nil)
	defer runner.Close()

	tr := testTree(t)
	ds := testDataset()

	if _, err := runner.Execute(context.Background(), tr, ds, Options{}); err != nil {
		t.Fatal(err)
	}

	// A different filter selection must not reuse the cached counts.
	filtered, err := runner.Execute(context.Background(), tr, ds, Options{
		Filters: dataset.Filters{"model": {"b"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if filtered.CacheInfo.SankeyHit {
		t.Error("different filters should miss the sankey cache")
	}
	if filtered.Classification.Total != 1 {
		t.Errorf("filtered total = %d, want 1", filtered.Classification.Total)
	}

	// A mutated tree must not reuse either stage.
	if err := tr.AddStage("root_feature_splitting_high", tree.StageScoreAgreement, nil); err != nil {
		t.Fatal(err)
	}
	mutated, err := runner.Execute(context.Background(), tr, ds, Options{SkipMissing: true})
	if err != nil {
		t.Fatal(err)
	}
	if mutated.CacheInfo.SankeyHit || mutated.CacheInfo.LayoutHit {
		t.Error("mutated tree should miss both caches")
	}
}

func TestCompare(t *testing.T) {
	runner := NewRunner(nil, nil, nil)
	defer runner.Close()
	ctx := context.Background()

	left := testTree(t)
	right := testTree(t)
	ds := testDataset()

	leftRes, err := runner.Classify(ctx, left, ds, Options{TreeID: "left"})
	if err != nil {
		t.Fatal(err)
	}
	rightRes, err := runner.Classify(ctx, right, ds, Options{TreeID: "right"})
	if err != nil {
		t.Fatal(err)
	}

	c, err := runner.Compare(ctx, left, right, leftRes, rightRes, Options{})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if c.LeftID != "left" || c.RightID != "right" {
		t.Errorf("ids = %s/%s", c.LeftID, c.RightID)
	}
	if c.Summary == nil {
		t.Fatal("missing summary")
	}
	// Identical trees over identical data flow every item to itself.
	if c.Summary.ConsistencyRate != 100 {
		t.Errorf("consistency = %v, want 100", c.Summary.ConsistencyRate)
	}
}

func TestCompareCacheKeySensitivity(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, nil)
	defer runner.Close()
	ctx := context.Background()

	left := testTree(t)
	right := testTree(t)
	ds := testDataset()

	compare := func(filters dataset.Filters) (graphio.Comparison, bool) {
		t.Helper()
		opts := Options{Filters: filters}
		leftRes, err := runner.Classify(ctx, left, ds, opts)
		if err != nil {
			t.Fatal(err)
		}
		rightRes, err := runner.Classify(ctx, right, ds, opts)
		if err != nil {
			t.Fatal(err)
		}
		cmp, hit, err := runner.CompareWithCacheInfo(ctx, left, right, leftRes, rightRes, opts)
		if err != nil {
			t.Fatal(err)
		}
		return cmp, hit
	}

	first, hit := compare(dataset.Filters{"model": {"a"}})
	if hit {
		t.Error("first compare should miss")
	}

	// The same trees over a different filter selection classify a different
	// population; the cached edges from the first run must not be served.
	second, hit := compare(dataset.Filters{"model": {"b"}})
	if hit {
		t.Error("different filters should miss the comparison cache")
	}
	if len(second.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(second.Edges))
	}
	if got := second.Edges[0].Items; len(got) != 1 || got[0] != 3 {
		t.Errorf("items = %v, want [3]", got)
	}

	// Repeating the first selection hits and replays the same edges.
	replay, hit := compare(dataset.Filters{"model": {"a"}})
	if !hit {
		t.Error("repeated compare should hit")
	}
	if len(replay.Edges) != len(first.Edges) {
		t.Errorf("replayed edges = %d, want %d", len(replay.Edges), len(first.Edges))
	}
}

func TestOptionsValidation(t *testing.T) {
	opts := Options{Width: -1}
	if err := opts.ValidateAndSetDefaults(); err == nil {
		t.Error("negative width should fail")
	}

	opts = Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if opts.Width != DefaultWidth || opts.Height != DefaultHeight {
		t.Errorf("defaults = %gx%g", opts.Width, opts.Height)
	}
	if opts.Logger == nil {
		t.Error("logger default missing")
	}
}
