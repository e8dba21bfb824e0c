package layout

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/tree"
)

func buildTree(t *testing.T) *tree.Tree {
	t.Helper()
	tr := tree.New(nil)
	if err := tr.AddStage(tree.RootID, tree.StageFeatureSplitting, nil); err != nil {
		t.Fatalf("AddStage() error = %v", err)
	}
	if err := tr.AddStage("root_feature_splitting_high", tree.StageScoreAgreement, nil); err != nil {
		t.Fatalf("AddStage() error = %v", err)
	}
	return tr
}

func defaultOpts() Options {
	return Options{Width: 800, Height: 600}
}

func TestComputeRootOnly(t *testing.T) {
	tr := tree.New(nil)
	l, err := Compute(context.Background(), tr, Weights{}, defaultOpts())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(l.Nodes) != 1 || len(l.Edges) != 0 {
		t.Fatalf("got %d nodes, %d edges, want 1 and 0", len(l.Nodes), len(l.Edges))
	}
	root := l.Nodes[0]
	// A single box is centered in the drawing area.
	if cx := root.X + root.W/2; math.Abs(cx-400) > 0.001 {
		t.Errorf("horizontal center = %g, want 400", cx)
	}
	if cy := root.Y + root.H/2; math.Abs(cy-300) > 0.001 {
		t.Errorf("vertical center = %g, want 300", cy)
	}
}

func TestComputeInvalidInput(t *testing.T) {
	tr := buildTree(t)
	tests := []struct {
		name string
		tr   *tree.Tree
		opts Options
	}{
		{name: "nil tree", tr: nil, opts: defaultOpts()},
		{name: "zero width", tr: tr, opts: Options{Width: 0, Height: 600}},
		{name: "zero height", tr: tr, opts: Options{Width: 800, Height: 0}},
		{name: "too narrow for columns", tr: tr, opts: Options{Width: 40, Height: 600}},
		{name: "too short for widest column", tr: tr, opts: Options{Width: 800, Height: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compute(context.Background(), tt.tr, Weights{}, tt.opts); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Compute() error = %v, want %v", err, ErrInvalidInput)
			}
		})
	}
}

func TestComputeColumnsAreStages(t *testing.T) {
	tr := buildTree(t)
	l, err := Compute(context.Background(), tr, Weights{}, defaultOpts())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got := len(l.Columns); got != 3 {
		t.Fatalf("len(Columns) = %d, want 3", got)
	}
	for _, n := range l.Nodes {
		want, _ := tr.Node(n.ID)
		if n.Stage != want.Stage {
			t.Errorf("node %q in column %d, want stage %d", n.ID, n.Stage, want.Stage)
		}
	}
	// The unextended fs-low leaf stays in its stage-1 column even though
	// its sibling's subtree goes deeper.
	low, ok := l.Node("root_feature_splitting_low")
	if !ok || low.Stage != 1 {
		t.Errorf("fs low placed at stage %d, want 1", low.Stage)
	}
}

func TestComputeSiblingOrder(t *testing.T) {
	tr := buildTree(t)
	l, err := Compute(context.Background(), tr, Weights{}, defaultOpts())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	// Range branches order low before high.
	if l.Columns[1][0] != "root_feature_splitting_low" || l.Columns[1][1] != "root_feature_splitting_high" {
		t.Errorf("stage 1 order = %v", l.Columns[1])
	}
	// Pattern branches keep the generated order: full agreement first,
	// full disagreement last.
	stage2 := l.Columns[2]
	if len(stage2) != 8 {
		t.Fatalf("stage 2 has %d nodes, want 8", len(stage2))
	}
	if stage2[0] != "root_feature_splitting_high_all-3-high" {
		t.Errorf("first stage-2 node = %q", stage2[0])
	}
	if stage2[7] != "root_feature_splitting_high_all-3-low" {
		t.Errorf("last stage-2 node = %q", stage2[7])
	}
}

func TestComputeDeterministic(t *testing.T) {
	tr := buildTree(t)
	a, err := Compute(context.Background(), tr, Weights{}, defaultOpts())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	b, err := Compute(context.Background(), tr, Weights{}, defaultOpts())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			t.Fatalf("node %d differs across runs: %+v vs %+v", i, a.Nodes[i], b.Nodes[i])
		}
	}
	for i := range a.Edges {
		if a.Edges[i] != b.Edges[i] {
			t.Fatalf("edge %d differs across runs", i)
		}
	}
}

func TestComputeEdgeOrderMatchesTargets(t *testing.T) {
	tr := buildTree(t)
	l, err := Compute(context.Background(), tr, Weights{}, defaultOpts())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	lastIndex := make(map[string]int)
	for _, e := range l.Edges {
		target, ok := l.Node(e.Target)
		if !ok {
			t.Fatalf("edge target %q not placed", e.Target)
		}
		if prev, seen := lastIndex[e.Source]; seen && target.Index <= prev {
			t.Errorf("edges from %q not in target order", e.Source)
		}
		lastIndex[e.Source] = target.Index
	}
	if l.Crossings != 0 {
		t.Errorf("Crossings = %d, want 0", l.Crossings)
	}
	if len(l.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %v, want none", l.Diagnostics)
	}
}

func TestComputeWeighted(t *testing.T) {
	tr := tree.New(nil)
	if err := tr.AddStage(tree.RootID, tree.StageFeatureSplitting, nil); err != nil {
		t.Fatalf("AddStage() error = %v", err)
	}
	weights := Weights{
		Nodes: map[string]int{
			tree.RootID:                   4,
			"root_feature_splitting_low":  3,
			"root_feature_splitting_high": 1,
		},
		Links: map[classify.Link]int{
			{Source: tree.RootID, Target: "root_feature_splitting_low"}:  3,
			{Source: tree.RootID, Target: "root_feature_splitting_high"}: 1,
		},
	}
	l, err := Compute(context.Background(), tr, weights, defaultOpts())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	low, _ := l.Node("root_feature_splitting_low")
	high, _ := l.Node("root_feature_splitting_high")
	if low.H <= high.H {
		t.Errorf("low height %g should exceed high height %g", low.H, high.H)
	}
	if math.Abs(low.H-3*high.H) > 0.001 {
		t.Errorf("heights not proportional to counts: %g vs %g", low.H, high.H)
	}
	for _, e := range l.Edges {
		if e.Target == "root_feature_splitting_low" && e.Count != 3 {
			t.Errorf("low edge count = %d, want 3", e.Count)
		}
	}
}

func TestCountLayerCrossings(t *testing.T) {
	children := map[string][]string{
		"a": {"y"},
		"b": {"x"},
	}
	lookup := func(id string) []string { return children[id] }

	// a->y and b->x cross when a precedes b and x precedes y.
	if got := countLayerCrossings([]string{"a", "b"}, []string{"x", "y"}, lookup); got != 1 {
		t.Errorf("crossings = %d, want 1", got)
	}
	// Swapping the lower order removes the crossing.
	if got := countLayerCrossings([]string{"a", "b"}, []string{"y", "x"}, lookup); got != 0 {
		t.Errorf("crossings = %d, want 0", got)
	}
	if got := countLayerCrossings(nil, []string{"x"}, lookup); got != 0 {
		t.Errorf("empty upper: crossings = %d, want 0", got)
	}
}

func TestParseLegacyParentID(t *testing.T) {
	tr := buildTree(t)
	tests := []struct {
		id   string
		want string
	}{
		{"root_feature_splitting_low", "root"},
		{"root_feature_splitting_high_all-3-low", "root_feature_splitting_high"},
		{"unrelated_id", ""},
		{"root", ""},
	}
	for _, tt := range tests {
		if got := parseLegacyParentID(tr, tt.id); got != tt.want {
			t.Errorf("parseLegacyParentID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	opts := Options{Width: 100, Height: 100}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error = %v", err)
	}
	if opts.NodeWidth != 24 || opts.NodePadding != 8 || opts.MinNodeHeight != 2 {
		t.Errorf("defaults not applied: %+v", opts)
	}

	bad := Options{Width: 100, Height: 100, NodeWidth: -1}
	if err := bad.ValidateAndSetDefaults(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative geometry error = %v, want %v", err, ErrInvalidInput)
	}
}
