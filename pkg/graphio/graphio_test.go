package graphio

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/flow"
	"github.com/strataviz/strataflow/pkg/tree"
)

func buildTree(t *testing.T) *tree.Tree {
	t.Helper()
	tr := tree.New(tree.DefaultCatalog())
	if err := tr.AddStage(tree.RootID, tree.StageFeatureSplitting, []float64{0.5}); err != nil {
		t.Fatal(err)
	}
	if err := tr.AddStage("root_feature_splitting_high", tree.StageScoreAgreement, nil); err != nil {
		t.Fatal(err)
	}
	return tr
}

func treeShape(tr *tree.Tree) map[string][]string {
	shape := make(map[string][]string)
	for _, n := range tr.Nodes() {
		shape[n.ID] = n.ChildIDs
	}
	return shape
}

func TestTreeRoundTrip(t *testing.T) {
	tr := buildTree(t)

	data, err := MarshalTree(tr)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}

	got, err := UnmarshalTree(data, tree.DefaultCatalog())
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}

	if got.NodeCount() != tr.NodeCount() {
		t.Errorf("node count = %d, want %d", got.NodeCount(), tr.NodeCount())
	}
	if !reflect.DeepEqual(treeShape(got), treeShape(tr)) {
		t.Errorf("shape mismatch:\ngot  %v\nwant %v", treeShape(got), treeShape(tr))
	}
	if !reflect.DeepEqual(got.Metrics(), tr.Metrics()) {
		t.Errorf("metrics = %v, want %v", got.Metrics(), tr.Metrics())
	}

	// Custom thresholds survive the trip.
	n, ok := got.Node(tree.RootID)
	if !ok {
		t.Fatal("root missing after round trip")
	}
	rr, ok := n.Rule.(*tree.RangeRule)
	if !ok {
		t.Fatalf("root rule = %T, want *tree.RangeRule", n.Rule)
	}
	if !reflect.DeepEqual(rr.Thresholds, []float64{0.5}) {
		t.Errorf("thresholds = %v, want [0.5]", rr.Thresholds)
	}

	// A second export is byte-identical.
	again, err := MarshalTree(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("re-export differs from first export")
	}
}

func TestTreeRoundTripExpression(t *testing.T) {
	catalog := tree.NewCatalog()
	if err := catalog.Register(tree.StageType{
		ID:          "drift",
		DisplayName: "Drift",
		Kind:        tree.KindExpression,
	}); err != nil {
		t.Fatal(err)
	}

	rule, err := tree.NewExpressionRule([]tree.ExpressionBranch{
		{Condition: "drift_score > 0.7", Suffix: "drifted", Description: "Drifted"},
	}, "stable")
	if err != nil {
		t.Fatal(err)
	}

	tr := tree.New(catalog)
	if err := tr.AddExpressionStage(tree.RootID, "drift", rule); err != nil {
		t.Fatal(err)
	}

	data, err := MarshalTree(tr)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalTree(data, catalog)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}

	if !reflect.DeepEqual(treeShape(got), treeShape(tr)) {
		t.Errorf("shape mismatch: %v vs %v", treeShape(got), treeShape(tr))
	}
}

func TestToTreeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  Tree
	}{
		{"unknown rule kind", Tree{Splits: []Split{{NodeID: "root", StageType: "x", Rule: Rule{Kind: "mystery"}}}}},
		{"unknown stage type", Tree{Splits: []Split{{NodeID: "root", StageType: "nope", Rule: Rule{Kind: RuleKindRange, Thresholds: []float64{1}}}}}},
		{"unknown node", Tree{Splits: []Split{{NodeID: "ghost", StageType: tree.StageFeatureSplitting, Rule: Rule{Kind: RuleKindRange, Thresholds: []float64{1}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToTree(tt.doc, tree.DefaultCatalog()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadTreeMalformed(t *testing.T) {
	if _, err := ReadTree(strings.NewReader("{oops"), tree.DefaultCatalog()); err == nil {
		t.Error("expected decode error")
	}
}

func TestBuildSankey(t *testing.T) {
	tr := tree.New(tree.DefaultCatalog())
	if err := tr.AddStage(tree.RootID, tree.StageFeatureSplitting, nil); err != nil {
		t.Fatal(err)
	}

	res := &classify.Result{
		TreeID: "t1",
		Total:  5,
		NodeCounts: map[string]int{
			"root":                        5,
			"root_feature_splitting_low":  3,
			"root_feature_splitting_high": 2,
		},
		LinkCounts: map[classify.Link]int{
			{Source: "root", Target: "root_feature_splitting_low"}:  3,
			{Source: "root", Target: "root_feature_splitting_high"}: 2,
		},
	}

	s := BuildSankey(tr, res, map[string][]string{"model": {"a"}})

	if len(s.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(s.Nodes))
	}
	if s.Nodes[0].ID != "root" || s.Nodes[0].Count != 5 || s.Nodes[0].Stage != 0 {
		t.Errorf("root node = %+v", s.Nodes[0])
	}
	if s.Nodes[1].Name != "Feature Splitting Low" {
		t.Errorf("name = %s", s.Nodes[1].Name)
	}
	if !reflect.DeepEqual(s.Nodes[1].ParentPath, []string{"root"}) {
		t.Errorf("parent path = %v", s.Nodes[1].ParentPath)
	}

	wantLinks := []SankeyLink{
		{Source: "root", Target: "root_feature_splitting_low", Value: 3},
		{Source: "root", Target: "root_feature_splitting_high", Value: 2},
	}
	if !reflect.DeepEqual(s.Links, wantLinks) {
		t.Errorf("links = %v, want %v", s.Links, wantLinks)
	}

	if s.Metadata.Total != 5 {
		t.Errorf("total = %d", s.Metadata.Total)
	}
	if s.Metadata.AppliedThresholds["feature_splitting"] != 0.00002 {
		t.Errorf("thresholds = %v", s.Metadata.AppliedThresholds)
	}
	if !reflect.DeepEqual(s.Metadata.AppliedFilters["model"], []string{"a"}) {
		t.Errorf("filters = %v", s.Metadata.AppliedFilters)
	}
}

func TestBuildSankeyPatternThresholds(t *testing.T) {
	tr := tree.New(tree.DefaultCatalog())
	if err := tr.AddStage(tree.RootID, tree.StageScoreAgreement, nil); err != nil {
		t.Fatal(err)
	}

	s := BuildSankey(tr, &classify.Result{}, nil)
	want := map[string]float64{
		"score_fuzz":       0.5,
		"score_simulation": 0.5,
		"score_detection":  0.2,
	}
	if !reflect.DeepEqual(s.Metadata.AppliedThresholds, want) {
		t.Errorf("thresholds = %v, want %v", s.Metadata.AppliedThresholds, want)
	}
	if s.Metadata.AppliedFilters == nil {
		t.Error("filters should default to an empty map")
	}
}

func TestBuildComparison(t *testing.T) {
	res := &flow.Result{
		Edges: []flow.Edge{
			{Source: "a", Target: "b", Items: []int{1}, Size: 1, Triviality: flow.Trivial},
		},
		Summary: &flow.Summary{TotalEdges: 1, Consistent: 1, ConsistencyRate: 100},
	}

	c := BuildComparison("left", "right", res)
	if c.LeftID != "left" || c.RightID != "right" {
		t.Errorf("ids = %s/%s", c.LeftID, c.RightID)
	}
	if len(c.Edges) != 1 || c.Summary.ConsistencyRate != 100 {
		t.Errorf("payload = %+v", c)
	}
}
