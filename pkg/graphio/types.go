// Package graphio provides serialization types for classification trees and
// diagram payloads.
//
// This package defines the canonical wire format for Strataflow's tree and
// diagram data, used for JSON files, API responses, and caching. Trees
// serialize as an ordered list of splits; replaying the splits against the
// same stage-type catalog reproduces the tree exactly, so
// import → mutate → export → re-import is lossless.
package graphio

import (
	"github.com/strataviz/strataflow/pkg/flow"
	"github.com/strataviz/strataflow/pkg/tree"
)

// Rule kind discriminator values used in serialized rules. They match
// tree.RuleKind.String().
const (
	RuleKindRange      = "range"
	RuleKindPattern    = "pattern"
	RuleKindExpression = "expression"
)

// Tree is the serialization format for a classification tree: the ordered
// splits that built it. Splits appear parent-before-child, so replaying
// them in order against the catalog that produced them reconstructs the
// tree.
type Tree struct {
	Splits []Split `json:"splits" bson:"splits"`
}

// Split records one grow operation: which node was split and with what.
type Split struct {
	NodeID    string `json:"node_id" bson:"node_id"`
	StageType string `json:"stage_type" bson:"stage_type"`
	Rule      Rule   `json:"rule" bson:"rule"`
}

// Rule is the tagged union of the three split-rule kinds. Kind selects
// which fields are meaningful: Metric/Thresholds for range, Metrics/
// Thresholds for pattern, Branches/DefaultSuffix for expression.
type Rule struct {
	Kind          string             `json:"rule_kind" bson:"rule_kind"`
	Metric        string             `json:"metric,omitempty" bson:"metric,omitempty"`
	Metrics       []string           `json:"metrics,omitempty" bson:"metrics,omitempty"`
	Thresholds    []float64          `json:"thresholds,omitempty" bson:"thresholds,omitempty"`
	Branches      []ExpressionBranch `json:"branches,omitempty" bson:"branches,omitempty"`
	DefaultSuffix string             `json:"default_suffix,omitempty" bson:"default_suffix,omitempty"`
}

// ExpressionBranch is one serialized condition branch of an expression rule.
type ExpressionBranch struct {
	Condition   string `json:"condition" bson:"condition"`
	Suffix      string `json:"suffix" bson:"suffix"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// SankeyNode is one positioned category in a sankey payload.
type SankeyNode struct {
	ID         string   `json:"id" bson:"id"`
	Name       string   `json:"name" bson:"name"`
	Stage      int      `json:"stage" bson:"stage"`
	Count      int      `json:"count" bson:"count"`
	Category   string   `json:"category" bson:"category"`
	ParentPath []string `json:"parent_path,omitempty" bson:"parent_path,omitempty"`
}

// SankeyLink is one parent-to-child flow in a sankey payload.
type SankeyLink struct {
	Source string `json:"source" bson:"source"`
	Target string `json:"target" bson:"target"`
	Value  int    `json:"value" bson:"value"`
}

// SankeyMetadata describes the inputs behind a sankey payload.
type SankeyMetadata struct {
	Total             int                 `json:"total" bson:"total"`
	AppliedFilters    map[string][]string `json:"applied_filters" bson:"applied_filters"`
	AppliedThresholds map[string]float64  `json:"applied_thresholds" bson:"applied_thresholds"`
}

// Sankey is the diagram payload for one classified tree.
type Sankey struct {
	Nodes    []SankeyNode   `json:"nodes" bson:"nodes"`
	Links    []SankeyLink   `json:"links" bson:"links"`
	Metadata SankeyMetadata `json:"metadata" bson:"metadata"`
}

// Comparison is the payload for a cross-tree flow comparison.
type Comparison struct {
	LeftID  string        `json:"left_id" bson:"left_id"`
	RightID string        `json:"right_id" bson:"right_id"`
	Edges   []flow.Edge   `json:"edges" bson:"edges"`
	Summary *flow.Summary `json:"summary,omitempty" bson:"summary,omitempty"`
}

// BuildComparison wraps a flow match result with the ids of the compared
// trees.
func BuildComparison(leftID, rightID string, res *flow.Result) Comparison {
	return Comparison{
		LeftID:  leftID,
		RightID: rightID,
		Edges:   res.Edges,
		Summary: res.Summary,
	}
}

// ruleFromSplit converts a live split rule to its serialized form.
func ruleFromSplit(r tree.SplitRule) Rule {
	switch rule := r.(type) {
	case *tree.RangeRule:
		return Rule{
			Kind:       RuleKindRange,
			Metric:     rule.Metric,
			Thresholds: append([]float64(nil), rule.Thresholds...),
		}
	case *tree.PatternRule:
		return Rule{
			Kind:       RuleKindPattern,
			Metrics:    append([]string(nil), rule.MetricNames...),
			Thresholds: append([]float64(nil), rule.Thresholds...),
		}
	case *tree.ExpressionRule:
		branches := make([]ExpressionBranch, len(rule.Branches))
		for i, b := range rule.Branches {
			branches[i] = ExpressionBranch{
				Condition:   b.Condition,
				Suffix:      b.Suffix,
				Description: b.Description,
			}
		}
		return Rule{
			Kind:          RuleKindExpression,
			Branches:      branches,
			DefaultSuffix: rule.DefaultSuffix,
		}
	}
	return Rule{}
}
