package graphio

import (
	"fmt"

	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/tree"
)

// BuildSankey assembles the diagram payload for one classified tree. Nodes
// follow tree insertion order and links follow each parent's child order,
// so identical inputs always serialize identically. filters is echoed into
// the metadata untouched; pass nil when no filters were applied.
func BuildSankey(t *tree.Tree, res *classify.Result, filters map[string][]string) Sankey {
	nodes := t.Nodes()

	out := Sankey{
		Nodes: make([]SankeyNode, 0, len(nodes)),
		Links: make([]SankeyLink, 0, len(nodes)-1),
		Metadata: SankeyMetadata{
			Total:             res.Total,
			AppliedFilters:    filters,
			AppliedThresholds: appliedThresholds(nodes),
		},
	}
	if out.Metadata.AppliedFilters == nil {
		out.Metadata.AppliedFilters = map[string][]string{}
	}

	for _, n := range nodes {
		out.Nodes = append(out.Nodes, SankeyNode{
			ID:         n.ID,
			Name:       t.DisplayName(n),
			Stage:      n.Stage,
			Count:      res.NodeCounts[n.ID],
			Category:   string(n.Category),
			ParentPath: ancestorIDs(n),
		})
		for _, child := range n.ChildIDs {
			out.Links = append(out.Links, SankeyLink{
				Source: n.ID,
				Target: child,
				Value:  res.LinkCounts[classify.Link{Source: n.ID, Target: child}],
			})
		}
	}
	return out
}

// ancestorIDs returns the node ids on the path from the root to the node's
// parent, or nil for the root.
func ancestorIDs(n *tree.Node) []string {
	if len(n.ParentPath) == 0 {
		return nil
	}
	ids := make([]string, len(n.ParentPath))
	for i, step := range n.ParentPath {
		ids[i] = step.ParentID
	}
	return ids
}

// appliedThresholds flattens every split's threshold values into a
// metric-keyed map for the metadata block. Range rules with one threshold
// map the metric directly; wider range rules index each threshold. Pattern
// rules map each metric to its own threshold. Expression rules embed their
// constants in condition strings and contribute nothing here.
func appliedThresholds(nodes []*tree.Node) map[string]float64 {
	out := map[string]float64{}
	for _, n := range nodes {
		switch rule := n.Rule.(type) {
		case *tree.RangeRule:
			if len(rule.Thresholds) == 1 {
				out[rule.Metric] = rule.Thresholds[0]
			} else {
				for i, thr := range rule.Thresholds {
					out[fmt.Sprintf("%s_%d", rule.Metric, i)] = thr
				}
			}
		case *tree.PatternRule:
			for i, metric := range rule.MetricNames {
				out[metric] = rule.Thresholds[i]
			}
		}
	}
	return out
}
