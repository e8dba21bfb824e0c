package tree

import (
	"fmt"
	"strings"
)

// DisplayName returns a human-readable label for a node: the branch
// description of its final path step, prefixed with the stage type's
// display name where that adds information. The root is labelled
// "All Items".
func (t *Tree) DisplayName(n *Node) string {
	if n.Stage == 0 {
		return "All Items"
	}
	step := n.ParentPath[len(n.ParentPath)-1]
	parent, ok := t.nodes[step.ParentID]
	if !ok || parent.Rule == nil {
		return string(n.Category)
	}
	st, hasType := t.catalog.Lookup(step.StageType)

	switch rule := parent.Rule.(type) {
	case *RangeRule:
		label := rangeBranchLabel(rule, n.BranchIndex)
		if hasType {
			return st.DisplayName + " " + label
		}
		return rule.Metric + " " + label
	case *PatternRule:
		return rule.Branches[n.BranchIndex].Description
	case *ExpressionRule:
		if n.BranchIndex < len(rule.Branches) {
			if d := rule.Branches[n.BranchIndex].Description; d != "" {
				return d
			}
			return rule.Branches[n.BranchIndex].Suffix
		}
		return rule.DefaultSuffix
	}
	return string(n.Category)
}

// PathLabel joins the display names along the node's ancestry, root
// excluded, into a breadcrumb like
// "Feature Splitting Low / Score Agreement All 3 high".
func (t *Tree) PathLabel(n *Node) string {
	if n.Stage == 0 {
		return t.DisplayName(n)
	}
	parts := make([]string, 0, n.Stage)
	for id := n.ID; id != ""; {
		cur, ok := t.nodes[id]
		if !ok || cur.Stage == 0 {
			break
		}
		parts = append(parts, t.DisplayName(cur))
		id = cur.ParentID
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " / ")
}

func rangeBranchLabel(r *RangeRule, i int) string {
	if len(r.Thresholds) == 1 {
		if i == 0 {
			return "Low"
		}
		return "High"
	}
	return fmt.Sprintf("Bin %d", i)
}
