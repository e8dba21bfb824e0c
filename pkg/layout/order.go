package layout

import (
	"sort"

	"github.com/strataviz/strataflow/pkg/tree"
)

// orderColumns assigns every node to the column of its stage and computes
// the final vertical order per column. The order is a pure function of the
// tree, so repeated runs over an unmodified tree are identical.
//
// Within a column nodes cluster under their parent, parents taken in their
// own already-computed vertical order. Siblings keep the branch order their
// parent's rule generated: lower range interval first, higher agreement
// count first. Nodes whose parent cannot be resolved fall back to insertion
// order at the end of the column.
func orderColumns(tr *tree.Tree) [][]*tree.Node {
	byStage := make(map[int][]*tree.Node)
	maxStage := 0
	for _, n := range tr.Nodes() {
		byStage[n.Stage] = append(byStage[n.Stage], n)
		if n.Stage > maxStage {
			maxStage = n.Stage
		}
	}

	columns := make([][]*tree.Node, maxStage+1)
	columns[0] = byStage[0]

	pos := make(map[string]int, tr.NodeCount())
	for i, n := range columns[0] {
		pos[n.ID] = i
	}

	for s := 1; s <= maxStage; s++ {
		groups := make(map[string][]*tree.Node)
		var parents []string
		var orphans []*tree.Node

		for _, n := range byStage[s] {
			pid := resolveParentID(tr, n)
			if pid == "" {
				orphans = append(orphans, n)
				continue
			}
			if _, placed := pos[pid]; !placed {
				orphans = append(orphans, n)
				continue
			}
			if _, seen := groups[pid]; !seen {
				parents = append(parents, pid)
			}
			groups[pid] = append(groups[pid], n)
		}

		sort.SliceStable(parents, func(i, j int) bool {
			return pos[parents[i]] < pos[parents[j]]
		})

		col := make([]*tree.Node, 0, len(byStage[s]))
		for _, pid := range parents {
			members := groups[pid]
			sortSiblings(tr, pid, members)
			col = append(col, members...)
		}
		col = append(col, orphans...)

		columns[s] = col
		for i, n := range col {
			pos[n.ID] = i
		}
	}
	return columns
}

// sortSiblings orders children of one parent by their branch position. The
// parent's ChildIDs slice is authoritative since the rule generated it in
// display order; BranchIndex covers nodes missing from it.
func sortSiblings(tr *tree.Tree, parentID string, members []*tree.Node) {
	parent, ok := tr.Node(parentID)
	rank := func(n *tree.Node) int {
		if ok {
			for i, id := range parent.ChildIDs {
				if id == n.ID {
					return i
				}
			}
		}
		return n.BranchIndex
	}
	sort.SliceStable(members, func(i, j int) bool {
		return rank(members[i]) < rank(members[j])
	})
}
