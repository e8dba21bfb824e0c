package layout

import "sort"

// countCrossings sums edge crossings between each pair of adjacent columns
// under the given column orders. children resolves a node's outgoing edges.
// The computed order keeps sibling groups contiguous under their parent so
// the count is normally zero; a non-zero value reported in a layout points
// at legacy nodes whose lineage could not be resolved.
func countCrossings(columns [][]string, children func(id string) []string) int {
	crossings := 0
	for i := 0; i+1 < len(columns); i++ {
		crossings += countLayerCrossings(columns[i], columns[i+1], children)
	}
	return crossings
}

// countLayerCrossings counts crossings between two adjacent columns with a
// Fenwick tree in O(E log V), E edges between the columns and V nodes in
// the lower column.
//
// Two edges (u1,v1) and (u2,v2) cross if and only if:
//
//	pos(u1) < pos(u2) AND pos(v1) > pos(v2)
//
// which is the number of inversions in the sequence of target positions
// once edges are sorted by source position.
func countLayerCrossings(upper, lower []string, children func(id string) []string) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}

	lowerPos := make(map[string]int, len(lower))
	for i, id := range lower {
		lowerPos[id] = i
	}

	type edge struct{ upper, lower int }
	var edges []edge
	for i, id := range upper {
		for _, child := range children(id) {
			if pos, ok := lowerPos[child]; ok {
				edges = append(edges, edge{i, pos})
			}
		}
	}
	if len(edges) < 2 {
		return 0
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].upper != edges[j].upper {
			return edges[i].upper < edges[j].upper
		}
		return edges[i].lower < edges[j].lower
	})

	fenwick := make([]int, len(lower)+1)
	crossings, total := 0, 0
	for _, e := range edges {
		// Count edges seen so far with target <= e.lower; the rest cross.
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		crossings += total - lessOrEqual

		total++
		for idx := e.lower + 1; idx < len(fenwick); idx += idx & (-idx) {
			fenwick[idx]++
		}
	}
	return crossings
}
