package layout

import (
	"sort"

	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/tree"
)

// placeNodes assigns box geometry column by column and fills l.Nodes and
// l.Columns. With weights, box heights scale with member counts under a
// single global scale so equal counts render equal everywhere; without
// weights every node gets an equal share of its column. Columns are centered
// vertically. Returns the placements keyed by id.
func placeNodes(tr *tree.Tree, columns [][]*tree.Node, weights Weights, opts Options, l *Layout) map[string]Node {
	xStep := 0.0
	x0 := (opts.Width - opts.NodeWidth) / 2
	if len(columns) > 1 {
		x0 = 0
		xStep = (opts.Width - opts.NodeWidth) / float64(len(columns)-1)
	}

	scale := weightScale(columns, weights, opts)

	placed := make(map[string]Node, tr.NodeCount())
	l.Columns = make([][]string, len(columns))

	for s, col := range columns {
		avail := opts.Height - float64(len(col)-1)*opts.NodePadding

		heights := make([]float64, len(col))
		used := float64(len(col)-1) * opts.NodePadding
		for i, n := range col {
			if scale > 0 {
				heights[i] = float64(weights.Nodes[n.ID]) * scale
			} else {
				heights[i] = avail / float64(len(col))
			}
			if heights[i] < opts.MinNodeHeight {
				heights[i] = opts.MinNodeHeight
			}
			used += heights[i]
		}

		y := (opts.Height - used) / 2
		if y < 0 {
			y = 0
		}
		l.Columns[s] = make([]string, len(col))
		for i, n := range col {
			node := Node{
				ID:    n.ID,
				Stage: s,
				Index: i,
				X:     x0 + float64(s)*xStep,
				Y:     y,
				W:     opts.NodeWidth,
				H:     heights[i],
				Count: weights.Nodes[n.ID],
			}
			placed[n.ID] = node
			l.Nodes = append(l.Nodes, node)
			l.Columns[s][i] = n.ID
			y += heights[i] + opts.NodePadding
		}
	}
	return placed
}

// weightScale returns the height per member count, or 0 when the layout
// should fall back to equal shares. The scale is the tightest column's, so
// no weighted column overflows the area.
func weightScale(columns [][]*tree.Node, weights Weights, opts Options) float64 {
	if len(weights.Nodes) == 0 {
		return 0
	}
	scale := 0.0
	for _, col := range columns {
		total := 0
		for _, n := range col {
			total += weights.Nodes[n.ID]
		}
		if total == 0 {
			continue
		}
		avail := opts.Height - float64(len(col)-1)*opts.NodePadding
		if s := avail / float64(total); scale == 0 || s < scale {
			scale = s
		}
	}
	return scale
}

// placeEdges emits one edge per resolvable parent-child link. Edges leave
// the source in the vertical order of their targets, stacked down the
// source's right side; each target receives its single incoming edge at its
// left center. Unresolvable targets become diagnostics, not failures.
func placeEdges(tr *tree.Tree, columns [][]*tree.Node, placed map[string]Node, weights Weights, opts Options, l *Layout) {
	for _, col := range columns {
		for _, n := range col {
			if len(n.ChildIDs) == 0 {
				continue
			}
			source := placed[n.ID]

			targets := make([]Node, 0, len(n.ChildIDs))
			for _, childID := range n.ChildIDs {
				target, ok := placed[childID]
				if !ok {
					l.Diagnostics = append(l.Diagnostics, Diagnostic{
						Source: n.ID,
						Target: childID,
						Reason: "target not placed",
					})
					continue
				}
				targets = append(targets, target)
			}
			sort.Slice(targets, func(i, j int) bool { return targets[i].Index < targets[j].Index })

			offset := 0.0
			for i, target := range targets {
				thickness := target.H
				if thickness > source.H {
					thickness = source.H
				}
				count := weights.Links[classify.Link{Source: n.ID, Target: target.ID}]
				if count == 0 {
					count = weights.Nodes[target.ID]
				}
				midX := (source.X + source.W + target.X) / 2
				l.Edges = append(l.Edges, Edge{
					Source:    n.ID,
					Target:    target.ID,
					Index:     i,
					Count:     count,
					Thickness: thickness,
					Path: Path{
						X0:  source.X + source.W,
						Y0:  clamp(source.Y+offset+thickness/2, source.Y, source.Y+source.H),
						C0X: midX,
						C1X: midX,
						X1:  target.X,
						Y1:  target.Y + target.H/2,
					},
				})
				offset += thickness
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
