// Package layout places a classification tree into a layered sankey-style
// drawing area: one column per splitting stage, deterministic vertical
// ordering, and edges ordered by their target's computed position so links
// never cross more than the node order forces them to.
package layout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/observability"
	"github.com/strataviz/strataflow/pkg/tree"
)

// ErrInvalidInput is returned when the layout cannot start at all: no tree,
// an empty node set, or a drawing area the nodes cannot fit into. Individual
// bad edges never trigger it; those degrade into diagnostics.
var ErrInvalidInput = errors.New("invalid layout input")

// Options bound the drawing area and node geometry. Zero-valued geometry
// fields are filled by ValidateAndSetDefaults.
type Options struct {
	// Width and Height of the drawing area. Required, positive.
	Width  float64
	Height float64

	// NodeWidth is the horizontal extent of every node box. Default 24.
	NodeWidth float64

	// NodePadding is the vertical gap between stacked nodes. Default 8.
	NodePadding float64

	// MinNodeHeight keeps small-count nodes visible. Default 2.
	MinNodeHeight float64

	// TreeID tags hook events. Optional.
	TreeID string
}

// ValidateAndSetDefaults checks required fields and fills defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: area %gx%g", ErrInvalidInput, o.Width, o.Height)
	}
	if o.NodeWidth == 0 {
		o.NodeWidth = 24
	}
	if o.NodePadding == 0 {
		o.NodePadding = 8
	}
	if o.MinNodeHeight == 0 {
		o.MinNodeHeight = 2
	}
	if o.NodeWidth < 0 || o.NodePadding < 0 || o.MinNodeHeight < 0 {
		return fmt.Errorf("%w: negative geometry", ErrInvalidInput)
	}
	return nil
}

// Weights carries optional member counts: node box heights and edge
// thicknesses scale with them. Without weights every node in a column gets
// an equal share.
type Weights struct {
	Nodes map[string]int
	Links map[classify.Link]int
}

// WeightsFromResult adapts a classification result into layout weights.
func WeightsFromResult(res *classify.Result) Weights {
	if res == nil {
		return Weights{}
	}
	return Weights{Nodes: res.NodeCounts, Links: res.LinkCounts}
}

// Node is one placed box.
type Node struct {
	ID    string  `json:"id"`
	Stage int     `json:"stage"` // column
	Index int     `json:"index"` // vertical order within the column
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Count int     `json:"count"`
}

// Path is a cubic bezier from the source anchor to the target anchor with
// control points at the horizontal midpoint. Renderers consume it as-is.
type Path struct {
	X0, Y0 float64
	C0X    float64
	C1X    float64
	X1, Y1 float64
}

// Edge is one placed link. Index is the edge's order among its source's
// outgoing edges, which always matches the vertical order of the targets.
type Edge struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Index     int     `json:"index"`
	Count     int     `json:"count"`
	Thickness float64 `json:"thickness"`
	Path      Path    `json:"path"`
}

// Diagnostic records one edge that was dropped instead of aborting the
// layout.
type Diagnostic struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// Layout is the complete placement result.
type Layout struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	// Columns holds node ids per stage in final vertical order.
	Columns [][]string `json:"columns"`

	// Crossings counts edge crossings across adjacent columns under the
	// computed order. Reported as a quality diagnostic.
	Crossings int `json:"crossings"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Node returns the placement for the given id, if present.
func (l *Layout) Node(id string) (Node, bool) {
	for _, n := range l.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Compute lays out the tree. The tree is only read, never mutated. A nil or
// empty tree is an error; a root-only tree yields a single centered box and
// no edges. The context is used for hook events only, the computation itself
// runs to completion.
func Compute(ctx context.Context, tr *tree.Tree, weights Weights, opts Options) (*Layout, error) {
	nodeCount := 0
	if tr != nil {
		nodeCount = tr.NodeCount()
	}
	observability.Engine().OnLayoutStart(ctx, opts.TreeID, nodeCount)
	start := time.Now()

	l, err := compute(tr, weights, opts)
	crossings := 0
	if l != nil {
		crossings = l.Crossings
	}
	observability.Engine().OnLayoutComplete(ctx, opts.TreeID, crossings, time.Since(start), err)
	return l, err
}

func compute(tr *tree.Tree, weights Weights, opts Options) (*Layout, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if tr == nil || tr.NodeCount() == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidInput)
	}

	columns := orderColumns(tr)
	if err := checkFit(columns, opts); err != nil {
		return nil, err
	}

	l := &Layout{Width: opts.Width, Height: opts.Height}
	placed := placeNodes(tr, columns, weights, opts, l)
	placeEdges(tr, columns, placed, weights, opts, l)

	l.Crossings = countCrossings(l.Columns, func(id string) []string {
		if n, ok := tr.Node(id); ok {
			return n.ChildIDs
		}
		return nil
	})
	return l, nil
}

// checkFit rejects areas that cannot hold the widest column or every stage
// column side by side.
func checkFit(columns [][]*tree.Node, opts Options) error {
	if w := float64(len(columns)) * opts.NodeWidth; w > opts.Width {
		return fmt.Errorf("%w: %d stage columns need width %g, have %g", ErrInvalidInput, len(columns), w, opts.Width)
	}
	for stage, col := range columns {
		need := float64(len(col))*opts.MinNodeHeight + float64(len(col)-1)*opts.NodePadding
		if need > opts.Height {
			return fmt.Errorf("%w: stage %d needs height %g, have %g", ErrInvalidInput, stage, need, opts.Height)
		}
	}
	return nil
}
