// Package classify routes metric-valued items through a classification tree
// and aggregates the per-node, per-edge, and per-leaf membership counts that
// feed sankey payloads and cross-tree comparison.
package classify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/strataviz/strataflow/pkg/observability"
	"github.com/strataviz/strataflow/pkg/tree"
)

// Item is one classifiable member: a stable id plus its metric values.
type Item struct {
	ID     int
	Values map[string]float64
}

// Link identifies one parent-to-child edge of the tree.
type Link struct {
	Source string
	Target string
}

// Result aggregates one classification run. Counts cover every item that
// reached a leaf; items skipped for missing metrics are listed separately
// and appear in no count.
type Result struct {
	TreeID string

	// Total is the number of items routed to a leaf.
	Total int

	// NodeCounts maps node id to the number of members passing through it.
	// The root count equals Total.
	NodeCounts map[string]int

	// LinkCounts maps each parent-child edge to the members crossing it.
	LinkCounts map[Link]int

	// LeafMembers maps leaf id to the sorted ids of its members. Every leaf
	// of the tree has an entry, empty leaves included, so consumers can
	// distinguish "no members" from "unknown leaf".
	LeafMembers map[string][]int

	// Assignments maps item id to the leaf it landed in.
	Assignments map[int]string

	// Skipped lists ids of items dropped for missing metrics, in input
	// order. Empty unless Options.SkipMissing is set.
	Skipped []int
}

// Options configures a classification run.
type Options struct {
	// TreeID tags the run in results and hook events. Optional.
	TreeID string

	// SkipMissing drops items lacking a required metric instead of failing
	// the whole run.
	SkipMissing bool
}

// Run routes every item from the root to a leaf and aggregates counts.
// Without SkipMissing the first item missing a required metric aborts the
// run with tree.ErrMissingMetric wrapped in the item's id. An empty item
// slice yields a zeroed result, not an error.
func Run(ctx context.Context, tr *tree.Tree, items []Item, opts Options) (*Result, error) {
	start := time.Now()
	observability.Engine().OnClassifyStart(ctx, opts.TreeID, len(items))

	res, err := run(ctx, tr, items, opts)
	leafCount := 0
	if res != nil {
		leafCount = len(res.LeafMembers)
	}
	observability.Engine().OnClassifyComplete(ctx, opts.TreeID, leafCount, time.Since(start), err)
	return res, err
}

func run(ctx context.Context, tr *tree.Tree, items []Item, opts Options) (*Result, error) {
	res := &Result{
		TreeID:      opts.TreeID,
		NodeCounts:  make(map[string]int),
		LinkCounts:  make(map[Link]int),
		LeafMembers: make(map[string][]int),
		Assignments: make(map[int]string),
	}
	for _, leaf := range tr.Leaves() {
		res.LeafMembers[leaf.ID] = []int{}
	}

	for i, item := range items {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		leafID, path, err := route(tr, item)
		if err != nil {
			if opts.SkipMissing {
				res.Skipped = append(res.Skipped, item.ID)
				continue
			}
			return nil, fmt.Errorf("item %d: %w", item.ID, err)
		}
		res.Total++
		for _, id := range path {
			res.NodeCounts[id]++
		}
		for j := 1; j < len(path); j++ {
			res.LinkCounts[Link{Source: path[j-1], Target: path[j]}]++
		}
		res.LeafMembers[leafID] = append(res.LeafMembers[leafID], item.ID)
		res.Assignments[item.ID] = leafID
	}

	for _, members := range res.LeafMembers {
		sort.Ints(members)
	}
	return res, nil
}

// route walks one item from the root to its leaf, returning the leaf id and
// the full node-id path including both endpoints.
func route(tr *tree.Tree, item Item) (string, []string, error) {
	n := tr.Root()
	path := []string{n.ID}
	for !n.IsLeaf() {
		branch, err := tree.Route(n.Rule, item.Values)
		if err != nil {
			return "", nil, err
		}
		child, ok := tr.Node(n.ChildIDs[branch])
		if !ok {
			return "", nil, fmt.Errorf("%w: child %q of %q", tree.ErrMalformedTree, n.ChildIDs[branch], n.ID)
		}
		n = child
		path = append(path, n.ID)
	}
	return n.ID, path, nil
}

// Members returns the sorted member ids of one leaf and whether the leaf is
// known to the result.
func (r *Result) Members(leafID string) ([]int, bool) {
	m, ok := r.LeafMembers[leafID]
	return m, ok
}

// LeafIDs returns the result's leaf ids in lexical order.
func (r *Result) LeafIDs() []string {
	ids := make([]string, 0, len(r.LeafMembers))
	for id := range r.LeafMembers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
