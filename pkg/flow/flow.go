// Package flow reconciles two independently built classification trees over
// a shared item population. For every pair of leaf categories it intersects
// the member-id sets and grades how surprising the flow is, producing the
// alluvial edges and consistency statistics of a comparison view.
package flow

import (
	"context"
	"sort"
	"time"

	"github.com/strataviz/strataflow/pkg/classify"
	"github.com/strataviz/strataflow/pkg/observability"
	"github.com/strataviz/strataflow/pkg/tree"
)

// Membership maps a node id to the sorted item ids assigned to it.
type Membership map[string][]int

// Edge is one non-empty flow between a left-tree leaf and a right-tree leaf.
// The category tags let consumers see the agreement the summary's
// Consistent count is derived from without resolving node ids themselves.
type Edge struct {
	Source         string        `json:"source"`
	Target         string        `json:"target"`
	SourceCategory tree.Category `json:"source_category"`
	TargetCategory tree.Category `json:"target_category"`
	Items          []int         `json:"items"`
	Size           int           `json:"size"`
	Triviality     Triviality    `json:"triviality"`
}

// Summary aggregates a comparison run. Consistent counts edges whose two
// leaves carry the same category.
type Summary struct {
	TotalEdges      int     `json:"total_edges"`
	Consistent      int     `json:"consistent"`
	ConsistencyRate float64 `json:"consistency_rate"`
}

// Result is the full output of one Match call. Summary is nil when there
// are no edges, which is the expected state while one side is still empty.
type Result struct {
	Edges   []Edge   `json:"edges"`
	Summary *Summary `json:"summary,omitempty"`
}

// Options configures a comparison run.
type Options struct {
	// LeftID and RightID tag hook events. Optional.
	LeftID  string
	RightID string
}

// Match computes the leaf-by-leaf flow between two trees evaluated over the
// same item population. Both trees are only read. Empty memberships are not
// an error: they simply produce no edges and a nil summary.
//
// The join is O(leavesLeft x leavesRight); leaf counts are small, bounded
// by the fan-out of a handful of splitting passes.
func Match(ctx context.Context, left, right *tree.Tree, leftMembers, rightMembers Membership, opts Options) *Result {
	start := time.Now()
	observability.Engine().OnCompareStart(ctx, opts.LeftID, opts.RightID)

	res := match(left, right, leftMembers, rightMembers)
	observability.Engine().OnCompareComplete(ctx, opts.LeftID, opts.RightID, len(res.Edges), time.Since(start), nil)
	return res
}

func match(left, right *tree.Tree, leftMembers, rightMembers Membership) *Result {
	res := &Result{}

	for _, leftID := range sortedKeys(leftMembers) {
		leftSet := leftMembers[leftID]
		if len(leftSet) == 0 {
			continue
		}
		for _, rightID := range sortedKeys(rightMembers) {
			items := intersect(leftSet, rightMembers[rightID])
			if len(items) == 0 {
				continue
			}
			res.Edges = append(res.Edges, Edge{
				Source:         leftID,
				Target:         rightID,
				SourceCategory: categoryOf(left, leftID),
				TargetCategory: categoryOf(right, rightID),
				Items:          items,
				Size:           len(items),
				Triviality:     classifyTriviality(left, right, leftID, rightID),
			})
		}
	}

	if len(res.Edges) > 0 {
		res.Summary = summarize(left, right, res.Edges)
	}
	return res
}

func summarize(left, right *tree.Tree, edges []Edge) *Summary {
	s := &Summary{TotalEdges: len(edges)}
	for _, e := range edges {
		ln, lok := nodeOf(left, e.Source)
		rn, rok := nodeOf(right, e.Target)
		if lok && rok && ln.Category == rn.Category {
			s.Consistent++
		}
	}
	if s.TotalEdges > 0 {
		s.ConsistencyRate = float64(s.Consistent) / float64(s.TotalEdges) * 100
	}
	return s
}

// CommonStage returns the deepest stage present in both trees.
func CommonStage(left, right *tree.Tree) int {
	ls, rs := left.MaxStage(), right.MaxStage()
	if ls < rs {
		return ls
	}
	return rs
}

// MembershipAtStage folds a classification result up to the given stage:
// members of leaves deeper than the stage are attributed to their ancestor
// at that stage, leaves at or above it keep their own members. This is how
// two trees of different depth are compared at their deepest common stage.
func MembershipAtStage(tr *tree.Tree, res *classify.Result, stage int) Membership {
	m := make(Membership)
	for leafID, members := range res.LeafMembers {
		if len(members) == 0 {
			continue
		}
		n, ok := tr.Node(leafID)
		if !ok {
			continue
		}
		key := leafID
		if n.Stage > stage {
			key = n.ParentPath[stage].ParentID
		}
		m[key] = append(m[key], members...)
	}
	for _, members := range m {
		sort.Ints(members)
	}
	return m
}

// intersect returns the common elements of two ascending-sorted id slices.
func intersect(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func sortedKeys(m Membership) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nodeOf(tr *tree.Tree, id string) (*tree.Node, bool) {
	if tr == nil {
		return nil, false
	}
	return tr.Node(id)
}

func categoryOf(tr *tree.Tree, id string) tree.Category {
	if n, ok := nodeOf(tr, id); ok {
		return n.Category
	}
	return ""
}
