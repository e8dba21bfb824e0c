package tree

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNodeNotFound is returned when a referenced node id is absent from
	// the tree.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNotALeaf is returned by [Tree.AddStage] when the target node
	// already carries a split rule. Only leaves may receive a new stage.
	ErrNotALeaf = errors.New("node is not a leaf")

	// ErrUnknownStageType is returned by [Tree.AddStage] when the requested
	// stage type is not in the catalog, and by [Tree.AvailableStageTypes]
	// indirectly when a recorded stage type no longer resolves.
	ErrUnknownStageType = errors.New("unknown stage type")

	// ErrMalformedTree is returned by [Tree.Validate] wrappers when the node
	// graph violates a structural invariant: dangling child reference,
	// parent/child disagreement, or a missing or duplicated root.
	ErrMalformedTree = errors.New("malformed tree")
)

// RootID is the id of the stage-0 node in every tree.
const RootID = "root"

// Tree is a hierarchical classification tree: a root category successively
// partitioned by split rules into child categories. Nodes are indexed by id
// for O(1) lookup; insertion order is preserved so traversals and layout
// fallbacks are deterministic across runs.
//
// The zero value is not usable - use [New]. A Tree is owned by whichever
// session created it and is not safe for concurrent mutation; the layout
// engine and flow matcher only borrow it read-only.
type Tree struct {
	nodes   map[string]*Node
	order   []string // ids in insertion order
	catalog *Catalog
	metrics []string // cached union of rule metrics, sorted
}

// New creates a tree containing only the root leaf at stage 0, configured
// with the given stage-type catalog. A nil catalog uses [DefaultCatalog].
func New(catalog *Catalog) *Tree {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	t := &Tree{
		nodes:   make(map[string]*Node),
		catalog: catalog,
	}
	t.insert(&Node{ID: RootID, Stage: 0, Category: CategoryRoot})
	return t
}

// Catalog returns the stage-type catalog the tree was configured with.
func (t *Tree) Catalog() *Catalog { return t.catalog }

// Node returns the node with the given id and true, or nil and false.
// The returned pointer refers to the live node; callers must not mutate it.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Root returns the stage-0 node.
func (t *Tree) Root() *Node { return t.nodes[RootID] }

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// Nodes returns all nodes in insertion order.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

// Leaves returns all terminal categories in insertion order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for _, id := range t.order {
		if n := t.nodes[id]; n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// MaxStage returns the deepest stage present in the tree; 0 for a root-only
// tree.
func (t *Tree) MaxStage() int {
	max := 0
	for _, n := range t.nodes {
		if n.Stage > max {
			max = n.Stage
		}
	}
	return max
}

// CanExtend reports whether the node may receive a new splitting stage,
// which is true exactly for leaves. Unknown ids report false.
func (t *Tree) CanExtend(id string) bool {
	n, ok := t.nodes[id]
	return ok && n.IsLeaf()
}

// Metrics returns the sorted union of every metric referenced by any node's
// rule. The union is recomputed in full after every mutation rather than
// patched incrementally, so it can never go stale.
func (t *Tree) Metrics() []string { return t.metrics }

// AvailableStageTypes returns the catalog descriptors whose splitting pass
// has not been used anywhere along the node's ancestry nor by the node's
// own current rule. A single root-to-leaf path never applies the same pass
// twice, but different branches of the tree remain free to apply passes in
// different orders. Returns ErrNodeNotFound for an unknown id.
func (t *Tree) AvailableStageTypes(id string) ([]StageType, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	used := make(map[string]bool, len(n.ParentPath)+1)
	for _, step := range n.ParentPath {
		used[step.StageType] = true
	}
	if n.StageType != "" {
		used[n.StageType] = true
	}

	var out []StageType
	for _, st := range t.catalog.StageTypes() {
		if !used[st.ID] {
			out = append(out, st)
		}
	}
	return out, nil
}

// Violation describes one structural inconsistency found by [Tree.Validate].
type Violation struct {
	NodeID string
	Reason string
}

func (v Violation) String() string { return fmt.Sprintf("%s: %s", v.NodeID, v.Reason) }

// Validate checks structural invariants and returns any violations found:
// exactly one stage-0 root with an empty parent path, every child reference
// resolving, every resolved child naming the claimed parent as the last
// entry of its parent path, stage always parent stage plus one, and rule
// presence matching child presence. An empty result means the tree is
// consistent. This is a self-check for serialized and migrated trees, not
// part of the mutation hot path, which maintains these invariants by
// construction.
func (t *Tree) Validate() []Violation {
	var violations []Violation

	roots := 0
	for _, id := range t.order {
		n := t.nodes[id]
		if n.Stage == 0 {
			roots++
			if len(n.ParentPath) != 0 {
				violations = append(violations, Violation{n.ID, "root has non-empty parent path"})
			}
		}
		if len(n.ParentPath) != n.Stage {
			violations = append(violations, Violation{n.ID, fmt.Sprintf("parent path length %d != stage %d", len(n.ParentPath), n.Stage)})
		}
		if (n.Rule == nil) != (len(n.ChildIDs) == 0) {
			violations = append(violations, Violation{n.ID, "split rule and children must be set together"})
		}
		if n.Rule != nil && n.Rule.BranchCount() != len(n.ChildIDs) {
			violations = append(violations, Violation{n.ID, fmt.Sprintf("rule expects %d children, node has %d", n.Rule.BranchCount(), len(n.ChildIDs))})
		}
		for i, childID := range n.ChildIDs {
			child, ok := t.nodes[childID]
			if !ok {
				violations = append(violations, Violation{n.ID, fmt.Sprintf("dangling child reference %q", childID)})
				continue
			}
			if child.Stage != n.Stage+1 {
				violations = append(violations, Violation{childID, fmt.Sprintf("stage %d under parent at stage %d", child.Stage, n.Stage)})
			}
			if child.ParentID != n.ID {
				violations = append(violations, Violation{childID, fmt.Sprintf("parent link %q disagrees with owner %q", child.ParentID, n.ID)})
			}
			if len(child.ParentPath) == 0 || child.ParentPath[len(child.ParentPath)-1].ParentID != n.ID {
				violations = append(violations, Violation{childID, "last parent path entry does not name the owning parent"})
			}
			if child.BranchIndex != i {
				violations = append(violations, Violation{childID, fmt.Sprintf("branch index %d but stored at position %d", child.BranchIndex, i)})
			}
		}
	}
	if roots != 1 {
		violations = append(violations, Violation{RootID, fmt.Sprintf("expected exactly one stage-0 node, found %d", roots)})
	}
	return violations
}

// insert registers a node in the id map and insertion order.
func (t *Tree) insert(n *Node) {
	t.nodes[n.ID] = n
	t.order = append(t.order, n.ID)
}

// remove deletes a node from the id map and insertion order.
func (t *Tree) remove(id string) {
	delete(t.nodes, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// recomputeMetrics rebuilds the metric union cache from scratch.
func (t *Tree) recomputeMetrics() {
	seen := make(map[string]bool)
	for _, n := range t.nodes {
		for _, m := range n.Metrics() {
			seen[m] = true
		}
	}
	metrics := make([]string, 0, len(seen))
	for m := range seen {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	t.metrics = metrics
}
