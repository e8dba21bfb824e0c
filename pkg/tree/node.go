package tree

// Category is the semantic tag describing which conceptual splitting pass
// produced a node. The catalog defines the closed set in use; CategoryRoot
// is always present.
type Category string

// CategoryRoot tags the single stage-0 node of every tree.
const CategoryRoot Category = "root"

// PathStep records one ancestor edge on the way from the root to a node:
// which parent was split, with which pass and rule kind, and which branch
// was taken. A node's ParentPath has exactly Stage entries, root to parent.
type PathStep struct {
	ParentID    string    `json:"parent_id" bson:"parent_id"`
	StageType   string    `json:"stage_type" bson:"stage_type"`
	Kind        RuleKind  `json:"-" bson:"-"`
	RuleKind    string    `json:"rule_kind" bson:"rule_kind"`
	BranchIndex int       `json:"branch_index" bson:"branch_index"`
	Metric      string    `json:"metric,omitempty" bson:"metric,omitempty"`         // range rules
	Thresholds  []float64 `json:"thresholds,omitempty" bson:"thresholds,omitempty"` // range rules
	Pattern     string    `json:"pattern,omitempty" bson:"pattern,omitempty"`       // pattern rules: matched branch suffix
}

// Node is one category in the classification tree. The id is unique within
// a tree and encodes lineage, but apart from the layout engine's legacy
// tie-break fallback it is treated as an opaque key; ordering decisions use
// the explicit ParentID and BranchIndex fields instead.
//
// A node with a nil Rule and no children is a leaf - a terminal category.
// Rule and ChildIDs are always set or cleared together.
type Node struct {
	ID          string
	Stage       int
	Category    Category
	ParentID    string // empty for the root
	BranchIndex int    // index within the parent's ChildIDs
	ParentPath  []PathStep
	Rule        SplitRule // nil for leaves
	StageType   string    // catalog id of the pass applied here, empty for leaves
	ChildIDs    []string
}

// IsLeaf reports whether the node is a terminal category with no rule and
// no children.
func (n *Node) IsLeaf() bool { return n.Rule == nil && len(n.ChildIDs) == 0 }

// Metrics returns the metric names referenced by this node's own rule,
// not its ancestors'. Leaves return nil.
func (n *Node) Metrics() []string {
	if n.Rule == nil {
		return nil
	}
	return n.Rule.Metrics()
}
