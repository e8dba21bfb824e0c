package flow

import (
	"encoding/json"

	"github.com/strataviz/strataflow/pkg/tree"
)

// Triviality grades how surprising a flow edge is. Trivial edges connect
// categories that agree; higher grades mean the two trees disagree harder
// about the same items. DifferentStage overrides the scale entirely when
// the two leaves descend from different top-level splitting passes, since
// comparing their branch semantics would be meaningless.
type Triviality int

const (
	Trivial Triviality = iota
	Minor
	Moderate
	Major
	DifferentStage
)

var trivialityNames = map[Triviality]string{
	Trivial:        "trivial",
	Minor:          "minor",
	Moderate:       "moderate",
	Major:          "major",
	DifferentStage: "differentStage",
}

func (t Triviality) String() string {
	if s, ok := trivialityNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalJSON emits the wire name rather than the numeric grade.
func (t Triviality) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the wire name.
func (t *Triviality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for grade, name := range trivialityNames {
		if name == s {
			*t = grade
			return nil
		}
	}
	*t = Moderate
	return nil
}

// classifyTriviality grades one leaf pair:
//
//  1. Leaves rooted in different top-level passes are DifferentStage.
//  2. Identical branch categories are Trivial.
//  3. Opposite branches of a binary range split are Major.
//  4. Agreement-pattern branches map the absolute difference of their
//     high-metric counts: 0 Trivial, 1 Minor, 2 Moderate, 3+ Major.
//  5. Anything else lands on Moderate.
func classifyTriviality(left, right *tree.Tree, leftID, rightID string) Triviality {
	ln, lok := nodeOf(left, leftID)
	rn, rok := nodeOf(right, rightID)
	if !lok || !rok {
		return Moderate
	}

	if topStageType(ln) != topStageType(rn) {
		return DifferentStage
	}
	if ln.Category == rn.Category {
		return Trivial
	}

	lr, lb := lastRule(left, ln)
	rr, rb := lastRule(right, rn)
	if lr == nil || rr == nil {
		return Moderate
	}

	lRange, lIsRange := lr.(*tree.RangeRule)
	rRange, rIsRange := rr.(*tree.RangeRule)
	if lIsRange && rIsRange && lRange.BranchCount() == 2 && rRange.BranchCount() == 2 {
		if lb != rb {
			return Major
		}
		return Trivial
	}

	lPattern, lIsPattern := lr.(*tree.PatternRule)
	rPattern, rIsPattern := rr.(*tree.PatternRule)
	if lIsPattern && rIsPattern {
		diff := lPattern.Branches[lb].HighCount() - rPattern.Branches[rb].HighCount()
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
			return Trivial
		case diff == 1:
			return Minor
		case diff == 2:
			return Moderate
		default:
			return Major
		}
	}

	return Moderate
}

// topStageType returns the splitting pass that produced the node's
// top-level ancestry, or "" for the root itself.
func topStageType(n *tree.Node) string {
	if len(n.ParentPath) == 0 {
		return ""
	}
	return n.ParentPath[0].StageType
}

// lastRule resolves the rule that produced the node and the branch it took.
func lastRule(tr *tree.Tree, n *tree.Node) (tree.SplitRule, int) {
	if len(n.ParentPath) == 0 {
		return nil, 0
	}
	step := n.ParentPath[len(n.ParentPath)-1]
	parent, ok := tr.Node(step.ParentID)
	if !ok || parent.Rule == nil {
		return nil, 0
	}
	return parent.Rule, n.BranchIndex
}
