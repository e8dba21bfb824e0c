package tree

import "fmt"

// AddStage splits the given leaf with the catalog pass named by stageTypeID.
// A nil thresholds slice uses the catalog defaults. The mutation is
// all-or-nothing: every validation runs before the first node is touched,
// so a failed call leaves the tree exactly as it was.
//
// Returns ErrNodeNotFound, ErrNotALeaf, ErrUnknownStageType (also when the
// pass was already applied on this node's ancestry), or a threshold
// validation error from the rule constructor.
func (t *Tree) AddStage(nodeID, stageTypeID string, thresholds []float64) error {
	st, ok := t.catalog.Lookup(stageTypeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStageType, stageTypeID)
	}
	rule, err := st.NewRule(thresholds)
	if err != nil {
		return err
	}
	return t.attachRule(nodeID, st, rule)
}

// AddExpressionStage splits the given leaf with a caller-built expression
// rule under a catalog-registered expression stage type. The same
// all-or-nothing and ancestry-exclusivity semantics as [Tree.AddStage] apply.
func (t *Tree) AddExpressionStage(nodeID, stageTypeID string, rule *ExpressionRule) error {
	st, ok := t.catalog.Lookup(stageTypeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStageType, stageTypeID)
	}
	if st.Kind != KindExpression {
		return fmt.Errorf("%w: %s is not an expression stage type", ErrUnknownStageType, stageTypeID)
	}
	if rule == nil {
		return fmt.Errorf("%w: expression stage needs a rule", ErrInvalidExpression)
	}
	return t.attachRule(nodeID, st, rule)
}

// attachRule validates the target and grows the tree by one stage. All
// checks complete before the first write.
func (t *Tree) attachRule(nodeID string, st StageType, rule SplitRule) error {
	parent, ok := t.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if !parent.IsLeaf() {
		return fmt.Errorf("%w: %s", ErrNotALeaf, nodeID)
	}
	for _, step := range parent.ParentPath {
		if step.StageType == st.ID {
			return fmt.Errorf("%w: %s already applied on the path to %s", ErrUnknownStageType, st.ID, nodeID)
		}
	}

	children := make([]*Node, rule.BranchCount())
	for i := range children {
		suffix := rule.BranchSuffix(i)
		childID := parent.ID + "_" + suffix
		if _, exists := t.nodes[childID]; exists {
			return fmt.Errorf("%w: child id %q already present", ErrMalformedTree, childID)
		}
		step := PathStep{
			ParentID:    parent.ID,
			StageType:   st.ID,
			Kind:        rule.Kind(),
			RuleKind:    rule.Kind().String(),
			BranchIndex: i,
		}
		switch r := rule.(type) {
		case *RangeRule:
			step.Metric = r.Metric
			step.Thresholds = append([]float64(nil), r.Thresholds...)
		case *PatternRule:
			step.Pattern = suffix
		}
		children[i] = &Node{
			ID:          childID,
			Stage:       parent.Stage + 1,
			Category:    Category(suffix),
			ParentID:    parent.ID,
			BranchIndex: i,
			ParentPath:  append(append([]PathStep(nil), parent.ParentPath...), step),
		}
	}

	parent.Rule = rule
	parent.StageType = st.ID
	parent.ChildIDs = make([]string, len(children))
	for i, child := range children {
		parent.ChildIDs[i] = child.ID
		t.insert(child)
	}
	t.recomputeMetrics()
	return nil
}

// RemoveStage deletes the split at the given node along with the entire
// subtree below it, turning the node back into a leaf. Removal is
// idempotent: calling it on a node that is already a leaf succeeds and
// reports zero removed nodes. Returns the number of descendants deleted,
// or ErrNodeNotFound for an unknown id.
func (t *Tree) RemoveStage(nodeID string) (int, error) {
	n, ok := t.nodes[nodeID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if n.IsLeaf() {
		return 0, nil
	}

	removed := 0
	stack := append([]string(nil), n.ChildIDs...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		child, ok := t.nodes[id]
		if !ok {
			continue
		}
		stack = append(stack, child.ChildIDs...)
		t.remove(id)
		removed++
	}

	n.Rule = nil
	n.StageType = ""
	n.ChildIDs = nil
	t.recomputeMetrics()
	return removed, nil
}

// Reset removes every stage, returning the tree to a single root leaf.
// Reports the number of nodes deleted.
func (t *Tree) Reset() int {
	removed, _ := t.RemoveStage(RootID)
	return removed
}
