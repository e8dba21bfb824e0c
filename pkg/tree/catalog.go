package tree

import "fmt"

// StageType describes one splitting pass available to [Tree.AddStage]: the
// rule family it instantiates, the metric columns it reads, and the default
// thresholds applied when the caller does not override them.
type StageType struct {
	// ID is the catalog key recorded on nodes and parent-path steps.
	ID string

	// DisplayName is the human-readable label used in rendered output.
	DisplayName string

	// Kind selects the rule family built by NewRule.
	Kind RuleKind

	// Metrics are the metric columns the pass reads. Range passes use
	// exactly one; pattern passes use one threshold per metric.
	Metrics []string

	// Thresholds are the default cut points, overridable per AddStage call.
	Thresholds []float64
}

// NewRule instantiates the stage type's split rule. A nil thresholds slice
// uses the catalog defaults; a non-nil slice overrides them and is validated
// by the rule constructor. Expression stage types cannot be built from
// thresholds and must be attached via [Tree.AddExpressionStage].
func (st StageType) NewRule(thresholds []float64) (SplitRule, error) {
	if thresholds == nil {
		thresholds = st.Thresholds
	}
	switch st.Kind {
	case KindRange:
		if len(st.Metrics) != 1 {
			return nil, fmt.Errorf("%w: range stage type %q must read exactly one metric", ErrInvalidThresholds, st.ID)
		}
		return NewRangeRule(st.Metrics[0], thresholds)
	case KindPattern:
		return NewPatternRule(st.Metrics, thresholds)
	default:
		return nil, fmt.Errorf("%w: stage type %q has kind %s", ErrUnknownStageType, st.ID, st.Kind)
	}
}

// Catalog is the registry of splitting passes a tree may draw from.
// Registration order is preserved so [Catalog.StageTypes] and everything
// derived from it stay deterministic.
type Catalog struct {
	types []StageType
	byID  map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// Register adds a stage type. Registering an id twice replaces the earlier
// descriptor in place, keeping its position in the ordering.
func (c *Catalog) Register(st StageType) error {
	if st.ID == "" {
		return fmt.Errorf("%w: stage type id must not be empty", ErrUnknownStageType)
	}
	if st.Kind != KindExpression {
		if _, err := st.NewRule(nil); err != nil {
			return fmt.Errorf("stage type %q defaults: %w", st.ID, err)
		}
	}
	if i, ok := c.byID[st.ID]; ok {
		c.types[i] = st
		return nil
	}
	c.byID[st.ID] = len(c.types)
	c.types = append(c.types, st)
	return nil
}

// Lookup returns the descriptor for the given id.
func (c *Catalog) Lookup(id string) (StageType, bool) {
	i, ok := c.byID[id]
	if !ok {
		return StageType{}, false
	}
	return c.types[i], true
}

// StageTypes returns all registered descriptors in registration order.
func (c *Catalog) StageTypes() []StageType {
	out := make([]StageType, len(c.types))
	copy(out, c.types)
	return out
}

// Well-known stage type ids registered by [DefaultCatalog].
const (
	StageFeatureSplitting = "feature_splitting"
	StageSemanticDistance = "semantic_distance"
	StageScoreAgreement   = "score_agreement"
)

// DefaultCatalog returns the standard three-pass catalog: a binary range
// split on feature-splitting probability, a binary range split on mean
// semantic distance, and a high/low pattern split across the three scorer
// columns.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, st := range []StageType{
		{
			ID:          StageFeatureSplitting,
			DisplayName: "Feature Splitting",
			Kind:        KindRange,
			Metrics:     []string{"feature_splitting"},
			Thresholds:  []float64{0.00002},
		},
		{
			ID:          StageSemanticDistance,
			DisplayName: "Semantic Distance",
			Kind:        KindRange,
			Metrics:     []string{"semdist_mean"},
			Thresholds:  []float64{0.15},
		},
		{
			ID:          StageScoreAgreement,
			DisplayName: "Score Agreement",
			Kind:        KindPattern,
			Metrics:     []string{"score_fuzz", "score_simulation", "score_detection"},
			Thresholds:  []float64{0.5, 0.5, 0.2},
		},
	} {
		if err := c.Register(st); err != nil {
			// The defaults above are statically valid.
			panic(err)
		}
	}
	return c
}
