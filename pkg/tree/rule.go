package tree

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidThresholds is returned by [NewRangeRule] when the threshold
	// list is empty or not strictly ascending, and by [NewPatternRule] when
	// the threshold count does not match the metric count.
	ErrInvalidThresholds = errors.New("thresholds must be strictly ascending")

	// ErrMissingMetric is returned when a rule is constructed without a
	// resolvable metric name.
	ErrMissingMetric = errors.New("missing metric")

	// ErrInvalidExpression is returned by [NewExpressionRule] for an empty
	// branch list, and by rule evaluation when a condition string cannot be
	// parsed. Malformed conditions never silently fall through to the
	// default branch.
	ErrInvalidExpression = errors.New("invalid expression")
)

// RuleKind identifies one of the closed set of split-rule variants.
// Every consumer of rules (evaluation, id generation, metric extraction)
// switches exhaustively over this type; [SplitRule] is a sealed interface so
// a new kind cannot appear without updating those switches.
type RuleKind int

const (
	// KindRange partitions by ordered numeric thresholds on one metric.
	KindRange RuleKind = iota
	// KindPattern partitions by a per-metric high/low state vector across
	// multiple metrics.
	KindPattern
	// KindExpression partitions by free-form boolean conditions evaluated
	// in order, first match wins.
	KindExpression
)

// String returns the serialized tag for the rule kind.
func (k RuleKind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindPattern:
		return "pattern"
	case KindExpression:
		return "expression"
	}
	return fmt.Sprintf("RuleKind(%d)", int(k))
}

// SplitRule is the closed union of rule variants that partition a node's
// members into child categories. Implementations are [RangeRule],
// [PatternRule] and [ExpressionRule]; the unexported method prevents
// implementations outside this package.
type SplitRule interface {
	// Kind reports which variant this rule is.
	Kind() RuleKind
	// Metrics returns the metric names the rule reads, in rule order.
	Metrics() []string
	// BranchCount returns the number of children the rule partitions into.
	BranchCount() int
	// BranchSuffix returns the deterministic id suffix for branch i.
	// Suffixes are pure functions of the rule's inputs: the same rule
	// always yields the same suffixes, because child ids derived from them
	// serve as stable keys across mutations and cross-tree matching.
	BranchSuffix(i int) string

	sealedRule()
}

// RangeRule partitions members of a node by where a single metric's value
// falls relative to a strictly ascending threshold list. N thresholds define
// N+1 contiguous intervals: branch 0 is value < t0, branch i is
// t(i-1) <= value < t(i), and branch N is value >= t(N-1).
type RangeRule struct {
	Metric     string
	Thresholds []float64
}

// NewRangeRule builds a range rule over one metric.
// Returns ErrMissingMetric for an empty metric name and ErrInvalidThresholds
// when thresholds are empty or not strictly ascending; both are caller
// errors, not recoverable states.
func NewRangeRule(metric string, thresholds []float64) (*RangeRule, error) {
	if metric == "" {
		return nil, ErrMissingMetric
	}
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("%w: need at least one threshold", ErrInvalidThresholds)
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return nil, fmt.Errorf("%w: %v", ErrInvalidThresholds, thresholds)
		}
	}
	rule := &RangeRule{Metric: metric, Thresholds: append([]float64(nil), thresholds...)}
	return rule, nil
}

// Kind reports KindRange.
func (r *RangeRule) Kind() RuleKind { return KindRange }

// Metrics returns the single metric the rule reads.
func (r *RangeRule) Metrics() []string { return []string{r.Metric} }

// BranchCount returns len(thresholds)+1.
func (r *RangeRule) BranchCount() int { return len(r.Thresholds) + 1 }

// BranchSuffix returns "<metric>_low"/"<metric>_high" for the binary case
// and "<metric>_binK" for wider splits. Branch 0 is always the lowest
// interval, so downstream ordering can rely on lower-valued-first.
func (r *RangeRule) BranchSuffix(i int) string {
	if len(r.Thresholds) == 1 {
		if i == 0 {
			return r.Metric + "_low"
		}
		return r.Metric + "_high"
	}
	return fmt.Sprintf("%s_bin%d", r.Metric, i)
}

func (r *RangeRule) sealedRule() {}

// PatternBranch is one enumerated high/low assignment of a pattern rule.
// States[i] reports whether metric i must be at or above its threshold for
// a member to take this branch.
type PatternBranch struct {
	States      []bool // parallel to PatternRule.Metrics, true = high
	Suffix      string // deterministic child-id suffix
	Description string // human-readable, e.g. "2 of 3 high (fuzz, sim)"
}

// HighCount returns how many metrics this branch requires to be high.
func (b PatternBranch) HighCount() int {
	n := 0
	for _, high := range b.States {
		if high {
			n++
		}
	}
	return n
}

// PatternRule partitions members by which of 2^N high/low combinations their
// metric values realize against per-metric thresholds. Branches are ordered
// by descending high-metric count, full agreement first and full
// disagreement last; consumers (layout ordering, flow triviality) rely on
// that guarantee matching the generated child ids.
type PatternRule struct {
	MetricNames []string
	Thresholds  []float64 // parallel to MetricNames
	Branches    []PatternBranch
}

// NewPatternRule builds a pattern rule enumerating every high/low
// combination of the given metrics. Thresholds must be parallel to metrics;
// a mismatched count returns ErrInvalidThresholds. Branch order and child-id
// suffixes are pure functions of the inputs.
func NewPatternRule(metrics []string, thresholds []float64) (*PatternRule, error) {
	if len(metrics) == 0 {
		return nil, ErrMissingMetric
	}
	if len(thresholds) != len(metrics) {
		return nil, fmt.Errorf("%w: %d thresholds for %d metrics", ErrInvalidThresholds, len(thresholds), len(metrics))
	}

	n := len(metrics)
	branches := make([]PatternBranch, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		states := make([]bool, n)
		for i := 0; i < n; i++ {
			// Metric 0 is the most significant bit of the enumeration mask.
			states[i] = mask&(1<<(n-1-i)) != 0
		}
		branches = append(branches, PatternBranch{
			States:      states,
			Suffix:      patternSuffix(metrics, states),
			Description: patternDescription(metrics, states),
		})
	}

	// Descending by high count, ties broken by ascending enumeration mask.
	// The sort is stable over a deterministic base order, so identical
	// inputs always yield identical branch lists.
	sort.SliceStable(branches, func(i, j int) bool {
		return branches[i].HighCount() > branches[j].HighCount()
	})

	return &PatternRule{
		MetricNames: append([]string(nil), metrics...),
		Thresholds:  append([]float64(nil), thresholds...),
		Branches:    branches,
	}, nil
}

// Kind reports KindPattern.
func (r *PatternRule) Kind() RuleKind { return KindPattern }

// Metrics returns the rule's metrics in declaration order.
func (r *PatternRule) Metrics() []string { return r.MetricNames }

// BranchCount returns 2^N for N metrics.
func (r *PatternRule) BranchCount() int { return len(r.Branches) }

// BranchSuffix returns the precomputed suffix for branch i.
func (r *PatternRule) BranchSuffix(i int) string { return r.Branches[i].Suffix }

func (r *PatternRule) sealedRule() {}

// patternSuffix generates the child-id suffix for one high/low combination:
// "all-N-high", "all-N-low", or "K-of-N-high-<abbrev-list>" naming the high
// metrics.
func patternSuffix(metrics []string, states []bool) string {
	n := len(metrics)
	high := make([]string, 0, n)
	for i, s := range states {
		if s {
			high = append(high, metricAbbrev(metrics[i]))
		}
	}
	switch len(high) {
	case n:
		return fmt.Sprintf("all-%d-high", n)
	case 0:
		return fmt.Sprintf("all-%d-low", n)
	default:
		return fmt.Sprintf("%d-of-%d-high-%s", len(high), n, strings.Join(high, "-"))
	}
}

// patternDescription builds the human-readable branch label, e.g.
// "2 of 3 high (fuzz, detection)".
func patternDescription(metrics []string, states []bool) string {
	n := len(metrics)
	high := make([]string, 0, n)
	for i, s := range states {
		if s {
			high = append(high, metricAbbrev(metrics[i]))
		}
	}
	switch len(high) {
	case n:
		return fmt.Sprintf("All %d high", n)
	case 0:
		return fmt.Sprintf("All %d low", n)
	default:
		return fmt.Sprintf("%d of %d high (%s)", len(high), n, strings.Join(high, ", "))
	}
}

// metricAbbrev derives a short stable token from a metric name by taking
// the segment after the last underscore. "score_fuzz" becomes "fuzz",
// "semdist_mean" becomes "mean". Uniqueness across a rule's metrics is the
// caller's concern; the full name is used when the segment is empty.
func metricAbbrev(metric string) string {
	if i := strings.LastIndexByte(metric, '_'); i >= 0 && i+1 < len(metric) {
		return metric[i+1:]
	}
	return metric
}

// ExpressionBranch pairs a boolean condition string with the child suffix
// selected when the condition is the first to evaluate true.
type ExpressionBranch struct {
	Condition   string
	Suffix      string
	Description string
}

// ExpressionRule partitions members by evaluating free-form boolean
// conditions in order; the first true condition selects its branch and the
// default branch catches everything else. Conditions are comparisons of one
// metric against a constant joined by && and || (see [EvalCondition]).
type ExpressionRule struct {
	Branches      []ExpressionBranch
	DefaultSuffix string
}

// NewExpressionRule builds an expression rule from ordered branches and a
// required default suffix. Returns ErrInvalidExpression when no branches are
// given or any branch lacks a condition or suffix. Condition strings are
// validated for parseability up front so authoring mistakes surface at
// construction rather than first evaluation.
func NewExpressionRule(branches []ExpressionBranch, defaultSuffix string) (*ExpressionRule, error) {
	if len(branches) == 0 {
		return nil, fmt.Errorf("%w: no branches", ErrInvalidExpression)
	}
	if defaultSuffix == "" {
		return nil, fmt.Errorf("%w: default branch suffix required", ErrInvalidExpression)
	}
	for _, b := range branches {
		if b.Condition == "" || b.Suffix == "" {
			return nil, fmt.Errorf("%w: branch needs condition and suffix", ErrInvalidExpression)
		}
		if _, err := parseCondition(b.Condition); err != nil {
			return nil, err
		}
	}
	return &ExpressionRule{
		Branches:      append([]ExpressionBranch(nil), branches...),
		DefaultSuffix: defaultSuffix,
	}, nil
}

// Kind reports KindExpression.
func (r *ExpressionRule) Kind() RuleKind { return KindExpression }

// Metrics returns the union of metric names referenced by any branch
// condition, in first-appearance order.
func (r *ExpressionRule) Metrics() []string {
	seen := make(map[string]bool)
	var metrics []string
	for _, b := range r.Branches {
		expr, err := parseCondition(b.Condition)
		if err != nil {
			continue // validated at construction; unreachable for built rules
		}
		for _, m := range expr.metrics() {
			if !seen[m] {
				seen[m] = true
				metrics = append(metrics, m)
			}
		}
	}
	return metrics
}

// BranchCount returns the explicit branches plus the default branch.
func (r *ExpressionRule) BranchCount() int { return len(r.Branches) + 1 }

// BranchSuffix returns the suffix for branch i; the last index is the
// default branch.
func (r *ExpressionRule) BranchSuffix(i int) string {
	if i < len(r.Branches) {
		return r.Branches[i].Suffix
	}
	return r.DefaultSuffix
}

func (r *ExpressionRule) sealedRule() {}
