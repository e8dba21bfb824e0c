package tree

import "fmt"

// Route evaluates a split rule against one member's metric values and
// returns the branch index the member falls into. Every rule kind is total
// over its inputs once the required metrics are present, so classification
// never drops a member.
//
// Range rules require their metric and return ErrMissingMetric without it.
// Pattern rules require every metric. Expression rules treat missing
// metrics as zero, matching [EvalCondition].
func Route(r SplitRule, values map[string]float64) (int, error) {
	switch rule := r.(type) {
	case *RangeRule:
		v, ok := values[rule.Metric]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingMetric, rule.Metric)
		}
		// Branch i covers [thresholds[i-1], thresholds[i]); values at or
		// above the last threshold clamp into the final branch.
		bin := 0
		for _, th := range rule.Thresholds {
			if v >= th {
				bin++
			}
		}
		return bin, nil
	case *PatternRule:
		states := make([]bool, len(rule.MetricNames))
		for i, m := range rule.MetricNames {
			v, ok := values[m]
			if !ok {
				return 0, fmt.Errorf("%w: %s", ErrMissingMetric, m)
			}
			states[i] = v >= rule.Thresholds[i]
		}
		for i, b := range rule.Branches {
			if statesEqual(b.States, states) {
				return i, nil
			}
		}
		// Branches enumerate every high/low combination; unreachable for
		// rules built by NewPatternRule.
		return 0, fmt.Errorf("%w: no branch for pattern state", ErrMalformedTree)
	case *ExpressionRule:
		for i, b := range rule.Branches {
			match, err := EvalCondition(b.Condition, values)
			if err != nil {
				return 0, err
			}
			if match {
				return i, nil
			}
		}
		return len(rule.Branches), nil
	default:
		return 0, fmt.Errorf("%w: unhandled rule kind %s", ErrMalformedTree, r.Kind())
	}
}

func statesEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
