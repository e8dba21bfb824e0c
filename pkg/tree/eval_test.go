package tree

import (
	"errors"
	"testing"
)

func TestRouteRange(t *testing.T) {
	rule, err := NewRangeRule("semdist_mean", []float64{0.1, 0.2})
	if err != nil {
		t.Fatalf("NewRangeRule() error = %v", err)
	}
	tests := []struct {
		name  string
		value float64
		want  int
	}{
		{name: "below first", value: 0.05, want: 0},
		{name: "at first threshold", value: 0.1, want: 1},
		{name: "between", value: 0.15, want: 1},
		{name: "at last threshold", value: 0.2, want: 2},
		{name: "far above clamps", value: 99, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Route(rule, map[string]float64{"semdist_mean": tt.value})
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Route() = %d, want %d", got, tt.want)
			}
		})
	}

	if _, err := Route(rule, map[string]float64{}); !errors.Is(err, ErrMissingMetric) {
		t.Errorf("missing metric error = %v, want %v", err, ErrMissingMetric)
	}
}

func TestRoutePattern(t *testing.T) {
	rule, err := NewPatternRule([]string{"score_fuzz", "score_simulation", "score_detection"}, []float64{0.5, 0.5, 0.2})
	if err != nil {
		t.Fatalf("NewPatternRule() error = %v", err)
	}
	tests := []struct {
		name       string
		values     map[string]float64
		wantSuffix string
	}{
		{
			name:       "all high",
			values:     map[string]float64{"score_fuzz": 0.9, "score_simulation": 0.8, "score_detection": 0.5},
			wantSuffix: "all-3-high",
		},
		{
			name:       "all low",
			values:     map[string]float64{"score_fuzz": 0.1, "score_simulation": 0.2, "score_detection": 0.1},
			wantSuffix: "all-3-low",
		},
		{
			name:       "fuzz only",
			values:     map[string]float64{"score_fuzz": 0.7, "score_simulation": 0.2, "score_detection": 0.1},
			wantSuffix: "1-of-3-high-fuzz",
		},
		{
			name:       "at threshold counts as high",
			values:     map[string]float64{"score_fuzz": 0.5, "score_simulation": 0.5, "score_detection": 0.2},
			wantSuffix: "all-3-high",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Route(rule, tt.values)
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			if suffix := rule.BranchSuffix(got); suffix != tt.wantSuffix {
				t.Errorf("Route() chose branch %d (%q), want %q", got, suffix, tt.wantSuffix)
			}
		})
	}

	if _, err := Route(rule, map[string]float64{"score_fuzz": 1}); !errors.Is(err, ErrMissingMetric) {
		t.Errorf("missing metric error = %v, want %v", err, ErrMissingMetric)
	}
}

func TestRouteExpression(t *testing.T) {
	rule, err := NewExpressionRule([]ExpressionBranch{
		{Condition: "semdist_mean > 0.3", Suffix: "drifted"},
		{Condition: "score_fuzz >= 0.9 && score_simulation >= 0.9", Suffix: "confident"},
	}, "other")
	if err != nil {
		t.Fatalf("NewExpressionRule() error = %v", err)
	}

	tests := []struct {
		name   string
		values map[string]float64
		want   int
	}{
		{name: "first branch wins", values: map[string]float64{"semdist_mean": 0.5, "score_fuzz": 1, "score_simulation": 1}, want: 0},
		{name: "second branch", values: map[string]float64{"semdist_mean": 0.1, "score_fuzz": 0.95, "score_simulation": 0.92}, want: 1},
		{name: "default", values: map[string]float64{"semdist_mean": 0.1}, want: 2},
		{name: "empty values use zeros", values: nil, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Route(rule, tt.values)
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Route() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddExpressionStage(t *testing.T) {
	catalog := DefaultCatalog()
	if err := catalog.Register(StageType{ID: "drift", DisplayName: "Drift", Kind: KindExpression}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tr := New(catalog)

	rule, err := NewExpressionRule([]ExpressionBranch{
		{Condition: "semdist_mean > 0.3", Suffix: "drifted", Description: "Drifted"},
	}, "stable")
	if err != nil {
		t.Fatalf("NewExpressionRule() error = %v", err)
	}
	if err := tr.AddExpressionStage(RootID, "drift", rule); err != nil {
		t.Fatalf("AddExpressionStage() error = %v", err)
	}
	if got := len(tr.Root().ChildIDs); got != 2 {
		t.Fatalf("len(ChildIDs) = %d, want 2", got)
	}
	if tr.Root().ChildIDs[0] != "root_drifted" || tr.Root().ChildIDs[1] != "root_stable" {
		t.Errorf("ChildIDs = %v", tr.Root().ChildIDs)
	}
	if got := tr.Metrics(); len(got) != 1 || got[0] != "semdist_mean" {
		t.Errorf("Metrics() = %v, want [semdist_mean]", got)
	}

	if err := tr.AddExpressionStage("root_drifted", StageFeatureSplitting, rule); !errors.Is(err, ErrUnknownStageType) {
		t.Errorf("non-expression stage type error = %v, want %v", err, ErrUnknownStageType)
	}
	if err := tr.AddExpressionStage("root_drifted", "drift", nil); !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("nil rule error = %v, want %v", err, ErrInvalidExpression)
	}
}
