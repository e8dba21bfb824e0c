package errors

import (
	"errors"
	"testing"

	"github.com/strataviz/strataflow/pkg/dataset"
	"github.com/strataviz/strataflow/pkg/layout"
	"github.com/strataviz/strataflow/pkg/tree"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeMalformedTree, cause, "failed to load tree")

	if err.Code != ErrCodeMalformedTree {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeMalformedTree)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeInvalidInput,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeNodeNotFound,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeMalformedTree, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeMalformedTree,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeNotALeaf, "test"),
			expected: ErrCodeNotALeaf,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "node not found", err: tree.ErrNodeNotFound, expected: ErrCodeNodeNotFound},
		{name: "not a leaf", err: tree.ErrNotALeaf, expected: ErrCodeNotALeaf},
		{name: "unknown stage type", err: tree.ErrUnknownStageType, expected: ErrCodeUnknownStageType},
		{name: "missing metric", err: tree.ErrMissingMetric, expected: ErrCodeMissingMetric},
		{name: "invalid thresholds", err: tree.ErrInvalidThresholds, expected: ErrCodeInvalidThresholds},
		{name: "invalid expression", err: tree.ErrInvalidExpression, expected: ErrCodeInvalidExpression},
		{name: "malformed tree", err: tree.ErrMalformedTree, expected: ErrCodeMalformedTree},
		{name: "layout input", err: layout.ErrInvalidInput, expected: ErrCodeInvalidLayoutInput},
		{name: "no data", err: dataset.ErrNoData, expected: ErrCodeInvalidInput},
		{name: "unknown dataset metric", err: dataset.ErrUnknownMetric, expected: ErrCodeInvalidInput},
		{name: "record not found", err: dataset.ErrRecordNotFound, expected: ErrCodeNotFound},
		{name: "already coded", err: New(ErrCodeSessionNotFound, "gone"), expected: ErrCodeSessionNotFound},
		{name: "unknown", err: errors.New("surprise"), expected: ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.expected {
				t.Errorf("CodeOf() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFromEngine(t *testing.T) {
	if got := FromEngine(nil); got != nil {
		t.Errorf("FromEngine(nil) = %v, want nil", got)
	}

	structured := New(ErrCodeNotALeaf, "already split")
	if got := FromEngine(structured); got != structured {
		t.Errorf("FromEngine should pass structured errors through unchanged")
	}

	wrapped := FromEngine(tree.ErrNodeNotFound)
	if GetCode(wrapped) != ErrCodeNodeNotFound {
		t.Errorf("GetCode = %v, want %v", GetCode(wrapped), ErrCodeNodeNotFound)
	}
	if !errors.Is(wrapped, tree.ErrNodeNotFound) {
		t.Error("FromEngine should preserve the sentinel in the chain")
	}
}
