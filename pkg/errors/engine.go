package errors

import (
	"errors"

	"github.com/strataviz/strataflow/pkg/dataset"
	"github.com/strataviz/strataflow/pkg/layout"
	"github.com/strataviz/strataflow/pkg/tree"
)

// CodeOf maps an engine error to its structured code so CLI and API
// boundaries can translate sentinel errors into machine-readable payloads.
// Errors that already carry a code keep it; anything unrecognized maps to
// ErrCodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if code := GetCode(err); code != "" {
		return code
	}

	switch {
	case errors.Is(err, tree.ErrNodeNotFound):
		return ErrCodeNodeNotFound
	case errors.Is(err, tree.ErrNotALeaf):
		return ErrCodeNotALeaf
	case errors.Is(err, tree.ErrUnknownStageType):
		return ErrCodeUnknownStageType
	case errors.Is(err, tree.ErrMissingMetric):
		return ErrCodeMissingMetric
	case errors.Is(err, tree.ErrInvalidThresholds):
		return ErrCodeInvalidThresholds
	case errors.Is(err, tree.ErrInvalidExpression):
		return ErrCodeInvalidExpression
	case errors.Is(err, tree.ErrMalformedTree):
		return ErrCodeMalformedTree
	case errors.Is(err, layout.ErrInvalidInput):
		return ErrCodeInvalidLayoutInput
	case errors.Is(err, dataset.ErrNoData), errors.Is(err, dataset.ErrUnknownMetric):
		return ErrCodeInvalidInput
	case errors.Is(err, dataset.ErrRecordNotFound):
		return ErrCodeNotFound
	}
	return ErrCodeInternal
}

// FromEngine wraps an engine error into a structured Error carrying the
// mapped code. Errors that are already structured are returned unchanged.
func FromEngine(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(CodeOf(err), err, "engine operation failed")
}
