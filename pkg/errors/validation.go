package errors

import (
	"regexp"
	"unicode"
)

// ValidateNodeID validates a tree node id supplied by an external caller.
// Ids generated by the engine always pass; this guards API and CLI inputs
// before they reach a tree lookup.
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - No control characters or null bytes
//   - Maximum length of 256 characters
//   - Only letters, digits, '_' and '-'
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "node id cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidInput, "node id too long (max 256 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "node id contains invalid control characters")
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return New(ErrCodeInvalidInput, "node id contains invalid character %q", string(r))
		}
	}

	return nil
}

// metricNameRegex matches valid metric column names.
var metricNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateMetricName validates a metric column name.
func ValidateMetricName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "metric name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "metric name too long (max 128 characters)")
	}

	if !metricNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid metric name: %q", name)
	}

	return nil
}

// sessionIDRegex matches canonical lowercase UUID strings.
var sessionIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateSessionID validates a session identifier. Sessions are issued as
// UUIDs, so anything else is rejected before it reaches the session store.
func ValidateSessionID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "session id cannot be empty")
	}

	if !sessionIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid session id: %q", id)
	}

	return nil
}

// ValidateStageTypeID validates a stage-type catalog key.
func ValidateStageTypeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "stage type cannot be empty")
	}

	if !metricNameRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid stage type: %q", id)
	}

	return nil
}
