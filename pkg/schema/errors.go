package schema

import (
	"errors"
	"fmt"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Key    string `json:"path"`   // JSON pointer of the failing location, "/" for the root
	Reason string `json:"reason"` // Human-readable reason for failure
	Value  any    `json:"-"`      // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("field %q: %s (got %T)", e.Key, e.Reason, e.Value)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}

// Details flattens err into plain records suitable for an error payload.
func Details(err error) []ValidationError {
	var out []ValidationError
	for _, e := range ValidationErrors(err) {
		var ve *ValidationError
		if errors.As(e, &ve) {
			out = append(out, *ve)
			continue
		}
		out = append(out, ValidationError{Key: "/", Reason: e.Error()})
	}
	return out
}
