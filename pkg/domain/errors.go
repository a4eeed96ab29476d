package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an Error.
type ErrorCode string

// Registration codes.
const (
	CodeMissingType            ErrorCode = "MISSING_TYPE"
	CodeMissingVersion         ErrorCode = "MISSING_VERSION"
	CodeMissingCategory        ErrorCode = "MISSING_CATEGORY"
	CodeMissingLabel           ErrorCode = "MISSING_LABEL"
	CodeMissingInputsSchema    ErrorCode = "MISSING_INPUTS_SCHEMA"
	CodeMissingOutputsSchema   ErrorCode = "MISSING_OUTPUTS_SCHEMA"
	CodeSchemaCompile          ErrorCode = "SCHEMA_COMPILE_ERROR"
	CodeMissingExecuteFunction ErrorCode = "MISSING_EXECUTE_FUNCTION"
	CodeNodeNotFound           ErrorCode = "NODE_NOT_FOUND"
)

// Execution codes.
const (
	CodeValidatorNotFound      ErrorCode = "VALIDATOR_NOT_FOUND"
	CodeInputValidationFailed  ErrorCode = "INPUT_VALIDATION_FAILED"
	CodeConfigValidationFailed ErrorCode = "CONFIG_VALIDATION_FAILED"
	CodeOutputValidationFailed ErrorCode = "OUTPUT_VALIDATION_FAILED"
	CodeExecutionError         ErrorCode = "EXECUTION_ERROR"
	CodeNodeTimeout            ErrorCode = "NODE_TIMEOUT"
	CodeGraphValidationFailed  ErrorCode = "GRAPH_VALIDATION_FAILED"
	CodeExecutionAborted       ErrorCode = "EXECUTION_ABORTED"
	CodeExecutionCancelled     ErrorCode = "EXECUTION_CANCELLED"
	CodeExecutionPlanFailed    ErrorCode = "EXECUTION_PLAN_FAILED"
	CodeEngineBusy             ErrorCode = "ENGINE_BUSY"
	CodeRunLockFailed          ErrorCode = "RUN_LOCK_FAILED"
)

var (
	// ErrEngineBusy is returned when a run is requested while another is in progress.
	ErrEngineBusy = errors.New("engine is already executing a graph")

	// ErrGraphInvalid wraps the aggregated validation failure of a graph.
	ErrGraphInvalid = errors.New("graph is invalid")

	// ErrNodeNotFound is returned when a node type or node id is unknown.
	ErrNodeNotFound = errors.New("node not found")

	// ErrGraphNotFound is returned by graph loaders for unknown refs.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrOutputNotFound is returned by output stores for missing entries.
	ErrOutputNotFound = errors.New("output not found")

	// ErrBlockNotFound is returned by data block storage for missing blocks.
	ErrBlockNotFound = errors.New("data block not found")
)

// Error is the structured error used across registration, validation and execution.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches diagnostic details and returns e.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Wrap records the underlying cause and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: X}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// AsError converts any error into an *Error, using fallback as the code when
// err is not already structured.
func AsError(err error, fallback ErrorCode) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Code: fallback, Message: err.Error(), Err: err}
}
