// Package errors provides standardized error types for the sage server.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the query pipeline.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeGuardRejected      = "GUARD_REJECTED"
	CodeValidationAdvisory = "VALIDATION_ADVISORY"
	CodeQueryFailed        = "QUERY_FAILED"
	CodeAssemblyFailed     = "ASSEMBLY_FAILED"
	CodeConnectionFailed   = "CONNECTION_FAILED"
	CodeSchemaFailed       = "SCHEMA_FAILED"
	CodeModelFailed        = "MODEL_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeUnavailable        = "UNAVAILABLE"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
)

// SageError represents a pipeline error with code, message, and optional details.
type SageError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *SageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *SageError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by code.
func (e *SageError) Is(target error) bool {
	t, ok := target.(*SageError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *SageError) WithDetail(key string, value interface{}) *SageError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrGuardRejected    = &SageError{Code: CodeGuardRejected, Message: "query blocked by guardrails (only read-only statements allowed)"}
	ErrQueryFailed      = &SageError{Code: CodeQueryFailed, Message: "query execution failed"}
	ErrConnectionFailed = &SageError{Code: CodeConnectionFailed, Message: "database connection failed"}
	ErrEmptyQuestion    = &SageError{Code: CodeInvalidRequest, Message: "question must not be empty"}
	ErrModelFailed      = &SageError{Code: CodeModelFailed, Message: "model invocation failed"}
)

// New creates a new SageError with the given code and message.
func New(code, message string) *SageError {
	return &SageError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with a SageError.
func Wrap(err error, code, message string) *SageError {
	if err == nil {
		return nil
	}
	return &SageError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *SageError {
	if err == nil {
		return nil
	}
	return &SageError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsGuardRejected checks if an error is a guard rejection.
func IsGuardRejected(err error) bool {
	var sageErr *SageError
	if errors.As(err, &sageErr) {
		return sageErr.Code == CodeGuardRejected
	}
	return false
}

// IsQueryFailed checks if an error is a query execution failure.
func IsQueryFailed(err error) bool {
	var sageErr *SageError
	if errors.As(err, &sageErr) {
		return sageErr.Code == CodeQueryFailed
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var sageErr *SageError
	if errors.As(err, &sageErr) {
		return sageErr.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var sageErr *SageError
	if errors.As(err, &sageErr) {
		return sageErr.Message
	}
	return err.Error()
}
