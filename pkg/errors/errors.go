// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling for the arena core.
// The three codes that cross the dispatcher boundary are Configuration,
// Invocation and Validation; the rest cover ambient subsystems.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode classifies arena errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeConfiguration indicates no backend is mapped for the requested
	// provider in the active invocation mode. Raised before any external call.
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// CodeInvocation indicates the external process or service call failed.
	CodeInvocation ErrorCode = "INVOCATION_ERROR"

	// CodeValidation indicates the backend response was absent, unparseable,
	// or did not match the decision contract.
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeMemory indicates a memory store error.
	CodeMemory ErrorCode = "MEMORY_ERROR"

	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ArenaError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ArenaError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ArenaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ArenaError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ArenaError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Err     string                 `json:"error,omitempty"`
		Context map[string]interface{} `json:"context,omitempty"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
		Err:     errString(e.Err),
		Context: e.Context,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// New creates a new ArenaError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *ArenaError {
	return &ArenaError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// Configuration creates a CONFIGURATION_ERROR.
func Configuration(msg string) *ArenaError {
	return New(CodeConfiguration, msg, nil)
}

// Invocation creates an INVOCATION_ERROR wrapping the call failure.
func Invocation(msg string, cause error) *ArenaError {
	return New(CodeInvocation, msg, cause)
}

// Validation creates a VALIDATION_ERROR wrapping the parse failure.
func Validation(msg string, cause error) *ArenaError {
	return New(CodeValidation, msg, cause)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ArenaError) WithContext(key string, value interface{}) *ArenaError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsCode reports whether err is (or wraps) an ArenaError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *ArenaError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == code
}

// AsArenaError attempts to convert an error to an ArenaError.
// Returns the error as ArenaError if it is one, or wraps it otherwise.
func AsArenaError(err error) *ArenaError {
	if err == nil {
		return nil
	}
	var ae *ArenaError
	if errors.As(err, &ae) {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}
