// Package rigerr defines the error codes shared by the rig orchestration packages.
package rigerr

import (
	"errors"
	"fmt"
)

// Error is a coded rig error. Two errors match under errors.Is when their codes are equal,
// so a wrapped instance created with New still matches the package sentinels.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	CodeUnknownMode             = "UNKNOWN_MODE"
	CodeUnknownState            = "UNKNOWN_STATE"
	CodeSizeMismatch            = "SIZE_MISMATCH"
	CodeOverflow                = "OVERFLOW"
	CodeMissingTransitionLength = "MISSING_TRANSITION_LENGTH"
	CodeCorruptTimeline         = "CORRUPT_TIMELINE"
	CodeNoModesRegistered       = "NO_MODES_REGISTERED"
)

// Sentinels for errors.Is checks.
var (
	ErrUnknownMode             = &Error{Code: CodeUnknownMode, Message: "mode is not registered"}
	ErrUnknownState            = &Error{Code: CodeUnknownState, Message: "state is not registered"}
	ErrSizeMismatch            = &Error{Code: CodeSizeMismatch, Message: "buffer length does not match"}
	ErrOverflow                = &Error{Code: CodeOverflow, Message: "fragment overflowed buffer"}
	ErrMissingTransitionLength = &Error{Code: CodeMissingTransitionLength, Message: "transition state has no length"}
	ErrCorruptTimeline         = &Error{Code: CodeCorruptTimeline, Message: "timeline cannot resolve frame"}
	ErrNoModesRegistered       = &Error{Code: CodeNoModesRegistered, Message: "no modes registered"}
)

// New creates a coded error.
func New(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// SizeMismatch builds a SIZE_MISMATCH error for the named target.
func SizeMismatch(target string, want, got int) *Error {
	return New(CodeSizeMismatch, fmt.Sprintf("%s expects %d bytes, got %d", target, want, got), nil)
}
