// Package errors provides structured error types for wheelsmith.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the parser, the installer and the CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes fall into two taxonomies:
//   - Parse-time: IO, REQUIREMENTS_SYNTAX, REQUIREMENT_SPECIFIER, REQUIREMENTS_INCLUDE
//   - Install-time: ARCHIVE, INVALID_WHEEL, RECORD_MISMATCH, INCOMPATIBLE_WHEEL,
//     INVALID_FILENAME, BROKEN_ENVIRONMENT, LOCKED, PLATFORM_DETECTION, SERIALIZATION
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidFilename, "no .whl suffix: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidFilename) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeArchive, origErr, "failed to read %s", path)
package errors

import "fmt"

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidPath    Code = "INVALID_PATH"

	// Filesystem errors
	ErrCodeIO Code = "IO"

	// Requirements file errors
	ErrCodeRequirementsSyntax  Code = "REQUIREMENTS_SYNTAX"
	ErrCodeRequirementSpec     Code = "REQUIREMENT_SPECIFIER"
	ErrCodeRequirementsInclude Code = "REQUIREMENTS_INCLUDE"

	// Wheel errors
	ErrCodeArchive         Code = "ARCHIVE"
	ErrCodeInvalidWheel    Code = "INVALID_WHEEL"
	ErrCodeRecordMismatch  Code = "RECORD_MISMATCH"
	ErrCodeIncompatible    Code = "INCOMPATIBLE_WHEEL"
	ErrCodeInvalidFilename Code = "INVALID_FILENAME"
	ErrCodeSerialization   Code = "SERIALIZATION"
	ErrCodePlatformDetect  Code = "PLATFORM_DETECTION"
	ErrCodeBrokenEnv       Code = "BROKEN_ENVIRONMENT"
	ErrCodeLocked          Code = "LOCKED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Coder is implemented by typed errors that carry their own code
// outside of *Error, such as positioned parser errors.
type Coder interface {
	Code() Code
}

// codeOf returns the code of a single link of an error chain.
func codeOf(err error) (Code, bool) {
	switch e := err.(type) {
	case *Error:
		return e.Code, true
	case Coder:
		return e.Code(), true
	}
	return "", false
}

// Is reports whether any link of err's chain has the given error code.
// Joined errors are searched branch by branch.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	if c, ok := codeOf(err); ok && c == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return Is(u.Unwrap(), code)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if Is(e, code) {
				return true
			}
		}
	}
	return false
}

// GetCode extracts the outermost error code from an error chain, taking
// the branches of joined errors in order.
// Returns empty string if no link carries a code.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	if c, ok := codeOf(err); ok {
		return c
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return GetCode(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if c := GetCode(e); c != "" {
				return c
			}
		}
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	if e, ok := err.(*Error); ok {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Message, UserMessage(e.Cause))
		}
		return e.Message
	}
	return err.Error()
}
