// Package errors defines the coded error types of the quote server.
// All errors are concrete types that can be type-asserted, so callers can tell a
// malformed index (recoverable by falling back to the legacy loader) from a
// missing quote file (fatal at startup).
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes.
const (
	CodeFormat     = "ErrFormat"
	CodeIO         = "ErrIO"
	CodeEmptyStore = "ErrEmptyStore"
	CodeBind       = "ErrBind"
	CodeConfig     = "ErrConfig"
)

// Error is the base interface for all qotd errors.
type Error interface {
	error
	// Code returns the error code string (e.g., "ErrFormat", "ErrIO").
	Code() string
	// Unwrap returns the underlying error, supporting error wrapping chain.
	Unwrap() error
}

type baseError struct {
	code    string
	message string
	cause   error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *baseError) Code() string {
	return e.code
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// NewError creates a new error with the given code and message.
func NewError(code, message string) Error {
	return &baseError{
		code:    code,
		message: message,
	}
}

// NewErrorWithCause creates a new error with an underlying cause.
func NewErrorWithCause(code, message string, cause error) Error {
	return &baseError{
		code:    code,
		message: message,
		cause:   cause,
	}
}

// ErrEmptyStore is returned when loading produced zero quotes; the server refuses to start.
var ErrEmptyStore = NewError(CodeEmptyStore, "no quotes loaded")

// NewFormatError reports a malformed, truncated or unreadable index file.
func NewFormatError(message string, cause error) Error {
	return NewErrorWithCause(CodeFormat, message, cause)
}

// NewIOError reports a quote text file that cannot be opened, seeked or read.
func NewIOError(message string, cause error) Error {
	return NewErrorWithCause(CodeIO, message, cause)
}

// NewBindError reports a listener that could not be bound.
func NewBindError(message string, cause error) Error {
	return NewErrorWithCause(CodeBind, message, cause)
}

// NewConfigError creates a configuration error with the given message.
func NewConfigError(message string, cause error) Error {
	return NewErrorWithCause(CodeConfig, message, cause)
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code string) bool {
	for err != nil {
		var e Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Code() == code {
			return true
		}
		err = e.Unwrap()
	}
	return false
}

// IsFormat checks if the error is an ErrFormat.
func IsFormat(err error) bool {
	return HasCode(err, CodeFormat)
}

// IsIO checks if the error is an ErrIO.
func IsIO(err error) bool {
	return HasCode(err, CodeIO)
}

// IsEmptyStore checks if the error is an ErrEmptyStore.
func IsEmptyStore(err error) bool {
	return HasCode(err, CodeEmptyStore)
}

// IsBind checks if the error is an ErrBind.
func IsBind(err error) bool {
	return HasCode(err, CodeBind)
}
