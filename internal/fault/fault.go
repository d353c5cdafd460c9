package fault

import (
	"errors"
	"fmt"
)

// Code classifies a coordinator failure. Every code maps to exactly one
// client-visible error event; nothing else escapes the gateway.
type Code string

const (
	Unauthorized    Code = "unauthorized"
	Forbidden       Code = "forbidden"
	NotFound        Code = "not_found"
	InvalidArgument Code = "invalid_argument"
	OperationFailed Code = "operation_failed"
)

// Error is a classified coordinator failure. It wraps the underlying cause
// (if any) so callers can log the chain while the client only sees Message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without exposing it to the client.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

// CodeOf extracts the fault code from an error chain, defaulting to
// OperationFailed for unclassified errors.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return OperationFailed
}
