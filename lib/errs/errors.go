package errs

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

// Code classifies an Error. The numeric values are also used on the wire by
// members reporting a failed request, so they must not be reordered.
type Code int32

const (
	CodeUnknown Code = iota
	CodeSerialization
	CodeTargetDisconnected
	CodePartitionMigrating
	CodeWrongTarget
	CodeTargetNotMember
	CodeTimeout
	CodeIllegalState
	CodeIllegalArgument
	CodeInvalidConfiguration
	CodeAuthentication
	CodeClientNotActive
	CodeQuery
	CodeRemote
)

// String returns the string representation of a Code.
func (c Code) String() string {
	switch c {
	case CodeSerialization:
		return "SerializationError"
	case CodeTargetDisconnected:
		return "TargetDisconnectedError"
	case CodePartitionMigrating:
		return "PartitionMigratingError"
	case CodeWrongTarget:
		return "WrongTargetError"
	case CodeTargetNotMember:
		return "TargetNotMemberError"
	case CodeTimeout:
		return "TimeoutError"
	case CodeIllegalState:
		return "IllegalStateError"
	case CodeIllegalArgument:
		return "IllegalArgumentError"
	case CodeInvalidConfiguration:
		return "InvalidConfigurationError"
	case CodeAuthentication:
		return "AuthenticationError"
	case CodeClientNotActive:
		return "ClientNotActiveError"
	case CodeQuery:
		return "QueryError"
	case CodeRemote:
		return "RemoteError"
	default:
		return "UnknownError"
	}
}

// Retryable reports whether the invocation service may transparently retry a
// request that failed with this code.
func (c Code) Retryable() bool {
	switch c {
	case CodeTargetDisconnected, CodePartitionMigrating, CodeWrongTarget, CodeTargetNotMember:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a Code, a message and an optional cause.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, which makes the sentinels below
// usable with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given code that wraps cause.
func Wrap(code Code, cause error, msg string) *Error {
	return &Error{Code: code, Msg: msg, Cause: cause}
}

// --------------------------------------------------------------------------
// Sentinels
// --------------------------------------------------------------------------

var (
	ErrSerialization        = New(CodeSerialization, "serialization failed")
	ErrTargetDisconnected   = New(CodeTargetDisconnected, "target disconnected")
	ErrPartitionMigrating   = New(CodePartitionMigrating, "partition is migrating")
	ErrWrongTarget          = New(CodeWrongTarget, "wrong target")
	ErrTargetNotMember      = New(CodeTargetNotMember, "target is not a member")
	ErrTimeout              = New(CodeTimeout, "deadline exceeded")
	ErrIllegalState         = New(CodeIllegalState, "illegal state")
	ErrIllegalArgument      = New(CodeIllegalArgument, "illegal argument")
	ErrInvalidConfiguration = New(CodeInvalidConfiguration, "invalid configuration")
	ErrAuthentication       = New(CodeAuthentication, "authentication failed")
	ErrClientNotActive      = New(CodeClientNotActive, "client is not active")
	ErrQuery                = New(CodeQuery, "query failed")
	ErrRemote               = New(CodeRemote, "remote failure")
)

// CodeOf extracts the Code of err. Errors that are not an *Error map to
// CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable reports whether err carries a retryable code.
func IsRetryable(err error) bool {
	return CodeOf(err).Retryable()
}
