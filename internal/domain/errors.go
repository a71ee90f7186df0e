package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"        // Malformed or missing input
	EUNAUTHORIZED = "unauthorized"   // Bad anti-forgery token or no authenticated user
	EFORBIDDEN    = "forbidden"      // Authenticated but not allowed
	ENOTFOUND     = "not_found"      // Resource not found
	EPAYMENT      = "payment"        // No membership, or membership without a download pack
	EQUOTA        = "quota_exceeded" // Download pack exhausted for the current period
	EINTERNAL     = "internal"       // Internal server error
)

// Business rule messages shown to the member as-is.
const (
	MsgNoMembership      = "You do not have a membership."
	MsgInvalidMembership = "You must have a valid membership."
	MsgLimitReached      = "You have reached the limit defined by your membership."
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "fulfillment.process")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
// Internal errors are replaced with a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsBusinessRule reports whether err is a membership or quota failure that
// should be shown to the member rather than silently dropped.
func IsBusinessRule(err error) bool {
	switch ErrorCode(err) {
	case EPAYMENT, EQUOTA:
		return true
	}
	return false
}

// NotFound creates a not found error.
func NotFound(op, resource string, id int64) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %d not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NoMembership is returned when the member has no active subscription.
func NoMembership(op string) *Error {
	return &Error{Code: EPAYMENT, Op: op, Message: MsgNoMembership}
}

// InvalidMembership is returned when the member's level carries no download pack.
func InvalidMembership(op string) *Error {
	return &Error{Code: EPAYMENT, Op: op, Message: MsgInvalidMembership}
}

// QuotaExceeded is returned when the member has used every download in the pack.
func QuotaExceeded(op string, used, limit int64) *Error {
	return &Error{
		Code:    EQUOTA,
		Op:      op,
		Message: MsgLimitReached,
		Err:     fmt.Errorf("%d of %d downloads used", used, limit),
	}
}
