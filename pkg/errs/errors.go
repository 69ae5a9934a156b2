package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure that callers can act on.
type Code string

const (
	// Generic
	CodeInternal     Code = "SERVER_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Credential and account state
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeAccountLocked      Code = "ACCOUNT_LOCKED"
	CodeAccountInactive    Code = "ACCOUNT_INACTIVE"

	// Validation
	CodeValidationFailed Code = "VALIDATION_FAILED"

	// Challenges and sessions
	CodeChallengeInvalid Code = "CHALLENGE_EXPIRED_OR_INVALID"
	CodeTooManyAttempts  Code = "TOO_MANY_ATTEMPTS"
	CodeSessionInvalid   Code = "SESSION_EXPIRED_OR_INVALID"
	CodeTwoFARequired    Code = "TWO_FA_REQUIRED"
)

// Error is a structured error carrying a machine-readable code, a
// human-readable message and optional details for the caller.
type Error struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	return MapCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the code from an error.
// Returns CodeInternal if the error is not a structured Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetDetails extracts the details from an error, or nil.
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MapCodeToHTTPStatus maps error codes to HTTP status codes.
func MapCodeToHTTPStatus(code Code) int {
	switch code {
	case CodeValidationFailed:
		return http.StatusBadRequest

	case CodeInvalidCredentials, CodeUnauthorized, CodeSessionInvalid,
		CodeChallengeInvalid, CodeTwoFARequired:
		return http.StatusUnauthorized

	case CodeAccountInactive:
		return http.StatusForbidden

	case CodeNotFound:
		return http.StatusNotFound

	case CodeConflict:
		return http.StatusConflict

	case CodeAccountLocked:
		return http.StatusLocked

	case CodeTooManyAttempts:
		return http.StatusTooManyRequests

	case CodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Common constructors.

// InvalidCredentials returns the generic credential failure. The same
// message is used whether the email or the password was wrong so the
// response never reveals which accounts exist.
func InvalidCredentials() *Error {
	return New(CodeInvalidCredentials, "invalid email or password")
}

// ValidationFailed creates a validation error with per-field messages.
func ValidationFailed(fieldErrors map[string]interface{}) *Error {
	return New(CodeValidationFailed, "validation failed").withDetails(fieldErrors)
}

// Internal creates a generic server error; the cause is kept for
// server-side logging and never shown to the caller.
func Internal(err error) *Error {
	return Wrap(err, CodeInternal, "something went wrong")
}

func (e *Error) withDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}
