package errors

import "fmt"

// ErrorType classifies failures so callers can decide between retrying,
// isolating, and aborting the run
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeFormat        ErrorType = "format"
	ErrorTypeExternalTool  ErrorType = "external_tool"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeParsing       ErrorType = "parsing"
	ErrorTypeServerError   ErrorType = "server_error"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error carries the failure classification alongside the underlying cause.
// Code holds an HTTP status or remote API error code when one exists.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without an underlying cause
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Newf creates a typed error with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification to an existing error
func Wrap(t ErrorType, msg string, err error) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// IsRetryable reports whether an error of this type is worth another attempt.
// Per-download retries cover transport and local I/O failures only; auth and
// format problems will not change between attempts.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeStorage, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}
