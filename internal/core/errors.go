// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData          = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrMalformedInput  = &Error{Code: "MALFORMED_INPUT", Message: "malformed input"}
	ErrUnorderedSeries = &Error{Code: "UNORDERED_SERIES", Message: "bars must be strictly ascending by time"}
	ErrSymbolInvalid   = &Error{Code: "SYMBOL_INVALID", Message: "invalid symbol"}
	ErrRangeTooLong    = &Error{Code: "RANGE_TOO_LONG", Message: "requested period is too long"}

	// Result errors. These mark an absent result, not a failed run.
	ErrNoTrades            = &Error{Code: "NO_TRADES", Message: "no trades generated"}
	ErrInsufficientHistory = &Error{Code: "INSUFFICIENT_HISTORY", Message: "not enough trades for aggregation"}

	// Collector errors
	ErrCollectorFailed = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid api key"}

	// Job errors
	ErrJobNotFound = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
	ErrRunNotFound = &Error{Code: "RUN_NOT_FOUND", Message: "run not found"}
)
