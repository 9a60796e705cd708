// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories, each rendered with a stable prefix:
//   - General errors (1-99): GENERAL
//   - Configuration errors (100-199): CONFIG
//   - Cache errors (200-299): CACHE
//   - Indicator errors (300-399): INDICATOR
//   - Strategy and graph errors (400-499): STRATEGY
//   - Trading errors (500-599): TRADING
//   - Node runtime errors (600-699): NODE
//   - Market data errors (700-799): MARKET
//   - Command/response errors (800-899): COMMAND
//   - State machine errors (900-999): STATE
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Wrap an existing error, keeping the original code reachable
//	err := errors.Wrap(errors.ErrCodeNodeInitFailed, "kline node init failed", cause)
//
//	// Inspect the code chain
//	errors.CodeChain(err) // [NODE_0600, MARKET_0700]
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Localized renders the error with the code description in the given language.
func (e *Error) Localized(lang Language) string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Code.Describe(lang))
	if e.Message != "" {
		msg += ": " + e.Message
	}

	var inner *Error
	if e.Cause != nil && errors.As(e.Cause, &inner) {
		return msg + " <- " + inner.Localized(lang)
	}

	if e.Cause != nil {
		return msg + " <- " + e.Cause.Error()
	}

	return msg
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode of the outermost coded error.
// Returns ErrCodeUnknown if no error in the chain carries a code.
func GetCode(err error) ErrorCode {
	var coded interface{ ErrorCode() ErrorCode }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}

	return ErrCodeUnknown
}

// ErrorCode returns the code carried by the error.
func (e *Error) ErrorCode() ErrorCode {
	return e.Code
}

// HasCode checks if any layer of the error chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	for _, c := range CodeChain(err) {
		if c == code {
			return true
		}
	}

	return false
}

// CodeChain returns the codes of every coded layer in err's chain, outermost first.
func CodeChain(err error) []ErrorCode {
	var chain []ErrorCode

	for err != nil {
		if coded, ok := err.(interface{ ErrorCode() ErrorCode }); ok {
			chain = append(chain, coded.ErrorCode())
		}

		err = errors.Unwrap(err)
	}

	return chain
}

// RootCode returns the innermost code of the chain, or ErrCodeUnknown.
func RootCode(err error) ErrorCode {
	chain := CodeChain(err)
	if len(chain) == 0 {
		return ErrCodeUnknown
	}

	return chain[len(chain)-1]
}

// InvalidStateTransitionError is returned when a trigger is applied to a state
// for which no transition is defined.
type InvalidStateTransitionError struct {
	Machine string
	State   string
	Trigger string
}

// NewInvalidStateTransitionError creates a new InvalidStateTransitionError.
func NewInvalidStateTransitionError(machine, state, trigger string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{
		Machine: machine,
		State:   state,
		Trigger: trigger,
	}
}

// Error implements the error interface.
func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("[%s] %s: no transition from state %q on trigger %q",
		ErrCodeInvalidStateTransition, e.Machine, e.State, e.Trigger)
}

// ErrorCode returns ErrCodeInvalidStateTransition.
func (e *InvalidStateTransitionError) ErrorCode() ErrorCode {
	return ErrCodeInvalidStateTransition
}

// IsInvalidStateTransition checks if an error is an InvalidStateTransitionError.
func IsInvalidStateTransition(err error) bool {
	var transitionErr *InvalidStateTransitionError

	return errors.As(err, &transitionErr)
}

// InsufficientDataError represents an error when there is not enough data
// for a calculation (e.g., an indicator lookback longer than the series).
type InsufficientDataError struct {
	Required int
	Actual   int
	Key      string
	Message  string
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(required, actual int, key, format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Key:      key,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return e.Message
}

// ErrorCode returns ErrCodeInsufficientData.
func (e *InsufficientDataError) ErrorCode() ErrorCode {
	return ErrCodeInsufficientData
}

// IsInsufficientDataError checks if an error is an InsufficientDataError.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}
