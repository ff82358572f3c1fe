// Package nebulaerrors provides structured error handling for nebula-columnar with
// rich context, stack traces, and error categorization. Every failure the
// transfer engine can report (unsupported data order, unsupported type mapping,
// type mismatch, conversion failure, batch store contention, drain while a
// partition is alive) is an *Error with a dedicated ErrorType, so callers can
// branch on the category with IsType instead of matching strings.
//
// # Basic Usage
//
//	err := nebulaerrors.New(nebulaerrors.ErrorTypeTypeMismatch, "value does not match column type").
//		WithDetail("column", 3).
//		WithDetail("expected", "int64")
//
//	if nebulaerrors.IsType(err, nebulaerrors.ErrorTypeTypeMismatch) {
//		// the partition that produced err stops; other partitions are unaffected
//	}
//
// # Stack Traces
//
// Stack traces are captured at error creation points. Wrap preserves the stack
// of an existing *Error so the original failure site is reported.
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Call WithDetail before
// sharing an error across goroutines.
package nebulaerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error, used for error handling strategies,
// monitoring, and API response mapping.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeQuery represents query execution errors
	ErrorTypeQuery ErrorType = "query"

	// ErrorTypeUnsupportedDataOrder is returned by Allocate when the requested
	// row/column ordering cannot be honored by the destination.
	ErrorTypeUnsupportedDataOrder ErrorType = "unsupported_data_order"
	// ErrorTypeUnsupportedMapping is returned when a transport has no rule for a
	// source type used by the schema.
	ErrorTypeUnsupportedMapping ErrorType = "unsupported_mapping"
	// ErrorTypeTypeMismatch is returned when a value's native type disagrees
	// with its column's type tag.
	ErrorTypeTypeMismatch ErrorType = "type_mismatch"
	// ErrorTypeConversion is returned when a fallible or lossy conversion
	// rejects a value.
	ErrorTypeConversion ErrorType = "conversion"
	// ErrorTypeResourceContention is returned when the shared batch store can
	// no longer be used because a previous writer left it inconsistent.
	ErrorTypeResourceContention ErrorType = "resource_contention"
	// ErrorTypeResourceStillHeld is returned when the batch store is drained
	// while a partition still holds a handle to it.
	ErrorTypeResourceStillHeld ErrorType = "resource_still_held"
	// ErrorTypeState is returned when an operation is called in the wrong
	// lifecycle state (partition before allocate, write after drain, ...).
	ErrorTypeState ErrorType = "state"
)

// Error represents a structured error with context, providing rich debugging
// information and enabling sophisticated error handling strategies.
//
// Fields:
//   - Type: Categorizes the error for handling strategies
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack, capturing
// the function name, file path, and line number for debugging.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error, providing additional context
// for debugging and monitoring. This method can be chained for adding multiple details.
//
// Example:
//
//	err := nebulaerrors.New(ErrorTypeConversion, "numeric out of float64 range").
//	    WithDetail("value", v.String()).
//	    WithDetail("target", "float64")
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns the detail stored under key.
func (e *Error) Detail(key string) (interface{}, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// New creates a new error with the given type and message, automatically
// capturing the call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the original
// error as the cause. If the error is already a structured Error, its stack
// trace is preserved. Returns nil if the input error is nil.
//
// Example:
//
//	rows, err := conn.Query(ctx, sql)
//	if err != nil {
//	    return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeQuery, "failed to execute partition query").
//	        WithDetail("query", sql)
//	}
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable based on its type.
// Timeout and connection errors are considered retryable. The engine itself
// never retries; this is for callers that drive a transfer.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	case ErrorTypeInternal, ErrorTypeValidation, ErrorTypeConfig, ErrorTypeData,
		ErrorTypeFile, ErrorTypeQuery, ErrorTypeUnsupportedDataOrder,
		ErrorTypeUnsupportedMapping, ErrorTypeTypeMismatch, ErrorTypeConversion,
		ErrorTypeResourceContention, ErrorTypeResourceStillHeld, ErrorTypeState:
		return false
	default:
		return false
	}
}

// IsType checks if the error, or any *Error in its chain, is of the given type.
//
// Example:
//
//	if nebulaerrors.IsType(err, nebulaerrors.ErrorTypeResourceStillHeld) {
//	    // close the remaining partitions, then drain again
//	}
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
