package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Common sentinel errors for quick checks
var (
	// ErrNotFound is returned when a named resource (e.g. a server group) is not configured.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when request input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timeout")

	// ErrServiceUnavailable is returned when a required service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Error is the base interface for all custom errors in the system.
// It extends the standard error interface with additional context.
type Error interface {
	error
	// Code returns the error code
	Code() string
	// Message returns the human-readable error message
	Message() string
	// Unwrap returns the underlying cause
	Unwrap() error
}

// BaseError provides a foundation for all typed errors.
type BaseError struct {
	code    string
	message string
	cause   error
	stack   []uintptr
}

// NewBaseError builds a BaseError with the given code and records the caller's stack.
// Packages embed the result to get Code/Message/Unwrap for free.
func NewBaseError(code, message string, cause error) *BaseError {
	return &BaseError{
		code:    code,
		message: message,
		cause:   cause,
		stack:   captureStack(1),
	}
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *BaseError) Code() string {
	return e.code
}

// Message returns the error message.
func (e *BaseError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// captureStack captures the current stack trace.
func captureStack(skip int) []uintptr {
	const maxDepth = 32
	stack := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, stack)
	return stack[:n]
}

// StackTrace returns a formatted stack trace string.
func (e *BaseError) StackTrace() string {
	if len(e.stack) == 0 {
		return ""
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

// ConfigError represents a deployment misconfiguration. These are not retryable:
// the process must be reconfigured before the operation can succeed.
type ConfigError struct {
	*BaseError
	Key string
}

// NewConfigError creates a new configuration error for the given config key.
func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{
		BaseError: &BaseError{
			code:    CodeConfigError,
			message: message,
			stack:   captureStack(1),
		},
		Key: key,
	}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error: %s: %s", e.Key, e.message)
	}
	return fmt.Sprintf("config error: %s", e.message)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	*BaseError
	Resource string
	ID       string
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		BaseError: &BaseError{
			code:    CodeNotFound,
			message: fmt.Sprintf("%s not found", resource),
			stack:   captureStack(1),
		},
		Resource: resource,
		ID:       id,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// NetworkError represents a transport-level failure talking to a backend.
type NetworkError struct {
	*BaseError
	Addr string
}

// NewNetworkError creates a new network error for addr.
func NewNetworkError(addr string, cause error) *NetworkError {
	message := "network error"
	if addr != "" {
		message = fmt.Sprintf("network error talking to %s", addr)
	}
	return &NetworkError{
		BaseError: &BaseError{
			code:    CodeNetworkError,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
		Addr: addr,
	}
}

// ServiceError represents a downstream service error.
type ServiceError struct {
	*BaseError
	Service string
}

// NewServiceError creates a new service error.
func NewServiceError(service, message string, cause error) *ServiceError {
	if message == "" {
		message = fmt.Sprintf("%s service error", service)
	}
	return &ServiceError{
		BaseError: &BaseError{
			code:    CodeServiceUnavailable,
			message: message,
			cause:   cause,
			stack:   captureStack(1),
		},
		Service: service,
	}
}

// InternalError is what Wrap returns for errors that carry no code.
type InternalError struct {
	*BaseError
}

// Wrap wraps an error with additional context.
// If the error is already one of our custom types, it preserves the code
// and adds the cause chain. Otherwise, it creates an InternalError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if e, ok := err.(Error); ok {
		return &BaseError{
			code:    e.Code(),
			message: message,
			cause:   err,
			stack:   captureStack(1),
		}
	}

	return &InternalError{
		BaseError: &BaseError{
			code:    CodeInternal,
			message: message,
			cause:   err,
			stack:   captureStack(1),
		},
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// New creates a new error with a message.
func New(message string) error {
	return &BaseError{
		code:    CodeInternal,
		message: message,
		stack:   captureStack(1),
	}
}

// Newf creates a new error with a formatted message.
func Newf(format string, args ...interface{}) error {
	return New(fmt.Sprintf(format, args...))
}
