// Package domain defines core types, interfaces, and errors for the
// incremental pipeline engine.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConfigurationError indicates invalid or missing configuration, such as an
// incremental run on a stream whose watermark was never initialized. Fatal;
// never retried.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// TransformationError wraps a failure while applying a layer transform to a
// unit or range. It aborts the remaining units of the invocation.
type TransformationError struct {
	Stream string
	Lower  Unit
	Upper  Unit
	Err    error
}

func (e *TransformationError) Error() string {
	if e.Lower == e.Upper {
		return fmt.Sprintf("transform %s unit %d: %v", e.Stream, e.Lower, e.Err)
	}
	return fmt.Sprintf("transform %s range [%d, %d]: %v", e.Stream, e.Lower, e.Upper, e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// TransientSourceError indicates a retryable upstream failure (network,
// rate limiting, 5xx). The fetch layer retries these with backoff; anything
// else propagates immediately.
type TransientSourceError struct {
	Message string
	Err     error
}

func (e *TransientSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// TimeoutError indicates a guard-level attempt timeout.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ErrTransient creates a TransientSourceError wrapping err.
func ErrTransient(err error, format string, args ...interface{}) *TransientSourceError {
	return &TransientSourceError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrTimeout creates a TimeoutError with a formatted message.
func ErrTimeout(format string, args ...interface{}) *TimeoutError {
	return &TimeoutError{Message: fmt.Sprintf(format, args...)}
}
