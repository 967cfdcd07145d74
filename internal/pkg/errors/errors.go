// Package errors provides coded errors for the media pipeline. The code
// decides both the HTTP status on the API side and, on the worker side,
// whether a failed step is retried (transient) or fails the job (permanent).
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes an error.
type Code string

const (
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeTimeout      Code = "TIMEOUT"
	CodeUnavailable  Code = "UNAVAILABLE"
	CodeInvalidMedia Code = "INVALID_MEDIA"
)

// Error carries a code, the failing operation, and optional context fields.
type Error struct {
	Code    Code
	Message string
	// Op is the operation that failed (e.g. "engine.step").
	Op  string
	Err error
	// Fields holds additional context for logging.
	Fields map[string]any
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code so sentinel-style comparisons work across wrapping.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithField attaches a context field to the error.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// HTTPStatus maps the code to an HTTP status for the API error envelope.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeInvalidMedia:
		return 400
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeUnavailable:
		return 503
	case CodeTimeout:
		return 504
	default:
		return 500
	}
}

// New creates a new coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err, preserving its code when it already carries one.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}
	code := CodeInternal
	var e *Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return &Error{Code: code, Message: message, Op: op, Err: err}
}

// WrapWithCode wraps err under an explicit code, overriding any code the
// underlying error carries.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Op: op, Err: err}
}

// NotFound creates a not-found error for a resource.
func NotFound(resource, id string) *Error {
	return Newf(CodeNotFound, "%s not found: %s", resource, id).
		WithField("resource", resource).WithField("id", id)
}

// Validation creates a validation error.
func Validation(message string) *Error { return New(CodeValidation, message) }

// Validationf creates a formatted validation error.
func Validationf(format string, args ...any) *Error { return Newf(CodeValidation, format, args...) }

// Conflict creates a conflict error.
func Conflict(message string) *Error { return New(CodeConflict, message) }

// Timeout creates a timeout error for an operation.
func Timeout(operation string) *Error {
	return Newf(CodeTimeout, "operation timed out: %s", operation)
}

// Unavailable creates an unavailable error for a dependency.
func Unavailable(service string) *Error {
	return Newf(CodeUnavailable, "service unavailable: %s", service)
}

// InvalidMedia creates a permanent media error (corrupt or unreadable
// input, codec rejected the stream).
func InvalidMedia(message string) *Error { return New(CodeInvalidMedia, message) }

// GetCode extracts the code from any error; uncoded errors are internal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode checks whether err carries the given code.
func IsCode(err error, code Code) bool { return GetCode(err) == code }

// IsNotFound checks for a not-found error.
func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }

// IsValidation checks for a validation error.
func IsValidation(err error) bool { return IsCode(err, CodeValidation) }

// IsTransient reports whether a step failure is worth retrying. Timeouts and
// dependency outages are transient; everything else (bad media, validation,
// unknown causes) fails the job immediately.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeUnavailable:
		return true
	default:
		return false
	}
}

// GetFields extracts context fields from an error, if any.
func GetFields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool { return errors.As(err, target) }

// Is is a convenience wrapper for errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }
