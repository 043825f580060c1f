package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents the stage of the pipeline an error came from
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeStatus      ErrorType = "status"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeContentType ErrorType = "content_type"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeCancelled   ErrorType = "cancelled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a failure of a single unit of work
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
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

// New creates an error of the given type
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates an error of the given type around a cause. Context
// cancellation always wins over the requested type.
func Wrap(errorType ErrorType, err error, url string) *Error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		errorType = ErrorTypeCancelled
	}
	return &Error{
		Type:    errorType,
		Message: err.Error(),
		URL:     url,
		Err:     err,
	}
}

// Status creates an error for an unexpected HTTP status code
func Status(code int, url string) *Error {
	return &Error{
		Type:    ErrorTypeStatus,
		Message: fmt.Sprintf("unexpected status code %d for %s", code, url),
		Code:    code,
		URL:     url,
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err is not
// an *Error
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	if stderrors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	return ErrorTypeUnknown
}

// IsCancelled reports whether err was caused by run cancellation
func IsCancelled(err error) bool {
	return TypeOf(err) == ErrorTypeCancelled || stderrors.Is(err, context.Canceled)
}
