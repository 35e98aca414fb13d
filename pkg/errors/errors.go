// Package errors defines the typed error taxonomy shared by the risk engines,
// the streaming service, and the HTTP surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of a failure. Streamed computations convert the
// code into a typed error push; HTTP handlers map it to a status.
type Code string

const (
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeInvalidParameter Code = "INVALID_PARAMETER"
	CodeUpstreamData     Code = "UPSTREAM_DATA_ERROR"
	CodeCalculation      Code = "CALCULATION_ERROR"
	CodeBusy             Code = "BUSY"
	CodeTimeout          Code = "TIMEOUT"
	CodeConnection       Code = "CONNECTION_ERROR"
	CodeInternal         Code = "INTERNAL"
)

// Error is a coded error. It wraps an optional cause and supports errors.Is
// matching on the code via sentinel comparison.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two coded errors by code so sentinel-style checks work:
// errors.Is(err, &Error{Code: CodeBusy}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a coded error with a formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing cause.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

func InvalidInput(format string, args ...interface{}) *Error {
	return New(CodeInvalidInput, format, args...)
}

func InvalidParameter(format string, args ...interface{}) *Error {
	return New(CodeInvalidParameter, format, args...)
}

func UpstreamData(cause error, format string, args ...interface{}) *Error {
	return Wrap(CodeUpstreamData, cause, format, args...)
}

func Calculation(format string, args ...interface{}) *Error {
	return New(CodeCalculation, format, args...)
}

func Busy(format string, args ...interface{}) *Error {
	return New(CodeBusy, format, args...)
}

func Timeout(format string, args ...interface{}) *Error {
	return New(CodeTimeout, format, args...)
}

func Connection(cause error, format string, args ...interface{}) *Error {
	return Wrap(CodeConnection, cause, format, args...)
}

// CodeOf extracts the code from err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message for err. Uncoded errors collapse
// to a generic message so internals never leak to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error code to the HTTP status returned by the API layer.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput, CodeInvalidParameter:
		return http.StatusBadRequest
	case CodeBusy:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstreamData:
		return http.StatusBadGateway
	case CodeCalculation, CodeConnection, CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
