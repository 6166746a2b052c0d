package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies request-path failures into a stable taxonomy.
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "not_found"
	CodeConflict         ErrorCode = "conflict"
	CodeForbidden        ErrorCode = "forbidden"
	CodePaymentFailed    ErrorCode = "payment_failed"
	CodeInvalidSignature ErrorCode = "invalid_signature"
	CodeValidation       ErrorCode = "validation_error"
	CodeUpstream         ErrorCode = "upstream_error"
)

// Error is a classified error carrying a stable code and a human-readable
// message. It wraps an optional cause for errors.Is/As chains.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

func ConflictError(format string, args ...any) *Error {
	return newError(CodeConflict, format, args...)
}

func ForbiddenError(format string, args ...any) *Error {
	return newError(CodeForbidden, format, args...)
}

func PaymentFailedError(format string, args ...any) *Error {
	return newError(CodePaymentFailed, format, args...)
}

func InvalidSignatureError(format string, args ...any) *Error {
	return newError(CodeInvalidSignature, format, args...)
}

func ValidationError(format string, args ...any) *Error {
	return newError(CodeValidation, format, args...)
}

// UpstreamError classifies an unexpected gateway failure, preserving the
// cause for logging.
func UpstreamError(cause error, format string, args ...any) *Error {
	e := newError(CodeUpstream, format, args...)
	e.cause = cause
	return e
}

// CodeOf extracts the error code from err, defaulting to CodeUpstream for
// unclassified errors. A nil error carries no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUpstream
}

// HTTPStatus maps an error to the status used at the gin boundary.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodePaymentFailed:
		return http.StatusPaymentRequired
	case CodeInvalidSignature:
		return http.StatusBadRequest
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf returns the classified message, or the raw error text for
// unclassified errors.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
