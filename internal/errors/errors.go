package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Stable error codes returned in the `error` field of HTTP error bodies.
const (
	CodeNotFound        = "not_found"
	CodeInvalidArgument = "invalid_argument"
	CodeUnauthenticated = "unauthenticated"
	CodeConflict        = "conflict"
	CodeRateLimited     = "rate_limited"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// HTTPStatus maps the error code to a response status.
func (e *AppError) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}

	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{
		Code:        CodeNotFound,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
	}
}

func NewInvalidArgumentError(msg string) *AppError {
	return &AppError{
		Code:        CodeInvalidArgument,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
	}
}

func NewUnauthenticatedError(msg string) *AppError {
	return &AppError{
		Code:        CodeUnauthenticated,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
	}
}

func NewConflictError(msg string) *AppError {
	return &AppError{
		Code:        CodeConflict,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
	}
}

func NewRateLimitedError() *AppError {
	return &AppError{
		Code:        CodeRateLimited,
		Message:     "rate limit exceeded",
		UserMessage: "Too many requests, try again later",
		Severity:    SeverityLow,
	}
}

func NewDatabaseError(op string, cause error) *AppError {
	return &AppError{
		Code:        CodeInternal,
		Message:     fmt.Sprintf("database error during %s", op),
		UserMessage: "Internal server error",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        CodeUnavailable,
		Message:     fmt.Sprintf("external API error: %s", apiName),
		UserMessage: "Upstream service is temporarily unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// WrapUnauthenticated keeps cause for logs while exposing only msg to clients.
func WrapUnauthenticated(msg string, cause error) *AppError {
	err := NewUnauthenticatedError(msg)
	err.cause = cause
	return err
}

// Code returns the AppError code of err, or CodeInternal for foreign errors.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}
