package domain

import (
	"context"
	"errors"
)

// Sentinel errors for the application. Callers wrap them with detail via
// fmt.Errorf("%w: ...", ErrX) and test with errors.Is.
var (
	ErrValidation      = errors.New("invalid input")
	ErrAuthorization   = errors.New("forbidden")
	ErrNotFound        = errors.New("resource not found")
	ErrTransientStore  = errors.New("store temporarily unavailable")
	ErrConnection      = errors.New("connection error")
	ErrConflict        = errors.New("resource already exists")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// Wire codes carried by outbound error events.
const (
	CodeValidation   = "validation"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeUnavailable  = "unavailable"
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
)

// ErrorCode maps an error onto the wire code reported to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrAuthorization):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthorized
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrTransientStore),
		errors.Is(err, context.DeadlineExceeded):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
