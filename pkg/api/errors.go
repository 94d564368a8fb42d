// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package api

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// ErrorKind categorizes request failures for programmatic handling.
//
// Every failure surfaced by this package maps to exactly one kind, so
// a calling view needs a single branch per kind instead of scattered
// status-code checks.
type ErrorKind int

const (
	// ErrKindValidation indicates the payload was rejected locally
	// before any network call was made.
	ErrKindValidation ErrorKind = iota

	// ErrKindUnauthorized indicates no valid session (HTTP 401).
	ErrKindUnauthorized

	// ErrKindForbidden indicates the session lacks the capability
	// server-side (HTTP 403).
	ErrKindForbidden

	// ErrKindNotFound indicates the resource no longer exists,
	// typically deleted by another actor concurrently (HTTP 404).
	ErrKindNotFound

	// ErrKindTransport indicates the request never produced a usable
	// response: connection refused, timeout, malformed body.
	ErrKindTransport

	// ErrKindServer indicates the API reported a failure (HTTP 5xx,
	// or success=false on a 2xx).
	ErrKindServer
)

// String returns the kind as a stable identifier for logging.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindValidation:
		return "VALIDATION"
	case ErrKindUnauthorized:
		return "UNAUTHORIZED"
	case ErrKindForbidden:
		return "FORBIDDEN"
	case ErrKindNotFound:
		return "NOT_FOUND"
	case ErrKindTransport:
		return "TRANSPORT"
	case ErrKindServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// Error provides structured failure information for API operations.
type Error struct {
	// Kind categorizes the failure.
	Kind ErrorKind

	// Method and Path identify the attempted request. Empty for
	// validation failures that never built a request.
	Method string
	Path   string

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Message is a human-readable description, suitable for the
	// status line notification.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Method, e.Path, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// KindOf extracts the ErrorKind from err. Non-API errors report
// ErrKindTransport, the conservative default for unknown failures.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ErrKindTransport
}

// IsNotFound reports whether err represents a missing resource. Views
// use this to render a not-found state instead of an error banner.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == ErrKindNotFound
}

// IsUnauthorized reports whether err indicates a missing or expired
// session.
func IsUnauthorized(err error) bool {
	return err != nil && KindOf(err) == ErrKindUnauthorized
}

// IsValidation reports whether err was rejected before reaching the
// network.
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == ErrKindValidation
}

// validationError builds a local pre-flight rejection.
func validationError(msg string, cause error) *Error {
	return &Error{Kind: ErrKindValidation, Message: msg, Err: cause}
}

// kindForStatus maps an HTTP status code to an ErrorKind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401:
		return ErrKindUnauthorized
	case status == 403:
		return ErrKindForbidden
	case status == 404:
		return ErrKindNotFound
	case status >= 500:
		return ErrKindServer
	default:
		// Remaining 4xx: the API rejected the request as malformed or
		// otherwise unprocessable.
		return ErrKindValidation
	}
}
