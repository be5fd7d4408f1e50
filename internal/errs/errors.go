// Package errs provides the unified error type used across Scout.
//
// Every subsystem (database drivers, schema loader, query compiler, search
// engine, filestore) wraps its native errors into *errs.Error before
// returning them. Callers use the Is* predicates to branch on the kind
// without importing driver packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "query timed out", pgErr)
//
//	// In a handler, check the kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "unknown table", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
type ErrKind int

const (
	ErrKindUnknown            ErrKind = iota
	ErrKindNotFound                   // unknown table, missing object
	ErrKindConnectionFailed           // cannot reach or list the backend
	ErrKindTimeout                    // context deadline / cancellation
	ErrKindQueryFailed                // statement rejected by the backend
	ErrKindInvalidInput               // bad arguments from the caller
	ErrKindPermissionDenied           // access denied / auth failure
	ErrKindUnsupportedQuery           // query object with no recognized clause
	ErrKindBackendUnavailable         // optional backend feature is missing
	ErrKindClosed                     // handle was closed or switched away
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindUnsupportedQuery:
		return "unsupported_query"
	case ErrKindBackendUnavailable:
		return "backend_unavailable"
	case ErrKindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all Scout subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original backend error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// TableNotFound is the error returned for any operation naming a table
// that is not in the current catalog.
func TableNotFound(table string) *Error {
	return Newf(ErrKindNotFound, "table %q not found", table)
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend statement failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsUnsupportedQuery reports whether a query object had no recognized clause.
func IsUnsupportedQuery(err error) bool {
	return KindOf(err) == ErrKindUnsupportedQuery
}

// IsBackendUnavailable reports whether an optional backend capability
// (full-text indexing, regex matching) is missing.
func IsBackendUnavailable(err error) bool {
	return KindOf(err) == ErrKindBackendUnavailable
}

// IsClosed reports whether the statement ran against a closed handle.
func IsClosed(err error) bool {
	return KindOf(err) == ErrKindClosed
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
