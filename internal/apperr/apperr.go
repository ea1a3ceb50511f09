// Package apperr defines the typed failures domain services return and the
// HTTP status each maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindPermissionDenied
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Issue is one field-level (or root-level) problem with a request.
type Issue struct {
	Origin  string   `json:"origin"`
	Code    string   `json:"code"`
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// RootOrigin marks issues that are not tied to a single field.
const RootOrigin = "_root"

func RootIssue(code, message string) Issue {
	return Issue{Origin: RootOrigin, Code: code, Path: []string{}, Message: message}
}

type Error struct {
	Kind    Kind
	Message string
	Issues  []Issue
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func PermissionDenied(message string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Conflict carries a single root issue so clients get the same array shape
// as validation failures.
func Conflict(message string) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: message,
		Issues:  []Issue{RootIssue("bad_data", message)},
	}
}

func Validation(issues ...Issue) *Error {
	msg := "invalid request"
	if len(issues) > 0 {
		msg = issues[0].Message
	}
	return &Error{Kind: KindValidation, Message: msg, Issues: issues}
}

// Invalid is a validation failure on a single field.
func Invalid(field, code, message string) *Error {
	return Validation(Issue{Origin: field, Code: code, Path: []string{field}, Message: message})
}

// Internal wraps an unexpected error. Its message is never shown to clients.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As extracts the *Error from err, wrapping untyped errors as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("unexpected error", err)
}
