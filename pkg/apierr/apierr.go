package apierr

import (
	"errors"
	"net/http"
)

// Type categorizes an error so callers and the HTTP layer can react to it consistently.
type Type string

const (
	Unauthorized       Type = "unauthorized"
	ServiceUnavailable Type = "service_unavailable"
	NotFound           Type = "not_found"
	Validation         Type = "validation"
	Conflict           Type = "conflict"
	Internal           Type = "internal"
)

// Error is a structured error carrying a Type and a user-facing message.
type Error struct {
	Type    Type
	Message string
	Err     error // optional underlying error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// New constructs a new Error.
func New(t Type, msg string, err error) *Error { return &Error{Type: t, Message: msg, Err: err} }

// TypeOf returns the Type of the first *Error in err's chain, or Internal when there is none.
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return Internal
}

// Is reports whether err's chain contains an *Error of type t.
func Is(err error, t Type) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// Message returns the user-facing message for err, hiding details of untyped errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps err to the HTTP status code the server responds with.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case Unauthorized:
		return http.StatusUnauthorized
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
