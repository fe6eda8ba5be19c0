// Package apperr classifies request failures so handlers can map them to
// HTTP statuses without inspecting storage or transport errors directly.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the class of a failure.
type Kind int

const (
	Backend Kind = iota
	Validation
	Unauthorized
	Forbidden
	NotFound
	Conflict
	ExternalService
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case ExternalService:
		return "external_service"
	default:
		return "backend"
	}
}

// Error is a classified failure. Msg is safe to show to callers; Err is the cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Invalid is shorthand for a validation failure with no cause.
func Invalid(msg string) error {
	return &Error{Kind: Validation, Msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or Backend.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Backend
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case ExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
