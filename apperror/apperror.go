// Package apperror holds the error kinds the API reports to clients.
// Anything that is not an *Error is treated as a programming error and
// rendered as a generic 500.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	ValidationFailed
	Unauthenticated
	Forbidden
	NotFound
	Locked
	Conflict
	UpstreamFailure
)

var kindNames = map[Kind]string{
	Internal:         "internal",
	ValidationFailed: "validation_failed",
	Unauthenticated:  "unauthenticated",
	Forbidden:        "forbidden",
	NotFound:         "not_found",
	Locked:           "locked",
	Conflict:         "conflict",
	UpstreamFailure:  "upstream_failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is an operational error: its Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error    { return New(ValidationFailed, msg) }
func Unauthorized(msg string) *Error  { return New(Unauthenticated, msg) }
func Denied(msg string) *Error        { return New(Forbidden, msg) }
func Missing(msg string) *Error       { return New(NotFound, msg) }
func AccountLocked(msg string) *Error { return New(Locked, msg) }
func Duplicate(msg string) *Error     { return New(Conflict, msg) }
func Upstream(msg string, err error) *Error {
	return Wrap(UpstreamFailure, msg, err)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf reports the kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case ValidationFailed:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Locked:
		return http.StatusLocked
	case Conflict:
		return http.StatusConflict
	case UpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Status is the envelope status for kind: "fail" for client errors and
// "error" for everything else.
func Status(kind Kind) string {
	if code := HTTPStatus(kind); code >= 400 && code < 500 {
		return "fail"
	}
	return "error"
}
